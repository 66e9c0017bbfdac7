package vm

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func callBuiltin(t *testing.T, machine *VM, name string, args ...Value) (Value, error) {
	t.Helper()
	idx, ok := machine.NativeIndex(name)
	if !ok {
		t.Fatalf("no builtin %q", name)
	}
	return machine.natives[idx].Fn(machine, args)
}

func mustCall(t *testing.T, machine *VM, name string, args ...Value) Value {
	t.Helper()
	v, err := callBuiltin(t, machine, name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func wantNativeError(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	ne, ok := err.(*nativeError)
	if !ok {
		t.Fatalf("got %T", err)
	}
	if ne.kind != kind {
		t.Errorf("kind %s, want %s", ne.kind, kind)
	}
}

func TestBuiltinInt(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	tests := []struct {
		name string
		arg  Value
		want Value
	}{
		{"i32 passthrough", BoxI32(-5), BoxI32(-5)},
		{"i64 in range", BoxI64(1000), BoxI32(1000)},
		{"f64 truncates", BoxF64(3.9), BoxI32(3)},
		{"bool true", BoxBool(true), BoxI32(1)},
		{"string", BoxStringObj(machine.InternString("-17")), BoxI32(-17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustCall(t, machine, "int", tt.arg)
			if !ValuesEqual(got, tt.want) {
				t.Errorf("got %s, want %s", ToString(got), ToString(tt.want))
			}
		})
	}

	t.Run("i64 out of range", func(t *testing.T) {
		_, err := callBuiltin(t, machine, "int", BoxI64(math.MaxInt32+1))
		wantNativeError(t, err, ERROR_CONVERSION)
	})
	t.Run("unparsable string", func(t *testing.T) {
		_, err := callBuiltin(t, machine, "int", BoxStringObj(machine.InternString("12px")))
		wantNativeError(t, err, ERROR_CONVERSION)
	})
}

func TestBuiltinFloat(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	if got := mustCall(t, machine, "float", BoxI32(4)); !ValuesEqual(got, BoxF64(4)) {
		t.Errorf("got %s", ToString(got))
	}
	if got := mustCall(t, machine, "float", BoxStringObj(machine.InternString("2.5"))); !ValuesEqual(got, BoxF64(2.5)) {
		t.Errorf("got %s", ToString(got))
	}
	_, err := callBuiltin(t, machine, "float", BoxStringObj(machine.InternString("nope")))
	wantNativeError(t, err, ERROR_CONVERSION)
}

func TestBuiltinRange(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	tests := []struct {
		name             string
		args             []Value
		start, end, step int64
	}{
		{"one arg", []Value{BoxI32(5)}, 0, 5, 1},
		{"two args", []Value{BoxI32(2), BoxI32(9)}, 2, 9, 1},
		{"three args", []Value{BoxI32(9), BoxI32(0), BoxI32(-2)}, 9, 0, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustCall(t, machine, "range", tt.args...)
			it := AsRangeIterator(v)
			if it.Current != tt.start || it.End != tt.end || it.Step != tt.step {
				t.Errorf("got range(%d, %d, %d)", it.Current, it.End, it.Step)
			}
		})
	}

	t.Run("zero step", func(t *testing.T) {
		_, err := callBuiltin(t, machine, "range", BoxI32(0), BoxI32(5), BoxI32(0))
		wantNativeError(t, err, ERROR_VALUE)
	})
	t.Run("non-integer", func(t *testing.T) {
		_, err := callBuiltin(t, machine, "range", BoxF64(1.5))
		wantNativeError(t, err, ERROR_TYPE)
	})
}

func TestBuiltinInput(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()
	var out bytes.Buffer
	machine.SetOutput(&out)

	machine.SetInput(strings.NewReader("first line\r\nsecond\n"))
	v := mustCall(t, machine, "input", BoxStringObj(machine.InternString("> ")))
	if ToString(v) != "first line" {
		t.Errorf("got %q", ToString(v))
	}
	if out.String() != "> " {
		t.Errorf("prompt output %q", out.String())
	}
	if v := mustCall(t, machine, "input"); ToString(v) != "second" {
		t.Errorf("got %q", ToString(v))
	}

	_, err := callBuiltin(t, machine, "input")
	wantNativeError(t, err, ERROR_EOF)
}

func TestBuiltinArrayHelpers(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	arr := mustCall(t, machine, "array_repeat", BoxI32(7), BoxI32(3))
	if ToString(arr) != "[7, 7, 7]" {
		t.Fatalf("got %s", ToString(arr))
	}
	if got := mustCall(t, machine, "len", arr); !ValuesEqual(got, BoxI32(3)) {
		t.Errorf("len = %s", ToString(got))
	}

	mustCall(t, machine, "array_push", arr, BoxI32(1))
	sorted := mustCall(t, machine, "sorted", arr)
	if ToString(sorted) != "[1, 7, 7, 7]" {
		t.Errorf("sorted = %s", ToString(sorted))
	}
	if ToString(arr) != "[7, 7, 7, 1]" {
		t.Errorf("sorted must copy, source is %s", ToString(arr))
	}

	if got := mustCall(t, machine, "array_pop", arr); !ValuesEqual(got, BoxI32(1)) {
		t.Errorf("pop = %s", ToString(got))
	}

	t.Run("pop empty", func(t *testing.T) {
		empty := mustCall(t, machine, "array_repeat", BoxI32(0), BoxI32(0))
		_, err := callBuiltin(t, machine, "array_pop", empty)
		wantNativeError(t, err, ERROR_VALUE)
	})
}

func TestBuiltinTypeChecks(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	if got := mustCall(t, machine, "type_of", BoxI64(1)); ToString(got) != "i64" {
		t.Errorf("type_of = %s", ToString(got))
	}
	s := BoxStringObj(machine.InternString("string"))
	if got := mustCall(t, machine, "is_type", machine.Global(0), s); !ValuesEqual(got, BoxBool(false)) {
		t.Errorf("is_type = %s", ToString(got))
	}
	if got := mustCall(t, machine, "is_type", s, s); !ValuesEqual(got, BoxBool(true)) {
		t.Errorf("is_type = %s", ToString(got))
	}
}

func TestBuiltinAssert(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	if _, err := callBuiltin(t, machine, "assert", BoxBool(true)); err != nil {
		t.Errorf("passing assert errored: %v", err)
	}
	_, err := callBuiltin(t, machine, "assert", BoxBool(false), BoxStringObj(machine.InternString("nope")))
	wantNativeError(t, err, ERROR_RUNTIME)
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("message %q should carry the caller's text", err.Error())
	}
}

func TestBuiltinAssertEq(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	if _, err := callBuiltin(t, machine, "assert_eq", BoxI32(3), BoxI32(3)); err != nil {
		t.Errorf("equal values errored: %v", err)
	}
	_, err := callBuiltin(t, machine, "assert_eq", BoxI32(3), BoxI64(3))
	wantNativeError(t, err, ERROR_RUNTIME)
	if !strings.Contains(err.Error(), "3 != 3") {
		t.Errorf("message %q should render both sides", err.Error())
	}
}

// Test the native call bridge end to end
func TestCallNativeOpcode(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	idx, ok := machine.NativeIndex("int")
	if !ok {
		t.Fatal("int builtin missing")
	}

	a := newTestAsm()
	a.loadConst(t, 1, BoxF64(9.75))
	a.op(OP_CALL_NATIVE_R, idx, 1, 1, 0)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(0); !ValuesEqual(got, BoxI32(9)) {
		t.Errorf("got %s, want 9", ToString(got))
	}
}
