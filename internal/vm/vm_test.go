package vm

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

// testAsm assembles chunks for the tests; it mirrors what an emitter would
// produce, one opcode at a time.
type testAsm struct {
	c    *Chunk
	file uint16
}

func newTestAsm() *testAsm {
	c := NewChunk()
	return &testAsm{c: c, file: c.AddFile("test.orus")}
}

func (a *testAsm) op(o OpCode, operands ...byte) {
	a.c.WriteOp(o, 1, 1, a.file)
	for _, b := range operands {
		a.c.WriteByte(b, 1, 1, a.file)
	}
}

func (a *testAsm) u16(v uint16) { a.c.WriteU16(v, 1, 1, a.file) }
func (a *testAsm) i32(v int32)  { a.c.WriteI32(v, 1, 1, a.file) }

func (a *testAsm) k(t *testing.T, v Value) uint16 {
	t.Helper()
	idx, err := a.c.AddConstant(v)
	if err != nil {
		t.Fatalf("AddConstant: %v", err)
	}
	return idx
}

func (a *testAsm) loadConst(t *testing.T, reg byte, v Value) {
	a.op(OP_LOAD_CONST, reg)
	a.u16(a.k(t, v))
}

func (a *testAsm) loadI32(reg byte, v int32) {
	a.op(OP_LOAD_I32_CONST, reg)
	a.i32(v)
}

func (a *testAsm) jumpIfNot(cond byte) int {
	a.op(OP_JUMP_IF_NOT_R, cond)
	pos := len(a.c.Code)
	a.u16(0xFFFF)
	return pos
}

func (a *testAsm) patch(t *testing.T, pos int) {
	t.Helper()
	if err := a.c.PatchJump(pos); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}
}

func runChunk(t *testing.T, machine *VM, c *Chunk) {
	t.Helper()
	result, err := machine.Interpret(c)
	if result != INTERPRET_OK {
		t.Fatalf("interpret: %v", err)
	}
}

// Test boxed binary arithmetic through the dispatch loop
func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   OpCode
		a, b Value
		want Value
	}{
		{"add i32", OP_ADD_I32_R, BoxI32(10), BoxI32(20), BoxI32(30)},
		{"sub i32", OP_SUB_I32_R, BoxI32(50), BoxI32(20), BoxI32(30)},
		{"mul i32", OP_MUL_I32_R, BoxI32(5), BoxI32(6), BoxI32(30)},
		{"div i32", OP_DIV_I32_R, BoxI32(60), BoxI32(2), BoxI32(30)},
		{"mod i32", OP_MOD_I32_R, BoxI32(17), BoxI32(5), BoxI32(2)},
		{"neg mod i32", OP_MOD_I32_R, BoxI32(-17), BoxI32(5), BoxI32(-2)},
		{"add i64", OP_ADD_I64_R, BoxI64(1 << 40), BoxI64(1), BoxI64(1<<40 + 1)},
		{"add u32", OP_ADD_U32_R, BoxU32(math.MaxUint32 - 1), BoxU32(1), BoxU32(math.MaxUint32)},
		{"mul u64", OP_MUL_U64_R, BoxU64(1 << 33), BoxU64(4), BoxU64(1 << 35)},
		{"add f64", OP_ADD_F64_R, BoxF64(1.5), BoxF64(2.25), BoxF64(3.75)},
		{"div f64 by zero", OP_DIV_F64_R, BoxF64(1), BoxF64(0), BoxF64(math.Inf(1))},
		{"lt i32", OP_LT_I32_R, BoxI32(3), BoxI32(4), BoxBool(true)},
		{"ge u64", OP_GE_U64_R, BoxU64(9), BoxU64(9), BoxBool(true)},
		{"eq cross type", OP_EQ_R, BoxI32(1), BoxI64(1), BoxBool(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM(RuntimeOptions{})
			defer machine.Free()

			a := newTestAsm()
			a.loadConst(t, 1, tt.a)
			a.loadConst(t, 2, tt.b)
			a.op(tt.op, 0, 1, 2)
			a.op(OP_HALT)

			runChunk(t, machine, a.c)
			got := machine.Global(0)
			if !ValuesEqual(got, tt.want) {
				t.Errorf("got %s, want %s", ToString(got), ToString(tt.want))
			}
		})
	}
}

// Test that mixed operand types are rejected, not coerced
func TestStrictTyping(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadConst(t, 1, BoxI32(1))
	a.loadConst(t, 2, BoxI64(2))
	a.op(OP_ADD_I32_R, 0, 1, 2)
	a.op(OP_HALT)

	result, err := machine.Interpret(a.c)
	if result != INTERPRET_RUNTIME_ERROR {
		t.Fatal("expected a runtime error")
	}
	re, ok := err.(*RuntimeError)
	if !ok || re.Kind != ERROR_TYPE {
		t.Errorf("expected TypeError, got %v", err)
	}
}

// Test overflow behavior in both arithmetic modes
func TestOverflowModes(t *testing.T) {
	build := func(t *testing.T) *testAsm {
		a := newTestAsm()
		a.loadConst(t, 1, BoxI32(math.MaxInt32))
		a.loadConst(t, 2, BoxI32(1))
		a.op(OP_ADD_I32_R, 0, 1, 2)
		a.op(OP_HALT)
		return a
	}

	t.Run("safe raises ValueError", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{ArithMode: ARITH_SAFE})
		defer machine.Free()
		result, err := machine.Interpret(build(t).c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		re, ok := err.(*RuntimeError)
		if !ok || re.Kind != ERROR_VALUE {
			t.Errorf("expected ValueError, got %v", err)
		}
	})

	t.Run("fast wraps", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{ArithMode: ARITH_FAST})
		defer machine.Free()
		runChunk(t, machine, build(t).c)
		if got := machine.Global(0); !ValuesEqual(got, BoxI32(math.MinInt32)) {
			t.Errorf("got %s, want %d", ToString(got), math.MinInt32)
		}
	})

	t.Run("division by zero", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		a := newTestAsm()
		a.loadConst(t, 1, BoxI32(1))
		a.loadConst(t, 2, BoxI32(0))
		a.op(OP_DIV_I32_R, 0, 1, 2)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_VALUE {
			t.Errorf("expected ValueError, got %s", re.Kind)
		}
	})
}

// buildCountLoop sums 0..n-1 with the typed add and the fused latch.
func buildCountLoop(t *testing.T, n int32, monotonic bool) *Chunk {
	a := newTestAsm()
	a.loadI32(0, 0) // sum
	a.loadI32(1, 0) // i
	a.loadI32(2, n) // limit

	loopStart := len(a.c.Code)
	a.op(OP_ADD_I32_TYPED, 0, 0, 1)

	opOffset := len(a.c.Code)
	a.op(OP_INC_CMP_JMP, 1, 2)
	a.u16(uint16(loopStart - (len(a.c.Code) + 2))) // signed back edge
	if monotonic {
		a.c.MarkMonotonicRange(opOffset, opOffset+1)
	}
	a.op(OP_HALT)
	return a.c
}

// Test the typed fast path and the fused loop latch
func TestFusedCountLoop(t *testing.T) {
	for _, monotonic := range []bool{false, true} {
		machine := NewVM(RuntimeOptions{TraceTypedFallbacks: true})
		runChunk(t, machine, buildCountLoop(t, 1000, monotonic))

		if got := machine.Global(0); !ValuesEqual(got, BoxI32(499500)) {
			t.Errorf("monotonic=%v: got %s, want 499500", monotonic, ToString(got))
		}
		if machine.Profile().LoopTrace.TypedHit == 0 {
			t.Error("expected typed latch hits")
		}
		machine.Free()
	}
}

// Test that the fused latch still overflow-checks without the hint
func TestFusedLoopOverflowGuard(t *testing.T) {
	a := newTestAsm()
	a.loadConst(t, 1, BoxI32(math.MaxInt32)) // i at the edge
	a.loadConst(t, 2, BoxI32(math.MaxInt32))
	loopStart := len(a.c.Code)
	a.op(OP_INC_CMP_JMP, 1, 2)
	a.u16(uint16(loopStart - (len(a.c.Code) + 2)))
	a.op(OP_HALT)

	machine := NewVM(RuntimeOptions{ArithMode: ARITH_SAFE})
	defer machine.Free()
	result, err := machine.Interpret(a.c)
	if result != INTERPRET_RUNTIME_ERROR {
		t.Fatal("expected overflow error")
	}
	if re := err.(*RuntimeError); re.Kind != ERROR_VALUE {
		t.Errorf("expected ValueError, got %s", re.Kind)
	}
}

// buildFib registers a recursive fib function and returns a chunk calling
// fib(n) into register 7.
func buildFib(t *testing.T, machine *VM, n int32) *Chunk {
	fb := newTestAsm()
	const paramReg = 255

	fb.op(OP_STORE_FRAME, 1, paramReg)
	fb.loadI32(10, 2)
	fb.op(OP_LT_I32_R, 11, paramReg, 10)
	toRecurse := fb.jumpIfNot(11)
	fb.op(OP_RETURN_R, paramReg)
	fb.patch(t, toRecurse)

	fb.op(OP_LOAD_FRAME, 12, 1)
	fb.loadI32(13, 1)
	fb.op(OP_SUB_I32_R, 14, 12, 13)
	fb.op(OP_CALL_R, 5, 14, 1, 17)
	fb.op(OP_STORE_FRAME, 2, 17)

	fb.op(OP_LOAD_FRAME, 12, 1)
	fb.loadI32(13, 2)
	fb.op(OP_SUB_I32_R, 14, 12, 13)
	fb.op(OP_CALL_R, 5, 14, 1, 18)

	fb.op(OP_LOAD_FRAME, 19, 2)
	fb.op(OP_ADD_I32_R, 20, 19, 18)
	fb.op(OP_RETURN_R, 20)

	fn := machine.NewFunctionObj(1, 0, 0, fb.c, "fib")
	machine.RegisterFunction(fn)

	a := newTestAsm()
	a.loadConst(t, 5, BoxFunctionObj(fn))
	a.loadI32(6, n)
	a.op(OP_CALL_R, 5, 6, 1, 7)
	a.op(OP_HALT)
	return a.c
}

// Test recursion through the register-window call protocol
func TestRecursiveCalls(t *testing.T) {
	machine := NewVM(RuntimeOptions{Profile: true})
	defer machine.Free()

	runChunk(t, machine, buildFib(t, machine, 10))
	if got := machine.Global(7); !ValuesEqual(got, BoxI32(55)) {
		t.Errorf("fib(10) = %s, want 55", ToString(got))
	}
	if machine.Profile().FunctionCalls["fib"] == 0 {
		t.Error("expected fib in the call profile")
	}
}

// Test that tail calls replace the frame instead of stacking
func TestTailCallDepth(t *testing.T) {
	fb := newTestAsm()
	const paramReg = 255

	fb.loadI32(10, 0)
	fb.op(OP_EQ_R, 11, paramReg, 10)
	toElse := fb.jumpIfNot(11)
	fb.op(OP_RETURN_R, paramReg)
	fb.patch(t, toElse)
	fb.loadI32(13, 1)
	fb.op(OP_SUB_I32_R, 14, paramReg, 13)
	fb.op(OP_TAIL_CALL_R, 5, 14, 1, 0)

	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	fn := machine.NewFunctionObj(1, 0, 0, fb.c, "countdown")
	machine.RegisterFunction(fn)

	a := newTestAsm()
	a.loadConst(t, 5, BoxFunctionObj(fn))
	a.loadI32(6, 50000) // far beyond the frame limit
	a.op(OP_CALL_R, 5, 6, 1, 7)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(7); !ValuesEqual(got, BoxI32(0)) {
		t.Errorf("got %s, want 0", ToString(got))
	}
}

// Test closures capturing a frame slot across calls
func TestClosureCounter(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()
	var out bytes.Buffer
	machine.SetOutput(&out)

	inner := newTestAsm()
	inner.op(OP_GET_UPVALUE_R, 10, 0)
	inner.op(OP_INC_I32_R, 10)
	inner.op(OP_SET_UPVALUE_R, 0, 10)
	inner.op(OP_RETURN_R, 10)
	innerFn := machine.NewFunctionObj(0, 1, 0, inner.c, "increment")
	machine.RegisterFunction(innerFn)

	maker := newTestAsm()
	maker.loadI32(10, 0)
	maker.op(OP_STORE_FRAME, 1, 10)
	maker.loadConst(t, 11, BoxFunctionObj(innerFn))
	maker.op(OP_CLOSURE_R, 12, 11, 1, 1, 1)
	maker.op(OP_RETURN_R, 12)
	makerFn := machine.NewFunctionObj(0, 0, 0, maker.c, "make_counter")
	machine.RegisterFunction(makerFn)

	a := newTestAsm()
	a.loadConst(t, 5, BoxFunctionObj(makerFn))
	a.op(OP_CALL_R, 5, 0, 0, 6)
	for i := 0; i < 3; i++ {
		a.op(OP_CALL_R, 6, 0, 0, 7)
		a.op(OP_PRINT_R, 7)
	}
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := out.String(); got != "1\n2\n3\n" {
		t.Errorf("got %q, want 1 2 3 on separate lines", got)
	}
}

// Test try/catch binding and unwinding
func TestTryCatch(t *testing.T) {
	t.Run("caught", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()

		a := newTestAsm()
		a.op(OP_TRY_BEGIN)
		a.u16(8)
		handler := len(a.c.Code)
		a.u16(0xFFFF)

		a.loadConst(t, 9, BoxStringObj(machine.InternString("boom")))
		a.op(OP_THROW, 9)

		a.patch(t, handler)
		a.op(OP_HALT)

		runChunk(t, machine, a.c)
		caught := machine.Global(8)
		if !IsError(caught) {
			t.Fatalf("catch register holds %s, want an error", ValueTypeName(caught))
		}
		e := AsError(caught)
		if e.Kind != ERROR_RUNTIME || ToString(caught) != "RuntimeError: boom" {
			t.Errorf("got %s", ToString(caught))
		}
	})

	t.Run("uncaught", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()

		a := newTestAsm()
		a.loadConst(t, 9, BoxStringObj(machine.InternString("boom")))
		a.op(OP_THROW, 9)
		a.op(OP_HALT)

		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		re := err.(*RuntimeError)
		if re.Kind != ERROR_RUNTIME || re.Message != "boom" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("catch across call frames", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()

		thrower := newTestAsm()
		thrower.loadConst(t, 9, BoxStringObj(machine.InternString("deep")))
		thrower.op(OP_THROW, 9)
		fn := machine.NewFunctionObj(0, 0, 0, thrower.c, "thrower")
		machine.RegisterFunction(fn)

		a := newTestAsm()
		a.op(OP_TRY_BEGIN)
		a.u16(8)
		handler := len(a.c.Code)
		a.u16(0xFFFF)
		a.loadConst(t, 5, BoxFunctionObj(fn))
		a.op(OP_CALL_R, 5, 0, 0, 6)
		a.patch(t, handler)
		a.op(OP_HALT)

		runChunk(t, machine, a.c)
		if got := ToString(machine.Global(8)); got != "RuntimeError: deep" {
			t.Errorf("got %q", got)
		}
	})
}

// Test rope concatenation and to_string through the opcodes
func TestStringOps(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()
	var out bytes.Buffer
	machine.SetOutput(&out)

	a := newTestAsm()
	a.loadConst(t, 0, BoxStringObj(machine.InternString("x=")))
	a.loadI32(1, 42)
	a.op(OP_TO_STRING_R, 2, 1)
	a.op(OP_CONCAT_R, 3, 0, 2)
	a.loadConst(t, 4, BoxStringObj(machine.InternString(", y=")))
	a.op(OP_CONCAT_R, 5, 3, 4)
	a.op(OP_LOAD_TRUE, 6)
	a.op(OP_TO_STRING_R, 7, 6)
	a.op(OP_CONCAT_R, 8, 5, 7)
	a.op(OP_PRINT_R, 8)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := out.String(); got != "x=42, y=true\n" {
		t.Errorf("got %q", got)
	}
}

// buildIterSum iterates an i32 range and sums the yielded i64 values.
func buildIterSum(t *testing.T, n int32) *Chunk {
	a := newTestAsm()
	a.loadConst(t, 0, BoxI64(0)) // sum
	a.loadI32(1, n)
	a.op(OP_GET_ITER_R, 2, 1)

	loopStart := len(a.c.Code)
	a.op(OP_ITER_NEXT_R, 3, 2, 4)
	exit := a.jumpIfNot(4)
	a.op(OP_ADD_I64_R, 0, 0, 3)
	if err := a.c.EmitLoop(OP_LOOP, loopStart, 1, 1, a.file); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}
	a.patch(t, exit)
	a.op(OP_HALT)
	return a.c
}

// Test iteration in both descriptor and boxed modes
func TestIteratorSum(t *testing.T) {
	for _, boxed := range []bool{false, true} {
		machine := NewVM(RuntimeOptions{ForceBoxedIterators: boxed, TraceTypedFallbacks: true})
		runChunk(t, machine, buildIterSum(t, 5))

		if got := machine.Global(0); !ValuesEqual(got, BoxI64(10)) {
			t.Errorf("boxed=%v: got %s, want 10", boxed, ToString(got))
		}
		saved := machine.Profile().LoopTrace.IterAllocationsSaved
		if boxed && saved != 0 {
			t.Error("boxed mode should not claim saved allocations")
		}
		if !boxed && saved == 0 {
			t.Error("descriptor mode should record saved allocations")
		}
		machine.Free()
	}
}

func TestIterateNegativeCount(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadI32(1, -3)
	a.op(OP_GET_ITER_R, 2, 1)
	a.op(OP_HALT)

	result, err := machine.Interpret(a.c)
	if result != INTERPRET_RUNTIME_ERROR {
		t.Fatal("expected a runtime error")
	}
	if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
		t.Errorf("expected TypeError, got %s", re.Kind)
	}
}

// Test array literal, index, mutation, and builtin-style opcodes
func TestArrayOps(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadI32(1, 3)
	a.loadI32(2, 1)
	a.loadI32(3, 2)
	a.op(OP_MAKE_ARRAY_R, 0, 1, 3) // [3, 1, 2]
	a.op(OP_ARRAY_LEN_R, 4, 0)
	a.op(OP_ARRAY_SORTED_R, 5, 0)
	a.loadI32(6, 0)
	a.op(OP_ARRAY_GET_R, 7, 5, 6) // sorted[0] == 1
	a.loadI32(8, 99)
	a.op(OP_ARRAY_PUSH_R, 0, 8)
	a.op(OP_ARRAY_POP_R, 9, 0)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(4); !ValuesEqual(got, BoxI32(3)) {
		t.Errorf("len = %s, want 3", ToString(got))
	}
	if got := machine.Global(7); !ValuesEqual(got, BoxI32(1)) {
		t.Errorf("sorted[0] = %s, want 1", ToString(got))
	}
	if got := machine.Global(9); !ValuesEqual(got, BoxI32(99)) {
		t.Errorf("pop = %s, want 99", ToString(got))
	}

	t.Run("index out of range", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		a := newTestAsm()
		a.loadI32(1, 7)
		a.op(OP_MAKE_ARRAY_R, 0, 1, 1)
		a.loadI32(2, 5)
		a.op(OP_ARRAY_GET_R, 3, 0, 2)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_INDEX {
			t.Errorf("expected IndexError, got %s", re.Kind)
		}
	})
}

// Test conversion opcodes and their range checks
func TestConversions(t *testing.T) {
	t.Run("widen and narrow", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		a := newTestAsm()
		a.loadConst(t, 1, BoxI32(-7))
		a.op(OP_I32_TO_I64_R, 2, 1)
		a.op(OP_I64_TO_F64_R, 3, 2)
		a.op(OP_F64_TO_I32_R, 0, 3)
		a.op(OP_HALT)
		runChunk(t, machine, a.c)
		if got := machine.Global(0); !ValuesEqual(got, BoxI32(-7)) {
			t.Errorf("got %s, want -7", ToString(got))
		}
	})

	t.Run("negative to unsigned", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		a := newTestAsm()
		a.loadConst(t, 1, BoxI32(-1))
		a.op(OP_I32_TO_U32_R, 0, 1)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_VALUE {
			t.Errorf("expected ValueError, got %s", re.Kind)
		}
	})

	t.Run("wrong operand type", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		a := newTestAsm()
		a.loadConst(t, 1, BoxStringObj(machine.InternString("7")))
		a.op(OP_I32_TO_I64_R, 0, 1)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
			t.Errorf("expected TypeError, got %s", re.Kind)
		}
	})
}

// Test that both dispatch loops produce identical results
func TestDispatchParity(t *testing.T) {
	outputs := map[string]string{}
	for _, dispatch := range []string{"table", "switch"} {
		machine := NewVM(RuntimeOptions{Dispatch: dispatch})
		var out bytes.Buffer
		machine.SetOutput(&out)

		a := newTestAsm()
		a.loadI32(1, 6)
		a.loadI32(2, 7)
		a.op(OP_MUL_I32_R, 0, 1, 2)
		a.op(OP_PRINT_R, 0)
		a.op(OP_HALT)
		runChunk(t, machine, a.c)

		c := buildCountLoop(t, 200, true)
		runChunk(t, machine, c)
		out.WriteString(ToString(machine.Global(0)))

		outputs[dispatch] = out.String()
		machine.Free()
	}
	if outputs["table"] != outputs["switch"] {
		t.Errorf("table %q != switch %q", outputs["table"], outputs["switch"])
	}
	if !strings.HasPrefix(outputs["table"], "42\n") {
		t.Errorf("unexpected output %q", outputs["table"])
	}
}

// Test the runtime error location carried out of Interpret
func TestErrorLocation(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadConst(t, 1, BoxI32(1))
	a.loadConst(t, 2, BoxI32(0))
	a.op(OP_DIV_I32_R, 0, 1, 2)
	a.op(OP_HALT)

	_, err := machine.Interpret(a.c)
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("got %T", err)
	}
	if re.Location.File != "test.orus" {
		t.Errorf("location file %q, want test.orus", re.Location.File)
	}
}

// Test that writing a one-byte register drops its iterator descriptor
func TestSetRegDropsIteratorDescriptor(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	if !machine.makeIterator(255, BoxI32(3)) {
		t.Fatal("an i32 count should be iterable")
	}
	if machine.typedIterators[255].Kind == TYPED_ITER_NONE {
		t.Fatal("expected a typed descriptor")
	}
	machine.setReg(255, BoxI32(0))
	if machine.typedIterators[255].Kind != TYPED_ITER_NONE {
		t.Error("stale descriptor after register write")
	}
}

// Test that + concatenates when either operand is a string
func TestAddI32StringCoercion(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()
	var out bytes.Buffer
	machine.SetOutput(&out)

	// "x=" + 42 + ", y=" + true
	a := newTestAsm()
	a.loadConst(t, 0, BoxStringObj(machine.InternString("x=")))
	a.loadI32(1, 42)
	a.loadConst(t, 2, BoxStringObj(machine.InternString(", y=")))
	a.op(OP_ADD_I32_R, 3, 0, 1)
	a.op(OP_ADD_I32_R, 4, 3, 2)
	a.op(OP_LOAD_TRUE, 5)
	a.op(OP_ADD_I32_R, 6, 4, 5)
	a.op(OP_PRINT_R, 6)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := out.String(); got != "x=42, y=true\n" {
		t.Errorf("got %q", got)
	}
}

func TestAddI32StringCoercionSides(t *testing.T) {
	tests := []struct {
		name string
		a, b func(m *VM) Value
		want string
	}{
		{"int right", func(m *VM) Value { return BoxStringObj(m.InternString("n=")) }, func(m *VM) Value { return BoxI32(7) }, "n=7"},
		{"int left", func(m *VM) Value { return BoxI32(7) }, func(m *VM) Value { return BoxStringObj(m.InternString("!")) }, "7!"},
		{"nil right", func(m *VM) Value { return BoxStringObj(m.InternString("v is ")) }, func(m *VM) Value { return NilValue() }, "v is nil"},
		{"f64 right", func(m *VM) Value { return BoxStringObj(m.InternString("pi~")) }, func(m *VM) Value { return BoxF64(3.5) }, "pi~3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM(RuntimeOptions{})
			defer machine.Free()

			a := newTestAsm()
			a.loadConst(t, 1, tt.a(machine))
			a.loadConst(t, 2, tt.b(machine))
			a.op(OP_ADD_I32_R, 0, 1, 2)
			a.op(OP_HALT)

			runChunk(t, machine, a.c)
			got := machine.Global(0)
			if !IsString(got) || ToString(got) != tt.want {
				t.Errorf("got %s, want %q", ToString(got), tt.want)
			}
		})
	}
}

// Test that branch conditions must be bool
func TestJumpIfNotRequiresBool(t *testing.T) {
	build := func(t *testing.T, short bool) *Chunk {
		a := newTestAsm()
		a.loadI32(1, 0)
		if short {
			a.op(OP_JUMP_IF_NOT_SHORT, 1, 1)
		} else {
			pos := a.jumpIfNot(1)
			a.patch(t, pos)
		}
		a.op(OP_HALT)
		return a.c
	}

	for _, tt := range []struct {
		name  string
		short bool
	}{{"long form", false}, {"short form", true}} {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewVM(RuntimeOptions{})
			defer machine.Free()

			result, err := machine.Interpret(build(t, tt.short))
			if result != INTERPRET_RUNTIME_ERROR {
				t.Fatal("a non-bool condition must fail")
			}
			if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
				t.Errorf("expected TypeError, got %s", re.Kind)
			}
		})
	}

	// The fastpath-disabled route must reject non-bools the same way.
	t.Run("fastpath disabled", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{DisableBoolBranchFastpath: true})
		defer machine.Free()

		result, _ := machine.Interpret(build(t, false))
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("a non-bool condition must fail")
		}
	})
}

// Test that an arity mismatch delivers false and execution continues
func TestCallArityMismatchYieldsFalse(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()
	var out bytes.Buffer
	machine.SetOutput(&out)

	fb := newTestAsm()
	fb.op(OP_RETURN_R, 255)
	fn := machine.NewFunctionObj(1, 0, 0, fb.c, "ident")
	machine.RegisterFunction(fn)

	a := newTestAsm()
	a.loadConst(t, 5, BoxFunctionObj(fn))
	a.loadI32(6, 1)
	a.loadI32(7, 2)
	a.op(OP_CALL_R, 5, 6, 2, 8) // two args into a one-arity function
	a.op(OP_PRINT_R, 8)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(8); !ValuesEqual(got, BoxBool(false)) {
		t.Errorf("result register holds %s, want false", ToString(got))
	}
	if out.String() != "false\n" {
		t.Errorf("execution should continue past the call, got %q", out.String())
	}
}

func TestTailCallArityMismatchYieldsFalse(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	inner := machine.NewFunctionObj(1, 0, 0, newTestAsm().c, "inner")
	machine.RegisterFunction(inner)

	fb := newTestAsm()
	fb.loadI32(14, 1)
	fb.loadI32(15, 2)
	fb.op(OP_TAIL_CALL_R, 6, 14, 2, 18) // wrong arity, falls through
	fb.op(OP_RETURN_R, 18)
	outer := machine.NewFunctionObj(0, 0, 0, fb.c, "outer")
	machine.RegisterFunction(outer)

	a := newTestAsm()
	a.loadConst(t, 6, BoxFunctionObj(inner))
	a.loadConst(t, 5, BoxFunctionObj(outer))
	a.op(OP_CALL_R, 5, 0, 0, 7)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(7); !ValuesEqual(got, BoxBool(false)) {
		t.Errorf("got %s, want false", ToString(got))
	}
}

// Test that exhausting the frame stack also yields false instead of erroring
func TestCallFrameOverflowYieldsFalse(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	fb := newTestAsm()
	fb.op(OP_CALL_R, 5, 0, 0, 17)
	fb.op(OP_RETURN_R, 17)
	fn := machine.NewFunctionObj(0, 0, 0, fb.c, "sink")
	machine.RegisterFunction(fn)

	a := newTestAsm()
	a.loadConst(t, 5, BoxFunctionObj(fn))
	a.op(OP_CALL_R, 5, 0, 0, 7)
	a.op(OP_HALT)

	// The deepest call sees a full frame stack, yields false, and the
	// false cascades back out through every return.
	runChunk(t, machine, a.c)
	if got := machine.Global(7); !ValuesEqual(got, BoxBool(false)) {
		t.Errorf("got %s, want false", ToString(got))
	}
}

// Test calling through an i32 function-table index
func TestCallByFunctionIndex(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	fb := newTestAsm()
	fb.op(OP_MUL_I32_R, 20, 255, 255)
	fb.op(OP_RETURN_R, 20)
	fn := machine.NewFunctionObj(1, 0, 0, fb.c, "square")
	idx := machine.RegisterFunction(fn)

	a := newTestAsm()
	a.loadI32(5, int32(idx))
	a.loadI32(6, 9)
	a.op(OP_CALL_R, 5, 6, 1, 7)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(7); !ValuesEqual(got, BoxI32(81)) {
		t.Errorf("square(9) = %s, want 81", ToString(got))
	}

	// An index past the function table is not callable.
	b := newTestAsm()
	b.loadI32(5, 99)
	b.op(OP_CALL_R, 5, 6, 1, 7)
	b.op(OP_HALT)
	result, err := machine.Interpret(b.c)
	if result != INTERPRET_RUNTIME_ERROR {
		t.Fatal("expected a runtime error")
	}
	if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
		t.Errorf("expected TypeError, got %s", re.Kind)
	}
}

// Test the fused latch branching forward on a positive offset
func TestFusedLoopForwardBranch(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadI32(0, 0) // i
	a.loadI32(1, 2) // limit
	a.loadI32(2, 111)
	a.op(OP_INC_CMP_JMP, 0, 1)
	a.u16(6) // skip the next load while i < limit
	a.loadI32(2, 999)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if got := machine.Global(2); !ValuesEqual(got, BoxI32(111)) {
		t.Errorf("got %s, want 111", ToString(got))
	}
}

// Test declared globals: bound checks and the store coercion table
func TestGlobalDeclarations(t *testing.T) {
	t.Run("undeclared load", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()

		a := newTestAsm()
		a.op(OP_LOAD_GLOBAL, 0, 9)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_NAME {
			t.Errorf("expected NameError, got %s", re.Kind)
		}
	})

	t.Run("undeclared store", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()

		a := newTestAsm()
		a.loadI32(1, 1)
		a.op(OP_STORE_GLOBAL, 9, 1)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_NAME {
			t.Errorf("expected NameError, got %s", re.Kind)
		}
	})

	t.Run("i32 widens to declared i64", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		g := machine.DeclareGlobal("total", VAL_I64)

		a := newTestAsm()
		a.loadI32(10, 42)
		a.op(OP_STORE_GLOBAL, g, 10)
		a.op(OP_LOAD_GLOBAL, 11, g)
		a.op(OP_HALT)
		runChunk(t, machine, a.c)
		if got := machine.Global(g); !ValuesEqual(got, BoxI64(42)) {
			t.Errorf("got %s, want i64 42", ToString(got))
		}
		if got := machine.Global(11); !ValuesEqual(got, BoxI64(42)) {
			t.Errorf("load observed %s, want i64 42", ToString(got))
		}
	})

	t.Run("non-negative i32 promotes to u32", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		g := machine.DeclareGlobal("count", VAL_U32)

		a := newTestAsm()
		a.loadI32(10, 7)
		a.op(OP_STORE_GLOBAL, g, 10)
		a.op(OP_HALT)
		runChunk(t, machine, a.c)
		if got := machine.Global(g); !ValuesEqual(got, BoxU32(7)) {
			t.Errorf("got %s, want u32 7", ToString(got))
		}
	})

	t.Run("negative i32 into u32 is a type error", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		g := machine.DeclareGlobal("count", VAL_U32)

		a := newTestAsm()
		a.loadI32(10, -1)
		a.op(OP_STORE_GLOBAL, g, 10)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
			t.Errorf("expected TypeError, got %s", re.Kind)
		}
	})

	t.Run("mismatch without a coercion", func(t *testing.T) {
		machine := NewVM(RuntimeOptions{})
		defer machine.Free()
		g := machine.DeclareGlobal("name", VAL_STRING)

		a := newTestAsm()
		a.loadI32(10, 1)
		a.op(OP_STORE_GLOBAL, g, 10)
		a.op(OP_HALT)
		result, err := machine.Interpret(a.c)
		if result != INTERPRET_RUNTIME_ERROR {
			t.Fatal("expected a runtime error")
		}
		if re := err.(*RuntimeError); re.Kind != ERROR_TYPE {
			t.Errorf("expected TypeError, got %s", re.Kind)
		}
	})
}
