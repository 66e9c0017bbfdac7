package vm

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Builtin Native Functions
// ========================
//
// The emitter calls most of these through CALL_NATIVE_R; the hottest ones
// (int, float, input, range, type_of, print) also have dedicated bridge
// opcodes that reuse the same implementations.

func (vm *VM) registerBuiltins() {
	vm.DefineNative("print", -1, builtinPrint)
	vm.DefineNative("input", -1, builtinInput)
	vm.DefineNative("int", 1, builtinInt)
	vm.DefineNative("float", 1, builtinFloat)
	vm.DefineNative("type_of", 1, builtinTypeOf)
	vm.DefineNative("is_type", 2, builtinIsType)
	vm.DefineNative("range", -1, builtinRange)
	vm.DefineNative("len", 1, builtinLen)
	vm.DefineNative("array_push", 2, builtinArrayPush)
	vm.DefineNative("array_pop", 1, builtinArrayPop)
	vm.DefineNative("sorted", 1, builtinSorted)
	vm.DefineNative("array_repeat", 2, builtinArrayRepeat)
	vm.DefineNative("time_stamp", 0, builtinTimeStamp)
	vm.DefineNative("assert", -1, builtinAssert)
	vm.DefineNative("assert_eq", 2, builtinAssertEq)
	vm.DefineNative("mem_used", 0, builtinMemUsed)
}

func builtinPrint(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = ToString(a)
	}
	if _, err := vm.stdout.Write([]byte(strings.Join(parts, " ") + "\n")); err != nil {
		return NilValue(), newNativeError(ERROR_IO, "print failed: %s", err.Error())
	}
	return NilValue(), nil
}

func builtinInput(vm *VM, args []Value) (Value, error) {
	if len(args) > 1 {
		return NilValue(), newNativeError(ERROR_ARGUMENT, "input expected at most 1 argument but got %d", len(args))
	}
	if len(args) == 1 {
		if !IsString(args[0]) {
			return NilValue(), newNativeError(ERROR_TYPE, "input prompt must be a string, got %s", ValueTypeName(args[0]))
		}
		vm.stdout.Write([]byte(AsString(args[0]).text()))
	}
	line, err := vm.stdin.ReadString('\n')
	if err != nil && line == "" {
		return NilValue(), newNativeError(ERROR_EOF, "end of input")
	}
	line = strings.TrimRight(line, "\r\n")
	return BoxStringObj(vm.newString(line)), nil
}

// builtinInt converts a value to i32. String parsing accepts an optional
// sign and decimal digits only; other number types must be in i32 range.
func builtinInt(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.Type {
	case VAL_I32:
		return v, nil
	case VAL_I64:
		n := AsI64(v)
		if n < math.MinInt32 || n > math.MaxInt32 {
			return NilValue(), newNativeError(ERROR_CONVERSION, "i64 value %d out of i32 range", n)
		}
		return BoxI32(int32(n)), nil
	case VAL_U32:
		n := AsU32(v)
		if n > math.MaxInt32 {
			return NilValue(), newNativeError(ERROR_CONVERSION, "u32 value %d out of i32 range", n)
		}
		return BoxI32(int32(n)), nil
	case VAL_U64:
		n := AsU64(v)
		if n > math.MaxInt32 {
			return NilValue(), newNativeError(ERROR_CONVERSION, "u64 value %d out of i32 range", n)
		}
		return BoxI32(int32(n)), nil
	case VAL_F64:
		f := AsF64(v)
		if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return NilValue(), newNativeError(ERROR_CONVERSION, "f64 value %g out of i32 range", f)
		}
		return BoxI32(int32(f)), nil
	case VAL_BOOL:
		if AsBool(v) {
			return BoxI32(1), nil
		}
		return BoxI32(0), nil
	case VAL_STRING:
		s := strings.TrimSpace(AsString(v).text())
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return NilValue(), newNativeError(ERROR_CONVERSION, "cannot parse %q as int", s)
		}
		return BoxI32(int32(n)), nil
	default:
		return NilValue(), newNativeError(ERROR_TYPE, "int cannot convert %s", ValueTypeName(v))
	}
}

func builtinFloat(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.Type {
	case VAL_F64:
		return v, nil
	case VAL_I32:
		return BoxF64(float64(AsI32(v))), nil
	case VAL_I64:
		return BoxF64(float64(AsI64(v))), nil
	case VAL_U32:
		return BoxF64(float64(AsU32(v))), nil
	case VAL_U64:
		return BoxF64(float64(AsU64(v))), nil
	case VAL_BOOL:
		if AsBool(v) {
			return BoxF64(1), nil
		}
		return BoxF64(0), nil
	case VAL_STRING:
		s := strings.TrimSpace(AsString(v).text())
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return NilValue(), newNativeError(ERROR_CONVERSION, "cannot parse %q as float", s)
		}
		return BoxF64(f), nil
	default:
		return NilValue(), newNativeError(ERROR_TYPE, "float cannot convert %s", ValueTypeName(v))
	}
}

func builtinTypeOf(vm *VM, args []Value) (Value, error) {
	return BoxStringObj(vm.newString(ValueTypeName(args[0]))), nil
}

func builtinIsType(vm *VM, args []Value) (Value, error) {
	if !IsString(args[1]) {
		return NilValue(), newNativeError(ERROR_TYPE, "is_type name must be a string, got %s", ValueTypeName(args[1]))
	}
	return BoxBool(ValueTypeName(args[0]) == AsString(args[1]).text()), nil
}

// builtinRange mirrors the start/end/step forms: range(end), range(start,
// end), range(start, end, step). A zero step is rejected up front so the
// iterator cannot spin forever.
func builtinRange(vm *VM, args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 3 {
		return NilValue(), newNativeError(ERROR_ARGUMENT, "range expected 1 to 3 arguments but got %d", len(args))
	}
	nums := make([]int64, len(args))
	for i, a := range args {
		n, ok := integerOf(a)
		if !ok {
			return NilValue(), newNativeError(ERROR_TYPE, "range argument %d must be an integer, got %s", i+1, ValueTypeName(a))
		}
		nums[i] = n
	}

	var start, end, step int64
	switch len(nums) {
	case 1:
		start, end, step = 0, nums[0], 1
	case 2:
		start, end, step = nums[0], nums[1], 1
	case 3:
		start, end, step = nums[0], nums[1], nums[2]
	}
	if step == 0 {
		return NilValue(), newNativeError(ERROR_VALUE, "range step cannot be zero")
	}
	return BoxRangeIteratorObj(vm.newRangeIterator(start, end, step)), nil
}

func integerOf(v Value) (int64, bool) {
	switch v.Type {
	case VAL_I32:
		return int64(AsI32(v)), true
	case VAL_I64:
		return AsI64(v), true
	case VAL_U32:
		return int64(AsU32(v)), true
	case VAL_U64:
		n := AsU64(v)
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func builtinLen(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch {
	case IsArray(v):
		return BoxI32(int32(AsArray(v).Length)), nil
	case IsString(v):
		return BoxI32(int32(len(AsString(v).text()))), nil
	default:
		return NilValue(), newNativeError(ERROR_TYPE, "len expects an array or string, got %s", ValueTypeName(v))
	}
}

func builtinArrayPush(vm *VM, args []Value) (Value, error) {
	if !IsArray(args[0]) {
		return NilValue(), newNativeError(ERROR_TYPE, "push expects an array, got %s", ValueTypeName(args[0]))
	}
	arr := AsArray(args[0])
	arr.push(args[1])
	return args[0], nil
}

func builtinArrayPop(vm *VM, args []Value) (Value, error) {
	if !IsArray(args[0]) {
		return NilValue(), newNativeError(ERROR_TYPE, "pop expects an array, got %s", ValueTypeName(args[0]))
	}
	arr := AsArray(args[0])
	if arr.Length == 0 {
		return NilValue(), newNativeError(ERROR_VALUE, "pop from empty array")
	}
	last := arr.Elements[arr.Length-1]
	arr.Elements = arr.Elements[:arr.Length-1]
	arr.Length--
	return last, nil
}

func builtinSorted(vm *VM, args []Value) (Value, error) {
	if !IsArray(args[0]) {
		return NilValue(), newNativeError(ERROR_TYPE, "sorted expects an array, got %s", ValueTypeName(args[0]))
	}
	out, err := vm.sortedCopy(AsArray(args[0]))
	if err != nil {
		return NilValue(), err
	}
	return BoxArrayObj(out), nil
}

func builtinArrayRepeat(vm *VM, args []Value) (Value, error) {
	count, ok := integerOf(args[1])
	if !ok || count < 0 {
		return NilValue(), newNativeError(ERROR_VALUE, "array_repeat count must be a non-negative integer")
	}
	vm.PauseGC()
	defer vm.ResumeGC()
	arr := vm.newArray(int(count))
	for i := int64(0); i < count; i++ {
		arr.push(args[0])
	}
	return BoxArrayObj(arr), nil
}

func builtinTimeStamp(vm *VM, args []Value) (Value, error) {
	return BoxF64(time.Since(vm.startTime).Seconds()), nil
}

func builtinAssert(vm *VM, args []Value) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return NilValue(), newNativeError(ERROR_ARGUMENT, "assert expected 1 or 2 arguments but got %d", len(args))
	}
	if IsTruthy(args[0]) {
		return NilValue(), nil
	}
	msg := "assertion failed"
	if len(args) == 2 {
		msg = ToString(args[1])
	}
	return NilValue(), newNativeError(ERROR_RUNTIME, "%s", msg)
}

func builtinAssertEq(vm *VM, args []Value) (Value, error) {
	if ValuesEqual(args[0], args[1]) {
		return NilValue(), nil
	}
	return NilValue(), newNativeError(ERROR_RUNTIME, "assertion failed: %s != %s", ToString(args[0]), ToString(args[1]))
}

// builtinMemUsed reports live GC-managed bytes as a human string, mostly
// for poking at the collector from scripts.
func builtinMemUsed(vm *VM, args []Value) (Value, error) {
	return BoxStringObj(vm.newString(humanize.IBytes(vm.gc.bytesAllocated))), nil
}
