package vm

import "math"

// Strict same-typed arithmetic. The boxed opcodes verify both operand types
// and never coerce; the emitter inserts explicit conversion opcodes instead.
// Overflow behavior follows options.ArithMode: safe raises a ValueError,
// fast wraps.

func (vm *VM) opTypeError(want string, a, b Value) execStatus {
	return vm.runtimeError(ERROR_TYPE, "operands must be %s, got %s and %s",
		want, ValueTypeName(a), ValueTypeName(b))
}

// ============================================================================
// Overflow-checked primitives
// ============================================================================

func addI32Overflows(a, b int32) bool {
	s := a + b
	return (s > a) != (b > 0)
}

func subI32Overflows(a, b int32) bool {
	d := a - b
	return (d < a) != (b > 0)
}

func mulI32Overflows(a, b int32) bool {
	if a == 0 || b == 0 {
		return false
	}
	p := a * b
	return p/b != a || (a == math.MinInt32 && b == -1)
}

func addI64Overflows(a, b int64) bool {
	s := a + b
	return (s > a) != (b > 0)
}

func subI64Overflows(a, b int64) bool {
	d := a - b
	return (d < a) != (b > 0)
}

func mulI64Overflows(a, b int64) bool {
	if a == 0 || b == 0 {
		return false
	}
	p := a * b
	return p/b != a || (a == math.MinInt64 && b == -1)
}

// ============================================================================
// I32
// ============================================================================

func handleAddI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	// Either operand being a string turns + into concatenation.
	if IsString(a) || IsString(b) {
		vm.concatInto(dst, a, b)
		return statusNext
	}
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	x, y := AsI32(a), AsI32(b)
	if vm.options.ArithMode == ARITH_SAFE && addI32Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + %d", x, y)
	}
	vm.setReg(dst, BoxI32(x+y))
	return statusNext
}

func handleSubI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	x, y := AsI32(a), AsI32(b)
	if vm.options.ArithMode == ARITH_SAFE && subI32Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d - %d", x, y)
	}
	vm.setReg(dst, BoxI32(x-y))
	return statusNext
}

func handleMulI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	x, y := AsI32(a), AsI32(b)
	if vm.options.ArithMode == ARITH_SAFE && mulI32Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d * %d", x, y)
	}
	vm.setReg(dst, BoxI32(x*y))
	return statusNext
}

func handleDivI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	x, y := AsI32(a), AsI32(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	if x == math.MinInt32 && y == -1 {
		if vm.options.ArithMode == ARITH_SAFE {
			return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d / %d", x, y)
		}
		vm.setReg(dst, BoxI32(math.MinInt32))
		return statusNext
	}
	vm.setReg(dst, BoxI32(x/y))
	return statusNext
}

func handleModI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	x, y := AsI32(a), AsI32(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	if x == math.MinInt32 && y == -1 {
		vm.setReg(dst, BoxI32(0))
		return statusNext
	}
	vm.setReg(dst, BoxI32(x%y))
	return statusNext
}

func handleNegI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v := *vm.reg(src)
	if !IsI32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	x := AsI32(v)
	if x == math.MinInt32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: -%d", x)
	}
	vm.setReg(dst, BoxI32(-x))
	return statusNext
}

// ============================================================================
// Increment / decrement
// ============================================================================

// handleIncI32 covers OP_INC_I32_R and its _CHECKED alias: both raise on
// overflow in safe mode. The typed fast path keeps the counter unboxed.
func handleIncI32(vm *VM) execStatus {
	r := vm.readByte()
	if !vm.options.DisableIncTypedFastpath {
		if x, ok := vm.typedRegs.TryReadI32(r, &vm.regs.Globals[r]); ok {
			if x == math.MaxInt32 {
				vm.traceLoopEvent(LOOP_TRACE_INC_OVERFLOW_BAILOUT)
				if vm.options.ArithMode == ARITH_SAFE {
					return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + 1", x)
				}
			}
			vm.typedRegs.SetI32(r, x+1)
			vm.traceLoopEvent(LOOP_TRACE_INC_FAST_HIT)
			return statusNext
		}
		vm.traceLoopEvent(LOOP_TRACE_INC_FAST_MISS)
	}
	v := *vm.reg(r)
	if !IsI32(v) {
		vm.traceLoopEvent(LOOP_TRACE_INC_TYPE_INSTABILITY)
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	x := AsI32(v)
	if x == math.MaxInt32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + 1", x)
	}
	vm.setReg(r, BoxI32(x+1))
	return statusNext
}

func handleIncI64(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsI64(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i64, got %s", ValueTypeName(v))
	}
	x := AsI64(v)
	if x == math.MaxInt64 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d + 1", x)
	}
	vm.setReg(r, BoxI64(x+1))
	return statusNext
}

func handleIncU32(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsU32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be u32, got %s", ValueTypeName(v))
	}
	x := AsU32(v)
	if x == math.MaxUint32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "u32 overflow: %d + 1", x)
	}
	vm.setReg(r, BoxU32(x+1))
	return statusNext
}

func handleIncU64(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsU64(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be u64, got %s", ValueTypeName(v))
	}
	x := AsU64(v)
	if x == math.MaxUint64 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "u64 overflow: %d + 1", x)
	}
	vm.setReg(r, BoxU64(x+1))
	return statusNext
}

func handleDecI32(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsI32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	x := AsI32(v)
	if x == math.MinInt32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d - 1", x)
	}
	vm.setReg(r, BoxI32(x-1))
	return statusNext
}

// ============================================================================
// I64
// ============================================================================

func handleAddI64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError("i64", a, b)
	}
	x, y := AsI64(a), AsI64(b)
	if vm.options.ArithMode == ARITH_SAFE && addI64Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d + %d", x, y)
	}
	vm.setReg(dst, BoxI64(x+y))
	return statusNext
}

func handleSubI64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError("i64", a, b)
	}
	x, y := AsI64(a), AsI64(b)
	if vm.options.ArithMode == ARITH_SAFE && subI64Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d - %d", x, y)
	}
	vm.setReg(dst, BoxI64(x-y))
	return statusNext
}

func handleMulI64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError("i64", a, b)
	}
	x, y := AsI64(a), AsI64(b)
	if vm.options.ArithMode == ARITH_SAFE && mulI64Overflows(x, y) {
		return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d * %d", x, y)
	}
	vm.setReg(dst, BoxI64(x*y))
	return statusNext
}

func handleDivI64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError("i64", a, b)
	}
	x, y := AsI64(a), AsI64(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	if x == math.MinInt64 && y == -1 {
		if vm.options.ArithMode == ARITH_SAFE {
			return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d / %d", x, y)
		}
		vm.setReg(dst, BoxI64(math.MinInt64))
		return statusNext
	}
	vm.setReg(dst, BoxI64(x/y))
	return statusNext
}

func handleModI64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError("i64", a, b)
	}
	x, y := AsI64(a), AsI64(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	if x == math.MinInt64 && y == -1 {
		vm.setReg(dst, BoxI64(0))
		return statusNext
	}
	vm.setReg(dst, BoxI64(x%y))
	return statusNext
}

// ============================================================================
// U32
// ============================================================================

func handleAddU32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError("u32", a, b)
	}
	x, y := AsU32(a), AsU32(b)
	if vm.options.ArithMode == ARITH_SAFE && x+y < x {
		return vm.runtimeError(ERROR_VALUE, "u32 overflow: %d + %d", x, y)
	}
	vm.setReg(dst, BoxU32(x+y))
	return statusNext
}

func handleSubU32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError("u32", a, b)
	}
	x, y := AsU32(a), AsU32(b)
	if vm.options.ArithMode == ARITH_SAFE && y > x {
		return vm.runtimeError(ERROR_VALUE, "u32 underflow: %d - %d", x, y)
	}
	vm.setReg(dst, BoxU32(x-y))
	return statusNext
}

func handleMulU32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError("u32", a, b)
	}
	x, y := AsU32(a), AsU32(b)
	if vm.options.ArithMode == ARITH_SAFE && y != 0 && x*y/y != x {
		return vm.runtimeError(ERROR_VALUE, "u32 overflow: %d * %d", x, y)
	}
	vm.setReg(dst, BoxU32(x*y))
	return statusNext
}

func handleDivU32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError("u32", a, b)
	}
	y := AsU32(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	vm.setReg(dst, BoxU32(AsU32(a)/y))
	return statusNext
}

func handleModU32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError("u32", a, b)
	}
	y := AsU32(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	vm.setReg(dst, BoxU32(AsU32(a)%y))
	return statusNext
}

// ============================================================================
// U64
// ============================================================================

func handleAddU64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError("u64", a, b)
	}
	x, y := AsU64(a), AsU64(b)
	if vm.options.ArithMode == ARITH_SAFE && x+y < x {
		return vm.runtimeError(ERROR_VALUE, "u64 overflow: %d + %d", x, y)
	}
	vm.setReg(dst, BoxU64(x+y))
	return statusNext
}

func handleSubU64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError("u64", a, b)
	}
	x, y := AsU64(a), AsU64(b)
	if vm.options.ArithMode == ARITH_SAFE && y > x {
		return vm.runtimeError(ERROR_VALUE, "u64 underflow: %d - %d", x, y)
	}
	vm.setReg(dst, BoxU64(x-y))
	return statusNext
}

func handleMulU64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError("u64", a, b)
	}
	x, y := AsU64(a), AsU64(b)
	if vm.options.ArithMode == ARITH_SAFE && y != 0 && x*y/y != x {
		return vm.runtimeError(ERROR_VALUE, "u64 overflow: %d * %d", x, y)
	}
	vm.setReg(dst, BoxU64(x*y))
	return statusNext
}

func handleDivU64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError("u64", a, b)
	}
	y := AsU64(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	vm.setReg(dst, BoxU64(AsU64(a)/y))
	return statusNext
}

func handleModU64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError("u64", a, b)
	}
	y := AsU64(b)
	if y == 0 {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	vm.setReg(dst, BoxU64(AsU64(a)%y))
	return statusNext
}

// ============================================================================
// F64
// ============================================================================

func handleAddF64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError("f64", a, b)
	}
	vm.setReg(dst, BoxF64(AsF64(a)+AsF64(b)))
	return statusNext
}

func handleSubF64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError("f64", a, b)
	}
	vm.setReg(dst, BoxF64(AsF64(a)-AsF64(b)))
	return statusNext
}

func handleMulF64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError("f64", a, b)
	}
	vm.setReg(dst, BoxF64(AsF64(a)*AsF64(b)))
	return statusNext
}

// handleDivF64 follows IEEE semantics: division by zero yields an infinity
// or NaN, never an error.
func handleDivF64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError("f64", a, b)
	}
	vm.setReg(dst, BoxF64(AsF64(a)/AsF64(b)))
	return statusNext
}

func handleModF64(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError("f64", a, b)
	}
	vm.setReg(dst, BoxF64(math.Mod(AsF64(a), AsF64(b))))
	return statusNext
}

// ============================================================================
// Bitwise (I32)
// ============================================================================

func handleAndI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	vm.setReg(dst, BoxI32(AsI32(a)&AsI32(b)))
	return statusNext
}

func handleOrI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	vm.setReg(dst, BoxI32(AsI32(a)|AsI32(b)))
	return statusNext
}

func handleXorI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	vm.setReg(dst, BoxI32(AsI32(a)^AsI32(b)))
	return statusNext
}

func handleNotI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v := *vm.reg(src)
	if !IsI32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	vm.setReg(dst, BoxI32(^AsI32(v)))
	return statusNext
}

func handleShlI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	shift := AsI32(b)
	if shift < 0 || shift > 31 {
		return vm.runtimeError(ERROR_VALUE, "shift amount %d out of range", shift)
	}
	vm.setReg(dst, BoxI32(AsI32(a)<<uint(shift)))
	return statusNext
}

func handleShrI32(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError("i32", a, b)
	}
	shift := AsI32(b)
	if shift < 0 || shift > 31 {
		return vm.runtimeError(ERROR_VALUE, "shift amount %d out of range", shift)
	}
	vm.setReg(dst, BoxI32(AsI32(a)>>uint(shift)))
	return statusNext
}
