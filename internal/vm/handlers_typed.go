package vm

import "math"

// Typed opcodes work on the unboxed shadow banks. When an operand is not
// available in the expected bank the handler falls back to the boxed slot:
// a matching boxed value populates the shadow, anything else is a type
// error. The emitter only produces these ops for statically typed code, so
// the fallback is the rare path.

type arithFault uint8

const (
	faultNone arithFault = iota
	faultDivZero
	faultOverflow
)

func (vm *VM) arithFaultError(f arithFault, typeName string) execStatus {
	if f == faultDivZero {
		return vm.runtimeError(ERROR_VALUE, "division by zero")
	}
	return vm.runtimeError(ERROR_VALUE, "%s overflow", typeName)
}

// ============================================================================
// Handler constructors
// ============================================================================

func typedArithI32(apply func(*VM, int32, int32) (int32, arithFault)) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadI32(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadI32(r, &vm.regs.Globals[r])
		if !aok || !bok {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsI32(av) || !IsI32(bv) {
				return vm.opTypeError("i32", av, bv)
			}
			a, b = AsI32(av), AsI32(bv)
		} else {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		}
		res, fault := apply(vm, a, b)
		if fault != faultNone {
			return vm.arithFaultError(fault, "i32")
		}
		vm.typedRegs.SetI32(dst, res)
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedArithI64(apply func(*VM, int64, int64) (int64, arithFault)) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadI64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadI64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsI64(av) || !IsI64(bv) {
				return vm.opTypeError("i64", av, bv)
			}
			a, b = AsI64(av), AsI64(bv)
		} else {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		}
		res, fault := apply(vm, a, b)
		if fault != faultNone {
			return vm.arithFaultError(fault, "i64")
		}
		vm.typedRegs.SetI64(dst, res)
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedArithU32(apply func(*VM, uint32, uint32) (uint32, arithFault)) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadU32(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadU32(r, &vm.regs.Globals[r])
		if !aok || !bok {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsU32(av) || !IsU32(bv) {
				return vm.opTypeError("u32", av, bv)
			}
			a, b = AsU32(av), AsU32(bv)
		} else {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		}
		res, fault := apply(vm, a, b)
		if fault != faultNone {
			return vm.arithFaultError(fault, "u32")
		}
		vm.typedRegs.SetU32(dst, res)
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedArithU64(apply func(*VM, uint64, uint64) (uint64, arithFault)) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadU64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadU64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsU64(av) || !IsU64(bv) {
				return vm.opTypeError("u64", av, bv)
			}
			a, b = AsU64(av), AsU64(bv)
		} else {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		}
		res, fault := apply(vm, a, b)
		if fault != faultNone {
			return vm.arithFaultError(fault, "u64")
		}
		vm.typedRegs.SetU64(dst, res)
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedArithF64(apply func(float64, float64) float64) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadF64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadF64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsF64(av) || !IsF64(bv) {
				return vm.opTypeError("f64", av, bv)
			}
			a, b = AsF64(av), AsF64(bv)
		} else {
			vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		}
		vm.typedRegs.SetF64(dst, apply(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedCmpI32(cmp func(int32, int32) bool) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadI32(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadI32(r, &vm.regs.Globals[r])
		if !aok || !bok {
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsI32(av) || !IsI32(bv) {
				return vm.opTypeError("i32", av, bv)
			}
			a, b = AsI32(av), AsI32(bv)
		}
		vm.typedRegs.SetBool(dst, cmp(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedCmpI64(cmp func(int64, int64) bool) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadI64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadI64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsI64(av) || !IsI64(bv) {
				return vm.opTypeError("i64", av, bv)
			}
			a, b = AsI64(av), AsI64(bv)
		}
		vm.typedRegs.SetBool(dst, cmp(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedCmpU32(cmp func(uint32, uint32) bool) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadU32(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadU32(r, &vm.regs.Globals[r])
		if !aok || !bok {
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsU32(av) || !IsU32(bv) {
				return vm.opTypeError("u32", av, bv)
			}
			a, b = AsU32(av), AsU32(bv)
		}
		vm.typedRegs.SetBool(dst, cmp(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedCmpU64(cmp func(uint64, uint64) bool) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadU64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadU64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsU64(av) || !IsU64(bv) {
				return vm.opTypeError("u64", av, bv)
			}
			a, b = AsU64(av), AsU64(bv)
		}
		vm.typedRegs.SetBool(dst, cmp(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

func typedCmpF64(cmp func(float64, float64) bool) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, l, r := vm.readByte(), vm.readByte(), vm.readByte()
		a, aok := vm.typedRegs.TryReadF64(l, &vm.regs.Globals[l])
		b, bok := vm.typedRegs.TryReadF64(r, &vm.regs.Globals[r])
		if !aok || !bok {
			av, bv := *vm.reg(l), *vm.reg(r)
			if !IsF64(av) || !IsF64(bv) {
				return vm.opTypeError("f64", av, bv)
			}
			a, b = AsF64(av), AsF64(bv)
		}
		vm.typedRegs.SetBool(dst, cmp(a, b))
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

// ============================================================================
// Arithmetic cores
// ============================================================================

func typedAddI32(vm *VM, a, b int32) (int32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && addI32Overflows(a, b) {
		return 0, faultOverflow
	}
	return a + b, faultNone
}

func typedSubI32(vm *VM, a, b int32) (int32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && subI32Overflows(a, b) {
		return 0, faultOverflow
	}
	return a - b, faultNone
}

func typedMulI32(vm *VM, a, b int32) (int32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && mulI32Overflows(a, b) {
		return 0, faultOverflow
	}
	return a * b, faultNone
}

func typedDivI32(vm *VM, a, b int32) (int32, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	if a == math.MinInt32 && b == -1 {
		if vm.options.ArithMode == ARITH_SAFE {
			return 0, faultOverflow
		}
		return math.MinInt32, faultNone
	}
	return a / b, faultNone
}

func typedModI32(vm *VM, a, b int32) (int32, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	if a == math.MinInt32 && b == -1 {
		return 0, faultNone
	}
	return a % b, faultNone
}

func typedAddI64(vm *VM, a, b int64) (int64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && addI64Overflows(a, b) {
		return 0, faultOverflow
	}
	return a + b, faultNone
}

func typedSubI64(vm *VM, a, b int64) (int64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && subI64Overflows(a, b) {
		return 0, faultOverflow
	}
	return a - b, faultNone
}

func typedMulI64(vm *VM, a, b int64) (int64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && mulI64Overflows(a, b) {
		return 0, faultOverflow
	}
	return a * b, faultNone
}

func typedDivI64(vm *VM, a, b int64) (int64, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	if a == math.MinInt64 && b == -1 {
		if vm.options.ArithMode == ARITH_SAFE {
			return 0, faultOverflow
		}
		return math.MinInt64, faultNone
	}
	return a / b, faultNone
}

func typedModI64(vm *VM, a, b int64) (int64, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	if a == math.MinInt64 && b == -1 {
		return 0, faultNone
	}
	return a % b, faultNone
}

func typedAddU32(vm *VM, a, b uint32) (uint32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && a+b < a {
		return 0, faultOverflow
	}
	return a + b, faultNone
}

func typedSubU32(vm *VM, a, b uint32) (uint32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && b > a {
		return 0, faultOverflow
	}
	return a - b, faultNone
}

func typedMulU32(vm *VM, a, b uint32) (uint32, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && b != 0 && a*b/b != a {
		return 0, faultOverflow
	}
	return a * b, faultNone
}

func typedDivU32(vm *VM, a, b uint32) (uint32, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	return a / b, faultNone
}

func typedModU32(vm *VM, a, b uint32) (uint32, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	return a % b, faultNone
}

func typedAddU64(vm *VM, a, b uint64) (uint64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && a+b < a {
		return 0, faultOverflow
	}
	return a + b, faultNone
}

func typedSubU64(vm *VM, a, b uint64) (uint64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && b > a {
		return 0, faultOverflow
	}
	return a - b, faultNone
}

func typedMulU64(vm *VM, a, b uint64) (uint64, arithFault) {
	if vm.options.ArithMode == ARITH_SAFE && b != 0 && a*b/b != a {
		return 0, faultOverflow
	}
	return a * b, faultNone
}

func typedDivU64(vm *VM, a, b uint64) (uint64, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	return a / b, faultNone
}

func typedModU64(vm *VM, a, b uint64) (uint64, arithFault) {
	if b == 0 {
		return 0, faultDivZero
	}
	return a % b, faultNone
}

// ============================================================================
// Typed loads and moves
// ============================================================================

func handleLoadI32Const(vm *VM) execStatus {
	dst := vm.readByte()
	imm := vm.readI32()
	vm.setReg(dst, BoxI32(imm))
	vm.typedRegs.SetI32(dst, imm)
	vm.typedRegs.dirty[dst] = false
	return statusNext
}

func handleLoadI64Const(vm *VM) execStatus {
	dst := vm.readByte()
	k := vm.readU16()
	if int(k) >= len(vm.chunk.Constants) {
		return vm.runtimeError(ERROR_RUNTIME, "constant index %d out of range", k)
	}
	v := vm.chunk.Constants[k]
	if !IsI64(v) {
		return vm.runtimeError(ERROR_TYPE, "constant %d is not i64", k)
	}
	vm.setReg(dst, v)
	vm.typedRegs.SetI64(dst, AsI64(v))
	vm.typedRegs.dirty[dst] = false
	return statusNext
}

func handleLoadF64Const(vm *VM) execStatus {
	dst := vm.readByte()
	k := vm.readU16()
	if int(k) >= len(vm.chunk.Constants) {
		return vm.runtimeError(ERROR_RUNTIME, "constant index %d out of range", k)
	}
	v := vm.chunk.Constants[k]
	if !IsF64(v) {
		return vm.runtimeError(ERROR_TYPE, "constant %d is not f64", k)
	}
	vm.setReg(dst, v)
	vm.typedRegs.SetF64(dst, AsF64(v))
	vm.typedRegs.dirty[dst] = false
	return statusNext
}

func handleMoveI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	if x, ok := vm.typedRegs.TryReadI32(src, &vm.regs.Globals[src]); ok {
		vm.typedRegs.SetI32(dst, x)
		vm.typedIterators[dst].clear()
		return statusNext
	}
	v := *vm.reg(src)
	if !IsI32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	vm.setReg(dst, v)
	return statusNext
}

func handleMoveI64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	if x, ok := vm.typedRegs.TryReadI64(src, &vm.regs.Globals[src]); ok {
		vm.typedRegs.SetI64(dst, x)
		vm.typedIterators[dst].clear()
		return statusNext
	}
	v := *vm.reg(src)
	if !IsI64(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i64, got %s", ValueTypeName(v))
	}
	vm.setReg(dst, v)
	return statusNext
}

func handleMoveF64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	if x, ok := vm.typedRegs.TryReadF64(src, &vm.regs.Globals[src]); ok {
		vm.typedRegs.SetF64(dst, x)
		vm.typedIterators[dst].clear()
		return statusNext
	}
	v := *vm.reg(src)
	if !IsF64(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be f64, got %s", ValueTypeName(v))
	}
	vm.setReg(dst, v)
	return statusNext
}
