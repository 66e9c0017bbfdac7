package vm

import "math"

// Fused instructions collapse the hot increment/compare/branch and
// immediate-operand patterns into single opcodes. They stay on the typed
// banks whenever the operands are there.

func fusedImmI32(apply func(*VM, int32, int32) (int32, arithFault)) func(*VM) execStatus {
	return func(vm *VM) execStatus {
		dst, src := vm.readByte(), vm.readByte()
		imm := vm.readI32()
		a, ok := vm.typedRegs.TryReadI32(src, &vm.regs.Globals[src])
		if !ok {
			v := *vm.reg(src)
			if !IsI32(v) {
				return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
			}
			a = AsI32(v)
		}
		res, fault := apply(vm, a, imm)
		if fault != faultNone {
			return vm.arithFaultError(fault, "i32")
		}
		vm.typedRegs.SetI32(dst, res)
		vm.typedIterators[dst].clear()
		return statusNext
	}
}

// handleCmpI32Imm is the fused less-than against an immediate.
func handleCmpI32Imm(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	imm := vm.readI32()
	a, ok := vm.typedRegs.TryReadI32(src, &vm.regs.Globals[src])
	if !ok {
		v := *vm.reg(src)
		if !IsI32(v) {
			return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
		}
		a = AsI32(v)
	}
	vm.typedRegs.SetBool(dst, a < imm)
	vm.typedIterators[dst].clear()
	return statusNext
}

// LOAD_ADD_I32 / LOAD_CMP_I32 fold a register load into the arithmetic.

func handleLoadAddI32(vm *VM) execStatus {
	dst, src, operand := vm.readByte(), vm.readByte(), vm.readByte()
	a, aok := vm.typedRegs.TryReadI32(src, &vm.regs.Globals[src])
	b, bok := vm.typedRegs.TryReadI32(operand, &vm.regs.Globals[operand])
	if !aok || !bok {
		av, bv := *vm.reg(src), *vm.reg(operand)
		if !IsI32(av) || !IsI32(bv) {
			return vm.opTypeError("i32", av, bv)
		}
		a, b = AsI32(av), AsI32(bv)
	}
	if vm.options.ArithMode == ARITH_SAFE && addI32Overflows(a, b) {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + %d", a, b)
	}
	vm.typedRegs.SetI32(dst, a+b)
	vm.typedIterators[dst].clear()
	return statusNext
}

func handleLoadCmpI32(vm *VM) execStatus {
	dst, src, operand := vm.readByte(), vm.readByte(), vm.readByte()
	a, aok := vm.typedRegs.TryReadI32(src, &vm.regs.Globals[src])
	b, bok := vm.typedRegs.TryReadI32(operand, &vm.regs.Globals[operand])
	if !aok || !bok {
		av, bv := *vm.reg(src), *vm.reg(operand)
		if !IsI32(av) || !IsI32(bv) {
			return vm.opTypeError("i32", av, bv)
		}
		a, b = AsI32(av), AsI32(bv)
	}
	vm.typedRegs.SetBool(dst, a < b)
	vm.typedIterators[dst].clear()
	return statusNext
}

// ============================================================================
// Increment-compare-jump
// ============================================================================

// handleIncCmpJmp increments the counter, compares against the limit, and
// branches by the signed offset while counter < limit. Backward offsets are
// the loop latch; forward offsets are legal too. With the monotonic-range
// hint set on this instruction the overflow check is skipped; the emitter
// only marks loops whose limit provably stays below the i32 maximum.
func handleIncCmpJmp(vm *VM) execStatus {
	opOffset := vm.opStart
	incReg, limitReg := vm.readByte(), vm.readByte()
	off := int16(vm.readU16())

	i, iok := vm.typedRegs.TryReadI32(incReg, &vm.regs.Globals[incReg])
	limit, lok := vm.typedRegs.TryReadI32(limitReg, &vm.regs.Globals[limitReg])
	if iok && lok {
		vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		if !vm.chunk.MonotonicAt(opOffset) {
			if i == math.MaxInt32 {
				vm.traceLoopEvent(LOOP_TRACE_OVERFLOW_GUARD)
				if vm.options.ArithMode == ARITH_SAFE {
					return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + 1", i)
				}
			}
		}
		i++
		vm.typedRegs.SetI32(incReg, i)
		if i < limit {
			vm.pc += int(off)
		}
		return statusNext
	}

	vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
	iv, lv := *vm.reg(incReg), *vm.reg(limitReg)

	// Boxed fallback also carries the i64 shape of the same loop.
	if IsI64(iv) && IsI64(lv) {
		x := AsI64(iv)
		if x == math.MaxInt64 && vm.options.ArithMode == ARITH_SAFE {
			return vm.runtimeError(ERROR_VALUE, "i64 overflow: %d + 1", x)
		}
		x++
		vm.setReg(incReg, BoxI64(x))
		if x < AsI64(lv) {
			vm.pc += int(off)
		}
		return statusNext
	}
	if !IsI32(iv) || !IsI32(lv) {
		vm.traceLoopEvent(LOOP_TRACE_TYPE_MISMATCH)
		return vm.opTypeError("i32", iv, lv)
	}
	x := AsI32(iv)
	if x == math.MaxInt32 && vm.options.ArithMode == ARITH_SAFE && !vm.chunk.MonotonicAt(opOffset) {
		vm.traceLoopEvent(LOOP_TRACE_OVERFLOW_GUARD)
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + 1", x)
	}
	x++
	vm.setReg(incReg, BoxI32(x))
	if x < AsI32(lv) {
		vm.pc += int(off)
	}
	return statusNext
}

// handleDecCmpJmp decrements and branches by the signed offset while
// counter > floor.
func handleDecCmpJmp(vm *VM) execStatus {
	decReg, floorReg := vm.readByte(), vm.readByte()
	off := int16(vm.readU16())

	i, iok := vm.typedRegs.TryReadI32(decReg, &vm.regs.Globals[decReg])
	floor, fok := vm.typedRegs.TryReadI32(floorReg, &vm.regs.Globals[floorReg])
	if iok && fok {
		vm.traceLoopEvent(LOOP_TRACE_TYPED_HIT)
		if i == math.MinInt32 {
			vm.traceLoopEvent(LOOP_TRACE_OVERFLOW_GUARD)
			if vm.options.ArithMode == ARITH_SAFE {
				return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d - 1", i)
			}
		}
		i--
		vm.typedRegs.SetI32(decReg, i)
		if i > floor {
			vm.pc += int(off)
		}
		return statusNext
	}

	vm.traceLoopEvent(LOOP_TRACE_TYPED_MISS)
	iv, fv := *vm.reg(decReg), *vm.reg(floorReg)
	if !IsI32(iv) || !IsI32(fv) {
		vm.traceLoopEvent(LOOP_TRACE_TYPE_MISMATCH)
		return vm.opTypeError("i32", iv, fv)
	}
	x := AsI32(iv)
	if x == math.MinInt32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d - 1", x)
	}
	x--
	vm.setReg(decReg, BoxI32(x))
	if x > AsI32(fv) {
		vm.pc += int(off)
	}
	return statusNext
}

// handleMulAddI32 computes dst = m1*m2 + addend with one overflow check per
// stage.
func handleMulAddI32(vm *VM) execStatus {
	dst, m1, m2, addend := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	a, aok := vm.typedRegs.TryReadI32(m1, &vm.regs.Globals[m1])
	b, bok := vm.typedRegs.TryReadI32(m2, &vm.regs.Globals[m2])
	c, cok := vm.typedRegs.TryReadI32(addend, &vm.regs.Globals[addend])
	if !aok || !bok || !cok {
		av, bv, cv := *vm.reg(m1), *vm.reg(m2), *vm.reg(addend)
		if !IsI32(av) || !IsI32(bv) || !IsI32(cv) {
			return vm.runtimeError(ERROR_TYPE, "operands must be i32, got %s, %s and %s",
				ValueTypeName(av), ValueTypeName(bv), ValueTypeName(cv))
		}
		a, b, c = AsI32(av), AsI32(bv), AsI32(cv)
	}
	if vm.options.ArithMode == ARITH_SAFE {
		if mulI32Overflows(a, b) {
			return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d * %d", a, b)
		}
		if addI32Overflows(a*b, c) {
			return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + %d", a*b, c)
		}
	}
	vm.typedRegs.SetI32(dst, a*b+c)
	vm.typedIterators[dst].clear()
	return statusNext
}

// handleLoadIncStore increments through the boxed path, for counters the
// optimizer could not keep typed.
func handleLoadIncStore(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsI32(v) {
		return vm.runtimeError(ERROR_TYPE, "operand must be i32, got %s", ValueTypeName(v))
	}
	x := AsI32(v)
	if x == math.MaxInt32 && vm.options.ArithMode == ARITH_SAFE {
		return vm.runtimeError(ERROR_VALUE, "i32 overflow: %d + 1", x)
	}
	vm.setReg(r, BoxI32(x+1))
	return statusNext
}
