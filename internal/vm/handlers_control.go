package vm

// Control flow: jumps, the try/throw machinery, and iterator setup.
// Forward jump offsets count from the first byte after the operand;
// backward offsets (LOOP and the *_BACK/LOOP short forms) subtract.

func handleJump(vm *VM) execStatus {
	off := vm.readU16()
	vm.pc += int(off)
	return statusNext
}

func handleJumpIf(vm *VM) execStatus {
	cond := vm.readByte()
	off := vm.readU16()
	if IsTruthy(*vm.reg(cond)) {
		vm.pc += int(off)
	}
	return statusNext
}

// handleJumpIfNot branches when the condition register holds false. The
// condition must be a bool; anything else is a type error.
func handleJumpIfNot(vm *VM) execStatus {
	cond := vm.readByte()
	off := vm.readU16()
	if !vm.options.DisableBoolBranchFastpath {
		if b, ok := vm.typedRegs.TryReadBool(cond, &vm.regs.Globals[cond]); ok {
			vm.traceLoopEvent(LOOP_TRACE_BRANCH_FAST_HIT)
			if !b {
				vm.pc += int(off)
			}
			return statusNext
		}
		vm.traceLoopEvent(LOOP_TRACE_BRANCH_FAST_MISS)
	}
	v := *vm.reg(cond)
	if !IsBool(v) {
		return vm.runtimeError(ERROR_TYPE, "branch condition must be bool, got %s", ValueTypeName(v))
	}
	if !AsBool(v) {
		vm.pc += int(off)
	}
	return statusNext
}

// handleJumpIfNotI32Typed compares two i32 registers directly and branches
// when left >= right. A non-i32 operand is a type error; the emitter only
// produces this opcode under a proven-i32 guard.
func handleJumpIfNotI32Typed(vm *VM) execStatus {
	left, right := vm.readByte(), vm.readByte()
	off := vm.readByte()
	lv, lok := vm.typedRegs.TryReadI32(left, &vm.regs.Globals[left])
	rv, rok := vm.typedRegs.TryReadI32(right, &vm.regs.Globals[right])
	if !lok || !rok {
		vm.traceLoopEvent(LOOP_TRACE_TYPE_MISMATCH)
		a, b := *vm.reg(left), *vm.reg(right)
		if !IsI32(a) || !IsI32(b) {
			return vm.opTypeError("i32", a, b)
		}
		lv, rv = AsI32(a), AsI32(b)
	}
	if lv >= rv {
		vm.pc += int(off)
	}
	return statusNext
}

func handleLoop(vm *VM) execStatus {
	off := vm.readU16()
	vm.pc -= int(off)
	vm.sampleLoop(vm.pc)
	return statusNext
}

func handleJumpShort(vm *VM) execStatus {
	off := vm.readByte()
	vm.pc += int(off)
	return statusNext
}

func handleJumpBackShort(vm *VM) execStatus {
	off := vm.readByte()
	vm.pc -= int(off)
	return statusNext
}

func handleJumpIfNotShort(vm *VM) execStatus {
	cond := vm.readByte()
	off := vm.readByte()
	v := *vm.reg(cond)
	if !IsBool(v) {
		return vm.runtimeError(ERROR_TYPE, "branch condition must be bool, got %s", ValueTypeName(v))
	}
	if !AsBool(v) {
		vm.pc += int(off)
	}
	return statusNext
}

func handleLoopShort(vm *VM) execStatus {
	off := vm.readByte()
	vm.pc -= int(off)
	vm.sampleLoop(vm.pc)
	return statusNext
}

// handleBranchTyped validates a loop predicate through the branch cache: a
// hit skips the boxed type check entirely and reads the typed bool bank.
func handleBranchTyped(vm *VM) execStatus {
	loopID := vm.readU16()
	pred := vm.readByte()
	off := vm.readByte()

	if vm.branchCache.Lookup(loopID, uint16(pred), REG_TYPE_BOOL) {
		vm.traceLoopEvent(LOOP_TRACE_BRANCH_CACHE_HIT)
		if b, ok := vm.typedRegs.TryReadBool(pred, &vm.regs.Globals[pred]); ok {
			if !b {
				vm.pc += int(off)
			}
			return statusNext
		}
	}
	vm.traceLoopEvent(LOOP_TRACE_BRANCH_CACHE_MISS)

	v := *vm.reg(pred)
	if !IsBool(v) {
		return vm.runtimeError(ERROR_TYPE, "loop predicate must be bool, got %s", ValueTypeName(v))
	}
	vm.branchCache.Insert(loopID, uint16(pred), REG_TYPE_BOOL)
	if !AsBool(v) {
		vm.pc += int(off)
	}
	return statusNext
}

// ============================================================================
// Try / throw
// ============================================================================

func handleTryBegin(vm *VM) execStatus {
	catchReg := vm.readU16()
	off := vm.readU16()
	if vm.tryCount >= TRY_MAX {
		return vm.runtimeError(ERROR_RUNTIME, "too many nested try blocks")
	}
	vm.tryFrames[vm.tryCount] = TryFrame{
		HandlerPC:  vm.pc + int(off),
		Chunk:      vm.chunk,
		CatchReg:   catchReg,
		FrameDepth: vm.frameCount,
	}
	vm.tryCount++
	return statusNext
}

func handleTryEnd(vm *VM) execStatus {
	if vm.tryCount > 0 {
		vm.tryCount--
	}
	return statusNext
}

// handleThrow throws the value in r. Non-error values are wrapped in a
// RuntimeError-kind error object so catch always binds an error.
func handleThrow(vm *VM) execStatus {
	r := vm.readByte()
	v := *vm.reg(r)
	if !IsError(v) {
		file, line, column := vm.currentLocation()
		vm.PauseGC()
		errObj := vm.newErrorObj(ERROR_RUNTIME, vm.newString(ToString(v)), file, line, column)
		vm.ResumeGC()
		v = BoxErrorObj(errObj)
	}
	return vm.throwValue(v)
}

// ============================================================================
// Iterators
// ============================================================================

func handleGetIter(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v := *vm.reg(src)
	if (IsI32(v) && AsI32(v) < 0) || (IsI64(v) && AsI64(v) < 0) {
		return vm.runtimeError(ERROR_TYPE, "cannot iterate a negative count %s", ToString(v))
	}
	// setReg would clear the freshly installed descriptor, so makeIterator
	// writes through regs.Set and the shadow is invalidated here first.
	vm.typedRegs.invalidate(dst)
	vm.branchCache.BumpGuard(uint16(dst))
	if !vm.makeIterator(uint16(dst), v) {
		return vm.runtimeError(ERROR_TYPE, "%s is not iterable", ValueTypeName(v))
	}
	return statusNext
}

func handleIterNext(vm *VM) execStatus {
	dst, iter, has := vm.readByte(), vm.readByte(), vm.readByte()
	vm.typedRegs.invalidate(dst)
	vm.typedRegs.invalidate(has)
	vm.branchCache.BumpGuard(uint16(dst))
	if !vm.iterNext(uint16(dst), uint16(iter), uint16(has)) {
		return vm.runtimeError(ERROR_TYPE, "register does not hold an iterator")
	}
	return statusNext
}
