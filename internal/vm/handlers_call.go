package vm

// Call, return, closure, and register-window opcodes.

func handleCall(vm *VM) execStatus {
	fnReg, firstArg, argCount, resultReg := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	callee := *vm.reg(fnReg)
	return vm.callValue(callee, uint16(firstArg), int(argCount), uint16(resultReg))
}

func handleCallNative(vm *VM) execStatus {
	idx, firstArg, argCount, resultReg := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	return vm.callNative(idx, uint16(firstArg), int(argCount), uint16(resultReg))
}

func handleTailCall(vm *VM) execStatus {
	fnReg, firstArg, argCount, resultReg := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	callee := *vm.reg(fnReg)
	return vm.tailCall(callee, uint16(firstArg), int(argCount), uint16(resultReg))
}

func handleReturn(vm *VM) execStatus {
	r := vm.readByte()
	return vm.returnFromCall(*vm.reg(r))
}

func handleReturnVoid(vm *VM) execStatus {
	return vm.returnFromCall(NilValue())
}

// ============================================================================
// Closures and upvalues
// ============================================================================

// handleClosure materializes a closure over the function in funcReg. Each
// upvalue descriptor is a pair: is_local selects between capturing a live
// register slot and copying from the enclosing closure.
func handleClosure(vm *VM) execStatus {
	dst, fnReg := vm.readByte(), vm.readByte()
	upvalueCount := vm.readByte()

	fv := *vm.reg(fnReg)
	if !IsFunction(fv) {
		return vm.runtimeError(ERROR_TYPE, "closure target must be a function, got %s", ValueTypeName(fv))
	}
	fn := AsFunction(fv)

	vm.PauseGC()
	closure := vm.newClosure(fn)
	vm.ResumeGC()
	if len(closure.Upvalues) < int(upvalueCount) {
		closure.Upvalues = make([]*ObjUpvalue, upvalueCount)
	}

	// Root the closure before the capture loop can allocate upvalues.
	vm.setReg(dst, BoxClosureObj(closure))

	enclosing := vm.currentClosure()
	for i := 0; i < int(upvalueCount); i++ {
		isLocal := vm.readByte()
		index := vm.readByte()
		if isLocal != 0 {
			closure.Upvalues[i] = vm.captureUpvalue(&vm.regs.Frame[index])
		} else {
			if enclosing == nil || int(index) >= len(enclosing.Upvalues) {
				return vm.runtimeError(ERROR_RUNTIME, "no enclosing upvalue %d", index)
			}
			closure.Upvalues[i] = enclosing.Upvalues[index]
		}
	}
	return statusNext
}

func handleGetUpvalue(vm *VM) execStatus {
	dst, index := vm.readByte(), vm.readByte()
	closure := vm.currentClosure()
	if closure == nil || int(index) >= len(closure.Upvalues) {
		return vm.runtimeError(ERROR_RUNTIME, "no upvalue %d in current function", index)
	}
	vm.setReg(dst, *closure.Upvalues[index].Location)
	return statusNext
}

func handleSetUpvalue(vm *VM) execStatus {
	index, src := vm.readByte(), vm.readByte()
	closure := vm.currentClosure()
	if closure == nil || int(index) >= len(closure.Upvalues) {
		return vm.runtimeError(ERROR_RUNTIME, "no upvalue %d in current function", index)
	}
	*closure.Upvalues[index].Location = *vm.reg(src)
	return statusNext
}

// handleCloseUpvalue closes upvalues at or above a frame slot, then clears
// the slot. Emitted when a captured local leaves scope.
func handleCloseUpvalue(vm *VM) execStatus {
	r := vm.readByte()
	vm.closeUpvaluesFrom(&vm.regs.Frame[r])
	vm.regs.Frame[r] = NilValue()
	return statusNext
}

// ============================================================================
// Frame / spill / module tiers
// ============================================================================

func handleLoadFrame(vm *VM) execStatus {
	dst, offset := vm.readByte(), vm.readByte()
	if int(offset) >= FRAME_REGISTERS {
		return vm.runtimeError(ERROR_RUNTIME, "frame offset %d out of range", offset)
	}
	vm.setReg(dst, vm.regs.Frame[offset])
	return statusNext
}

func handleStoreFrame(vm *VM) execStatus {
	offset, src := vm.readByte(), vm.readByte()
	if int(offset) >= FRAME_REGISTERS {
		return vm.runtimeError(ERROR_RUNTIME, "frame offset %d out of range", offset)
	}
	vm.regs.Frame[offset] = *vm.reg(src)
	return statusNext
}

func handleMoveFrame(vm *VM) execStatus {
	dstOff, srcOff := vm.readByte(), vm.readByte()
	if int(dstOff) >= FRAME_REGISTERS || int(srcOff) >= FRAME_REGISTERS {
		return vm.runtimeError(ERROR_RUNTIME, "frame offset out of range")
	}
	vm.regs.Frame[dstOff] = vm.regs.Frame[srcOff]
	return statusNext
}

// ENTER_FRAME and EXIT_FRAME bracket a lexical block that wants a clean
// temp window; the frame window itself is managed by the call protocol.
func handleEnterFrame(vm *VM) execStatus {
	vm.readByte() // declared frame size, informational
	for i := range vm.regs.Temps {
		vm.regs.Temps[i] = NilValue()
	}
	return statusNext
}

func handleExitFrame(vm *VM) execStatus {
	return statusNext
}

func handleLoadSpill(vm *VM) execStatus {
	dst := vm.readByte()
	spillID := vm.readU16()
	vm.setReg(dst, *vm.regs.Spill.slot(spillID))
	return statusNext
}

func handleStoreSpill(vm *VM) execStatus {
	spillID := vm.readU16()
	src := vm.readByte()
	*vm.regs.Spill.slot(spillID) = *vm.reg(src)
	return statusNext
}

func handleLoadModule(vm *VM) execStatus {
	dst, moduleID, offset := vm.readByte(), vm.readByte(), vm.readByte()
	slot, ok := vm.regs.Modules.SlotIn(moduleID, offset%MODULE_REGISTERS)
	if !ok {
		return vm.runtimeError(ERROR_IMPORT, "unknown module %d", moduleID)
	}
	vm.setReg(dst, *slot)
	return statusNext
}

func handleStoreModule(vm *VM) execStatus {
	moduleID, offset, src := vm.readByte(), vm.readByte(), vm.readByte()
	slot, ok := vm.regs.Modules.SlotIn(moduleID, offset%MODULE_REGISTERS)
	if !ok {
		return vm.runtimeError(ERROR_IMPORT, "unknown module %d", moduleID)
	}
	*slot = *vm.reg(src)
	return statusNext
}

func handleLoadModuleName(vm *VM) execStatus {
	nameK := vm.readU16()
	if int(nameK) >= len(vm.chunk.Constants) || !IsString(vm.chunk.Constants[nameK]) {
		return vm.runtimeError(ERROR_IMPORT, "module name constant out of range")
	}
	vm.regs.Modules.Register(AsString(vm.chunk.Constants[nameK]).text())
	return statusNext
}

func handleSwitchModule(vm *VM) execStatus {
	moduleID := vm.readByte()
	if !vm.regs.Modules.Switch(moduleID) {
		return vm.runtimeError(ERROR_IMPORT, "unknown module %d", moduleID)
	}
	return statusNext
}

func handleExportVar(vm *VM) execStatus {
	nameK := vm.readU16()
	offset := vm.readByte()
	if int(nameK) >= len(vm.chunk.Constants) || !IsString(vm.chunk.Constants[nameK]) {
		return vm.runtimeError(ERROR_IMPORT, "export name constant out of range")
	}
	vm.regs.Modules.Export(AsString(vm.chunk.Constants[nameK]).text(), offset%MODULE_REGISTERS)
	return statusNext
}

func handleImportVar(vm *VM) execStatus {
	nameK := vm.readU16()
	srcModule := vm.readByte()
	if int(nameK) >= len(vm.chunk.Constants) || !IsString(vm.chunk.Constants[nameK]) {
		return vm.runtimeError(ERROR_IMPORT, "import name constant out of range")
	}
	name := AsString(vm.chunk.Constants[nameK]).text()
	if !vm.regs.Modules.Import(name, srcModule) {
		return vm.runtimeError(ERROR_IMPORT, "module %d does not export %q", srcModule, name)
	}
	return statusNext
}

// handleImport resolves a module by name and leaves its id in dst.
func handleImport(vm *VM) execStatus {
	dst := vm.readByte()
	nameK := vm.readU16()
	if int(nameK) >= len(vm.chunk.Constants) || !IsString(vm.chunk.Constants[nameK]) {
		return vm.runtimeError(ERROR_IMPORT, "import name constant out of range")
	}
	id := vm.regs.Modules.Register(AsString(vm.chunk.Constants[nameK]).text())
	vm.setReg(dst, BoxI32(int32(id)))
	return statusNext
}
