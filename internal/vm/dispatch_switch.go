package vm

// Switch dispatch: the hot opcodes get direct static calls the compiler can
// inline, everything else goes through the shared handler table. Selected
// with RuntimeOptions.Dispatch = "switch"; behavior is identical to
// runTable by construction since both forms execute the same handlers.

func (vm *VM) runSwitch() execStatus {
	profiling := vm.options.Profile
	tracing := vm.options.Trace
	code := vm.chunk.Code

	for {
		if vm.pc >= len(code) {
			return statusHalt
		}
		vm.opStart = vm.pc
		op := OpCode(code[vm.pc])
		vm.pc++
		vm.instructionCount++

		if profiling {
			vm.profile.InstructionCounts[op]++
			vm.profile.TotalCycles++
		}
		if tracing {
			vm.traceInstruction()
		}

		var status execStatus
		switch op {
		case OP_LOAD_CONST:
			status = handleLoadConst(vm)
		case OP_MOVE:
			status = handleMove(vm)
		case OP_LOAD_I32_CONST:
			status = handleLoadI32Const(vm)
		case OP_MOVE_I32:
			status = handleMoveI32(vm)
		case OP_INC_I32_R, OP_INC_I32_CHECKED:
			status = handleIncI32(vm)
		case OP_INC_CMP_JMP:
			status = handleIncCmpJmp(vm)
		case OP_DEC_CMP_JMP:
			status = handleDecCmpJmp(vm)
		case OP_JUMP_IF_NOT_R:
			status = handleJumpIfNot(vm)
		case OP_JUMP_IF_NOT_I32_TYPED:
			status = handleJumpIfNotI32Typed(vm)
		case OP_JUMP_SHORT:
			status = handleJumpShort(vm)
		case OP_JUMP_BACK_SHORT:
			status = handleJumpBackShort(vm)
		case OP_LOOP_SHORT:
			status = handleLoopShort(vm)
		case OP_BRANCH_TYPED:
			status = handleBranchTyped(vm)
		case OP_ADD_I32_R:
			status = handleAddI32(vm)
		case OP_LT_I32_R:
			status = handleLtI32(vm)
		case OP_GET_ITER_R:
			status = handleGetIter(vm)
		case OP_ITER_NEXT_R:
			status = handleIterNext(vm)
		case OP_CALL_R:
			status = handleCall(vm)
		case OP_RETURN_R:
			status = handleReturn(vm)
		case OP_HALT:
			status = handleHalt(vm)
		default:
			if op >= OP_CODE_COUNT || opTable[op] == nil {
				return vm.runtimeError(ERROR_RUNTIME, "unknown opcode %d at offset %d", op, vm.opStart)
			}
			status = opTable[op](vm)
		}

		if status != statusNext {
			return status
		}
		// Call dispatch and error unwinding can swap the active chunk.
		code = vm.chunk.Code
	}
}
