package vm

import "math"

// Handler-table dispatch: one indirect call per instruction through a flat
// function table indexed by opcode. This is the default loop.

var opTable [OP_CODE_COUNT]func(*VM) execStatus

func init() {
	opTable = [OP_CODE_COUNT]func(*VM) execStatus{
		OP_LOAD_CONST:   handleLoadConst,
		OP_LOAD_NIL:     handleLoadNil,
		OP_LOAD_TRUE:    handleLoadTrue,
		OP_LOAD_FALSE:   handleLoadFalse,
		OP_MOVE:         handleMove,
		OP_LOAD_GLOBAL:  handleLoadGlobal,
		OP_STORE_GLOBAL: handleStoreGlobal,

		OP_ADD_I32_R:       handleAddI32,
		OP_SUB_I32_R:       handleSubI32,
		OP_MUL_I32_R:       handleMulI32,
		OP_DIV_I32_R:       handleDivI32,
		OP_MOD_I32_R:       handleModI32,
		OP_INC_I32_R:       handleIncI32,
		OP_INC_I32_CHECKED: handleIncI32,
		OP_INC_I64_R:       handleIncI64,
		OP_INC_I64_CHECKED: handleIncI64,
		OP_INC_U32_R:       handleIncU32,
		OP_INC_U32_CHECKED: handleIncU32,
		OP_INC_U64_R:       handleIncU64,
		OP_INC_U64_CHECKED: handleIncU64,
		OP_DEC_I32_R:       handleDecI32,

		OP_ADD_I64_R: handleAddI64,
		OP_SUB_I64_R: handleSubI64,
		OP_MUL_I64_R: handleMulI64,
		OP_DIV_I64_R: handleDivI64,
		OP_MOD_I64_R: handleModI64,

		OP_ADD_U32_R: handleAddU32,
		OP_SUB_U32_R: handleSubU32,
		OP_MUL_U32_R: handleMulU32,
		OP_DIV_U32_R: handleDivU32,
		OP_MOD_U32_R: handleModU32,

		OP_ADD_U64_R: handleAddU64,
		OP_SUB_U64_R: handleSubU64,
		OP_MUL_U64_R: handleMulU64,
		OP_DIV_U64_R: handleDivU64,
		OP_MOD_U64_R: handleModU64,

		OP_ADD_F64_R: handleAddF64,
		OP_SUB_F64_R: handleSubF64,
		OP_MUL_F64_R: handleMulF64,
		OP_DIV_F64_R: handleDivF64,
		OP_MOD_F64_R: handleModF64,

		OP_AND_I32_R: handleAndI32,
		OP_OR_I32_R:  handleOrI32,
		OP_XOR_I32_R: handleXorI32,
		OP_NOT_I32_R: handleNotI32,
		OP_SHL_I32_R: handleShlI32,
		OP_SHR_I32_R: handleShrI32,

		OP_EQ_R:     handleEq,
		OP_NE_R:     handleNe,
		OP_LT_I32_R: handleLtI32,
		OP_LE_I32_R: handleLeI32,
		OP_GT_I32_R: handleGtI32,
		OP_GE_I32_R: handleGeI32,
		OP_LT_I64_R: handleLtI64,
		OP_LE_I64_R: handleLeI64,
		OP_GT_I64_R: handleGtI64,
		OP_GE_I64_R: handleGeI64,
		OP_LT_F64_R: handleLtF64,
		OP_LE_F64_R: handleLeF64,
		OP_GT_F64_R: handleGtF64,
		OP_GE_F64_R: handleGeF64,
		OP_LT_U32_R: handleLtU32,
		OP_LE_U32_R: handleLeU32,
		OP_GT_U32_R: handleGtU32,
		OP_GE_U32_R: handleGeU32,
		OP_LT_U64_R: handleLtU64,
		OP_LE_U64_R: handleLeU64,
		OP_GT_U64_R: handleGtU64,
		OP_GE_U64_R: handleGeU64,

		OP_AND_BOOL_R: handleAndBool,
		OP_OR_BOOL_R:  handleOrBool,
		OP_NOT_BOOL_R: handleNotBool,

		OP_I32_TO_F64_R:  handleI32ToF64,
		OP_I32_TO_I64_R:  handleI32ToI64,
		OP_I64_TO_I32_R:  handleI64ToI32,
		OP_I64_TO_F64_R:  handleI64ToF64,
		OP_F64_TO_I32_R:  handleF64ToI32,
		OP_F64_TO_I64_R:  handleF64ToI64,
		OP_BOOL_TO_I32_R: handleBoolToI32,
		OP_BOOL_TO_I64_R: handleBoolToI64,
		OP_BOOL_TO_U32_R: handleBoolToU32,
		OP_BOOL_TO_U64_R: handleBoolToU64,
		OP_BOOL_TO_F64_R: handleBoolToF64,
		OP_I32_TO_BOOL_R: handleI32ToBool,
		OP_I64_TO_BOOL_R: handleI64ToBool,
		OP_U32_TO_BOOL_R: handleU32ToBool,
		OP_U64_TO_BOOL_R: handleU64ToBool,
		OP_F64_TO_BOOL_R: handleF64ToBool,
		OP_I32_TO_U32_R:  handleI32ToU32,
		OP_U32_TO_I32_R:  handleU32ToI32,
		OP_F64_TO_U32_R:  handleF64ToU32,
		OP_U32_TO_F64_R:  handleU32ToF64,
		OP_I32_TO_U64_R:  handleI32ToU64,
		OP_I64_TO_U64_R:  handleI64ToU64,
		OP_U64_TO_I32_R:  handleU64ToI32,
		OP_U64_TO_I64_R:  handleU64ToI64,
		OP_U32_TO_U64_R:  handleU32ToU64,
		OP_U64_TO_U32_R:  handleU64ToU32,
		OP_F64_TO_U64_R:  handleF64ToU64,
		OP_U64_TO_F64_R:  handleU64ToF64,

		OP_CONCAT_R:       handleConcat,
		OP_TO_STRING_R:    handleToString,
		OP_STRING_INDEX_R: handleStringIndex,
		OP_STRING_GET_R:   handleStringGet,

		OP_MAKE_ARRAY_R:   handleMakeArray,
		OP_ENUM_NEW_R:     handleEnumNew,
		OP_ENUM_TAG_EQ_R:  handleEnumTagEq,
		OP_ENUM_PAYLOAD_R: handleEnumPayload,
		OP_ARRAY_GET_R:    handleArrayGet,
		OP_ARRAY_SET_R:    handleArraySet,
		OP_ARRAY_LEN_R:    handleArrayLen,
		OP_ARRAY_PUSH_R:   handleArrayPush,
		OP_ARRAY_POP_R:    handleArrayPop,
		OP_ARRAY_SORTED_R: handleArraySorted,
		OP_ARRAY_SLICE_R:  handleArraySlice,

		OP_TRY_BEGIN:             handleTryBegin,
		OP_TRY_END:               handleTryEnd,
		OP_THROW:                 handleThrow,
		OP_JUMP:                  handleJump,
		OP_JUMP_IF_R:             handleJumpIf,
		OP_JUMP_IF_NOT_R:         handleJumpIfNot,
		OP_JUMP_IF_NOT_I32_TYPED: handleJumpIfNotI32Typed,
		OP_LOOP:                  handleLoop,
		OP_GET_ITER_R:            handleGetIter,
		OP_ITER_NEXT_R:           handleIterNext,

		OP_CALL_R:        handleCall,
		OP_CALL_NATIVE_R: handleCallNative,
		OP_TAIL_CALL_R:   handleTailCall,
		OP_RETURN_R:      handleReturn,
		OP_RETURN_VOID:   handleReturnVoid,

		OP_LOAD_FRAME:       handleLoadFrame,
		OP_STORE_FRAME:      handleStoreFrame,
		OP_ENTER_FRAME:      handleEnterFrame,
		OP_EXIT_FRAME:       handleExitFrame,
		OP_MOVE_FRAME:       handleMoveFrame,
		OP_LOAD_SPILL:       handleLoadSpill,
		OP_STORE_SPILL:      handleStoreSpill,
		OP_LOAD_MODULE:      handleLoadModule,
		OP_STORE_MODULE:     handleStoreModule,
		OP_LOAD_MODULE_NAME: handleLoadModuleName,
		OP_SWITCH_MODULE:    handleSwitchModule,
		OP_EXPORT_VAR:       handleExportVar,
		OP_IMPORT_VAR:       handleImportVar,

		OP_CLOSURE_R:       handleClosure,
		OP_GET_UPVALUE_R:   handleGetUpvalue,
		OP_SET_UPVALUE_R:   handleSetUpvalue,
		OP_CLOSE_UPVALUE_R: handleCloseUpvalue,

		OP_PARSE_INT_R:       handleParseInt,
		OP_PARSE_FLOAT_R:     handleParseFloat,
		OP_TYPE_OF_R:         handleTypeOf,
		OP_IS_TYPE_R:         handleIsType,
		OP_INPUT_R:           handleInput,
		OP_RANGE_R:           handleRange,
		OP_PRINT_MULTI_R:     handlePrintMulti,
		OP_PRINT_R:           handlePrint,
		OP_PRINT_MULTI_SEP_R: handlePrintMultiSep,
		OP_PRINT_NO_NL_R:     handlePrintNoNL,

		OP_JUMP_SHORT:        handleJumpShort,
		OP_JUMP_BACK_SHORT:   handleJumpBackShort,
		OP_JUMP_IF_NOT_SHORT: handleJumpIfNotShort,
		OP_LOOP_SHORT:        handleLoopShort,
		OP_BRANCH_TYPED:      handleBranchTyped,

		OP_ADD_I32_TYPED: typedArithI32(typedAddI32),
		OP_SUB_I32_TYPED: typedArithI32(typedSubI32),
		OP_MUL_I32_TYPED: typedArithI32(typedMulI32),
		OP_DIV_I32_TYPED: typedArithI32(typedDivI32),
		OP_MOD_I32_TYPED: typedArithI32(typedModI32),

		OP_ADD_I64_TYPED: typedArithI64(typedAddI64),
		OP_SUB_I64_TYPED: typedArithI64(typedSubI64),
		OP_MUL_I64_TYPED: typedArithI64(typedMulI64),
		OP_DIV_I64_TYPED: typedArithI64(typedDivI64),
		OP_MOD_I64_TYPED: typedArithI64(typedModI64),

		OP_ADD_F64_TYPED: typedArithF64(func(a, b float64) float64 { return a + b }),
		OP_SUB_F64_TYPED: typedArithF64(func(a, b float64) float64 { return a - b }),
		OP_MUL_F64_TYPED: typedArithF64(func(a, b float64) float64 { return a * b }),
		OP_DIV_F64_TYPED: typedArithF64(func(a, b float64) float64 { return a / b }),
		OP_MOD_F64_TYPED: typedArithF64(math.Mod),

		OP_ADD_U32_TYPED: typedArithU32(typedAddU32),
		OP_SUB_U32_TYPED: typedArithU32(typedSubU32),
		OP_MUL_U32_TYPED: typedArithU32(typedMulU32),
		OP_DIV_U32_TYPED: typedArithU32(typedDivU32),
		OP_MOD_U32_TYPED: typedArithU32(typedModU32),

		OP_ADD_U64_TYPED: typedArithU64(typedAddU64),
		OP_SUB_U64_TYPED: typedArithU64(typedSubU64),
		OP_MUL_U64_TYPED: typedArithU64(typedMulU64),
		OP_DIV_U64_TYPED: typedArithU64(typedDivU64),
		OP_MOD_U64_TYPED: typedArithU64(typedModU64),

		OP_LT_I32_TYPED: typedCmpI32(func(a, b int32) bool { return a < b }),
		OP_LE_I32_TYPED: typedCmpI32(func(a, b int32) bool { return a <= b }),
		OP_GT_I32_TYPED: typedCmpI32(func(a, b int32) bool { return a > b }),
		OP_GE_I32_TYPED: typedCmpI32(func(a, b int32) bool { return a >= b }),

		OP_LT_I64_TYPED: typedCmpI64(func(a, b int64) bool { return a < b }),
		OP_LE_I64_TYPED: typedCmpI64(func(a, b int64) bool { return a <= b }),
		OP_GT_I64_TYPED: typedCmpI64(func(a, b int64) bool { return a > b }),
		OP_GE_I64_TYPED: typedCmpI64(func(a, b int64) bool { return a >= b }),

		OP_LT_F64_TYPED: typedCmpF64(func(a, b float64) bool { return a < b }),
		OP_LE_F64_TYPED: typedCmpF64(func(a, b float64) bool { return a <= b }),
		OP_GT_F64_TYPED: typedCmpF64(func(a, b float64) bool { return a > b }),
		OP_GE_F64_TYPED: typedCmpF64(func(a, b float64) bool { return a >= b }),

		OP_LT_U32_TYPED: typedCmpU32(func(a, b uint32) bool { return a < b }),
		OP_LE_U32_TYPED: typedCmpU32(func(a, b uint32) bool { return a <= b }),
		OP_GT_U32_TYPED: typedCmpU32(func(a, b uint32) bool { return a > b }),
		OP_GE_U32_TYPED: typedCmpU32(func(a, b uint32) bool { return a >= b }),

		OP_LT_U64_TYPED: typedCmpU64(func(a, b uint64) bool { return a < b }),
		OP_LE_U64_TYPED: typedCmpU64(func(a, b uint64) bool { return a <= b }),
		OP_GT_U64_TYPED: typedCmpU64(func(a, b uint64) bool { return a > b }),
		OP_GE_U64_TYPED: typedCmpU64(func(a, b uint64) bool { return a >= b }),

		OP_LOAD_I32_CONST: handleLoadI32Const,
		OP_LOAD_I64_CONST: handleLoadI64Const,
		OP_LOAD_F64_CONST: handleLoadF64Const,
		OP_MOVE_I32:       handleMoveI32,
		OP_MOVE_I64:       handleMoveI64,
		OP_MOVE_F64:       handleMoveF64,

		OP_TIME_STAMP: handleTimeStamp,

		OP_ADD_I32_IMM: fusedImmI32(typedAddI32),
		OP_SUB_I32_IMM: fusedImmI32(typedSubI32),
		OP_MUL_I32_IMM: fusedImmI32(typedMulI32),
		OP_CMP_I32_IMM: handleCmpI32Imm,

		OP_LOAD_ADD_I32: handleLoadAddI32,
		OP_LOAD_CMP_I32: handleLoadCmpI32,

		OP_INC_CMP_JMP: handleIncCmpJmp,
		OP_DEC_CMP_JMP: handleDecCmpJmp,

		OP_MUL_ADD_I32:    handleMulAddI32,
		OP_LOAD_INC_STORE: handleLoadIncStore,

		OP_IMPORT_R:  handleImport,
		OP_GC_PAUSE:  handleGCPause,
		OP_GC_RESUME: handleGCResume,
		OP_NEG_I32_R: handleNegI32,

		OP_LOAD_CONST_EXT: handleLoadConstExt,
		OP_MOVE_EXT:       handleMoveExt,
		OP_STORE_EXT:      handleStoreExt,
		OP_LOAD_EXT:       handleLoadExt,

		OP_HALT: handleHalt,
	}
}

// runTable is the table-driven interpreter loop.
func (vm *VM) runTable() execStatus {
	profiling := vm.options.Profile
	tracing := vm.options.Trace

	for {
		if vm.pc >= len(vm.chunk.Code) {
			return statusHalt
		}
		vm.opStart = vm.pc
		op := OpCode(vm.readByte())
		vm.instructionCount++

		if profiling {
			vm.profile.InstructionCounts[op]++
			vm.profile.TotalCycles++
		}
		if tracing {
			vm.traceInstruction()
		}

		if op >= OP_CODE_COUNT || opTable[op] == nil {
			return vm.runtimeError(ERROR_RUNTIME, "unknown opcode %d at offset %d", op, vm.opStart)
		}
		if status := opTable[op](vm); status != statusNext {
			return status
		}
	}
}
