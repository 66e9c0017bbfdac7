package vm

// CallFrame records everything needed to resume the caller: return address,
// the chunk being executed, where the result lands, and a snapshot of the
// caller's frame and temp windows. The live windows themselves stay in the
// RegisterFile; CALL_R saves them here and RETURN_R restores them.
type CallFrame struct {
	ReturnPC      int
	PreviousChunk *Chunk

	ParamBase     uint16
	ResultReg     uint16
	FunctionIndex uint16
	ModuleID      uint8

	SavedRegisters [SAVED_REGISTERS]Value
}

// ParamBaseFor returns the first register id a callee's arguments occupy.
// Arguments fill [base, base+arity) and slot 0 of the frame window stays
// reserved for the callee's closure.
func ParamBaseFor(arity int) uint16 {
	base := FRAME_REG_START - arity
	if base < 1 {
		base = 1
	}
	return uint16(base)
}

// TRY_CATCH_REGISTER_NONE marks a handler with no catch binding.
const TRY_CATCH_REGISTER_NONE = 0xFFFF

// TryFrame is one entry of the handler stack. Unwinding restores the frame
// depth recorded at TRY_BEGIN before jumping to the handler.
type TryFrame struct {
	HandlerPC  int
	Chunk      *Chunk
	CatchReg   uint16
	FrameDepth int
}
