package main

import (
	"orus/internal/vm"
)

// The built-in programs are assembled by hand against the chunk API. Each
// one leans on a different part of the interpreter so the trace, profile,
// and disassembly flags have something real to chew on.

var programs = map[string]func(*vm.VM) *vm.Chunk{
	"countloop": buildCountLoop,
	"fib":       buildFib,
	"counter":   buildCounter,
	"trycatch":  buildTryCatch,
	"strings":   buildStrings,
}

var programOrder = []string{"countloop", "fib", "counter", "trycatch", "strings"}

var programHelp = map[string]string{
	"countloop": "typed fused counting loop, prints the sum",
	"fib":       "recursive fib(25) through the call protocol",
	"counter":   "closure capturing a counter, prints 1 2 3",
	"trycatch":  "throws a value and catches it",
	"strings":   "rope concatenation and number formatting",
}

// asm is a thin emission helper carrying the source position along.
type asm struct {
	c    *vm.Chunk
	file uint16
	line int32
}

func newAsm(name string) *asm {
	c := vm.NewChunk()
	return &asm{c: c, file: c.AddFile(name), line: 1}
}

func (a *asm) op(o vm.OpCode, operands ...byte) {
	a.c.WriteOp(o, a.line, 1, a.file)
	for _, b := range operands {
		a.c.WriteByte(b, a.line, 1, a.file)
	}
	a.line++
}

func (a *asm) u16(v uint16) { a.c.WriteU16(v, a.line, 1, a.file) }
func (a *asm) i32(v int32)  { a.c.WriteI32(v, a.line, 1, a.file) }

func (a *asm) k(v vm.Value) uint16 {
	idx, err := a.c.AddConstant(v)
	if err != nil {
		panic(err)
	}
	return idx
}

func (a *asm) loadI32(reg byte, v int32) {
	a.op(vm.OP_LOAD_I32_CONST, reg)
	a.i32(v)
}

func (a *asm) loadConst(reg byte, k uint16) {
	a.op(vm.OP_LOAD_CONST, reg)
	a.u16(k)
}

// jumpIfNot emits the branch and returns the operand offset for patch.
func (a *asm) jumpIfNot(cond byte) int {
	a.op(vm.OP_JUMP_IF_NOT_R, cond)
	pos := len(a.c.Code)
	a.u16(0xFFFF)
	return pos
}

func (a *asm) patch(pos int) {
	if err := a.c.PatchJump(pos); err != nil {
		panic(err)
	}
}

// incCmpJmp emits the fused loop latch jumping back to loopStart. The
// offset operand is a signed 16-bit delta, negative for back edges.
func (a *asm) incCmpJmp(incReg, limitReg byte, loopStart int) {
	opOffset := len(a.c.Code)
	a.op(vm.OP_INC_CMP_JMP, incReg, limitReg)
	back := loopStart - (len(a.c.Code) + 2)
	a.u16(uint16(back))
	a.c.MarkMonotonicRange(opOffset, opOffset+1)
}

// buildCountLoop sums 0..65534 through the typed bank and the fused latch.
func buildCountLoop(machine *vm.VM) *vm.Chunk {
	a := newAsm("countloop.orus")

	a.loadI32(0, 0)     // sum
	a.loadI32(1, 0)     // i
	a.loadI32(2, 65535) // limit

	loopStart := len(a.c.Code)
	a.op(vm.OP_ADD_I32_TYPED, 0, 0, 1)
	a.incCmpJmp(1, 2, loopStart)

	a.op(vm.OP_PRINT_R, 0)
	a.op(vm.OP_HALT)
	return a.c
}

// buildFib assembles a recursive fib and calls it with 25. The parameter
// lands just below the frame window, so the body stashes it into a frame
// slot that survives the nested calls.
func buildFib(machine *vm.VM) *vm.Chunk {
	fb := newAsm("fib.orus")

	const paramReg = 255 // ParamBaseFor(1)

	fb.op(vm.OP_STORE_FRAME, 1, paramReg)
	fb.loadI32(10, 2)
	fb.op(vm.OP_LT_I32_R, 11, paramReg, 10)
	toRecurse := fb.jumpIfNot(11)
	fb.op(vm.OP_RETURN_R, paramReg)
	fb.patch(toRecurse)

	// fib(n-1)
	fb.op(vm.OP_LOAD_FRAME, 12, 1)
	fb.loadI32(13, 1)
	fb.op(vm.OP_SUB_I32_R, 14, 12, 13)
	fb.op(vm.OP_CALL_R, 5, 14, 1, 17)
	fb.op(vm.OP_STORE_FRAME, 2, 17)

	// fib(n-2)
	fb.op(vm.OP_LOAD_FRAME, 12, 1)
	fb.loadI32(13, 2)
	fb.op(vm.OP_SUB_I32_R, 14, 12, 13)
	fb.op(vm.OP_CALL_R, 5, 14, 1, 18)

	fb.op(vm.OP_LOAD_FRAME, 19, 2)
	fb.op(vm.OP_ADD_I32_R, 20, 19, 18)
	fb.op(vm.OP_RETURN_R, 20)

	fn := machine.NewFunctionObj(1, 0, 0, fb.c, "fib")
	machine.RegisterFunction(fn)

	a := newAsm("main.orus")
	kFib := a.k(vm.BoxFunctionObj(fn))
	a.loadConst(5, kFib)
	a.loadI32(6, 25)
	a.op(vm.OP_CALL_R, 5, 6, 1, 7)
	a.op(vm.OP_PRINT_R, 7)
	a.op(vm.OP_HALT)
	return a.c
}

// buildCounter exercises closures: make_counter keeps its count in a frame
// slot, the inner function captures it as an upvalue and bumps it per call.
func buildCounter(machine *vm.VM) *vm.Chunk {
	inner := newAsm("counter.orus")
	inner.op(vm.OP_GET_UPVALUE_R, 10, 0)
	inner.op(vm.OP_INC_I32_R, 10)
	inner.op(vm.OP_SET_UPVALUE_R, 0, 10)
	inner.op(vm.OP_RETURN_R, 10)
	innerFn := machine.NewFunctionObj(0, 1, 0, inner.c, "increment")
	machine.RegisterFunction(innerFn)

	maker := newAsm("counter.orus")
	kInner := maker.k(vm.BoxFunctionObj(innerFn))
	maker.loadI32(10, 0)
	maker.op(vm.OP_STORE_FRAME, 1, 10)
	maker.loadConst(11, kInner)
	maker.op(vm.OP_CLOSURE_R, 12, 11, 1, 1, 1) // capture local frame slot 1
	maker.op(vm.OP_RETURN_R, 12)
	makerFn := machine.NewFunctionObj(0, 0, 0, maker.c, "make_counter")
	machine.RegisterFunction(makerFn)

	a := newAsm("main.orus")
	kMaker := a.k(vm.BoxFunctionObj(makerFn))
	a.loadConst(5, kMaker)
	a.op(vm.OP_CALL_R, 5, 0, 0, 6)
	for i := 0; i < 3; i++ {
		a.op(vm.OP_CALL_R, 6, 0, 0, 7)
		a.op(vm.OP_PRINT_R, 7)
	}
	a.op(vm.OP_HALT)
	return a.c
}

// buildTryCatch throws a plain string; the handler receives it wrapped in
// an error object bound to the catch register.
func buildTryCatch(machine *vm.VM) *vm.Chunk {
	a := newAsm("trycatch.orus")
	kMsg := a.k(vm.BoxStringObj(machine.InternString("boom")))

	a.op(vm.OP_TRY_BEGIN)
	a.u16(8) // catch register
	handler := len(a.c.Code)
	a.u16(0xFFFF)

	a.loadConst(9, kMsg)
	a.op(vm.OP_THROW, 9)

	a.patch(handler)
	a.op(vm.OP_PRINT_R, 8)
	a.op(vm.OP_HALT)
	return a.c
}

// buildStrings prints "x=42, y=true" through ropes and to_string.
func buildStrings(machine *vm.VM) *vm.Chunk {
	a := newAsm("strings.orus")
	kx := a.k(vm.BoxStringObj(machine.InternString("x=")))
	ky := a.k(vm.BoxStringObj(machine.InternString(", y=")))

	a.loadConst(0, kx)
	a.loadI32(1, 42)
	a.op(vm.OP_TO_STRING_R, 2, 1)
	a.op(vm.OP_CONCAT_R, 3, 0, 2)
	a.loadConst(4, ky)
	a.op(vm.OP_CONCAT_R, 5, 3, 4)
	a.op(vm.OP_LOAD_TRUE, 6)
	a.op(vm.OP_TO_STRING_R, 7, 6)
	a.op(vm.OP_CONCAT_R, 8, 5, 7)
	a.op(vm.OP_PRINT_R, 8)
	a.op(vm.OP_HALT)
	return a.c
}
