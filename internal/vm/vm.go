package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"
)

// InterpretResult is the outcome of running a chunk.
type InterpretResult int

const (
	INTERPRET_OK InterpretResult = iota
	INTERPRET_COMPILE_ERROR
	INTERPRET_RUNTIME_ERROR
)

// ArithMode selects overflow behavior for the signed and unsigned integer
// arithmetic opcodes.
type ArithMode int

const (
	// ARITH_SAFE raises a ValueError on overflow.
	ARITH_SAFE ArithMode = iota
	// ARITH_FAST wraps silently.
	ARITH_FAST
)

// RuntimeOptions are the toggles the dispatcher consults. Zero value means
// all fast paths on, table dispatch, safe arithmetic.
type RuntimeOptions struct {
	Trace                    bool
	TraceTypedFallbacks      bool
	DisableBoolBranchFastpath bool
	DisableIncTypedFastpath  bool
	ForceBoxedIterators      bool
	EnableLICMTypedGuards    bool
	Profile                  bool

	// Dispatch picks the interpreter loop: "table" or "switch".
	Dispatch string

	GCThreshold uint64
	ArithMode   ArithMode
}

func (o *RuntimeOptions) enabledFlags() []string {
	flags := []string{}
	if o.Trace {
		flags = append(flags, "trace")
	}
	if o.TraceTypedFallbacks {
		flags = append(flags, "trace_typed_fallbacks")
	}
	if o.DisableBoolBranchFastpath {
		flags = append(flags, "disable_bool_branch_fastpath")
	}
	if o.DisableIncTypedFastpath {
		flags = append(flags, "disable_inc_typed_fastpath")
	}
	if o.ForceBoxedIterators {
		flags = append(flags, "force_boxed_iterators")
	}
	if o.EnableLICMTypedGuards {
		flags = append(flags, "enable_licm_typed_guards")
	}
	if o.Profile {
		flags = append(flags, "profile")
	}
	if o.ArithMode == ARITH_FAST {
		flags = append(flags, "arith_fast")
	}
	return flags
}

// NativeFn is the signature of a builtin. A non-nil error aborts with a
// runtime error carrying the current source location.
type NativeFn func(vm *VM, args []Value) (Value, error)

type NativeFunction struct {
	Name  string
	Arity int // -1 means variadic
	Fn    NativeFn
}

// VM executes register bytecode. Not safe for concurrent use; one goroutine
// owns a VM for its whole lifetime.
type VM struct {
	regs      *RegisterFile
	typedRegs TypedRegisters

	typedIterators [TYPED_REGISTER_COUNT]TypedIteratorDescriptor

	frames     [VM_MAX_CALL_FRAMES]CallFrame
	frameCount int

	chunk *Chunk
	pc    int
	// opStart is the offset of the opcode being executed, for diagnostics.
	opStart int

	functions     [GLOBAL_REGISTERS]*ObjFunction
	functionCount int

	// Declared user globals. LOAD_GLOBAL and STORE_GLOBAL only accept
	// indexes below variableCount; the declared type drives the one
	// permitted store coercion.
	globalNames   [GLOBAL_REGISTERS]string
	globalTypes   [GLOBAL_REGISTERS]ValueType
	variableCount int

	natives     [MAX_NATIVES]NativeFunction
	nativeCount int
	nativeIndex map[string]uint8

	tryFrames [TRY_MAX]TryFrame
	tryCount  int
	lastError Value

	openUpvalues *ObjUpvalue

	strings *stringTable
	gc      gcState

	branchCache LoopBranchCache
	profile     *VMProfile
	options     RuntimeOptions

	instructionCount uint64
	startTime        time.Time

	stdin  *bufio.Reader
	stdout io.Writer

	// callScratch stages arguments across window swaps.
	callScratch [FRAME_REGISTERS]Value

	pendingError *RuntimeError
}

// NewVM builds a VM with the given runtime options and registers the
// builtin natives.
func NewVM(options RuntimeOptions) *VM {
	vm := &VM{
		regs:        newRegisterFile(),
		strings:     newStringTable(),
		options:     options,
		profile:     newVMProfile(),
		nativeIndex: make(map[string]uint8),
		stdin:       bufio.NewReader(os.Stdin),
		stdout:      os.Stdout,
		startTime:   time.Now(),
	}
	vm.lastError = NilValue()
	vm.gc.nextGC = options.GCThreshold
	if vm.gc.nextGC == 0 {
		vm.gc.nextGC = GC_DEFAULT_THRESHOLD
	}
	vm.registerBuiltins()
	return vm
}

// SetOutput redirects print and profile output, mainly for tests.
func (vm *VM) SetOutput(w io.Writer) { vm.stdout = w }

// SetInput redirects the input builtin.
func (vm *VM) SetInput(r io.Reader) { vm.stdin = bufio.NewReader(r) }

// Free releases the heap. The VM must not be used afterwards.
func (vm *VM) Free() {
	vm.freeAllObjects()
	vm.chunk = nil
	vm.frameCount = 0
	vm.tryCount = 0
	vm.openUpvalues = nil
}

// LastError exposes the most recent runtime error value, caught or not.
func (vm *VM) LastError() Value { return vm.lastError }

// Profile exposes the accumulated profiling counters.
func (vm *VM) Profile() *VMProfile { return vm.profile }

// NewFunctionObj allocates a named function object for embedders and
// emitters.
func (vm *VM) NewFunctionObj(arity, upvalueCount, start int, chunk *Chunk, name string) *ObjFunction {
	vm.PauseGC()
	defer vm.ResumeGC()
	return vm.newFunction(arity, upvalueCount, start, chunk, vm.newString(name))
}

// RegisterFunction installs a function object in the global function table
// and returns its index.
func (vm *VM) RegisterFunction(fn *ObjFunction) uint16 {
	vm.functions[vm.functionCount] = fn
	vm.functionCount++
	return uint16(vm.functionCount - 1)
}

// DefineNative installs a builtin under the next native index.
func (vm *VM) DefineNative(name string, arity int, fn NativeFn) uint8 {
	idx := uint8(vm.nativeCount)
	vm.natives[idx] = NativeFunction{Name: name, Arity: arity, Fn: fn}
	vm.nativeIndex[name] = idx
	vm.nativeCount++
	return idx
}

// NativeIndex resolves a builtin name for emitters.
func (vm *VM) NativeIndex(name string) (uint8, bool) {
	idx, ok := vm.nativeIndex[name]
	return idx, ok
}

// DeclareGlobal installs a named global with its declared type and returns
// the slot index. The front end declares globals in slot order before
// handing over the chunk.
func (vm *VM) DeclareGlobal(name string, typ ValueType) uint8 {
	idx := uint8(vm.variableCount)
	vm.globalNames[idx] = name
	vm.globalTypes[idx] = typ
	vm.variableCount++
	return idx
}

// VariableCount reports how many globals have been declared.
func (vm *VM) VariableCount() int { return vm.variableCount }

// InternString returns the canonical string object for s.
func (vm *VM) InternString(s string) *ObjString { return vm.newString(s) }

// Global reads a global register, reconciling any typed shadow first.
func (vm *VM) Global(id uint8) Value {
	vm.typedRegs.Reconcile(id, &vm.regs.Globals[id])
	return vm.regs.Globals[id]
}

// SetGlobal writes a global register and invalidates its typed shadow.
func (vm *VM) SetGlobal(id uint8, v Value) {
	vm.regs.Globals[id] = v
	vm.typedRegs.invalidate(id)
	vm.branchCache.BumpGuard(uint16(id))
}

// ============================================================================
// Interpretation
// ============================================================================

// Interpret executes chunk from offset 0 until HALT, an implicit fall-off,
// or an unhandled runtime error.
func (vm *VM) Interpret(chunk *Chunk) (InterpretResult, error) {
	vm.chunk = chunk
	vm.pc = 0
	vm.pendingError = nil
	tickStart := time.Now()

	var status execStatus
	if vm.options.Dispatch == "switch" {
		status = vm.runSwitch()
	} else {
		status = vm.runTable()
	}

	vm.profile.TotalInstructions += vm.instructionCount
	vm.profile.LastExecutionTime = time.Since(tickStart)
	vm.instructionCount = 0

	if status == statusError {
		err := vm.pendingError
		vm.pendingError = nil
		if err == nil {
			err = &RuntimeError{Kind: ERROR_RUNTIME, Message: "unknown runtime error"}
		}
		return INTERPRET_RUNTIME_ERROR, err
	}
	return INTERPRET_OK, nil
}

// execStatus steers the dispatch loop from inside a handler.
type execStatus uint8

const (
	statusNext execStatus = iota
	statusHalt
	statusError
)

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.pc]
	vm.pc++
	return b
}

func (vm *VM) readU16() uint16 {
	v := vm.chunk.ReadU16(vm.pc)
	vm.pc += 2
	return v
}

func (vm *VM) readI32() int32 {
	v := vm.chunk.ReadI32(vm.pc)
	vm.pc += 4
	return v
}

// reg resolves a one-byte operand, reconciling the typed shadow so boxed
// reads always observe typed writes.
func (vm *VM) reg(id uint8) *Value {
	slot := &vm.regs.Globals[id]
	vm.typedRegs.Reconcile(id, slot)
	return slot
}

// regWide resolves a two-byte operand against the full tier map.
func (vm *VM) regWide(id uint16) *Value {
	if id < TYPED_REGISTER_COUNT {
		return vm.reg(uint8(id))
	}
	return vm.regs.Get(id)
}

// setReg stores through a one-byte operand and invalidates its shadow.
// One-byte ids always fall inside the typed window, so the iterator
// descriptor drops unconditionally.
func (vm *VM) setReg(id uint8, v Value) {
	vm.regs.Globals[id] = v
	vm.typedRegs.invalidate(id)
	vm.branchCache.BumpGuard(uint16(id))
	vm.typedIterators[id].clear()
}

func (vm *VM) setRegWide(id uint16, v Value) {
	if id < TYPED_REGISTER_COUNT {
		vm.setReg(uint8(id), v)
		return
	}
	vm.regs.Set(id, v)
}

// ============================================================================
// Runtime errors and unwinding
// ============================================================================

func (vm *VM) currentLocation() (string, int, int) {
	if vm.chunk == nil {
		return "", 0, 0
	}
	return vm.chunk.FileAt(vm.opStart),
		int(vm.chunk.LineAt(vm.opStart)),
		int(vm.chunk.ColumnAt(vm.opStart))
}

// runtimeError raises an error at the current instruction: it builds the
// error object, records it in lastError, and either unwinds to the innermost
// try handler or aborts interpretation.
func (vm *VM) runtimeError(kind ErrorKind, format string, args ...interface{}) execStatus {
	file, line, column := vm.currentLocation()

	vm.PauseGC()
	msg := vm.newString(fmt.Sprintf(format, args...))
	errObj := vm.newErrorObj(kind, msg, file, line, column)
	vm.ResumeGC()

	return vm.throwValue(BoxErrorObj(errObj))
}

// throwValue is the shared tail of THROW and runtimeError.
func (vm *VM) throwValue(errVal Value) execStatus {
	vm.lastError = errVal

	if vm.tryCount == 0 {
		if IsError(errVal) {
			vm.pendingError = runtimeErrorFromObj(AsError(errVal))
		} else {
			file, line, column := vm.currentLocation()
			vm.pendingError = &RuntimeError{
				Kind:    ERROR_RUNTIME,
				Message: ToString(errVal),
				Location: SourceLocation{File: file, Line: int32(line), Column: int32(column)},
			}
		}
		return statusError
	}

	vm.tryCount--
	tf := &vm.tryFrames[vm.tryCount]

	// Unwind call frames opened after TRY_BEGIN, restoring each caller's
	// windows on the way down.
	for vm.frameCount > tf.FrameDepth {
		vm.frameCount--
		f := &vm.frames[vm.frameCount]
		vm.closeWindowUpvalues()
		vm.typedRegs.invalidateAll()
		vm.regs.restoreWindow(&f.SavedRegisters)
		vm.chunk = f.PreviousChunk
	}

	vm.chunk = tf.Chunk
	vm.pc = tf.HandlerPC
	if tf.CatchReg != TRY_CATCH_REGISTER_NONE {
		vm.setRegWide(tf.CatchReg, errVal)
	}
	return statusNext
}

// ============================================================================
// Calls
// ============================================================================

// calleeOf extracts the function behind a callable value.
func calleeOf(v Value) (*ObjFunction, *ObjClosure) {
	switch v.Type {
	case VAL_FUNCTION:
		return AsFunction(v), nil
	case VAL_CLOSURE:
		cl := AsClosure(v)
		return cl.Function, cl
	default:
		return nil, nil
	}
}

// resolveCallee maps a callable value to its function. An I32 callee is an
// index into the registered function table; the resolved function object is
// what lands in frame slot 0.
func (vm *VM) resolveCallee(v Value) (Value, *ObjFunction, *ObjClosure) {
	if IsI32(v) {
		idx := int(AsI32(v))
		if idx < 0 || idx >= vm.functionCount {
			return v, nil, nil
		}
		fn := vm.functions[idx]
		return BoxFunctionObj(fn), fn, nil
	}
	fn, cl := calleeOf(v)
	return v, fn, cl
}

func (vm *VM) callValue(callee Value, firstArg uint16, argCount int, resultReg uint16) execStatus {
	callee, fn, _ := vm.resolveCallee(callee)
	if fn == nil {
		return vm.runtimeError(ERROR_TYPE, "can only call functions, got %s", ValueTypeName(callee))
	}
	// Arity mismatch and frame exhaustion are not errors: the caller gets
	// false in its result register and execution continues.
	if argCount != fn.Arity || vm.frameCount >= VM_MAX_CALL_FRAMES {
		vm.setRegWide(resultReg, BoxBool(false))
		return statusNext
	}
	if argCount > FRAME_REGISTERS {
		return vm.runtimeError(ERROR_ARGUMENT, "too many arguments: %d", argCount)
	}

	// Read args before the windows move.
	for i := 0; i < argCount; i++ {
		vm.callScratch[i] = *vm.regWide(firstArg + uint16(i))
	}

	vm.typedRegs.ReconcileAll(vm.regs.Get)

	frame := &vm.frames[vm.frameCount]
	vm.regs.saveWindow(&frame.SavedRegisters)
	frame.ReturnPC = vm.pc
	frame.PreviousChunk = vm.chunk
	frame.ResultReg = resultReg
	frame.ParamBase = ParamBaseFor(fn.Arity)
	frame.ModuleID = vm.regs.Modules.Current()
	vm.frameCount++

	vm.regs.clearFrameWindow()
	vm.typedRegs.invalidateAll()

	// Slot 0 of the frame window carries the callable; upvalue access
	// resolves through it.
	vm.regs.Frame[0] = callee

	base := frame.ParamBase
	for i := 0; i < argCount; i++ {
		vm.regs.Set(base+uint16(i), vm.callScratch[i])
	}

	if vm.options.Profile && fn.Name != nil {
		vm.profile.FunctionCalls[fn.Name.Chars]++
	}

	if fn.Chunk != nil {
		vm.chunk = fn.Chunk
	}
	vm.pc = fn.Start
	return statusNext
}

// tailCall replaces the current frame instead of pushing one. Arguments are
// staged through a scratch buffer so overlapping source and destination
// registers cannot tear.
func (vm *VM) tailCall(callee Value, firstArg uint16, argCount int, resultReg uint16) execStatus {
	callee, fn, _ := vm.resolveCallee(callee)
	if fn == nil {
		return vm.runtimeError(ERROR_TYPE, "can only call functions, got %s", ValueTypeName(callee))
	}
	// Same false-and-continue contract as callValue.
	if argCount != fn.Arity {
		vm.setRegWide(resultReg, BoxBool(false))
		return statusNext
	}
	if argCount > FRAME_REGISTERS {
		return vm.runtimeError(ERROR_ARGUMENT, "too many arguments: %d", argCount)
	}

	for i := 0; i < argCount; i++ {
		vm.callScratch[i] = *vm.regWide(firstArg + uint16(i))
	}

	vm.closeWindowUpvalues()
	vm.regs.clearFrameWindow()
	vm.typedRegs.invalidateAll()

	vm.regs.Frame[0] = callee

	dst := ParamBaseFor(fn.Arity)
	if vm.frameCount > 0 {
		vm.frames[vm.frameCount-1].ParamBase = dst
	}
	for i := 0; i < argCount; i++ {
		vm.regs.Set(dst+uint16(i), vm.callScratch[i])
	}

	if fn.Chunk != nil {
		vm.chunk = fn.Chunk
	}
	vm.pc = fn.Start
	return statusNext
}

// returnFromCall pops the current frame and delivers result to the caller's
// result register. Returning from the top level halts.
func (vm *VM) returnFromCall(result Value) execStatus {
	vm.closeWindowUpvalues()

	if vm.frameCount == 0 {
		return statusHalt
	}

	vm.frameCount--
	f := &vm.frames[vm.frameCount]
	vm.typedRegs.invalidateAll()
	vm.regs.restoreWindow(&f.SavedRegisters)
	vm.chunk = f.PreviousChunk
	vm.pc = f.ReturnPC
	vm.setRegWide(f.ResultReg, result)
	return statusNext
}

func (vm *VM) callNative(index uint8, firstArg uint16, argCount int, resultReg uint16) execStatus {
	if int(index) >= vm.nativeCount {
		return vm.runtimeError(ERROR_NAME, "unknown native function %d", index)
	}
	native := &vm.natives[index]
	if native.Arity >= 0 && argCount != native.Arity {
		return vm.runtimeError(ERROR_ARGUMENT, "%s expected %d arguments but got %d", native.Name, native.Arity, argCount)
	}

	args := make([]Value, argCount)
	for i := 0; i < argCount; i++ {
		args[i] = *vm.regWide(firstArg + uint16(i))
	}

	result, err := native.Fn(vm, args)
	if err != nil {
		if re, ok := err.(*nativeError); ok {
			return vm.runtimeError(re.kind, "%s", re.message)
		}
		return vm.runtimeError(ERROR_RUNTIME, "%s: %s", native.Name, err.Error())
	}
	vm.setRegWide(resultReg, result)
	return statusNext
}

// nativeError lets builtins pick their error kind.
type nativeError struct {
	kind    ErrorKind
	message string
}

func (e *nativeError) Error() string { return e.message }

func newNativeError(kind ErrorKind, format string, args ...interface{}) error {
	return &nativeError{kind: kind, message: fmt.Sprintf(format, args...)}
}

// ============================================================================
// Upvalues
// ============================================================================

// captureUpvalue finds or creates the open upvalue for a register slot. The
// open list is kept sorted by slot address descending so the scan stops
// early.
func (vm *VM) captureUpvalue(slot *Value) *ObjUpvalue {
	addr := uintptr(unsafe.Pointer(slot))

	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uintptr(unsafe.Pointer(uv.Location)) > addr {
		prev = uv
		uv = uv.NextUpvalue
	}
	if uv != nil && uv.Location == slot {
		return uv
	}

	created := vm.newUpvalue(slot)
	created.NextUpvalue = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextUpvalue = created
	}
	return created
}

// closeUpvaluesFrom closes every open upvalue at or above the given slot
// address.
func (vm *VM) closeUpvaluesFrom(slot *Value) {
	addr := uintptr(unsafe.Pointer(slot))
	for vm.openUpvalues != nil && uintptr(unsafe.Pointer(vm.openUpvalues.Location)) >= addr {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextUpvalue
		uv.NextUpvalue = nil
	}
}

// closeWindowUpvalues closes any open upvalue that points into the live
// frame or temp windows. Called whenever those windows are about to be
// overwritten.
func (vm *VM) closeWindowUpvalues() {
	frameLo := uintptr(unsafe.Pointer(&vm.regs.Frame[0]))
	frameHi := uintptr(unsafe.Pointer(&vm.regs.Frame[FRAME_REGISTERS-1]))
	tempLo := uintptr(unsafe.Pointer(&vm.regs.Temps[0]))
	tempHi := uintptr(unsafe.Pointer(&vm.regs.Temps[TEMP_REGISTERS-1]))

	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil {
		addr := uintptr(unsafe.Pointer(uv.Location))
		inFrame := addr >= frameLo && addr <= frameHi
		inTemp := addr >= tempLo && addr <= tempHi
		next := uv.NextUpvalue
		if inFrame || inTemp {
			uv.Closed = *uv.Location
			uv.Location = &uv.Closed
			if prev == nil {
				vm.openUpvalues = next
			} else {
				prev.NextUpvalue = next
			}
			uv.NextUpvalue = nil
		} else {
			prev = uv
		}
		uv = next
	}
}

// currentClosure resolves the closure in slot 0 of the frame window.
func (vm *VM) currentClosure() *ObjClosure {
	v := vm.regs.Frame[0]
	if v.Type != VAL_CLOSURE {
		return nil
	}
	return AsClosure(v)
}
