package vm

import (
	"fmt"
	"strings"
	"time"
)

// Loads, moves, globals, the print family, builtin bridge opcodes, and the
// handful of one-off instructions.

func handleLoadConst(vm *VM) execStatus {
	dst := vm.readByte()
	k := vm.readU16()
	if int(k) >= len(vm.chunk.Constants) {
		return vm.runtimeError(ERROR_RUNTIME, "constant index %d out of range", k)
	}
	vm.setReg(dst, vm.chunk.Constants[k])
	return statusNext
}

func handleLoadNil(vm *VM) execStatus {
	vm.setReg(vm.readByte(), NilValue())
	return statusNext
}

func handleLoadTrue(vm *VM) execStatus {
	dst := vm.readByte()
	vm.setReg(dst, BoxBool(true))
	// Prime the typed shadow; the boxed copy is already current.
	vm.typedRegs.SetBool(dst, true)
	vm.typedRegs.dirty[dst] = false
	return statusNext
}

func handleLoadFalse(vm *VM) execStatus {
	dst := vm.readByte()
	vm.setReg(dst, BoxBool(false))
	vm.typedRegs.SetBool(dst, false)
	vm.typedRegs.dirty[dst] = false
	return statusNext
}

func handleMove(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	vm.setReg(dst, *vm.reg(src))
	return statusNext
}

func handleLoadGlobal(vm *VM) execStatus {
	dst, g := vm.readByte(), vm.readByte()
	if int(g) >= vm.variableCount || vm.globalTypes[g] == VAL_NIL {
		return vm.runtimeError(ERROR_NAME, "undefined global %d", g)
	}
	vm.setReg(dst, *vm.reg(g))
	return statusNext
}

// handleStoreGlobal applies the sole permitted implicit coercion outside
// string addition: an i32 source may widen to a declared i64 or f64, or to
// u32/u64 when non-negative. Any other mismatch with the declared type is a
// type error.
func handleStoreGlobal(vm *VM) execStatus {
	g, src := vm.readByte(), vm.readByte()
	if int(g) >= vm.variableCount || vm.globalTypes[g] == VAL_NIL {
		return vm.runtimeError(ERROR_NAME, "undefined global %d", g)
	}
	v := *vm.reg(src)
	declared := vm.globalTypes[g]
	if v.Type != declared {
		coerced, ok := coerceI32ToDeclared(v, declared)
		if !ok {
			return vm.runtimeError(ERROR_TYPE, "global %s declares %s, got %s",
				vm.globalNames[g], declared, ValueTypeName(v))
		}
		v = coerced
	}
	vm.setReg(g, v)
	return statusNext
}

func coerceI32ToDeclared(v Value, declared ValueType) (Value, bool) {
	if !IsI32(v) {
		return v, false
	}
	n := AsI32(v)
	switch declared {
	case VAL_I64:
		return BoxI64(int64(n)), true
	case VAL_F64:
		return BoxF64(float64(n)), true
	case VAL_U32:
		if n >= 0 {
			return BoxU32(uint32(n)), true
		}
	case VAL_U64:
		if n >= 0 {
			return BoxU64(uint64(n)), true
		}
	}
	return v, false
}

// Extended forms for 16-bit register ids.

func handleLoadConstExt(vm *VM) execStatus {
	dst := vm.readU16()
	k := vm.readU16()
	if int(k) >= len(vm.chunk.Constants) {
		return vm.runtimeError(ERROR_RUNTIME, "constant index %d out of range", k)
	}
	vm.setRegWide(dst, vm.chunk.Constants[k])
	return statusNext
}

func handleMoveExt(vm *VM) execStatus {
	dst := vm.readU16()
	src := vm.readU16()
	vm.setRegWide(dst, *vm.regWide(src))
	return statusNext
}

func handleStoreExt(vm *VM) execStatus {
	src := vm.readU16()
	g := vm.readByte()
	vm.setReg(g, *vm.regWide(src))
	return statusNext
}

func handleLoadExt(vm *VM) execStatus {
	dst := vm.readU16()
	g := vm.readByte()
	vm.setRegWide(dst, *vm.reg(g))
	return statusNext
}

// ============================================================================
// Print family
// ============================================================================

func handlePrint(vm *VM) execStatus {
	r := vm.readByte()
	fmt.Fprintln(vm.stdout, ToString(*vm.reg(r)))
	return statusNext
}

func handlePrintNoNL(vm *VM) execStatus {
	r := vm.readByte()
	fmt.Fprint(vm.stdout, ToString(*vm.reg(r)))
	return statusNext
}

func handlePrintMulti(vm *VM) execStatus {
	first, count, newline := vm.readByte(), vm.readByte(), vm.readByte()
	parts := make([]string, count)
	for i := 0; i < int(count); i++ {
		parts[i] = ToString(*vm.reg(first + byte(i)))
	}
	out := strings.Join(parts, " ")
	if newline != 0 {
		fmt.Fprintln(vm.stdout, out)
	} else {
		fmt.Fprint(vm.stdout, out)
	}
	return statusNext
}

func handlePrintMultiSep(vm *VM) execStatus {
	first, count, sepReg, newline := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	sv := *vm.reg(sepReg)
	if !IsString(sv) {
		return vm.runtimeError(ERROR_TYPE, "separator must be a string, got %s", ValueTypeName(sv))
	}
	sep := AsString(sv).text()
	parts := make([]string, count)
	for i := 0; i < int(count); i++ {
		parts[i] = ToString(*vm.reg(first + byte(i)))
	}
	out := strings.Join(parts, sep)
	if newline != 0 {
		fmt.Fprintln(vm.stdout, out)
	} else {
		fmt.Fprint(vm.stdout, out)
	}
	return statusNext
}

// ============================================================================
// Builtin bridge opcodes
// ============================================================================
//
// The hot builtins have dedicated opcodes so the emitter can skip the
// native-call protocol. Their behavior matches the natives of the same name.

func handleParseInt(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	result, err := builtinInt(vm, []Value{*vm.reg(src)})
	if err != nil {
		ne := err.(*nativeError)
		return vm.runtimeError(ne.kind, "%s", ne.message)
	}
	vm.setReg(dst, result)
	return statusNext
}

func handleParseFloat(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	result, err := builtinFloat(vm, []Value{*vm.reg(src)})
	if err != nil {
		ne := err.(*nativeError)
		return vm.runtimeError(ne.kind, "%s", ne.message)
	}
	vm.setReg(dst, result)
	return statusNext
}

func handleTypeOf(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxStringObj(vm.newString(ValueTypeName(*vm.reg(src)))))
	return statusNext
}

func handleIsType(vm *VM) execStatus {
	dst, src, typeReg := vm.readByte(), vm.readByte(), vm.readByte()
	tv := *vm.reg(typeReg)
	if !IsString(tv) {
		return vm.runtimeError(ERROR_TYPE, "type name must be a string, got %s", ValueTypeName(tv))
	}
	vm.setReg(dst, BoxBool(ValueTypeName(*vm.reg(src)) == AsString(tv).text()))
	return statusNext
}

func handleInput(vm *VM) execStatus {
	dst, argCount, promptReg := vm.readByte(), vm.readByte(), vm.readByte()
	var args []Value
	if argCount > 0 {
		args = []Value{*vm.reg(promptReg)}
	}
	result, err := builtinInput(vm, args)
	if err != nil {
		ne := err.(*nativeError)
		return vm.runtimeError(ne.kind, "%s", ne.message)
	}
	vm.setReg(dst, result)
	return statusNext
}

func handleRange(vm *VM) execStatus {
	dst, argCount := vm.readByte(), vm.readByte()
	a0, a1, a2 := vm.readByte(), vm.readByte(), vm.readByte()
	args := make([]Value, 0, 3)
	regs := [3]byte{a0, a1, a2}
	for i := 0; i < int(argCount) && i < 3; i++ {
		args = append(args, *vm.reg(regs[i]))
	}
	result, err := builtinRange(vm, args)
	if err != nil {
		ne := err.(*nativeError)
		return vm.runtimeError(ne.kind, "%s", ne.message)
	}
	vm.setReg(dst, result)
	return statusNext
}

func handleTimeStamp(vm *VM) execStatus {
	dst := vm.readByte()
	vm.setReg(dst, BoxF64(time.Since(vm.startTime).Seconds()))
	return statusNext
}

// ============================================================================
// GC control and halt
// ============================================================================

func handleGCPause(vm *VM) execStatus {
	vm.PauseGC()
	return statusNext
}

func handleGCResume(vm *VM) execStatus {
	vm.ResumeGC()
	return statusNext
}

func handleHalt(vm *VM) execStatus {
	return statusHalt
}
