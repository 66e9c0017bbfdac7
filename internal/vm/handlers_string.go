package vm

// String opcodes. CONCAT_R builds a rope node instead of copying; the flat
// bytes materialize on first read. TO_STRING_R renders any value with the
// canonical formatting.

func handleConcat(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsString(a) || !IsString(b) {
		return vm.opTypeError("string", a, b)
	}
	vm.concatInto(dst, a, b)
	return statusNext
}

// ropeFor coerces a value to rope form, rendering non-strings with the
// canonical formatting.
func ropeFor(v Value) *StringRope {
	if IsString(v) {
		s := AsString(v)
		if s.Rope != nil {
			return s.Rope
		}
		return newRopeLeaf(s.Chars)
	}
	return newRopeLeaf(ToString(v))
}

// concatInto joins two values as strings into dst. ADD_I32_R funnels here
// when either operand is a string; this and STORE_GLOBAL are the only
// implicit coercion sites.
func (vm *VM) concatInto(dst uint8, a, b Value) {
	left, right := ropeFor(a), ropeFor(b)
	vm.PauseGC()
	result := vm.newRopeString(concatRopes(left, right))
	vm.ResumeGC()
	vm.setReg(dst, BoxStringObj(result))
}

func handleToString(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v := *vm.reg(src)
	if IsString(v) {
		vm.setReg(dst, v)
		return statusNext
	}
	vm.setReg(dst, BoxStringObj(vm.newString(ToString(v))))
	return statusNext
}

// handleStringIndex yields the character at idx as a one-byte string.
// Negative indexes count from the end.
func handleStringIndex(vm *VM) execStatus {
	dst, strReg, idxReg := vm.readByte(), vm.readByte(), vm.readByte()
	sv, iv := *vm.reg(strReg), *vm.reg(idxReg)
	if !IsString(sv) {
		return vm.runtimeError(ERROR_TYPE, "can only index strings, got %s", ValueTypeName(sv))
	}
	idx, ok := indexOf(iv)
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "string index must be an integer, got %s", ValueTypeName(iv))
	}
	s := AsString(sv).text()
	if idx < 0 {
		idx += int64(len(s))
	}
	if idx < 0 || idx >= int64(len(s)) {
		return vm.runtimeError(ERROR_INDEX, "string index %d out of bounds for length %d", idx, len(s))
	}
	vm.setReg(dst, BoxStringObj(vm.newString(s[idx:idx+1])))
	return statusNext
}

// handleStringGet yields the byte at idx as an i32.
func handleStringGet(vm *VM) execStatus {
	dst, strReg, idxReg := vm.readByte(), vm.readByte(), vm.readByte()
	sv, iv := *vm.reg(strReg), *vm.reg(idxReg)
	if !IsString(sv) {
		return vm.runtimeError(ERROR_TYPE, "can only index strings, got %s", ValueTypeName(sv))
	}
	idx, ok := indexOf(iv)
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "string index must be an integer, got %s", ValueTypeName(iv))
	}
	s := AsString(sv).text()
	if idx < 0 {
		idx += int64(len(s))
	}
	if idx < 0 || idx >= int64(len(s)) {
		return vm.runtimeError(ERROR_INDEX, "string index %d out of bounds for length %d", idx, len(s))
	}
	vm.setReg(dst, BoxI32(int32(s[idx])))
	return statusNext
}

// indexOf extracts an integer index from any of the integer value types.
func indexOf(v Value) (int64, bool) {
	switch v.Type {
	case VAL_I32:
		return int64(AsI32(v)), true
	case VAL_I64:
		return AsI64(v), true
	case VAL_U32:
		return int64(AsU32(v)), true
	case VAL_U64:
		u := AsU64(v)
		if u > uint64(1)<<62 {
			return 0, false
		}
		return int64(u), true
	default:
		return 0, false
	}
}
