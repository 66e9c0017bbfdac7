package vm

// Comparisons produce bool registers. EQ/NE accept any pair of values;
// the ordered comparisons are strict same-typed like the arithmetic ops.

func handleEq(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxBool(ValuesEqual(*vm.reg(s1), *vm.reg(s2))))
	return statusNext
}

func handleNe(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxBool(!ValuesEqual(*vm.reg(s1), *vm.reg(s2))))
	return statusNext
}

// ============================================================================
// Ordered comparisons
// ============================================================================

func (vm *VM) cmpI32(want string, cmp func(int32, int32) bool) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI32(a) || !IsI32(b) {
		return vm.opTypeError(want, a, b)
	}
	vm.setReg(dst, BoxBool(cmp(AsI32(a), AsI32(b))))
	return statusNext
}

func (vm *VM) cmpI64(want string, cmp func(int64, int64) bool) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsI64(a) || !IsI64(b) {
		return vm.opTypeError(want, a, b)
	}
	vm.setReg(dst, BoxBool(cmp(AsI64(a), AsI64(b))))
	return statusNext
}

func (vm *VM) cmpU32(want string, cmp func(uint32, uint32) bool) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU32(a) || !IsU32(b) {
		return vm.opTypeError(want, a, b)
	}
	vm.setReg(dst, BoxBool(cmp(AsU32(a), AsU32(b))))
	return statusNext
}

func (vm *VM) cmpU64(want string, cmp func(uint64, uint64) bool) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsU64(a) || !IsU64(b) {
		return vm.opTypeError(want, a, b)
	}
	vm.setReg(dst, BoxBool(cmp(AsU64(a), AsU64(b))))
	return statusNext
}

func (vm *VM) cmpF64(want string, cmp func(float64, float64) bool) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	a, b := *vm.reg(s1), *vm.reg(s2)
	if !IsF64(a) || !IsF64(b) {
		return vm.opTypeError(want, a, b)
	}
	vm.setReg(dst, BoxBool(cmp(AsF64(a), AsF64(b))))
	return statusNext
}

func handleLtI32(vm *VM) execStatus {
	return vm.cmpI32("i32", func(a, b int32) bool { return a < b })
}
func handleLeI32(vm *VM) execStatus {
	return vm.cmpI32("i32", func(a, b int32) bool { return a <= b })
}
func handleGtI32(vm *VM) execStatus {
	return vm.cmpI32("i32", func(a, b int32) bool { return a > b })
}
func handleGeI32(vm *VM) execStatus {
	return vm.cmpI32("i32", func(a, b int32) bool { return a >= b })
}

func handleLtI64(vm *VM) execStatus {
	return vm.cmpI64("i64", func(a, b int64) bool { return a < b })
}
func handleLeI64(vm *VM) execStatus {
	return vm.cmpI64("i64", func(a, b int64) bool { return a <= b })
}
func handleGtI64(vm *VM) execStatus {
	return vm.cmpI64("i64", func(a, b int64) bool { return a > b })
}
func handleGeI64(vm *VM) execStatus {
	return vm.cmpI64("i64", func(a, b int64) bool { return a >= b })
}

func handleLtU32(vm *VM) execStatus {
	return vm.cmpU32("u32", func(a, b uint32) bool { return a < b })
}
func handleLeU32(vm *VM) execStatus {
	return vm.cmpU32("u32", func(a, b uint32) bool { return a <= b })
}
func handleGtU32(vm *VM) execStatus {
	return vm.cmpU32("u32", func(a, b uint32) bool { return a > b })
}
func handleGeU32(vm *VM) execStatus {
	return vm.cmpU32("u32", func(a, b uint32) bool { return a >= b })
}

func handleLtU64(vm *VM) execStatus {
	return vm.cmpU64("u64", func(a, b uint64) bool { return a < b })
}
func handleLeU64(vm *VM) execStatus {
	return vm.cmpU64("u64", func(a, b uint64) bool { return a <= b })
}
func handleGtU64(vm *VM) execStatus {
	return vm.cmpU64("u64", func(a, b uint64) bool { return a > b })
}
func handleGeU64(vm *VM) execStatus {
	return vm.cmpU64("u64", func(a, b uint64) bool { return a >= b })
}

func handleLtF64(vm *VM) execStatus {
	return vm.cmpF64("f64", func(a, b float64) bool { return a < b })
}
func handleLeF64(vm *VM) execStatus {
	return vm.cmpF64("f64", func(a, b float64) bool { return a <= b })
}
func handleGtF64(vm *VM) execStatus {
	return vm.cmpF64("f64", func(a, b float64) bool { return a > b })
}
func handleGeF64(vm *VM) execStatus {
	return vm.cmpF64("f64", func(a, b float64) bool { return a >= b })
}

// ============================================================================
// Boolean combinators
// ============================================================================
//
// These coerce through truthiness, so any value works as an operand.

func handleAndBool(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxBool(IsTruthy(*vm.reg(s1)) && IsTruthy(*vm.reg(s2))))
	return statusNext
}

func handleOrBool(vm *VM) execStatus {
	dst, s1, s2 := vm.readByte(), vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxBool(IsTruthy(*vm.reg(s1)) || IsTruthy(*vm.reg(s2))))
	return statusNext
}

func handleNotBool(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	vm.setReg(dst, BoxBool(!IsTruthy(*vm.reg(src))))
	return statusNext
}
