package vm

import "math"

// Type conversion opcodes. Widening conversions always succeed; narrowing
// and sign-crossing conversions raise a ConversionError when the value does
// not fit the destination type. f64 to integer truncates toward zero.

func (vm *VM) convSource(src uint8, want ValueType, wantName string) (Value, execStatus) {
	v := *vm.reg(src)
	if v.Type != want {
		return v, vm.runtimeError(ERROR_TYPE, "operand must be %s, got %s", wantName, ValueTypeName(v))
	}
	return v, statusNext
}

func handleI32ToF64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I32, "i32")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxF64(float64(AsI32(v))))
	return statusNext
}

func handleI32ToI64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I32, "i32")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxI64(int64(AsI32(v))))
	return statusNext
}

func handleI64ToI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I64, "i64")
	if st != statusNext {
		return st
	}
	x := AsI64(v)
	if x < math.MinInt32 || x > math.MaxInt32 {
		return vm.runtimeError(ERROR_VALUE, "value %d does not fit in i32", x)
	}
	vm.setReg(dst, BoxI32(int32(x)))
	return statusNext
}

func handleI64ToF64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I64, "i64")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxF64(float64(AsI64(v))))
	return statusNext
}

func handleF64ToI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_F64, "f64")
	if st != statusNext {
		return st
	}
	f := AsF64(v)
	if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return vm.runtimeError(ERROR_VALUE, "value %s does not fit in i32", formatF64(f))
	}
	vm.setReg(dst, BoxI32(int32(math.Trunc(f))))
	return statusNext
}

func handleF64ToI64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_F64, "f64")
	if st != statusNext {
		return st
	}
	f := AsF64(v)
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return vm.runtimeError(ERROR_VALUE, "value %s does not fit in i64", formatF64(f))
	}
	vm.setReg(dst, BoxI64(int64(math.Trunc(f))))
	return statusNext
}

// ============================================================================
// Bool conversions
// ============================================================================

func (vm *VM) boolToNum(box func(bool) Value) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_BOOL, "bool")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, box(AsBool(v)))
	return statusNext
}

func handleBoolToI32(vm *VM) execStatus {
	return vm.boolToNum(func(b bool) Value {
		if b {
			return BoxI32(1)
		}
		return BoxI32(0)
	})
}

func handleBoolToI64(vm *VM) execStatus {
	return vm.boolToNum(func(b bool) Value {
		if b {
			return BoxI64(1)
		}
		return BoxI64(0)
	})
}

func handleBoolToU32(vm *VM) execStatus {
	return vm.boolToNum(func(b bool) Value {
		if b {
			return BoxU32(1)
		}
		return BoxU32(0)
	})
}

func handleBoolToU64(vm *VM) execStatus {
	return vm.boolToNum(func(b bool) Value {
		if b {
			return BoxU64(1)
		}
		return BoxU64(0)
	})
}

func handleBoolToF64(vm *VM) execStatus {
	return vm.boolToNum(func(b bool) Value {
		if b {
			return BoxF64(1)
		}
		return BoxF64(0)
	})
}

func (vm *VM) numToBool(want ValueType, wantName string) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, want, wantName)
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxBool(IsTruthy(v)))
	return statusNext
}

func handleI32ToBool(vm *VM) execStatus { return vm.numToBool(VAL_I32, "i32") }
func handleI64ToBool(vm *VM) execStatus { return vm.numToBool(VAL_I64, "i64") }
func handleU32ToBool(vm *VM) execStatus { return vm.numToBool(VAL_U32, "u32") }
func handleU64ToBool(vm *VM) execStatus { return vm.numToBool(VAL_U64, "u64") }
func handleF64ToBool(vm *VM) execStatus { return vm.numToBool(VAL_F64, "f64") }

// ============================================================================
// Signed / unsigned crossings
// ============================================================================

func handleI32ToU32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I32, "i32")
	if st != statusNext {
		return st
	}
	x := AsI32(v)
	if x < 0 {
		return vm.runtimeError(ERROR_VALUE, "negative value %d does not fit in u32", x)
	}
	vm.setReg(dst, BoxU32(uint32(x)))
	return statusNext
}

func handleU32ToI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U32, "u32")
	if st != statusNext {
		return st
	}
	x := AsU32(v)
	if x > math.MaxInt32 {
		return vm.runtimeError(ERROR_VALUE, "value %d does not fit in i32", x)
	}
	vm.setReg(dst, BoxI32(int32(x)))
	return statusNext
}

func handleF64ToU32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_F64, "f64")
	if st != statusNext {
		return st
	}
	f := AsF64(v)
	if math.IsNaN(f) || f < 0 || f > math.MaxUint32 {
		return vm.runtimeError(ERROR_VALUE, "value %s does not fit in u32", formatF64(f))
	}
	vm.setReg(dst, BoxU32(uint32(math.Trunc(f))))
	return statusNext
}

func handleU32ToF64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U32, "u32")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxF64(float64(AsU32(v))))
	return statusNext
}

func handleI32ToU64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I32, "i32")
	if st != statusNext {
		return st
	}
	x := AsI32(v)
	if x < 0 {
		return vm.runtimeError(ERROR_VALUE, "negative value %d does not fit in u64", x)
	}
	vm.setReg(dst, BoxU64(uint64(x)))
	return statusNext
}

func handleI64ToU64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_I64, "i64")
	if st != statusNext {
		return st
	}
	x := AsI64(v)
	if x < 0 {
		return vm.runtimeError(ERROR_VALUE, "negative value %d does not fit in u64", x)
	}
	vm.setReg(dst, BoxU64(uint64(x)))
	return statusNext
}

func handleU64ToI32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U64, "u64")
	if st != statusNext {
		return st
	}
	x := AsU64(v)
	if x > math.MaxInt32 {
		return vm.runtimeError(ERROR_VALUE, "value %d does not fit in i32", x)
	}
	vm.setReg(dst, BoxI32(int32(x)))
	return statusNext
}

func handleU64ToI64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U64, "u64")
	if st != statusNext {
		return st
	}
	x := AsU64(v)
	if x > math.MaxInt64 {
		return vm.runtimeError(ERROR_VALUE, "value %d does not fit in i64", x)
	}
	vm.setReg(dst, BoxI64(int64(x)))
	return statusNext
}

func handleU32ToU64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U32, "u32")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxU64(uint64(AsU32(v))))
	return statusNext
}

func handleU64ToU32(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U64, "u64")
	if st != statusNext {
		return st
	}
	x := AsU64(v)
	if x > math.MaxUint32 {
		return vm.runtimeError(ERROR_VALUE, "value %d does not fit in u32", x)
	}
	vm.setReg(dst, BoxU32(uint32(x)))
	return statusNext
}

func handleF64ToU64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_F64, "f64")
	if st != statusNext {
		return st
	}
	f := AsF64(v)
	if math.IsNaN(f) || f < 0 || f >= math.MaxUint64 {
		return vm.runtimeError(ERROR_VALUE, "value %s does not fit in u64", formatF64(f))
	}
	vm.setReg(dst, BoxU64(uint64(math.Trunc(f))))
	return statusNext
}

func handleU64ToF64(vm *VM) execStatus {
	dst, src := vm.readByte(), vm.readByte()
	v, st := vm.convSource(src, VAL_U64, "u64")
	if st != statusNext {
		return st
	}
	vm.setReg(dst, BoxF64(float64(AsU64(v))))
	return statusNext
}
