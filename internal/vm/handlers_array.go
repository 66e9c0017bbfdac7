package vm

import "sort"

// Array and enum opcodes.

func (arr *ObjArray) push(v Value) {
	arr.Elements = append(arr.Elements, v)
	arr.Length = len(arr.Elements)
	arr.Capacity = cap(arr.Elements)
}

func handleMakeArray(vm *VM) execStatus {
	dst, first, count := vm.readByte(), vm.readByte(), vm.readByte()

	vm.PauseGC()
	arr := vm.newArray(int(count))
	for i := 0; i < int(count); i++ {
		arr.push(*vm.reg(first + byte(i)))
	}
	vm.ResumeGC()

	vm.setReg(dst, BoxArrayObj(arr))
	return statusNext
}

func handleArrayGet(vm *VM) execStatus {
	dst, arrReg, idxReg := vm.readByte(), vm.readByte(), vm.readByte()
	av, iv := *vm.reg(arrReg), *vm.reg(idxReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "can only index arrays, got %s", ValueTypeName(av))
	}
	idx, ok := indexOf(iv)
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "array index must be an integer, got %s", ValueTypeName(iv))
	}
	arr := AsArray(av)
	if idx < 0 {
		idx += int64(arr.Length)
	}
	if idx < 0 || idx >= int64(arr.Length) {
		return vm.runtimeError(ERROR_INDEX, "array index %d out of bounds for length %d", idx, arr.Length)
	}
	vm.setReg(dst, arr.Elements[idx])
	return statusNext
}

func handleArraySet(vm *VM) execStatus {
	arrReg, idxReg, valReg := vm.readByte(), vm.readByte(), vm.readByte()
	av, iv := *vm.reg(arrReg), *vm.reg(idxReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "can only index arrays, got %s", ValueTypeName(av))
	}
	idx, ok := indexOf(iv)
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "array index must be an integer, got %s", ValueTypeName(iv))
	}
	arr := AsArray(av)
	if idx < 0 {
		idx += int64(arr.Length)
	}
	if idx < 0 || idx >= int64(arr.Length) {
		return vm.runtimeError(ERROR_INDEX, "array index %d out of bounds for length %d", idx, arr.Length)
	}
	arr.Elements[idx] = *vm.reg(valReg)
	return statusNext
}

func handleArrayLen(vm *VM) execStatus {
	dst, arrReg := vm.readByte(), vm.readByte()
	av := *vm.reg(arrReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "len expects an array, got %s", ValueTypeName(av))
	}
	vm.setReg(dst, BoxI32(int32(AsArray(av).Length)))
	return statusNext
}

func handleArrayPush(vm *VM) execStatus {
	arrReg, valReg := vm.readByte(), vm.readByte()
	av := *vm.reg(arrReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "push expects an array, got %s", ValueTypeName(av))
	}
	AsArray(av).push(*vm.reg(valReg))
	return statusNext
}

func handleArrayPop(vm *VM) execStatus {
	dst, arrReg := vm.readByte(), vm.readByte()
	av := *vm.reg(arrReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "pop expects an array, got %s", ValueTypeName(av))
	}
	arr := AsArray(av)
	if arr.Length == 0 {
		return vm.runtimeError(ERROR_VALUE, "pop from empty array")
	}
	last := arr.Elements[arr.Length-1]
	arr.Elements = arr.Elements[:arr.Length-1]
	arr.Length--
	vm.setReg(dst, last)
	return statusNext
}

// sortedCopy produces a new sorted array; the source is untouched. Elements
// must be mutually comparable: all numeric of one type, or all strings.
func (vm *VM) sortedCopy(arr *ObjArray) (*ObjArray, error) {
	if arr.Length > 1 {
		first := arr.Elements[0].Type
		for i := 1; i < arr.Length; i++ {
			if arr.Elements[i].Type != first {
				return nil, newNativeError(ERROR_TYPE, "sorted expects elements of one type, got %s and %s",
					ValueTypeName(arr.Elements[0]), ValueTypeName(arr.Elements[i]))
			}
		}
		switch first {
		case VAL_I32, VAL_I64, VAL_U32, VAL_U64, VAL_F64, VAL_STRING, VAL_BOOL:
		default:
			return nil, newNativeError(ERROR_TYPE, "sorted cannot order %s elements", ValueTypeName(arr.Elements[0]))
		}
	}

	vm.PauseGC()
	out := vm.newArray(arr.Length)
	out.Elements = append(out.Elements, arr.Elements[:arr.Length]...)
	out.Length = arr.Length
	out.Capacity = cap(out.Elements)
	vm.ResumeGC()

	sort.SliceStable(out.Elements, func(i, j int) bool {
		return valueLess(out.Elements[i], out.Elements[j])
	})
	return out, nil
}

func valueLess(a, b Value) bool {
	switch a.Type {
	case VAL_I32:
		return AsI32(a) < AsI32(b)
	case VAL_I64:
		return AsI64(a) < AsI64(b)
	case VAL_U32:
		return AsU32(a) < AsU32(b)
	case VAL_U64:
		return AsU64(a) < AsU64(b)
	case VAL_F64:
		return AsF64(a) < AsF64(b)
	case VAL_BOOL:
		return !AsBool(a) && AsBool(b)
	case VAL_STRING:
		return AsString(a).text() < AsString(b).text()
	default:
		return false
	}
}

func handleArraySorted(vm *VM) execStatus {
	dst, arrReg := vm.readByte(), vm.readByte()
	av := *vm.reg(arrReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "sorted expects an array, got %s", ValueTypeName(av))
	}
	out, err := vm.sortedCopy(AsArray(av))
	if err != nil {
		ne := err.(*nativeError)
		return vm.runtimeError(ne.kind, "%s", ne.message)
	}
	vm.setReg(dst, BoxArrayObj(out))
	return statusNext
}

// handleArraySlice copies [start, end) into a fresh array. Bounds are
// clamped the way slicing usually is, but a reversed range is an error.
func handleArraySlice(vm *VM) execStatus {
	dst, arrReg, startReg, endReg := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	av := *vm.reg(arrReg)
	if !IsArray(av) {
		return vm.runtimeError(ERROR_TYPE, "can only slice arrays, got %s", ValueTypeName(av))
	}
	start, ok := indexOf(*vm.reg(startReg))
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "slice bounds must be integers")
	}
	end, ok := indexOf(*vm.reg(endReg))
	if !ok {
		return vm.runtimeError(ERROR_TYPE, "slice bounds must be integers")
	}
	arr := AsArray(av)
	if start < 0 {
		start += int64(arr.Length)
	}
	if end < 0 {
		end += int64(arr.Length)
	}
	if start < 0 {
		start = 0
	}
	if end > int64(arr.Length) {
		end = int64(arr.Length)
	}
	if start > end {
		return vm.runtimeError(ERROR_INDEX, "slice start %d beyond end %d", start, end)
	}

	vm.PauseGC()
	out := vm.newArray(int(end - start))
	out.Elements = append(out.Elements, arr.Elements[start:end]...)
	out.Length = len(out.Elements)
	out.Capacity = cap(out.Elements)
	vm.ResumeGC()

	vm.setReg(dst, BoxArrayObj(out))
	return statusNext
}

// ============================================================================
// Enums
// ============================================================================

func handleEnumNew(vm *VM) execStatus {
	dst := vm.readByte()
	variantIdx := vm.readByte()
	payloadCount := vm.readByte()
	payloadStart := vm.readByte()
	typeK := vm.readU16()
	variantK := vm.readU16()

	if int(typeK) >= len(vm.chunk.Constants) || int(variantK) >= len(vm.chunk.Constants) {
		return vm.runtimeError(ERROR_RUNTIME, "enum name constant out of range")
	}
	typeName := vm.chunk.Constants[typeK]
	variantName := vm.chunk.Constants[variantK]
	if !IsString(typeName) || !IsString(variantName) {
		return vm.runtimeError(ERROR_TYPE, "enum name constants must be strings")
	}

	vm.PauseGC()
	var payload *ObjArray
	if payloadCount > 0 {
		payload = vm.newArray(int(payloadCount))
		for i := 0; i < int(payloadCount); i++ {
			payload.push(*vm.reg(payloadStart + byte(i)))
		}
	}
	inst := vm.newEnumInstance(AsString(typeName), AsString(variantName), int(variantIdx), payload)
	vm.ResumeGC()

	vm.setReg(dst, BoxEnumObj(inst))
	return statusNext
}

func handleEnumTagEq(vm *VM) execStatus {
	dst, enumReg, variantIdx := vm.readByte(), vm.readByte(), vm.readByte()
	v := *vm.reg(enumReg)
	if !IsEnum(v) {
		return vm.runtimeError(ERROR_TYPE, "enum match on %s", ValueTypeName(v))
	}
	vm.setReg(dst, BoxBool(AsEnum(v).VariantIndex == int(variantIdx)))
	return statusNext
}

func handleEnumPayload(vm *VM) execStatus {
	dst, enumReg, variantIdx, fieldIdx := vm.readByte(), vm.readByte(), vm.readByte(), vm.readByte()
	v := *vm.reg(enumReg)
	if !IsEnum(v) {
		return vm.runtimeError(ERROR_TYPE, "enum payload access on %s", ValueTypeName(v))
	}
	e := AsEnum(v)
	if e.VariantIndex != int(variantIdx) {
		return vm.runtimeError(ERROR_VALUE, "enum %s is %s, not variant %d",
			e.TypeName.Chars, e.VariantName.Chars, variantIdx)
	}
	if e.Payload == nil || int(fieldIdx) >= e.Payload.Length {
		return vm.runtimeError(ERROR_INDEX, "enum %s.%s has no payload field %d",
			e.TypeName.Chars, e.VariantName.Chars, fieldIdx)
	}
	vm.setReg(dst, e.Payload.Elements[fieldIdx])
	return statusNext
}
