package vm

// Typed iterator descriptors let the common for-loop shapes (integer ranges
// and array walks) iterate without allocating an iterator object. GET_ITER_R
// installs a descriptor keyed by the destination register; ITER_NEXT_R
// consumes it. Anything that overwrites the register drops the descriptor and
// the loop falls back to the boxed iterator objects.

type TypedIteratorKind uint8

const (
	TYPED_ITER_NONE TypedIteratorKind = iota
	TYPED_ITER_RANGE_I64
	TYPED_ITER_ARRAY_SLICE
)

type TypedIteratorDescriptor struct {
	Kind TypedIteratorKind

	// TYPED_ITER_RANGE_I64
	Current int64
	End     int64
	Step    int64

	// TYPED_ITER_ARRAY_SLICE
	Array *ObjArray
	Index uint32
}

func (d *TypedIteratorDescriptor) clear() {
	*d = TypedIteratorDescriptor{}
}

// descriptorFor returns the typed iterator slot for a register, or nil when
// the register is outside the descriptor window.
func (vm *VM) descriptorFor(reg uint16) *TypedIteratorDescriptor {
	if reg >= TYPED_REGISTER_COUNT {
		return nil
	}
	return &vm.typedIterators[reg]
}

// makeIterator prepares iteration state for the value in src and installs it
// for dst. It returns false when the value is not iterable.
func (vm *VM) makeIterator(dst uint16, src Value) bool {
	desc := vm.descriptorFor(dst)
	useTyped := desc != nil && !vm.options.ForceBoxedIterators

	switch src.Type {
	case VAL_I32:
		n := int64(AsI32(src))
		if useTyped {
			*desc = TypedIteratorDescriptor{Kind: TYPED_ITER_RANGE_I64, Current: 0, End: n, Step: 1}
			vm.traceLoopEvent(LOOP_TRACE_ITER_SAVED_ALLOCATIONS)
			vm.regs.Set(dst, NilValue())
			return true
		}
		vm.regs.Set(dst, BoxRangeIteratorObj(vm.newRangeIterator(0, n, 1)))
	case VAL_I64:
		n := AsI64(src)
		if useTyped {
			*desc = TypedIteratorDescriptor{Kind: TYPED_ITER_RANGE_I64, Current: 0, End: n, Step: 1}
			vm.traceLoopEvent(LOOP_TRACE_ITER_SAVED_ALLOCATIONS)
			vm.regs.Set(dst, NilValue())
			return true
		}
		vm.regs.Set(dst, BoxRangeIteratorObj(vm.newRangeIterator(0, n, 1)))
	case VAL_RANGE_ITERATOR:
		it := AsRangeIterator(src)
		if useTyped {
			*desc = TypedIteratorDescriptor{Kind: TYPED_ITER_RANGE_I64, Current: it.Current, End: it.End, Step: it.Step}
			vm.traceLoopEvent(LOOP_TRACE_ITER_SAVED_ALLOCATIONS)
			vm.regs.Set(dst, NilValue())
			return true
		}
		vm.regs.Set(dst, src)
	case VAL_ARRAY:
		arr := AsArray(src)
		if useTyped {
			*desc = TypedIteratorDescriptor{Kind: TYPED_ITER_ARRAY_SLICE, Array: arr, Index: 0}
			vm.traceLoopEvent(LOOP_TRACE_ITER_SAVED_ALLOCATIONS)
			vm.regs.Set(dst, NilValue())
			return true
		}
		vm.regs.Set(dst, BoxArrayIteratorObj(vm.newArrayIterator(arr)))
	case VAL_ARRAY_ITERATOR:
		vm.regs.Set(dst, src)
	default:
		return false
	}
	if desc != nil {
		desc.clear()
	}
	return true
}

// iterNext advances the iterator in iterReg, writing the next element and
// whether one existed. Returns false for a non-iterator register.
func (vm *VM) iterNext(dstReg, iterReg, hasReg uint16) bool {
	if desc := vm.descriptorFor(iterReg); desc != nil && desc.Kind != TYPED_ITER_NONE {
		switch desc.Kind {
		case TYPED_ITER_RANGE_I64:
			if (desc.Step > 0 && desc.Current < desc.End) || (desc.Step < 0 && desc.Current > desc.End) {
				vm.regs.Set(dstReg, BoxI64(desc.Current))
				desc.Current += desc.Step
				vm.regs.Set(hasReg, BoxBool(true))
			} else {
				vm.regs.Set(hasReg, BoxBool(false))
			}
			return true
		case TYPED_ITER_ARRAY_SLICE:
			if int(desc.Index) < desc.Array.Length {
				vm.regs.Set(dstReg, desc.Array.Elements[desc.Index])
				desc.Index++
				vm.regs.Set(hasReg, BoxBool(true))
			} else {
				vm.regs.Set(hasReg, BoxBool(false))
			}
			return true
		}
	}

	v := *vm.regs.Get(iterReg)
	switch v.Type {
	case VAL_RANGE_ITERATOR:
		it := AsRangeIterator(v)
		if (it.Step > 0 && it.Current < it.End) || (it.Step < 0 && it.Current > it.End) {
			vm.regs.Set(dstReg, BoxI64(it.Current))
			it.Current += it.Step
			vm.regs.Set(hasReg, BoxBool(true))
		} else {
			vm.regs.Set(hasReg, BoxBool(false))
		}
		return true
	case VAL_ARRAY_ITERATOR:
		it := AsArrayIterator(v)
		if it.Index < it.Array.Length {
			vm.regs.Set(dstReg, it.Array.Elements[it.Index])
			it.Index++
			vm.regs.Set(hasReg, BoxBool(true))
		} else {
			vm.regs.Set(hasReg, BoxBool(false))
		}
		vm.traceLoopEvent(LOOP_TRACE_ITER_FALLBACK)
		return true
	default:
		return false
	}
}
