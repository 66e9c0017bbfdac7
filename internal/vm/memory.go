package vm

import (
	"unsafe"

	"github.com/dustin/go-humanize"
)

// Mark-and-Sweep Collector
// ========================
//
// Objects are linked into a single allocation list through Obj.Next. A
// collection marks everything reachable from the root set, then sweeps the
// list: unmarked objects are unlinked and pushed onto a per-kind free list
// for reuse by the next allocation of that kind. The growth policy doubles
// the trigger threshold after every cycle.

const GC_DEFAULT_THRESHOLD = 1 << 20

// approximate per-kind allocation sizes for the accounting that drives the
// collection trigger
var objSizes = [OBJ_TYPE_COUNT]uint64{
	OBJ_STRING:         uint64(unsafe.Sizeof(ObjString{})),
	OBJ_ARRAY:          uint64(unsafe.Sizeof(ObjArray{})),
	OBJ_ARRAY_ITERATOR: uint64(unsafe.Sizeof(ObjArrayIterator{})),
	OBJ_RANGE_ITERATOR: uint64(unsafe.Sizeof(ObjRangeIterator{})),
	OBJ_ENUM_INSTANCE:  uint64(unsafe.Sizeof(ObjEnumInstance{})),
	OBJ_ERROR:          uint64(unsafe.Sizeof(ObjError{})),
	OBJ_FUNCTION:       uint64(unsafe.Sizeof(ObjFunction{})),
	OBJ_CLOSURE:        uint64(unsafe.Sizeof(ObjClosure{})),
	OBJ_UPVALUE:        uint64(unsafe.Sizeof(ObjUpvalue{})),
}

type gcState struct {
	objects        *Obj
	freeLists      [OBJ_TYPE_COUNT]*Obj
	bytesAllocated uint64
	nextGC         uint64
	cycles         uint64
	pauseDepth     int
}

// ============================================================================
// Allocation
// ============================================================================

// registerObject links a freshly built object into the allocation list and
// charges its size. The collection check runs BEFORE the new object becomes
// reachable, so callers must not hold unrooted object pointers across it;
// every vm.new* helper allocates first and wires children afterwards only
// from rooted slots.
func (vm *VM) registerObject(o *Obj, kind ObjType) {
	if vm.gc.pauseDepth == 0 && vm.gc.bytesAllocated+objSizes[kind] > vm.gc.nextGC {
		vm.collectGarbage()
	}
	o.Type = kind
	o.Marked = false
	o.Next = vm.gc.objects
	vm.gc.objects = o
	vm.gc.bytesAllocated += objSizes[kind]
}

// takeFree pops a recycled object of the given kind, if any. The returned
// header is still the first field of its full struct, so the unsafe cast
// back mirrors the As* accessors.
func (vm *VM) takeFree(kind ObjType) *Obj {
	o := vm.gc.freeLists[kind]
	if o == nil {
		return nil
	}
	vm.gc.freeLists[kind] = o.Next
	o.Next = nil
	return o
}

func (vm *VM) newString(s string) *ObjString {
	if interned := vm.strings.find(s, HashString(s)); interned != nil {
		return interned
	}
	var obj *ObjString
	if o := vm.takeFree(OBJ_STRING); o != nil {
		obj = (*ObjString)(unsafe.Pointer(o))
		*obj = ObjString{}
	} else {
		obj = &ObjString{}
	}
	vm.registerObject(&obj.Obj, OBJ_STRING)
	obj.Chars = s
	obj.Length = len(s)
	obj.Hash = HashString(s)
	vm.strings.insert(obj)
	return obj
}

// newRopeString wraps an already-built rope without flattening it. The rope
// is flattened (and the result interned) on first Chars access via flatten.
func (vm *VM) newRopeString(rope *StringRope) *ObjString {
	var obj *ObjString
	if o := vm.takeFree(OBJ_STRING); o != nil {
		obj = (*ObjString)(unsafe.Pointer(o))
		*obj = ObjString{}
	} else {
		obj = &ObjString{}
	}
	vm.registerObject(&obj.Obj, OBJ_STRING)
	obj.Rope = rope
	obj.Length = rope.Length
	return obj
}

func (vm *VM) newArray(capacity int) *ObjArray {
	var obj *ObjArray
	if o := vm.takeFree(OBJ_ARRAY); o != nil {
		obj = (*ObjArray)(unsafe.Pointer(o))
		*obj = ObjArray{}
	} else {
		obj = &ObjArray{}
	}
	vm.registerObject(&obj.Obj, OBJ_ARRAY)
	if capacity > 0 {
		obj.Elements = make([]Value, 0, capacity)
	} else {
		obj.Elements = nil
	}
	obj.Length = 0
	obj.Capacity = capacity
	return obj
}

func (vm *VM) newArrayIterator(arr *ObjArray) *ObjArrayIterator {
	var obj *ObjArrayIterator
	if o := vm.takeFree(OBJ_ARRAY_ITERATOR); o != nil {
		obj = (*ObjArrayIterator)(unsafe.Pointer(o))
		*obj = ObjArrayIterator{}
	} else {
		obj = &ObjArrayIterator{}
	}
	vm.registerObject(&obj.Obj, OBJ_ARRAY_ITERATOR)
	obj.Array = arr
	obj.Index = 0
	return obj
}

func (vm *VM) newRangeIterator(current, end, step int64) *ObjRangeIterator {
	var obj *ObjRangeIterator
	if o := vm.takeFree(OBJ_RANGE_ITERATOR); o != nil {
		obj = (*ObjRangeIterator)(unsafe.Pointer(o))
		*obj = ObjRangeIterator{}
	} else {
		obj = &ObjRangeIterator{}
	}
	vm.registerObject(&obj.Obj, OBJ_RANGE_ITERATOR)
	obj.Current = current
	obj.End = end
	obj.Step = step
	return obj
}

func (vm *VM) newEnumInstance(typeName, variantName *ObjString, variantIndex int, payload *ObjArray) *ObjEnumInstance {
	var obj *ObjEnumInstance
	if o := vm.takeFree(OBJ_ENUM_INSTANCE); o != nil {
		obj = (*ObjEnumInstance)(unsafe.Pointer(o))
		*obj = ObjEnumInstance{}
	} else {
		obj = &ObjEnumInstance{}
	}
	vm.registerObject(&obj.Obj, OBJ_ENUM_INSTANCE)
	obj.TypeName = typeName
	obj.VariantName = variantName
	obj.VariantIndex = variantIndex
	obj.Payload = payload
	return obj
}

func (vm *VM) newErrorObj(kind ErrorKind, message *ObjString, file string, line, column int) *ObjError {
	var obj *ObjError
	if o := vm.takeFree(OBJ_ERROR); o != nil {
		obj = (*ObjError)(unsafe.Pointer(o))
		*obj = ObjError{}
	} else {
		obj = &ObjError{}
	}
	vm.registerObject(&obj.Obj, OBJ_ERROR)
	obj.Kind = kind
	obj.Message = message
	obj.File = file
	obj.Line = line
	obj.Column = column
	return obj
}

func (vm *VM) newFunction(arity, upvalueCount, start int, chunk *Chunk, name *ObjString) *ObjFunction {
	var obj *ObjFunction
	if o := vm.takeFree(OBJ_FUNCTION); o != nil {
		obj = (*ObjFunction)(unsafe.Pointer(o))
		*obj = ObjFunction{}
	} else {
		obj = &ObjFunction{}
	}
	vm.registerObject(&obj.Obj, OBJ_FUNCTION)
	obj.Arity = arity
	obj.UpvalueCount = upvalueCount
	obj.Start = start
	obj.Chunk = chunk
	obj.Name = name
	return obj
}

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	var obj *ObjClosure
	if o := vm.takeFree(OBJ_CLOSURE); o != nil {
		obj = (*ObjClosure)(unsafe.Pointer(o))
		*obj = ObjClosure{}
	} else {
		obj = &ObjClosure{}
	}
	vm.registerObject(&obj.Obj, OBJ_CLOSURE)
	obj.Function = fn
	obj.Upvalues = make([]*ObjUpvalue, fn.UpvalueCount)
	return obj
}

func (vm *VM) newUpvalue(slot *Value) *ObjUpvalue {
	var obj *ObjUpvalue
	if o := vm.takeFree(OBJ_UPVALUE); o != nil {
		obj = (*ObjUpvalue)(unsafe.Pointer(o))
		*obj = ObjUpvalue{}
	} else {
		obj = &ObjUpvalue{}
	}
	vm.registerObject(&obj.Obj, OBJ_UPVALUE)
	obj.Location = slot
	obj.Closed = NilValue()
	return obj
}

// ============================================================================
// Collection
// ============================================================================

// PauseGC suspends collection. Pauses nest; allocation accounting continues
// so a resumed collector fires promptly if the paused region allocated a lot.
func (vm *VM) PauseGC() { vm.gc.pauseDepth++ }

func (vm *VM) ResumeGC() {
	if vm.gc.pauseDepth > 0 {
		vm.gc.pauseDepth--
	}
}

func (vm *VM) collectGarbage() {
	before := vm.gc.bytesAllocated

	vm.typedRegs.ReconcileAll(vm.regs.Get)
	vm.markRoots()
	vm.sweep()

	vm.gc.cycles++
	vm.gc.nextGC = vm.gc.bytesAllocated * 2
	if vm.gc.nextGC < GC_DEFAULT_THRESHOLD {
		vm.gc.nextGC = GC_DEFAULT_THRESHOLD
	}

	gcLog.Debugf("collected %s, %s live, next cycle at %s",
		humanize.IBytes(before-vm.gc.bytesAllocated),
		humanize.IBytes(vm.gc.bytesAllocated),
		humanize.IBytes(vm.gc.nextGC))
}

func (vm *VM) markRoots() {
	for i := range vm.regs.Globals {
		markValue(vm.regs.Globals[i])
	}
	for i := range vm.regs.Frame {
		markValue(vm.regs.Frame[i])
	}
	for i := range vm.regs.Temps {
		markValue(vm.regs.Temps[i])
	}
	vm.regs.Modules.each(func(v *Value) { markValue(*v) })
	vm.regs.Spill.each(func(v *Value) { markValue(*v) })

	for i := 0; i < vm.frameCount; i++ {
		f := &vm.frames[i]
		for j := range f.SavedRegisters {
			markValue(f.SavedRegisters[j])
		}
	}

	for uv := vm.openUpvalues; uv != nil; uv = uv.NextUpvalue {
		markObject(&uv.Obj)
	}

	// Active typed iterator descriptors reference their array outside any
	// register slot.
	for i := range vm.typedIterators {
		d := &vm.typedIterators[i]
		if d.Kind == TYPED_ITER_ARRAY_SLICE && d.Array != nil {
			markObject(&d.Array.Obj)
		}
	}

	if vm.chunk != nil {
		for _, k := range vm.chunk.Constants {
			markValue(k)
		}
	}
	for i := 0; i < vm.functionCount; i++ {
		if vm.functions[i] != nil {
			markObject(&vm.functions[i].Obj)
		}
	}

	markValue(vm.lastError)
}

func markValue(v Value) {
	if v.obj != nil {
		markObject(v.obj)
	}
}

func markObject(o *Obj) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true

	switch o.Type {
	case OBJ_ARRAY:
		arr := (*ObjArray)(unsafe.Pointer(o))
		for i := 0; i < arr.Length; i++ {
			markValue(arr.Elements[i])
		}
	case OBJ_ARRAY_ITERATOR:
		it := (*ObjArrayIterator)(unsafe.Pointer(o))
		if it.Array != nil {
			markObject(&it.Array.Obj)
		}
	case OBJ_ENUM_INSTANCE:
		e := (*ObjEnumInstance)(unsafe.Pointer(o))
		if e.TypeName != nil {
			markObject(&e.TypeName.Obj)
		}
		if e.VariantName != nil {
			markObject(&e.VariantName.Obj)
		}
		if e.Payload != nil {
			markObject(&e.Payload.Obj)
		}
	case OBJ_ERROR:
		err := (*ObjError)(unsafe.Pointer(o))
		if err.Message != nil {
			markObject(&err.Message.Obj)
		}
	case OBJ_FUNCTION:
		fn := (*ObjFunction)(unsafe.Pointer(o))
		if fn.Name != nil {
			markObject(&fn.Name.Obj)
		}
		if fn.Chunk != nil {
			for _, k := range fn.Chunk.Constants {
				markValue(k)
			}
		}
	case OBJ_CLOSURE:
		cl := (*ObjClosure)(unsafe.Pointer(o))
		if cl.Function != nil {
			markObject(&cl.Function.Obj)
		}
		for _, uv := range cl.Upvalues {
			if uv != nil {
				markObject(&uv.Obj)
			}
		}
	case OBJ_UPVALUE:
		uv := (*ObjUpvalue)(unsafe.Pointer(o))
		markValue(uv.Closed)
		if uv.Location != nil {
			markValue(*uv.Location)
		}
	}
}

func (vm *VM) sweep() {
	var prev *Obj
	o := vm.gc.objects
	for o != nil {
		if o.Marked {
			o.Marked = false
			prev = o
			o = o.Next
			continue
		}
		dead := o
		o = o.Next
		if prev == nil {
			vm.gc.objects = o
		} else {
			prev.Next = o
		}
		vm.freeObject(dead)
	}
}

// freeObject recycles one object onto its kind's free list. Strings leave
// the intern table so the table never resurrects a dead entry.
func (vm *VM) freeObject(o *Obj) {
	if o.Type == OBJ_STRING {
		vm.strings.remove((*ObjString)(unsafe.Pointer(o)))
	}
	vm.gc.bytesAllocated -= objSizes[o.Type]
	o.Next = vm.gc.freeLists[o.Type]
	vm.gc.freeLists[o.Type] = o
}

// freeAllObjects tears down the heap on VM shutdown.
func (vm *VM) freeAllObjects() {
	o := vm.gc.objects
	for o != nil {
		next := o.Next
		o.Next = nil
		o = next
	}
	vm.gc.objects = nil
	vm.gc.bytesAllocated = 0
	for i := range vm.gc.freeLists {
		vm.gc.freeLists[i] = nil
	}
	vm.strings.reset()
}
