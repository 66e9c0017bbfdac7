package vm

import "testing"

// Test that collection keeps rooted objects and recycles the rest
func TestCollectGarbage(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	rooted := machine.newString("keep me around please")
	machine.SetGlobal(0, BoxStringObj(rooted))
	machine.newString("nobody references this one")

	before := machine.gc.bytesAllocated
	machine.collectGarbage()
	after := machine.gc.bytesAllocated

	if after >= before {
		t.Errorf("allocated bytes did not shrink: %d -> %d", before, after)
	}
	if got := machine.strings.find("keep me around please", HashString("keep me around please")); got != rooted {
		t.Error("rooted string must survive collection")
	}
	if machine.strings.find("nobody references this one", HashString("nobody references this one")) != nil {
		t.Error("swept string must leave the intern table")
	}
}

// Test that swept objects come back through the free list
func TestFreeListReuse(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	machine.newArray(4)
	machine.collectGarbage()
	if machine.gc.freeLists[OBJ_ARRAY] == nil {
		t.Fatal("swept array should sit on the free list")
	}

	arr := machine.newArray(4)
	if machine.gc.freeLists[OBJ_ARRAY] != nil {
		t.Error("allocation should have consumed the free list head")
	}
	if arr.Length != 0 || len(arr.Elements) != 0 {
		t.Error("recycled array must come back empty")
	}
}

// Test that marking follows array elements, not just the array
func TestMarkTraversesChildren(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	machine.PauseGC()
	arr := machine.newArray(1)
	elem := machine.newString("held by the array only")
	arr.Elements = append(arr.Elements, BoxStringObj(elem))
	arr.Length = 1
	machine.ResumeGC()
	machine.SetGlobal(0, BoxArrayObj(arr))

	machine.collectGarbage()
	if machine.strings.find("held by the array only", HashString("held by the array only")) == nil {
		t.Error("element of a rooted array must survive")
	}
}

// Test that collection flushes dirty typed entries into their boxed slots
func TestCollectReconcilesTypedRegisters(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	machine.typedRegs.SetI32(3, 77)
	machine.collectGarbage()
	if got := machine.Global(3); !ValuesEqual(got, BoxI32(77)) {
		t.Errorf("global 3 holds %s after collection, want 77", ToString(got))
	}
}

func TestPauseGCNesting(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	machine.PauseGC()
	machine.PauseGC()
	machine.ResumeGC()
	if machine.gc.pauseDepth != 1 {
		t.Errorf("pause depth %d, want 1", machine.gc.pauseDepth)
	}
	machine.ResumeGC()
	machine.ResumeGC() // extra resume must not go negative
	if machine.gc.pauseDepth != 0 {
		t.Errorf("pause depth %d, want 0", machine.gc.pauseDepth)
	}
}

// Test string interning returns the same object for equal text
func TestStringInterning(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := machine.InternString("twice")
	b := machine.InternString("twice")
	if a != b {
		t.Error("equal text must intern to one object")
	}
	if machine.InternString("other") == a {
		t.Error("distinct text must not collide")
	}
}

// Test that arrays held only by a typed iterator descriptor survive the GC
func TestCollectKeepsIteratedArray(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	arr := machine.newArray(3)
	for i := int32(10); i <= 30; i += 10 {
		arr.push(BoxI32(i))
	}
	if !machine.makeIterator(5, BoxArrayObj(arr)) {
		t.Fatal("array should be iterable")
	}

	// The descriptor is the only remaining reference; a collection plus
	// two allocations would recycle the array if it were unmarked.
	machine.collectGarbage()
	machine.newArray(0)
	machine.newArray(0)

	d := &machine.typedIterators[5]
	if d.Kind != TYPED_ITER_ARRAY_SLICE || d.Array == nil {
		t.Fatal("descriptor should still be installed")
	}
	if d.Array.Length != 3 || !ValuesEqual(d.Array.Elements[0], BoxI32(10)) {
		t.Errorf("iterated array corrupted after collection: Length=%d, want 3", d.Array.Length)
	}
}
