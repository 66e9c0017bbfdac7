package vm

// Typed Register Cache
// ====================
//
// Unboxed shadow banks for the 256 registers addressable by the one-byte
// operands of the *_TYPED opcodes. A typed store lands in its bank and marks
// the entry dirty; the boxed slot is reconciled lazily (boxed reads, call
// boundaries, GC roots). A boxed store invalidates the shadow so stale typed
// reads cannot happen.

const TYPED_REGISTER_COUNT = 256

type RegisterType uint8

const (
	REG_TYPE_NONE RegisterType = iota
	REG_TYPE_I32
	REG_TYPE_I64
	REG_TYPE_U32
	REG_TYPE_U64
	REG_TYPE_F64
	REG_TYPE_BOOL
	REG_TYPE_HEAP
)

type TypedRegisters struct {
	I32  [TYPED_REGISTER_COUNT]int32
	I64  [TYPED_REGISTER_COUNT]int64
	U32  [TYPED_REGISTER_COUNT]uint32
	U64  [TYPED_REGISTER_COUNT]uint64
	F64  [TYPED_REGISTER_COUNT]float64
	Bool [TYPED_REGISTER_COUNT]bool

	// dirty marks entries whose boxed copy is stale.
	dirty    [TYPED_REGISTER_COUNT]bool
	regTypes [TYPED_REGISTER_COUNT]RegisterType
}

// invalidate drops the shadow entry after a boxed write.
func (t *TypedRegisters) invalidate(reg uint8) {
	t.regTypes[reg] = REG_TYPE_NONE
	t.dirty[reg] = false
}

func (t *TypedRegisters) invalidateAll() {
	for i := range t.regTypes {
		t.regTypes[i] = REG_TYPE_NONE
		t.dirty[i] = false
	}
}

// ============================================================================
// Typed stores
// ============================================================================

func (t *TypedRegisters) SetI32(reg uint8, v int32) {
	t.I32[reg] = v
	t.regTypes[reg] = REG_TYPE_I32
	t.dirty[reg] = true
}

func (t *TypedRegisters) SetI64(reg uint8, v int64) {
	t.I64[reg] = v
	t.regTypes[reg] = REG_TYPE_I64
	t.dirty[reg] = true
}

func (t *TypedRegisters) SetU32(reg uint8, v uint32) {
	t.U32[reg] = v
	t.regTypes[reg] = REG_TYPE_U32
	t.dirty[reg] = true
}

func (t *TypedRegisters) SetU64(reg uint8, v uint64) {
	t.U64[reg] = v
	t.regTypes[reg] = REG_TYPE_U64
	t.dirty[reg] = true
}

func (t *TypedRegisters) SetF64(reg uint8, v float64) {
	t.F64[reg] = v
	t.regTypes[reg] = REG_TYPE_F64
	t.dirty[reg] = true
}

func (t *TypedRegisters) SetBool(reg uint8, v bool) {
	t.Bool[reg] = v
	t.regTypes[reg] = REG_TYPE_BOOL
	t.dirty[reg] = true
}

// ============================================================================
// Typed reads
// ============================================================================
//
// TryRead* first consults the shadow, then falls back to unboxing the boxed
// slot and populating the shadow (a clean entry, the boxed copy stays
// authoritative). A false return means the register does not hold that type.

func (t *TypedRegisters) TryReadI32(reg uint8, boxed *Value) (int32, bool) {
	if t.regTypes[reg] == REG_TYPE_I32 {
		return t.I32[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_I32 {
		t.I32[reg] = AsI32(*boxed)
		t.regTypes[reg] = REG_TYPE_I32
		return t.I32[reg], true
	}
	return 0, false
}

func (t *TypedRegisters) TryReadI64(reg uint8, boxed *Value) (int64, bool) {
	if t.regTypes[reg] == REG_TYPE_I64 {
		return t.I64[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_I64 {
		t.I64[reg] = AsI64(*boxed)
		t.regTypes[reg] = REG_TYPE_I64
		return t.I64[reg], true
	}
	return 0, false
}

func (t *TypedRegisters) TryReadU32(reg uint8, boxed *Value) (uint32, bool) {
	if t.regTypes[reg] == REG_TYPE_U32 {
		return t.U32[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_U32 {
		t.U32[reg] = AsU32(*boxed)
		t.regTypes[reg] = REG_TYPE_U32
		return t.U32[reg], true
	}
	return 0, false
}

func (t *TypedRegisters) TryReadU64(reg uint8, boxed *Value) (uint64, bool) {
	if t.regTypes[reg] == REG_TYPE_U64 {
		return t.U64[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_U64 {
		t.U64[reg] = AsU64(*boxed)
		t.regTypes[reg] = REG_TYPE_U64
		return t.U64[reg], true
	}
	return 0, false
}

func (t *TypedRegisters) TryReadF64(reg uint8, boxed *Value) (float64, bool) {
	if t.regTypes[reg] == REG_TYPE_F64 {
		return t.F64[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_F64 {
		t.F64[reg] = AsF64(*boxed)
		t.regTypes[reg] = REG_TYPE_F64
		return t.F64[reg], true
	}
	return 0, false
}

func (t *TypedRegisters) TryReadBool(reg uint8, boxed *Value) (bool, bool) {
	if t.regTypes[reg] == REG_TYPE_BOOL {
		return t.Bool[reg], true
	}
	if t.regTypes[reg] == REG_TYPE_NONE && boxed.Type == VAL_BOOL {
		t.Bool[reg] = AsBool(*boxed)
		t.regTypes[reg] = REG_TYPE_BOOL
		return t.Bool[reg], true
	}
	return false, false
}

// ============================================================================
// Reconciliation
// ============================================================================

// boxedOf materializes the boxed Value for a dirty shadow entry.
func (t *TypedRegisters) boxedOf(reg uint8) Value {
	switch t.regTypes[reg] {
	case REG_TYPE_I32:
		return BoxI32(t.I32[reg])
	case REG_TYPE_I64:
		return BoxI64(t.I64[reg])
	case REG_TYPE_U32:
		return BoxU32(t.U32[reg])
	case REG_TYPE_U64:
		return BoxU64(t.U64[reg])
	case REG_TYPE_F64:
		return BoxF64(t.F64[reg])
	case REG_TYPE_BOOL:
		return BoxBool(t.Bool[reg])
	default:
		return NilValue()
	}
}

// Reconcile flushes one dirty entry into its boxed slot.
func (t *TypedRegisters) Reconcile(reg uint8, boxed *Value) {
	if !t.dirty[reg] {
		return
	}
	*boxed = t.boxedOf(reg)
	t.dirty[reg] = false
}

// ReconcileAll flushes every dirty entry through resolve, which maps a
// register id to its boxed slot. Called before GC and at call boundaries.
func (t *TypedRegisters) ReconcileAll(resolve func(uint16) *Value) {
	for i := range t.dirty {
		if t.dirty[i] {
			*resolve(uint16(i)) = t.boxedOf(uint8(i))
			t.dirty[i] = false
		}
	}
}

func (t *TypedRegisters) TypeOf(reg uint8) RegisterType { return t.regTypes[reg] }

func (t *TypedRegisters) IsDirty(reg uint8) bool { return t.dirty[reg] }
