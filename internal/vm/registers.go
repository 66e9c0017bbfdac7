package vm

// Register File Layout
// ====================
//
// Register ids are 16-bit and partitioned into tiers. Globals live for the
// whole program, the frame and temp windows belong to the active call frame
// and are saved/restored across calls, module registers are per-module banks,
// and everything at or above SPILL_REG_START lands in a dynamic spill space.

const (
	GLOBAL_REGISTERS = 256
	FRAME_REGISTERS  = 64
	TEMP_REGISTERS   = 32
	MODULE_REGISTERS = 128

	FRAME_REG_START  = 256
	TEMP_REG_START   = 320
	MODULE_REG_START = 352
	SPILL_REG_START  = 480

	SAVED_REGISTERS = FRAME_REGISTERS + TEMP_REGISTERS

	VM_MAX_CALL_FRAMES = 256
	TRY_MAX            = 16
	MAX_NATIVES        = 256
)

// RegisterFile holds the boxed register tiers. The frame and temp windows
// are the live windows of the current call frame; CALL_R swaps them through
// CallFrame.SavedRegisters.
type RegisterFile struct {
	Globals [GLOBAL_REGISTERS]Value
	Frame   [FRAME_REGISTERS]Value
	Temps   [TEMP_REGISTERS]Value

	Modules *ModuleManager
	Spill   *spillSpace
}

func newRegisterFile() *RegisterFile {
	rf := &RegisterFile{
		Modules: newModuleManager(),
		Spill:   newSpillSpace(),
	}
	for i := range rf.Globals {
		rf.Globals[i] = NilValue()
	}
	for i := range rf.Frame {
		rf.Frame[i] = NilValue()
	}
	for i := range rf.Temps {
		rf.Temps[i] = NilValue()
	}
	return rf
}

// Get resolves a register id to its slot. Module reads go through the active
// module bank; spill reads materialize a nil slot on first touch so that the
// emitter never has to pre-declare spill ids.
func (rf *RegisterFile) Get(id uint16) *Value {
	switch {
	case id < FRAME_REG_START:
		return &rf.Globals[id]
	case id < TEMP_REG_START:
		return &rf.Frame[id-FRAME_REG_START]
	case id < MODULE_REG_START:
		return &rf.Temps[id-TEMP_REG_START]
	case id < SPILL_REG_START:
		return rf.Modules.slot(id - MODULE_REG_START)
	default:
		return rf.Spill.slot(id)
	}
}

// Set writes a register slot.
func (rf *RegisterFile) Set(id uint16, v Value) {
	*rf.Get(id) = v
}

// clearFrameWindow resets the frame and temp windows for a fresh callee.
func (rf *RegisterFile) clearFrameWindow() {
	for i := range rf.Frame {
		rf.Frame[i] = NilValue()
	}
	for i := range rf.Temps {
		rf.Temps[i] = NilValue()
	}
}

// saveWindow copies the frame and temp windows into dst (SAVED_REGISTERS
// slots, frame first).
func (rf *RegisterFile) saveWindow(dst *[SAVED_REGISTERS]Value) {
	copy(dst[:FRAME_REGISTERS], rf.Frame[:])
	copy(dst[FRAME_REGISTERS:], rf.Temps[:])
}

// restoreWindow is the inverse of saveWindow.
func (rf *RegisterFile) restoreWindow(src *[SAVED_REGISTERS]Value) {
	copy(rf.Frame[:], src[:FRAME_REGISTERS])
	copy(rf.Temps[:], src[FRAME_REGISTERS:])
}

// ============================================================================
// Spill space
// ============================================================================

// spillSpace backs register ids at or above SPILL_REG_START. Slots persist
// until reset; the emitter reuses ids so the map stays small in practice.
type spillSpace struct {
	slots map[uint16]*Value
}

func newSpillSpace() *spillSpace {
	return &spillSpace{slots: make(map[uint16]*Value)}
}

func (s *spillSpace) slot(id uint16) *Value {
	if v, ok := s.slots[id]; ok {
		return v
	}
	v := new(Value)
	*v = NilValue()
	s.slots[id] = v
	return v
}

// each visits live spill slots; used by the GC root walk.
func (s *spillSpace) each(fn func(*Value)) {
	for _, v := range s.slots {
		fn(v)
	}
}

func (s *spillSpace) reset() {
	s.slots = make(map[uint16]*Value)
}
