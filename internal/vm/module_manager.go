package vm

// ModuleManager owns the per-module register banks. Each loaded module gets
// MODULE_REGISTERS boxed slots plus an export table mapping names to offsets
// in its bank. SWITCH_MODULE selects which bank the module tier resolves to.
type ModuleManager struct {
	banks   []*moduleBank
	names   map[string]uint8
	current uint8
}

type moduleBank struct {
	name    string
	regs    [MODULE_REGISTERS]Value
	exports map[string]uint8
}

func newModuleManager() *ModuleManager {
	m := &ModuleManager{names: make(map[string]uint8)}
	m.Register("main")
	return m
}

// Register creates (or finds) the bank for name and returns its module id.
func (m *ModuleManager) Register(name string) uint8 {
	if id, ok := m.names[name]; ok {
		return id
	}
	b := &moduleBank{name: name, exports: make(map[string]uint8)}
	for i := range b.regs {
		b.regs[i] = NilValue()
	}
	m.banks = append(m.banks, b)
	id := uint8(len(m.banks) - 1)
	m.names[name] = id
	return id
}

// Switch makes id the active bank for the module register tier.
func (m *ModuleManager) Switch(id uint8) bool {
	if int(id) >= len(m.banks) {
		return false
	}
	m.current = id
	return true
}

func (m *ModuleManager) Current() uint8 { return m.current }

// slot resolves a module-tier offset against the active bank.
func (m *ModuleManager) slot(offset uint16) *Value {
	return &m.banks[m.current].regs[offset%MODULE_REGISTERS]
}

// SlotIn resolves an offset in a specific module's bank.
func (m *ModuleManager) SlotIn(id uint8, offset uint8) (*Value, bool) {
	if int(id) >= len(m.banks) {
		return nil, false
	}
	return &m.banks[id].regs[offset], true
}

// Export publishes the active bank's slot at offset under name.
func (m *ModuleManager) Export(name string, offset uint8) {
	m.banks[m.current].exports[name] = offset
}

// Import copies the named export of module src into the active bank's slot
// at the export's own offset; returns false when the export does not exist.
func (m *ModuleManager) Import(name string, src uint8) bool {
	if int(src) >= len(m.banks) {
		return false
	}
	offset, ok := m.banks[src].exports[name]
	if !ok {
		return false
	}
	m.banks[m.current].regs[offset] = m.banks[src].regs[offset]
	return true
}

// each visits every slot of every bank; used by the GC root walk.
func (m *ModuleManager) each(fn func(*Value)) {
	for _, b := range m.banks {
		for i := range b.regs {
			fn(&b.regs[i])
		}
	}
}
