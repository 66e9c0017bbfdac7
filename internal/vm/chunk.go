package vm

import "github.com/pkg/errors"

// Chunk is a compiled unit of bytecode: a flat byte stream of opcodes and
// positional operands, parallel debug arrays per code byte, a constant pool,
// and per-byte monotonic-range hints consumed by the fused loop opcodes.
type Chunk struct {
	Code    []byte
	Lines   []int32
	Columns []int32
	Files   []uint16

	// MonotonicRangeFlags is code-aligned; a nonzero byte at an
	// OP_INC_CMP_JMP offset lets the dispatcher skip the overflow check.
	MonotonicRangeFlags []byte

	Constants []Value

	// FileNames backs the Files indices.
	FileNames []string
}

func NewChunk() *Chunk {
	return &Chunk{}
}

// ============================================================================
// Emission
// ============================================================================

// WriteByte appends one raw byte with its source position.
func (c *Chunk) WriteByte(b byte, line, column int32, file uint16) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, column)
	c.Files = append(c.Files, file)
	c.MonotonicRangeFlags = append(c.MonotonicRangeFlags, 0)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line, column int32, file uint16) {
	c.WriteByte(byte(op), line, column, file)
}

// WriteU16 appends a 16-bit operand little-endian.
func (c *Chunk) WriteU16(v uint16, line, column int32, file uint16) {
	c.WriteByte(byte(v&0xFF), line, column, file)
	c.WriteByte(byte(v>>8), line, column, file)
}

// WriteI32 appends a 32-bit immediate little-endian.
func (c *Chunk) WriteI32(v int32, line, column int32, file uint16) {
	u := uint32(v)
	c.WriteByte(byte(u), line, column, file)
	c.WriteByte(byte(u>>8), line, column, file)
	c.WriteByte(byte(u>>16), line, column, file)
	c.WriteByte(byte(u>>24), line, column, file)
}

// AddConstant appends to the pool and returns the 16-bit index. Identical
// constants are not deduplicated here; that is an emitter concern.
func (c *Chunk) AddConstant(v Value) (uint16, error) {
	if len(c.Constants) >= 0x10000 {
		return 0, errors.New("constant pool overflow")
	}
	c.Constants = append(c.Constants, v)
	return uint16(len(c.Constants) - 1), nil
}

// AddFile registers a file name and returns its index for WriteOp calls.
func (c *Chunk) AddFile(name string) uint16 {
	for i, f := range c.FileNames {
		if f == name {
			return uint16(i)
		}
	}
	c.FileNames = append(c.FileNames, name)
	return uint16(len(c.FileNames) - 1)
}

// ============================================================================
// Jump patching
// ============================================================================

// EmitJump writes op followed by a 16-bit placeholder offset and returns
// the offset of the placeholder for PatchJump.
func (c *Chunk) EmitJump(op OpCode, line, column int32, file uint16) int {
	c.WriteOp(op, line, column, file)
	c.WriteU16(0xFFFF, line, column, file)
	return len(c.Code) - 2
}

// PatchJump resolves a forward jump placeholder at operandOffset so the
// dispatcher lands on the current end of code. The offset is measured from
// the first byte after the operand.
func (c *Chunk) PatchJump(operandOffset int) error {
	jump := len(c.Code) - operandOffset - 2
	if jump < 0 || jump > 0xFFFF {
		return errors.Errorf("jump distance %d out of range", jump)
	}
	c.Code[operandOffset] = byte(jump & 0xFF)
	c.Code[operandOffset+1] = byte(jump >> 8)
	return nil
}

// EmitLoop writes a backward jump to loopStart. The distance counts from
// the byte after the two operand bytes.
func (c *Chunk) EmitLoop(op OpCode, loopStart int, line, column int32, file uint16) error {
	c.WriteOp(op, line, column, file)
	dist := len(c.Code) + 2 - loopStart
	if dist < 0 || dist > 0xFFFF {
		return errors.Errorf("loop distance %d out of range", dist)
	}
	c.WriteU16(uint16(dist), line, column, file)
	return nil
}

// MarkMonotonicRange flags the code bytes in [start, end) as belonging to a
// loop whose induction variable was proven to stay below a constant bound,
// so OP_INC_CMP_JMP may increment without an overflow check.
func (c *Chunk) MarkMonotonicRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(c.MonotonicRangeFlags) {
		end = len(c.MonotonicRangeFlags)
	}
	for i := start; i < end; i++ {
		c.MonotonicRangeFlags[i] = 1
	}
}

// MonotonicAt reports whether the hint is set for the code byte at offset.
func (c *Chunk) MonotonicAt(offset int) bool {
	return offset >= 0 && offset < len(c.MonotonicRangeFlags) && c.MonotonicRangeFlags[offset] != 0
}

// ============================================================================
// Debug accessors
// ============================================================================

func (c *Chunk) LineAt(offset int) int32 {
	if offset < 0 || offset >= len(c.Lines) {
		return -1
	}
	return c.Lines[offset]
}

func (c *Chunk) ColumnAt(offset int) int32 {
	if offset < 0 || offset >= len(c.Columns) {
		return -1
	}
	return c.Columns[offset]
}

func (c *Chunk) FileAt(offset int) string {
	if offset < 0 || offset >= len(c.Files) {
		return ""
	}
	idx := int(c.Files[offset])
	if idx >= len(c.FileNames) {
		return ""
	}
	return c.FileNames[idx]
}

// ReadU16 decodes the little-endian u16 at offset.
func (c *Chunk) ReadU16(offset int) uint16 {
	return uint16(c.Code[offset]) | uint16(c.Code[offset+1])<<8
}

// ReadI32 decodes the little-endian i32 at offset.
func (c *Chunk) ReadI32(offset int) int32 {
	return int32(uint32(c.Code[offset]) |
		uint32(c.Code[offset+1])<<8 |
		uint32(c.Code[offset+2])<<16 |
		uint32(c.Code[offset+3])<<24)
}
