package vm

import "testing"

// Test operand encoding is little-endian with code-aligned debug info
func TestChunkEncoding(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("a.orus")

	c.WriteOp(OP_LOAD_CONST, 7, 3, f)
	c.WriteU16(0x1234, 7, 3, f)
	c.WriteI32(-2, 8, 1, f)

	want := []byte{byte(OP_LOAD_CONST), 0x34, 0x12, 0xFE, 0xFF, 0xFF, 0xFF}
	if len(c.Code) != len(want) {
		t.Fatalf("code length %d, want %d", len(c.Code), len(want))
	}
	for i, b := range want {
		if c.Code[i] != b {
			t.Errorf("code[%d] = %#x, want %#x", i, c.Code[i], b)
		}
	}
	if len(c.Lines) != len(c.Code) || len(c.Columns) != len(c.Code) || len(c.Files) != len(c.Code) {
		t.Error("debug arrays must stay code-aligned")
	}
	if c.Lines[0] != 7 || c.Lines[3] != 8 {
		t.Errorf("lines = %v", c.Lines)
	}
}

func TestChunkAddFileDeduplicates(t *testing.T) {
	c := NewChunk()
	a := c.AddFile("main.orus")
	b := c.AddFile("lib.orus")
	if a == b {
		t.Fatal("distinct files must get distinct indices")
	}
	if again := c.AddFile("main.orus"); again != a {
		t.Errorf("got %d, want the original index %d", again, a)
	}
}

// Test forward jump patching lands past the jump operand
func TestPatchJump(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("a.orus")

	pos := c.EmitJump(OP_JUMP, 1, 1, f)
	c.WriteOp(OP_HALT, 1, 1, f)
	c.WriteOp(OP_HALT, 1, 1, f)
	if err := c.PatchJump(pos); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}

	// pc sits at pos+2 after the operand is read; adding the offset must
	// land exactly at the end of the two skipped bytes.
	off := int(c.Code[pos]) | int(c.Code[pos+1])<<8
	if got := pos + 2 + off; got != len(c.Code) {
		t.Errorf("jump lands at %d, want %d", got, len(c.Code))
	}
}

func TestPatchJumpRejectsOverlongDistance(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("a.orus")
	pos := c.EmitJump(OP_JUMP, 1, 1, f)
	for i := 0; i < 0x10001; i++ {
		c.WriteOp(OP_HALT, 1, 1, f)
	}
	if err := c.PatchJump(pos); err == nil {
		t.Error("expected an out-of-range error")
	}
}

// Test backward loop distance counts from after the operand
func TestEmitLoop(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("a.orus")

	c.WriteOp(OP_HALT, 1, 1, f)
	loopStart := len(c.Code)
	c.WriteOp(OP_HALT, 1, 1, f)
	if err := c.EmitLoop(OP_LOOP, loopStart, 1, 1, f); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}

	operand := len(c.Code) - 2
	off := int(c.Code[operand]) | int(c.Code[operand+1])<<8
	if got := len(c.Code) - off; got != loopStart {
		t.Errorf("loop lands at %d, want %d", got, loopStart)
	}
}

func TestMonotonicRangeFlags(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("a.orus")
	for i := 0; i < 8; i++ {
		c.WriteOp(OP_HALT, 1, 1, f)
	}
	c.MarkMonotonicRange(2, 4)
	for i := 0; i < 8; i++ {
		want := i == 2 || i == 3
		if got := c.MonotonicAt(i); got != want {
			t.Errorf("MonotonicAt(%d) = %v, want %v", i, got, want)
		}
	}

	// Out-of-range marks must clamp, not panic.
	c.MarkMonotonicRange(-3, 100)
	if !c.MonotonicAt(0) || !c.MonotonicAt(7) {
		t.Error("clamped mark should cover the whole chunk")
	}
}

func TestConstantPoolOverflow(t *testing.T) {
	c := NewChunk()
	for i := 0; i < 0x10000; i++ {
		if _, err := c.AddConstant(BoxI32(int32(i))); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if _, err := c.AddConstant(NilValue()); err == nil {
		t.Error("expected a pool overflow error")
	}
}
