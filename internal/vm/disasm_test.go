package vm

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisassembleChunk(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("demo.orus")

	c.WriteOp(OP_LOAD_I32_CONST, 3, 1, f)
	c.WriteByte(0, 3, 1, f)
	c.WriteI32(-12, 3, 1, f)
	c.WriteOp(OP_ADD_I32_R, 3, 9, f)
	c.WriteByte(2, 3, 9, f)
	c.WriteByte(0, 3, 9, f)
	c.WriteByte(1, 3, 9, f)
	c.WriteOp(OP_HALT, 4, 1, f)

	var out bytes.Buffer
	DisassembleChunk(c, "demo", &out)
	text := out.String()

	for _, want := range []string{
		"== demo ==",
		"LOAD_I32_CONST",
		" -12",
		"ADD_I32_R",
		"HALT",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	// The second instruction shares line 3 with the first and must show
	// the repeat marker instead of the line number.
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), text)
	}
	if !strings.Contains(lines[2], "   | ") {
		t.Errorf("repeated line should show the marker: %q", lines[2])
	}
	if !strings.HasPrefix(lines[1], "0000 ") || !strings.HasPrefix(lines[2], "0006 ") {
		t.Errorf("offsets wrong:\n%s", text)
	}
}

func TestDecodeClosure(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("demo.orus")
	c.WriteOp(OP_CLOSURE_R, 1, 1, f)
	for _, b := range []byte{12, 11, 2, 1, 3, 0, 0} {
		c.WriteByte(b, 1, 1, f)
	}

	text, next := decodeInstruction(c, 0)
	if !strings.Contains(text, "CLOSURE_R") || !strings.Contains(text, "(local 3)") || !strings.Contains(text, "(upval 0)") {
		t.Errorf("got %q", text)
	}
	if next != len(c.Code) {
		t.Errorf("next = %d, want %d", next, len(c.Code))
	}
}

func TestDecodeTruncatedOperand(t *testing.T) {
	c := NewChunk()
	f := c.AddFile("demo.orus")
	c.WriteOp(OP_LOAD_CONST, 1, 1, f)
	c.WriteByte(0, 1, 1, f) // u16 operand missing

	text, next := decodeInstruction(c, 0)
	if !strings.Contains(text, "<truncated>") {
		t.Errorf("got %q", text)
	}
	if next != len(c.Code) {
		t.Errorf("next = %d, want end of code", next)
	}
}

// Every opcode the dispatch table executes must also disassemble, or -d
// output desynchronizes right where it is needed most.
func TestAllHandledOpcodesHaveFormats(t *testing.T) {
	for op := OpCode(0); op < OP_CODE_COUNT; op++ {
		if opTable[op] == nil {
			continue
		}
		if op == OP_CLOSURE_R {
			continue // decoded by hand
		}
		if _, ok := opFormats[op]; !ok {
			t.Errorf("%s has a handler but no disassembly format", op)
		}
	}
}
