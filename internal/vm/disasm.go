package vm

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Bytecode Disassembler
// =====================
//
// Operand shapes are table-driven: each opcode maps to a format string where
// r = one register byte, w = a 16-bit little-endian word, i = a 32-bit
// little-endian immediate. OP_CLOSURE_R is variable length and decoded by
// hand.

var opFormats = map[OpCode]string{
	OP_LOAD_CONST: "rw",
	OP_LOAD_NIL:   "r",
	OP_LOAD_TRUE:  "r",
	OP_LOAD_FALSE: "r",

	OP_MOVE:         "rr",
	OP_LOAD_GLOBAL:  "rr",
	OP_STORE_GLOBAL: "rr",

	OP_INC_I32_R:       "r",
	OP_INC_I32_CHECKED: "r",
	OP_INC_I64_R:       "r",
	OP_INC_I64_CHECKED: "r",
	OP_INC_U32_R:       "r",
	OP_INC_U32_CHECKED: "r",
	OP_INC_U64_R:       "r",
	OP_INC_U64_CHECKED: "r",
	OP_DEC_I32_R:       "r",

	OP_NOT_I32_R:  "rr",
	OP_NOT_BOOL_R: "rr",

	OP_TO_STRING_R: "rr",

	OP_MAKE_ARRAY_R:   "rrr",
	OP_ENUM_NEW_R:     "rrrrww",
	OP_ENUM_PAYLOAD_R: "rrrr",
	OP_ARRAY_LEN_R:    "rr",
	OP_ARRAY_PUSH_R:   "rr",
	OP_ARRAY_POP_R:    "rr",
	OP_ARRAY_SORTED_R: "rr",
	OP_ARRAY_SLICE_R:  "rrrr",

	OP_TRY_BEGIN:             "ww",
	OP_TRY_END:               "",
	OP_THROW:                 "r",
	OP_JUMP:                  "w",
	OP_JUMP_IF_R:             "rw",
	OP_JUMP_IF_NOT_R:         "rw",
	OP_JUMP_IF_NOT_I32_TYPED: "rrr",
	OP_LOOP:                  "w",
	OP_GET_ITER_R:            "rr",
	OP_ITER_NEXT_R:           "rrr",

	OP_CALL_R:        "rrrr",
	OP_CALL_NATIVE_R: "rrrr",
	OP_TAIL_CALL_R:   "rrrr",
	OP_RETURN_R:      "r",
	OP_RETURN_VOID:   "",

	OP_LOAD_FRAME:       "rr",
	OP_STORE_FRAME:      "rr",
	OP_ENTER_FRAME:      "r",
	OP_EXIT_FRAME:       "",
	OP_MOVE_FRAME:       "rr",
	OP_LOAD_SPILL:       "rw",
	OP_STORE_SPILL:      "wr",
	OP_LOAD_MODULE:      "rrr",
	OP_STORE_MODULE:     "rrr",
	OP_LOAD_MODULE_NAME: "w",
	OP_SWITCH_MODULE:    "r",
	OP_EXPORT_VAR:       "wr",
	OP_IMPORT_VAR:       "wr",

	OP_GET_UPVALUE_R:   "rr",
	OP_SET_UPVALUE_R:   "rr",
	OP_CLOSE_UPVALUE_R: "r",

	OP_PARSE_INT_R:       "rr",
	OP_PARSE_FLOAT_R:     "rr",
	OP_TYPE_OF_R:         "rr",
	OP_IS_TYPE_R:         "rrr",
	OP_INPUT_R:           "rrr",
	OP_RANGE_R:           "rrrrr",
	OP_PRINT_MULTI_R:     "rrr",
	OP_PRINT_R:           "r",
	OP_PRINT_MULTI_SEP_R: "rrrr",
	OP_PRINT_NO_NL_R:     "r",

	OP_JUMP_SHORT:        "r",
	OP_JUMP_BACK_SHORT:   "r",
	OP_JUMP_IF_NOT_SHORT: "rr",
	OP_LOOP_SHORT:        "r",
	OP_BRANCH_TYPED:      "wrr",

	OP_LOAD_I32_CONST: "ri",
	OP_LOAD_I64_CONST: "rw",
	OP_LOAD_F64_CONST: "rw",
	OP_MOVE_I32:       "rr",
	OP_MOVE_I64:       "rr",
	OP_MOVE_F64:       "rr",

	OP_TIME_STAMP: "r",

	OP_ADD_I32_IMM: "rri",
	OP_SUB_I32_IMM: "rri",
	OP_MUL_I32_IMM: "rri",
	OP_CMP_I32_IMM: "rri",

	OP_LOAD_ADD_I32: "rrr",
	OP_LOAD_CMP_I32: "rrr",

	OP_INC_CMP_JMP: "rrs",
	OP_DEC_CMP_JMP: "rrs",

	OP_MUL_ADD_I32:    "rrrr",
	OP_LOAD_INC_STORE: "r",

	OP_IMPORT_R:  "rw",
	OP_GC_PAUSE:  "",
	OP_GC_RESUME: "",
	OP_NEG_I32_R: "rr",

	OP_LOAD_CONST_EXT: "ww",
	OP_MOVE_EXT:       "ww",
	OP_STORE_EXT:      "wr",
	OP_LOAD_EXT:       "wr",

	OP_HALT: "",
}

func init() {
	// Bulk entries for the regular dst, src1, src2 families.
	ternary := []OpCode{
		OP_ADD_I32_R, OP_SUB_I32_R, OP_MUL_I32_R, OP_DIV_I32_R, OP_MOD_I32_R,
		OP_ADD_I64_R, OP_SUB_I64_R, OP_MUL_I64_R, OP_DIV_I64_R, OP_MOD_I64_R,
		OP_ADD_U32_R, OP_SUB_U32_R, OP_MUL_U32_R, OP_DIV_U32_R, OP_MOD_U32_R,
		OP_ADD_U64_R, OP_SUB_U64_R, OP_MUL_U64_R, OP_DIV_U64_R, OP_MOD_U64_R,
		OP_ADD_F64_R, OP_SUB_F64_R, OP_MUL_F64_R, OP_DIV_F64_R, OP_MOD_F64_R,
		OP_AND_I32_R, OP_OR_I32_R, OP_XOR_I32_R, OP_SHL_I32_R, OP_SHR_I32_R,
		OP_AND_BOOL_R, OP_OR_BOOL_R,
		OP_CONCAT_R, OP_STRING_INDEX_R, OP_STRING_GET_R,
		OP_ENUM_TAG_EQ_R, OP_ARRAY_GET_R, OP_ARRAY_SET_R,
	}
	for op := OP_EQ_R; op <= OP_GE_U64_R; op++ {
		ternary = append(ternary, op)
	}
	for op := OP_ADD_I32_TYPED; op <= OP_GE_U64_TYPED; op++ {
		ternary = append(ternary, op)
	}
	for _, op := range ternary {
		opFormats[op] = "rrr"
	}
	for op := OP_I32_TO_F64_R; op <= OP_U64_TO_F64_R; op++ {
		opFormats[op] = "rr"
	}
}

// DisassembleChunk writes a human-readable listing of every instruction in
// the chunk to w.
func DisassembleChunk(c *Chunk, name string, w io.Writer) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disassembleInstruction(c, offset, w)
	}
}

func disassembleInstruction(c *Chunk, offset int, w io.Writer) int {
	fmt.Fprintf(w, "%04d ", offset)
	line := c.LineAt(offset)
	if offset > 0 && line == c.LineAt(offset-1) {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", line)
	}

	op := OpCode(c.Code[offset])
	text, next := decodeInstruction(c, offset)
	fmt.Fprintln(w, text)

	if op == OP_HALT && next >= len(c.Code) {
		return len(c.Code)
	}
	return next
}

// decodeInstruction renders one instruction and returns the offset of the
// next one.
func decodeInstruction(c *Chunk, offset int) (string, int) {
	op := OpCode(c.Code[offset])
	pos := offset + 1

	if op == OP_CLOSURE_R {
		if pos+2 >= len(c.Code) {
			return "CLOSURE_R <truncated>", len(c.Code)
		}
		dst, fn, count := c.Code[pos], c.Code[pos+1], c.Code[pos+2]
		pos += 3
		var b strings.Builder
		fmt.Fprintf(&b, "%-20s %d %d %d", "CLOSURE_R", dst, fn, count)
		for i := 0; i < int(count) && pos+1 < len(c.Code); i++ {
			kind := "upval"
			if c.Code[pos] != 0 {
				kind = "local"
			}
			fmt.Fprintf(&b, " (%s %d)", kind, c.Code[pos+1])
			pos += 2
		}
		return b.String(), pos
	}

	format, ok := opFormats[op]
	if !ok {
		return fmt.Sprintf("UNKNOWN(%d)", op), pos
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s", op.String())
	for _, f := range format {
		switch f {
		case 'r':
			if pos >= len(c.Code) {
				b.WriteString(" <truncated>")
				return b.String(), len(c.Code)
			}
			fmt.Fprintf(&b, " %d", c.Code[pos])
			pos++
		case 'w':
			if pos+1 >= len(c.Code) {
				b.WriteString(" <truncated>")
				return b.String(), len(c.Code)
			}
			fmt.Fprintf(&b, " %d", c.ReadU16(pos))
			pos += 2
		case 's':
			if pos+1 >= len(c.Code) {
				b.WriteString(" <truncated>")
				return b.String(), len(c.Code)
			}
			fmt.Fprintf(&b, " %d", int16(c.ReadU16(pos)))
			pos += 2
		case 'i':
			if pos+3 >= len(c.Code) {
				b.WriteString(" <truncated>")
				return b.String(), len(c.Code)
			}
			fmt.Fprintf(&b, " %d", c.ReadI32(pos))
			pos += 4
		}
	}
	return b.String(), pos
}

// traceInstruction prints the instruction about to execute. Called from the
// dispatch loops when tracing is enabled; pc already points past the opcode
// byte, so decoding starts at opStart.
func (vm *VM) traceInstruction() {
	text, _ := decodeInstruction(vm.chunk, vm.opStart)
	fmt.Fprintf(os.Stderr, "trace %04d %s\n", vm.opStart, text)
}
