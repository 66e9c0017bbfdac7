package vm

// Register-Based Bytecode Opcodes
// ===============================
//
// Instructions are a 1-byte opcode followed by positional operand bytes.
// Operand shapes per opcode are listed in the trailing comment: r = u8
// register, r16 = u16 register, k16 = u16 constant index, off8/off16 = jump
// offsets, i32 = 4-byte little-endian immediate.

type OpCode uint8

const (
	// ========================================================================
	// Constants and literals
	// ========================================================================

	OP_LOAD_CONST OpCode = iota // r, k16      R(r) = K(k16)
	OP_LOAD_NIL                 // r           R(r) = nil
	OP_LOAD_TRUE                // r           R(r) = true
	OP_LOAD_FALSE               // r           R(r) = false

	// ========================================================================
	// Register operations
	// ========================================================================

	OP_MOVE         // dst, src    R(dst) = R(src), typed shadow propagates
	OP_LOAD_GLOBAL  // r, g8       R(r) = Globals[g8]
	OP_STORE_GLOBAL // g8, r       Globals[g8] = R(r) (literal promotion only)

	// ========================================================================
	// Arithmetic - strict same-typed (dst, src1, src2)
	// ========================================================================

	OP_ADD_I32_R
	OP_SUB_I32_R
	OP_MUL_I32_R
	OP_DIV_I32_R
	OP_MOD_I32_R
	OP_INC_I32_R      // r
	OP_INC_I32_CHECKED // alias of OP_INC_I32_R (kept for older chunks)
	OP_INC_I64_R
	OP_INC_I64_CHECKED
	OP_INC_U32_R
	OP_INC_U32_CHECKED
	OP_INC_U64_R
	OP_INC_U64_CHECKED
	OP_DEC_I32_R // r

	OP_ADD_I64_R
	OP_SUB_I64_R
	OP_MUL_I64_R
	OP_DIV_I64_R
	OP_MOD_I64_R

	OP_ADD_U32_R
	OP_SUB_U32_R
	OP_MUL_U32_R
	OP_DIV_U32_R
	OP_MOD_U32_R

	OP_ADD_U64_R
	OP_SUB_U64_R
	OP_MUL_U64_R
	OP_DIV_U64_R
	OP_MOD_U64_R

	OP_ADD_F64_R
	OP_SUB_F64_R
	OP_MUL_F64_R
	OP_DIV_F64_R
	OP_MOD_F64_R

	// ========================================================================
	// Bitwise operations (I32)
	// ========================================================================

	OP_AND_I32_R
	OP_OR_I32_R
	OP_XOR_I32_R
	OP_NOT_I32_R // dst, src
	OP_SHL_I32_R
	OP_SHR_I32_R

	// ========================================================================
	// Comparison (dst, src1, src2)
	// ========================================================================

	OP_EQ_R
	OP_NE_R
	OP_LT_I32_R
	OP_LE_I32_R
	OP_GT_I32_R
	OP_GE_I32_R

	OP_LT_I64_R
	OP_LE_I64_R
	OP_GT_I64_R
	OP_GE_I64_R

	OP_LT_F64_R
	OP_LE_F64_R
	OP_GT_F64_R
	OP_GE_F64_R

	OP_LT_U32_R
	OP_LE_U32_R
	OP_GT_U32_R
	OP_GE_U32_R

	OP_LT_U64_R
	OP_LE_U64_R
	OP_GT_U64_R
	OP_GE_U64_R

	// ========================================================================
	// Boolean combinators (truthiness coercion)
	// ========================================================================

	OP_AND_BOOL_R // dst, src1, src2
	OP_OR_BOOL_R  // dst, src1, src2
	OP_NOT_BOOL_R // dst, src

	// ========================================================================
	// Type conversions (dst, src)
	// ========================================================================

	OP_I32_TO_F64_R
	OP_I32_TO_I64_R
	OP_I64_TO_I32_R
	OP_I64_TO_F64_R
	OP_F64_TO_I32_R
	OP_F64_TO_I64_R
	OP_BOOL_TO_I32_R
	OP_BOOL_TO_I64_R
	OP_BOOL_TO_U32_R
	OP_BOOL_TO_U64_R
	OP_BOOL_TO_F64_R
	OP_I32_TO_BOOL_R
	OP_I64_TO_BOOL_R
	OP_U32_TO_BOOL_R
	OP_U64_TO_BOOL_R
	OP_F64_TO_BOOL_R
	OP_I32_TO_U32_R
	OP_U32_TO_I32_R
	OP_F64_TO_U32_R
	OP_U32_TO_F64_R
	OP_I32_TO_U64_R
	OP_I64_TO_U64_R
	OP_U64_TO_I32_R
	OP_U64_TO_I64_R
	OP_U32_TO_U64_R
	OP_U64_TO_U32_R
	OP_F64_TO_U64_R
	OP_U64_TO_F64_R

	// ========================================================================
	// String operations
	// ========================================================================

	OP_CONCAT_R       // dst, src1, src2 (both must be strings)
	OP_TO_STRING_R    // dst, src
	OP_STRING_INDEX_R // dst, str, idx
	OP_STRING_GET_R   // dst, str, idx (byte value as i32)

	// ========================================================================
	// Array and enum operations
	// ========================================================================

	OP_MAKE_ARRAY_R    // dst, first, count
	OP_ENUM_NEW_R      // dst, variant_idx, payload_count, payload_start, type_k16, variant_k16
	OP_ENUM_TAG_EQ_R   // dst, enum, variant_idx
	OP_ENUM_PAYLOAD_R  // dst, enum, variant_idx, field_idx
	OP_ARRAY_GET_R     // dst, array, index
	OP_ARRAY_SET_R     // array, index, value
	OP_ARRAY_LEN_R     // dst, array
	OP_ARRAY_PUSH_R    // array, value
	OP_ARRAY_POP_R     // dst, array
	OP_ARRAY_SORTED_R  // dst, array
	OP_ARRAY_SLICE_R   // dst, array, start, end

	// ========================================================================
	// Control flow
	// ========================================================================

	OP_TRY_BEGIN // catch_r16, off16 (catch register 0xFFFF = no binding)
	OP_TRY_END
	OP_THROW                  // r
	OP_JUMP                   // off16 (forward)
	OP_JUMP_IF_R              // cond, off16
	OP_JUMP_IF_NOT_R          // cond, off16
	OP_JUMP_IF_NOT_I32_TYPED  // left, right, off8
	OP_LOOP                   // off16 (backward)
	OP_GET_ITER_R             // dst, src
	OP_ITER_NEXT_R            // dst, iter, has_value

	// ========================================================================
	// Function calls
	// ========================================================================

	OP_CALL_R        // func, first_arg, arg_count, result
	OP_CALL_NATIVE_R // native_index, first_arg, arg_count, result
	OP_TAIL_CALL_R   // func, first_arg, arg_count, result
	OP_RETURN_R      // r
	OP_RETURN_VOID

	// ========================================================================
	// Frame / spill / module register access
	// ========================================================================

	OP_LOAD_FRAME       // r, frame_offset
	OP_STORE_FRAME      // frame_offset, r
	OP_ENTER_FRAME      // frame_size
	OP_EXIT_FRAME       //
	OP_MOVE_FRAME       // dst_offset, src_offset
	OP_LOAD_SPILL       // r, spill_id16
	OP_STORE_SPILL      // spill_id16, r
	OP_LOAD_MODULE      // r, module_id, offset
	OP_STORE_MODULE     // module_id, offset, r
	OP_LOAD_MODULE_NAME // name_k16
	OP_SWITCH_MODULE    // module_id
	OP_EXPORT_VAR       // name_k16, r
	OP_IMPORT_VAR       // name_k16, src_module_id

	// ========================================================================
	// Closures and upvalues
	// ========================================================================

	OP_CLOSURE_R       // dst, func, upvalue_count, (is_local, index)*
	OP_GET_UPVALUE_R   // dst, upvalue_index
	OP_SET_UPVALUE_R   // upvalue_index, r
	OP_CLOSE_UPVALUE_R // r (close upvalues at or above this local)

	// ========================================================================
	// Builtin bridges and I/O
	// ========================================================================

	OP_PARSE_INT_R     // dst, src
	OP_PARSE_FLOAT_R   // dst, src
	OP_TYPE_OF_R       // dst, src
	OP_IS_TYPE_R       // dst, src, type
	OP_INPUT_R         // dst, arg_count, prompt
	OP_RANGE_R         // dst, arg_count, arg0, arg1, arg2
	OP_PRINT_MULTI_R   // first, count, newline_flag
	OP_PRINT_R         // r
	OP_PRINT_MULTI_SEP_R // first, count, sep, newline_flag
	OP_PRINT_NO_NL_R   // r

	// ========================================================================
	// Short jump forms (1-byte offsets)
	// ========================================================================

	OP_JUMP_SHORT        // off8, forward
	OP_JUMP_BACK_SHORT   // off8, backward
	OP_JUMP_IF_NOT_SHORT // cond, off8
	OP_LOOP_SHORT        // off8, backward
	OP_BRANCH_TYPED      // loop_id16, predicate, off8

	// ========================================================================
	// Typed register operations (unboxed fast paths)
	// ========================================================================

	OP_ADD_I32_TYPED // dst, left, right
	OP_SUB_I32_TYPED
	OP_MUL_I32_TYPED
	OP_DIV_I32_TYPED
	OP_MOD_I32_TYPED

	OP_ADD_I64_TYPED
	OP_SUB_I64_TYPED
	OP_MUL_I64_TYPED
	OP_DIV_I64_TYPED
	OP_MOD_I64_TYPED

	OP_ADD_F64_TYPED
	OP_SUB_F64_TYPED
	OP_MUL_F64_TYPED
	OP_DIV_F64_TYPED
	OP_MOD_F64_TYPED

	OP_ADD_U32_TYPED
	OP_SUB_U32_TYPED
	OP_MUL_U32_TYPED
	OP_DIV_U32_TYPED
	OP_MOD_U32_TYPED

	OP_ADD_U64_TYPED
	OP_SUB_U64_TYPED
	OP_MUL_U64_TYPED
	OP_DIV_U64_TYPED
	OP_MOD_U64_TYPED

	OP_LT_I32_TYPED
	OP_LE_I32_TYPED
	OP_GT_I32_TYPED
	OP_GE_I32_TYPED

	OP_LT_I64_TYPED
	OP_LE_I64_TYPED
	OP_GT_I64_TYPED
	OP_GE_I64_TYPED

	OP_LT_F64_TYPED
	OP_LE_F64_TYPED
	OP_GT_F64_TYPED
	OP_GE_F64_TYPED

	OP_LT_U32_TYPED
	OP_LE_U32_TYPED
	OP_GT_U32_TYPED
	OP_GE_U32_TYPED

	OP_LT_U64_TYPED
	OP_LE_U64_TYPED
	OP_GT_U64_TYPED
	OP_GE_U64_TYPED

	// Typed loads (immediate payloads, no constant pool)
	OP_LOAD_I32_CONST // r, i32
	OP_LOAD_I64_CONST // r, k16 (pool-backed, value cached typed)
	OP_LOAD_F64_CONST // r, k16

	// Typed moves
	OP_MOVE_I32 // dst, src
	OP_MOVE_I64
	OP_MOVE_F64

	// ========================================================================
	// Builtin opcodes
	// ========================================================================

	OP_TIME_STAMP // r - monotonic seconds as f64

	// ========================================================================
	// Fused instructions
	// ========================================================================

	OP_ADD_I32_IMM // dst, src, i32
	OP_SUB_I32_IMM // dst, src, i32
	OP_MUL_I32_IMM // dst, src, i32
	OP_CMP_I32_IMM // dst, src, i32 -> bool (less-than)

	OP_LOAD_ADD_I32 // dst, src, operand
	OP_LOAD_CMP_I32 // dst, src, operand

	OP_INC_CMP_JMP // incr_r, limit_r, off16 (signed; i++ then branch if i < limit)
	OP_DEC_CMP_JMP // decr_r, zero_r, off16 (signed; i-- then branch if i > zero)

	OP_MUL_ADD_I32    // dst, m1, m2, addend
	OP_LOAD_INC_STORE // r (R(r)++ through the boxed path)

	// ========================================================================
	// Other
	// ========================================================================

	OP_IMPORT_R  // r, name_k16
	OP_GC_PAUSE
	OP_GC_RESUME
	OP_NEG_I32_R // dst, src

	// Extended 16-bit register forms
	OP_LOAD_CONST_EXT // r16, k16
	OP_MOVE_EXT       // dst_r16, src_r16
	OP_STORE_EXT      // r16, g8 (store extended register to global)
	OP_LOAD_EXT       // r16, g8

	OP_HALT

	OP_CODE_COUNT
)

var opNames = [OP_CODE_COUNT]string{
	OP_LOAD_CONST:  "LOAD_CONST",
	OP_LOAD_NIL:    "LOAD_NIL",
	OP_LOAD_TRUE:   "LOAD_TRUE",
	OP_LOAD_FALSE:  "LOAD_FALSE",
	OP_MOVE:        "MOVE",
	OP_LOAD_GLOBAL: "LOAD_GLOBAL",
	OP_STORE_GLOBAL: "STORE_GLOBAL",

	OP_ADD_I32_R:       "ADD_I32_R",
	OP_SUB_I32_R:       "SUB_I32_R",
	OP_MUL_I32_R:       "MUL_I32_R",
	OP_DIV_I32_R:       "DIV_I32_R",
	OP_MOD_I32_R:       "MOD_I32_R",
	OP_INC_I32_R:       "INC_I32_R",
	OP_INC_I32_CHECKED: "INC_I32_CHECKED",
	OP_INC_I64_R:       "INC_I64_R",
	OP_INC_I64_CHECKED: "INC_I64_CHECKED",
	OP_INC_U32_R:       "INC_U32_R",
	OP_INC_U32_CHECKED: "INC_U32_CHECKED",
	OP_INC_U64_R:       "INC_U64_R",
	OP_INC_U64_CHECKED: "INC_U64_CHECKED",
	OP_DEC_I32_R:       "DEC_I32_R",

	OP_ADD_I64_R: "ADD_I64_R",
	OP_SUB_I64_R: "SUB_I64_R",
	OP_MUL_I64_R: "MUL_I64_R",
	OP_DIV_I64_R: "DIV_I64_R",
	OP_MOD_I64_R: "MOD_I64_R",

	OP_ADD_U32_R: "ADD_U32_R",
	OP_SUB_U32_R: "SUB_U32_R",
	OP_MUL_U32_R: "MUL_U32_R",
	OP_DIV_U32_R: "DIV_U32_R",
	OP_MOD_U32_R: "MOD_U32_R",

	OP_ADD_U64_R: "ADD_U64_R",
	OP_SUB_U64_R: "SUB_U64_R",
	OP_MUL_U64_R: "MUL_U64_R",
	OP_DIV_U64_R: "DIV_U64_R",
	OP_MOD_U64_R: "MOD_U64_R",

	OP_ADD_F64_R: "ADD_F64_R",
	OP_SUB_F64_R: "SUB_F64_R",
	OP_MUL_F64_R: "MUL_F64_R",
	OP_DIV_F64_R: "DIV_F64_R",
	OP_MOD_F64_R: "MOD_F64_R",

	OP_AND_I32_R: "AND_I32_R",
	OP_OR_I32_R:  "OR_I32_R",
	OP_XOR_I32_R: "XOR_I32_R",
	OP_NOT_I32_R: "NOT_I32_R",
	OP_SHL_I32_R: "SHL_I32_R",
	OP_SHR_I32_R: "SHR_I32_R",

	OP_EQ_R:      "EQ_R",
	OP_NE_R:      "NE_R",
	OP_LT_I32_R:  "LT_I32_R",
	OP_LE_I32_R:  "LE_I32_R",
	OP_GT_I32_R:  "GT_I32_R",
	OP_GE_I32_R:  "GE_I32_R",
	OP_LT_I64_R:  "LT_I64_R",
	OP_LE_I64_R:  "LE_I64_R",
	OP_GT_I64_R:  "GT_I64_R",
	OP_GE_I64_R:  "GE_I64_R",
	OP_LT_F64_R:  "LT_F64_R",
	OP_LE_F64_R:  "LE_F64_R",
	OP_GT_F64_R:  "GT_F64_R",
	OP_GE_F64_R:  "GE_F64_R",
	OP_LT_U32_R:  "LT_U32_R",
	OP_LE_U32_R:  "LE_U32_R",
	OP_GT_U32_R:  "GT_U32_R",
	OP_GE_U32_R:  "GE_U32_R",
	OP_LT_U64_R:  "LT_U64_R",
	OP_LE_U64_R:  "LE_U64_R",
	OP_GT_U64_R:  "GT_U64_R",
	OP_GE_U64_R:  "GE_U64_R",

	OP_AND_BOOL_R: "AND_BOOL_R",
	OP_OR_BOOL_R:  "OR_BOOL_R",
	OP_NOT_BOOL_R: "NOT_BOOL_R",

	OP_I32_TO_F64_R:  "I32_TO_F64_R",
	OP_I32_TO_I64_R:  "I32_TO_I64_R",
	OP_I64_TO_I32_R:  "I64_TO_I32_R",
	OP_I64_TO_F64_R:  "I64_TO_F64_R",
	OP_F64_TO_I32_R:  "F64_TO_I32_R",
	OP_F64_TO_I64_R:  "F64_TO_I64_R",
	OP_BOOL_TO_I32_R: "BOOL_TO_I32_R",
	OP_BOOL_TO_I64_R: "BOOL_TO_I64_R",
	OP_BOOL_TO_U32_R: "BOOL_TO_U32_R",
	OP_BOOL_TO_U64_R: "BOOL_TO_U64_R",
	OP_BOOL_TO_F64_R: "BOOL_TO_F64_R",
	OP_I32_TO_BOOL_R: "I32_TO_BOOL_R",
	OP_I64_TO_BOOL_R: "I64_TO_BOOL_R",
	OP_U32_TO_BOOL_R: "U32_TO_BOOL_R",
	OP_U64_TO_BOOL_R: "U64_TO_BOOL_R",
	OP_F64_TO_BOOL_R: "F64_TO_BOOL_R",
	OP_I32_TO_U32_R:  "I32_TO_U32_R",
	OP_U32_TO_I32_R:  "U32_TO_I32_R",
	OP_F64_TO_U32_R:  "F64_TO_U32_R",
	OP_U32_TO_F64_R:  "U32_TO_F64_R",
	OP_I32_TO_U64_R:  "I32_TO_U64_R",
	OP_I64_TO_U64_R:  "I64_TO_U64_R",
	OP_U64_TO_I32_R:  "U64_TO_I32_R",
	OP_U64_TO_I64_R:  "U64_TO_I64_R",
	OP_U32_TO_U64_R:  "U32_TO_U64_R",
	OP_U64_TO_U32_R:  "U64_TO_U32_R",
	OP_F64_TO_U64_R:  "F64_TO_U64_R",
	OP_U64_TO_F64_R:  "U64_TO_F64_R",

	OP_CONCAT_R:       "CONCAT_R",
	OP_TO_STRING_R:    "TO_STRING_R",
	OP_STRING_INDEX_R: "STRING_INDEX_R",
	OP_STRING_GET_R:   "STRING_GET_R",

	OP_MAKE_ARRAY_R:   "MAKE_ARRAY_R",
	OP_ENUM_NEW_R:     "ENUM_NEW_R",
	OP_ENUM_TAG_EQ_R:  "ENUM_TAG_EQ_R",
	OP_ENUM_PAYLOAD_R: "ENUM_PAYLOAD_R",
	OP_ARRAY_GET_R:    "ARRAY_GET_R",
	OP_ARRAY_SET_R:    "ARRAY_SET_R",
	OP_ARRAY_LEN_R:    "ARRAY_LEN_R",
	OP_ARRAY_PUSH_R:   "ARRAY_PUSH_R",
	OP_ARRAY_POP_R:    "ARRAY_POP_R",
	OP_ARRAY_SORTED_R: "ARRAY_SORTED_R",
	OP_ARRAY_SLICE_R:  "ARRAY_SLICE_R",

	OP_TRY_BEGIN:                "TRY_BEGIN",
	OP_TRY_END:                  "TRY_END",
	OP_THROW:                    "THROW",
	OP_JUMP:                     "JUMP",
	OP_JUMP_IF_R:                "JUMP_IF_R",
	OP_JUMP_IF_NOT_R:            "JUMP_IF_NOT_R",
	OP_JUMP_IF_NOT_I32_TYPED:    "JUMP_IF_NOT_I32_TYPED",
	OP_LOOP:                     "LOOP",
	OP_GET_ITER_R:               "GET_ITER_R",
	OP_ITER_NEXT_R:              "ITER_NEXT_R",

	OP_CALL_R:        "CALL_R",
	OP_CALL_NATIVE_R: "CALL_NATIVE_R",
	OP_TAIL_CALL_R:   "TAIL_CALL_R",
	OP_RETURN_R:      "RETURN_R",
	OP_RETURN_VOID:   "RETURN_VOID",

	OP_LOAD_FRAME:       "LOAD_FRAME",
	OP_STORE_FRAME:      "STORE_FRAME",
	OP_ENTER_FRAME:      "ENTER_FRAME",
	OP_EXIT_FRAME:       "EXIT_FRAME",
	OP_MOVE_FRAME:       "MOVE_FRAME",
	OP_LOAD_SPILL:       "LOAD_SPILL",
	OP_STORE_SPILL:      "STORE_SPILL",
	OP_LOAD_MODULE:      "LOAD_MODULE",
	OP_STORE_MODULE:     "STORE_MODULE",
	OP_LOAD_MODULE_NAME: "LOAD_MODULE_NAME",
	OP_SWITCH_MODULE:    "SWITCH_MODULE",
	OP_EXPORT_VAR:       "EXPORT_VAR",
	OP_IMPORT_VAR:       "IMPORT_VAR",

	OP_CLOSURE_R:       "CLOSURE_R",
	OP_GET_UPVALUE_R:   "GET_UPVALUE_R",
	OP_SET_UPVALUE_R:   "SET_UPVALUE_R",
	OP_CLOSE_UPVALUE_R: "CLOSE_UPVALUE_R",

	OP_PARSE_INT_R:       "PARSE_INT_R",
	OP_PARSE_FLOAT_R:     "PARSE_FLOAT_R",
	OP_TYPE_OF_R:         "TYPE_OF_R",
	OP_IS_TYPE_R:         "IS_TYPE_R",
	OP_INPUT_R:           "INPUT_R",
	OP_RANGE_R:           "RANGE_R",
	OP_PRINT_MULTI_R:     "PRINT_MULTI_R",
	OP_PRINT_R:           "PRINT_R",
	OP_PRINT_MULTI_SEP_R: "PRINT_MULTI_SEP_R",
	OP_PRINT_NO_NL_R:     "PRINT_NO_NL_R",

	OP_JUMP_SHORT:        "JUMP_SHORT",
	OP_JUMP_BACK_SHORT:   "JUMP_BACK_SHORT",
	OP_JUMP_IF_NOT_SHORT: "JUMP_IF_NOT_SHORT",
	OP_LOOP_SHORT:        "LOOP_SHORT",
	OP_BRANCH_TYPED:      "BRANCH_TYPED",

	OP_ADD_I32_TYPED: "ADD_I32_TYPED",
	OP_SUB_I32_TYPED: "SUB_I32_TYPED",
	OP_MUL_I32_TYPED: "MUL_I32_TYPED",
	OP_DIV_I32_TYPED: "DIV_I32_TYPED",
	OP_MOD_I32_TYPED: "MOD_I32_TYPED",
	OP_ADD_I64_TYPED: "ADD_I64_TYPED",
	OP_SUB_I64_TYPED: "SUB_I64_TYPED",
	OP_MUL_I64_TYPED: "MUL_I64_TYPED",
	OP_DIV_I64_TYPED: "DIV_I64_TYPED",
	OP_MOD_I64_TYPED: "MOD_I64_TYPED",
	OP_ADD_F64_TYPED: "ADD_F64_TYPED",
	OP_SUB_F64_TYPED: "SUB_F64_TYPED",
	OP_MUL_F64_TYPED: "MUL_F64_TYPED",
	OP_DIV_F64_TYPED: "DIV_F64_TYPED",
	OP_MOD_F64_TYPED: "MOD_F64_TYPED",
	OP_ADD_U32_TYPED: "ADD_U32_TYPED",
	OP_SUB_U32_TYPED: "SUB_U32_TYPED",
	OP_MUL_U32_TYPED: "MUL_U32_TYPED",
	OP_DIV_U32_TYPED: "DIV_U32_TYPED",
	OP_MOD_U32_TYPED: "MOD_U32_TYPED",
	OP_ADD_U64_TYPED: "ADD_U64_TYPED",
	OP_SUB_U64_TYPED: "SUB_U64_TYPED",
	OP_MUL_U64_TYPED: "MUL_U64_TYPED",
	OP_DIV_U64_TYPED: "DIV_U64_TYPED",
	OP_MOD_U64_TYPED: "MOD_U64_TYPED",

	OP_LT_I32_TYPED: "LT_I32_TYPED",
	OP_LE_I32_TYPED: "LE_I32_TYPED",
	OP_GT_I32_TYPED: "GT_I32_TYPED",
	OP_GE_I32_TYPED: "GE_I32_TYPED",
	OP_LT_I64_TYPED: "LT_I64_TYPED",
	OP_LE_I64_TYPED: "LE_I64_TYPED",
	OP_GT_I64_TYPED: "GT_I64_TYPED",
	OP_GE_I64_TYPED: "GE_I64_TYPED",
	OP_LT_F64_TYPED: "LT_F64_TYPED",
	OP_LE_F64_TYPED: "LE_F64_TYPED",
	OP_GT_F64_TYPED: "GT_F64_TYPED",
	OP_GE_F64_TYPED: "GE_F64_TYPED",
	OP_LT_U32_TYPED: "LT_U32_TYPED",
	OP_LE_U32_TYPED: "LE_U32_TYPED",
	OP_GT_U32_TYPED: "GT_U32_TYPED",
	OP_GE_U32_TYPED: "GE_U32_TYPED",
	OP_LT_U64_TYPED: "LT_U64_TYPED",
	OP_LE_U64_TYPED: "LE_U64_TYPED",
	OP_GT_U64_TYPED: "GT_U64_TYPED",
	OP_GE_U64_TYPED: "GE_U64_TYPED",

	OP_LOAD_I32_CONST: "LOAD_I32_CONST",
	OP_LOAD_I64_CONST: "LOAD_I64_CONST",
	OP_LOAD_F64_CONST: "LOAD_F64_CONST",
	OP_MOVE_I32:       "MOVE_I32",
	OP_MOVE_I64:       "MOVE_I64",
	OP_MOVE_F64:       "MOVE_F64",

	OP_TIME_STAMP: "TIME_STAMP",

	OP_ADD_I32_IMM: "ADD_I32_IMM",
	OP_SUB_I32_IMM: "SUB_I32_IMM",
	OP_MUL_I32_IMM: "MUL_I32_IMM",
	OP_CMP_I32_IMM: "CMP_I32_IMM",

	OP_LOAD_ADD_I32: "LOAD_ADD_I32",
	OP_LOAD_CMP_I32: "LOAD_CMP_I32",

	OP_INC_CMP_JMP: "INC_CMP_JMP",
	OP_DEC_CMP_JMP: "DEC_CMP_JMP",

	OP_MUL_ADD_I32:    "MUL_ADD_I32",
	OP_LOAD_INC_STORE: "LOAD_INC_STORE",

	OP_IMPORT_R:  "IMPORT_R",
	OP_GC_PAUSE:  "GC_PAUSE",
	OP_GC_RESUME: "GC_RESUME",
	OP_NEG_I32_R: "NEG_I32_R",

	OP_LOAD_CONST_EXT: "LOAD_CONST_EXT",
	OP_MOVE_EXT:       "MOVE_EXT",
	OP_STORE_EXT:      "STORE_EXT",
	OP_LOAD_EXT:       "LOAD_EXT",

	OP_HALT: "HALT",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}
