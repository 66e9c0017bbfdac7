package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unsafe"
)

// Tagged Value Representation
// ===========================
//
// Every Orus value is a small tagged struct: an explicit type tag, 64 payload
// bits for primitives, and a pointer for heap objects. Arithmetic is strictly
// same-typed; there is no implicit numeric coercion between variants (the two
// documented exceptions are string-addition and the STORE_GLOBAL literal
// promotion, both handled in the dispatcher).

type ValueType uint8

const (
	VAL_NIL ValueType = iota
	VAL_BOOL
	VAL_I32
	VAL_I64
	VAL_U32
	VAL_U64
	VAL_F64
	VAL_STRING
	VAL_ARRAY
	VAL_ENUM
	VAL_ERROR
	VAL_RANGE_ITERATOR
	VAL_ARRAY_ITERATOR
	VAL_FUNCTION
	VAL_CLOSURE
)

// Value holds one tagged value. Primitives live in num (bit-packed: bools as
// 0/1, f64 via Float64bits, signed ints two's-complement); heap variants hold
// the object header pointer in obj.
type Value struct {
	Type ValueType
	num  uint64
	obj  *Obj
}

// Heap object types (pointed to by Value.obj)
type ObjType uint8

const (
	OBJ_STRING ObjType = iota
	OBJ_ARRAY
	OBJ_ERROR
	OBJ_RANGE_ITERATOR
	OBJ_ARRAY_ITERATOR
	OBJ_ENUM_INSTANCE
	OBJ_FUNCTION
	OBJ_CLOSURE
	OBJ_UPVALUE

	OBJ_TYPE_COUNT
)

// Object header for all heap-allocated objects. Next threads the object
// through the process-wide allocation list; Marked is the GC mark bit.
type Obj struct {
	Type   ObjType
	Marked bool
	Next   *Obj
}

// Heap-allocated object bodies. Each embeds Obj as its first field so the
// header pointer can be cast back to the concrete type.
type (
	ObjString struct {
		Obj
		Length int
		Chars  string
		Rope   *StringRope
		Hash   uint32
	}

	ObjArray struct {
		Obj
		Length   int
		Capacity int
		Elements []Value
	}

	ObjArrayIterator struct {
		Obj
		Array *ObjArray
		Index int
	}

	ObjRangeIterator struct {
		Obj
		Current int64
		End     int64
		Step    int64
	}

	ObjEnumInstance struct {
		Obj
		TypeName     *ObjString
		VariantName  *ObjString
		VariantIndex int
		Payload      *ObjArray
	}

	ObjError struct {
		Obj
		Kind    ErrorKind
		Message *ObjString
		File    string
		Line    int
		Column  int
	}

	ObjFunction struct {
		Obj
		Arity        int
		UpvalueCount int
		Start        int
		Chunk        *Chunk
		Name         *ObjString
	}

	// ObjUpvalue is either open (Location aliases a live register slot) or
	// closed (Closed owns the value, Location points at it). NextUpvalue
	// threads the sorted open-upvalue list.
	ObjUpvalue struct {
		Obj
		Location    *Value
		Closed      Value
		NextUpvalue *ObjUpvalue
	}

	ObjClosure struct {
		Obj
		Function *ObjFunction
		Upvalues []*ObjUpvalue
	}
)

// ============================================================================
// Value Construction (Boxing)
// ============================================================================

func NilValue() Value {
	return Value{Type: VAL_NIL}
}

func BoxBool(b bool) Value {
	var n uint64
	if b {
		n = 1
	}
	return Value{Type: VAL_BOOL, num: n}
}

func BoxI32(i int32) Value {
	return Value{Type: VAL_I32, num: uint64(uint32(i))}
}

func BoxI64(i int64) Value {
	return Value{Type: VAL_I64, num: uint64(i)}
}

func BoxU32(u uint32) Value {
	return Value{Type: VAL_U32, num: uint64(u)}
}

func BoxU64(u uint64) Value {
	return Value{Type: VAL_U64, num: u}
}

func BoxF64(f float64) Value {
	return Value{Type: VAL_F64, num: math.Float64bits(f)}
}

func boxObj(typ ValueType, obj *Obj) Value {
	return Value{Type: typ, obj: obj}
}

func BoxStringObj(s *ObjString) Value {
	return boxObj(VAL_STRING, &s.Obj)
}

func BoxArrayObj(a *ObjArray) Value {
	return boxObj(VAL_ARRAY, &a.Obj)
}

func BoxErrorObj(e *ObjError) Value {
	return boxObj(VAL_ERROR, &e.Obj)
}

func BoxRangeIteratorObj(it *ObjRangeIterator) Value {
	return boxObj(VAL_RANGE_ITERATOR, &it.Obj)
}

func BoxArrayIteratorObj(it *ObjArrayIterator) Value {
	return boxObj(VAL_ARRAY_ITERATOR, &it.Obj)
}

func BoxEnumObj(e *ObjEnumInstance) Value {
	return boxObj(VAL_ENUM, &e.Obj)
}

func BoxFunctionObj(f *ObjFunction) Value {
	return boxObj(VAL_FUNCTION, &f.Obj)
}

func BoxClosureObj(c *ObjClosure) Value {
	return boxObj(VAL_CLOSURE, &c.Obj)
}

// ============================================================================
// Value Extraction (Unboxing)
// ============================================================================

func AsBool(v Value) bool {
	return v.num != 0
}

func AsI32(v Value) int32 {
	return int32(uint32(v.num))
}

func AsI64(v Value) int64 {
	return int64(v.num)
}

func AsU32(v Value) uint32 {
	return uint32(v.num)
}

func AsU64(v Value) uint64 {
	return v.num
}

func AsF64(v Value) float64 {
	return math.Float64frombits(v.num)
}

func AsObj(v Value) *Obj {
	return v.obj
}

func AsString(v Value) *ObjString {
	return (*ObjString)(unsafe.Pointer(v.obj))
}

func AsArray(v Value) *ObjArray {
	return (*ObjArray)(unsafe.Pointer(v.obj))
}

func AsError(v Value) *ObjError {
	return (*ObjError)(unsafe.Pointer(v.obj))
}

func AsRangeIterator(v Value) *ObjRangeIterator {
	return (*ObjRangeIterator)(unsafe.Pointer(v.obj))
}

func AsArrayIterator(v Value) *ObjArrayIterator {
	return (*ObjArrayIterator)(unsafe.Pointer(v.obj))
}

func AsEnum(v Value) *ObjEnumInstance {
	return (*ObjEnumInstance)(unsafe.Pointer(v.obj))
}

func AsFunction(v Value) *ObjFunction {
	return (*ObjFunction)(unsafe.Pointer(v.obj))
}

func AsClosure(v Value) *ObjClosure {
	return (*ObjClosure)(unsafe.Pointer(v.obj))
}

func asUpvalue(o *Obj) *ObjUpvalue {
	return (*ObjUpvalue)(unsafe.Pointer(o))
}

// ============================================================================
// Type Checking
// ============================================================================

func IsNil(v Value) bool    { return v.Type == VAL_NIL }
func IsBool(v Value) bool   { return v.Type == VAL_BOOL }
func IsI32(v Value) bool    { return v.Type == VAL_I32 }
func IsI64(v Value) bool    { return v.Type == VAL_I64 }
func IsU32(v Value) bool    { return v.Type == VAL_U32 }
func IsU64(v Value) bool    { return v.Type == VAL_U64 }
func IsF64(v Value) bool    { return v.Type == VAL_F64 }
func IsString(v Value) bool { return v.Type == VAL_STRING }
func IsArray(v Value) bool  { return v.Type == VAL_ARRAY }
func IsError(v Value) bool  { return v.Type == VAL_ERROR }
func IsEnum(v Value) bool   { return v.Type == VAL_ENUM }

func IsRangeIterator(v Value) bool { return v.Type == VAL_RANGE_ITERATOR }
func IsArrayIterator(v Value) bool { return v.Type == VAL_ARRAY_ITERATOR }
func IsFunction(v Value) bool      { return v.Type == VAL_FUNCTION }
func IsClosure(v Value) bool       { return v.Type == VAL_CLOSURE }

// IsObj reports whether the value is a heap reference.
func IsObj(v Value) bool {
	return v.obj != nil
}

// ============================================================================
// Value Operations
// ============================================================================

// ValueTypeName returns the user-visible type name of a Value.
func ValueTypeName(v Value) string {
	switch v.Type {
	case VAL_NIL:
		return "nil"
	case VAL_BOOL:
		return "bool"
	case VAL_I32:
		return "i32"
	case VAL_I64:
		return "i64"
	case VAL_U32:
		return "u32"
	case VAL_U64:
		return "u64"
	case VAL_F64:
		return "f64"
	case VAL_STRING:
		return "string"
	case VAL_ARRAY:
		return "array"
	case VAL_ENUM:
		return AsEnum(v).TypeName.Chars
	case VAL_ERROR:
		return "error"
	case VAL_RANGE_ITERATOR, VAL_ARRAY_ITERATOR:
		return "iterator"
	case VAL_FUNCTION, VAL_CLOSURE:
		return "function"
	default:
		return "unknown"
	}
}

// String names a bare type tag. Enum instances carry their own type name and
// only report the generic tag here.
func (t ValueType) String() string {
	switch t {
	case VAL_NIL:
		return "nil"
	case VAL_BOOL:
		return "bool"
	case VAL_I32:
		return "i32"
	case VAL_I64:
		return "i64"
	case VAL_U32:
		return "u32"
	case VAL_U64:
		return "u64"
	case VAL_F64:
		return "f64"
	case VAL_STRING:
		return "string"
	case VAL_ARRAY:
		return "array"
	case VAL_ENUM:
		return "enum"
	case VAL_ERROR:
		return "error"
	case VAL_RANGE_ITERATOR, VAL_ARRAY_ITERATOR:
		return "iterator"
	case VAL_FUNCTION, VAL_CLOSURE:
		return "function"
	default:
		return "unknown"
	}
}

// IsTruthy determines if a Value is truthy: zero-for-numerics,
// false-for-bool, true-for-heap, nil-is-false.
func IsTruthy(v Value) bool {
	switch v.Type {
	case VAL_NIL:
		return false
	case VAL_BOOL:
		return AsBool(v)
	case VAL_I32, VAL_I64, VAL_U32, VAL_U64:
		return v.num != 0
	case VAL_F64:
		return AsF64(v) != 0
	default:
		return true
	}
}

// ValuesEqual checks structural equality: variant first, then bit-identical
// payload for primitives and pointer identity for heap objects. Interned
// strings make pointer identity sufficient for string equality.
func ValuesEqual(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case VAL_NIL:
		return true
	case VAL_BOOL, VAL_I32, VAL_I64, VAL_U32, VAL_U64, VAL_F64:
		return a.num == b.num
	case VAL_STRING:
		sa, sb := AsString(a), AsString(b)
		if sa == sb {
			return true
		}
		return sa.text() == sb.text()
	default:
		return a.obj == b.obj
	}
}

// formatF64 renders a float in the canonical fixed format: integral values
// print with a trailing ".0" so they stay visually distinct from integers.
func formatF64(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToString renders a Value using the canonical format: fixed-format decimal
// for numerics, "true"/"false" for booleans, "nil" for nil.
func ToString(v Value) string {
	switch v.Type {
	case VAL_NIL:
		return "nil"
	case VAL_BOOL:
		if AsBool(v) {
			return "true"
		}
		return "false"
	case VAL_I32:
		return strconv.FormatInt(int64(AsI32(v)), 10)
	case VAL_I64:
		return strconv.FormatInt(AsI64(v), 10)
	case VAL_U32:
		return strconv.FormatUint(uint64(AsU32(v)), 10)
	case VAL_U64:
		return strconv.FormatUint(AsU64(v), 10)
	case VAL_F64:
		return formatF64(AsF64(v))
	case VAL_STRING:
		return AsString(v).text()
	case VAL_ARRAY:
		arr := AsArray(v)
		parts := make([]string, arr.Length)
		for i := 0; i < arr.Length; i++ {
			elem := arr.Elements[i]
			if IsString(elem) {
				parts[i] = "\"" + AsString(elem).text() + "\""
			} else {
				parts[i] = ToString(elem)
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case VAL_ENUM:
		e := AsEnum(v)
		if e.Payload == nil || e.Payload.Length == 0 {
			return fmt.Sprintf("%s.%s", e.TypeName.Chars, e.VariantName.Chars)
		}
		parts := make([]string, e.Payload.Length)
		for i := 0; i < e.Payload.Length; i++ {
			parts[i] = ToString(e.Payload.Elements[i])
		}
		return fmt.Sprintf("%s.%s(%s)", e.TypeName.Chars, e.VariantName.Chars, strings.Join(parts, ", "))
	case VAL_ERROR:
		e := AsError(v)
		return fmt.Sprintf("%s: %s", e.Kind, e.Message.text())
	case VAL_RANGE_ITERATOR:
		it := AsRangeIterator(v)
		return fmt.Sprintf("range(%d..%d)", it.Current, it.End)
	case VAL_ARRAY_ITERATOR:
		return "<array iterator>"
	case VAL_FUNCTION:
		f := AsFunction(v)
		if f.Name != nil {
			return fmt.Sprintf("<fn %s>", f.Name.Chars)
		}
		return "<fn>"
	case VAL_CLOSURE:
		c := AsClosure(v)
		if c.Function != nil && c.Function.Name != nil {
			return fmt.Sprintf("<fn %s>", c.Function.Name.Chars)
		}
		return "<fn>"
	default:
		return "<value>"
	}
}

// HashString computes the FNV-1a hash used by the intern table.
func HashString(s string) uint32 {
	hash := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}
