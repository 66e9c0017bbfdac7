package vm

import "strings"

// String storage: immutable byte sequences with an intern table and a rope
// representation for cheap repeated concatenation. Two interned strings with
// equal bytes are pointer-equal, which keeps EQ_R on strings O(1) in the
// common case.

// StringRope is a binary concatenation tree. Leaves carry flat text; interior
// nodes defer the copy until somebody needs the flat bytes.
type StringRope struct {
	Left   *StringRope
	Right  *StringRope
	Leaf   string
	Length int
}

// text returns the flat bytes, flattening a pending rope on first use.
func (s *ObjString) text() string {
	if s.Rope != nil && s.Chars == "" && s.Rope.Length > 0 {
		s.Chars = s.Rope.Flatten()
		s.Hash = HashString(s.Chars)
	}
	return s.Chars
}

func newRopeLeaf(s string) *StringRope {
	return &StringRope{Leaf: s, Length: len(s)}
}

func concatRopes(left, right *StringRope) *StringRope {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &StringRope{Left: left, Right: right, Length: left.Length + right.Length}
}

// Flatten materializes the rope into a single string and collapses the tree
// into one leaf so repeated flattens are free.
func (r *StringRope) Flatten() string {
	if r.Left == nil && r.Right == nil {
		return r.Leaf
	}
	var sb strings.Builder
	sb.Grow(r.Length)
	r.appendTo(&sb)
	flat := sb.String()
	r.Left, r.Right = nil, nil
	r.Leaf = flat
	return flat
}

func (r *StringRope) appendTo(sb *strings.Builder) {
	if r.Left == nil && r.Right == nil {
		sb.WriteString(r.Leaf)
		return
	}
	if r.Left != nil {
		r.Left.appendTo(sb)
	}
	if r.Right != nil {
		r.Right.appendTo(sb)
	}
}

// stringTable is the intern table: content hash -> canonical ObjString.
// Buckets are small slices because FNV collisions on real programs are rare.
type stringTable struct {
	buckets map[uint32][]*ObjString
	count   int
}

func newStringTable() *stringTable {
	return &stringTable{buckets: make(map[uint32][]*ObjString)}
}

func (t *stringTable) find(s string, hash uint32) *ObjString {
	for _, entry := range t.buckets[hash] {
		if entry.Chars == s {
			return entry
		}
	}
	return nil
}

func (t *stringTable) insert(obj *ObjString) {
	t.buckets[obj.Hash] = append(t.buckets[obj.Hash], obj)
	t.count++
}

// remove unlinks a swept string from the table. Called from the GC sweep so
// dead strings do not resurrect through interning.
func (t *stringTable) remove(obj *ObjString) {
	bucket := t.buckets[obj.Hash]
	for i, entry := range bucket {
		if entry == obj {
			bucket[i] = bucket[len(bucket)-1]
			t.buckets[obj.Hash] = bucket[:len(bucket)-1]
			t.count--
			return
		}
	}
}

func (t *stringTable) reset() {
	t.buckets = make(map[uint32][]*ObjString)
	t.count = 0
}
