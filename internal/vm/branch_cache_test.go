package vm

import "testing"

func TestBranchCacheLookupAfterInsert(t *testing.T) {
	var c LoopBranchCache

	if c.Lookup(7, 3, REG_TYPE_BOOL) {
		t.Fatal("empty cache must miss")
	}
	c.Insert(7, 3, REG_TYPE_BOOL)
	if !c.Lookup(7, 3, REG_TYPE_BOOL) {
		t.Error("inserted entry must hit")
	}
	if c.Lookup(7, 3, REG_TYPE_I32) {
		t.Error("a different predicate type must miss")
	}
	if c.Lookup(7, 4, REG_TYPE_BOOL) {
		t.Error("a different predicate register must miss")
	}
}

// Test lazy invalidation through the guard generation
func TestBranchCacheGuardBump(t *testing.T) {
	var c LoopBranchCache
	c.Insert(1, 9, REG_TYPE_BOOL)
	if !c.Lookup(1, 9, REG_TYPE_BOOL) {
		t.Fatal("fresh entry must hit")
	}

	c.BumpGuard(9)
	if c.Lookup(1, 9, REG_TYPE_BOOL) {
		t.Error("bumping the guard must invalidate the entry")
	}

	// Re-validating after the bump installs the new generation.
	c.Insert(1, 9, REG_TYPE_BOOL)
	if !c.Lookup(1, 9, REG_TYPE_BOOL) {
		t.Error("re-inserted entry must hit again")
	}

	// Bumping an unrelated register leaves the entry alone.
	c.BumpGuard(10)
	if !c.Lookup(1, 9, REG_TYPE_BOOL) {
		t.Error("unrelated guard bump must not invalidate")
	}
}

func TestBranchCacheBucketEviction(t *testing.T) {
	var c LoopBranchCache

	// Loop ids congruent mod the bucket count share one bucket; one more
	// than the bucket holds forces an eviction.
	ids := make([]uint16, 0, LOOP_BRANCH_CACHE_BUCKET_SIZE+1)
	for i := 0; i <= LOOP_BRANCH_CACHE_BUCKET_SIZE; i++ {
		ids = append(ids, uint16(i*LOOP_BRANCH_CACHE_BUCKET_COUNT))
	}
	for _, id := range ids {
		c.Insert(id, 0, REG_TYPE_BOOL)
	}

	hits := 0
	for _, id := range ids {
		if c.Lookup(id, 0, REG_TYPE_BOOL) {
			hits++
		}
	}
	if hits != LOOP_BRANCH_CACHE_BUCKET_SIZE {
		t.Errorf("%d of %d entries live, want exactly the bucket size", hits, len(ids))
	}
}

func TestBranchCacheReinsertSameLoop(t *testing.T) {
	var c LoopBranchCache
	c.Insert(5, 1, REG_TYPE_BOOL)
	c.Insert(5, 2, REG_TYPE_I32)

	if c.Lookup(5, 1, REG_TYPE_BOOL) {
		t.Error("a loop re-validated on a new predicate must drop the old one")
	}
	if !c.Lookup(5, 2, REG_TYPE_I32) {
		t.Error("the new predicate must hit")
	}
}
