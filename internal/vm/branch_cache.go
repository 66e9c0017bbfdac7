package vm

// Loop Branch Cache
// =================
//
// OP_BRANCH_TYPED consults this set-associative cache to skip re-validating
// a loop predicate's register type on every back edge. Entries are keyed by
// loop id and guarded by a per-register generation counter; any event that
// can change a register's type bumps the generation, which invalidates the
// entry lazily on the next probe.

const (
	LOOP_BRANCH_CACHE_CAPACITY     = 128
	LOOP_BRANCH_CACHE_BUCKET_SIZE  = 4
	LOOP_BRANCH_CACHE_BUCKET_COUNT = LOOP_BRANCH_CACHE_CAPACITY / LOOP_BRANCH_CACHE_BUCKET_SIZE
)

type loopBranchCacheEntry struct {
	valid           bool
	loopID          uint16
	predicateReg    uint16
	predicateType   RegisterType
	guardGeneration uint32
}

type loopBranchCacheBucket struct {
	slots [LOOP_BRANCH_CACHE_BUCKET_SIZE]loopBranchCacheEntry
}

type LoopBranchCache struct {
	buckets          [LOOP_BRANCH_CACHE_BUCKET_COUNT]loopBranchCacheBucket
	guardGenerations [TYPED_REGISTER_COUNT]uint32
}

func (c *LoopBranchCache) bucketFor(loopID uint16) *loopBranchCacheBucket {
	return &c.buckets[int(loopID)%LOOP_BRANCH_CACHE_BUCKET_COUNT]
}

// Lookup reports whether loopID has a live entry matching the predicate
// register and its current guard generation.
func (c *LoopBranchCache) Lookup(loopID, predicateReg uint16, predType RegisterType) bool {
	b := c.bucketFor(loopID)
	for i := range b.slots {
		e := &b.slots[i]
		if !e.valid || e.loopID != loopID {
			continue
		}
		if e.predicateReg != predicateReg || e.predicateType != predType {
			return false
		}
		return e.guardGeneration == c.guardGenerations[predicateReg%TYPED_REGISTER_COUNT]
	}
	return false
}

// Insert records a validated predicate for loopID, evicting the first
// invalid slot or, failing that, slot 0 of the bucket.
func (c *LoopBranchCache) Insert(loopID, predicateReg uint16, predType RegisterType) {
	b := c.bucketFor(loopID)
	victim := &b.slots[0]
	for i := range b.slots {
		e := &b.slots[i]
		if !e.valid || e.loopID == loopID {
			victim = e
			break
		}
	}
	*victim = loopBranchCacheEntry{
		valid:           true,
		loopID:          loopID,
		predicateReg:    predicateReg,
		predicateType:   predType,
		guardGeneration: c.guardGenerations[predicateReg%TYPED_REGISTER_COUNT],
	}
}

// BumpGuard invalidates every cached predicate on reg by advancing its
// generation.
func (c *LoopBranchCache) BumpGuard(reg uint16) {
	c.guardGenerations[reg%TYPED_REGISTER_COUNT]++
}

func (c *LoopBranchCache) Reset() {
	*c = LoopBranchCache{}
}
