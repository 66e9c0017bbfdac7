// Package jit holds the tiered-execution scaffolding: profiling counters
// and the promotion decisions a later native backend would act on. Nothing
// here emits machine code; the interpreter stays the only execution engine
// and the decisions surface through the profiling report instead.
package jit

import (
	"sort"
	"sync"

	"orus/internal/vm"
)

// Tier is how a function or loop is currently executed.
type Tier int

const (
	TierInterpreted Tier = iota
	TierQuick            // promoted after TIER1_THRESHOLD calls
	TierOptimized        // promoted after TIER2_THRESHOLD calls
)

func (t Tier) String() string {
	switch t {
	case TierQuick:
		return "quick"
	case TierOptimized:
		return "optimized"
	default:
		return "interpreted"
	}
}

const (
	TIER1_THRESHOLD    = 100
	TIER2_THRESHOLD    = 1000
	HOT_LOOP_THRESHOLD = 50

	MAX_TRACKED_FUNCS = 512
	MAX_TRACKED_LOOPS = 256
)

// Specialization names the rewrite a hot region qualifies for.
type Specialization int

const (
	SPECIALIZE_NONE          Specialization = iota
	SPECIALIZE_TYPED_ARITH                  // boxed arith to *_TYPED
	SPECIALIZE_FUSED_COUNTER                // counter loop to INC_CMP_JMP
	SPECIALIZE_TYPED_ITER                   // boxed iterator to a descriptor
)

func (s Specialization) String() string {
	switch s {
	case SPECIALIZE_TYPED_ARITH:
		return "typed_arith"
	case SPECIALIZE_FUSED_COUNTER:
		return "fused_counter"
	case SPECIALIZE_TYPED_ITER:
		return "typed_iter"
	default:
		return "none"
	}
}

// Profiler accumulates call and loop counts across runs. Safe for use from
// multiple goroutines feeding separate VMs.
type Profiler struct {
	mu         sync.RWMutex
	callCounts map[string]uint64
	loopCounts map[uint32]uint64
}

func NewProfiler() *Profiler {
	return &Profiler{
		callCounts: make(map[string]uint64),
		loopCounts: make(map[uint32]uint64),
	}
}

// RecordCalls merges per-function call counts from a finished run.
func (p *Profiler) RecordCalls(counts map[string]uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, n := range counts {
		if len(p.callCounts) >= MAX_TRACKED_FUNCS {
			if _, seen := p.callCounts[name]; !seen {
				continue
			}
		}
		p.callCounts[name] += n
	}
}

// RecordLoop merges one loop's iteration count.
func (p *Profiler) RecordLoop(loopID uint32, iterations uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.loopCounts) >= MAX_TRACKED_LOOPS {
		if _, seen := p.loopCounts[loopID]; !seen {
			return
		}
	}
	p.loopCounts[loopID] += iterations
}

// TierOf returns the tier a function has earned.
func (p *Profiler) TierOf(name string) Tier {
	p.mu.RLock()
	n := p.callCounts[name]
	p.mu.RUnlock()
	switch {
	case n >= TIER2_THRESHOLD:
		return TierOptimized
	case n >= TIER1_THRESHOLD:
		return TierQuick
	default:
		return TierInterpreted
	}
}

// Decision is one promotion the profile justifies.
type Decision struct {
	Target         string
	Calls          uint64
	Tier           Tier
	Specialization Specialization
}

// Analyze folds a VM profile into the profiler and returns the promotion
// decisions it supports, hottest first.
func (p *Profiler) Analyze(prof *vm.VMProfile) []Decision {
	p.RecordCalls(prof.FunctionCalls)

	p.mu.RLock()
	defer p.mu.RUnlock()

	decisions := make([]Decision, 0, len(p.callCounts))
	for name, n := range p.callCounts {
		tier := TierInterpreted
		switch {
		case n >= TIER2_THRESHOLD:
			tier = TierOptimized
		case n >= TIER1_THRESHOLD:
			tier = TierQuick
		default:
			continue
		}
		decisions = append(decisions, Decision{
			Target:         name,
			Calls:          n,
			Tier:           tier,
			Specialization: specializationFor(prof),
		})
	}

	sort.Slice(decisions, func(i, j int) bool {
		if decisions[i].Calls != decisions[j].Calls {
			return decisions[i].Calls > decisions[j].Calls
		}
		return decisions[i].Target < decisions[j].Target
	})
	return decisions
}

// specializationFor picks the rewrite with the most headroom based on the
// loop trace: fallbacks mean the typed path keeps failing, hits mean it is
// already winning and fusing is the next step.
func specializationFor(prof *vm.VMProfile) Specialization {
	lt := &prof.LoopTrace
	switch {
	case lt.IterFallbacks > lt.TypedHit:
		return SPECIALIZE_TYPED_ITER
	case lt.TypedMiss+lt.BoxedTypeMismatch > lt.TypedHit:
		return SPECIALIZE_TYPED_ARITH
	case lt.TypedHit >= HOT_LOOP_THRESHOLD:
		return SPECIALIZE_FUSED_COUNTER
	default:
		return SPECIALIZE_NONE
	}
}
