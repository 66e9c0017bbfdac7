package jit

import (
	"testing"

	"orus/internal/vm"
)

func TestTierThresholds(t *testing.T) {
	p := NewProfiler()
	p.RecordCalls(map[string]uint64{
		"cold": TIER1_THRESHOLD - 1,
		"warm": TIER1_THRESHOLD,
		"hot":  TIER2_THRESHOLD,
	})

	tests := []struct {
		name string
		want Tier
	}{
		{"cold", TierInterpreted},
		{"warm", TierQuick},
		{"hot", TierOptimized},
		{"never seen", TierInterpreted},
	}
	for _, tt := range tests {
		if got := p.TierOf(tt.name); got != tt.want {
			t.Errorf("TierOf(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRecordCallsAccumulates(t *testing.T) {
	p := NewProfiler()
	half := map[string]uint64{"f": TIER1_THRESHOLD / 2}
	p.RecordCalls(half)
	if p.TierOf("f") != TierInterpreted {
		t.Fatal("half the threshold must not promote")
	}
	p.RecordCalls(half)
	if p.TierOf("f") != TierQuick {
		t.Error("two runs together must cross the threshold")
	}
}

func TestAnalyzeOrdersHottestFirst(t *testing.T) {
	p := NewProfiler()
	prof := &vm.VMProfile{FunctionCalls: map[string]uint64{
		"a": TIER1_THRESHOLD,
		"b": TIER2_THRESHOLD + 5,
		"c": TIER1_THRESHOLD + 1,
		"d": 3,
	}}

	decisions := p.Analyze(prof)
	if len(decisions) != 3 {
		t.Fatalf("got %d decisions, want 3 (cold functions stay out)", len(decisions))
	}
	want := []string{"b", "c", "a"}
	for i, d := range decisions {
		if d.Target != want[i] {
			t.Errorf("decision %d is %q, want %q", i, d.Target, want[i])
		}
	}
	if decisions[0].Tier != TierOptimized || decisions[1].Tier != TierQuick {
		t.Errorf("tiers wrong: %+v", decisions)
	}
}

func TestAnalyzeTiesBreakByName(t *testing.T) {
	p := NewProfiler()
	prof := &vm.VMProfile{FunctionCalls: map[string]uint64{
		"zeta":  TIER1_THRESHOLD,
		"alpha": TIER1_THRESHOLD,
	}}
	decisions := p.Analyze(prof)
	if len(decisions) != 2 || decisions[0].Target != "alpha" {
		t.Errorf("got %+v", decisions)
	}
}

func TestSpecializationFromLoopTrace(t *testing.T) {
	tests := []struct {
		name  string
		trace vm.LoopTraceCounters
		want  Specialization
	}{
		{"quiet loops", vm.LoopTraceCounters{}, SPECIALIZE_NONE},
		{"iterator fallbacks dominate", vm.LoopTraceCounters{IterFallbacks: 10, TypedHit: 2}, SPECIALIZE_TYPED_ITER},
		{"typed misses dominate", vm.LoopTraceCounters{TypedMiss: 8, BoxedTypeMismatch: 3, TypedHit: 5}, SPECIALIZE_TYPED_ARITH},
		{"typed path already hot", vm.LoopTraceCounters{TypedHit: HOT_LOOP_THRESHOLD}, SPECIALIZE_FUSED_COUNTER},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := &vm.VMProfile{
				FunctionCalls: map[string]uint64{"f": TIER1_THRESHOLD},
				LoopTrace:     tt.trace,
			}
			decisions := NewProfiler().Analyze(prof)
			if len(decisions) != 1 {
				t.Fatalf("got %d decisions", len(decisions))
			}
			if decisions[0].Specialization != tt.want {
				t.Errorf("got %s, want %s", decisions[0].Specialization, tt.want)
			}
		})
	}
}

func TestRecordLoopCap(t *testing.T) {
	p := NewProfiler()
	for i := 0; i < MAX_TRACKED_LOOPS; i++ {
		p.RecordLoop(uint32(i), 1)
	}
	p.RecordLoop(MAX_TRACKED_LOOPS+1, 1)
	p.RecordLoop(0, 5) // already tracked, still accumulates

	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.loopCounts) != MAX_TRACKED_LOOPS {
		t.Errorf("tracked %d loops, want the cap %d", len(p.loopCounts), MAX_TRACKED_LOOPS)
	}
	if p.loopCounts[0] != 6 {
		t.Errorf("loop 0 count %d, want 6", p.loopCounts[0])
	}
}
