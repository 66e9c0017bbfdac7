package vm

import (
	"encoding/json"
	"io"
	"sort"
	"time"
)

// Loop telemetry for the typed fast paths. Counters only advance when
// TraceTypedFallbacks is on, so the hot path pays one branch.
type LoopTraceKind uint8

const (
	LOOP_TRACE_TYPED_HIT LoopTraceKind = iota
	LOOP_TRACE_TYPED_MISS
	LOOP_TRACE_TYPE_MISMATCH
	LOOP_TRACE_OVERFLOW_GUARD
	LOOP_TRACE_BRANCH_FAST_HIT
	LOOP_TRACE_BRANCH_FAST_MISS
	LOOP_TRACE_INC_FAST_HIT
	LOOP_TRACE_INC_FAST_MISS
	LOOP_TRACE_INC_OVERFLOW_BAILOUT
	LOOP_TRACE_INC_TYPE_INSTABILITY
	LOOP_TRACE_ITER_SAVED_ALLOCATIONS
	LOOP_TRACE_ITER_FALLBACK
	LOOP_TRACE_LICM_GUARD_FUSION
	LOOP_TRACE_LICM_GUARD_DEMOTION
	LOOP_TRACE_BRANCH_CACHE_HIT
	LOOP_TRACE_BRANCH_CACHE_MISS
)

type LoopTraceCounters struct {
	TypedHit              uint64 `json:"typedHit"`
	TypedMiss             uint64 `json:"typedMiss"`
	BoxedTypeMismatch     uint64 `json:"boxedTypeMismatch"`
	BoxedOverflowGuard    uint64 `json:"boxedOverflowGuard"`
	TypedBranchFastHits   uint64 `json:"typedBranchFastHits"`
	TypedBranchFastMisses uint64 `json:"typedBranchFastMisses"`
	IncFastHits           uint64 `json:"incFastHits"`
	IncFastMisses         uint64 `json:"incFastMisses"`
	IncOverflowBailouts   uint64 `json:"incOverflowBailouts"`
	IncTypeInstability    uint64 `json:"incTypeInstability"`
	IterAllocationsSaved  uint64 `json:"iterAllocationsSaved"`
	IterFallbacks         uint64 `json:"iterFallbacks"`
	LICMGuardFusions      uint64 `json:"licmGuardFusions"`
	LICMGuardDemotions    uint64 `json:"licmGuardDemotions"`
	LoopBranchCacheHits   uint64 `json:"loopBranchCacheHits"`
	LoopBranchCacheMisses uint64 `json:"loopBranchCacheMisses"`
}

// VMProfile accumulates per-opcode execution counts plus the loop telemetry
// block. Opcode counting is only active when profiling is enabled.
type VMProfile struct {
	InstructionCounts [OP_CODE_COUNT]uint64
	TotalInstructions uint64
	TotalCycles       uint64
	LoopTrace         LoopTraceCounters

	FunctionCalls map[string]uint64

	// LoopSamples histograms LOOP back edges by target pc; the hottest
	// targets identify the hot loops of a run.
	LoopSamples map[int]uint64

	// LastExecutionTime is the wall-clock delta of the most recent
	// Interpret tick.
	LastExecutionTime time.Duration
}

func newVMProfile() *VMProfile {
	return &VMProfile{
		FunctionCalls: make(map[string]uint64),
		LoopSamples:   make(map[int]uint64),
	}
}

func (p *VMProfile) Reset() {
	*p = VMProfile{
		FunctionCalls: make(map[string]uint64),
		LoopSamples:   make(map[int]uint64),
	}
}

// sampleLoop records a back-edge hit keyed by the branch target. Only active
// while profiling; the plain loop opcodes pay one branch for it.
func (vm *VM) sampleLoop(target int) {
	if !vm.options.Profile {
		return
	}
	vm.profile.LoopSamples[target]++
}

func (vm *VM) traceLoopEvent(kind LoopTraceKind) {
	if !vm.options.TraceTypedFallbacks {
		return
	}
	lt := &vm.profile.LoopTrace
	switch kind {
	case LOOP_TRACE_TYPED_HIT:
		lt.TypedHit++
	case LOOP_TRACE_TYPED_MISS:
		lt.TypedMiss++
	case LOOP_TRACE_TYPE_MISMATCH:
		lt.BoxedTypeMismatch++
	case LOOP_TRACE_OVERFLOW_GUARD:
		lt.BoxedOverflowGuard++
	case LOOP_TRACE_BRANCH_FAST_HIT:
		lt.TypedBranchFastHits++
	case LOOP_TRACE_BRANCH_FAST_MISS:
		lt.TypedBranchFastMisses++
	case LOOP_TRACE_INC_FAST_HIT:
		lt.IncFastHits++
	case LOOP_TRACE_INC_FAST_MISS:
		lt.IncFastMisses++
	case LOOP_TRACE_INC_OVERFLOW_BAILOUT:
		lt.IncOverflowBailouts++
	case LOOP_TRACE_INC_TYPE_INSTABILITY:
		lt.IncTypeInstability++
	case LOOP_TRACE_ITER_SAVED_ALLOCATIONS:
		lt.IterAllocationsSaved++
	case LOOP_TRACE_ITER_FALLBACK:
		lt.IterFallbacks++
	case LOOP_TRACE_LICM_GUARD_FUSION:
		lt.LICMGuardFusions++
	case LOOP_TRACE_LICM_GUARD_DEMOTION:
		lt.LICMGuardDemotions++
	case LOOP_TRACE_BRANCH_CACHE_HIT:
		lt.LoopBranchCacheHits++
	case LOOP_TRACE_BRANCH_CACHE_MISS:
		lt.LoopBranchCacheMisses++
	}
}

// ResetLoopTrace clears the loop telemetry block without disturbing opcode
// counts.
func (vm *VM) ResetLoopTrace() {
	vm.profile.LoopTrace = LoopTraceCounters{}
}

// ============================================================================
// Export
// ============================================================================

// Specialization thresholds: call counts that promote a function out of the
// interpreted tier, plus the shape limits the analysis accepts.
const (
	SPECIALIZE_QUICK_HITS     = 100
	SPECIALIZE_OPTIMIZED_HITS = 1000
	SPECIALIZE_MAX_ARITY      = 4
	SPECIALIZE_MAX_CHUNK      = 4096

	// An opcode claiming this share of retired instructions is hot.
	HOT_OPCODE_PCT = 5.0
)

type opcodeReport struct {
	Opcode string `json:"opcode"`
	Count  uint64 `json:"count"`
	Cycles uint64 `json:"cycles"`
	IsHot  bool   `json:"isHot"`
}

type functionReport struct {
	Index              int    `json:"index"`
	Name               string `json:"name"`
	Tier               string `json:"tier"`
	CurrentHits        uint64 `json:"currentHits"`
	SpecializationHits uint64 `json:"specializationHits"`
	Threshold          uint64 `json:"threshold"`
	Eligible           bool   `json:"eligible"`
	Active             bool   `json:"active"`
}

type profileReport struct {
	TotalInstructions uint64            `json:"totalInstructions"`
	TotalCycles       uint64            `json:"totalCycles"`
	EnabledFlags      []string          `json:"enabledFlags"`
	Opcodes           []opcodeReport    `json:"opcodes"`
	Functions         []functionReport  `json:"functions"`
	LoopTrace         LoopTraceCounters `json:"loopTrace"`
}

// functionRecord builds the specialization entry for one registered
// function. Hits toward the next tier restart at each promotion.
func functionRecord(index int, fn *ObjFunction, hits uint64) functionReport {
	r := functionReport{
		Index:       index,
		CurrentHits: hits,
		// A function without an attached chunk has no measurable shape
		// and is never eligible.
		Eligible: fn.Chunk != nil &&
			fn.Arity <= SPECIALIZE_MAX_ARITY && len(fn.Chunk.Code) <= SPECIALIZE_MAX_CHUNK,
	}
	if fn.Name != nil {
		r.Name = fn.Name.Chars
	}
	switch {
	case hits >= SPECIALIZE_OPTIMIZED_HITS:
		r.Tier = "optimized"
		r.SpecializationHits = hits - SPECIALIZE_OPTIMIZED_HITS
		r.Threshold = SPECIALIZE_OPTIMIZED_HITS
		r.Active = r.Eligible
	case hits >= SPECIALIZE_QUICK_HITS:
		r.Tier = "quick"
		r.SpecializationHits = hits - SPECIALIZE_QUICK_HITS
		r.Threshold = SPECIALIZE_OPTIMIZED_HITS
	default:
		r.Tier = "interpreted"
		r.SpecializationHits = hits
		r.Threshold = SPECIALIZE_QUICK_HITS
	}
	return r
}

// WriteProfile emits the accumulated profile as JSON. Opcodes with a zero
// count are omitted; the rest are sorted by count descending. Cycles mirror
// counts because the interpreter retires one instruction per dispatch tick.
func (vm *VM) WriteProfile(w io.Writer) error {
	p := vm.profile
	report := profileReport{
		TotalInstructions: p.TotalInstructions,
		TotalCycles:       p.TotalCycles,
		EnabledFlags:      vm.options.enabledFlags(),
		LoopTrace:         p.LoopTrace,
	}

	for op, count := range p.InstructionCounts {
		if count == 0 {
			continue
		}
		pct := 0.0
		if p.TotalInstructions > 0 {
			pct = float64(count) / float64(p.TotalInstructions) * 100
		}
		report.Opcodes = append(report.Opcodes, opcodeReport{
			Opcode: OpCode(op).String(),
			Count:  count,
			Cycles: count,
			IsHot:  pct >= HOT_OPCODE_PCT,
		})
	}
	sort.Slice(report.Opcodes, func(i, j int) bool {
		if report.Opcodes[i].Count != report.Opcodes[j].Count {
			return report.Opcodes[i].Count > report.Opcodes[j].Count
		}
		return report.Opcodes[i].Opcode < report.Opcodes[j].Opcode
	})

	for i := 0; i < vm.functionCount; i++ {
		fn := vm.functions[i]
		if fn == nil {
			continue
		}
		var hits uint64
		if fn.Name != nil {
			hits = p.FunctionCalls[fn.Name.Chars]
		}
		report.Functions = append(report.Functions, functionRecord(i, fn, hits))
	}
	sort.Slice(report.Functions, func(i, j int) bool {
		if report.Functions[i].CurrentHits != report.Functions[j].CurrentHits {
			return report.Functions[i].CurrentHits > report.Functions[j].CurrentHits
		}
		return report.Functions[i].Index < report.Functions[j].Index
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
