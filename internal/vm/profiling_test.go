package vm

import (
	"bytes"
	"encoding/json"
	"testing"
)

// Test that profiling counts instructions only when enabled
func TestProfileGating(t *testing.T) {
	run := func(profile bool) *VMProfile {
		machine := NewVM(RuntimeOptions{Profile: profile})
		defer machine.Free()
		a := newTestAsm()
		a.loadI32(0, 1)
		a.op(OP_HALT)
		runChunk(t, machine, a.c)
		return machine.Profile()
	}

	if p := run(false); p.InstructionCounts[OP_LOAD_I32_CONST] != 0 {
		t.Error("opcode counts must stay zero with profiling off")
	}
	p := run(true)
	if p.InstructionCounts[OP_LOAD_I32_CONST] != 1 || p.InstructionCounts[OP_HALT] != 1 {
		t.Errorf("counts = load:%d halt:%d", p.InstructionCounts[OP_LOAD_I32_CONST], p.InstructionCounts[OP_HALT])
	}
	if p.TotalInstructions != 2 {
		t.Errorf("total = %d, want 2", p.TotalInstructions)
	}
}

// Test the JSON report shape the orus-prof reader depends on
func TestWriteProfile(t *testing.T) {
	machine := NewVM(RuntimeOptions{Profile: true, TraceTypedFallbacks: true})
	defer machine.Free()
	runChunk(t, machine, buildCountLoop(t, 10, true))

	var out bytes.Buffer
	if err := machine.WriteProfile(&out); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}

	var report struct {
		TotalInstructions uint64 `json:"totalInstructions"`
		TotalCycles       uint64 `json:"totalCycles"`
		EnabledFlags      []string
		Opcodes           []struct {
			Opcode string `json:"opcode"`
			Count  uint64 `json:"count"`
			Cycles uint64 `json:"cycles"`
			IsHot  bool   `json:"isHot"`
		} `json:"opcodes"`
		LoopTrace struct {
			TypedHit uint64 `json:"typedHit"`
		} `json:"loopTrace"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}

	if report.TotalInstructions == 0 {
		t.Error("total instructions missing")
	}
	if len(report.Opcodes) == 0 {
		t.Fatal("opcode section missing")
	}
	for i := 1; i < len(report.Opcodes); i++ {
		if report.Opcodes[i].Count > report.Opcodes[i-1].Count {
			t.Fatal("opcodes must be sorted by count descending")
		}
	}
	for _, o := range report.Opcodes {
		if o.Count == 0 {
			t.Errorf("zero-count opcode %s should be omitted", o.Opcode)
		}
		if o.Cycles != o.Count {
			t.Errorf("%s: cycles %d != count %d", o.Opcode, o.Cycles, o.Count)
		}
	}
	if !report.Opcodes[0].IsHot {
		t.Error("the dominant opcode should be flagged hot")
	}
	if report.LoopTrace.TypedHit == 0 {
		t.Error("loop trace block missing the typed hits")
	}
}

// Test the per-function specialization records of the report
func TestFunctionSpecializationRecords(t *testing.T) {
	machine := NewVM(RuntimeOptions{Profile: true})
	defer machine.Free()

	runChunk(t, machine, buildFib(t, machine, 12))

	var out bytes.Buffer
	if err := machine.WriteProfile(&out); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}

	var report struct {
		Functions []struct {
			Index              int    `json:"index"`
			Name               string `json:"name"`
			Tier               string `json:"tier"`
			CurrentHits        uint64 `json:"currentHits"`
			SpecializationHits uint64 `json:"specializationHits"`
			Threshold          uint64 `json:"threshold"`
			Eligible           bool   `json:"eligible"`
			Active             bool   `json:"active"`
		} `json:"functions"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(report.Functions) != 1 {
		t.Fatalf("got %d function records", len(report.Functions))
	}

	fib := report.Functions[0]
	if fib.Name != "fib" || !fib.Eligible {
		t.Errorf("record = %+v", fib)
	}
	// fib(12) makes several hundred calls: past quick, short of optimized.
	if fib.Tier != "quick" {
		t.Errorf("tier = %q with %d hits", fib.Tier, fib.CurrentHits)
	}
	if fib.Threshold != SPECIALIZE_OPTIMIZED_HITS {
		t.Errorf("threshold = %d", fib.Threshold)
	}
	if fib.SpecializationHits != fib.CurrentHits-SPECIALIZE_QUICK_HITS {
		t.Errorf("specialization hits %d with %d current", fib.SpecializationHits, fib.CurrentHits)
	}
	if fib.Active {
		t.Error("a quick-tier function is not active")
	}
}

func TestResetLoopTrace(t *testing.T) {
	machine := NewVM(RuntimeOptions{Profile: true, TraceTypedFallbacks: true})
	defer machine.Free()
	runChunk(t, machine, buildCountLoop(t, 10, true))

	before := machine.Profile().TotalInstructions
	machine.ResetLoopTrace()
	if machine.Profile().LoopTrace.TypedHit != 0 {
		t.Error("loop trace should be cleared")
	}
	if machine.Profile().TotalInstructions != before {
		t.Error("opcode totals must survive a loop trace reset")
	}
}

// Test loop back-edge sampling and the per-run wall clock
func TestLoopSampling(t *testing.T) {
	machine := NewVM(RuntimeOptions{Profile: true})
	defer machine.Free()

	a := newTestAsm()
	a.loadI32(0, 0)    // i
	a.loadI32(1, 1000) // limit
	loopStart := len(a.c.Code)
	a.op(OP_LT_I32_R, 2, 0, 1)
	exit := a.jumpIfNot(2)
	a.op(OP_INC_I32_R, 0)
	if err := a.c.EmitLoop(OP_LOOP, loopStart, 1, 1, a.file); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}
	a.patch(t, exit)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)

	prof := machine.Profile()
	if got := prof.LoopSamples[loopStart]; got != 1000 {
		t.Errorf("back edges at %d: got %d, want 1000", loopStart, got)
	}
	if prof.LastExecutionTime <= 0 {
		t.Error("expected a positive execution tick")
	}
}

// Test that loop sampling stays off without the profiling flag
func TestLoopSamplingGated(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	a := newTestAsm()
	a.loadI32(0, 0)
	a.loadI32(1, 3)
	loopStart := len(a.c.Code)
	a.op(OP_LT_I32_R, 2, 0, 1)
	exit := a.jumpIfNot(2)
	a.op(OP_INC_I32_R, 0)
	if err := a.c.EmitLoop(OP_LOOP, loopStart, 1, 1, a.file); err != nil {
		t.Fatalf("EmitLoop: %v", err)
	}
	a.patch(t, exit)
	a.op(OP_HALT)

	runChunk(t, machine, a.c)
	if n := len(machine.Profile().LoopSamples); n != 0 {
		t.Errorf("expected no samples, got %d targets", n)
	}
}

// Test that a function without a chunk never panics the record builder
func TestFunctionRecordNilChunk(t *testing.T) {
	machine := NewVM(RuntimeOptions{})
	defer machine.Free()

	fn := machine.NewFunctionObj(1, 0, 0, nil, "stub")
	rec := functionRecord(0, fn, 5)
	if rec.Eligible {
		t.Error("a function without a chunk cannot be eligible")
	}
	if rec.Tier != "interpreted" {
		t.Errorf("tier %q, want interpreted", rec.Tier)
	}
}
