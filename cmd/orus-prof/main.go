// cmd/orus-prof/main.go
//
// Formats the JSON profiling report written by orus -profile as a readable
// table: top opcodes, hot functions, and the loop telemetry block.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

type opcodeEntry struct {
	Opcode string `json:"opcode"`
	Count  uint64 `json:"count"`
	Cycles uint64 `json:"cycles"`
	IsHot  bool   `json:"isHot"`
}

type functionEntry struct {
	Index              int    `json:"index"`
	Name               string `json:"name"`
	Tier               string `json:"tier"`
	CurrentHits        uint64 `json:"currentHits"`
	SpecializationHits uint64 `json:"specializationHits"`
	Threshold          uint64 `json:"threshold"`
	Eligible           bool   `json:"eligible"`
	Active             bool   `json:"active"`
}

type loopTrace struct {
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

type report struct {
	TotalInstructions uint64          `json:"totalInstructions"`
	TotalCycles       uint64          `json:"totalCycles"`
	EnabledFlags      []string        `json:"enabledFlags"`
	Opcodes           []opcodeEntry   `json:"opcodes"`
	Functions         []functionEntry `json:"functions"`
	LoopTrace         loopTrace       `json:"loopTrace"`
}

const topN = 20

func main() {
	path := "orus.prof.json"
	if len(os.Args) > 1 {
		if os.Args[1] == "-h" || os.Args[1] == "--help" {
			fmt.Println("usage: orus-prof [report.json]")
			return
		}
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orus-prof: %s\n", err.Error())
		os.Exit(66)
	}

	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		fmt.Fprintf(os.Stderr, "orus-prof: %s: %s\n", path, err.Error())
		os.Exit(65)
	}

	color := isatty.IsTerminal(os.Stdout.Fd())
	heading := func(s string) {
		if color {
			fmt.Printf("\x1b[1m%s\x1b[0m\n", s)
		} else {
			fmt.Println(s)
		}
	}

	heading(fmt.Sprintf("profile: %s instructions, %s cycles",
		humanize.Comma(int64(r.TotalInstructions)), humanize.Comma(int64(r.TotalCycles))))
	if len(r.EnabledFlags) > 0 {
		fmt.Printf("flags: %s\n", strings.Join(r.EnabledFlags, ", "))
	}
	fmt.Println()

	heading("top opcodes")
	n := len(r.Opcodes)
	if n > topN {
		n = topN
	}
	for _, op := range r.Opcodes[:n] {
		pct := 0.0
		if r.TotalInstructions > 0 {
			pct = float64(op.Count) / float64(r.TotalInstructions) * 100
		}
		hot := ""
		if op.IsHot {
			hot = "  hot"
		}
		fmt.Printf("  %-24s %12s  %5.1f%%%s\n", op.Opcode, humanize.Comma(int64(op.Count)), pct, hot)
	}
	fmt.Println()

	if len(r.Functions) > 0 {
		heading("functions")
		for _, fn := range r.Functions {
			name := fn.Name
			if name == "" {
				name = fmt.Sprintf("#%d", fn.Index)
			}
			status := ""
			switch {
			case fn.Active:
				status = "  active"
			case !fn.Eligible:
				status = "  ineligible"
			}
			fmt.Printf("  %-24s %12s hits  %-11s %s/%s toward next tier%s\n",
				name, humanize.Comma(int64(fn.CurrentHits)), fn.Tier,
				humanize.Comma(int64(fn.SpecializationHits)), humanize.Comma(int64(fn.Threshold)), status)
		}
		fmt.Println()
	}

	heading("loop telemetry")
	lt := r.LoopTrace
	rows := []struct {
		name  string
		value uint64
	}{
		{"typed hits", lt.TypedHit},
		{"typed misses", lt.TypedMiss},
		{"boxed type mismatches", lt.BoxedTypeMismatch},
		{"boxed overflow guards", lt.BoxedOverflowGuard},
		{"branch fast hits", lt.TypedBranchFastHits},
		{"branch fast misses", lt.TypedBranchFastMisses},
		{"inc fast hits", lt.IncFastHits},
		{"inc fast misses", lt.IncFastMisses},
		{"inc overflow bailouts", lt.IncOverflowBailouts},
		{"inc type instability", lt.IncTypeInstability},
		{"iter allocations saved", lt.IterAllocationsSaved},
		{"iter fallbacks", lt.IterFallbacks},
		{"licm guard fusions", lt.LICMGuardFusions},
		{"licm guard demotions", lt.LICMGuardDemotions},
		{"branch cache hits", lt.LoopBranchCacheHits},
		{"branch cache misses", lt.LoopBranchCacheMisses},
	}
	for _, row := range rows {
		if row.value == 0 {
			continue
		}
		fmt.Printf("  %-24s %12s\n", row.name, humanize.Comma(int64(row.value)))
	}
}
