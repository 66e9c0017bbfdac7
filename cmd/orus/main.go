// cmd/orus/main.go
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"orus/internal/config"
	"orus/internal/jit"
	"orus/internal/vm"

	_ "github.com/tliron/commonlog/simple"
)

const VERSION = "0.1.0"

const (
	exitUsage   = 64
	exitData    = 65
	exitRuntime = 70
)

func main() {
	var (
		disassemble bool
		trace       bool
		profile     bool
		profilePath = "orus.prof.json"
		dispatch    string
		configPath  string
		verbosity   int
		program     string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-h", "--help", "help":
			showUsage()
			return
		case "-v", "--version", "version":
			fmt.Printf("orus %s\n", VERSION)
			return
		case "-d":
			disassemble = true
		case "-trace":
			trace = true
		case "-profile":
			profile = true
		case "-profile-out":
			i++
			if i >= len(args) {
				fail(exitUsage, "-profile-out needs a path")
			}
			profilePath = args[i]
		case "-dispatch":
			i++
			if i >= len(args) {
				fail(exitUsage, "-dispatch needs table or switch")
			}
			dispatch = args[i]
		case "-config":
			i++
			if i >= len(args) {
				fail(exitUsage, "-config needs a path")
			}
			configPath = args[i]
		case "-verbose":
			verbosity++
		case "-list":
			listPrograms()
			return
		default:
			if program != "" {
				fail(exitUsage, "unexpected argument %q", arg)
			}
			program = arg
		}
	}

	commonlog.Configure(verbosity, nil)

	if program == "" {
		showUsage()
		os.Exit(exitUsage)
	}
	build, ok := programs[program]
	if !ok {
		fail(exitData, "unknown program %q (try -list)", program)
	}

	opts, err := config.Options(configPath)
	if err != nil {
		fail(exitData, "%s", err.Error())
	}
	if trace {
		opts.Trace = true
	}
	if profile {
		opts.Profile = true
		opts.TraceTypedFallbacks = true
	}
	if dispatch != "" {
		opts.Dispatch = dispatch
	}

	machine := vm.NewVM(opts)
	defer machine.Free()

	chunk := build(machine)

	if disassemble {
		vm.DisassembleChunk(chunk, program, os.Stdout)
		return
	}

	result, err := machine.Interpret(chunk)
	if result != vm.INTERPRET_OK {
		printError(err)
		os.Exit(exitRuntime)
	}

	if profile {
		writeProfile(machine, profilePath)
	}
}

func writeProfile(machine *vm.VM, path string) {
	f, err := os.Create(path)
	if err != nil {
		fail(exitRuntime, "profile: %s", err.Error())
	}
	defer f.Close()
	if err := machine.WriteProfile(f); err != nil {
		fail(exitRuntime, "profile: %s", err.Error())
	}

	// Surface the tier promotions this run would justify.
	profiler := jit.NewProfiler()
	for _, d := range profiler.Analyze(machine.Profile()) {
		fmt.Fprintf(os.Stderr, "jit: %s -> %s (%d calls, %s)\n",
			d.Target, d.Tier, d.Calls, d.Specialization)
	}
	fmt.Fprintf(os.Stderr, "profile written to %s\n", path)
}

func printError(err error) {
	msg := "runtime error"
	if err != nil {
		msg = err.Error()
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31m%s\x1b[0m\n", msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
}

func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "orus: "+format+"\n", args...)
	os.Exit(code)
}

func listPrograms() {
	fmt.Println("built-in programs:")
	for _, name := range programOrder {
		fmt.Printf("  %-10s %s\n", name, programHelp[name])
	}
}

func showUsage() {
	fmt.Println(`orus - register VM demo runner

Usage:
  orus [flags] <program>

Programs are small bytecode benchmarks assembled in-process; see -list.

Flags:
  -d             disassemble instead of running
  -trace         print each instruction as it executes
  -profile       collect and write a profiling report
  -profile-out   path for the report (default orus.prof.json)
  -dispatch      interpreter loop: table or switch
  -config        TOML config path (default orus.toml)
  -verbose       more logging (repeatable)
  -list          list built-in programs
  -v, --version  print version
  -h, --help     this help`)
}
