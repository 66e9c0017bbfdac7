// Package config loads interpreter options from an optional TOML file and
// ORUS_* environment variables. Environment always wins over the file so a
// single run can flip a flag without editing anything.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"orus/internal/vm"
)

// File mirrors the orus.toml layout.
type File struct {
	Dispatch    string `toml:"dispatch"`     // "table" (default) or "switch"
	ArithMode   string `toml:"arith_mode"`   // "safe" (default) or "fast"
	GCThreshold string `toml:"gc_threshold"` // e.g. "1 MiB", "512 KiB"

	Trace                     bool `toml:"trace"`
	TraceTypedFallbacks       bool `toml:"trace_typed_fallbacks"`
	Profile                   bool `toml:"profile"`
	DisableBoolBranchFastpath bool `toml:"disable_bool_branch_fastpath"`
	DisableIncTypedFastpath   bool `toml:"disable_inc_typed_fastpath"`
	ForceBoxedIterators       bool `toml:"force_boxed_iterators"`
	EnableLICMTypedGuards     bool `toml:"enable_licm_typed_guards"`
}

// DefaultFileName is looked for in the working directory when no explicit
// config path is given.
const DefaultFileName = "orus.toml"

// Load reads a TOML config file. A missing file is not an error; the zero
// File is returned so env overrides still apply.
func Load(path string) (*File, error) {
	f := &File{}
	if path == "" {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f, nil
	}
	if _, err := toml.DecodeFile(path, f); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return f, nil
}

func envBool(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		// Treat any non-empty unparseable value as "on", matching the
		// usual DEBUG=yes convention.
		return raw != "" && raw != "0", true
	}
	return v, true
}

// ApplyEnv overlays ORUS_* environment variables onto the file values.
func (f *File) ApplyEnv() {
	if v, ok := envBool("ORUS_TRACE"); ok {
		f.Trace = v
	}
	if v, ok := envBool("ORUS_TRACE_TYPED_FALLBACKS"); ok {
		f.TraceTypedFallbacks = v
	}
	if v, ok := envBool("ORUS_PROFILE"); ok {
		f.Profile = v
	}
	if v, ok := envBool("ORUS_DISABLE_BOOL_BRANCH_FASTPATH"); ok {
		f.DisableBoolBranchFastpath = v
	}
	if v, ok := envBool("ORUS_DISABLE_INC_TYPED_FASTPATH"); ok {
		f.DisableIncTypedFastpath = v
	}
	if v, ok := envBool("ORUS_FORCE_BOXED_ITERATORS"); ok {
		f.ForceBoxedIterators = v
	}
	if v, ok := envBool("ORUS_ENABLE_LICM_TYPED_GUARDS"); ok {
		f.EnableLICMTypedGuards = v
	}
	if v, ok := os.LookupEnv("ORUS_DISPATCH"); ok {
		f.Dispatch = v
	}
	if v, ok := os.LookupEnv("ORUS_ARITH_MODE"); ok {
		f.ArithMode = v
	}
	if v, ok := os.LookupEnv("ORUS_GC_THRESHOLD"); ok {
		f.GCThreshold = v
	}
}

// Runtime validates the file and converts it to VM options.
func (f *File) Runtime() (vm.RuntimeOptions, error) {
	opts := vm.RuntimeOptions{
		Trace:                     f.Trace,
		TraceTypedFallbacks:       f.TraceTypedFallbacks,
		Profile:                   f.Profile,
		DisableBoolBranchFastpath: f.DisableBoolBranchFastpath,
		DisableIncTypedFastpath:   f.DisableIncTypedFastpath,
		ForceBoxedIterators:       f.ForceBoxedIterators,
		EnableLICMTypedGuards:     f.EnableLICMTypedGuards,
	}

	switch strings.ToLower(f.Dispatch) {
	case "", "table":
		opts.Dispatch = "table"
	case "switch":
		opts.Dispatch = "switch"
	default:
		return opts, errors.Errorf("unknown dispatch %q (want table or switch)", f.Dispatch)
	}

	switch strings.ToLower(f.ArithMode) {
	case "", "safe":
		opts.ArithMode = vm.ARITH_SAFE
	case "fast":
		opts.ArithMode = vm.ARITH_FAST
	default:
		return opts, errors.Errorf("unknown arith_mode %q (want safe or fast)", f.ArithMode)
	}

	if f.GCThreshold != "" {
		n, err := humanize.ParseBytes(f.GCThreshold)
		if err != nil {
			return opts, errors.Wrapf(err, "gc_threshold %q", f.GCThreshold)
		}
		opts.GCThreshold = n
	}
	return opts, nil
}

// Options is the common path: load the file (if any), overlay the
// environment, validate.
func Options(path string) (vm.RuntimeOptions, error) {
	f, err := Load(path)
	if err != nil {
		return vm.RuntimeOptions{}, err
	}
	f.ApplyEnv()
	return f.Runtime()
}
