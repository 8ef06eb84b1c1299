// Package module implements loading of the dynamic objects supplied as CLI
// arguments (ccheck.c's struct DL) and the subject/tester split on "--".
package module

import (
	"fmt"
	"sync/atomic"

	"github.com/loglob/ccheck/pkg/elf"
	"github.com/loglob/ccheck/pkg/ffi"
)

// Module is a single dlopen()d object along with the symbol table read from
// its on-disk ELF image and the running counters this harness accumulates
// against it: a direct translation of ccheck.c's struct DL.
type Module struct {
	// Name is the path used as the CLI argument.
	Name string
	// Handle is the open dynamic object, for subjects and testers alike;
	// Close releases it.
	Handle *ffi.Handle

	obj *elf.Object

	// HasProvider records whether provider.Discover successfully loaded at
	// least one provider from this module.
	HasProvider bool

	variants  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
}

// Load dlopen()s path with the given visibility and parses its on-disk ELF
// symbol table, mirroring ccheck.c's loadDL (minus the live link_map walk,
// see pkg/elf's package doc).
func Load(path string, vis ffi.Visibility) (*Module, error) {
	h, err := ffi.Open(path, vis)
	if err != nil {
		return nil, err
	}

	obj, err := elf.Open(path)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("reading symbol table of %q: %w", path, err)
	}

	return &Module{Name: path, Handle: h, obj: obj}, nil
}

// Close releases the dlopen handle and the backing file of the parsed ELF
// image.
func (m *Module) Close() error {
	err := m.obj.Close()
	if cerr := m.Handle.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Symbols returns every symbol discovered in the module's symbol table, in
// the order emitted by pkg/elf (definition order for a GNU/SysV hash
// table), matching ccheck.c's sequential scan over dl->symbols.
func (m *Module) Symbols() []elf.Symbol {
	return m.obj.Symbols()
}

// AddVariant records one more test-function invocation against this module.
func (m *Module) AddVariant() {
	m.variants.Add(1)
}

// AddResult records the outcome of one completed test (not variant: a test
// with multiple variants contributes exactly one success-or-failure here).
func (m *Module) AddResult(passed bool) {
	if passed {
		m.succeeded.Add(1)
	} else {
		m.failed.Add(1)
	}
}

// Counters is a snapshot of a module's accumulated statistics.
type Counters struct {
	Variants  uint64
	Succeeded uint64
	Failed    uint64
}

// Counters returns a snapshot of the module's running counters. Safe to
// call concurrently with AddVariant/AddResult from the module's own worker.
func (m *Module) Counters() Counters {
	return Counters{
		Variants:  m.variants.Load(),
		Succeeded: m.succeeded.Load(),
		Failed:    m.failed.Load(),
	}
}

// Partition splits CLI arguments on the first bare "--" into subjects
// (loaded RTLD_GLOBAL, before the separator) and testers (loaded
// RTLD_LOCAL, after it), matching ccheck.c's main() argv loop. args is
// expected to already have "--" stripped, as cobra's Flags().Args() does;
// dashIndex is cobra's ArgsLenAtDash() result: -1 if no "--" was present, in
// which case every argument is treated as a tester and there are no
// subjects (a standalone test run with no subject under test, e.g.
// unit-testing the test modules themselves).
func Partition(args []string, dashIndex int) (subjects, testers []string) {
	if dashIndex < 0 {
		return nil, args
	}
	return args[:dashIndex], args[dashIndex:]
}

// LoadAll opens every subject (RTLD_GLOBAL) followed by every tester
// (RTLD_LOCAL), matching ccheck.c's left-to-right argv order: subjects must
// be resolvable before any tester's TEST() functions are dlsym'd, since
// testers are expected to call into subject symbols made visible by
// RTLD_GLOBAL. A path that fails to load is recorded as a *LoadError in
// errs and skipped, not fatal: matching ccheck.c's main(), which keeps
// walking argv and testing whatever did load after a bad one.
func LoadAll(subjects, testers []string) (subjectModules, testerModules []*Module, errs []error) {
	for _, path := range subjects {
		m, err := Load(path, ffi.Global)
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}
		subjectModules = append(subjectModules, m)
	}

	for _, path := range testers {
		m, err := Load(path, ffi.Local)
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}
		testerModules = append(testerModules, m)
	}

	return subjectModules, testerModules, errs
}

// LoadError reports a failure to dlopen or symbol-table-parse a module,
// naming the offending path.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error loading %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
