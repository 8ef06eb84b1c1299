package testdriver

import (
	"fmt"

	"github.com/loglob/ccheck/pkg/ffi"
	"github.com/loglob/ccheck/pkg/sentinel"
)

// Descriptor is a resolved test: its trampoline function pointer and
// parsed signature, the Go equivalent of the (func, arity, typeCount,
// argTypes, argTypeIndices, argNames) tuple ccheck.c's runTests assembles
// before calling runSingleTest.
type Descriptor struct {
	Name      string
	Func      uintptr
	Signature sentinel.Signature
}

// Resolve reads the _SIG_TEST_<name> symbol live from h, walking its
// doubly-NUL-terminated (type, argname) pairs directly out of process
// memory (mirroring ccheck.c's pointer walk over dl->elfOffset +
// s.st_value), then resolves the matching _TEST_<name> trampoline.
func Resolve(h *ffi.Handle, sigSymbolName string) (Descriptor, error) {
	testName := sentinel.TestName(sigSymbolName)

	sigAddr, err := h.Sym(sigSymbolName)
	if err != nil {
		return Descriptor{}, fmt.Errorf("missing symbol %q: %w", sigSymbolName, err)
	}

	pairs := ffi.WalkPairedStrings(sigAddr, sentinel.MaxArity+1)
	if len(pairs) > sentinel.MaxArity {
		return Descriptor{}, fmt.Errorf("test %s: arity greater than maximum of %d", testName, sentinel.MaxArity)
	}

	b := sentinel.NewSignatureBuilder()
	for _, p := range pairs {
		b.Add(p[0], p[1])
	}

	funcAddr, err := h.Sym(sentinel.TrampolineSymbol(testName))
	if err != nil {
		return Descriptor{}, fmt.Errorf("test %s: missing testing function: %w", testName, err)
	}

	return Descriptor{Name: testName, Func: funcAddr, Signature: b.Build()}, nil
}
