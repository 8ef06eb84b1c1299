package testdriver

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"github.com/loglob/ccheck/pkg/ffi"
	"github.com/loglob/ccheck/pkg/guard"
	"github.com/loglob/ccheck/pkg/registry"
)

// Invoker calls a resolved test function with the given argument bytes
// (one slice per argument, in declaration order) under the fault guard,
// returning its classified outcome. Abstracting this out of RunTest lets
// pkg/testdriver's enumeration and diagnostic-formatting logic be exercised
// with fixtures, with no real dlopen'd code involved.
type Invoker func(args [][]byte) guard.Result

// NativeInvoker builds the production Invoker for a resolved test function:
// each argument's backing bytes are pinned and passed to fn as a pointer,
// the whole call running under guard.Invoke.
func NativeInvoker(fn uintptr, messageBufferSize int) Invoker {
	return func(args [][]byte) guard.Result {
		ptrs := make([]uintptr, len(args))
		for i, a := range args {
			if len(a) > 0 {
				ptrs[i] = uintptr(unsafe.Pointer(&a[0]))
			}
		}

		res := guard.Invoke(messageBufferSize, func() {
			ffi.Call(fn, ptrs...)
		})

		runtime.KeepAlive(args)
		return res
	}
}

// PreconditionError reports that a test couldn't be run at all because one
// of its argument types has no registered provider, distinct from a test
// failure (the test function itself was never invoked).
type PreconditionError struct {
	Module, Test, Type string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("Couldn't run test %s::%s: No providers registered for type '%s'.", e.Module, e.Test, e.Type)
}

// Outcome is the per-test result returned by RunTest: whether the test
// passed, how many variants were actually invoked, and (on failure) the
// formatted diagnostic line.
type Outcome struct {
	Passed   bool
	Variants int
	Message  string
}

// RunTest enumerates the Cartesian product of provider data applicable to
// desc's signature and invokes it via invoke for each combination,
// translating ccheck.c's runSingleTest. Enumeration stops at the first
// failing combination (matching spec's relaxation that continuing past a
// failure is not required, and ccheck.c's own setjmp-target-return
// behavior). A type with no registered provider is an immediate failure;
// an argument whose selected provider's dataset is empty makes that outer
// combination contribute zero variants rather than being invoked.
func RunTest(moduleName string, desc Descriptor, reg *registry.Registry, invoke Invoker) Outcome {
	sig := desc.Signature
	typeCount := len(sig.Types)

	buckets := make([]*registry.Bucket, typeCount)
	for i, typ := range sig.Types {
		b := reg.Lookup(typ)
		if b == nil {
			err := &PreconditionError{Module: moduleName, Test: desc.Name, Type: typ}
			return Outcome{Passed: false, Message: err.Error()}
		}
		buckets[i] = b
	}

	outerMods := make([]int, typeCount)
	for i, b := range buckets {
		outerMods[i] = len(b.Datasets)
	}

	variants := 0
	outer := NewOdometer(outerMods)

	for {
		providerSel := outer.Current() // index into buckets[i].Datasets, per type i

		if fail, msg := runOuterCombination(moduleName, desc, buckets, providerSel, invoke, &variants); fail {
			return Outcome{Passed: false, Variants: variants, Message: msg}
		}

		if !outer.Next() {
			break
		}
	}

	return Outcome{Passed: true, Variants: variants}
}

// runOuterCombination runs every variant for one selection of providers
// (one dataset per distinct type), enumerating the inner odometer over
// data indices. Returns (true, message) on the first guarded failure.
func runOuterCombination(moduleName string, desc Descriptor, buckets []*registry.Bucket, providerSel []int, invoke Invoker, variants *int) (bool, string) {
	sig := desc.Signature
	arity := len(sig.Args)

	datasets := make([]*registry.Dataset, len(sig.Types))
	for ti, b := range buckets {
		datasets[ti] = b.Datasets[providerSel[ti]]
	}

	innerMods := make([]int, arity)
	for i := range sig.Args {
		ti := sig.TypeIndex[i]
		innerMods[i] = datasets[ti].Count
	}

	for _, n := range innerMods {
		if n == 0 {
			// Per spec: an empty dataset for any argument makes the inner
			// odometer cycle zero times for this outer combination.
			return false, ""
		}
	}

	inner := NewOdometer(innerMods)

	for {
		dataSel := inner.Current()
		*variants++

		args := make([][]byte, arity)
		for i := range sig.Args {
			ti := sig.TypeIndex[i]
			b := buckets[ti]
			args[i] = datasets[ti].Element(b.ElementSize, dataSel[i])
		}

		res := invoke(args)
		if !res.Passed() {
			msg := formatFailure(moduleName, desc, buckets, datasets, providerSel, dataSel, res.Message)
			return true, msg
		}

		if !inner.Next() {
			break
		}
	}

	return false, ""
}

// formatFailure renders a diagnostic line matching ccheck.c's setjmp
// failure handler: "Failed test <module>::<name>(<arg> = <value> (<module>::<provider> #<idx>), ...): <message>"
func formatFailure(moduleName string, desc Descriptor, buckets []*registry.Bucket, datasets []*registry.Dataset, providerSel, dataSel []int, message string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failed test %s::%s(", moduleName, desc.Name)

	for i, a := range desc.Signature.Args {
		ti := desc.Signature.TypeIndex[i]
		b := buckets[ti]
		d := datasets[ti]

		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, " %s = ", a.Name)

		elt := d.Element(b.ElementSize, dataSel[i])
		if d.Format != nil {
			sb.WriteString(d.Format(elt))
		} else {
			fmt.Fprintf(&sb, "%x", elt)
		}

		fmt.Fprintf(&sb, " (%s::%s #%d)", d.Module, d.Name, dataSel[i])
	}

	fmt.Fprintf(&sb, " ): %s", message)
	return sb.String()
}
