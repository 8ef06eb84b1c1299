package testdriver

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/loglob/ccheck/pkg/guard"
	"github.com/loglob/ccheck/pkg/registry"
	"github.com/loglob/ccheck/pkg/sentinel"
)

func int32Dataset(module, name string, values ...int32) *registry.Dataset {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return &registry.Dataset{
		Module: module,
		Name:   name,
		Count:  len(values),
		Data:   buf,
	}
}

func sig(args ...sentinel.Arg) sentinel.Signature {
	b := sentinel.NewSignatureBuilder()
	for _, a := range args {
		b.Add(a.Type, a.Name)
	}
	return b.Build()
}

func alwaysPass(args [][]byte) guard.Result {
	return guard.Result{Kind: guard.OK}
}

func TestRunTest_MissingProviderFailsImmediately(t *testing.T) {
	reg := registry.New()
	desc := Descriptor{Name: "t", Signature: sig(sentinel.Arg{Type: "int32_t", Name: "x"})}

	out := RunTest("mod.so", desc, reg, alwaysPass)
	if out.Passed {
		t.Fatal("expected failure for missing provider")
	}
	if !strings.Contains(out.Message, "No providers registered for type 'int32_t'") {
		t.Fatalf("unexpected message: %q", out.Message)
	}
}

func TestRunTest_SingleArgEnumeratesAllElements(t *testing.T) {
	reg := registry.New()
	if err := reg.Insert("int32_t", 4, int32Dataset("mod.so", "ints", 1, 2, 3)); err != nil {
		t.Fatal(err)
	}

	desc := Descriptor{Name: "t", Signature: sig(sentinel.Arg{Type: "int32_t", Name: "x"})}
	out := RunTest("mod.so", desc, reg, alwaysPass)

	if !out.Passed {
		t.Fatalf("expected success, got failure: %s", out.Message)
	}
	if out.Variants != 3 {
		t.Fatalf("expected 3 variants, got %d", out.Variants)
	}
}

func TestRunTest_EmptyDatasetSkipsWithoutFailure(t *testing.T) {
	reg := registry.New()
	if err := reg.Insert("int32_t", 4, int32Dataset("mod.so", "empty")); err != nil {
		t.Fatal(err)
	}

	desc := Descriptor{Name: "t", Signature: sig(sentinel.Arg{Type: "int32_t", Name: "x"})}
	out := RunTest("mod.so", desc, reg, alwaysPass)

	if !out.Passed {
		t.Fatalf("expected success for all-empty-dataset test, got failure: %s", out.Message)
	}
	if out.Variants != 0 {
		t.Fatalf("expected 0 variants, got %d", out.Variants)
	}
}

func TestRunTest_ArityZeroInvokesOnce(t *testing.T) {
	reg := registry.New()
	desc := Descriptor{Name: "t", Signature: sig()}

	calls := 0
	out := RunTest("mod.so", desc, reg, func(args [][]byte) guard.Result {
		calls++
		return guard.Result{Kind: guard.OK}
	})

	if !out.Passed || out.Variants != 1 || calls != 1 {
		t.Fatalf("expected exactly one invocation, got passed=%v variants=%d calls=%d", out.Passed, out.Variants, calls)
	}
}

func TestRunTest_TwoTypesCartesianProduct(t *testing.T) {
	reg := registry.New()
	if err := reg.Insert("int32_t", 4, int32Dataset("mod.so", "a", 1, 2)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Insert("int32_t", 4, int32Dataset("mod.so", "b", 3)); err != nil {
		t.Fatal(err)
	}
	if err := reg.Insert("uint16_t", 2, &registry.Dataset{Module: "mod.so", Name: "u", Count: 3, Data: make([]byte, 6)}); err != nil {
		t.Fatal(err)
	}

	desc := Descriptor{
		Name: "t",
		Signature: sig(
			sentinel.Arg{Type: "int32_t", Name: "x"},
			sentinel.Arg{Type: "uint16_t", Name: "y"},
		),
	}

	out := RunTest("mod.so", desc, reg, alwaysPass)
	if !out.Passed {
		t.Fatalf("expected success, got: %s", out.Message)
	}
	// |a|*|u| + |b|*|u| = 2*3 + 1*3 = 9, matching spec's example 6.
	if out.Variants != 9 {
		t.Fatalf("expected 9 variants, got %d", out.Variants)
	}
}

func TestRunTest_FailureStopsEnumerationAndFormatsMessage(t *testing.T) {
	reg := registry.New()
	if err := reg.Insert("int32_t", 4, int32Dataset("mod.so", "ints", 1, 2, 3)); err != nil {
		t.Fatal(err)
	}

	desc := Descriptor{Name: "t", Signature: sig(sentinel.Arg{Type: "int32_t", Name: "x"})}

	calls := 0
	out := RunTest("mod.so", desc, reg, func(args [][]byte) guard.Result {
		calls++
		return guard.Result{Kind: guard.Explicit, Message: "boom"}
	})

	if out.Passed {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected enumeration to stop after first failure, got %d calls", calls)
	}
	if !strings.Contains(out.Message, "Failed test mod.so::t(") || !strings.Contains(out.Message, "boom") {
		t.Fatalf("unexpected diagnostic message: %q", out.Message)
	}
}
