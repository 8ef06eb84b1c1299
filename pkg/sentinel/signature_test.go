package sentinel

import "testing"

func joined(parts ...string) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
		b = append(b, 0)
	}
	b = append(b, 0) // JOIN()'s trailing "\0\0"
	return b
}

func TestParseSignature_Arity0(t *testing.T) {
	sig, err := ParseSignature(joined())
	if err != nil {
		t.Fatal(err)
	}
	if sig.Arity() != 0 {
		t.Fatalf("expected arity 0, got %d", sig.Arity())
	}
	if len(sig.Types) != 0 {
		t.Fatalf("expected no types, got %v", sig.Types)
	}
}

func TestParseSignature_DeduplicatesTypes(t *testing.T) {
	raw := joined("int32_t", "x", "uint16_t", "y", "int32_t", "z")
	sig, err := ParseSignature(raw)
	if err != nil {
		t.Fatal(err)
	}
	if sig.Arity() != 3 {
		t.Fatalf("expected arity 3, got %d", sig.Arity())
	}
	if want := []string{"int32_t", "uint16_t"}; !equalStrings(sig.Types, want) {
		t.Fatalf("expected types %v, got %v", want, sig.Types)
	}
	if want := []int{0, 1, 0}; !equalInts(sig.TypeIndex, want) {
		t.Fatalf("expected type indices %v, got %v", want, sig.TypeIndex)
	}
	if sig.Args[0].Name != "x" || sig.Args[2].Name != "z" {
		t.Fatalf("argument names not preserved: %+v", sig.Args)
	}
}

func TestParseSignature_ArityOverLimit(t *testing.T) {
	var parts []string
	for i := 0; i <= MaxArity; i++ {
		parts = append(parts, "int32_t", "a")
	}
	_, err := ParseSignature(joined(parts...))
	if err == nil {
		t.Fatal("expected error for arity over MaxArity")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
