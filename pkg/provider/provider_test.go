package provider

import (
	"testing"

	"github.com/loglob/ccheck/pkg/sentinel"
)

func TestIsSizeofProviderSymbol(t *testing.T) {
	cases := map[string]bool{
		"_SIZEOF_PROVIDER_ints":                  true,
		"_PROVIDER_ints":                         false,
		"some_unrelated_symbol":                  false,
		sentinel.TestTrampolinePrefix + "thing":  false,
		sentinel.SizeofProviderPrefix:            false,
	}

	for name, want := range cases {
		if got := isSizeofProviderSymbol(name); got != want {
			t.Errorf("isSizeofProviderSymbol(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestResolveVariantCount_ZeroUsesFallback(t *testing.T) {
	if got := resolveVariantCount(0, 50); got != 50 {
		t.Fatalf("resolveVariantCount(0, 50) = %d, want 50", got)
	}
}

func TestResolveVariantCount_NonzeroIsUnchanged(t *testing.T) {
	if got := resolveVariantCount(7, 50); got != 7 {
		t.Fatalf("resolveVariantCount(7, 50) = %d, want 7", got)
	}
}
