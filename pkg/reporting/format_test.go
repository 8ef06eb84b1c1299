package reporting

import (
	"bytes"
	"strings"
	"testing"
)

func TestConjugate_Singular(t *testing.T) {
	if got := Conjugate(1, "test"); got != "1 test" {
		t.Fatalf("got %q", got)
	}
}

func TestConjugate_Plural(t *testing.T) {
	for _, n := range []uint64{0, 2, 50} {
		got := Conjugate(n, "test")
		if !strings.HasSuffix(got, "tests") {
			t.Fatalf("Conjugate(%d, ...) = %q, expected plural", n, got)
		}
	}
}

func TestModuleLine_NoDataIsYellow(t *testing.T) {
	col := &Colorizer{enabled: true}
	line := ModuleLine(col, "mod.so", 0, 0, 0, false)
	if !strings.Contains(line, ansiYellow) || !strings.Contains(line, "provided no data") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestModuleLine_FailuresAreRed(t *testing.T) {
	col := &Colorizer{enabled: true}
	line := ModuleLine(col, "mod.so", 3, 10, 1, false)
	if !strings.Contains(line, ansiRed) {
		t.Fatalf("expected red coloring on failure, got %q", line)
	}
}

func TestModuleLine_ProviderOnlyIsSilent(t *testing.T) {
	// A module that defines only PROVIDER()s and no TEST()s (integer-provider.c
	// is the real-world shape of this) must not print the "no data" line:
	// it manifestly provided data even though it ran zero tests.
	col := &Colorizer{enabled: true}
	line := ModuleLine(col, "provider.so", 0, 0, 0, true)
	if line != "" {
		t.Fatalf("expected a silent line for a provider-only module, got %q", line)
	}
}

func TestColorizer_DisabledPassesThrough(t *testing.T) {
	col := &Colorizer{enabled: false}
	if got := col.Red("plain"); got != "plain" {
		t.Fatalf("expected no ANSI codes, got %q", got)
	}
}

func TestNewColorizer_NonTerminalWriterDisablesAutoColor(t *testing.T) {
	var buf bytes.Buffer
	col := NewColorizer(&buf, false, true)
	if col.enabled {
		t.Fatal("expected color disabled for a non-terminal io.Writer")
	}
}
