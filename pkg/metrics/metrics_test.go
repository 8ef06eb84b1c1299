package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_SetExposesCounters(t *testing.T) {
	c := NewCollector()
	c.Set(2, 10, 25, 3)

	if got := testutil.ToFloat64(c.failures); got != 3 {
		t.Fatalf("expected 3 failures, got %v", got)
	}
	if got := testutil.ToFloat64(c.variants); got != 25 {
		t.Fatalf("expected 25 variants, got %v", got)
	}
}

func TestNewServer_EmptyAddrDisabled(t *testing.T) {
	if NewServer("", NewCollector()) != nil {
		t.Fatal("expected nil server for empty listen address")
	}
}

func TestCollector_GatherIncludesMetricNames(t *testing.T) {
	c := NewCollector()
	c.Set(1, 1, 1, 0)

	mfs, err := c.registry.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	joined := strings.Join(names, ",")
	for _, want := range []string{"ccheck_modules_total", "ccheck_tests_total", "ccheck_variants_total", "ccheck_failures_total"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected metric %q in %v", want, names)
		}
	}
}
