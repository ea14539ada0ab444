package internaldefs

import (
	"strings"
	"testing"

	"github.com/civicpulse/authcore"
)

func TestEveryMetricHasOneDefinition(t *testing.T) {
	seen := map[authcore.MetricID]string{}
	names := map[string]bool{}
	for _, d := range CounterDefs {
		if d.ID.IsHistogram() {
			t.Fatalf("%s is declared as counter but is a histogram id", d.Name)
		}
		seen[d.ID] = d.Name
		names[d.Name] = true
	}
	for _, d := range HistogramDefs {
		if !d.ID.IsHistogram() {
			t.Fatalf("%s is declared as histogram but is a counter id", d.Name)
		}
		seen[d.ID] = d.Name
		names[d.Name] = true
	}
	if len(seen) != len(CounterDefs)+len(HistogramDefs) || len(names) != len(seen) {
		t.Fatal("duplicate metric id or name")
	}
	for name := range names {
		if !strings.HasPrefix(name, Prefix) {
			t.Fatalf("%s lacks prefix %q", name, Prefix)
		}
	}
	if _, ok := seen[authcore.MetricStoreUnavailable]; !ok {
		t.Fatal("last counter is not exported")
	}
	if _, ok := seen[authcore.MetricAuthenticateLatency]; !ok {
		t.Fatal("last histogram is not exported")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2, 0, 0, 1}))
	want := [8]uint64{1, 1, 3, 3, 3, 4, 4, 4}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if len(HistogramBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatal("bounds and suffixes disagree")
	}
}
