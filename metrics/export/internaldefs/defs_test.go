package internaldefs

import (
	"strings"
	"testing"

	connectshare "github.com/alinasr783/connect-share"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seenIDs := map[connectshare.MetricID]bool{}
	seenNames := map[string]bool{}
	for _, def := range CounterDefs {
		if seenIDs[def.ID] || seenNames[def.Name] {
			t.Fatalf("duplicate counter def %+v", def)
		}
		if !strings.HasPrefix(def.Name, "connectshare_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q does not follow naming", def.Name)
		}
		seenIDs[def.ID] = true
		seenNames[def.Name] = true
	}

	snap := connectshare.NewMetrics(connectshare.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if !seenIDs[id] {
			t.Fatalf("counter %d has no export definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if len(HistogramBounds) != len(HistogramBoundSuffix) {
		t.Fatal("bounds and suffixes differ in length")
	}
}
