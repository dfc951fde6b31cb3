package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/metrics/export/internaldefs"
)

// MetricsSource is what the exporter reads on every scrape. *connectshare.Engine
// satisfies it.
type MetricsSource interface {
	MetricsSnapshot() connectshare.MetricsSnapshot
	AuditDropped() uint64
	Mounted() int
	Listening() bool
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	list func() []MetricsSource
}

// NewExporter creates an exporter over one or more engines. Counters are summed
// across sources; the mounted and listener gauges are summed too.
func NewExporter(sources ...MetricsSource) *Exporter {
	return &Exporter{list: func() []MetricsSource { return sources }}
}

// NewExporterFunc creates an exporter whose sources are listed again on every
// scrape, for a changing set of engines.
func NewExporterFunc(list func() []MetricsSource) *Exporter {
	return &Exporter{list: list}
}

// NewEngineExporter creates an exporter for a single engine.
func NewEngineExporter(engine *connectshare.Engine) *Exporter {
	return NewExporter(engine)
}

// Handler serves the rendered metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

type totals struct {
	counters   map[connectshare.MetricID]uint64
	histograms map[connectshare.MetricID][8]uint64
	dropped    uint64
	mounted    uint64
	listening  uint64
	enabled    bool
}

func (p *Exporter) collect(sources []MetricsSource) totals {
	t := totals{
		counters:   map[connectshare.MetricID]uint64{},
		histograms: map[connectshare.MetricID][8]uint64{},
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		snap := src.MetricsSnapshot()
		if len(snap.Counters) > 0 || len(snap.Histograms) > 0 {
			t.enabled = true
		}
		for id, v := range snap.Counters {
			t.counters[id] += v
		}
		for id, raw := range snap.Histograms {
			cur := t.histograms[id]
			add := internaldefs.NormalizeBuckets(raw)
			for i := range cur {
				cur[i] += add[i]
			}
			t.histograms[id] = cur
		}
		t.dropped += src.AuditDropped()
		t.mounted += uint64(src.Mounted())
		if src.Listening() {
			t.listening++
		}
	}
	return t
}

// Render returns the current metrics. It is empty when every source has metrics
// disabled and nothing was dropped.
func (p *Exporter) Render() string {
	if p == nil || p.list == nil {
		return ""
	}
	sources := p.list()
	if len(sources) == 0 {
		return ""
	}

	t := p.collect(sources)
	if !t.enabled && t.dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.CounterDefs {
		writeSample(&b, def.Name, def.Help, "counter", t.counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(t.histograms[def.ID])
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	writeSample(&b, "connectshare_audit_dropped_total", "Dropped audit events due to dispatcher backpressure.", "counter", t.dropped)
	writeSample(&b, "connectshare_mounted_consumers", "Consumers currently mounted on the current user.", "gauge", t.mounted)
	writeSample(&b, "connectshare_auth_listeners", "Engines with a mounted auth listener.", "gauge", t.listening)

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, help, kind string, value uint64) {
	writeHeader(b, name, help, kind)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	b.WriteByte('\n')

	// Bucket counts only; the engine does not track a latency sum.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
