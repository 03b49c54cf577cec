package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goFlag "github.com/MrEthical07/goFlag"
	"github.com/MrEthical07/goFlag/metrics/export/internaldefs"
)

// MetricsSource is the engine surface the exporter reads. *goFlag.Engine
// implements it.
type MetricsSource interface {
	MetricsSnapshot() goFlag.MetricsSnapshot
	AuditDropped() uint64
	AuditDroppedByType() map[string]uint64
	StorageBackend() string
}

// PrometheusExporter renders goFlag metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from engine.
func NewPrometheusExporter(engine *goFlag.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over a custom
// [MetricsSource].
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Render.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. Output is empty while engine metrics
// are disabled and no audit event was ever dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range internaldefs.Defs {
		switch def.Kind {
		case internaldefs.KindCounter:
			writeHeader(&b, def.Name, def.Help, "counter")
			writeSample(&b, def.Name, "", "", snapshot.Counters[def.ID])
		case internaldefs.KindHistogram:
			raw, ok := snapshot.Histograms[def.ID]
			if !ok {
				continue
			}
			writeHistogram(&b, def, internaldefs.Cumulative(raw))
		}
	}

	writeHeader(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	writeSample(&b, internaldefs.AuditDroppedName, "", "", dropped)

	byType := p.source.AuditDroppedByType()
	if len(byType) > 0 {
		writeHeader(&b, internaldefs.AuditDroppedByTypeName, internaldefs.AuditDroppedByTypeHelp, "counter")
		for _, eventType := range internaldefs.SortedKeys(byType) {
			writeSample(&b, internaldefs.AuditDroppedByTypeName, internaldefs.EventTypeLabel, eventType, byType[eventType])
		}
	}

	if backend := p.source.StorageBackend(); backend != "" {
		writeHeader(&b, internaldefs.StorageBackendName, internaldefs.StorageBackendHelp, "gauge")
		writeSample(&b, internaldefs.StorageBackendName, internaldefs.StorageBackendLabel, backend, 1)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeSample(b *strings.Builder, name, label, value string, v uint64) {
	b.WriteString(name)
	if label != "" {
		b.WriteByte('{')
		b.WriteString(label)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(value))
		b.WriteString("\"}")
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, def internaldefs.Def, cumulative []uint64) {
	writeHeader(b, def.Name, def.Help, "histogram")
	bucket := def.Name + "_bucket"
	for i := range cumulative {
		writeSample(b, bucket, "le", internaldefs.BucketLabel(i), cumulative[i])
	}
	writeSample(b, def.Name+"_count", "", "", cumulative[len(cumulative)-1])
	// The engine keeps bucket counts only.
	writeSample(b, def.Name+"_sum", "", "", 0)
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	return strings.ReplaceAll(help, "\n", "\\n")
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return strings.ReplaceAll(v, "\n", "\\n")
}
