package observability

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// PrometheusExporter serves the registry in Prometheus text exposition
// format.
type PrometheusExporter struct {
	registry *Registry
}

// NewPrometheusExporter creates an exporter backed by the given registry.
func NewPrometheusExporter(registry *Registry) *PrometheusExporter {
	return &PrometheusExporter{registry: registry}
}

// ServeHTTP implements http.Handler for the /metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(e.Format()))
}

// Format returns all metrics in Prometheus text exposition format.
func (e *PrometheusExporter) Format() string {
	entries := e.registry.AllMetrics()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var b strings.Builder
	for _, m := range entries {
		b.WriteString(fmt.Sprintf("# HELP %s %s\n", m.Name, m.Help))
		b.WriteString(fmt.Sprintf("# TYPE %s %s\n", m.Name, m.Type))
		b.WriteString(m.Name)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(m.Value, 'f', -1, 64))
		b.WriteString("\n\n")
	}
	return b.String()
}
