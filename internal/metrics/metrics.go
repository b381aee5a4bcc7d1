// Package metrics holds the Prometheus collectors for lint runs.
package metrics

import (
	"bytes"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Registry holds all lint metrics. A nil *Registry records nothing.
type Registry struct {
	FilesScanned  *prometheus.CounterVec
	ParseFailures *prometheus.CounterVec
	ImportEdges   *prometheus.CounterVec
	ScanDuration  prometheus.Histogram
	Runs          *prometheus.CounterVec

	registry *prometheus.Registry
}

// Import edge verdicts.
const (
	VerdictExternal  = "external"
	VerdictSameLayer = "same_layer"
	VerdictAllowed   = "allowed"
	VerdictViolation = "violation"
	VerdictWarning   = "warning"
)

// NewRegistry creates a registry with all collectors registered on a
// private Prometheus registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.FilesScanned = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "layerlint_files_scanned_total",
			Help: "Source files checked, by layer",
		},
		[]string{"layer"},
	)

	r.ParseFailures = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "layerlint_parse_failures_total",
			Help: "Source files that yielded no imports because they could not be read or parsed",
		},
		[]string{"reason"},
	)

	r.ImportEdges = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "layerlint_import_edges_total",
			Help: "Import statements evaluated against the policy, by verdict",
		},
		[]string{"verdict"},
	)

	r.ScanDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layerlint_scan_duration_seconds",
			Help:    "Wall time of a full check",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	r.Runs = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "layerlint_runs_total",
			Help: "Completed checks, by outcome",
		},
		[]string{"outcome"},
	)

	return r
}

// RecordFile counts a checked file.
func (r *Registry) RecordFile(layer string) {
	if r == nil {
		return
	}
	r.FilesScanned.WithLabelValues(layer).Inc()
}

// RecordParseFailure counts a file that could not be read or parsed.
func (r *Registry) RecordParseFailure(reason string) {
	if r == nil {
		return
	}
	r.ParseFailures.WithLabelValues(reason).Inc()
}

// RecordEdge counts one evaluated import.
func (r *Registry) RecordEdge(verdict string) {
	if r == nil {
		return
	}
	r.ImportEdges.WithLabelValues(verdict).Inc()
}

// RecordRun records a finished check.
func (r *Registry) RecordRun(violations int, duration time.Duration) {
	if r == nil {
		return
	}
	outcome := "passed"
	if violations > 0 {
		outcome = "failed"
	}
	r.Runs.WithLabelValues(outcome).Inc()
	r.ScanDuration.Observe(duration.Seconds())
}

// Text renders every collector in the Prometheus text exposition format.
func (r *Registry) Text() (string, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
