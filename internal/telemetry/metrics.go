// Package telemetry exports evaluation counters in Prometheus format.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trajeval"

// Metrics holds the collectors for one evaluation process.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	alignments         prometheus.Counter
	alignmentScore     prometheus.Histogram
	similarityLookups  *prometheus.CounterVec
	embeddingFailures  prometheus.Counter
	verdicts           *prometheus.CounterVec
	pagerankFailures   prometheus.Counter
	importanceRebuilds prometheus.Counter
	taskDuration       prometheus.Histogram
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		alignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alignments_total",
			Help:      "Trajectory alignments computed.",
		}),
		alignmentScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alignment_similarity",
			Help:      "Distribution of alignment similarity scores.",
			Buckets:   []float64{-0.5, 0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		similarityLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "similarity_lookups_total",
			Help:      "Similarity cache lookups by result.",
		}, []string{"result"}),
		embeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Embedding oracle calls that returned an error.",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Pairwise judge outcomes by verdict.",
		}, []string{"verdict"}),
		pagerankFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pagerank_failures_total",
			Help:      "Importance builds where PageRank did not converge.",
		}),
		importanceRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "importance_rebuilds_total",
			Help:      "Importance tables rebuilt from the corpus.",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Wall time spent evaluating one task.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.alignments, m.alignmentScore, m.similarityLookups, m.embeddingFailures,
		m.verdicts, m.pagerankFailures, m.importanceRebuilds, m.taskDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// MustNewMetrics is like NewMetrics but panics on registration failure.
func MustNewMetrics() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordAlignment counts one alignment and its score.
func (m *Metrics) RecordAlignment(score float64) {
	if m == nil {
		return
	}
	m.alignments.Inc()
	m.alignmentScore.Observe(score)
}

// RecordSimilarityLookup counts a cache lookup; result is "hit", "miss" or "self".
func (m *Metrics) RecordSimilarityLookup(result string) {
	if m == nil {
		return
	}
	m.similarityLookups.WithLabelValues(result).Inc()
}

// RecordEmbeddingFailure counts a failed embedding call.
func (m *Metrics) RecordEmbeddingFailure() {
	if m == nil {
		return
	}
	m.embeddingFailures.Inc()
}

// RecordVerdict counts a judge outcome; invalid or failed calls use "skipped".
func (m *Metrics) RecordVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

// RecordPageRankFailure counts a non-converged PageRank run.
func (m *Metrics) RecordPageRankFailure() {
	if m == nil {
		return
	}
	m.pagerankFailures.Inc()
}

// RecordImportanceRebuild counts a table rebuild.
func (m *Metrics) RecordImportanceRebuild() {
	if m == nil {
		return
	}
	m.importanceRebuilds.Inc()
}

// RecordTask observes how long one task evaluation took.
func (m *Metrics) RecordTask(d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.Observe(d.Seconds())
}

// WriteTextfile writes the registry in node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
