// Package metrics implements Prometheus metrics for a dissection run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smbtrace"

// Metrics holds the counters of one run. Each run owns a private registry
// so repeated runs in one process (tests, check + dissect) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// SegmentsTotal counts segments produced by the transcript stream
	SegmentsTotal prometheus.Counter

	// FilteredTotal counts segments rejected by the BPF filter
	FilteredTotal prometheus.Counter

	// FragmentsTotal counts segments whose IPv4 header marks a fragment
	FragmentsTotal prometheus.Counter

	// ErrorsTotal counts failures by stage (read-line, header, byte-block,
	// describe, parse, filter)
	ErrorsTotal *prometheus.CounterVec

	// MessagesTotal counts reported records by payload type
	MessagesTotal *prometheus.CounterVec

	// SMB2CommandsTotal counts decoded SMB2 headers by command and direction
	SMB2CommandsTotal *prometheus.CounterVec

	// PayloadBytes tracks application payload sizes
	PayloadBytes prometheus.Histogram

	// ReporterErrorsTotal counts reporter failures by reporter name
	ReporterErrorsTotal *prometheus.CounterVec
}

// New registers a fresh set of collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SegmentsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Total number of segments read from the transcript",
		}),
		FilteredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_segments_total",
			Help:      "Total number of segments rejected by the filter",
		}),
		FragmentsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_fragments_total",
			Help:      "Total number of IPv4 fragments seen (not reassembled)",
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of decoding errors",
		}, []string{"stage"}),
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of records reported",
		}, []string{"payload_type"}),
		SMB2CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "smb2_commands_total",
			Help:      "Total number of SMB2 headers decoded",
		}, []string{"command", "direction"}),
		PayloadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Size of application payloads in bytes",
			Buckets:   prometheus.ExponentialBuckets(16, 2, 12), // 16 B to 32 KiB
		}),
		ReporterErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reporter_errors_total",
			Help:      "Total number of reporter errors",
		}, []string{"reporter"}),
	}
}

// Registry exposes the private registry, for gathering in tests and tools.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
