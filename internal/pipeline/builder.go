package pipeline

import (
	"time"

	"firestige.xyz/smbtrace/internal/core/decoder"
	"firestige.xyz/smbtrace/internal/filter"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/internal/metrics"
	"firestige.xyz/smbtrace/pkg/plugin"
)

// Builder provides a fluent interface for building pipelines.
// This is an alternative to using Config directly.
type Builder struct {
	config Config
}

// NewBuilder creates a new pipeline builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithRunID sets the run ID.
func (b *Builder) WithRunID(id string) *Builder {
	b.config.RunID = id
	return b
}

// WithSource sets the segment source.
func (b *Builder) WithSource(s SegmentSource) *Builder {
	b.config.Source = s
	return b
}

// WithFilter sets the segment filter.
func (b *Builder) WithFilter(f *filter.Filter) *Builder {
	b.config.Filter = f
	return b
}

// WithDecoder sets the header summary decoder.
func (b *Builder) WithDecoder(d decoder.Decoder) *Builder {
	b.config.Decoder = d
	return b
}

// WithParsers sets the parser chain.
func (b *Builder) WithParsers(parsers ...plugin.Parser) *Builder {
	b.config.Parsers = parsers
	return b
}

// WithReporters sets the reporter chain.
func (b *Builder) WithReporters(reporters ...plugin.Reporter) *Builder {
	b.config.Reporters = reporters
	return b
}

// WithOnError sets the error policy.
func (b *Builder) WithOnError(policy string) *Builder {
	b.config.OnError = policy
	return b
}

// WithBaseDate sets the date applied to time-of-day stamps.
func (b *Builder) WithBaseDate(d time.Time) *Builder {
	b.config.BaseDate = d
	return b
}

// WithMetrics sets the metrics sink.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.config.Metrics = m
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() *Pipeline {
	return New(b.config)
}
