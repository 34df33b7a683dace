package pipeline

import (
	"sync/atomic"
)

// counters are the per-run tallies behind Stats. Atomic so Stats can be
// read from a signal handler while Run is going.
type counters struct {
	segments       atomic.Uint64
	filtered       atomic.Uint64
	fragments      atomic.Uint64
	streamErrors   atomic.Uint64
	describeErrors atomic.Uint64
	parsed         atomic.Uint64
	parseErrors    atomic.Uint64
	reported       atomic.Uint64
	reportErrors   atomic.Uint64
}

// Stats represents pipeline statistics.
type Stats struct {
	Segments       uint64 // segments read from the stream
	Filtered       uint64 // rejected by the filter
	Fragments      uint64
	StreamErrors   uint64 // read, header and byte-block failures
	DescribeErrors uint64 // filter and header-summary failures
	Parsed         uint64
	ParseErrors    uint64
	Reported       uint64
	ReportErrors   uint64
}

// Errors sums every failure kind.
func (s Stats) Errors() uint64 {
	return s.StreamErrors + s.DescribeErrors + s.ParseErrors + s.ReportErrors
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Segments:       p.stats.segments.Load(),
		Filtered:       p.stats.filtered.Load(),
		Fragments:      p.stats.fragments.Load(),
		StreamErrors:   p.stats.streamErrors.Load(),
		DescribeErrors: p.stats.describeErrors.Load(),
		Parsed:         p.stats.parsed.Load(),
		ParseErrors:    p.stats.parseErrors.Load(),
		Reported:       p.stats.reported.Load(),
		ReportErrors:   p.stats.reportErrors.Load(),
	}
}
