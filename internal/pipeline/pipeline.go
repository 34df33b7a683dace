// Package pipeline drives one dissection run: transcript stream, filter,
// header summary, application parsers and reporters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/smbtrace/internal/config"
	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/core/decoder"
	"firestige.xyz/smbtrace/internal/filter"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/internal/metrics"
	"firestige.xyz/smbtrace/internal/prettify"
	"firestige.xyz/smbtrace/internal/transcript"
	"firestige.xyz/smbtrace/pkg/plugin"
)

// SegmentSource yields captured segments until io.EOF. *transcript.Stream
// is the production implementation.
type SegmentSource interface {
	Next() (core.CapturedSegment, error)
}

// Config contains pipeline configuration.
type Config struct {
	RunID     string // generated when empty
	Source    SegmentSource
	Filter    *filter.Filter // nil matches everything
	Decoder   decoder.Decoder
	Parsers   []plugin.Parser
	Reporters []plugin.Reporter
	OnError   string    // config.OnErrorSkip or config.OnErrorAbort
	BaseDate  time.Time // date applied to time-of-day stamps, today when zero
	Metrics   *metrics.Metrics
	Logger    log.Logger
}

// Pipeline processes one transcript on the calling goroutine.
type Pipeline struct {
	runID     string
	source    SegmentSource
	filter    *filter.Filter
	decoder   decoder.Decoder
	parsers   []plugin.Parser
	reporters []plugin.Reporter
	abort     bool
	baseDate  time.Time
	metrics   *metrics.Metrics
	stats     *counters
	logger    log.Logger

	dynamic *prettify.Dynamic
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decoder.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger()
	}
	if cfg.BaseDate.IsZero() {
		cfg.BaseDate = time.Now()
	}

	return &Pipeline{
		runID:     cfg.RunID,
		source:    cfg.Source,
		filter:    cfg.Filter,
		decoder:   cfg.Decoder,
		parsers:   cfg.Parsers,
		reporters: cfg.Reporters,
		abort:     cfg.OnError == config.OnErrorAbort,
		baseDate:  cfg.BaseDate,
		metrics:   cfg.Metrics,
		stats:     &counters{},
		logger:    cfg.Logger.WithField("run_id", cfg.RunID),
	}
}

// RunID returns the identifier stamped on every record of this run.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run reads the source to the end. It returns nil on a clean end of input,
// the stream error when the stream cannot continue, ctx.Err() when
// cancelled, and an error wrapping core.ErrPipelineAbort when the abort
// policy stops on a recoverable failure. Reporters are flushed in every case.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if err := p.start(ctx); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, p.stop(ctx))
	}()

	p.logger.Debug("pipeline starting")
	for index := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}

		seg, err := p.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if err := p.streamFailed(err); err != nil {
				return err
			}
			continue
		}

		p.stats.segments.Add(1)
		p.metrics.SegmentsTotal.Inc()
		if err := p.processSegment(ctx, index, seg); err != nil {
			return err
		}
		index++
	}

	s := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"segments": s.Segments,
		"reported": s.Reported,
		"errors":   s.Errors(),
	}).Info("transcript processed")
	return nil
}

// streamFailed applies the error policy to a stream error. A nil return
// means the stream resumes.
func (p *Pipeline) streamFailed(err error) error {
	p.stats.streamErrors.Add(1)

	var se *transcript.StreamError
	if !errors.As(err, &se) {
		p.metrics.ErrorsTotal.WithLabelValues("stream").Inc()
		return err
	}
	p.metrics.ErrorsTotal.WithLabelValues(se.Stage.String()).Inc()

	if !se.Resumable() {
		return err
	}
	if p.abort {
		return fmt.Errorf("%w: %w", core.ErrPipelineAbort, err)
	}
	p.logger.WithError(err).WithField("line", se.Line).Warn("skipping segment")
	return nil
}

// processSegment builds the output record for one segment and hands it to
// every reporter.
func (p *Pipeline) processSegment(ctx context.Context, index int, seg core.CapturedSegment) error {
	// The first segment read fixes the client/server pair, filtered or not.
	if p.dynamic == nil {
		d := prettify.NewDynamic(seg.Record.Src.Addr(), seg.Record.Dst.Addr())
		p.dynamic = &d
	}

	ok, err := p.filter.Match(&seg)
	if err != nil {
		return p.recoverable("filter", index, err)
	}
	if !ok {
		p.stats.filtered.Add(1)
		p.metrics.FilteredTotal.Inc()
		return nil
	}

	// The summary is informational: a segment the transcript split accepted
	// is parsed and reported even when it cannot be described.
	ip, transport, describeErr := p.decoder.Describe(seg.Block)
	if describeErr != nil {
		ip, transport = core.IPHeader{}, core.TransportHeader{}
		p.stats.describeErrors.Add(1)
		p.metrics.ErrorsTotal.WithLabelValues("describe").Inc()
		p.logger.WithError(describeErr).WithField("segment", index).Debug("header summary failed")
	}
	if decoder.IsFragment(seg.Block) {
		p.stats.fragments.Add(1)
		p.metrics.FragmentsTotal.Inc()
	}

	out := &core.OutputRecord{
		RunID:     p.runID,
		Index:     index,
		Direction: p.dynamic.Direction(seg.Record.Src.Addr(), seg.Record.Dst.Addr()).String(),
		Timestamp: p.timestamp(seg.Record.Time),
		SrcIP:     seg.Record.Src.Addr(),
		DstIP:     seg.Record.Dst.Addr(),
		SrcPort:   seg.Record.Src.Port(),
		DstPort:   seg.Record.Dst.Port(),
		IP:        ip,
		Transport: transport,
		Segment:   seg,
	}
	p.parse(out)
	if describeErr != nil {
		out.Labels[core.LabelDescribeError] = describeErr.Error()
	}

	if len(seg.Block.Payload) > 0 {
		p.metrics.PayloadBytes.Observe(float64(len(seg.Block.Payload)))
	}
	p.report(ctx, out)

	if out.ParseError != nil && p.abort {
		return fmt.Errorf("%w: segment %d: %w", core.ErrPipelineAbort, index, out.ParseError)
	}
	return nil
}

// parse runs the first parser that claims the segment. A claimed payload
// that fails to decode keeps the parser's payload type and carries the
// error, so reporters can show the raw bytes next to it.
func (p *Pipeline) parse(out *core.OutputRecord) {
	seg := &out.Segment
	out.Labels = core.Labels{core.LabelTCPFlags: seg.Record.Flags.String()}

	if len(seg.Block.Payload) == 0 {
		out.PayloadType = core.PayloadTypeNone
		p.metrics.MessagesTotal.WithLabelValues(out.PayloadType).Inc()
		return
	}

	for _, parser := range p.parsers {
		if !parser.CanHandle(seg) {
			continue
		}
		out.PayloadType = parser.Name()
		payload, labels, err := parser.Handle(seg)
		if err != nil {
			p.stats.parseErrors.Add(1)
			p.metrics.ErrorsTotal.WithLabelValues("parse").Inc()
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"parser":  parser.Name(),
				"segment": out.Index,
			}).Debug("parser failed")
			out.Payload = seg.Block.Payload
			out.ParseError = err
			return
		}

		p.stats.parsed.Add(1)
		p.metrics.MessagesTotal.WithLabelValues(out.PayloadType).Inc()
		if cmd, ok := labels[core.LabelSMB2Command]; ok {
			p.metrics.SMB2CommandsTotal.WithLabelValues(cmd, out.Direction).Inc()
		}
		for k, v := range labels {
			out.Labels[k] = v
		}
		out.Payload = payload
		return
	}

	out.PayloadType = core.PayloadTypeRaw
	out.Payload = seg.Block.Payload
	p.metrics.MessagesTotal.WithLabelValues(out.PayloadType).Inc()
}

func (p *Pipeline) report(ctx context.Context, out *core.OutputRecord) {
	for _, reporter := range p.reporters {
		if err := reporter.Report(ctx, out); err != nil {
			p.stats.reportErrors.Add(1)
			p.metrics.ReporterErrorsTotal.WithLabelValues(reporter.Name()).Inc()
			p.logger.WithError(err).WithField("reporter", reporter.Name()).Error("reporter failed")
		}
	}
	p.stats.reported.Add(1)
}

// recoverable applies the error policy to a per-segment failure.
func (p *Pipeline) recoverable(stage string, index int, err error) error {
	p.stats.describeErrors.Add(1)
	p.metrics.ErrorsTotal.WithLabelValues(stage).Inc()
	if p.abort {
		return fmt.Errorf("%w: segment %d: %s: %w", core.ErrPipelineAbort, index, stage, err)
	}
	p.logger.WithError(err).WithFields(map[string]interface{}{
		"stage":   stage,
		"segment": index,
	}).Warn("skipping segment")
	return nil
}

// timestamp places a time-of-day stamp on the run's base date.
func (p *Pipeline) timestamp(tod time.Time) time.Time {
	d := p.baseDate
	return time.Date(d.Year(), d.Month(), d.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), tod.Nanosecond(), d.Location())
}

// start starts parsers then reporters. When one fails, the plugins already
// started are stopped before the error is returned.
func (p *Pipeline) start(ctx context.Context) error {
	for i, parser := range p.parsers {
		if err := parser.Start(ctx); err != nil {
			err = fmt.Errorf("start parser %s: %w", parser.Name(), err)
			return errors.Join(err, p.stopPlugins(ctx, nil, p.parsers[:i]))
		}
	}
	for i, reporter := range p.reporters {
		if err := reporter.Start(ctx); err != nil {
			err = fmt.Errorf("start reporter %s: %w", reporter.Name(), err)
			return errors.Join(err, p.stopPlugins(ctx, p.reporters[:i], p.parsers))
		}
	}
	return nil
}

// stop flushes and stops every plugin. It runs with a fresh context so a
// cancelled run still flushes what it reported.
func (p *Pipeline) stop(ctx context.Context) error {
	err := p.stopPlugins(ctx, p.reporters, p.parsers)
	p.logger.Debug("pipeline stopped")
	return err
}

func (p *Pipeline) stopPlugins(ctx context.Context, reporters []plugin.Reporter, parsers []plugin.Parser) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, reporter := range reporters {
		if err := reporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush reporter %s: %w", reporter.Name(), err))
		}
		if err := reporter.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop reporter %s: %w", reporter.Name(), err))
		}
	}
	for _, parser := range parsers {
		if err := parser.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop parser %s: %w", parser.Name(), err))
		}
	}
	return errors.Join(errs...)
}
