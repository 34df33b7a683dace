package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/smbtrace/internal/config"
	"firestige.xyz/smbtrace/internal/filter"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/internal/metrics"
	"firestige.xyz/smbtrace/internal/pipeline"
	"firestige.xyz/smbtrace/internal/source"
	"firestige.xyz/smbtrace/internal/transcript"
	"firestige.xyz/smbtrace/pkg/plugin"
	"firestige.xyz/smbtrace/plugins/parser/smb2"
	"firestige.xyz/smbtrace/plugins/reporter/console"
	"firestige.xyz/smbtrace/plugins/reporter/pcap"
)

var dissectCmd = &cobra.Command{
	Use:   "dissect [FILE|-]",
	Short: "Decode SMB2 headers from a tcpdump transcript",
	Long: `Decode every segment of a tcpdump -x transcript and print one record per
segment: direction, TCP state, the SMB2 header and an escaped dump of what
follows it.

Examples:
  tcpdump -nn -x -r smb.pcap | smbtrace dissect
  smbtrace dissect capture.txt.zst --format json
  smbtrace dissect capture.txt --filter "port 445" --pcap rebuilt.pcap`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(cfg *config.GlobalConfig) {
			applyInputArgs(cfg, args)
			applyDissectFlags(cmd, cfg)
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDissect(ctx, cfg, cmd.OutOrStdout())
	},
}

var dissectFlags struct {
	format      string
	color       string
	wrap        int
	filter      string
	pcap        string
	onError     string
	metricsFile string
	date        string
	compression string
}

func init() {
	f := dissectCmd.Flags()
	f.StringVar(&dissectFlags.format, "format", "text", "output format: text, json, yaml")
	f.StringVar(&dissectFlags.color, "color", "auto", "color output: auto, always, never")
	f.IntVar(&dissectFlags.wrap, "wrap", 16, "bytes per payload dump line, 0 disables wrapping")
	f.StringVar(&dissectFlags.filter, "filter", "", `segment filter, e.g. "tcp and port 445"`)
	f.StringVar(&dissectFlags.pcap, "pcap", "", "also write reported segments to this pcap file")
	f.StringVar(&dissectFlags.onError, "on-error", config.OnErrorSkip, "on a recoverable error: skip or abort")
	f.StringVar(&dissectFlags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	f.StringVar(&dissectFlags.date, "date", "", "capture date (YYYY-MM-DD) for time-of-day stamps, default today")
	f.StringVar(&dissectFlags.compression, "compression", "auto", "input compression: auto, none, gzip, zstd, lz4")
}

func applyInputArgs(cfg *config.GlobalConfig, args []string) {
	if len(args) > 0 {
		cfg.Input.Path = args[0]
	}
}

// applyDissectFlags copies the flags the user set over the loaded config.
func applyDissectFlags(cmd *cobra.Command, cfg *config.GlobalConfig) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Output.Format = dissectFlags.format
	}
	if changed("color") {
		cfg.Output.Color = dissectFlags.color
	}
	if changed("wrap") {
		cfg.Output.Wrap = dissectFlags.wrap
	}
	if changed("filter") {
		cfg.Decode.Filter = dissectFlags.filter
	}
	if changed("pcap") {
		cfg.Output.Pcap = dissectFlags.pcap
	}
	if changed("on-error") {
		cfg.Decode.OnError = dissectFlags.onError
	}
	if changed("metrics-file") {
		cfg.Metrics.Textfile = dissectFlags.metricsFile
	}
	if changed("date") {
		cfg.Input.Date = dissectFlags.date
	}
	if changed("compression") {
		cfg.Input.Compression = dissectFlags.compression
	}
}

// runDissect wires the source, filter, parser and reporters from cfg and
// runs the pipeline, writing text output to stdout.
func runDissect(ctx context.Context, cfg *config.GlobalConfig, stdout io.Writer) error {
	codec, err := source.ParseCodec(cfg.Input.Compression)
	if err != nil {
		return err
	}
	src, err := source.Open(cfg.Input.Path, codec)
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := filter.Compile(cfg.Decode.Filter)
	if err != nil {
		return err
	}

	var baseDate time.Time
	if cfg.Input.Date != "" {
		if baseDate, err = time.ParseInLocation(time.DateOnly, cfg.Input.Date, time.Local); err != nil {
			return fmt.Errorf("invalid input date: %w", err)
		}
	}

	parser, err := newParser(smb2.Name, map[string]any{
		"strict": cfg.Decode.SMBStrict,
		"ports":  cfg.Decode.SMBPorts,
	})
	if err != nil {
		return err
	}

	out, err := newReporter(console.Name, map[string]any{
		"format": cfg.Output.Format,
		"color":  cfg.Output.Color,
		"wrap":   cfg.Output.Wrap,
	})
	if err != nil {
		return err
	}
	if w, ok := out.(interface{ SetOutput(io.Writer) }); ok {
		w.SetOutput(stdout)
	}
	reporters := []plugin.Reporter{out}

	if cfg.Output.Pcap != "" {
		r, err := newReporter(pcap.Name, map[string]any{"path": cfg.Output.Pcap})
		if err != nil {
			return err
		}
		reporters = append(reporters, r)
	}

	m := metrics.New()
	p := pipeline.NewBuilder().
		WithSource(transcript.NewStream(src)).
		WithFilter(f).
		WithParsers(parser).
		WithReporters(reporters...).
		WithOnError(cfg.Decode.OnError).
		WithBaseDate(baseDate).
		WithMetrics(m).
		Build()

	log.GetLogger().WithFields(map[string]interface{}{
		"run_id": p.RunID(),
		"input":  src.Name,
		"codec":  string(src.Codec),
		"filter": f.String(),
	}).Info("dissecting transcript")

	runErr := p.Run(ctx)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.GetLogger().WithError(err).Error("failed to write metrics")
		}
	}
	return runErr
}

func newParser(name string, opts map[string]any) (plugin.Parser, error) {
	factory, err := plugin.GetParserFactory(name)
	if err != nil {
		return nil, err
	}
	p := factory()
	if err := p.Init(opts); err != nil {
		return nil, err
	}
	return p, nil
}

func newReporter(name string, opts map[string]any) (plugin.Reporter, error) {
	factory, err := plugin.GetReporterFactory(name)
	if err != nil {
		return nil, err
	}
	r := factory()
	if err := r.Init(opts); err != nil {
		return nil, err
	}
	return r, nil
}
