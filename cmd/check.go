package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/smbtrace/internal/config"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/internal/source"
	"firestige.xyz/smbtrace/internal/transcript"
)

var checkCmd = &cobra.Command{
	Use:   "check [FILE|-]",
	Short: "Check that a transcript parses",
	Long: `Read a transcript through the segment stream only, report every error
with its line number and print the totals. Exits non-zero if any error
was found.

Examples:
  smbtrace check capture.txt
  zcat capture.txt.gz | smbtrace check`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(cfg *config.GlobalConfig) {
			applyInputArgs(cfg, args)
		})
		if err != nil {
			return err
		}
		return runCheck(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

// errTranscriptInvalid marks a check that found errors.
var errTranscriptInvalid = errors.New("transcript has errors")

// checkSummary is the outcome of one check run.
type checkSummary struct {
	Segments int
	Errors   map[transcript.Stage]int
}

func (s checkSummary) errorCount() int {
	n := 0
	for _, c := range s.Errors {
		n += c
	}
	return n
}

func runCheck(ctx context.Context, cfg *config.GlobalConfig, w io.Writer) error {
	codec, err := source.ParseCodec(cfg.Input.Compression)
	if err != nil {
		return err
	}
	src, err := source.Open(cfg.Input.Path, codec)
	if err != nil {
		return err
	}
	defer src.Close()

	sum := checkTranscript(ctx, src, w)
	fmt.Fprintf(w, "segments: %d\n", sum.Segments)
	for _, stage := range []transcript.Stage{transcript.StageReadLine, transcript.StageHeader, transcript.StageBlock} {
		if n := sum.Errors[stage]; n > 0 {
			fmt.Fprintf(w, "%s errors: %d\n", stage, n)
		}
	}
	if n := sum.errorCount(); n > 0 {
		return fmt.Errorf("%w: %d error(s)", errTranscriptInvalid, n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// checkTranscript drains the stream, printing one line per error.
func checkTranscript(ctx context.Context, r io.Reader, w io.Writer) checkSummary {
	sum := checkSummary{Errors: make(map[transcript.Stage]int)}
	for _, err := range transcript.NewStream(r).Segments() {
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			sum.Segments++
			continue
		}

		var se *transcript.StreamError
		if errors.As(err, &se) {
			sum.Errors[se.Stage]++
		} else {
			sum.Errors[transcript.StageReadLine]++
		}
		log.GetLogger().WithError(err).Debug("transcript error")
		fmt.Fprintln(w, err)
	}
	return sum
}
