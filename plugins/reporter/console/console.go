// Package console implements the console reporter.
// Outputs one record per segment to stdout, as text, JSON lines or YAML
// documents.
package console

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/internal/prettify"
	"firestige.xyz/smbtrace/pkg/plugin"
	"firestige.xyz/smbtrace/plugins/parser/smb2"
)

// Name is the reporter name.
const Name = "console"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const defaultWrap = 16

const (
	styleNoMessage  = "\x1b[37;3;4m"
	styleParseError = "\x1b[31;1;3;4m"
	styleReset      = "\x1b[0m"
)

func init() {
	plugin.RegisterReporter(Name, NewConsoleReporter)
}

// Options configures the console reporter.
type Options struct {
	Format string `mapstructure:"format"` // text, json or yaml, default text
	Color  string `mapstructure:"color"`  // auto, always or never, default auto
	Wrap   *int   `mapstructure:"wrap"`   // bytes per dump line, 0 disables wrapping
}

// ConsoleReporter writes records to a stream.
type ConsoleReporter struct {
	name      string
	format    string
	colorMode prettify.ColorMode
	color     bool
	wrap      int

	out           io.Writer
	buf           *bufio.Writer
	reportedCount atomic.Uint64
}

// NewConsoleReporter creates a console reporter writing to stdout.
func NewConsoleReporter() plugin.Reporter {
	return &ConsoleReporter{
		name:      Name,
		format:    FormatText,
		colorMode: prettify.ColorAuto,
		wrap:      defaultWrap,
		out:       os.Stdout,
	}
}

// SetOutput redirects the reporter. Call before Start.
func (r *ConsoleReporter) SetOutput(w io.Writer) {
	r.out = w
}

// Name returns the plugin name.
func (r *ConsoleReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *ConsoleReporter) Init(cfg map[string]any) error {
	if cfg == nil {
		return nil
	}

	var opts Options
	if err := mapstructure.WeakDecode(cfg, &opts); err != nil {
		return fmt.Errorf("%w: console: %w", core.ErrPluginInitFailed, err)
	}

	switch f := strings.ToLower(opts.Format); f {
	case "":
	case FormatText, FormatJSON, FormatYAML:
		r.format = f
	default:
		return fmt.Errorf("%w: console: invalid format %q, must be text, json or yaml", core.ErrPluginInitFailed, opts.Format)
	}

	mode, err := prettify.ParseColorMode(strings.ToLower(opts.Color))
	if err != nil {
		return fmt.Errorf("%w: console: %w", core.ErrPluginInitFailed, err)
	}
	r.colorMode = mode

	if opts.Wrap != nil {
		if *opts.Wrap < 0 {
			return fmt.Errorf("%w: console: wrap must not be negative", core.ErrPluginInitFailed)
		}
		r.wrap = *opts.Wrap
	}
	return nil
}

// Start resolves the color mode against the output and starts buffering.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.color = r.format == FormatText && r.colorMode.Enabled(r.out)
	r.buf = bufio.NewWriter(r.out)
	log.GetLogger().WithFields(map[string]interface{}{
		"format": r.format,
		"color":  r.color,
	}).Debug("console reporter started")
	return nil
}

// Stop flushes what is left.
func (r *ConsoleReporter) Stop(ctx context.Context) error {
	log.GetLogger().WithField("total_reported", r.reportedCount.Load()).Debug("console reporter stopped")
	return r.Flush(ctx)
}

// Flush writes buffered output.
func (r *ConsoleReporter) Flush(ctx context.Context) error {
	if r.buf == nil {
		return nil
	}
	return r.buf.Flush()
}

// Report outputs a record.
func (r *ConsoleReporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("console: nil record")
	}
	if r.buf == nil {
		r.buf = bufio.NewWriter(r.out)
	}

	r.reportedCount.Add(1)

	switch r.format {
	case FormatJSON:
		return r.reportJSON(rec)
	case FormatYAML:
		return r.reportYAML(rec)
	default:
		return r.reportText(rec)
	}
}

// reportText prints the record line followed by the decoded header and
// an escaped dump of the bytes behind it.
func (r *ConsoleReporter) reportText(rec *core.OutputRecord) error {
	seg := &rec.Segment
	dir, ok := prettify.ParseDirection(rec.Direction)
	dirText := rec.Direction
	if ok {
		dirText = dir.Format(r.color)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d (%s %d) [seq %s, ack %s, win %d, %s]: ",
		rec.Index, dirText, len(seg.Block.Payload),
		optional(seg.Record.Seq), optional(seg.Record.Ack),
		seg.Record.Win, seg.Record.Flags)

	switch {
	case rec.ParseError != nil:
		sb.WriteString(r.style(styleParseError, "smb msg parse error: "+rec.ParseError.Error()))
		sb.WriteString(prettify.Bytes(seg.Block.Payload, r.wrap, r.color))
	case rec.PayloadType == core.PayloadTypeNone:
		sb.WriteString(r.style(styleNoMessage, "no smb message"))
	default:
		switch p := rec.Payload.(type) {
		case *smb2.Message:
			sb.WriteString("\n ")
			sb.WriteString(p.Header.String())
			sb.WriteString(prettify.Bytes(p.Payload, r.wrap, r.color))
		default:
			sb.WriteString(r.style(styleNoMessage, rec.PayloadType+" payload"))
			sb.WriteString(prettify.Bytes(seg.Block.Payload, r.wrap, r.color))
		}
	}
	sb.WriteByte('\n')

	_, err := r.buf.WriteString(sb.String())
	return err
}

func (r *ConsoleReporter) style(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + styleReset
}

func optional(v *uint32) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

// reportJSON outputs one record per line.
func (r *ConsoleReporter) reportJSON(rec *core.OutputRecord) error {
	data, err := json.Marshal(newRecordView(rec))
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	data = append(data, '\n')
	_, err = r.buf.Write(data)
	return err
}

// reportYAML outputs one document per record.
func (r *ConsoleReporter) reportYAML(rec *core.OutputRecord) error {
	data, err := yaml.Marshal(newRecordView(rec))
	if err != nil {
		return fmt.Errorf("yaml marshal failed: %w", err)
	}
	if _, err := r.buf.WriteString("---\n"); err != nil {
		return err
	}
	_, err = r.buf.Write(data)
	return err
}

// recordView is the serialised form shared by JSON and YAML.
type recordView struct {
	RunID       string      `json:"run_id" yaml:"run_id"`
	Index       int         `json:"index" yaml:"index"`
	Timestamp   string      `json:"timestamp" yaml:"timestamp"`
	Direction   string      `json:"direction" yaml:"direction"`
	Src         string      `json:"src" yaml:"src"`
	Dst         string      `json:"dst" yaml:"dst"`
	Flags       string      `json:"flags" yaml:"flags"`
	Seq         *uint32     `json:"seq,omitempty" yaml:"seq,omitempty"`
	Ack         *uint32     `json:"ack,omitempty" yaml:"ack,omitempty"`
	Win         uint16      `json:"win" yaml:"win"`
	Options     *string     `json:"options,omitempty" yaml:"options,omitempty"`
	Length      string      `json:"length" yaml:"length"`
	TTL         uint8       `json:"ttl" yaml:"ttl"`
	PayloadType string      `json:"payload_type" yaml:"payload_type"`
	PayloadLen  int         `json:"payload_len" yaml:"payload_len"`
	Labels      core.Labels `json:"labels,omitempty" yaml:"labels,omitempty"`
	SMB2        *smb2View   `json:"smb2,omitempty" yaml:"smb2,omitempty"`
	PayloadHex  string      `json:"payload_hex,omitempty" yaml:"payload_hex,omitempty"`
	ParseError  string      `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
}

type smb2View struct {
	Command      string `json:"command" yaml:"command"`
	Status       string `json:"status" yaml:"status"`
	Flags        string `json:"flags" yaml:"flags"`
	CreditCharge uint16 `json:"credit_charge" yaml:"credit_charge"`
	Credits      uint16 `json:"credits" yaml:"credits"`
	MessageID    uint64 `json:"message_id" yaml:"message_id"`
	ProcessID    uint32 `json:"process_id" yaml:"process_id"`
	TreeID       uint32 `json:"tree_id" yaml:"tree_id"`
	SessionID    string `json:"session_id" yaml:"session_id"`
	ChainOffset  uint32 `json:"chain_offset" yaml:"chain_offset"`
	Signature    string `json:"signature" yaml:"signature"`
	BodyLen      int    `json:"body_len" yaml:"body_len"`
}

func newRecordView(rec *core.OutputRecord) recordView {
	seg := &rec.Segment
	v := recordView{
		RunID:       rec.RunID,
		Index:       rec.Index,
		Timestamp:   rec.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
		Direction:   rec.Direction,
		Src:         seg.Record.Src.String(),
		Dst:         seg.Record.Dst.String(),
		Flags:       seg.Record.Flags.String(),
		Seq:         seg.Record.Seq,
		Ack:         seg.Record.Ack,
		Win:         seg.Record.Win,
		Options:     seg.Record.Options,
		Length:      seg.Record.Length.String(),
		TTL:         rec.IP.TTL,
		PayloadType: rec.PayloadType,
		PayloadLen:  len(seg.Block.Payload),
		Labels:      rec.Labels,
	}
	if rec.ParseError != nil {
		v.ParseError = rec.ParseError.Error()
	}

	if m, ok := rec.Payload.(*smb2.Message); ok && rec.ParseError == nil {
		h := m.Header
		v.SMB2 = &smb2View{
			Command:      h.Command.String(),
			Status:       fmt.Sprintf("0x%08x", h.Status),
			Flags:        h.Flags.String(),
			CreditCharge: h.CreditCharge,
			Credits:      h.CreditReqResp,
			MessageID:    h.MessageID,
			ProcessID:    h.ProcessID,
			TreeID:       h.TreeID,
			SessionID:    fmt.Sprintf("0x%016x", h.SessionID),
			ChainOffset:  h.ChainOffset,
			Signature:    hex.EncodeToString(h.Signature.AppendLE(nil)),
			BodyLen:      len(m.Payload),
		}
	} else if len(seg.Block.Payload) > 0 {
		v.PayloadHex = hex.EncodeToString(seg.Block.Payload)
	}
	return v
}
