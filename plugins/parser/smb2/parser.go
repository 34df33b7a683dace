package smb2

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/pkg/plugin"
)

// Name is the parser and payload type name.
const Name = "smb2"

var defaultPorts = []uint16{445, 139}

func init() {
	plugin.RegisterParser(Name, NewParser)
}

// Options configures the parser plugin.
type Options struct {
	// Strict limits claiming to Ports and to payloads carrying an SMB magic
	// right after the session prefix. Otherwise every payload is decoded.
	Strict bool `mapstructure:"strict"`
	// Ports claimed regardless of content in strict mode.
	Ports []uint16 `mapstructure:"ports"`
}

// Parser is the SMB2 parser plugin.
type Parser struct {
	name   string
	strict bool
	ports  []uint16
}

// NewParser creates an SMB2 parser with the default ports.
func NewParser() plugin.Parser {
	return &Parser{name: Name, ports: slices.Clone(defaultPorts)}
}

// Name returns the plugin name.
func (p *Parser) Name() string {
	return p.name
}

// Init decodes Options from cfg.
func (p *Parser) Init(cfg map[string]any) error {
	var opts Options
	if err := mapstructure.WeakDecode(cfg, &opts); err != nil {
		return fmt.Errorf("%w: smb2: %w", core.ErrPluginInitFailed, err)
	}
	if len(opts.Ports) > 0 {
		p.ports = opts.Ports
	}
	p.strict = opts.Strict
	return nil
}

// Start starts the parser.
func (p *Parser) Start(ctx context.Context) error {
	return nil
}

// Stop stops the parser.
func (p *Parser) Stop(ctx context.Context) error {
	return nil
}

// CanHandle claims every segment with a payload, so a payload that is not
// SMB2 surfaces as a decode error. In strict mode only segments on a
// configured port, or whose payload carries an SMB magic after the session
// prefix, are claimed.
func (p *Parser) CanHandle(seg *core.CapturedSegment) bool {
	payload := seg.Block.Payload
	if len(payload) == 0 {
		return false
	}
	if !p.strict {
		return true
	}
	if slices.Contains(p.ports, seg.Record.Src.Port()) || slices.Contains(p.ports, seg.Record.Dst.Port()) {
		return true
	}

	if len(payload) < EnvelopeLen+len(MagicSMB2) {
		return false
	}
	magic := payload[EnvelopeLen : EnvelopeLen+len(MagicSMB2)]
	return bytes.Equal(magic, MagicSMB2[:]) || bytes.Equal(magic, MagicSMB1[:])
}

// Handle decodes the payload into a *Message and labels its key fields.
func (p *Parser) Handle(seg *core.CapturedSegment) (any, core.Labels, error) {
	msg, err := Decode(seg.Block.Payload)
	if err != nil {
		return nil, nil, err
	}
	return &msg, Labels(msg.Header), nil
}

// Labels summarises h as output labels.
func Labels(h Header) core.Labels {
	return core.Labels{
		core.LabelSMB2Command:   h.Command.String(),
		core.LabelSMB2Status:    fmt.Sprintf("0x%08x", h.Status),
		core.LabelSMB2MessageID: strconv.FormatUint(h.MessageID, 10),
		core.LabelSMB2SessionID: fmt.Sprintf("0x%016x", h.SessionID),
		core.LabelSMB2TreeID:    strconv.FormatUint(uint64(h.TreeID), 10),
		core.LabelSMB2Flags:     h.Flags.String(),
		core.LabelSMB2Response:  strconv.FormatBool(h.IsResponse()),
		core.LabelSMB2Chained:   strconv.FormatBool(h.IsChained()),
		core.LabelSMB2Credits:   strconv.FormatUint(uint64(h.CreditReqResp), 10),
	}
}
