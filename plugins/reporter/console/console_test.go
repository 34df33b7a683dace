package console

import (
	"bytes"
	"context"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/core/tcpflags"
	"firestige.xyz/smbtrace/plugins/parser/smb2"
)

func newReporter(t *testing.T, cfg map[string]any) (*ConsoleReporter, *bytes.Buffer) {
	t.Helper()
	r := NewConsoleReporter().(*ConsoleReporter)
	require.NoError(t, r.Init(cfg))
	var buf bytes.Buffer
	r.SetOutput(&buf)
	require.NoError(t, r.Start(context.Background()))
	return r, &buf
}

func record(index int, dir string, payload []byte) *core.OutputRecord {
	seq := uint32(1)
	return &core.OutputRecord{
		RunID:     "run-1",
		Index:     index,
		Direction: dir,
		Timestamp: time.Date(2024, 3, 9, 12, 0, 0, 1000, time.UTC),
		Segment: core.CapturedSegment{
			Record: core.CaptureRecord{
				Src:    netip.MustParseAddrPort("10.0.0.1:50000"),
				Dst:    netip.MustParseAddrPort("10.0.0.2:445"),
				Flags:  tcpflags.PSH | tcpflags.ACK,
				Seq:    &seq,
				Win:    502,
				Length: core.Uint128From64(uint64(len(payload))),
			},
			Block: core.ByteBlock{Payload: payload},
		},
		Labels: core.Labels{core.LabelTCPFlags: "P."},
	}
}

func smb2Record(t *testing.T) *core.OutputRecord {
	t.Helper()
	msg := smb2.Message{
		Header: smb2.Header{
			Magic:     smb2.MagicSMB2,
			HeaderLen: smb2.HeaderLen,
			Command:   smb2.CommandNegotiateProtocol,
			MessageID: 1,
		},
		Payload: []byte("hi"),
	}
	frame, err := msg.AppendFrame(nil)
	require.NoError(t, err)

	rec := record(0, "REQUEST", frame)
	rec.PayloadType = smb2.Name
	rec.Payload = &msg
	return rec
}

func TestConsoleReporter_Init(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]any
		wantErr  bool
		wantFmt  string
		wantWrap int
	}{
		{"nil config defaults to text", nil, false, FormatText, defaultWrap},
		{"empty config defaults to text", map[string]any{}, false, FormatText, defaultWrap},
		{"json format", map[string]any{"format": "json"}, false, FormatJSON, defaultWrap},
		{"yaml format upper case", map[string]any{"format": "YAML"}, false, FormatYAML, defaultWrap},
		{"wrap from string", map[string]any{"wrap": "8"}, false, FormatText, 8},
		{"wrap zero disables", map[string]any{"wrap": 0}, false, FormatText, 0},
		{"invalid format", map[string]any{"format": "xml"}, true, "", 0},
		{"invalid color", map[string]any{"color": "sometimes"}, true, "", 0},
		{"negative wrap", map[string]any{"wrap": -1}, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConsoleReporter().(*ConsoleReporter)
			err := r.Init(tt.config)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrPluginInitFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFmt, r.format)
			assert.Equal(t, tt.wantWrap, r.wrap)
		})
	}
}

func TestTextSMB2Message(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"color": "never"})
	require.NoError(t, r.Report(context.Background(), smb2Record(t)))
	require.NoError(t, r.Flush(context.Background()))

	want := "0 (REQUEST 70) [seq 1, ack -, win 502, P.]: \n" +
		" NegotiateProtocol credit=0/0 status=0x00000000 flags=0 mid=1 pid=0x00000000 tid=0 sid=0x0000000000000000\n" +
		"  hi\n"
	assert.Equal(t, want, buf.String())
}

func TestTextNoMessage(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"color": "never"})
	rec := record(2, "RESPONSE", nil)
	rec.PayloadType = core.PayloadTypeNone
	rec.Segment.Record.Flags = tcpflags.ACK
	rec.Segment.Record.Seq = nil

	require.NoError(t, r.Report(context.Background(), rec))
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, "2 (RESPONSE 0) [seq -, ack -, win 502, .]: no smb message\n", buf.String())
}

func TestTextParseError(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"color": "never", "wrap": 4})
	rec := record(1, "REQUEST", []byte{0, 0, 0, 2, 'a', ' '})
	rec.PayloadType = smb2.Name
	rec.Payload = rec.Segment.Block.Payload
	rec.ParseError = smb2.ErrInvalidMagic

	require.NoError(t, r.Report(context.Background(), rec))
	require.NoError(t, r.Flush(context.Background()))
	want := "1 (REQUEST 6) [seq 1, ack -, win 502, P.]: smb msg parse error: smb2: invalid magic" +
		"\n  \\0\\0\\0\\x02\n  a\\x20\n"
	assert.Equal(t, want, buf.String())
}

func TestTextRawPayload(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"color": "never"})
	rec := record(0, "EXTERNAL", []byte("GET"))
	rec.PayloadType = core.PayloadTypeRaw
	rec.Payload = rec.Segment.Block.Payload

	require.NoError(t, r.Report(context.Background(), rec))
	require.NoError(t, r.Flush(context.Background()))
	assert.Equal(t, "0 (EXTERNAL 3) [seq 1, ack -, win 502, P.]: raw payload\n  GET\n", buf.String())
}

func TestTextColor(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"color": "always"})
	rec := record(1, "REQUEST", []byte{0xff})
	rec.PayloadType = smb2.Name
	rec.ParseError = smb2.ErrInvalidMagic

	require.NoError(t, r.Report(context.Background(), rec))
	require.NoError(t, r.Flush(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "\x1b[1;33mREQUEST\x1b[0m")
	assert.Contains(t, out, styleParseError+"smb msg parse error: smb2: invalid magic"+styleReset)
	assert.Contains(t, out, "\x1b[1;31m\\xFF\x1b[0m")
}

func TestColorAutoIsOffForBuffers(t *testing.T) {
	r, _ := newReporter(t, nil)
	assert.False(t, r.color)
}

func TestJSONFormat(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"format": "json"})
	ctx := context.Background()
	require.NoError(t, r.Report(ctx, smb2Record(t)))

	bad := record(1, "RESPONSE", []byte{0xca, 0xfe})
	bad.PayloadType = smb2.Name
	bad.ParseError = smb2.ErrExpectedByte
	require.NoError(t, r.Report(ctx, bad))
	require.NoError(t, r.Flush(ctx))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "run-1", first["run_id"])
	assert.Equal(t, "REQUEST", first["direction"])
	assert.Equal(t, "10.0.0.1:50000", first["src"])
	assert.Equal(t, "2024-03-09T12:00:00.000001Z", first["timestamp"])
	assert.EqualValues(t, 1, first["seq"])
	assert.NotContains(t, first, "ack")
	assert.Equal(t, "70", first["length"])
	smb, ok := first["smb2"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NegotiateProtocol", smb["command"])
	assert.EqualValues(t, 2, smb["body_len"])
	assert.NotContains(t, first, "payload_hex")

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "smb2: expected byte", second["parse_error"])
	assert.Equal(t, "cafe", second["payload_hex"])
	assert.NotContains(t, second, "smb2")
}

func TestYAMLFormat(t *testing.T) {
	r, buf := newReporter(t, map[string]any{"format": "yaml"})
	ctx := context.Background()
	require.NoError(t, r.Report(ctx, smb2Record(t)))
	require.NoError(t, r.Report(ctx, record(1, "RESPONSE", nil)))
	require.NoError(t, r.Stop(ctx))

	dec := yaml.NewDecoder(strings.NewReader(buf.String()))
	var docs []recordView
	for {
		var v recordView
		if err := dec.Decode(&v); err != nil {
			break
		}
		docs = append(docs, v)
	}
	require.Len(t, docs, 2)
	assert.Equal(t, 0, docs[0].Index)
	require.NotNil(t, docs[0].SMB2)
	assert.Equal(t, "NegotiateProtocol", docs[0].SMB2.Command)
	assert.Equal(t, "RESPONSE", docs[1].Direction)
	assert.Equal(t, "P.", docs[1].Labels[core.LabelTCPFlags])
}

func TestReportNil(t *testing.T) {
	r, _ := newReporter(t, nil)
	assert.Error(t, r.Report(context.Background(), nil))
}
