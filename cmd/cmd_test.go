package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/smbtrace/internal/config"
	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/plugins/parser/smb2"
)

// frameLine renders one segment as a tcpdump header line plus hex dump.
func frameLine(t *testing.T, fromClient bool, payload []byte) string {
	t.Helper()

	src, dst := net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)
	sport, dport := uint16(50000), uint16(445)
	if !fromClient {
		src, dst, sport, dport = dst, src, dport, sport
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst}
	tcp := &layers.TCP{SrcPort: layers.TCPPort(sport), DstPort: layers.TCPPort(dport), Seq: 1, Ack: 1, ACK: true, PSH: true, Window: 502}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)))
	raw := buf.Bytes()

	var sb strings.Builder
	fmt.Fprintf(&sb, "10:31:02.123456 IP %s.%d > %s.%d: Flags [P.], seq 1:%d, ack 1, win 502, length %d\n",
		src, sport, dst, dport, 1+len(payload), len(payload))
	for off := 0; off < len(raw); off += 16 {
		end := min(off+16, len(raw))
		fmt.Fprintf(&sb, "\t0x%04x: ", off)
		for i := off; i < end; i += 2 {
			if i+1 < end {
				fmt.Fprintf(&sb, " %02x%02x", raw[i], raw[i+1])
			} else {
				fmt.Fprintf(&sb, " %02x", raw[i])
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func negotiate(t *testing.T, response bool) []byte {
	t.Helper()
	var flags smb2.Flags
	if response {
		flags = smb2.FlagServerToRedir
	}
	b, err := smb2.Message{Header: smb2.Header{
		Magic:     smb2.MagicSMB2,
		HeaderLen: smb2.HeaderLen,
		Command:   smb2.CommandNegotiateProtocol,
		Flags:     flags,
	}}.AppendFrame(nil)
	require.NoError(t, err)
	return b
}

func writeTranscript(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func defaults(t *testing.T) *config.GlobalConfig {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Output.Color = "never"
	return cfg
}

func TestRunDissectText(t *testing.T) {
	text := frameLine(t, true, negotiate(t, false)) + frameLine(t, false, negotiate(t, true))
	cfg := defaults(t)
	cfg.Input.Path = writeTranscript(t, text)

	var out bytes.Buffer
	require.NoError(t, runDissect(context.Background(), cfg, &out))

	lines := strings.Split(out.String(), "\n")
	assert.Equal(t, "0 (REQUEST 68) [seq 1, ack 1, win 502, P.]: ", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], " NegotiateProtocol "), lines[1])
	assert.Equal(t, "1 (RESPONSE 68) [seq 1, ack 1, win 502, P.]: ", lines[2])
	assert.Contains(t, lines[3], "flags=ServerToRedir")
}

func TestRunDissectCompressedJSONWithPcapAndMetrics(t *testing.T) {
	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(frameLine(t, true, negotiate(t, false))))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	input := filepath.Join(dir, "capture.txt.zst")
	require.NoError(t, os.WriteFile(input, zbuf.Bytes(), 0o644))

	cfg := defaults(t)
	cfg.Input.Path = input
	cfg.Input.Date = "2024-03-09"
	cfg.Output.Format = "json"
	cfg.Output.Pcap = filepath.Join(dir, "out.pcap")
	cfg.Metrics.Textfile = filepath.Join(dir, "smbtrace.prom")

	var out bytes.Buffer
	require.NoError(t, runDissect(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), `"command":"NegotiateProtocol"`)
	assert.Contains(t, out.String(), `"timestamp":"2024-03-09T10:31:02.123456`)

	info, err := os.Stat(cfg.Output.Pcap)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(24), "pcap holds more than its file header")

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "smbtrace_segments_total 1")
}

func TestRunDissectAbort(t *testing.T) {
	text := frameLine(t, true, []byte{0, 0, 0, 4, 'n', 'o', 'p', 'e'}) + frameLine(t, true, negotiate(t, false))
	cfg := defaults(t)
	cfg.Input.Path = writeTranscript(t, text)
	cfg.Decode.OnError = config.OnErrorAbort

	var out bytes.Buffer
	err := runDissect(context.Background(), cfg, &out)
	require.ErrorIs(t, err, core.ErrPipelineAbort)
	assert.ErrorIs(t, err, smb2.ErrInvalidMagic)
	assert.Contains(t, out.String(), "smb msg parse error: smb2: invalid magic")
	assert.NotContains(t, out.String(), "\n1 (")
}

func TestRunDissectMissingInput(t *testing.T) {
	cfg := defaults(t)
	cfg.Input.Path = filepath.Join(t.TempDir(), "nope.txt")
	err := runDissect(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrInputNotFound)
}

func TestRunCheck(t *testing.T) {
	good := frameLine(t, true, negotiate(t, false))
	badHex := "10:31:02.200000 IP 10.0.0.1.50000 > 10.0.0.2.445: Flags [.], ack 1, win 502, length 0\n" +
		"\t0x0000:  45zz 0028\n"

	t.Run("clean", func(t *testing.T) {
		cfg := defaults(t)
		cfg.Input.Path = writeTranscript(t, good+good)
		var out bytes.Buffer
		require.NoError(t, runCheck(context.Background(), cfg, &out))
		assert.Equal(t, "segments: 2\n", out.String())
	})

	t.Run("block error", func(t *testing.T) {
		cfg := defaults(t)
		cfg.Input.Path = writeTranscript(t, good+badHex+good)
		var out bytes.Buffer
		err := runCheck(context.Background(), cfg, &out)
		require.ErrorIs(t, err, errTranscriptInvalid)
		assert.Contains(t, out.String(), "byte-block error at line")
		assert.Contains(t, out.String(), "segments: 2\n")
		assert.Contains(t, out.String(), "byte-block errors: 1\n")
	})
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
smbtrace:
  input:
    path: capture.txt
  decode:
    filter: "tcp and port 445"
  output:
    format: json
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, runValidate(good, &out))
	assert.Equal(t, "VALID: input capture.txt (auto), output json, on_error skip, filter tcp and port 445\n", out.String())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("smbtrace:\n  decode:\n    on_error: explode\n"), 0o644))
	assert.ErrorIs(t, runValidate(bad, &bytes.Buffer{}), core.ErrConfigInvalid)
}

func TestApplyDissectFlags(t *testing.T) {
	cfg := defaults(t)
	cmd := dissectCmd
	t.Cleanup(func() {
		cmd.Flags().Set("format", "text")
		cmd.Flags().Set("on-error", config.OnErrorSkip)
	})
	require.NoError(t, cmd.Flags().Set("format", "yaml"))
	require.NoError(t, cmd.Flags().Set("on-error", "abort"))

	applyDissectFlags(cmd, cfg)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, config.OnErrorAbort, cfg.Decode.OnError)
	assert.Equal(t, 16, cfg.Output.Wrap, "unchanged flags keep the config value")
}

func TestRunValidateExampleConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runValidate(filepath.Join("..", "configs", "smbtrace.yaml"), &out))
	assert.Equal(t, "VALID: input - (auto), output text, on_error skip, filter none\n", out.String())
}
