package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/smbtrace/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smbtrace.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
smbtrace:
  log:
    level: debug
    format: json
    file:
      enabled: true
      path: /tmp/smbtrace-test.log
  input:
    path: trace.txt.zst
    compression: zstd
    date: "2024-03-01"
  decode:
    on_error: abort
    filter: "tcp and port 445"
    smb_ports: [445, 8445]
    smb_strict: true
  output:
    format: yaml
    color: never
    wrap: 32
    pcap: out.pcap
  metrics:
    textfile: /tmp/smbtrace.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.File.Enabled)
	assert.Equal(t, 100, cfg.Log.File.Rotation.MaxSizeMB, "default applied under an explicit section")
	assert.Equal(t, "trace.txt.zst", cfg.Input.Path)
	assert.Equal(t, "zstd", cfg.Input.Compression)
	assert.Equal(t, "2024-03-01", cfg.Input.Date)
	assert.Equal(t, OnErrorAbort, cfg.Decode.OnError)
	assert.Equal(t, "tcp and port 445", cfg.Decode.Filter)
	assert.Equal(t, []int{445, 8445}, cfg.Decode.SMBPorts)
	assert.True(t, cfg.Decode.SMBStrict)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "never", cfg.Output.Color)
	assert.Equal(t, 32, cfg.Output.Wrap)
	assert.Equal(t, "out.pcap", cfg.Output.Pcap)
	assert.Equal(t, "/tmp/smbtrace.prom", cfg.Metrics.Textfile)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Log.File.Enabled)
	assert.Equal(t, "-", cfg.Input.Path)
	assert.Equal(t, "auto", cfg.Input.Compression)
	assert.Equal(t, OnErrorSkip, cfg.Decode.OnError)
	assert.Equal(t, []int{445, 139}, cfg.Decode.SMBPorts)
	assert.False(t, cfg.Decode.SMBStrict)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.Equal(t, 16, cfg.Output.Wrap)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SMBTRACE_OUTPUT_FORMAT", "json")
	t.Setenv("SMBTRACE_DECODE_ON_ERROR", "abort")

	cfg, err := Load(writeConfig(t, "smbtrace:\n  output:\n    format: text\n"))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, OnErrorAbort, cfg.Decode.OnError)
}

func TestLoadNormalisesCase(t *testing.T) {
	cfg, err := Load(writeConfig(t, "smbtrace:\n  log:\n    level: WARN\n  output:\n    format: JSON\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "smbtrace:\n  log:\n    level: loud\n"},
		{"log format", "smbtrace:\n  log:\n    format: xml\n"},
		{"file without path", "smbtrace:\n  log:\n    file:\n      enabled: true\n      path: \"\"\n"},
		{"compression", "smbtrace:\n  input:\n    compression: brotli\n"},
		{"date", "smbtrace:\n  input:\n    date: 03/01/2024\n"},
		{"on_error", "smbtrace:\n  decode:\n    on_error: retry\n"},
		{"filter", "smbtrace:\n  decode:\n    filter: \"host a or host b\"\n"},
		{"port zero", "smbtrace:\n  decode:\n    smb_ports: [0]\n"},
		{"port range", "smbtrace:\n  decode:\n    smb_ports: [70000]\n"},
		{"output format", "smbtrace:\n  output:\n    format: csv\n"},
		{"color", "smbtrace:\n  output:\n    color: sometimes\n"},
		{"wrap", "smbtrace:\n  output:\n    wrap: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
