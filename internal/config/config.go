// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/filter"
)

// GlobalConfig is the top-level configuration.
// Maps to the `smbtrace:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Input   InputConfig   `mapstructure:"input"`
	Decode  DecodeConfig  `mapstructure:"decode"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"`  // text / json
	Pattern string           `mapstructure:"pattern"` // text only: %time %level %msg %field %caller %func
	Time    string           `mapstructure:"time"`    // Go time layout
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Input ───

// InputConfig selects the transcript to read.
type InputConfig struct {
	Path        string `mapstructure:"path"`        // "-" reads stdin
	Compression string `mapstructure:"compression"` // auto / none / gzip / zstd / lz4
	Date        string `mapstructure:"date"`        // YYYY-MM-DD, applied to time-of-day stamps; empty = today
}

// ─── Decode ───

// DecodeConfig controls the processing loop.
type DecodeConfig struct {
	OnError   string `mapstructure:"on_error"`   // skip / abort
	Filter    string `mapstructure:"filter"`     // tcpdump filter expression
	SMBPorts  []int  `mapstructure:"smb_ports"`  // claimed in strict mode
	SMBStrict bool   `mapstructure:"smb_strict"` // decode only SMBPorts or payloads with an SMB magic
}

// ─── Output ───

// OutputConfig controls reporters.
type OutputConfig struct {
	Format string `mapstructure:"format"` // text / json / yaml
	Color  string `mapstructure:"color"`  // auto / always / never
	Wrap   int    `mapstructure:"wrap"`   // bytes per dump line, 0 = no wrap
	Pcap   string `mapstructure:"pcap"`   // optional pcap output path
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"` // node-exporter textfile path, empty = disabled
}

// Policy values for DecodeConfig.OnError.
const (
	OnErrorSkip  = "skip"
	OnErrorAbort = "abort"
)

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `smbtrace: ...`.
type configRoot struct {
	Smbtrace GlobalConfig `mapstructure:"smbtrace"`
}

// Load loads configuration from path. An empty path yields the defaults
// with environment overrides applied.
// Env vars use the SMBTRACE_ prefix (e.g., SMBTRACE_OUTPUT_FORMAT).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `smbtrace.` key prefix maps to `SMBTRACE_` through the replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Smbtrace

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "smbtrace." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("smbtrace.log.level", "info")
	v.SetDefault("smbtrace.log.format", "text")
	v.SetDefault("smbtrace.log.pattern", "%time [%level] %msg%field\n")
	v.SetDefault("smbtrace.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("smbtrace.log.file.enabled", false)
	v.SetDefault("smbtrace.log.file.path", "smbtrace.log")
	v.SetDefault("smbtrace.log.file.rotation.max_size_mb", 100)
	v.SetDefault("smbtrace.log.file.rotation.max_age_days", 30)
	v.SetDefault("smbtrace.log.file.rotation.max_backups", 5)
	v.SetDefault("smbtrace.log.file.rotation.compress", true)

	// Input defaults
	v.SetDefault("smbtrace.input.path", "-")
	v.SetDefault("smbtrace.input.compression", "auto")
	v.SetDefault("smbtrace.input.date", "")

	// Decode defaults
	v.SetDefault("smbtrace.decode.on_error", OnErrorSkip)
	v.SetDefault("smbtrace.decode.filter", "")
	v.SetDefault("smbtrace.decode.smb_ports", []int{445, 139})
	v.SetDefault("smbtrace.decode.smb_strict", false)

	// Output defaults
	v.SetDefault("smbtrace.output.format", "text")
	v.SetDefault("smbtrace.output.color", "auto")
	v.SetDefault("smbtrace.output.wrap", 16)
	v.SetDefault("smbtrace.output.pcap", "")

	// Metrics defaults
	v.SetDefault("smbtrace.metrics.textfile", "")
}

// ValidateAndApplyDefaults normalises values and validates the result.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Input.Compression = strings.ToLower(strings.TrimSpace(cfg.Input.Compression))
	cfg.Decode.OnError = strings.ToLower(strings.TrimSpace(cfg.Decode.OnError))
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.Output.Color = strings.ToLower(strings.TrimSpace(cfg.Output.Color))

	if cfg.Input.Compression == "" {
		cfg.Input.Compression = "auto"
	}
	if cfg.Output.Color == "" {
		cfg.Output.Color = "auto"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConfigInvalid, err)
	}
	return nil
}

// Validate checks every section.
func (cfg *GlobalConfig) Validate() error {
	return validation.ValidateStruct(cfg,
		validation.Field(&cfg.Log),
		validation.Field(&cfg.Input),
		validation.Field(&cfg.Decode),
		validation.Field(&cfg.Output),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.Required, validation.In("text", "json")),
		validation.Field(&c.Pattern, validation.When(c.Format == "text", validation.Required)),
		validation.Field(&c.Time, validation.Required),
		validation.Field(&c.File),
	)
}

func (c FileOutputConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

func (c InputConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Compression, validation.In("auto", "none", "gzip", "zstd", "lz4")),
		validation.Field(&c.Date, validation.Date("2006-01-02")),
	)
}

func (c DecodeConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.OnError, validation.Required, validation.In(OnErrorSkip, OnErrorAbort)),
		validation.Field(&c.Filter, validation.By(func(any) error { return filter.Validate(c.Filter) })),
		validation.Field(&c.SMBPorts, validation.Each(validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

func (c OutputConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Format, validation.Required, validation.In("text", "json", "yaml")),
		validation.Field(&c.Color, validation.In("auto", "always", "never")),
		validation.Field(&c.Wrap, validation.Min(0)),
	)
}
