// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/smbtrace/internal/config"
	"firestige.xyz/smbtrace/internal/log"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smbtrace",
	Short: "smbtrace - offline SMB2 dissector for tcpdump transcripts",
	Long: `smbtrace reads the text output of tcpdump -x (or -xx with the link layer
stripped), rebuilds every IPv4/TCP segment from its hex dump and decodes the
SMB2 session envelope and header carried in the payload.

Input may be a file or stdin, plain or compressed with gzip, zstd or lz4.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override: trace, debug, info, warn, error")

	// Add subcommands
	rootCmd.AddCommand(dissectCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig reads the global config, lets apply override it from flags,
// re-validates and initialises logging.
func loadConfig(apply func(*config.GlobalConfig)) (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
