package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/smbtrace/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without reading any input.

Defaults and SMBTRACE_* environment overrides are applied first, exactly
as for the other commands.

Examples:
  smbtrace validate -f smbtrace.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(validateConfigFile, cmd.OutOrStdout()); err != nil {
			exitWithError("INVALID", err)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	filter := cfg.Decode.Filter
	if filter == "" {
		filter = "none"
	}
	fmt.Fprintf(w, "VALID: input %s (%s), output %s, on_error %s, filter %s\n",
		cfg.Input.Path, cfg.Input.Compression, cfg.Output.Format, cfg.Decode.OnError, filter)
	return nil
}
