package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/scanocr/internal/config"
	"github.com/spf13/cobra"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration files",
	Long: `Show the effective configuration or write a default config file.

The effective configuration merges, in order of precedence: command-line
flags, SCANOCR_* environment variables, the config file, and defaults.`,
	Annotations: map[string]string{skipValidation: "true"},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration as YAML",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipValidation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if reveal, _ := cmd.Flags().GetBool("show-secrets"); !reveal {
			red := cfg.Redacted()
			cfg = &red
		}
		data, err := cfg.YAML()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init [FILE]",
	Short:       "Write a default configuration file",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipValidation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var target string
		if len(args) == 1 {
			target = args[0]
		}
		written, err := config.WriteDefaultConfigFile(target)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", written)
		return err
	},
}

var configPathsCmd = &cobra.Command{
	Use:         "paths",
	Short:       "List the config file search paths",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipValidation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, p := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(out, p)
		}
		_, err := fmt.Fprintf(out, "environment prefix: %s_\n", config.EnvPrefix)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathsCmd)
	configShowCmd.Flags().Bool("show-secrets", false, "print API keys unmasked")
}
