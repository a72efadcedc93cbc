package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/scanocr/internal/config"
	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipValidation marks commands that must run with an invalid config.
const skipValidation = "skip-config-validation"

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string

	// newEngine builds the OCR engine; tests replace it.
	newEngine = engine.New
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scanocr",
	Short: "Extract text from uploaded images",
	Long: `scanocr turns a PNG or JPEG image into plain text with an external OCR
engine (tesseract, OpenAI, Gemini, or a remote OCR server).

The default tesseract engine needs a binary built with -tags tesseract and
the tesseract library installed. Other builds must select another engine
with --engine or engine.name.` + tesseractStatus() + `

It runs either as an HTTP/WebSocket service hosting one upload, extract,
reset workflow per session, or locally on files from the command line.

Examples:
  scanocr extract receipt.jpg
  scanocr extract page1.png page2.png --separator newline --save out/
  scanocr serve --port 8080 --engine openai`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "scanocr version "+version.String())
			return err
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $XDG_CONFIG_HOME/scanocr, /etc/scanocr)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("engine", "e", engine.NameTesseract, "OCR engine (tesseract, openai, gemini, remote)")
	rootCmd.PersistentFlags().StringSlice("languages", engine.DefaultLanguages, "language hints passed to the engine (BCP 47, e.g. en,de)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	bindGlobalFlags()

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd.Annotations[skipValidation] == "true"); err != nil {
			return err
		}
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), globalConfig))
		return nil
	}
}

// bindGlobalFlags binds the persistent flags to the global viper keys.
func bindGlobalFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("engine.name", flags.Lookup("engine"))
	_ = viper.BindPFlag("engine.languages", flags.Lookup("languages"))
}

// newLogger builds the JSON logger for cfg. Verbose wins over log_level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// initConfig reads in config file and ENV variables.
func initConfig(skipValidate bool) error {
	configLoader = config.NewLoader()

	var err error
	if skipValidate {
		globalConfig, err = configLoader.LoadWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the global configuration, re-read from viper so
// flags bound after loading are included.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(false); err != nil {
			slog.Error("Failed to load configuration", "error", err)
			cfg := config.DefaultConfig()
			return &cfg
		}
	}

	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		slog.Error("Error unmarshaling updated configuration", "error", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

func tesseractStatus() string {
	if engine.TesseractAvailable {
		return "\nThis binary includes tesseract."
	}
	return "\nThis binary was built without tesseract."
}
