package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/scanocr/internal/config"
	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/workflow"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// extractResult is one file's entry in --format json output.
type extractResult struct {
	File       string   `json:"file"`
	Text       string   `json:"text"`
	Fragments  []string `json:"fragments"`
	Engine     string   `json:"engine,omitempty"`
	DurationMs float64  `json:"duration_ms"`
	SavedTo    string   `json:"saved_to,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorType  string   `json:"error_type,omitempty"`
}

// extractCmd runs the workflow locally on image files.
var extractCmd = &cobra.Command{
	Use:   "extract FILE...",
	Short: "Extract text from PNG or JPEG files",
	Long: `Run the upload and extract workflow on one or more image files.

Every file after the first is handled as "try another image" in the same
session: the previous result is discarded before the next upload.

Examples:
  scanocr extract receipt.jpg
  scanocr extract scan.png --separator newline
  scanocr extract *.png --format json --save out/`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		flags := cmd.Flags()
		if flags.Changed("separator") {
			cfg.Workflow.Separator, _ = flags.GetString("separator")
		}
		if flags.Changed("format") {
			cfg.Output.Format, _ = flags.GetString("format")
		}
		saveDir, _ := flags.GetString("save")

		if err := cfg.Validate(); err != nil {
			return err
		}
		opts, err := cfg.ToWorkflowOptions()
		if err != nil {
			return err
		}
		opts.Logger = slog.Default()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		eng, err := newEngine(ctx, cfg.ToEngineConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		defer func() {
			if err := engine.Close(eng); err != nil {
				slog.Warn("Failed to close engine", "error", err)
			}
		}()

		sess := workflow.New("cli", imageio.NewDecoder(cfg.Workflow.MaxPixels), eng, opts)
		results := make([]extractResult, 0, len(args))
		failed := 0
		for _, path := range args {
			res := extractFile(ctx, sess, path, saveDir, len(args) > 1)
			if res.Error != "" {
				failed++
			}
			results = append(results, res)
		}

		if err := writeExtractResults(cmd, cfg, results); err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
		}
		return nil
	},
}

// extractFile uploads one file into sess and runs extraction.
func extractFile(ctx context.Context, sess *workflow.Session, path, saveDir string, multi bool) extractResult {
	res := extractResult{File: path, Fragments: []string{}}

	data, err := os.ReadFile(path) //nolint:gosec // user-supplied input path
	if err != nil {
		res.Error, res.ErrorType = err.Error(), "read_error"
		return res
	}

	// A failed upload keeps the previous image; reset so it is not
	// extracted again under this file's name.
	if _, err := sess.Upload(data, path); err != nil {
		_, _ = sess.Reset()
		res.Error, res.ErrorType = err.Error(), errorType(err)
		return res
	}

	snap, err := sess.Extract(ctx)
	if err != nil {
		res.Error, res.ErrorType = err.Error(), errorType(err)
		return res
	}
	if snap.Result != nil {
		res.Text = snap.Result.Text
		res.Fragments = snap.Result.Fragments
		res.Engine = snap.Result.Engine
		res.DurationMs = snap.Result.DurationMs
	}

	if saveDir != "" {
		saved, err := saveArtifact(sess, saveDir, path, multi)
		if err != nil {
			res.Error, res.ErrorType = err.Error(), "save_error"
			return res
		}
		res.SavedTo = saved
	}
	return res
}

// saveArtifact writes extracted_text.txt into dir. With several inputs
// each file gets its own subdirectory named after the input.
func saveArtifact(sess *workflow.Session, dir, input string, multi bool) (string, error) {
	art, err := sess.Artifact()
	if err != nil {
		return "", err
	}
	if multi {
		base := filepath.Base(input)
		dir = filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	out := filepath.Join(dir, art.Filename)
	if err := os.WriteFile(out, art.Body, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

func errorType(err error) string {
	var decErr *imageio.DecodeError
	var recErr *workflow.RecognitionError
	switch {
	case errors.As(err, &decErr):
		return "decode_error"
	case errors.As(err, &recErr):
		return "recognition_error"
	}
	return "error"
}

func writeExtractResults(cmd *cobra.Command, cfg *config.Config, results []extractResult) error {
	out := cmd.OutOrStdout()

	if cfg.Output.Format == outputFormatJSON {
		bts, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		_, err = fmt.Fprintln(out, string(bts))
		return err
	}

	for i, res := range results {
		if len(results) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			_, _ = fmt.Fprintf(out, "== %s ==\n", res.File)
		}
		if res.Error != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %s\n", res.File, res.Error)
			continue
		}
		if _, err := fmt.Fprintln(out, res.Text); err != nil {
			return err
		}
		if res.SavedTo != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved: %s\n", res.SavedTo)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().String("separator", "space", "fragment separator: space or newline")
	extractCmd.Flags().StringP("format", "f", outputFormatText, "output format (text, json)")
	extractCmd.Flags().String("save", "", "directory to write extracted_text.txt into")
}
