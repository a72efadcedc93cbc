package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/testutil"
)

// sample is one file written into the output directory.
type sample struct {
	name   string
	encode func() ([]byte, error)
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir = flag.String("out", "testdata/images", "Output directory, relative to the project root")
		force  = flag.Bool("force", false, "Overwrite existing files")
		help   = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate sample images for trying the scanocr workflow.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/samples -force\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if !filepath.IsAbs(dir) {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, dir)
	}

	if err := testutil.EnsureDir(dir); err != nil {
		slog.Error("Failed to create output directory", "dir", dir, "error", err)
		os.Exit(1)
	}

	written, err := writeSamples(dir, samples(), *force)
	if err != nil {
		slog.Error("Failed to generate samples", "error", err)
		os.Exit(1)
	}

	slog.Info("Sample generation completed", "dir", dir, "written", written)
}

func samples() []sample {
	return []sample{
		{"hello.png", func() ([]byte, error) {
			return imageio.EncodePNG(testutil.GenerateTextImage(testutil.DefaultTestImageConfig()))
		}},
		{"words.jpg", func() ([]byte, error) {
			return encodeJPEG(testutil.CreateTestImageWithText("SCAN THIS TEXT", 320, 80))
		}},
		{"blank.png", func() ([]byte, error) {
			return imageio.EncodePNG(testutil.CreateTestImage(200, 100, color.White))
		}},
		{"corrupt.png", func() ([]byte, error) {
			return testutil.CorruptPNG(), nil
		}},
	}
}

// writeSamples writes every sample into dir and returns how many files were
// created. Existing files are skipped unless force is set.
func writeSamples(dir string, list []sample, force bool) (int, error) {
	written := 0
	for _, s := range list {
		path := filepath.Join(dir, s.name)
		if !force && testutil.FileExists(path) {
			slog.Debug("Skipping existing sample", "path", path)
			continue
		}

		data, err := s.encode()
		if err != nil {
			return written, fmt.Errorf("failed to encode %s: %w", s.name, err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		slog.Info("Wrote sample", "path", path, "bytes", len(data))
		written++
	}
	return written, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
