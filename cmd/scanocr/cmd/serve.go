package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/scanocr/internal/config"
	"github.com/MeKo-Tech/scanocr/internal/engine"
	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/MeKo-Tech/scanocr/internal/server"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the OCR workflow",
	Long: `Start an HTTP server hosting one upload, extract, reset workflow per session.

The server provides the following endpoints:
  POST   /sessions                create a session
  GET    /sessions/{id}           session state
  DELETE /sessions/{id}           discard a session
  POST   /sessions/{id}/image     upload an image (multipart field "image")
  GET    /sessions/{id}/image     preview of the current image
  POST   /sessions/{id}/extract   run text extraction
  POST   /sessions/{id}/reset     clear image and result
  GET    /sessions/{id}/text      download extracted_text.txt
  GET    /ws                      WebSocket session
  GET    /health, /engine, /metrics

Examples:
  scanocr serve
  scanocr serve --port 8080
  scanocr serve --host 0.0.0.0 --port 3000 --engine openai`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get configuration from centralized system (includes CLI flags, config file, env vars, and defaults)
		cfg := GetConfig()
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		eng, err := newEngine(ctx, cfg.ToEngineConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		serverConfig, err := buildServerConfig(cfg, eng)
		if err != nil {
			_ = engine.Close(eng)
			return err
		}

		// Initialize server
		ocrServer, err := server.NewServer(serverConfig)
		if err != nil {
			_ = engine.Close(eng)
			return fmt.Errorf("failed to initialize server: %w", err)
		}

		router := mux.NewRouter()
		ocrServer.SetupRoutes(router)

		timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		go func() {
			slog.Info("Starting OCR server", "host", cfg.Server.Host, "port", cfg.Server.Port, "engine", eng.Name())
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Shutdown HTTP server first
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		// Then the session store and engine
		if err := ocrServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// applyServeFlags copies explicitly set serve flags over cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = flags.GetString("cors-origin")
	}
	if flags.Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		cfg.Server.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("preview-size") {
		cfg.Server.PreviewSize, _ = flags.GetInt("preview-size")
	}
	if flags.Changed("separator") {
		cfg.Workflow.Separator, _ = flags.GetString("separator")
	}
	if flags.Changed("session-ttl") {
		cfg.Session.TTLSec, _ = flags.GetInt("session-ttl")
	}
	if flags.Changed("max-sessions") {
		cfg.Session.MaxSessions, _ = flags.GetInt("max-sessions")
	}

	// Rate limiting
	if flags.Changed("rate-limit-enabled") {
		cfg.Server.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		cfg.Server.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		cfg.Server.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		cfg.Server.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		cfg.Server.RateLimit.MaxDataPerDayMB, _ = flags.GetInt64("max-data-per-day")
	}
}

// buildServerConfig maps the application config onto server.Config.
func buildServerConfig(cfg *config.Config, eng engine.Engine) (server.Config, error) {
	wf, err := cfg.ToWorkflowOptions()
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		PreviewSize: cfg.Server.PreviewSize,
		Engine:      eng,
		Decoder:     imageio.NewDecoder(cfg.Workflow.MaxPixels),
		Workflow:    wf,
		Session:     cfg.ToSessionOptions(),
		RateLimit: server.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
			RequestsPerHour:   cfg.Server.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: cfg.Server.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     cfg.Server.RateLimit.MaxDataPerDayMB * 1024 * 1024,
		},
		Logger: slog.Default(),
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("preview-size", 1024, "maximum preview edge in pixels")
	serveCmd.Flags().String("separator", "space", "fragment separator: space or newline")
	serveCmd.Flags().Int("session-ttl", 1800, "seconds an idle session is kept")
	serveCmd.Flags().Int("max-sessions", 1000, "maximum concurrent sessions")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1024, "maximum upload data per day per client (MB)")
}
