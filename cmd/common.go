package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"autolearn/internal/config"
	"autolearn/internal/learning"
	"autolearn/internal/ocr"
	"autolearn/internal/store"
)

// loadConfig reads the configuration; main has already loaded .env.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createSignalContext returns a context cancelled on SIGINT/SIGTERM or, when
// timeout is positive, after timeout.
func createSignalContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		parent := cancel
		cancel = func() {
			cancelTimeout()
			parent()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, stopping")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createEngines builds the OCR engine pair with user-facing credential errors.
func createEngines(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*ocr.Engines, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Warn().Msg("Google Cloud credentials not configured, relying on Application Default Credentials")
	}

	engines, err := ocr.NewEngines(ctx, cfg)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please set one of:\n\n" +
				"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
				"2. GOOGLE_CREDENTIALS with inline service account JSON\n\n" +
				"Original error: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR engines")
		return nil, fmt.Errorf("failed to create OCR engines: %w", err)
	}

	log.Debug().Msg("OCR engines created successfully")
	return engines, nil
}

// loadRules reads the rules document or explains how to produce one.
func loadRules(results *store.FileStore) (*learning.Document, error) {
	doc, err := results.ReadRules()
	if errors.Is(err, store.ErrNoRules) {
		return nil, fmt.Errorf("no learning rules found at %s. Run `autolearn run` first", results.RulesPath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read learning rules: %w", err)
	}
	return doc, nil
}

// handleCloudError turns cloud API failures into actionable messages.
// timeoutHint is appended to the deadline message; pass "" for commands
// without a --timeout flag.
func handleCloudError(err error, timeoutHint string, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Command failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		if timeoutHint == "" {
			return fmt.Errorf("operation timed out")
		}
		return fmt.Errorf("operation timed out. %s", timeoutHint)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Ensure the service account can use the configured Google APIs: %v", err)
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return err
	}
}
