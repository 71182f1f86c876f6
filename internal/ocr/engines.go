package ocr

import (
	"context"
	"errors"

	"autolearn/internal/config"
	"autolearn/internal/logger"
)

// Engines is the cloud/local pair every image is run through.
type Engines struct {
	Cloud Engine
	Local Engine

	closers []func() error
}

// NewEngines builds the configured cloud engine and the local Tesseract engine.
func NewEngines(ctx context.Context, cfg *config.Config) (*Engines, error) {
	const op = "NewEngines"
	log := logger.WithComponent("ocr")

	engines := &Engines{
		Local: NewTesseractEngine(TesseractConfig{
			Languages:   cfg.TesseractLanguages,
			Whitelist:   OrthodoxWhitelist,
			PageSegMode: DefaultTesseractConfig().PageSegMode,
		}),
	}

	switch cfg.CloudEngine {
	case config.CloudEngineDocumentAI:
		docAI, err := NewDocumentAIEngine(ctx, DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		})
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create Document AI engine")
		}
		engines.Cloud = docAI
		engines.closers = append(engines.closers, docAI.Close)
	default:
		vision, err := NewGoogleVisionEngine(ctx, DefaultLanguageHints)
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create Vision engine")
		}
		engines.Cloud = vision
		engines.closers = append(engines.closers, vision.Close)
	}

	log.Info().
		Str("cloud", engines.Cloud.ID()).
		Str("local", engines.Local.ID()).
		Strs("languages", cfg.TesseractLanguages).
		Msg("OCR engines initialized")

	return engines, nil
}

// Close releases the cloud clients.
func (e *Engines) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
