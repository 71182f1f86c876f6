// Package ocr provides the OCR engine adapters used by the auto-learning task.
//
// Every adapter exposes the same capability: given the path of a scanned record
// image, return the extracted text together with a confidence score. Adapters
// never return an error or panic past their boundary; failures are reported as
// a Result with zero confidence and a populated Error field, so a single broken
// engine never aborts the processing of an image.
//
// Two kinds of engines exist:
//   - cloud: Google Cloud Vision (default) or Google Document AI. Higher accuracy,
//     network dependent, uses English and Greek language hints.
//   - local: Tesseract through gosseract. Offline, restricted to the Latin and
//     Greek alphabets found in Orthodox parish records.
//
// Required Environment Variables (cloud engines):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: only for the documentai engine
package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind distinguishes cloud engines from local ones.
type Kind string

const (
	KindCloud Kind = "cloud"
	KindLocal Kind = "local"
)

// Engine identifiers as they appear in results and learning rules.
const (
	EngineGoogleVision = "google_vision"
	EngineDocumentAI   = "document_ai"
	EngineTesseract    = "tesseract"
)

// Engine is the uniform recognize-image capability.
type Engine interface {
	// ID returns the stable engine identifier (e.g. "google_vision").
	ID() string

	// Kind reports whether the engine is a cloud or a local backend.
	Kind() Kind

	// Recognize extracts text from the image at imagePath. It never fails:
	// problems are reported through Result.Error.
	Recognize(ctx context.Context, imagePath string) Result
}

// Result is the outcome of one engine run on one image.
type Result struct {
	EngineID   string        `json:"engine"`
	EngineKind Kind          `json:"engine_kind"`
	Text       string        `json:"extracted_text"`
	Confidence float64       `json:"confidence"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Failed reports whether the engine did not produce a usable result.
func (r Result) Failed() bool {
	return r.Error != ""
}

// HasText reports whether the result carries non-blank text.
func (r Result) HasText() bool {
	return !r.Failed() && strings.TrimSpace(r.Text) != ""
}

// extractFunc is the fallible core of an adapter.
type extractFunc func(ctx context.Context, imagePath string) (string, float64, error)

// guardedRecognize runs fn and converts any error or panic into a failed Result.
func guardedRecognize(ctx context.Context, id string, kind Kind, imagePath string, fn extractFunc) (res Result) {
	start := time.Now()
	res = Result{EngineID: id, EngineKind: kind}

	defer func() {
		if p := recover(); p != nil {
			res = Result{
				EngineID:   id,
				EngineKind: kind,
				Error:      fmt.Sprintf("%s panicked: %v", id, p),
			}
		}
		res.Duration = time.Since(start)
	}()

	text, confidence, err := fn(ctx, imagePath)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Text = text
	res.Confidence = clampConfidence(confidence)
	return res
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// mimeTypeFor maps a file extension to the MIME type expected by the cloud APIs.
func mimeTypeFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	case ".tif", ".tiff":
		return "image/tiff", nil
	case ".pdf":
		return "application/pdf", nil
	default:
		return "", ErrUnsupportedFormat
	}
}
