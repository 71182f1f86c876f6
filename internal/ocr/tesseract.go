package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// OrthodoxWhitelist restricts Tesseract to the Latin and Greek characters that
// appear in parish registers.
const OrthodoxWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789.,;:()/-+ " +
	"ΑΒΓΔΕΖΗΘΙΚΛΜΝΞΟΠΡΣΤΥΦΧΨΩαβγδεζηθικλμνξοπρστυφχψω"

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	// Languages are traineddata names, e.g. "eng", "ell".
	Languages []string

	// Whitelist limits recognised characters. Empty disables the restriction.
	Whitelist string

	// PageSegMode defaults to a single uniform block of text.
	PageSegMode gosseract.PageSegMode
}

// DefaultTesseractConfig returns the configuration tuned for Orthodox records.
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages:   []string{"eng", "ell"},
		Whitelist:   OrthodoxWhitelist,
		PageSegMode: gosseract.PSM_SINGLE_BLOCK,
	}
}

// TesseractEngine is the local, offline engine.
type TesseractEngine struct {
	config        TesseractConfig
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine(config TesseractConfig) *TesseractEngine {
	if len(config.Languages) == 0 {
		config.Languages = DefaultTesseractConfig().Languages
	}
	if config.PageSegMode == 0 {
		config.PageSegMode = gosseract.PSM_SINGLE_BLOCK
	}
	return &TesseractEngine{
		config:        config,
		clientFactory: gosseract.NewClient,
	}
}

func (t *TesseractEngine) ID() string { return EngineTesseract }

func (t *TesseractEngine) Kind() Kind { return KindLocal }

// Recognize performs OCR on a single image. A fresh client is created per call
// so the engine can be shared across goroutines.
func (t *TesseractEngine) Recognize(ctx context.Context, imagePath string) Result {
	return guardedRecognize(ctx, t.ID(), t.Kind(), imagePath, t.extract)
}

func (t *TesseractEngine) extract(ctx context.Context, imagePath string) (string, float64, error) {
	const op = "Tesseract.Recognize"

	if strings.EqualFold(filepath.Ext(imagePath), ".pdf") {
		return "", 0, WrapOCRError(op, ErrUnsupportedFormat, "tesseract cannot read PDF input")
	}
	if _, err := mimeTypeFor(imagePath); err != nil {
		return "", 0, WrapOCRError(op, err, imagePath)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, WrapOCRError(op, err, "context done before recognition")
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(t.config.Languages...); err != nil {
		return "", 0, WrapOCRError(op, err, "failed to set languages")
	}
	if err := client.SetPageSegMode(t.config.PageSegMode); err != nil {
		return "", 0, WrapOCRError(op, err, "failed to set page segmentation mode")
	}
	if t.config.Whitelist != "" {
		if err := client.SetWhitelist(t.config.Whitelist); err != nil {
			return "", 0, WrapOCRError(op, err, "failed to set whitelist")
		}
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return "", 0, WrapOCRError(op, err, "failed to set preserve_interword_spaces")
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", 0, WrapOCRError(op, err, "failed to set image")
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("tesseract OCR failed: %v", err))
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, WrapOCRError(op, ErrEmptyDocument, imagePath)
	}

	return text, wordConfidence(client), nil
}

// wordConfidence averages the per-word confidence Tesseract reports (0-100).
func wordConfidence(client *gosseract.Client) float64 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}

	var sum float64
	var valid int
	for _, b := range boxes {
		if b.Confidence > 0 {
			sum += b.Confidence
			valid++
		}
	}
	if valid == 0 {
		return 0
	}
	return clampConfidence(sum / float64(valid) / 100)
}
