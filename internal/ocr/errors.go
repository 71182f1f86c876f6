package ocr

import (
	"errors"
	"fmt"
)

// Engine failures. Recognize never returns them directly; they end up in
// Result.Error through OCRError.
var (
	// ErrFileTooLarge: the image is over the 20MB synchronous Vision limit.
	ErrFileTooLarge = errors.New("file size exceeds the maximum limit (20MB)")

	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrOCRFailed covers backend failures that carry no better sentinel.
	ErrOCRFailed = errors.New("OCR processing failed")

	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrTooManyPages: Vision annotates at most 5 PDF pages per request.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrEmptyDocument means the engine ran but read no text.
	ErrEmptyDocument = errors.New("document contains no readable text")

	ErrInvalidConfiguration = errors.New("invalid OCR engine configuration")
)

// OCRError records which engine step failed on which input. errors.Is sees
// the wrapped sentinel through Unwrap.
type OCRError struct {
	Op      string // engine step, e.g. "GoogleVision.Recognize"
	Err     error
	Details string // file name, page count or backend message
}

func (e *OCRError) Error() string {
	msg := "ocr: " + e.Op + " failed"
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *OCRError) Unwrap() error { return e.Err }

// NewOCRError builds an OCRError for op.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{Op: op, Err: err, Details: details}
}

// WrapOCRError attaches op and details to err. The innermost OCRError wins,
// so nested engine helpers keep the step that actually failed. A nil err
// stays nil.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}
	return NewOCRError(op, err, details)
}
