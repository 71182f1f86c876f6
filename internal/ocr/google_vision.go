package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const (
	// MaxFileSizeBytes is the maximum file size for synchronous processing (20MB)
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of pages for synchronous processing
	MaxPagesSync = 5

	// defaultVisionConfidence is used when Vision returns text without scores.
	defaultVisionConfidence = 0.8
)

// DefaultLanguageHints covers the English and Greek text found in Orthodox records.
var DefaultLanguageHints = []string{"en", "el"}

// GoogleVisionEngine is the cloud engine backed by Google Cloud Vision API.
type GoogleVisionEngine struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
}

// NewGoogleVisionEngine creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVisionEngine(ctx context.Context, languageHints []string) (*GoogleVisionEngine, error) {
	const op = "NewGoogleVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return NewGoogleVisionEngineWithClient(client, languageHints), nil
}

// NewGoogleVisionEngineWithClient creates a Vision engine with an explicit client.
func NewGoogleVisionEngineWithClient(client *vision.ImageAnnotatorClient, languageHints []string) *GoogleVisionEngine {
	if len(languageHints) == 0 {
		languageHints = DefaultLanguageHints
	}
	return &GoogleVisionEngine{
		client:        client,
		languageHints: languageHints,
	}
}

func (g *GoogleVisionEngine) ID() string { return EngineGoogleVision }

func (g *GoogleVisionEngine) Kind() Kind { return KindCloud }

// Recognize runs document text detection on the image or PDF at imagePath.
func (g *GoogleVisionEngine) Recognize(ctx context.Context, imagePath string) Result {
	return guardedRecognize(ctx, g.ID(), g.Kind(), imagePath, g.extract)
}

func (g *GoogleVisionEngine) extract(ctx context.Context, imagePath string) (string, float64, error) {
	const op = "GoogleVision.Recognize"

	mimeType, err := mimeTypeFor(imagePath)
	if err != nil {
		return "", 0, WrapOCRError(op, err, imagePath)
	}

	data, err := readImage(imagePath)
	if err != nil {
		return "", 0, WrapOCRError(op, err, "failed to read image")
	}

	if mimeType == "application/pdf" {
		return g.annotateFile(ctx, data, mimeType)
	}
	return g.annotateImage(ctx, data)
}

func (g *GoogleVisionEngine) features() []*visionpb.Feature {
	return []*visionpb.Feature{
		{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
	}
}

func (g *GoogleVisionEngine) annotateImage(ctx context.Context, data []byte) (string, float64, error) {
	const op = "annotateImage"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: data},
				Features: g.features(),
				ImageContext: &visionpb.ImageContext{
					LanguageHints: g.languageHints,
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", 0, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	return textFromImageResponses(resp.Responses)
}

func (g *GoogleVisionEngine) annotateFile(ctx context.Context, data []byte, mimeType string) (string, float64, error) {
	const op = "annotateFile"

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: mimeType,
				},
				Features: g.features(),
				ImageContext: &visionpb.ImageContext{
					LanguageHints: g.languageHints,
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", 0, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.GetError() != nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.GetError().GetMessage()))
	}
	if len(fileResp.Responses) > MaxPagesSync {
		return "", 0, WrapOCRError(op, ErrTooManyPages, fmt.Sprintf("document has %d pages", len(fileResp.Responses)))
	}

	return textFromImageResponses(fileResp.Responses)
}

// textFromImageResponses joins page texts in reading order and averages the
// confidence Vision reports for each page.
func textFromImageResponses(responses []*visionpb.AnnotateImageResponse) (string, float64, error) {
	var allText strings.Builder
	var confidenceSum float64
	var confidenceCount int

	for pageIdx, page := range responses {
		if page.GetError() != nil {
			return "", 0, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.GetError().GetMessage())
		}

		annotation := page.GetFullTextAnnotation()
		text := annotation.GetText()
		if text == "" && len(page.GetTextAnnotations()) > 0 {
			// The first entity annotation holds the whole detected text.
			text = page.GetTextAnnotations()[0].GetDescription()
		}
		if text == "" {
			continue
		}

		if allText.Len() > 0 {
			allText.WriteString("\n\n")
		}
		allText.WriteString(text)

		for _, p := range annotation.GetPages() {
			if p.GetConfidence() > 0 {
				confidenceSum += float64(p.GetConfidence())
				confidenceCount++
			}
		}
	}

	extracted := strings.TrimSpace(allText.String())
	if extracted == "" {
		return "", 0, ErrEmptyDocument
	}

	confidence := defaultVisionConfidence
	if confidenceCount > 0 {
		confidence = confidenceSum / float64(confidenceCount)
	}

	return extracted, confidence, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionEngine) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// readImage loads the file and enforces the synchronous size limit.
func readImage(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	if info.Size() == 0 {
		return nil, ErrEmptyDocument
	}
	return os.ReadFile(path)
}
