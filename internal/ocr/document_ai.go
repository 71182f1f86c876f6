package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the ID of a Document OCR processor.
	ProcessorID string

	// Timeout bounds a single ProcessDocument call. Default: 60 seconds.
	Timeout time.Duration
}

// DocumentAIEngine is an alternative cloud engine backed by a Document AI OCR processor.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// NewDocumentAIEngine creates the engine with credentials from environment.
func NewDocumentAIEngine(ctx context.Context, config DocumentAIConfig) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption

	// Regional endpoint for anything outside the default multi-region
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIEngine{
		client: client,
		config: config,
	}, nil
}

func (d *DocumentAIEngine) ID() string { return EngineDocumentAI }

func (d *DocumentAIEngine) Kind() Kind { return KindCloud }

// Recognize sends the raw file to the configured OCR processor.
func (d *DocumentAIEngine) Recognize(ctx context.Context, imagePath string) Result {
	return guardedRecognize(ctx, d.ID(), d.Kind(), imagePath, d.extract)
}

func (d *DocumentAIEngine) extract(ctx context.Context, imagePath string) (string, float64, error) {
	const op = "DocumentAI.Recognize"

	mimeType, err := mimeTypeFor(imagePath)
	if err != nil {
		return "", 0, WrapOCRError(op, err, imagePath)
	}

	data, err := readImage(imagePath)
	if err != nil {
		return "", 0, WrapOCRError(op, err, "failed to read image")
	}

	processCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := d.client.ProcessDocument(processCtx, req)
	if err != nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.GetDocument() == nil {
		return "", 0, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	return textFromDocument(resp.GetDocument())
}

func (d *DocumentAIEngine) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// textFromDocument returns the document text and the mean page layout confidence.
func textFromDocument(doc *documentaipb.Document) (string, float64, error) {
	text := strings.TrimSpace(doc.GetText())
	if text == "" {
		return "", 0, ErrEmptyDocument
	}

	var sum float64
	var count int
	for _, page := range doc.GetPages() {
		if c := page.GetLayout().GetConfidence(); c > 0 {
			sum += float64(c)
			count++
		}
	}

	if count == 0 {
		return text, defaultVisionConfidence, nil
	}
	return text, sum / float64(count), nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
