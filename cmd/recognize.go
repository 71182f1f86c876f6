package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"autolearn/internal/compare"
	"autolearn/internal/fields"
	"autolearn/internal/logger"
	"autolearn/internal/ocr"
	"autolearn/internal/task"
	"autolearn/pkg/models"
)

// maxImageBytes mirrors the synchronous Vision request limit.
const maxImageBytes = 20 * 1024 * 1024

const recognizeTimeoutHint = "Try increasing --timeout"

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image-file]",
	Short: "Run both OCR engines on one record image and show the extracted fields",
	Long: `Recognize a single parish record image with the cloud and local engines,
map the text to record fields and compare the engines. Nothing is written
to the output directory and no learning rules change.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Inspect a baptism record
  autolearn recognize uploads/baptism/1921-004.jpg --type baptism

  # Full result as JSON
  autolearn recognize scan.png --type funeral --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

// RecognizeOutput is the JSON structure printed with --json.
type RecognizeOutput struct {
	FileName     string             `json:"file_name"`
	RecordType   models.RecordType  `json:"record_type"`
	OCRResults   []ocr.Result       `json:"ocr_results"`
	MappedFields fields.FieldMap    `json:"mapped_fields"`
	Comparison   compare.Comparison `json:"engine_comparison"`
	Duration     string             `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().StringP("type", "t", "", "Record type (baptism, marriage, funeral) [REQUIRED]")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
	_ = recognizeCmd.MarkFlagRequired("type")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("recognize")

	typeFlag, _ := cmd.Flags().GetString("type")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	recordType, err := models.ParseRecordType(typeFlag)
	if err != nil {
		return err
	}

	imagePath := args[0]
	if err := validateImageFile(imagePath, log); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createSignalContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	engines, err := createEngines(ctx, cfg, log)
	if err != nil {
		return handleCloudError(err, recognizeTimeoutHint, log)
	}
	defer func() {
		if closeErr := engines.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engines")
		}
	}()

	start := time.Now()
	cloud, local := recognizeBoth(ctx, engines, imagePath)
	if err := ctx.Err(); err != nil {
		return handleCloudError(err, recognizeTimeoutHint, log)
	}

	primary := cloud
	if !primary.HasText() {
		primary = local
	}
	if !primary.HasText() {
		log.Error().
			Str("cloud_error", cloud.Error).
			Str("local_error", local.Error).
			Msg("No engine produced text")
		return fmt.Errorf("no readable text found in %s (cloud: %s; local: %s)", imagePath, describe(cloud), describe(local))
	}

	output := RecognizeOutput{
		FileName:     filepath.Base(imagePath),
		RecordType:   recordType,
		OCRResults:   []ocr.Result{cloud, local},
		MappedFields: fields.NewMapper().Map(primary.Text, recordType, primary.Confidence),
		Comparison:   compare.Compare(cloud, local),
		Duration:     time.Since(start).String(),
	}

	log.Info().
		Str("primary", primary.EngineID).
		Int("fields", len(output.MappedFields)).
		Float64("similarity", output.Comparison.TextSimilarity).
		Msg("Recognition completed")

	return printRecognition(output, primary, jsonOutput)
}

// recognizeBoth runs the cloud and local engines concurrently.
func recognizeBoth(ctx context.Context, engines *ocr.Engines, imagePath string) (cloud, local ocr.Result) {
	var g errgroup.Group
	g.Go(func() error {
		cloud = engines.Cloud.Recognize(ctx, imagePath)
		return nil
	})
	g.Go(func() error {
		local = engines.Local.Recognize(ctx, imagePath)
		return nil
	})
	_ = g.Wait()
	return cloud, local
}

func describe(res ocr.Result) string {
	if res.Error != "" {
		return res.Error
	}
	return "empty text"
}

// validateImageFile checks that the file exists, is a supported image and is
// within the size limit.
func validateImageFile(imagePath string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return fmt.Errorf("image file not found: %s", imagePath)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	ext := strings.ToLower(filepath.Ext(imagePath))
	if !task.ImageExtensions[ext] {
		return fmt.Errorf("unsupported image extension %q (supported: .jpg, .jpeg, .png, .tiff, .pdf)", ext)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("image file is empty: %s", imagePath)
	}
	if fileInfo.Size() > maxImageBytes {
		log.Error().
			Str("file", imagePath).
			Int64("size", fileInfo.Size()).
			Msg("Image file exceeds maximum size limit")
		return fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)", fileInfo.Size(), maxImageBytes)
	}

	return nil
}

func printRecognition(output RecognizeOutput, primary ocr.Result, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== %s (%s) ===\n", output.FileName, output.RecordType)
	for _, res := range output.OCRResults {
		if res.Failed() {
			fmt.Fprintf(&b, "%-14s failed: %s\n", res.EngineID, res.Error)
			continue
		}
		fmt.Fprintf(&b, "%-14s confidence %.2f, %d characters, %s\n", res.EngineID, res.Confidence, len([]rune(res.Text)), res.Duration)
	}
	fmt.Fprintf(&b, "Similarity:    %.2f (recommended: %s)\n", output.Comparison.TextSimilarity, output.Comparison.RecommendedEngine)

	b.WriteString("\n=== Fields ===\n")
	if len(output.MappedFields) == 0 {
		b.WriteString("(none)\n")
	}
	for _, name := range output.MappedFields.Names() {
		f := output.MappedFields[name]
		fmt.Fprintf(&b, "%-14s %-30s %.2f (%d matches)\n", name, f.Value, f.Confidence, f.MatchCount)
	}

	fmt.Fprintf(&b, "\n=== Text (%s) ===\n\n%s\n", primary.EngineID, primary.Text)

	_, err := os.Stdout.WriteString(b.String())
	return err
}
