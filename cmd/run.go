package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"autolearn/internal/jobs"
	"autolearn/internal/logger"
	"autolearn/internal/status"
	"autolearn/internal/store"
	"autolearn/internal/task"
)

var runCmd = &cobra.Command{
	Use:   "run [base-path]",
	Short: "Run the time-boxed auto-learning OCR task over a records directory",
	Long: `Process every parish record image below base-path through the cloud and
local OCR engines, extract fields, compare the engines and grow the learning
rules. Images are expected in one subdirectory per record type:

  <base-path>/baptism/*.jpg|jpeg|png|tiff|pdf
  <base-path>/marriage/...
  <base-path>/funeral/...

The run ends when every image is processed, the --hours budget is spent or
the process receives SIGINT/SIGTERM. Results, rules and the run summary are
written below --output.

Optional environment variables:
  OCR_DATABASE_DSN - MySQL DSN; one ocr_jobs row is recorded per image
  REDIS_URL        - Redis URL; the run status is published under STATUS_KEY`,
	Example: `  # Process ./uploads for at most 24 hours
  autolearn run

  # Short run over a custom directory
  autolearn run /data/records --hours 0.5 --batch-size 4 --output ./out`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTask,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64("hours", 0, "Maximum run time in hours (default: MAX_HOURS or 24)")
	runCmd.Flags().Int("batch-size", 0, "Images processed concurrently per batch (default: BATCH_SIZE or 10)")
	runCmd.Flags().StringP("output", "o", "", "Output directory (default: OUTPUT_DIR or .)")
	runCmd.Flags().Duration("progress", time.Minute, "Interval between progress log lines (0 disables)")
	runCmd.Flags().Bool("json", false, "Print the run summary as JSON")
}

func runTask(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	basePath := cfg.RecordsBasePath
	if len(args) == 1 {
		basePath = args[0]
	}
	maxHours := cfg.MaxHours
	if hours, _ := cmd.Flags().GetFloat64("hours"); hours > 0 {
		maxHours = hours
	}
	batchSize := cfg.BatchSize
	if size, _ := cmd.Flags().GetInt("batch-size"); size > 0 {
		batchSize = size
	}
	outputDir := cfg.OutputDir
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		outputDir = out
	}
	progressEvery, _ := cmd.Flags().GetDuration("progress")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	batchDelay := cfg.BatchDelay
	if batchDelay == 0 {
		batchDelay = -1
	}

	log.Info().
		Str("base_path", basePath).
		Str("output", outputDir).
		Float64("max_hours", maxHours).
		Int("batch_size", batchSize).
		Dur("batch_delay", cfg.BatchDelay).
		Msg("Starting auto-learning run")

	ctx, cancel := createSignalContext(0, log)
	defer cancel()

	engines, err := createEngines(ctx, cfg, log)
	if err != nil {
		return handleCloudError(err, "", log)
	}
	defer func() {
		if closeErr := engines.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR engines")
		}
	}()

	var tracker jobs.Tracker = jobs.NopTracker{}
	if cfg.OCRDatabaseDSN != "" {
		mysqlTracker, err := jobs.NewMySQLTracker(ctx, cfg.OCRDatabaseDSN)
		if err != nil {
			return fmt.Errorf("failed to connect OCR job database: %w", err)
		}
		tracker = mysqlTracker
	}
	defer tracker.Close()

	var publisher status.Publisher = status.NopPublisher{}
	if cfg.RedisURL != "" {
		redisPublisher, err := status.NewRedisPublisher(ctx, cfg.RedisURL, cfg.StatusKey)
		if err != nil {
			return fmt.Errorf("failed to connect Redis status feed: %w", err)
		}
		publisher = redisPublisher
	}
	defer publisher.Close()

	service := task.NewService(engines.Cloud, engines.Local, store.NewFileStore(outputDir), task.Options{
		BatchSize:  batchSize,
		BatchDelay: batchDelay,
		Tracker:    tracker,
		Publisher:  publisher,
	})

	if progressEvery > 0 {
		stopProgress := reportProgress(service, progressEvery, log)
		defer stopProgress()
	}

	summary, runErr := service.Start(ctx, basePath, maxHours)
	if summary != nil {
		if err := printSummary(summary, jsonOutput); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("auto-learning run failed: %w", runErr)
	}
	return nil
}

// reportProgress logs the service status every interval until the returned
// func is called.
func reportProgress(service *task.Service, every time.Duration, log zerolog.Logger) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st := service.Status()
				if !st.IsRunning {
					continue
				}
				log.Info().
					Int("completed", st.Processed).
					Int("errors", st.Errors).
					Int("total", st.TotalImages).
					Float64("progress_percent", st.ProgressPercent).
					Int("rules", st.RulesGenerated).
					Str("elapsed", st.Elapsed).
					Str("remaining", st.TimeRemaining).
					Msg("Auto-learning progress")
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func printSummary(summary *store.RunSummary, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	}

	fmt.Println()
	fmt.Println("=== Auto-Learning Run Summary ===")
	fmt.Printf("Run ID:             %s\n", summary.RunID)
	fmt.Printf("Outcome:            %s\n", summary.Outcome)
	fmt.Printf("Records:            %d\n", summary.TotalRecords)
	fmt.Printf("Completed:          %d\n", summary.Completed)
	fmt.Printf("Errors:             %d\n", summary.ErrorCount)
	fmt.Printf("Success rate:       %.1f%%\n", summary.SuccessRate)
	fmt.Printf("Average confidence: %.2f\n", summary.AverageConfidence)
	fmt.Printf("Learning rules:     %d\n", summary.RulesGenerated)
	fmt.Printf("Runtime:            %s\n", summary.Runtime)
	return nil
}
