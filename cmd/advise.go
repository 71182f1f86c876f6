package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"autolearn/internal/advisor"
	"autolearn/internal/logger"
	"autolearn/internal/store"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Ask ChatGPT for better field patterns for low-confidence fields",
	Long: `Send the most frequent field improvement rules, together with sample OCR
text from the results collection, to ChatGPT and print suggested regular
expressions. Suggestions are advisory; patterns are not changed.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key for ChatGPT
  OPENAI_MODEL   - Model name (default: gpt-4o-mini)`,
	Example: `  # Suggestions for the five weakest fields
  autolearn advise

  # Top two, as JSON
  autolearn advise --limit 2 --json`,
	Args: cobra.NoArgs,
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)

	adviseCmd.Flags().Int("limit", advisor.DefaultLimit, "Maximum number of rules to ask about")
	adviseCmd.Flags().StringP("output", "o", "", "Output directory of the run (default: OUTPUT_DIR or .)")
	adviseCmd.Flags().Bool("json", false, "Output as JSON")
	adviseCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("advise")

	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key not configured. Please set OPENAI_API_KEY environment variable")
	}

	outputDir := cfg.OutputDir
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		outputDir = out
	}

	results := store.NewFileStore(outputDir)
	doc, err := loadRules(results)
	if err != nil {
		return err
	}

	records, err := results.ReadResults()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read OCR results, continuing without samples")
	}

	ctx, cancel := createSignalContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	adv := advisor.New(openai.NewClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
	suggestions, err := adv.Advise(ctx, doc, records, limit)
	if err != nil {
		return fmt.Errorf("failed to get pattern suggestions: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(suggestions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(suggestions) == 0 {
		fmt.Println("No pattern suggestions.")
		return nil
	}

	for i, s := range suggestions {
		fmt.Printf("%d. %s / %s (confidence %.2f)\n", i+1, s.RecordType, s.FieldName, s.Confidence)
		fmt.Printf("   current:   %s\n", s.CurrentPattern)
		fmt.Printf("   suggested: %s\n", s.Pattern)
		fmt.Printf("   reason:    %s\n\n", s.Reason)
	}
	return nil
}
