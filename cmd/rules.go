package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"autolearn/internal/learning"
	"autolearn/internal/logger"
	"autolearn/internal/sheets"
	"autolearn/internal/store"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the current learning rules, optionally exporting them to Google Sheets",
	Long: `Print the learning rules document written by the last run.

With --export the rules are appended to the worksheet GOOGLE_SHEET_WORKSHEET
(default Learning_Rules) of the spreadsheet at GOOGLE_SHEET_URL. The worksheet
and its header row are created when missing.`,
	Example: `  # List rules from ./ai/learning/mappings.json
  autolearn rules

  # Raw document
  autolearn rules --json --output ./out

  # Export to Google Sheets
  autolearn rules --export`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.Flags().StringP("output", "o", "", "Output directory of the run (default: OUTPUT_DIR or .)")
	rulesCmd.Flags().Bool("json", false, "Print the rules document as JSON")
	rulesCmd.Flags().Bool("export", false, "Append the rules to the configured Google Sheet")
	rulesCmd.Flags().String("sheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET)")
}

func runRules(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("rules")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outputDir := cfg.OutputDir
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		outputDir = out
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	export, _ := cmd.Flags().GetBool("export")
	sheetName := cfg.GoogleSheetWorksheet
	if name, _ := cmd.Flags().GetString("sheet"); name != "" {
		sheetName = name
	}

	doc, err := loadRules(store.NewFileStore(outputDir))
	if err != nil {
		return err
	}

	log.Debug().
		Int("rules", doc.TotalRules).
		Time("generated_at", doc.GeneratedAt).
		Msg("Loaded learning rules")

	if jsonOutput {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
	} else if err := printRules(doc); err != nil {
		return err
	}

	if !export {
		return nil
	}

	if cfg.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --export")
	}

	ctx, cancel := createSignalContext(2*time.Minute, log)
	defer cancel()

	return exportRules(ctx, cfg.GoogleSheetURL, sheetName, doc)
}

func exportRules(ctx context.Context, sheetURL, sheetName string, doc *learning.Document) error {
	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	written, err := sheetsService.WriteRules(ctx, doc, sheetName)
	if err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}

	fmt.Println()
	fmt.Printf("Sheet: %s\n", sheetName)
	fmt.Printf("Rows added: %d\n", written)
	fmt.Printf("URL: %s\n", sheetURL)
	return nil
}

func printRules(doc *learning.Document) error {
	fmt.Printf("Learning rules (version %s, generated %s): %d\n\n",
		doc.Version, doc.GeneratedAt.Format(time.RFC3339), doc.TotalRules)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tRECORD\tFIELD\tFREQ\tCONF\tSUGGESTION")
	for _, row := range sheets.RulesToRows(doc, time.Now()) {
		field := row.Field
		if field == "" {
			field = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%s\n",
			row.Type, row.RecordType, field, row.Frequency, row.Confidence, row.Suggestion)
	}
	return w.Flush()
}
