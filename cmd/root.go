package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autolearn/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "autolearn",
	Short: "Auto-learning OCR for Orthodox parish records",
	Long: `autolearn runs scanned baptism, marriage and funeral records through a
cloud OCR engine and a local Tesseract engine, extracts record fields,
compares the engines and accumulates learning rules that point at weak
fields and unreliable engines.

Commands:
  run        time-boxed batch run over a records directory
  recognize  inspect a single image
  rules      show or export the learning rules
  advise     ask ChatGPT for better field patterns`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("autolearn executed without subcommand")

		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
