package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"autolearn/cmd"
	"autolearn/internal/config"
	"autolearn/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Logging is configured before commands run; commands load the full
	// configuration themselves and report validation errors.
	cfg, err := config.Load()
	if err != nil {
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Debug().Msg("Starting autolearn")

	cmd.Execute()

	log.Debug().Msg("autolearn shutdown")
	os.Exit(0)
}
