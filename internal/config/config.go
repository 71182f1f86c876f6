package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"autolearn/internal/logger"
)

// Supported values for CLOUD_ENGINE.
const (
	CloudEngineVision     = "vision"
	CloudEngineDocumentAI = "documentai"
)

type Config struct {
	// Run Configuration
	RecordsBasePath string
	OutputDir       string
	MaxHours        float64
	BatchSize       int
	BatchDelay      time.Duration

	// OCR Configuration
	CloudEngine        string
	TesseractLanguages []string

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Optional integrations, disabled when empty
	OCRDatabaseDSN string
	RedisURL       string
	StatusKey      string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// OpenAI Configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		RecordsBasePath:       getEnv("RECORDS_BASE_PATH", "./uploads"),
		OutputDir:             getEnv("OUTPUT_DIR", "."),
		MaxHours:              getEnvFloat("MAX_HOURS", 24),
		BatchSize:             getEnvInt("BATCH_SIZE", 10),
		BatchDelay:            time.Duration(getEnvInt("BATCH_DELAY_MS", 1000)) * time.Millisecond,
		CloudEngine:           strings.ToLower(getEnv("CLOUD_ENGINE", CloudEngineVision)),
		TesseractLanguages:    splitList(getEnv("TESSERACT_LANGUAGES", "eng+ell")),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OCRDatabaseDSN:        getEnv("OCR_DATABASE_DSN", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		StatusKey:             getEnv("STATUS_KEY", "autolearn:status"),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Learning_Rules"),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.MaxHours <= 0 {
		return fmt.Errorf("MAX_HOURS must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("BATCH_DELAY_MS must not be negative")
	}
	switch c.CloudEngine {
	case CloudEngineVision:
	case CloudEngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for CLOUD_ENGINE=documentai")
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for CLOUD_ENGINE=documentai")
		}
	default:
		return fmt.Errorf("CLOUD_ENGINE must be %q or %q, got %q", CloudEngineVision, CloudEngineDocumentAI, c.CloudEngine)
	}
	if len(c.TesseractLanguages) == 0 {
		return fmt.Errorf("TESSERACT_LANGUAGES is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// splitList accepts "eng+ell" as well as "eng,ell".
func splitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	return parts
}
