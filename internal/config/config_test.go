package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MAX_HOURS", "BATCH_SIZE", "BATCH_DELAY_MS", "CLOUD_ENGINE", "TESSERACT_LANGUAGES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxHours != 24 {
		t.Errorf("MaxHours = %v, want 24", cfg.MaxHours)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
	if cfg.BatchDelay != time.Second {
		t.Errorf("BatchDelay = %v, want 1s", cfg.BatchDelay)
	}
	if cfg.CloudEngine != CloudEngineVision {
		t.Errorf("CloudEngine = %q, want %q", cfg.CloudEngine, CloudEngineVision)
	}
	if len(cfg.TesseractLanguages) != 2 || cfg.TesseractLanguages[0] != "eng" || cfg.TesseractLanguages[1] != "ell" {
		t.Errorf("TesseractLanguages = %v, want [eng ell]", cfg.TesseractLanguages)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"negative hours", map[string]string{"MAX_HOURS": "-1"}},
		{"zero batch", map[string]string{"BATCH_SIZE": "0"}},
		{"unknown engine", map[string]string{"CLOUD_ENGINE": "azure"}},
		{"documentai without project", map[string]string{"CLOUD_ENGINE": "documentai", "GOOGLE_CLOUD_PROJECT": "", "DOCUMENT_AI_PROCESSOR_ID": "abc"}},
		{"documentai without processor", map[string]string{"CLOUD_ENGINE": "documentai", "GOOGLE_CLOUD_PROJECT": "p", "DOCUMENT_AI_PROCESSOR_ID": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load() expected error, got nil")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList("eng, ell+deu")
	want := []string{"eng", "ell", "deu"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
