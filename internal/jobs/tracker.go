// Package jobs records one OCR job row per processed image so external
// tooling can follow an auto-learning batch.
package jobs

import (
	"context"

	"autolearn/pkg/models"
)

// Job statuses as stored in ocr_jobs.status.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Tracker follows the lifecycle of one image: Begin, then Complete or Fail.
type Tracker interface {
	Begin(ctx context.Context, batchID string, image models.ImageDescriptor) (int64, error)
	Complete(ctx context.Context, jobID int64, text string, confidence float64) error
	Fail(ctx context.Context, jobID int64, message string) error
	Close() error
}

// NopTracker discards everything. Used when no database is configured.
type NopTracker struct{}

func (NopTracker) Begin(context.Context, string, models.ImageDescriptor) (int64, error) {
	return 0, nil
}

func (NopTracker) Complete(context.Context, int64, string, float64) error { return nil }

func (NopTracker) Fail(context.Context, int64, string) error { return nil }

func (NopTracker) Close() error { return nil }
