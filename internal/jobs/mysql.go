package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"autolearn/internal/logger"
	"autolearn/pkg/models"
)

const createJobsTable = `
	CREATE TABLE IF NOT EXISTS ocr_jobs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		file_path VARCHAR(1024) NOT NULL,
		record_type VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		auto_learning BOOLEAN DEFAULT TRUE,
		batch_id VARCHAR(64),
		ocr_engine VARCHAR(20) DEFAULT 'hybrid',
		extracted_text LONGTEXT,
		confidence_score DECIMAL(5,4),
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP NULL,
		INDEX idx_ocr_jobs_batch (batch_id)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`

// MySQLTracker writes job rows to the ocr_jobs table.
type MySQLTracker struct {
	db *sql.DB
}

// NewMySQLTracker opens the database, checks connectivity and makes sure the
// ocr_jobs table exists.
func NewMySQLTracker(ctx context.Context, dsn string) (*MySQLTracker, error) {
	const op = "jobs.NewMySQLTracker"
	log := logger.WithComponent("jobs")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	t, err := NewMySQLTrackerWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Msg("OCR job tracking enabled")
	return t, nil
}

// NewMySQLTrackerWithDB uses an already opened handle.
func NewMySQLTrackerWithDB(ctx context.Context, db *sql.DB) (*MySQLTracker, error) {
	const op = "jobs.NewMySQLTrackerWithDB"
	if _, err := db.ExecContext(ctx, createJobsTable); err != nil {
		return nil, fmt.Errorf("%s: create ocr_jobs: %w", op, err)
	}
	return &MySQLTracker{db: db}, nil
}

// Begin inserts a pending job row and returns its id.
func (t *MySQLTracker) Begin(ctx context.Context, batchID string, image models.ImageDescriptor) (int64, error) {
	const op = "jobs.Begin"

	res, err := t.db.ExecContext(ctx, `
		INSERT INTO ocr_jobs (filename, file_path, record_type, status, auto_learning, batch_id, ocr_engine)
		VALUES (?, ?, ?, ?, 1, ?, 'hybrid')`,
		image.Filename, image.Path, string(image.RecordType), StatusPending, batchID,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", op, image.Filename, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}
	return id, nil
}

// Complete marks the job completed with the primary text and confidence.
func (t *MySQLTracker) Complete(ctx context.Context, jobID int64, text string, confidence float64) error {
	const op = "jobs.Complete"

	_, err := t.db.ExecContext(ctx, `
		UPDATE ocr_jobs
		SET status = ?, extracted_text = ?, confidence_score = ?, completed_at = NOW()
		WHERE id = ?`,
		StatusCompleted, text, confidence, jobID,
	)
	if err != nil {
		return fmt.Errorf("%s: job %d: %w", op, jobID, err)
	}
	return nil
}

// Fail marks the job failed with the error message.
func (t *MySQLTracker) Fail(ctx context.Context, jobID int64, message string) error {
	const op = "jobs.Fail"

	_, err := t.db.ExecContext(ctx, `
		UPDATE ocr_jobs
		SET status = ?, error_message = ?, completed_at = NOW()
		WHERE id = ?`,
		StatusFailed, message, jobID,
	)
	if err != nil {
		return fmt.Errorf("%s: job %d: %w", op, jobID, err)
	}
	return nil
}

// Close closes the database handle.
func (t *MySQLTracker) Close() error {
	return t.db.Close()
}
