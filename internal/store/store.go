// Package store persists per-image results, the learning rules document and
// run summaries under an output directory:
//
//	processed_data/ocr_results.jsonl   one JSON result per line, appended
//	ai/learning/mappings.json          current rules document, replaced atomically
//	logs/summary-YYYYMMDD-HHMMSS.json  one summary per run
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autolearn/internal/compare"
	"autolearn/internal/fields"
	"autolearn/internal/learning"
	"autolearn/internal/ocr"
	"autolearn/pkg/models"
)

const (
	resultsDir   = "processed_data"
	resultsFile  = "ocr_results.jsonl"
	rulesDir     = "ai/learning"
	rulesFile    = "mappings.json"
	summaryDir   = "logs"
	summaryStamp = "20060102-150405"
)

// ErrNoRules is returned by ReadRules when no rules document exists yet.
var ErrNoRules = errors.New("no learning rules document")

// Analysis is the per-image interpretation embedded in a result record.
type Analysis struct {
	PrimaryEngine       string             `json:"primary_engine"`
	AverageConfidence   float64            `json:"average_confidence"`
	FieldsFound         int                `json:"fields_found"`
	LowConfidenceFields []string           `json:"low_confidence_fields"`
	Comparison          compare.Comparison `json:"engine_comparison"`
}

// ResultRecord is one line of the results collection.
type ResultRecord struct {
	Filename     string            `json:"filename"`
	RecordType   models.RecordType `json:"record_type"`
	ImagePath    string            `json:"image_path"`
	OCRResults   []ocr.Result      `json:"ocr_results"`
	MappedFields fields.FieldMap   `json:"mapped_fields"`
	Analysis     Analysis          `json:"analysis"`
	Timestamp    time.Time         `json:"timestamp"`
}

// RunSummary is written once at the end of every run.
type RunSummary struct {
	RunID             string                   `json:"run_id"`
	Outcome           string                   `json:"outcome"`
	TotalRecords      int                      `json:"total_records"`
	Completed         int                      `json:"completed"`
	ErrorCount        int                      `json:"error_count"`
	Runtime           string                   `json:"runtime"`
	RulesGenerated    int                      `json:"rules_generated"`
	AverageConfidence float64                  `json:"average_confidence"`
	SuccessRate       float64                  `json:"success_rate"`
	LearningRules     []learning.Rule          `json:"learning_rules"`
	Errors            []models.ProcessingError `json:"errors"`
	StartTime         time.Time                `json:"start_time"`
	Deadline          time.Time                `json:"deadline"`
	Timestamp         time.Time                `json:"timestamp"`
}

// FileStore writes everything below a root directory.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a store rooted at dir. Nothing is created until
// EnsureLayout is called.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the output directory.
func (s *FileStore) Root() string {
	return s.root
}

// ResultsPath is the JSON-lines results file.
func (s *FileStore) ResultsPath() string {
	return filepath.Join(s.root, resultsDir, resultsFile)
}

// RulesPath is the rules document.
func (s *FileStore) RulesPath() string {
	return filepath.Join(s.root, rulesDir, rulesFile)
}

// EnsureLayout creates the output directories.
func (s *FileStore) EnsureLayout() error {
	const op = "store.EnsureLayout"
	for _, dir := range []string{resultsDir, rulesDir, summaryDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0o755); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// AppendResult adds one record to the results file and syncs it to disk.
func (s *FileStore) AppendResult(rec ResultRecord) error {
	const op = "store.AppendResult"

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s: marshal %s: %w", op, rec.Filename, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.ResultsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%s: sync: %w", op, err)
	}
	return f.Close()
}

// ReadResults returns every stored record in append order. A missing file
// yields an empty list.
func (s *FileStore) ReadResults() ([]ResultRecord, error) {
	const op = "store.ReadResults"

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.ResultsPath())
	if errors.Is(err, fs.ErrNotExist) {
		return []ResultRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	var out []ResultRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec ResultRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", op, line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// WriteRules replaces the rules document.
func (s *FileStore) WriteRules(doc *learning.Document) error {
	const op = "store.WriteRules"
	if err := s.writeJSON(s.RulesPath(), doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ReadRules loads the rules document, returning ErrNoRules if none exists.
func (s *FileStore) ReadRules() (*learning.Document, error) {
	const op = "store.ReadRules"

	data, err := os.ReadFile(s.RulesPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRules
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var doc learning.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc, nil
}

// WriteSummary writes the run summary to a timestamped file and returns its path.
func (s *FileStore) WriteSummary(summary RunSummary) (string, error) {
	const op = "store.WriteSummary"

	ts := summary.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(s.root, summaryDir, fmt.Sprintf("summary-%s.json", ts.Format(summaryStamp)))

	if err := s.writeJSON(path, summary); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}

// writeJSON writes v to a temp file in the target directory and renames it
// over path so readers never see a partial document.
func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
