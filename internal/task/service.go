// Package task runs the time-boxed auto-learning job: it discovers record
// images, runs each through the cloud and local OCR engines, extracts fields,
// compares the engines, updates the learning rules and persists everything.
//
// A Service owns exactly one run at a time. Images are processed in batches;
// images within a batch run concurrently and their results are folded into
// the run statistics and the rule table by the loop after the batch joins.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"autolearn/internal/fields"
	"autolearn/internal/jobs"
	"autolearn/internal/learning"
	"autolearn/internal/logger"
	"autolearn/internal/ocr"
	"autolearn/internal/status"
	"autolearn/internal/store"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
	DefaultMaxHours   = 24.0
)

// ResultStore is the persistence the run needs.
type ResultStore interface {
	EnsureLayout() error
	AppendResult(rec store.ResultRecord) error
	WriteRules(doc *learning.Document) error
	ReadRules() (*learning.Document, error)
	WriteSummary(summary store.RunSummary) (string, error)
}

// Options tune a Service. Zero values select the defaults.
type Options struct {
	BatchSize int

	// BatchDelay is the pause between batches. Negative disables it.
	BatchDelay time.Duration

	Tracker   jobs.Tracker
	Publisher status.Publisher
	Now       func() time.Time
}

// Service orchestrates auto-learning runs.
type Service struct {
	cloud   ocr.Engine
	local   ocr.Engine
	mapper  *fields.Mapper
	results ResultStore

	batchSize  int
	batchDelay time.Duration
	tracker    jobs.Tracker
	publisher  status.Publisher
	now        func() time.Time

	mu      sync.Mutex
	state   State
	stats   RunStats
	rules   *learning.Engine
	stopCh  chan struct{}
	stopped bool
	done    chan struct{}
}

// NewService creates an idle Service.
func NewService(cloud, local ocr.Engine, results ResultStore, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay == 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.Tracker == nil {
		opts.Tracker = jobs.NopTracker{}
	}
	if opts.Publisher == nil {
		opts.Publisher = status.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		cloud:      cloud,
		local:      local,
		mapper:     fields.NewMapper(),
		results:    results,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		tracker:    opts.Tracker,
		publisher:  opts.Publisher,
		now:        opts.Now,
		state:      StateIdle,
	}
}

// Start runs the task over basePath until every image is processed, the
// maxHours deadline passes, Stop is called or ctx is cancelled. It blocks for
// the whole run and returns the summary written at the end. A non-positive
// maxHours selects DefaultMaxHours.
func (s *Service) Start(ctx context.Context, basePath string, maxHours float64) (summary *store.RunSummary, err error) {
	if maxHours <= 0 {
		maxHours = DefaultMaxHours
	}

	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	start := s.now()
	s.state = StateRunning
	s.stats = RunStats{
		RunID:     uuid.NewString(),
		StartTime: start,
		Deadline:  start.Add(time.Duration(maxHours * float64(time.Hour))),
	}
	s.rules = learning.NewEngine()
	s.stopCh = make(chan struct{})
	s.stopped = false
	s.done = make(chan struct{})
	runID, deadline := s.stats.RunID, s.stats.Deadline
	s.mu.Unlock()

	log := logger.WithComponent("task")
	log.Info().
		Str("run_id", runID).
		Str("base_path", basePath).
		Float64("max_hours", maxHours).
		Time("deadline", deadline).
		Msg("Starting auto-learning OCR task")

	outcome := StateErrored
	defer func() {
		summary = s.finish(ctx, outcome, err)
	}()

	outcome, err = s.run(ctx, basePath, deadline)
	return summary, err
}

// run is the processing loop. Panics are converted into an errored outcome.
func (s *Service) run(ctx context.Context, basePath string, deadline time.Time) (outcome State, err error) {
	log := logger.WithComponent("task")

	defer func() {
		if p := recover(); p != nil {
			outcome = StateErrored
			err = fmt.Errorf("%w: %v", ErrRunPanicked, p)
		}
	}()

	if err := s.results.EnsureLayout(); err != nil {
		return StateErrored, err
	}
	s.seedRules()

	images, err := Discover(basePath)
	if err != nil {
		return StateErrored, err
	}

	s.mu.Lock()
	s.stats.TotalImages = len(images)
	s.mu.Unlock()

	log.Info().Int("images", len(images)).Msg("Discovered images to process")
	s.publish(ctx)

	for offset := 0; offset < len(images); offset += s.batchSize {
		if s.stopRequested() || ctx.Err() != nil {
			log.Info().Int("remaining", len(images)-offset).Msg("Stop requested, ending run")
			return StateStopped, nil
		}
		if !s.now().Before(deadline) {
			log.Info().Int("remaining", len(images)-offset).Msg("Time limit reached, stopping processing")
			return StateCompleted, nil
		}

		end := min(offset+s.batchSize, len(images))
		s.processBatch(ctx, images[offset:end])
		s.publish(context.WithoutCancel(ctx))

		if end < len(images) && s.batchDelay > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-s.stopCh:
			case <-ctx.Done():
			}
		}
	}

	return StateCompleted, nil
}

// seedRules loads the previous rules document so rules accumulate across runs.
func (s *Service) seedRules() {
	log := logger.WithComponent("task")

	doc, err := s.results.ReadRules()
	if errors.Is(err, store.ErrNoRules) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Could not load previous learning rules, starting fresh")
		return
	}

	s.rules.Load(doc)

	s.mu.Lock()
	s.stats.RulesGenerated = s.rules.Len()
	s.mu.Unlock()

	log.Info().Int("rules", doc.TotalRules).Msg("Seeded learning rules from previous run")
}

// finish records the outcome, writes the summary and releases Stop waiters.
func (s *Service) finish(ctx context.Context, outcome State, runErr error) *store.RunSummary {
	log := logger.WithComponent("task")
	now := s.now()

	s.mu.Lock()
	if runErr != nil {
		outcome = StateErrored
		s.stats.ErrorLog = append(s.stats.ErrorLog, taskError(runErr, now))
	}
	s.state = outcome
	s.stats.EndTime = now
	stats := s.stats
	stats.ErrorLog = append(stats.ErrorLog[:0:0], s.stats.ErrorLog...)
	var rules []learning.Rule
	if s.rules != nil {
		rules = s.rules.Rules()
	}
	done := s.done
	s.mu.Unlock()

	summary := &store.RunSummary{
		RunID:             stats.RunID,
		Outcome:           string(outcome),
		TotalRecords:      stats.TotalImages,
		Completed:         stats.Processed,
		ErrorCount:        stats.Errors,
		Runtime:           FormatDuration(now.Sub(stats.StartTime)),
		RulesGenerated:    len(rules),
		AverageConfidence: stats.AvgConfidence,
		SuccessRate:       stats.SuccessRate,
		LearningRules:     rules,
		Errors:            stats.ErrorLog,
		StartTime:         stats.StartTime,
		Deadline:          stats.Deadline,
		Timestamp:         now,
	}

	if path, err := s.results.WriteSummary(*summary); err != nil {
		log.Error().Err(err).Msg("Failed to write run summary")
	} else {
		log.Info().Str("path", path).Msg("Run summary written")
	}

	s.publish(context.WithoutCancel(ctx))

	event := log.Info()
	if runErr != nil {
		event = log.Error().Err(runErr)
	}
	event.
		Str("run_id", stats.RunID).
		Str("outcome", string(outcome)).
		Int("processed", stats.Processed).
		Int("errors", stats.Errors).
		Int("rules", len(rules)).
		Str("runtime", summary.Runtime).
		Msg("Auto-learning task finished")

	close(done)
	return summary
}

// Stop asks the active run to end at the next batch boundary and waits until
// its summary is written or ctx is done. It reports false if nothing was running.
func (s *Service) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	done := s.done
	s.mu.Unlock()

	log := logger.WithComponent("task")
	log.Info().Msg("Auto-learning task stop requested")

	select {
	case <-done:
	case <-ctx.Done():
	}
	return true
}

func (s *Service) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Status returns a snapshot of the current or last run.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.state, s.stats, s.now())
}

func (s *Service) publish(ctx context.Context) {
	if err := s.publisher.Publish(ctx, s.Status()); err != nil {
		log := logger.WithComponent("task")
		log.Warn().Err(err).Msg("Failed to publish run status")
	}
}
