package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autolearn/internal/compare"
	"autolearn/internal/fields"
	"autolearn/internal/learning"
	"autolearn/internal/logger"
	"autolearn/internal/ocr"
	"autolearn/internal/store"
	"autolearn/pkg/models"
)

// imageOutcome carries everything one image produced back to the loop.
type imageOutcome struct {
	image   models.ImageDescriptor
	jobID   int64
	tracked bool
	results []ocr.Result
	primary ocr.Result
	fields  fields.FieldMap
	cmp     compare.Comparison
	err     error
}

// processBatch runs every image of the batch concurrently, then applies the
// outcomes to the run state one by one in batch order.
func (s *Service) processBatch(ctx context.Context, batch []models.ImageDescriptor) {
	outcomes := make([]imageOutcome, len(batch))

	var g errgroup.Group
	g.SetLimit(s.batchSize)
	for i, image := range batch {
		i, image := i, image
		g.Go(func() error {
			outcomes[i] = s.processImage(ctx, image)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		s.apply(ctx, out)
	}
}

// processImage runs both engines, maps fields from the primary text and
// compares the engines. It never touches shared run state.
func (s *Service) processImage(ctx context.Context, image models.ImageDescriptor) (out imageOutcome) {
	log := logger.WithComponent("task")
	out.image = image

	defer func() {
		if p := recover(); p != nil {
			out.err = fmt.Errorf("panic processing %s: %v", image.Filename, p)
		}
	}()

	log.Debug().
		Str("image", image.Filename).
		Str("record_type", string(image.RecordType)).
		Msg("Processing image")

	s.mu.Lock()
	batchID := s.stats.RunID
	s.mu.Unlock()

	jobID, err := s.tracker.Begin(context.WithoutCancel(ctx), batchID, image)
	if err != nil {
		log.Warn().Err(err).Str("image", image.Filename).Msg("Failed to record OCR job")
	} else {
		out.jobID, out.tracked = jobID, true
	}

	// In-flight images always finish; cancellation is honoured between batches.
	engineCtx := context.WithoutCancel(ctx)

	var cloud, local ocr.Result
	var g errgroup.Group
	g.Go(func() error {
		cloud = recognize(engineCtx, s.cloud, image.Path)
		return nil
	})
	g.Go(func() error {
		local = recognize(engineCtx, s.local, image.Path)
		return nil
	})
	_ = g.Wait()
	out.results = []ocr.Result{cloud, local}

	for _, r := range out.results {
		if r.Failed() {
			log.Warn().
				Str("image", image.Filename).
				Str("engine", r.EngineID).
				Str("error", r.Error).
				Msg("OCR engine failed")
		}
	}

	switch {
	case cloud.HasText():
		out.primary = cloud
	case local.HasText():
		out.primary = local
	default:
		out.err = fmt.Errorf("%w: %s", ErrNoText, engineErrors(cloud, local))
		return out
	}

	out.fields = s.mapper.Map(out.primary.Text, image.RecordType, out.primary.Confidence)
	out.cmp = compare.Compare(cloud, local)
	return out
}

// recognize shields the loop from engines that break the no-panic contract.
func recognize(ctx context.Context, engine ocr.Engine, path string) (res ocr.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = ocr.Result{
				EngineID:   engine.ID(),
				EngineKind: engine.Kind(),
				Error:      fmt.Sprintf("%s panicked: %v", engine.ID(), p),
			}
		}
	}()
	return engine.Recognize(ctx, path)
}

// apply folds one outcome into the results file, rule table and run stats.
func (s *Service) apply(ctx context.Context, out imageOutcome) {
	log := logger.WithComponent("task")
	bg := context.WithoutCancel(ctx)

	if out.err == nil {
		analysis := analyze(out)
		rec := store.ResultRecord{
			Filename:     out.image.Filename,
			RecordType:   out.image.RecordType,
			ImagePath:    out.image.Path,
			OCRResults:   out.results,
			MappedFields: out.fields,
			Analysis:     analysis,
			Timestamp:    s.now().UTC(),
		}
		if err := s.results.AppendResult(rec); err != nil {
			out.err = err
		}
	}

	if out.err != nil {
		log.Error().Err(out.err).Str("image", out.image.Filename).Msg("Error processing image")

		s.mu.Lock()
		s.stats.recordError(models.ProcessingError{
			Type:      models.ErrorTypeImage,
			Filename:  out.image.Filename,
			Message:   out.err.Error(),
			Timestamp: s.now().UTC(),
		})
		s.mu.Unlock()

		if out.tracked {
			if err := s.tracker.Fail(bg, out.jobID, out.err.Error()); err != nil {
				log.Warn().Err(err).Int64("job_id", out.jobID).Msg("Failed to update OCR job")
			}
		}
		return
	}

	touched := s.rules.Observe(out.image, out.fields, out.cmp)
	if err := s.results.WriteRules(s.rules.Document()); err != nil {
		log.Error().Err(err).Msg("Failed to store learning rules")
	}

	s.mu.Lock()
	s.stats.recordSuccess(out.image.Filename, out.fields.AverageConfidence(), s.rules.Len())
	s.mu.Unlock()

	if out.tracked {
		if err := s.tracker.Complete(bg, out.jobID, out.primary.Text, out.primary.Confidence); err != nil {
			log.Warn().Err(err).Int64("job_id", out.jobID).Msg("Failed to update OCR job")
		}
	}

	log.Info().
		Str("image", out.image.Filename).
		Str("primary_engine", out.primary.EngineID).
		Int("fields", len(out.fields)).
		Float64("similarity", out.cmp.TextSimilarity).
		Int("rules_touched", len(touched)).
		Msg("Image processed")
}

func analyze(out imageOutcome) store.Analysis {
	low := []string{}
	for _, name := range out.fields.Names() {
		if out.fields[name].Confidence < learning.LowConfidenceThreshold {
			low = append(low, name)
		}
	}
	return store.Analysis{
		PrimaryEngine:       out.primary.EngineID,
		AverageConfidence:   out.fields.AverageConfidence(),
		FieldsFound:         len(out.fields),
		LowConfidenceFields: low,
		Comparison:          out.cmp,
	}
}

func engineErrors(results ...ocr.Result) string {
	msgs := make([]string, 0, len(results))
	for _, r := range results {
		msg := r.Error
		if msg == "" {
			msg = "empty text"
		}
		msgs = append(msgs, r.EngineID+": "+msg)
	}
	return strings.Join(msgs, "; ")
}

func taskError(err error, at time.Time) models.ProcessingError {
	return models.ProcessingError{
		Type:      models.ErrorTypeTask,
		Message:   err.Error(),
		Timestamp: at.UTC(),
	}
}
