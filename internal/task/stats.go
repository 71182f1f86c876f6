package task

import (
	"fmt"
	"math"
	"time"

	"autolearn/pkg/models"
)

// State of the single run a Service owns.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateErrored   State = "errored"
)

// RunStats is mutated only by the processing loop, under Service.mu.
type RunStats struct {
	RunID          string
	TotalImages    int
	Processed      int
	Errors         int
	SuccessRate    float64
	AvgConfidence  float64
	RulesGenerated int
	LastImage      string
	StartTime      time.Time
	Deadline       time.Time
	EndTime        time.Time
	ErrorLog       []models.ProcessingError
}

func (s *RunStats) recordSuccess(filename string, confidence float64, rules int) {
	s.Processed++
	s.AvgConfidence += (confidence - s.AvgConfidence) / float64(s.Processed)
	s.LastImage = filename
	s.RulesGenerated = rules
	s.updateSuccessRate()
}

func (s *RunStats) recordError(e models.ProcessingError) {
	if e.Type == models.ErrorTypeImage {
		s.Errors++
		s.LastImage = e.Filename
	}
	s.ErrorLog = append(s.ErrorLog, e)
	s.updateSuccessRate()
}

func (s *RunStats) updateSuccessRate() {
	attempted := s.Processed + s.Errors
	if attempted == 0 {
		s.SuccessRate = 0
		return
	}
	s.SuccessRate = float64(s.Processed) / float64(attempted) * 100
}

// Status is a point-in-time view of the run for status queries.
type Status struct {
	State             State     `json:"status"`
	IsRunning         bool      `json:"is_running"`
	RunID             string    `json:"run_id,omitempty"`
	TotalImages       int       `json:"total_records"`
	Processed         int       `json:"completed"`
	Errors            int       `json:"errors"`
	SuccessRate       float64   `json:"success_rate"`
	AverageConfidence float64   `json:"average_confidence"`
	RulesGenerated    int       `json:"rules_generated"`
	LastImage         string    `json:"last_image,omitempty"`
	ProgressPercent   float64   `json:"progress_percent"`
	Elapsed           string    `json:"elapsed,omitempty"`
	TimeRemaining     string    `json:"time_remaining,omitempty"`
	StartTime         time.Time `json:"start_time,omitempty"`
	Deadline          time.Time `json:"deadline,omitempty"`
}

func snapshot(state State, s RunStats, now time.Time) Status {
	st := Status{
		State:             state,
		IsRunning:         state == StateRunning,
		RunID:             s.RunID,
		TotalImages:       s.TotalImages,
		Processed:         s.Processed,
		Errors:            s.Errors,
		SuccessRate:       s.SuccessRate,
		AverageConfidence: s.AvgConfidence,
		RulesGenerated:    s.RulesGenerated,
		LastImage:         s.LastImage,
		StartTime:         s.StartTime,
		Deadline:          s.Deadline,
	}
	if state == StateIdle {
		return st
	}

	if s.TotalImages > 0 {
		st.ProgressPercent = math.Round(float64(s.Processed+s.Errors) / float64(s.TotalImages) * 100)
	}

	end := now
	if state != StateRunning && !s.EndTime.IsZero() {
		end = s.EndTime
	}
	st.Elapsed = FormatDuration(end.Sub(s.StartTime))

	remaining := time.Duration(0)
	if state == StateRunning && s.Deadline.After(now) {
		remaining = s.Deadline.Sub(now)
	}
	st.TimeRemaining = FormatDuration(remaining)
	return st
}

// FormatDuration renders d as "2h 5m", "4m 10s" or "12s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
