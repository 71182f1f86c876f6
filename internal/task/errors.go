package task

import "errors"

var (
	// ErrAlreadyRunning is returned by Start while another run is active.
	ErrAlreadyRunning = errors.New("auto-learning task is already running")

	// ErrBasePathNotFound is returned when the records base path does not exist.
	ErrBasePathNotFound = errors.New("records base path not found")

	// ErrNoText is recorded when neither engine produced any text for an image.
	ErrNoText = errors.New("no OCR engine produced text")

	// ErrRunPanicked marks a run that terminated because the loop panicked.
	ErrRunPanicked = errors.New("auto-learning run panicked")
)
