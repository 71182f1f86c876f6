package models

import (
	"fmt"
	"strings"
	"time"
)

// RecordType identifies the kind of parish record an image holds.
type RecordType string

const (
	RecordTypeBaptism  RecordType = "baptism"
	RecordTypeMarriage RecordType = "marriage"
	RecordTypeFuneral  RecordType = "funeral"
)

// RecordTypes lists the record types in discovery order.
var RecordTypes = []RecordType{RecordTypeBaptism, RecordTypeMarriage, RecordTypeFuneral}

// ParseRecordType converts a user-supplied string into a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	rt := RecordType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range RecordTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown record type %q (must be baptism, marriage or funeral)", s)
}

// ImageDescriptor describes one discovered record image. It is created at
// discovery time and never mutated.
type ImageDescriptor struct {
	Path       string     `json:"path"`
	Filename   string     `json:"filename"`
	RecordType RecordType `json:"record_type"`
	Extension  string     `json:"extension"` // lower-case, with leading dot
}

// ProcessingError records a failure that was isolated to a single image or,
// for Type "task_error", to the run loop itself.
type ProcessingError struct {
	Type      string    `json:"type"`
	Filename  string    `json:"filename,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ErrorTypeImage = "image_processing_error"
	ErrorTypeTask  = "task_error"
)
