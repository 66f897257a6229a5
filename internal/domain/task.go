package domain

import (
	"fmt"
	"strings"
	"time"
)

// DispatchMode selects where a processing attempt runs
type DispatchMode string

const (
	DispatchModeQueued DispatchMode = "QUEUED"
	DispatchModeSync   DispatchMode = "SYNC"
)

// ParseDispatchMode parses a case-insensitive dispatch mode. Empty means QUEUED.
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch DispatchMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", DispatchModeQueued:
		return DispatchModeQueued, nil
	case DispatchModeSync:
		return DispatchModeSync, nil
	}
	return "", ErrInvalidDispatchMode
}

// ProcessingTask is the message handed to the task broker
type ProcessingTask struct {
	ResourceID  string       `json:"resource_id"`
	Locator     string       `json:"storage_locator"`
	StorageKind StorageKind  `json:"storage_kind"`
	Type        ResourceType `json:"declared_type"`
	AttemptID   string       `json:"attempt_id"`
	EnqueuedAt  time.Time    `json:"enqueued_at"`
}

// ValidateProcessingTask validates a task before it is run or enqueued
func ValidateProcessingTask(t *ProcessingTask) error {
	if t == nil {
		return fmt.Errorf("processing task cannot be nil")
	}

	if t.ResourceID == "" {
		return fmt.Errorf("processing task ResourceID is required")
	}

	if t.Locator == "" {
		return fmt.Errorf("processing task Locator is required")
	}

	if t.AttemptID == "" {
		return fmt.Errorf("processing task AttemptID is required")
	}

	if !t.Type.IsVideo() && !t.Type.IsDocument() {
		return fmt.Errorf("processing task Type is invalid: %s", t.Type)
	}

	return nil
}
