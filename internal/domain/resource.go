package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResourceType is the declared type of an uploaded learning resource
type ResourceType string

const (
	ResourceTypeVideo ResourceType = "video"
	ResourceTypePDF   ResourceType = "pdf"
	ResourceTypeDOCX  ResourceType = "docx"
	ResourceTypeTXT   ResourceType = "txt"
)

// IsVideo reports whether the resource must go through transcription.
func (t ResourceType) IsVideo() bool {
	return t == ResourceTypeVideo
}

// IsDocument reports whether the resource is read by a document reader.
func (t ResourceType) IsDocument() bool {
	switch t {
	case ResourceTypePDF, ResourceTypeDOCX, ResourceTypeTXT:
		return true
	}
	return false
}

// ParseResourceType accepts a type name or a file extension with or without
// the leading dot.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch t {
	case ResourceTypeVideo, ResourceTypePDF, ResourceTypeDOCX, ResourceTypeTXT:
		return t, nil
	case "mp4", "mov", "mkv", "webm", "avi":
		return ResourceTypeVideo, nil
	}
	return "", ErrInvalidResourceType
}

// StorageKind tells where the resource bytes live
type StorageKind string

const (
	StorageKindLocal  StorageKind = "local"
	StorageKindRemote StorageKind = "remote"
)

// ResourceStatus is the lifecycle state of a resource
type ResourceStatus string

const (
	ResourceStatusPending    ResourceStatus = "PENDING"
	ResourceStatusProcessing ResourceStatus = "PROCESSING"
	ResourceStatusComplete   ResourceStatus = "COMPLETE"
	ResourceStatusFailed     ResourceStatus = "FAILED"
)

// IsTerminal reports whether no further stage transitions can follow.
func (s ResourceStatus) IsTerminal() bool {
	return s == ResourceStatusComplete || s == ResourceStatusFailed
}

// Defaults reported by status queries when a PROCESSING resource has not yet
// written its first stage.
const (
	DefaultStatusStep    = "Initializing"
	DefaultStatusETA     = 180
	DefaultFailedMessage = "Processing failed"
)

// Resource represents an uploaded video or document tracked through processing
type Resource struct {
	ID              string
	CourseID        string
	ModuleID        string // empty when the resource is not attached to a module
	Title           string
	Type            ResourceType
	Locator         string
	StorageKind     StorageKind
	Status          ResourceStatus
	Published       bool
	DurationSeconds float64
	AttemptID       string
	Error           string
	UploadedAt      time.Time
	ProcessedAt     *time.Time

	// Transient fields, set only while Status is PROCESSING
	Progress    *int
	CurrentStep *string
	ETASeconds  *int
}

// NewResource creates a new Resource in the PENDING state
func NewResource(
	id, courseID, moduleID, title string,
	resourceType ResourceType,
	locator string,
	kind StorageKind,
	uploadedAt time.Time,
) *Resource {
	return &Resource{
		ID:          id,
		CourseID:    courseID,
		ModuleID:    moduleID,
		Title:       title,
		Type:        resourceType,
		Locator:     locator,
		StorageKind: kind,
		Status:      ResourceStatusPending,
		UploadedAt:  uploadedAt,
	}
}

// ValidateResource validates a Resource instance
func ValidateResource(r *Resource) error {
	if r == nil {
		return fmt.Errorf("resource cannot be nil")
	}

	if r.ID == "" {
		return fmt.Errorf("resource ID is required")
	}

	if r.CourseID == "" {
		return fmt.Errorf("resource CourseID is required")
	}

	if r.Locator == "" {
		return fmt.Errorf("resource Locator is required")
	}

	if !r.Type.IsVideo() && !r.Type.IsDocument() {
		return fmt.Errorf("resource Type is invalid: %s", r.Type)
	}

	if !isValidStorageKind(r.StorageKind) {
		return fmt.Errorf("resource StorageKind is invalid: %s", r.StorageKind)
	}

	if !isValidResourceStatus(r.Status) {
		return fmt.Errorf("resource Status is invalid: %s", r.Status)
	}

	if r.DurationSeconds < 0 {
		return fmt.Errorf("resource DurationSeconds cannot be negative")
	}

	return nil
}

// StatusView is the structured answer to a status query. Progress, step and
// ETA are present only while PROCESSING; Error only while FAILED.
type StatusView struct {
	ResourceID             string         `json:"resource_id"`
	Status                 ResourceStatus `json:"status"`
	Progress               *int           `json:"progress,omitempty"`
	CurrentStep            *string        `json:"current_step,omitempty"`
	EstimatedTimeRemaining *int           `json:"estimated_time_remaining,omitempty"`
	Error                  *string        `json:"error,omitempty"`
}

// StatusView builds the status query answer for r.
func (r *Resource) StatusView() StatusView {
	view := StatusView{ResourceID: r.ID, Status: r.Status}

	switch r.Status {
	case ResourceStatusProcessing:
		progress, step, eta := 0, DefaultStatusStep, DefaultStatusETA
		if r.Progress != nil {
			progress = *r.Progress
		}
		if r.CurrentStep != nil {
			step = *r.CurrentStep
		}
		if r.ETASeconds != nil {
			eta = *r.ETASeconds
		}
		view.Progress = &progress
		view.CurrentStep = &step
		view.EstimatedTimeRemaining = &eta
	case ResourceStatusFailed:
		msg := r.Error
		if msg == "" {
			msg = DefaultFailedMessage
		}
		view.Error = &msg
	}

	return view
}

func isValidStorageKind(k StorageKind) bool {
	return k == StorageKindLocal || k == StorageKindRemote
}

func isValidResourceStatus(s ResourceStatus) bool {
	switch s {
	case ResourceStatusPending, ResourceStatusProcessing,
		ResourceStatusComplete, ResourceStatusFailed:
		return true
	}
	return false
}
