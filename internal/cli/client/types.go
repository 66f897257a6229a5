package client

// Resource mirrors the API's resource representation.
type Resource struct {
	ID              string  `json:"id"`
	CourseID        string  `json:"course_id"`
	ModuleID        string  `json:"module_id,omitempty"`
	Title           string  `json:"title"`
	Type            string  `json:"type"`
	Locator         string  `json:"storage_locator"`
	StorageKind     string  `json:"storage_kind"`
	Status          string  `json:"status"`
	Published       bool    `json:"published"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
	UploadedAt      string  `json:"uploaded_at"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
}

// RegisterRequest is the body of POST /resources.
type RegisterRequest struct {
	ID          string `json:"id,omitempty"`
	CourseID    string `json:"course_id"`
	ModuleID    string `json:"module_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Type        string `json:"type"`
	Locator     string `json:"storage_locator"`
	StorageKind string `json:"storage_kind,omitempty"`
	Published   bool   `json:"published,omitempty"`
	Process     bool   `json:"process,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// Dispatch reports where an attempt went and how it ended so far.
type Dispatch struct {
	ResourceID string   `json:"resource_id"`
	AttemptID  string   `json:"attempt_id"`
	Mode       string   `json:"mode"`
	Status     string   `json:"status"`
	Error      string   `json:"error,omitempty"`
	Outcome    *Outcome `json:"outcome,omitempty"`
}

// Outcome summarises a finished attempt.
type Outcome struct {
	ResourceID    string  `json:"resource_id"`
	AttemptID     string  `json:"attempt_id"`
	Status        string  `json:"status"`
	WordCount     int     `json:"word_count"`
	ChunksIndexed int     `json:"chunks_indexed"`
	Confidence    float64 `json:"confidence"`
	Superseded    bool    `json:"superseded,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// RegisterResponse is the data of POST /resources.
type RegisterResponse struct {
	Resource *Resource `json:"resource"`
	Dispatch *Dispatch `json:"dispatch,omitempty"`
}

// Status is the data of GET /resources/{id}/status.
type Status struct {
	ResourceID             string  `json:"resource_id"`
	Status                 string  `json:"status"`
	Progress               *int    `json:"progress,omitempty"`
	CurrentStep            *string `json:"current_step,omitempty"`
	EstimatedTimeRemaining *int    `json:"estimated_time_remaining,omitempty"`
	Error                  *string `json:"error,omitempty"`
}

// IsTerminal reports whether polling can stop.
func (s Status) IsTerminal() bool {
	return s.Status == "COMPLETE" || s.Status == "FAILED"
}

// ResourceList is the data of GET /courses/{id}/resources.
type ResourceList struct {
	Items   []*Resource `json:"items"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"has_more"`
}

// UploadTicket is the data of POST /uploads.
type UploadTicket struct {
	ResourceID  string `json:"resource_id"`
	Type        string `json:"type"`
	StorageKey  string `json:"storage_locator"`
	StorageKind string `json:"storage_kind"`
	UploadURL   string `json:"upload_url"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k,omitempty"`
	ModuleID    string   `json:"module_id,omitempty"`
	ResourceID  string   `json:"resource_id,omitempty"`
	ResourceIDs []string `json:"resource_ids,omitempty"`
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	ID       string  `json:"id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Metadata struct {
		ResourceID   string   `json:"resource_id"`
		ModuleID     string   `json:"module_id,omitempty"`
		ChunkIndex   int      `json:"chunk_index"`
		SourceKind   string   `json:"source_kind"`
		StartSeconds *float64 `json:"start_seconds,omitempty"`
	} `json:"metadata"`
}

// SearchResponse is the data of POST /search.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}
