package domain

import "time"

// SourceKind records whether a chunk came from a video or a document
type SourceKind string

const (
	SourceKindVideo    SourceKind = "video"
	SourceKindDocument SourceKind = "document"
)

// SourceKindFor maps a resource type onto the chunk source kind.
func SourceKindFor(t ResourceType) SourceKind {
	if t.IsVideo() {
		return SourceKindVideo
	}
	return SourceKindDocument
}

// Chunk is a bounded-length slice of segment text, the unit of embedding
type Chunk struct {
	ResourceID   string
	ModuleID     string
	SegmentIndex int
	ChunkIndex   int
	SourceKind   SourceKind
	Content      string
	StartSeconds *float64
	EndSeconds   *float64
}

// EmbeddingRecord is a chunk with its vector, keyed by a generated id
type EmbeddingRecord struct {
	ID        string
	Chunk     Chunk
	Vector    []float32
	CreatedAt time.Time
}

// MetadataFilter restricts vector queries by metadata equality. Empty
// fields do not filter.
type MetadataFilter struct {
	ResourceID string
	ModuleID   string
	SourceKind SourceKind
}

// IsEmpty reports whether the filter restricts nothing.
func (f MetadataFilter) IsEmpty() bool {
	return f.ResourceID == "" && f.ModuleID == "" && f.SourceKind == ""
}

// Matches reports whether c satisfies every set field of f.
func (f MetadataFilter) Matches(c Chunk) bool {
	if f.ResourceID != "" && c.ResourceID != f.ResourceID {
		return false
	}
	if f.ModuleID != "" && c.ModuleID != f.ModuleID {
		return false
	}
	if f.SourceKind != "" && c.SourceKind != f.SourceKind {
		return false
	}
	return true
}

// ScoredChunk is one ranked query result
type ScoredChunk struct {
	ID    string
	Chunk Chunk
	Score float64
}
