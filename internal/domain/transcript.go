package domain

import (
	"sort"
	"strings"
	"time"
)

// DefaultLanguage is reported when the extractor cannot detect one
const DefaultLanguage = "en"

// Segment is a time-scoped span of extracted text. Documents use 0/0.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the extracted textual content of one resource
type Transcript struct {
	ResourceID      string
	Segments        []Segment
	WordCount       int
	Language        string
	Confidence      float64
	DurationSeconds float64
	CreatedAt       time.Time
}

// NewDocumentTranscript creates a transcript holding one segment that spans
// the whole document.
func NewDocumentTranscript(resourceID, text string, confidence float64) *Transcript {
	return &Transcript{
		ResourceID: resourceID,
		Segments:   []Segment{{Start: 0, End: 0, Text: text}},
		WordCount:  CountWords(text),
		Language:   DefaultLanguage,
		Confidence: confidence,
	}
}

// Text joins all segment texts with a single space.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// CountWords counts whitespace-delimited words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// NormalizeSegments orders segments by start offset, drops blank ones and
// clips each start so it never precedes the previous segment's end.
func NormalizeSegments(segments []Segment) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, s := range segments {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End < s.Start {
			s.End = s.Start
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	for i := 1; i < len(out); i++ {
		prevEnd := out[i-1].End
		if out[i].Start < prevEnd {
			out[i].Start = prevEnd
			if out[i].End < out[i].Start {
				out[i].End = out[i].Start
			}
		}
	}

	return out
}
