package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentTranscript(t *testing.T) {
	tr := NewDocumentTranscript("r1", "one two three four five six seven eight nine ten", 1.0)

	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 0.0, tr.Segments[0].Start)
	assert.Equal(t, 0.0, tr.Segments[0].End)
	assert.Equal(t, 10, tr.WordCount)
	assert.Equal(t, DefaultLanguage, tr.Language)
	assert.Equal(t, 1.0, tr.Confidence)
}

func TestTranscript_Text(t *testing.T) {
	tr := &Transcript{Segments: []Segment{{Text: "hello"}, {Text: ""}, {Text: "world"}}}
	assert.Equal(t, "hello world", tr.Text())
}

func TestNormalizeSegments(t *testing.T) {
	in := []Segment{
		{Start: 5, End: 9, Text: "second"},
		{Start: 0, End: 6, Text: "first"},
		{Start: 9, End: 10, Text: "   "},
		{Start: 12, End: 11, Text: "third"},
	}

	out := NormalizeSegments(in)

	require.Len(t, out, 3)
	assert.Equal(t, "first", out[0].Text)
	assert.Equal(t, "second", out[1].Text)
	assert.Equal(t, "third", out[2].Text)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i].Start, out[i-1].End)
		assert.GreaterOrEqual(t, out[i].End, out[i].Start)
	}
}

func TestMetadataFilter(t *testing.T) {
	c := Chunk{ResourceID: "r1", ModuleID: "m1", SourceKind: SourceKindVideo}

	assert.True(t, MetadataFilter{}.IsEmpty())
	assert.True(t, MetadataFilter{}.Matches(c))
	assert.True(t, MetadataFilter{ModuleID: "m1"}.Matches(c))
	assert.False(t, MetadataFilter{ModuleID: "m2"}.Matches(c))
	assert.False(t, MetadataFilter{ResourceID: "r1", SourceKind: SourceKindDocument}.Matches(c))
	assert.Equal(t, SourceKindDocument, SourceKindFor(ResourceTypePDF))
	assert.Equal(t, SourceKindVideo, SourceKindFor(ResourceTypeVideo))
}
