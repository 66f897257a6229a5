package service

import (
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
)

// ChunkConfig controls word-window chunking of transcript segments.
type ChunkConfig struct {
	MaxWords     int
	OverlapWords int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxWords:     512,
		OverlapWords: 50,
	}
}

// Chunk splits text into windows of at most maxWords whitespace-delimited
// words. Consecutive windows share overlapWords words. Empty text yields no
// chunks. An overlap that would stall the window is clamped to maxWords-1.
func Chunk(text string, maxWords, overlapWords int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 {
		maxWords = DefaultChunkConfig().MaxWords
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords - 1
	}
	if len(words) <= maxWords {
		return []string{strings.Join(words, " ")}
	}

	step := maxWords - overlapWords
	chunks := make([]string, 0, len(words)/step+1)
	for start := 0; ; start += step {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}

	return chunks
}

// BuildChunks chunks every segment of the transcript and attaches
// provenance. Chunk indexes run across the whole resource.
func BuildChunks(resource *domain.Resource, transcript *domain.Transcript, cfg ChunkConfig) []domain.Chunk {
	kind := domain.SourceKindFor(resource.Type)
	chunks := make([]domain.Chunk, 0, len(transcript.Segments))

	index := 0
	for segIdx, seg := range transcript.Segments {
		for _, text := range Chunk(seg.Text, cfg.MaxWords, cfg.OverlapWords) {
			c := domain.Chunk{
				ResourceID:   resource.ID,
				ModuleID:     resource.ModuleID,
				SegmentIndex: segIdx,
				ChunkIndex:   index,
				SourceKind:   kind,
				Content:      text,
			}
			if kind == domain.SourceKindVideo {
				start, end := seg.Start, seg.End
				c.StartSeconds = &start
				c.EndSeconds = &end
			}
			chunks = append(chunks, c)
			index++
		}
	}

	return chunks
}
