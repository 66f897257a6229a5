package openai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultTranscriptionModel is the speech-to-text model for lesson audio
	DefaultTranscriptionModel = openai.Whisper1
	// fallbackConfidence applies when the backend reports no log probabilities
	fallbackConfidence = 0.9
)

// TranscriptionAPI defines the interface for speech-to-text calls
type TranscriptionAPI interface {
	CreateTranscription(ctx context.Context, audioPath string) (openai.AudioResponse, error)
}

// CreateTranscription uploads a local audio file and requests timed segments
func (a *OpenAIAdapter) CreateTranscription(ctx context.Context, audioPath string) (openai.AudioResponse, error) {
	return a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    a.transcriptionModel,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
}

// Transcriber turns extracted lesson audio into timed transcript segments
type Transcriber struct {
	api TranscriptionAPI
}

// NewTranscriber creates a Transcriber from the shared OpenAI configuration.
func NewTranscriber(cfg Config) *Transcriber {
	return &Transcriber{api: newAdapter(cfg)}
}

// Transcribe sends the audio file to the backend. Segment order and
// overlap cleanup are left to the caller.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (*domain.Transcript, error) {
	resp, err := t.api.CreateTranscription(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe audio: %w", err)
	}

	transcript := &domain.Transcript{
		Language:        languageCode(resp.Language),
		DurationSeconds: resp.Duration,
		Confidence:      fallbackConfidence,
	}

	if len(resp.Segments) == 0 {
		if text := strings.TrimSpace(resp.Text); text != "" {
			transcript.Segments = []domain.Segment{{Start: 0, End: resp.Duration, Text: text}}
		}
		return transcript, nil
	}

	var probSum float64
	for _, s := range resp.Segments {
		transcript.Segments = append(transcript.Segments, domain.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
		probSum += math.Exp(s.AvgLogprob)
	}
	transcript.Confidence = probSum / float64(len(resp.Segments))

	return transcript, nil
}

var languageNames = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"portuguese": "pt",
	"italian":    "it",
	"dutch":      "nl",
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
}

// languageCode maps the verbose_json language name onto an ISO 639-1 code.
func languageCode(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return domain.DefaultLanguage
	}
	if code, ok := languageNames[name]; ok {
		return code
	}
	return name
}
