package extract

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
)

const (
	placeholderVideoFailed   = "Video processing failed"
	placeholderNoTranscriber = "Transcription backend not configured"
	placeholderNoSpeech      = "No speech detected in video"
	audioSampleRate          = "16000"
)

// Transcriber turns a 16 kHz mono WAV file into timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*domain.Transcript, error)
}

// VideoConfig configures the external media tools.
type VideoConfig struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string
}

// VideoExtractor probes, transcodes and transcribes video files
type VideoExtractor struct {
	ffmpegPath  string
	ffprobePath string
	workDir     string
	runner      commandRunner
	transcriber Transcriber
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	log         *logger.Logger
}

// NewVideoExtractor creates a VideoExtractor. A nil transcriber yields
// placeholder transcripts.
func NewVideoExtractor(cfg VideoConfig, transcriber Transcriber, log *logger.Logger) *VideoExtractor {
	return newVideoExtractor(cfg, transcriber, &execRunner{}, log)
}

func newVideoExtractor(cfg VideoConfig, transcriber Transcriber, runner commandRunner, log *logger.Logger) *VideoExtractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &VideoExtractor{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		workDir:     cfg.WorkDir,
		runner:      runner,
		transcriber: transcriber,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		log:         log.With("component", "video_extractor"),
	}
}

// Extract transcribes the video at path. The file must exist; every later
// failure degrades to a single placeholder segment with confidence 0.
func (v *VideoExtractor) Extract(ctx context.Context, path string) *domain.Transcript {
	duration := v.probeDuration(ctx, path)

	if v.transcriber == nil {
		return placeholderTranscript(placeholderNoTranscriber, duration)
	}

	tmpDir, err := v.mkdirTemp(v.workDir, "lessonindex-audio-*")
	if err != nil {
		v.log.Warn("failed to create audio work dir", "error", err)
		return placeholderTranscript(placeholderVideoFailed, duration)
	}
	defer func() {
		_ = v.removeAll(tmpDir)
	}()

	audioPath := filepath.Join(tmpDir, "audio.wav")
	if _, err := v.runner.Run(ctx, v.ffmpegPath,
		"-y", "-i", path,
		"-vn", "-ac", "1", "-ar", audioSampleRate,
		"-f", "wav", audioPath,
	); err != nil {
		v.log.Warn("audio extraction failed", "path", path, "error", err)
		return placeholderTranscript(placeholderVideoFailed, duration)
	}

	result, err := v.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		v.log.Warn("transcription failed", "path", path, "error", err)
		return placeholderTranscript(placeholderVideoFailed, duration)
	}

	segments := domain.NormalizeSegments(result.Segments)
	if len(segments) == 0 {
		return placeholderTranscript(placeholderNoSpeech, duration)
	}

	if duration == 0 {
		duration = segments[len(segments)-1].End
	}

	transcript := &domain.Transcript{
		Segments:        segments,
		Language:        result.Language,
		Confidence:      clampConfidence(result.Confidence),
		DurationSeconds: duration,
	}
	if transcript.Language == "" {
		transcript.Language = domain.DefaultLanguage
	}
	transcript.WordCount = domain.CountWords(transcript.Text())

	return transcript
}

// probeDuration asks ffprobe for the container duration. 0 means unknown.
func (v *VideoExtractor) probeDuration(ctx context.Context, path string) float64 {
	res, err := v.runner.Run(ctx, v.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		v.log.Debug("ffprobe failed", "path", path, "error", err)
		return 0
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}

func placeholderTranscript(message string, duration float64) *domain.Transcript {
	return &domain.Transcript{
		Segments:        []domain.Segment{{Start: 0, End: duration, Text: message}},
		WordCount:       domain.CountWords(message),
		Language:        domain.DefaultLanguage,
		Confidence:      0,
		DurationSeconds: duration,
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func missingFileMessage(kind string, path string) string {
	return fmt.Sprintf("%s file does not exist at path: %s", kind, path)
}
