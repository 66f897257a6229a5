// Package extract turns stored learning resources into transcripts.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/logger"
	"github.com/cloo-solutions/lessonindex/internal/storage"
)

const (
	placeholderRemote       = "Drive file processing requires additional implementation"
	placeholderDocumentRead = "Document text extraction failed"
	placeholderEmptyText    = "No extractable text found in document"
)

// ObjectFetcher reads remote resource media from object storage.
type ObjectFetcher interface {
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
	Download(ctx context.Context, key, path string) error
}

// Adapter puts video and document extraction behind one call
type Adapter struct {
	readers map[domain.ResourceType]DocumentReader
	video   *VideoExtractor
	objects ObjectFetcher
	workDir string
	log     *logger.Logger
}

// NewAdapter creates an Adapter. objects may be nil, in which case remote
// locators produce placeholder transcripts.
func NewAdapter(video *VideoExtractor, objects ObjectFetcher, workDir string, log *logger.Logger) *Adapter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Adapter{
		readers: DefaultDocumentReaders(),
		video:   video,
		objects: objects,
		workDir: workDir,
		log:     log.With("component", "extractor"),
	}
}

// Extract reads the resource at locator. Only a missing source or an
// unsupported type is an error.
func (a *Adapter) Extract(ctx context.Context, locator string, kind domain.StorageKind, resourceType domain.ResourceType) (*domain.Transcript, error) {
	if !resourceType.IsVideo() && !resourceType.IsDocument() {
		return nil, domain.NewExtractionError(fmt.Sprintf("unsupported resource type: %s", resourceType), nil)
	}

	if kind == domain.StorageKindRemote {
		return a.extractRemote(ctx, locator, resourceType)
	}
	return a.extractLocal(ctx, locator, resourceType)
}

func (a *Adapter) extractLocal(ctx context.Context, path string, resourceType domain.ResourceType) (*domain.Transcript, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewExtractionError(missingFileMessage(kindLabel(resourceType), path), nil)
		}
		return nil, domain.NewExtractionError(fmt.Sprintf("cannot access %s", path), err)
	}

	if resourceType.IsVideo() {
		return a.video.Extract(ctx, path), nil
	}
	return a.extractDocument(path, resourceType), nil
}

func (a *Adapter) extractDocument(path string, resourceType domain.ResourceType) *domain.Transcript {
	read, ok := a.readers[resourceType]
	if !ok {
		return domain.NewDocumentTranscript("", placeholderDocumentRead, 0)
	}

	text, err := read(path)
	if err != nil {
		a.log.Warn("document read failed", "path", path, "type", resourceType, "error", err)
		return domain.NewDocumentTranscript("", placeholderDocumentRead, 0)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NewDocumentTranscript("", placeholderEmptyText, 0)
	}
	return domain.NewDocumentTranscript("", text, 1.0)
}

func (a *Adapter) extractRemote(ctx context.Context, locator string, resourceType domain.ResourceType) (*domain.Transcript, error) {
	if a.objects == nil || isDriveReference(locator) {
		a.log.Info("remote locator cannot be streamed, using placeholder", "locator", locator)
		return remotePlaceholder(), nil
	}

	if _, err := a.objects.HeadObject(ctx, locator); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.NewExtractionError(missingFileMessage("Remote", locator), nil)
		}
		a.log.Warn("remote head failed, using placeholder", "locator", locator, "error", err)
		return remotePlaceholder(), nil
	}

	tmpDir, err := os.MkdirTemp(a.workDir, "lessonindex-remote-*")
	if err != nil {
		return remotePlaceholder(), nil
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "source"+filepath.Ext(locator))
	if err := a.objects.Download(ctx, locator, path); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.NewExtractionError(missingFileMessage("Remote", locator), nil)
		}
		a.log.Warn("remote download failed, using placeholder", "locator", locator, "error", err)
		return remotePlaceholder(), nil
	}

	return a.extractLocal(ctx, path, resourceType)
}

func remotePlaceholder() *domain.Transcript {
	return domain.NewDocumentTranscript("", placeholderRemote, 0)
}

// isDriveReference matches third-party drive links that cannot be fetched
// from the object store.
func isDriveReference(locator string) bool {
	l := strings.ToLower(locator)
	return strings.HasPrefix(l, "drive:") ||
		strings.Contains(l, "drive.google.com") ||
		strings.Contains(l, "docs.google.com")
}

func kindLabel(t domain.ResourceType) string {
	if t.IsVideo() {
		return "Video"
	}
	return "Document"
}
