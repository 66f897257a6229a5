package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/lessonindex/internal/domain"
	"github.com/cloo-solutions/lessonindex/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectFetcher struct {
	mock.Mock
}

func (m *MockObjectFetcher) HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ObjectMetadata), args.Error(1)
}

func (m *MockObjectFetcher) Download(ctx context.Context, key, path string) error {
	args := m.Called(ctx, key, path)
	return args.Error(0)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestAdapter(objects ObjectFetcher) *Adapter {
	video := newVideoExtractor(VideoConfig{}, nil, &fakeRunner{}, nil)
	return NewAdapter(video, objects, "", nil)
}

func TestAdapter_TextDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	mustWriteFile(t, path, "one two three four five\nsix seven eight nine ten\n")

	tr, err := newTestAdapter(nil).Extract(context.Background(), path, domain.StorageKindLocal, domain.ResourceTypeTXT)

	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 0.0, tr.Segments[0].Start)
	assert.Equal(t, 0.0, tr.Segments[0].End)
	assert.Equal(t, 10, tr.WordCount)
	assert.Equal(t, 1.0, tr.Confidence)
	assert.Equal(t, domain.DefaultLanguage, tr.Language)
}

func TestAdapter_MissingVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lecture.mp4")

	tr, err := newTestAdapter(nil).Extract(context.Background(), path, domain.StorageKindLocal, domain.ResourceTypeVideo)

	require.Error(t, err)
	assert.Nil(t, tr)
	assert.True(t, domain.HasCode(err, domain.ErrCodeExtraction))
	assert.Contains(t, err.Error(), "does not exist")
	assert.Contains(t, err.Error(), path)
}

func TestAdapter_MissingDocument(t *testing.T) {
	_, err := newTestAdapter(nil).Extract(context.Background(), "/nope/missing.pdf", domain.StorageKindLocal, domain.ResourceTypePDF)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Document file does not exist")
}

func TestAdapter_DirectoryIsMissing(t *testing.T) {
	_, err := newTestAdapter(nil).Extract(context.Background(), t.TempDir(), domain.StorageKindLocal, domain.ResourceTypeTXT)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestAdapter_UnsupportedType(t *testing.T) {
	_, err := newTestAdapter(nil).Extract(context.Background(), "/x.pptx", domain.StorageKindLocal, "pptx")

	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.ErrCodeExtraction))
}

func TestAdapter_UnreadablePDFDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	mustWriteFile(t, path, "this is not a pdf")

	tr, err := newTestAdapter(nil).Extract(context.Background(), path, domain.StorageKindLocal, domain.ResourceTypePDF)

	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, 0.0, tr.Confidence)
	assert.Equal(t, placeholderDocumentRead, tr.Segments[0].Text)
}

func TestAdapter_EmptyDocumentDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	mustWriteFile(t, path, "   \n")

	tr, err := newTestAdapter(nil).Extract(context.Background(), path, domain.StorageKindLocal, domain.ResourceTypeTXT)

	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.Confidence)
	assert.Equal(t, placeholderEmptyText, tr.Segments[0].Text)
}

func TestAdapter_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handout.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Week one</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Goroutines </w:t></w:r><w:r><w:t>and channels</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	tr, err := newTestAdapter(nil).Extract(context.Background(), path, domain.StorageKindLocal, domain.ResourceTypeDOCX)

	require.NoError(t, err)
	assert.Equal(t, "Week one\nGoroutines and channels", tr.Segments[0].Text)
	assert.Equal(t, 5, tr.WordCount)
	assert.Equal(t, 1.0, tr.Confidence)
}

func TestAdapter_RemoteWithoutObjectStore(t *testing.T) {
	tr, err := newTestAdapter(nil).Extract(context.Background(), "drive:abc123", domain.StorageKindRemote, domain.ResourceTypeVideo)

	require.NoError(t, err)
	require.Len(t, tr.Segments, 1)
	assert.Equal(t, placeholderRemote, tr.Segments[0].Text)
	assert.Equal(t, 0.0, tr.Confidence)
}

func TestAdapter_RemoteDriveReferenceSkipsObjectStore(t *testing.T) {
	objects := new(MockObjectFetcher)

	tr, err := newTestAdapter(objects).Extract(context.Background(), "https://drive.google.com/file/d/1", domain.StorageKindRemote, domain.ResourceTypePDF)

	require.NoError(t, err)
	assert.Equal(t, placeholderRemote, tr.Segments[0].Text)
	objects.AssertNotCalled(t, "HeadObject", mock.Anything, mock.Anything)
}

func TestAdapter_RemoteMissingObject(t *testing.T) {
	objects := new(MockObjectFetcher)
	objects.On("HeadObject", mock.Anything, "videos/gone.mp4").Return(nil, storage.ErrObjectNotFound)

	_, err := newTestAdapter(objects).Extract(context.Background(), "videos/gone.mp4", domain.StorageKindRemote, domain.ResourceTypeVideo)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	objects.AssertExpectations(t)
}

func TestAdapter_RemoteDownloadsAndReads(t *testing.T) {
	objects := new(MockObjectFetcher)
	objects.On("HeadObject", mock.Anything, "docs/reading.txt").Return(&storage.ObjectMetadata{ContentLength: 11}, nil)
	objects.On("Download", mock.Anything, "docs/reading.txt", mock.MatchedBy(func(p string) bool {
		return filepath.Ext(p) == ".txt"
	})).Run(func(args mock.Arguments) {
		mustWriteFile(t, args.String(2), "remote text")
	}).Return(nil)

	tr, err := newTestAdapter(objects).Extract(context.Background(), "docs/reading.txt", domain.StorageKindRemote, domain.ResourceTypeTXT)

	require.NoError(t, err)
	assert.Equal(t, "remote text", tr.Segments[0].Text)
	assert.Equal(t, 2, tr.WordCount)
	objects.AssertExpectations(t)
}

func TestAdapter_RemoteHeadErrorDegrades(t *testing.T) {
	objects := new(MockObjectFetcher)
	objects.On("HeadObject", mock.Anything, "docs/x.pdf").Return(nil, errors.New("timeout"))

	tr, err := newTestAdapter(objects).Extract(context.Background(), "docs/x.pdf", domain.StorageKindRemote, domain.ResourceTypePDF)

	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.Confidence)
}
