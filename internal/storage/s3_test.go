package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(fmt.Errorf("head: %w", &types.NotFound{})))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.False(t, isNotFound(errors.New("access denied")))
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3ClientConfig{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "lessonindex-media",
		UsePathStyle:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, "lessonindex-media", client.bucket)

	url, err := client.GenerateUploadURL(context.Background(), "videos/intro.mp4", "video/mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/lessonindex-media/videos/intro.mp4?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900")
}
