// Package pagination implements keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor marks the last row of a page. Rows are ordered by
// (uploaded_at DESC, id DESC).
type Cursor struct {
	UploadedAt time.Time
	ID         string
}

// EncodeCursor builds an opaque, URL-safe cursor. An empty id yields "".
func EncodeCursor(id string, uploadedAt time.Time) string {
	if id == "" {
		return ""
	}
	raw := strconv.FormatInt(uploadedAt.UnixNano(), 10) + ":" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor from EncodeCursor. "" means the first page.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	nanos, id, ok := strings.Cut(string(decoded), ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{UploadedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// Admits reports whether a row sorts strictly after the cursor. A nil
// cursor admits every row.
func (c *Cursor) Admits(uploadedAt time.Time, id string) bool {
	if c == nil {
		return true
	}
	if !uploadedAt.Equal(c.UploadedAt) {
		return uploadedAt.Before(c.UploadedAt)
	}
	return id < c.ID
}

// Trim cuts a limit+1 fetch down to limit rows and returns the cursor for
// the next page ("" when this is the last one).
func Trim[T any](items []T, limit int, key func(T) (time.Time, string)) ([]T, string, bool) {
	if limit <= 0 || len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	uploadedAt, id := key(items[len(items)-1])
	return items, EncodeCursor(id, uploadedAt), true
}
