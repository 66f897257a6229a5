package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.FixedZone("CET", 3600))

	encoded := EncodeCursor("res/42+a", ts)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "res/42+a", cursor.ID)
	assert.True(t, ts.Equal(cursor.UploadedAt))
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursor(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)

	for _, in := range []string{
		"not base64 %%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday:res-1")),
		base64.RawURLEncoding.EncodeToString([]byte("12345:")),
	} {
		_, err := DecodeCursor(in)
		assert.ErrorIs(t, err, ErrInvalidCursor, in)
	}
}

func TestCursor_Admits(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &Cursor{UploadedAt: ts, ID: "m"}

	assert.True(t, c.Admits(ts.Add(-time.Second), "z"))
	assert.False(t, c.Admits(ts.Add(time.Second), "a"))
	assert.True(t, c.Admits(ts, "a"))
	assert.False(t, c.Admits(ts, "m"))

	var none *Cursor
	assert.True(t, none.Admits(ts, "anything"))
}

func TestTrim(t *testing.T) {
	type row struct {
		id string
		at time.Time
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{"c", base.Add(2 * time.Hour)}, {"b", base.Add(time.Hour)}, {"a", base}}
	key := func(r row) (time.Time, string) { return r.at, r.id }

	page, next, more := Trim(rows, 2, key)
	assert.Len(t, page, 2)
	assert.True(t, more)

	cursor, err := DecodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "b", cursor.ID)
	assert.True(t, cursor.Admits(rows[2].at, rows[2].id))
	assert.False(t, cursor.Admits(rows[1].at, rows[1].id))

	page, next, more = Trim(rows, 3, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
	assert.False(t, more)
}
