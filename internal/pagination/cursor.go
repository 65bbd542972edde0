// Package pagination provides opaque keyset cursors for newest-first listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultLimit and MaxLimit bound page sizes accepted from clients.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the position after the last item of a page. Items are ordered
// by Timestamp (unix millis) descending, then ID descending.
type Cursor struct {
	Timestamp int64
	ID        string
}

// After reports whether an item with (ts, id) sorts after the cursor and so
// belongs on the next page.
func (c *Cursor) After(ts int64, id string) bool {
	if c == nil {
		return true
	}
	if ts != c.Timestamp {
		return ts < c.Timestamp
	}
	return id < c.ID
}

// Encode returns an opaque cursor string from a timestamp and ID.
func Encode(ts int64, id string) string {
	raw := fmt.Sprintf("%d|%s", ts, id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor string. Returns nil for empty input.
func Decode(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{Timestamp: n, ID: id}, nil
}

// ClampLimit applies DefaultLimit to non-positive values and caps at MaxLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ComputePage takes items fetched with limit+1, the requested limit, and a
// key extractor. It returns the trimmed page and the next cursor, which is
// empty on the last page.
func ComputePage[T any](items []T, limit int, key func(T) (int64, string)) ([]T, string) {
	if len(items) <= limit {
		return items, ""
	}
	items = items[:limit]
	ts, id := key(items[len(items)-1])
	return items, Encode(ts, id)
}
