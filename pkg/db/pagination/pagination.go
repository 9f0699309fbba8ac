// Package pagination implements cursor-based pagination for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Pagination carries the caller-supplied page parameters.
type Pagination struct {
	PageToken string
	PageSize  int
}

// Cursor identifies the last row of a page.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

// PageInfo describes the page returned to the caller.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// EncodeCursor serializes a cursor into an opaque page token.
func EncodeCursor(cursor Cursor) (string, error) {
	raw, err := json.Marshal(cursor)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses an opaque page token. An empty token yields a zero
// cursor and no error.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, err
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return Cursor{}, err
	}
	return cursor, nil
}

// BuildCursorPageInfo computes page info for a result slice fetched with
// pageSize+1 rows. tokenFor derives the cursor token of a row.
func BuildCursorPageInfo[T any](items []T, pageSize int, tokenFor func(T) string) *PageInfo {
	if pageSize <= 0 || len(items) <= pageSize {
		return &PageInfo{}
	}
	last := items[pageSize-1]
	return &PageInfo{
		NextPageToken: tokenFor(last),
		HasMore:       true,
	}
}
