package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// Paging represents cursor-based pagination info in list responses.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// PagingNext holds the cursor for the next page.
type PagingNext struct {
	After string `json:"after"`
}

// NewPaging returns paging info pointing after the given id, or nil when
// there are no more pages.
func NewPaging(hasMore bool, after int64) *Paging {
	if !hasMore {
		return nil
	}
	return &Paging{Next: &PagingNext{After: strconv.FormatInt(after, 10)}}
}

// CollectionResponse is a generic paginated list response.
type CollectionResponse struct {
	Results []any   `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}
