// Package feed reads items and author metadata from the remote content
// source.
package feed

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSourceQuery wraps failures of the recent-items query.
	ErrSourceQuery = errors.New("content source query failed")
	// ErrMetadataLookup wraps failures of an author lookup.
	ErrMetadataLookup = errors.New("author lookup failed")
	// ErrAuthorNotFound is returned when the author does not exist.
	ErrAuthorNotFound = errors.New("author not found")
)

// Record is one item of the content feed.
type Record struct {
	ID          string    `json:"id"`
	AuthorRef   string    `json:"author_ref"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Body        string    `json:"body"`
}

// Author is the metadata printed next to an item.
type Author struct {
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle"`
}

// Source returns the most recently updated records, newest first.
type Source interface {
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Authors resolves an author reference.
type Authors interface {
	Lookup(ctx context.Context, ref string) (Author, error)
}
