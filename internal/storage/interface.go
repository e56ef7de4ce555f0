// Package storage archives raw fetched page bodies so extraction regressions
// can be replayed against the exact HTML a run saw.
package storage

import (
	"context"
	"time"
)

// Metadata rides alongside a stored body in a JSON sidecar.
type Metadata struct {
	ContentType string    `json:"contentType,omitempty"`
	Retailer    string    `json:"retailer,omitempty"`
	SourceURL   string    `json:"sourceUrl,omitempty"`
	FetchedAt   time.Time `json:"fetchedAt,omitempty"`
}

// Backend stores snapshot bodies by key. The local filesystem is the only
// implementation today; the interface keeps an object-store backend possible.
type Backend interface {
	Put(ctx context.Context, key string, body []byte, meta *Metadata) error
	Get(ctx context.Context, key string) ([]byte, error)
	Meta(ctx context.Context, key string) (*Metadata, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
