package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// Snapshots writes raw page bodies into a Backend, one file per fetched URL
// per day. It implements fetch.Archiver.
type Snapshots struct {
	store Backend
}

// NewSnapshots creates a snapshot archive over a storage backend.
func NewSnapshots(store Backend) *Snapshots {
	return &Snapshots{store: store}
}

// SavePage stores one fetched page body. Re-fetching the same URL on the same
// day overwrites the earlier snapshot, so a day holds at most one copy per URL.
func (s *Snapshots) SavePage(ctx context.Context, retailer, pageURL, body string) error {
	now := time.Now().UTC()
	key := SnapshotKey(retailer, now, pageURL)
	return s.store.Put(ctx, key, []byte(body), &Metadata{
		ContentType: "text/html",
		Retailer:    retailer,
		SourceURL:   pageURL,
		FetchedAt:   now,
	})
}

// ListDay returns the snapshot keys captured for a retailer on a given day.
func (s *Snapshots) ListDay(ctx context.Context, retailer string, day time.Time) ([]string, error) {
	prefix := fmt.Sprintf("snapshots/%s/%s/", retailer, day.Format("2006-01-02"))
	return s.store.List(ctx, prefix)
}

// Open returns the body of a stored snapshot.
func (s *Snapshots) Open(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, key)
}

// SnapshotKey builds the storage key for a page snapshot.
func SnapshotKey(retailer string, day time.Time, pageURL string) string {
	digest := sha1.Sum([]byte(pageURL))
	return fmt.Sprintf("snapshots/%s/%s/%s.html",
		retailer, day.Format("2006-01-02"), hex.EncodeToString(digest[:])[:16])
}
