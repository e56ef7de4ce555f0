package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	err = store.Put(ctx, "snapshots/pb-tech/2026-08-25/abc.html", []byte("<html></html>"), &Metadata{
		ContentType: "text/html",
		Retailer:    "pb-tech",
		SourceURL:   "https://www.pbtech.co.nz/product/X",
	})
	require.NoError(t, err)

	body, err := store.Get(ctx, "snapshots/pb-tech/2026-08-25/abc.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))

	meta, err := store.Meta(ctx, "snapshots/pb-tech/2026-08-25/abc.html")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "pb-tech", meta.Retailer)
	assert.Equal(t, "text/html", meta.ContentType)
}

func TestLocalMetaAbsentWhenSavedWithoutSidecar(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "bare.html", []byte("x"), nil))

	meta, err := store.Meta(ctx, "bare.html")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestLocalExistsAndDelete(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := store.Exists(ctx, "missing.html")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "a/b.html", []byte("x"), nil))
	ok, err = store.Exists(ctx, "a/b.html")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a/b.html"))
	ok, err = store.Exists(ctx, "a/b.html")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside.html", "a/../../outside.html", "/etc/passwd", "."} {
		err := store.Put(ctx, key, []byte("x"), nil)
		assert.Error(t, err, key)
	}
}

func TestSnapshotsSaveAndListDay(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	snaps := NewSnapshots(store)

	ctx := context.Background()
	require.NoError(t, snaps.SavePage(ctx, "pb-tech", "https://www.pbtech.co.nz/product/A", "<html>a</html>"))
	require.NoError(t, snaps.SavePage(ctx, "pb-tech", "https://www.pbtech.co.nz/product/B", "<html>b</html>"))
	// Same URL again on the same day overwrites, not duplicates.
	require.NoError(t, snaps.SavePage(ctx, "pb-tech", "https://www.pbtech.co.nz/product/A", "<html>a2</html>"))

	keys, err := snaps.ListDay(ctx, "pb-tech", time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	body, err := snaps.Open(ctx, SnapshotKey("pb-tech", time.Now().UTC(), "https://www.pbtech.co.nz/product/A"))
	require.NoError(t, err)
	assert.Equal(t, "<html>a2</html>", string(body))
}

func TestSnapshotKeyIsStable(t *testing.T) {
	day := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	k1 := SnapshotKey("jb-hi-fi", day, "https://www.jbhifi.co.nz/products/x")
	k2 := SnapshotKey("jb-hi-fi", day, "https://www.jbhifi.co.nz/products/x")
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "snapshots/jb-hi-fi/2026-08-25/")
}
