// Package registry manages retailer adapter construction and lookup. Adapters
// are built lazily from their retailer config and cached for the process
// lifetime.
package registry

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/worthit/ingest-service/internal/adapters/base"
	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/adapters/retailers"
	"github.com/worthit/ingest-service/internal/browser"
	"github.com/worthit/ingest-service/internal/fetch"
	"github.com/worthit/ingest-service/internal/storage"
)

// Mode selects how adapters source their data.
type Mode string

const (
	// ModeLive scrapes retailer sites, falling back to fixtures per config.
	ModeLive Mode = "live"
	// ModeFixture serves only the bundled offline datasets.
	ModeFixture Mode = "fixture"
)

// Options configure adapter construction.
type Options struct {
	Mode        Mode
	FixturesDir string
	// ArchiveDir enables raw page snapshots when non-empty.
	ArchiveDir string
	// Override mutates a retailer's config before its adapter is built,
	// carrying per-run CLI flags over the shipped defaults.
	Override func(*config.RetailerConfig)
	Logger   zerolog.Logger
}

// Registry caches one adapter per retailer.
type Registry struct {
	mu       sync.RWMutex
	opts     Options
	adapters map[config.RetailerID]base.SourceAdapter
	closers  []func()
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.Mode == "" {
		opts.Mode = ModeLive
	}
	return &Registry{
		opts:     opts,
		adapters: make(map[config.RetailerID]base.SourceAdapter),
	}
}

// Register installs a pre-built adapter, mainly for tests.
func (r *Registry) Register(id config.RetailerID, adapter base.SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[id] = adapter
}

// Get retrieves an already-built adapter.
func (r *Registry) Get(id config.RetailerID) (base.SourceAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// GetOrInit retrieves or builds the adapter for a retailer.
func (r *Registry) GetOrInit(id config.RetailerID) (base.SourceAdapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[id]; ok {
		return adapter, nil
	}

	cfg, ok := config.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown retailer: %s", id)
	}
	if r.opts.Override != nil {
		r.opts.Override(&cfg)
	}

	adapter, closer, err := r.build(cfg)
	if err != nil {
		return nil, err
	}

	r.adapters[id] = adapter
	r.closers = append(r.closers, closer)
	return adapter, nil
}

// Build constructs a fresh adapter outside the cache. Each ingestion run gets
// its own HTTP client and parse cache this way; the returned closer releases
// any browser renderer and must be called once the run finishes.
func (r *Registry) Build(id config.RetailerID) (base.SourceAdapter, func(), error) {
	cfg, ok := config.Get(id)
	if !ok {
		return nil, nil, fmt.Errorf("unknown retailer: %s", id)
	}
	if r.opts.Override != nil {
		r.opts.Override(&cfg)
	}
	return r.build(cfg)
}

func (r *Registry) build(cfg config.RetailerConfig) (base.SourceAdapter, func(), error) {
	if r.opts.Mode == ModeFixture {
		if cfg.FallbackFixture == "" {
			return nil, nil, fmt.Errorf("retailer %s has no fixture dataset", cfg.ID)
		}
		adapter := base.NewFixtureAdapter(string(cfg.ID), cfg.Vertical, r.opts.FixturesDir, cfg.FallbackFixture)
		return adapter, func() {}, nil
	}
	adapter, closer := r.buildLive(cfg)
	return adapter, closer, nil
}

func (r *Registry) buildLive(cfg config.RetailerConfig) (*base.LiveAdapter, func()) {
	client := fetch.NewClient(fetch.Config{
		Timeout:      cfg.Timeout,
		RequestDelay: cfg.RequestDelay,
		MaxRetries:   cfg.MaxFetchRetries,
		RetryBackoff: cfg.RetryBackoff,
		ProxyURL:     cfg.ProxyURL,
	})
	closer := func() {}
	if cfg.BrowserFallback {
		renderer := browser.New(browser.Config{
			Timeout:  cfg.BrowserTimeout,
			ProxyURL: cfg.BrowserProxyURL,
		}, r.opts.Logger)
		client.SetRenderer(renderer)
		closer = renderer.Close
	}
	if r.opts.ArchiveDir != "" {
		local, err := storage.NewLocal(r.opts.ArchiveDir)
		if err != nil {
			r.opts.Logger.Warn().Err(err).Str("dir", r.opts.ArchiveDir).Msg("Snapshot archive disabled")
		} else {
			client.SetArchive(storage.NewSnapshots(local), string(cfg.ID))
		}
	}
	return base.NewLiveAdapter(cfg, client, r.opts.FixturesDir, retailers.HooksFor(cfg.ID), r.opts.Logger), closer
}

// List returns the IDs of all built adapters.
func (r *Registry) List() []config.RetailerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]config.RetailerID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// Close shuts down any headless browser processes cached adapters started.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, closeAdapter := range r.closers {
		closeAdapter()
	}
	r.closers = nil
}
