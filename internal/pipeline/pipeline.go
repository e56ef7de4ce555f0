// Package pipeline drives one ingestion run for one retailer: list pages,
// parse listings, fetch detail, normalize, match, persist. Item failures are
// isolated; only listPages failures or persistence of the run row itself can
// fail a whole run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/worthit/ingest-service/internal/adapters/base"
	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/matching"
	"github.com/worthit/ingest-service/internal/product"
	"github.com/worthit/ingest-service/internal/telemetry"
)

// Store is the persistence surface the pipeline writes through. Implemented
// by database.Store.
type Store interface {
	matching.Store

	EnsureRetailer(ctx context.Context, slug, displayName, vertical string) (*database.Retailer, error)
	ListingBySource(ctx context.Context, retailerID int64, sourceProductID string) (*database.RetailerListing, error)
	GetCanonical(ctx context.Context, id string) (*database.CanonicalProduct, error)
	InsertCanonical(ctx context.Context, p *database.CanonicalProduct) error
	UpdateCanonical(ctx context.Context, p *database.CanonicalProduct) error
	InsertListing(ctx context.Context, l *database.RetailerListing) error
	UpdateListing(ctx context.Context, l *database.RetailerListing) error
	InsertPrice(ctx context.Context, p *database.PriceObservation) error
	CreateRun(ctx context.Context, retailerID int64) (*database.IngestionRun, error)
	FinishRun(ctx context.Context, run *database.IngestionRun) error
}

// Pipeline runs ingestion for a single adapter.
type Pipeline struct {
	store   Store
	adapter base.SourceAdapter
	matcher *matching.Engine
	metrics *telemetry.IngestMetrics
	logger  zerolog.Logger
	tracer  trace.Tracer

	displayName string
}

// New wires a pipeline for one adapter. displayName labels the retailer row;
// pass the slug when no prettier name is known.
func New(store Store, adapter base.SourceAdapter, displayName string, logger zerolog.Logger) *Pipeline {
	if displayName == "" {
		displayName = adapter.Slug()
	}
	return &Pipeline{
		store:       store,
		adapter:     adapter,
		matcher:     matching.NewEngine(store),
		metrics:     telemetry.NewIngestMetrics(),
		logger:      logger.With().Str("component", "pipeline").Str("retailer", adapter.Slug()).Logger(),
		tracer:      otel.Tracer("ingest-service/pipeline"),
		displayName: displayName,
	}
}

// Run executes one full ingestion pass and returns the finished run row.
// A non-nil error means the run row itself could not be managed; scrape and
// item failures are reported through the run's status and counters instead.
func (p *Pipeline) Run(ctx context.Context) (*database.IngestionRun, error) {
	ctx, span := p.tracer.Start(ctx, "ingest.run",
		trace.WithAttributes(attribute.String("retailer", p.adapter.Slug())))
	defer span.End()

	retailer, err := p.store.EnsureRetailer(ctx, p.adapter.Slug(), p.displayName, p.adapter.Vertical())
	if err != nil {
		return nil, fmt.Errorf("ensure retailer: %w", err)
	}

	run, err := p.store.CreateRun(ctx, retailer.ID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	started := time.Now()
	p.logger.Info().Str("run_id", run.ID).Msg("Starting ingestion run")

	p.execute(ctx, retailer.ID, run)

	run.UsedFixture = p.adapter.UsedFixtureFallback()
	if run.UsedFixture {
		p.metrics.RecordFixtureFallback(p.adapter.Slug())
	}
	// The run row must be finalized even when the run was cancelled.
	if err := p.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}

	p.metrics.RecordRun(p.adapter.Slug(), run.Status, time.Since(started))
	p.logger.Info().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("total", run.ItemsTotal).
		Int("new", run.ItemsNew).
		Int("updated", run.ItemsUpdated).
		Int("failed", run.ItemsFailed).
		Bool("used_fixture", run.UsedFixture).
		Msg("Ingestion run finished")
	return run, nil
}

// execute fills the run's counters and final status. Cancellation is honoured
// at page and listing boundaries; the run row still gets finalized.
func (p *Pipeline) execute(ctx context.Context, retailerID int64, run *database.IngestionRun) {
	pages, err := p.adapter.ListPages(ctx)
	if err != nil {
		run.Status = database.RunStatusFailed
		run.ErrorSummary = err.Error()
		p.logger.Error().Err(err).Msg("Listing pages failed")
		return
	}

	for _, page := range pages {
		if ctx.Err() != nil {
			run.Status = database.RunStatusFailed
			run.ErrorSummary = ctx.Err().Error()
			return
		}

		listings, err := p.adapter.ParseListing(ctx, page)
		if err != nil {
			run.ItemsFailed++
			p.metrics.RecordItem(p.adapter.Slug(), "failed")
			p.logger.Warn().Err(err).Str("url", page.URL).Msg("Parse listing failed")
			continue
		}

		for _, listing := range listings {
			if ctx.Err() != nil {
				run.Status = database.RunStatusFailed
				run.ErrorSummary = ctx.Err().Error()
				return
			}
			run.ItemsTotal++
			isNew, err := p.processListing(ctx, retailerID, listing)
			if err != nil {
				run.ItemsFailed++
				p.metrics.RecordItem(p.adapter.Slug(), "failed")
				p.logger.Warn().Err(err).Str("source_product_id", listing.SourceProductID).Msg("Item failed")
				continue
			}
			if isNew {
				run.ItemsNew++
				p.metrics.RecordItem(p.adapter.Slug(), "new")
			} else {
				run.ItemsUpdated++
				p.metrics.RecordItem(p.adapter.Slug(), "updated")
			}
		}
	}

	run.Status = database.RunStatusCompleted
}

func (p *Pipeline) processListing(ctx context.Context, retailerID int64, listing product.RawListing) (bool, error) {
	detail, err := p.adapter.FetchDetail(ctx, listing)
	if err != nil {
		return false, fmt.Errorf("fetch detail: %w", err)
	}
	normalized := p.adapter.Normalize(listing, detail)
	return p.upsertItem(ctx, retailerID, normalized)
}

func (p *Pipeline) recordMatchTier(tier string) {
	p.metrics.RecordMatchTier(tier)
}
