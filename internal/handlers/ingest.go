package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/adapters/registry"
	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/pipeline"
)

// ingestionSem limits concurrent ingestion goroutines to prevent resource exhaustion
var ingestionSem = make(chan struct{}, 4)

// adapterRegistry is wired by the server at startup.
var adapterRegistry *registry.Registry

// SetRegistry injects the adapter registry used by ingestion triggers.
func SetRegistry(reg *registry.Registry) {
	adapterRegistry = reg
}

// IngestStartedResponse represents the 202 response when ingestion is started
type IngestStartedResponse struct {
	Retailer string `json:"retailer" jsonschema:"required"`
	Status   string `json:"status" jsonschema:"required"`
	PollURL  string `json:"pollUrl" jsonschema:"required"`
}

// IngestRetailer triggers ingestion for one retailer asynchronously
// POST /internal/admin/ingest/:retailer
// Returns 202 Accepted immediately; progress is visible via the runs endpoints.
func IngestRetailer(c *gin.Context) {
	slug := c.Param("retailer")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Retailer parameter is required"})
		return
	}
	if adapterRegistry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingestion is not available"})
		return
	}

	id := config.RetailerID(slug)
	cfg, ok := config.Get(id)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown retailer: %s", slug)})
		return
	}

	// Each triggered run gets its own adapter so the fetch client and parse
	// cache never outlive the run or leak into a concurrent one.
	adapter, closeAdapter, err := adapterRegistry.Build(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to initialize adapter: %v", err)})
		return
	}

	go func() {
		ingestionSem <- struct{}{}
		defer func() { <-ingestionSem }()
		defer closeAdapter()

		store := database.NewStore(database.Pool())
		p := pipeline.New(store, adapter, cfg.Name, log.Logger)
		run, err := p.Run(context.Background())
		if err != nil {
			log.Error().Err(err).Str("retailer", slug).Msg("Ingestion run could not be recorded")
			return
		}
		log.Info().Str("retailer", slug).Str("run_id", run.ID).Str("status", run.Status).Msg("Triggered ingestion finished")
	}()

	c.JSON(http.StatusAccepted, IngestStartedResponse{
		Retailer: slug,
		Status:   "started",
		PollURL:  fmt.Sprintf("/internal/ingestion/runs?retailer=%s", slug),
	})
}
