package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/database"
)

// HealthResponse reports service liveness and database reachability.
type HealthResponse struct {
	Status    string `json:"status" jsonschema:"required"`
	Database  string `json:"database" jsonschema:"required"`
	Retailers int    `json:"retailers" jsonschema:"required"`
}

// HealthCheck reports whether the service can take traffic. A deployment
// without a database pool still answers ok, so the ops surface works for
// scrape-only setups.
// GET /health
func HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Retailers: len(config.RetailerIDs),
	}

	switch {
	case database.Pool() == nil:
		response.Database = "not configured"
	case database.Status(c.Request.Context()) != nil:
		response.Database = "disconnected"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	default:
		response.Database = "connected"
	}

	c.JSON(http.StatusOK, response)
}
