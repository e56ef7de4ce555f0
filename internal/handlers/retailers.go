package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worthit/ingest-service/internal/adapters/config"
)

// RetailerInfo represents one supported retailer source
type RetailerInfo struct {
	Slug     string `json:"slug" jsonschema:"required"`
	Name     string `json:"name" jsonschema:"required"`
	Vertical string `json:"vertical" jsonschema:"required"`
	BaseURL  string `json:"baseUrl" jsonschema:"required"`
}

// ListRetailersResponse represents the response for listing supported retailers
type ListRetailersResponse struct {
	Retailers []RetailerInfo `json:"retailers" jsonschema:"required"`
}

// ListRetailers returns every retailer the service can ingest
// GET /internal/retailers
func ListRetailers(c *gin.Context) {
	retailers := make([]RetailerInfo, 0, len(config.RetailerIDs))
	for _, id := range config.RetailerIDs {
		cfg, ok := config.Get(id)
		if !ok {
			continue
		}
		retailers = append(retailers, RetailerInfo{
			Slug:     string(cfg.ID),
			Name:     cfg.Name,
			Vertical: cfg.Vertical,
			BaseURL:  cfg.BaseURL,
		})
	}
	c.JSON(http.StatusOK, ListRetailersResponse{Retailers: retailers})
}
