package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/worthit/ingest-service/internal/database"
)

// CreateOverrideRequest represents the request for pinning a listing to a product
type CreateOverrideRequest struct {
	ListingID string `json:"listingId" binding:"required" jsonschema:"required"`
	ProductID string `json:"productId" binding:"required" jsonschema:"required"`
	Reason    string `json:"reason"`
}

// CreateOverrideResponse represents the created override
type CreateOverrideResponse struct {
	ID        string    `json:"id" jsonschema:"required"`
	ListingID string    `json:"listingId" jsonschema:"required"`
	ProductID string    `json:"productId" jsonschema:"required"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt" jsonschema:"required"`
}

// CreateOverride pins a retailer listing to a canonical product. The pin wins
// over every automatic matching tier on subsequent runs, and the listing is
// relinked immediately.
// POST /internal/admin/overrides
func CreateOverride(c *gin.Context) {
	var req CreateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store := database.NewStore(database.Pool())
	ctx := c.Request.Context()

	canonical, err := store.GetCanonical(ctx, req.ProductID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if canonical == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	listing, err := store.GetListing(ctx, req.ListingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch listing"})
		return
	}
	if listing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}

	override, err := store.CreateOverride(ctx, req.ListingID, req.ProductID, req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create override"})
		return
	}

	// Relink the listing right away instead of waiting for the next run.
	if _, err := database.Pool().Exec(ctx,
		"UPDATE retailer_listings SET product_id = $2, updated_at = NOW() WHERE id = $1",
		req.ListingID, req.ProductID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to relink listing"})
		return
	}

	c.JSON(http.StatusCreated, CreateOverrideResponse{
		ID:        override.ID,
		ListingID: override.ListingID,
		ProductID: override.ProductID,
		Reason:    override.Reason,
		CreatedAt: override.CreatedAt,
	})
}
