package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/worthit/ingest-service/internal/database"
)

// SearchProductsRequest represents query parameters for product search
type SearchProductsRequest struct {
	Q        string `form:"q" json:"q" binding:"required" jsonschema:"required"`
	Vertical string `form:"vertical" json:"vertical"`
	Limit    int    `form:"limit" json:"limit" binding:"min=0,max=100" jsonschema:"minimum=1,maximum=100"`
}

// SearchProduct represents a canonical product in search results
type SearchProduct struct {
	ID            string `json:"id" jsonschema:"required"`
	CanonicalName string `json:"canonicalName" jsonschema:"required"`
	Vertical      string `json:"vertical" jsonschema:"required"`
	Brand         string `json:"brand" jsonschema:"required"`
	Category      string `json:"category" jsonschema:"required"`
	ImageURL      string `json:"imageUrl,omitempty"`
	OfferCount    int    `json:"offerCount" jsonschema:"required"`
}

// SearchProductsResponse represents the response for product search
type SearchProductsResponse struct {
	Products []SearchProduct `json:"products" jsonschema:"required"`
}

// SearchProducts searches canonical products by free text
// GET /internal/products/search
func SearchProducts(c *gin.Context) {
	var req SearchProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	store := database.NewStore(database.Pool())
	ctx := c.Request.Context()

	canonicals, err := store.SearchCanonicals(ctx, req.Vertical, req.Q, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search products"})
		return
	}

	products := []SearchProduct{}
	for _, p := range canonicals {
		var offers int
		err := database.Pool().QueryRow(ctx,
			"SELECT COUNT(*) FROM retailer_listings WHERE product_id = $1", p.ID).Scan(&offers)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count offers"})
			return
		}
		products = append(products, SearchProduct{
			ID:            p.ID,
			CanonicalName: p.CanonicalName,
			Vertical:      p.Vertical,
			Brand:         p.Brand,
			Category:      p.Category,
			ImageURL:      p.ImageURL,
			OfferCount:    offers,
		})
	}

	c.JSON(http.StatusOK, SearchProductsResponse{Products: products})
}

// ProductOffer represents one retailer's current offer for a product
type ProductOffer struct {
	ListingID     string     `json:"listingId" jsonschema:"required"`
	Retailer      string     `json:"retailer" jsonschema:"required"`
	Title         string     `json:"title" jsonschema:"required"`
	URL           string     `json:"url" jsonschema:"required"`
	Availability  string     `json:"availability,omitempty"`
	PriceNZD      *float64   `json:"priceNzd"`
	PromoPriceNZD *float64   `json:"promoPriceNzd"`
	PromoText     string     `json:"promoText,omitempty"`
	DiscountPct   *float64   `json:"discountPct"`
	CapturedAt    *time.Time `json:"capturedAt"`
}

// GetProductResponse represents a single product with its offers
type GetProductResponse struct {
	Product database.CanonicalProduct `json:"product" jsonschema:"required"`
	Offers  []ProductOffer            `json:"offers" jsonschema:"required"`
}

// GetProduct returns a canonical product with every retailer's current offer
// GET /internal/products/:productId
func GetProduct(c *gin.Context) {
	productID := c.Param("productId")
	if productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "productId is required"})
		return
	}

	store := database.NewStore(database.Pool())
	ctx := c.Request.Context()

	product, err := store.GetCanonical(ctx, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	rows, err := database.Pool().Query(ctx, `
		SELECT l.id, rt.slug, l.title, l.url, COALESCE(l.availability, ''),
		       lp.price_nzd, lp.promo_price_nzd, COALESCE(lp.promo_text, ''),
		       lp.discount_pct, lp.captured_at
		FROM retailer_listings l
		JOIN retailers rt ON rt.id = l.retailer_id
		LEFT JOIN latest_prices lp ON lp.listing_id = l.id
		WHERE l.product_id = $1
		ORDER BY lp.price_nzd ASC NULLS LAST
	`, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch offers"})
		return
	}
	defer rows.Close()

	offers := []ProductOffer{}
	for rows.Next() {
		var offer ProductOffer
		if err := rows.Scan(
			&offer.ListingID, &offer.Retailer, &offer.Title, &offer.URL, &offer.Availability,
			&offer.PriceNZD, &offer.PromoPriceNZD, &offer.PromoText,
			&offer.DiscountPct, &offer.CapturedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan offer"})
			return
		}
		offers = append(offers, offer)
	}
	if rows.Err() != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating offers"})
		return
	}

	c.JSON(http.StatusOK, GetProductResponse{Product: *product, Offers: offers})
}

// PriceHistoryPoint represents one captured price observation
type PriceHistoryPoint struct {
	PriceNZD      float64   `json:"priceNzd" jsonschema:"required"`
	PromoPriceNZD *float64  `json:"promoPriceNzd"`
	CapturedAt    time.Time `json:"capturedAt" jsonschema:"required"`
}

// GetPriceHistoryResponse represents the response for a listing's price history
type GetPriceHistoryResponse struct {
	ListingID string              `json:"listingId" jsonschema:"required"`
	Prices    []PriceHistoryPoint `json:"prices" jsonschema:"required"`
}

// GetPriceHistory returns the append-only price history for a listing
// GET /internal/listings/:listingId/prices
func GetPriceHistory(c *gin.Context) {
	listingID := c.Param("listingId")
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listingId is required"})
		return
	}

	rows, err := database.Pool().Query(c.Request.Context(), `
		SELECT price_nzd, promo_price_nzd, captured_at
		FROM prices
		WHERE listing_id = $1
		ORDER BY captured_at DESC
		LIMIT 365
	`, listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price history"})
		return
	}
	defer rows.Close()

	prices := []PriceHistoryPoint{}
	for rows.Next() {
		var p PriceHistoryPoint
		if err := rows.Scan(&p.PriceNZD, &p.PromoPriceNZD, &p.CapturedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan price"})
			return
		}
		prices = append(prices, p)
	}
	if rows.Err() != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating prices"})
		return
	}

	c.JSON(http.StatusOK, GetPriceHistoryResponse{ListingID: listingID, Prices: prices})
}
