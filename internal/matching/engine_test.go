package matching

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worthit/ingest-service/internal/product"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	canonicals []Canonical
	overrides  map[string]string
}

func (s *fakeStore) CanonicalByGTIN(_ context.Context, vertical, gtin string) (*Canonical, error) {
	for i := range s.canonicals {
		c := &s.canonicals[i]
		if c.Vertical == vertical && c.GTIN == gtin {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CanonicalByBrandModel(_ context.Context, vertical, brand, model string) (*Canonical, error) {
	for i := range s.canonicals {
		c := &s.canonicals[i]
		if c.Vertical != vertical || !strings.EqualFold(c.Brand, brand) {
			continue
		}
		if c.MPN == model || c.ModelNumber == model {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) OverrideFor(_ context.Context, listingID string) (string, error) {
	return s.overrides[listingID], nil
}

func (s *fakeStore) CanonicalCandidates(_ context.Context, vertical, brandLower, categoryLower string, limit int) ([]Canonical, error) {
	var out []Canonical
	for _, c := range s.canonicals {
		if c.Vertical != vertical {
			continue
		}
		if strings.ToLower(c.Brand) != brandLower || strings.ToLower(c.Category) != categoryLower {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func nitroCanonical() Canonical {
	return Canonical{
		ID:            "prod_nitro16",
		Vertical:      product.VerticalTech,
		CanonicalName: "Acer Nitro16 Gaming Laptop",
		Brand:         "Acer",
		Category:      "laptops",
		GTIN:          "1234567890123",
		ModelNumber:   "AN16-41-R74H",
		Attributes:    product.AttrMap{"cpu_score": 7000, "ram_gb": 16, "storage_gb": 512},
	}
}

func nitroListing() product.Normalized {
	return product.Normalized{
		Vertical:      product.VerticalTech,
		CanonicalName: "Acer Nitro 16 Gaming Laptop",
		Brand:         "acer",
		Category:      "laptops",
		Attributes:    product.AttrMap{"cpu_score": 7000, "ram_gb": 16, "storage_gb": 512},
	}
}

func TestMatchByGTIN(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{nitroCanonical()}}
	engine := NewEngine(store)

	item := nitroListing()
	item.GTIN = "1234567890123"

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierGTIN, decision.Tier)
	assert.Equal(t, "prod_nitro16", decision.CanonicalID)
	assert.Equal(t, 1.0, decision.Score)
}

func TestMatchByBrandModel(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{nitroCanonical()}}
	engine := NewEngine(store)

	item := nitroListing()
	item.ModelNumber = "an16-41-r74h"

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierModel, decision.Tier)
	assert.Equal(t, "prod_nitro16", decision.CanonicalID)
	assert.Equal(t, 0.98, decision.Score)
}

func TestMatchByManualOverride(t *testing.T) {
	store := &fakeStore{overrides: map[string]string{"rl_0001": "prod_pinned"}}
	engine := NewEngine(store)

	item := nitroListing()
	item.Attributes = nil

	decision, err := engine.Match(context.Background(), item, "rl_0001")
	require.NoError(t, err)
	assert.Equal(t, TierManualOverride, decision.Tier)
	assert.Equal(t, "prod_pinned", decision.CanonicalID)
}

func TestFuzzyMatchAcrossSpacingVariants(t *testing.T) {
	// "Nitro 16" and "Nitro16" must land on the same canonical despite no
	// shared identifier.
	store := &fakeStore{canonicals: []Canonical{nitroCanonical()}}
	engine := NewEngine(store)

	decision, err := engine.Match(context.Background(), nitroListing(), "")
	require.NoError(t, err)
	assert.Equal(t, TierFuzzy, decision.Tier)
	assert.Equal(t, "prod_nitro16", decision.CanonicalID)
	assert.GreaterOrEqual(t, decision.Score, fuzzyThreshold)
	assert.InDelta(t, 0.925, decision.Score, 0.001)
}

func TestFuzzyRequiresAttributeOverlap(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{nitroCanonical()}}
	engine := NewEngine(store)

	item := nitroListing()
	item.Attributes = product.AttrMap{"ram_gb": 16}

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierNew, decision.Tier)
	assert.Empty(t, decision.CanonicalID)
}

func TestFuzzyRespectsBrandCategoryBlock(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{nitroCanonical()}}
	engine := NewEngine(store)

	item := nitroListing()
	item.Category = "monitors"

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierNew, decision.Tier)
}

func panadolCanonical(packSize int) Canonical {
	return Canonical{
		ID:            "prod_panadol",
		Vertical:      product.VerticalPharma,
		CanonicalName: "Panadol Extra 500mg Tablets",
		Brand:         "Panadol",
		Category:      "otc",
		GTIN:          "9300607000001",
		Attributes:    product.AttrMap{"strength": "500mg", "form": "tablet", "pack_size": packSize},
	}
}

func TestPharmaVariantGateBlocksDifferentPackSize(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{panadolCanonical(24)}}
	engine := NewEngine(store)

	item := product.Normalized{
		Vertical:      product.VerticalPharma,
		CanonicalName: "Panadol Extra 500mg Tablets 20 Pack",
		Brand:         "Panadol",
		Category:      "otc",
		GTIN:          "9300607000001",
		Attributes:    product.AttrMap{"strength": "500mg", "form": "tablet", "pack_size": 20},
	}

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierNew, decision.Tier, "same GTIN but different pack size must not merge")
	assert.Empty(t, decision.CanonicalID)
}

func TestPharmaVariantGateBlocksDifferentForm(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{panadolCanonical(20)}}
	engine := NewEngine(store)

	item := product.Normalized{
		Vertical:      product.VerticalPharma,
		CanonicalName: "Panadol Extra 500mg Caplets 20 Pack",
		Brand:         "Panadol",
		Category:      "otc",
		Attributes:    product.AttrMap{"strength": "500mg", "form": "caplet", "pack_size": 20},
	}

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierNew, decision.Tier)
}

func TestPharmaVariantGateAllowsMissingSide(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{panadolCanonical(20)}}
	engine := NewEngine(store)

	item := product.Normalized{
		Vertical:      product.VerticalPharma,
		CanonicalName: "Panadol Extra 500mg Tablets",
		Brand:         "Panadol",
		Category:      "otc",
		GTIN:          "9300607000001",
		Attributes:    product.AttrMap{"strength": "500mg"},
	}

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierGTIN, decision.Tier)
	assert.Equal(t, "prod_panadol", decision.CanonicalID)
}

func TestMatchIsDeterministic(t *testing.T) {
	store := &fakeStore{canonicals: []Canonical{nitroCanonical(), panadolCanonical(20)}}
	engine := NewEngine(store)

	first, err := engine.Match(context.Background(), nitroListing(), "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Match(context.Background(), nitroListing(), "")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAttributeOverlapComparesNumbersAcrossTypes(t *testing.T) {
	// JSON round-trips turn ints into float64; 16 and 16.0 must still count.
	a := product.AttrMap{"ram_gb": 16, "storage_gb": float64(512)}
	b := product.AttrMap{"ram_gb": float64(16), "storage_gb": 512}
	assert.Equal(t, 2, attributeOverlap(a, b))
}

func TestGTINScopedToVertical(t *testing.T) {
	canonical := nitroCanonical()
	canonical.Vertical = product.VerticalHomeAppliances
	store := &fakeStore{canonicals: []Canonical{canonical}}
	engine := NewEngine(store)

	item := nitroListing()
	item.GTIN = "1234567890123"
	item.Attributes = nil

	decision, err := engine.Match(context.Background(), item, "")
	require.NoError(t, err)
	assert.Equal(t, TierNew, decision.Tier)
}
