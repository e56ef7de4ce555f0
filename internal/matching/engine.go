// Package matching links normalized retailer listings to canonical products.
// Tiers run in order of trust: GTIN, brand+model, manual override, then a
// fuzzy name/attribute score. Pharma items additionally require compatible
// strength, form and pack size at every tier.
package matching

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/worthit/ingest-service/internal/normalize"
	"github.com/worthit/ingest-service/internal/product"
)

// Match tiers, ordered by trust.
const (
	TierGTIN           = "gtin"
	TierModel          = "model"
	TierManualOverride = "manual_override"
	TierFuzzy          = "fuzzy"
	TierNew            = "new"
)

const (
	fuzzyCandidateLimit = 200
	fuzzyThreshold      = 0.82
	minAttributeOverlap = 2
)

// Canonical is the cross-retailer product record the engine matches against.
type Canonical struct {
	ID            string
	Vertical      string
	CanonicalName string
	Brand         string
	Category      string
	GTIN          string
	MPN           string
	ModelNumber   string
	Attributes    product.AttrMap
}

// Store is the lookup surface the engine needs. Implemented by
// database.Store.
type Store interface {
	// CanonicalByGTIN returns the canonical with this GTIN in the vertical,
	// or nil.
	CanonicalByGTIN(ctx context.Context, vertical, gtin string) (*Canonical, error)
	// CanonicalByBrandModel returns the canonical whose brand matches
	// case-insensitively and whose MPN or model number equals model, or nil.
	CanonicalByBrandModel(ctx context.Context, vertical, brand, model string) (*Canonical, error)
	// OverrideFor returns the canonical id a manual override pins this
	// retailer listing to, or "".
	OverrideFor(ctx context.Context, listingID string) (string, error)
	// CanonicalCandidates returns up to limit canonicals sharing vertical,
	// lowercased brand and lowercased category.
	CanonicalCandidates(ctx context.Context, vertical, brandLower, categoryLower string, limit int) ([]Canonical, error)
}

// Decision is the outcome of matching one listing. CanonicalID is empty for
// TierNew; Score then carries the best fuzzy score seen, for diagnostics.
type Decision struct {
	CanonicalID string
	Tier        string
	Score       float64
}

// Engine runs the tiered matching procedure over a Store.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Match links one normalized listing. listingID keys the manual-override
// lookup and may be empty for listings not yet persisted.
func (e *Engine) Match(ctx context.Context, item product.Normalized, listingID string) (Decision, error) {
	if gtin := normalize.Identifier(item.GTIN); gtin != "" {
		candidate, err := e.store.CanonicalByGTIN(ctx, item.Vertical, gtin)
		if err != nil {
			return Decision{}, fmt.Errorf("gtin lookup: %w", err)
		}
		if candidate != nil && pharmaVariantCompatible(item, candidate) {
			return Decision{CanonicalID: candidate.ID, Tier: TierGTIN, Score: 1.0}, nil
		}
	}

	model := normalize.Identifier(item.MPN)
	if model == "" {
		model = normalize.Identifier(item.ModelNumber)
	}
	if model != "" {
		candidate, err := e.store.CanonicalByBrandModel(ctx, item.Vertical, item.Brand, model)
		if err != nil {
			return Decision{}, fmt.Errorf("brand+model lookup: %w", err)
		}
		if candidate != nil && pharmaVariantCompatible(item, candidate) {
			return Decision{CanonicalID: candidate.ID, Tier: TierModel, Score: 0.98}, nil
		}
	}

	if listingID != "" {
		canonicalID, err := e.store.OverrideFor(ctx, listingID)
		if err != nil {
			return Decision{}, fmt.Errorf("override lookup: %w", err)
		}
		if canonicalID != "" {
			return Decision{CanonicalID: canonicalID, Tier: TierManualOverride, Score: 1.0}, nil
		}
	}

	return e.fuzzyMatch(ctx, item)
}

func (e *Engine) fuzzyMatch(ctx context.Context, item product.Normalized) (Decision, error) {
	candidates, err := e.store.CanonicalCandidates(ctx,
		item.Vertical,
		strings.ToLower(item.Brand),
		strings.ToLower(item.Category),
		fuzzyCandidateLimit,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("fuzzy candidates: %w", err)
	}

	bestID := ""
	bestScore := 0.0
	for i := range candidates {
		candidate := &candidates[i]
		if !pharmaVariantCompatible(item, candidate) {
			continue
		}
		overlap := attributeOverlap(item.Attributes, candidate.Attributes)
		if overlap < minAttributeOverlap {
			continue
		}

		nameSimilarity := normalize.TokenSetRatio(item.CanonicalName, candidate.CanonicalName)
		jaccard := normalize.TokenJaccard(item.CanonicalName, candidate.CanonicalName)
		overlapRatio := float64(overlap) / float64(max(len(item.Attributes), 1))
		if overlapRatio > 1 {
			overlapRatio = 1
		}
		score := 0.55*nameSimilarity + 0.30*overlapRatio + 0.15*jaccard
		if score > bestScore {
			bestID = candidate.ID
			bestScore = score
		}
	}

	if bestID != "" && bestScore >= fuzzyThreshold {
		return Decision{CanonicalID: bestID, Tier: TierFuzzy, Score: bestScore}, nil
	}
	return Decision{Tier: TierNew, Score: bestScore}, nil
}

// pharmaVariantCompatible rejects pharma pairs whose strength, form or pack
// size are both present and differ. Non-pharma items always pass.
func pharmaVariantCompatible(item product.Normalized, candidate *Canonical) bool {
	if !product.IsPharma(item.Vertical) {
		return true
	}
	for _, key := range []string{"strength", "form", "pack_size"} {
		itemValue := normalize.VariantKey(attrString(item.Attributes[key]))
		candidateValue := normalize.VariantKey(attrString(candidate.Attributes[key]))
		if itemValue != "" && candidateValue != "" && itemValue != candidateValue {
			return false
		}
	}
	return true
}

// attributeOverlap counts item attribute keys whose value also appears on the
// candidate, compared case-insensitively as strings.
func attributeOverlap(a, b product.AttrMap) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for key, value := range a {
		other, ok := b[key]
		if !ok {
			continue
		}
		if strings.EqualFold(attrString(value), attrString(other)) {
			overlap++
		}
	}
	return overlap
}

// attrString renders an attribute value for comparison. Whole floats print
// without the fraction so JSON-decoded numbers compare equal to ints.
func attrString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
