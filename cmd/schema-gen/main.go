// Schema Generator
//
// Generates JSON Schema files from the Go types that cross the service
// boundary: ops API payloads and the fixture file format. The Go structs are
// the source of truth for these shapes.
//
// Usage:
//
//	go run ./cmd/schema-gen [-out ./schemas]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/handlers"
	"github.com/worthit/ingest-service/internal/product"
)

// group is a set of related types emitted into one schema file.
type group struct {
	name  string
	title string
	types []any
}

var groups = []group{
	{
		name:  "api",
		title: "Ops API Types",
		types: []any{
			// Request types
			handlers.ListRunsRequest{},
			handlers.GetStatsRequest{},
			handlers.SearchProductsRequest{},
			handlers.CreateOverrideRequest{},
			// Response types
			handlers.IngestionRun{},
			handlers.ListRunsResponse{},
			handlers.StatsBucket{},
			handlers.GetStatsResponse{},
			handlers.SearchProduct{},
			handlers.SearchProductsResponse{},
			handlers.ProductOffer{},
			handlers.GetProductResponse{},
			handlers.PriceHistoryPoint{},
			handlers.GetPriceHistoryResponse{},
			handlers.RetailerInfo{},
			handlers.ListRetailersResponse{},
			handlers.IngestStartedResponse{},
			handlers.CreateOverrideResponse{},
		},
	},
	{
		name:  "fixtures",
		title: "Fixture File Types",
		types: []any{
			product.FixtureItem{},
			product.FixtureFile{},
			config.RetailerConfig{},
		},
	},
}

func main() {
	out := flag.String("out", "./schemas", "output directory")
	flag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "schema-gen: %v\n", err)
		os.Exit(1)
	}
}

func run(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for _, g := range groups {
		data, err := json.MarshalIndent(buildSchema(g), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s schema: %w", g.name, err)
		}
		path := filepath.Join(outDir, g.name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Printf("Generated %s\n", path)
	}
	return nil
}

// buildSchema reflects every type in the group into one shared $defs pool so
// cross-type references stay local to the file.
func buildSchema(g group) map[string]any {
	reflector := &jsonschema.Reflector{RequiredFromJSONSchemaTags: true}

	defs := map[string]any{}
	for _, t := range g.types {
		for name, def := range reflector.Reflect(t).Definitions {
			defs[name] = def
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://worthit.nz/schemas/%s.json", g.name),
		"title":       g.title,
		"description": fmt.Sprintf("JSON Schema for %s types generated from Go structs", g.name),
		"$defs":       defs,
	}
}
