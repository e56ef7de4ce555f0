package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/adapters/registry"
	"github.com/worthit/ingest-service/internal/product"
)

var (
	discoverMode   string
	discoverOutput string
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover <retailer>",
	Short: "Discover product pages on a retailer's site",
	Long: `Discover product page URLs for a retailer without persisting anything.
Discovery walks robots.txt and the sitemap tree first and falls back to a
bounded HTML crawl, then probes a sample of candidate pages to verify they
are parseable product pages.

Output can be formatted as a human-readable table (default) or JSON.`,
	Example: `  ingest-service discover pb-tech
  ingest-service discover mighty-ape --output json
  ingest-service discover chemist-warehouse --mode fixture`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverMode, "mode", "live", "Data source mode: live or fixture")
	discoverCmd.Flags().StringVar(&discoverOutput, "output", "table", "Output format: table or json")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	id := config.RetailerID(args[0])
	if _, ok := config.Get(id); !ok {
		return fmt.Errorf("invalid retailer: %s\nValid retailers: %s", args[0], strings.Join(validRetailers(), ", "))
	}

	fixturesDir := "./fixtures"
	if cfg != nil {
		fixturesDir = cfg.Ingest.FixturesDir
	}
	reg := registry.New(registry.Options{
		Mode:        registry.Mode(discoverMode),
		FixturesDir: fixturesDir,
		Logger:      *logger,
	})
	defer reg.Close()

	adapter, err := reg.GetOrInit(id)
	if err != nil {
		return fmt.Errorf("failed to get adapter for %s: %w", id, err)
	}

	logger.Info().Str("retailer", string(id)).Msg("Starting discovery")

	pages, err := adapter.ListPages(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	logger.Info().Str("retailer", string(id)).Msgf("Found %d product pages", len(pages))

	switch strings.ToLower(discoverOutput) {
	case "json":
		return outputDiscoverJSON(pages)
	case "table":
		outputDiscoverTable(string(id), pages)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", discoverOutput)
	}

	return nil
}

func outputDiscoverTable(retailer string, pages []product.PageStub) {
	if len(pages) == 0 {
		fmt.Printf("No product pages discovered for retailer: %s\n", retailer)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SOURCE PRODUCT ID\tURL")
	fmt.Fprintln(w, "-----------------\t---")

	for _, p := range pages {
		url := p.URL
		if url == "" {
			url = fmt.Sprintf("(fixture dataset, %d items)", len(p.FixtureItems))
		}
		fmt.Fprintf(w, "%s\t%s\n", p.SourceProductID, url)
	}

	w.Flush()
}

func outputDiscoverJSON(pages []product.PageStub) error {
	type discoveredPage struct {
		SourceProductID string `json:"source_product_id"`
		URL             string `json:"url"`
	}
	out := make([]discoveredPage, 0, len(pages))
	for _, p := range pages {
		out = append(out, discoveredPage{SourceProductID: p.SourceProductID, URL: p.URL})
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
