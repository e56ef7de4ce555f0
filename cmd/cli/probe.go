package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/worthit/ingest-service/internal/adapters/base"
	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/adapters/registry"
)

var probeOutput string

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe <retailer>",
	Short: "Check whether a retailer's site is currently scrapeable",
	Long: `Probe runs discovery for a retailer and samples a handful of candidate
product pages, reporting whether a live ingestion pass would succeed right
now and, if not, why (anti-bot blocking, non-product pages, no parseable
price). Nothing is persisted and the fixture fallback is never used.

The command exits non-zero when the probe fails, so it can gate scheduled
live runs.`,
	Example: `  ingest-service probe pb-tech
  ingest-service probe apple --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeOutput, "output", "table", "Output format: table or json")
}

func runProbe(cmd *cobra.Command, args []string) error {
	id := config.RetailerID(args[0])
	if _, ok := config.Get(id); !ok {
		return fmt.Errorf("invalid retailer: %s\nValid retailers: %s", args[0], strings.Join(validRetailers(), ", "))
	}

	fixturesDir := "./fixtures"
	if cfg != nil {
		fixturesDir = cfg.Ingest.FixturesDir
	}
	reg := registry.New(registry.Options{
		Mode:        registry.ModeLive,
		FixturesDir: fixturesDir,
		Logger:      *logger,
	})
	defer reg.Close()

	adapter, err := reg.GetOrInit(id)
	if err != nil {
		return fmt.Errorf("failed to get adapter for %s: %w", id, err)
	}
	live, ok := adapter.(*base.LiveAdapter)
	if !ok {
		return fmt.Errorf("retailer %s has no live adapter", id)
	}

	logger.Info().Str("retailer", string(id)).Msg("Probing retailer site")
	report := live.Probe(cmd.Context())

	if strings.ToLower(probeOutput) == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return err
		}
	} else if report.OK {
		fmt.Printf("OK: %s is scrapeable (%d URLs discovered, %d sampled)\n", id, report.Discovered, report.Sampled)
	} else {
		fmt.Printf("FAILED: %s is not currently scrapeable: %s\n", id, report.Reason)
	}

	if !report.OK {
		return fmt.Errorf("probe failed for %s", id)
	}
	return nil
}
