package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/worthit/ingest-service/internal/adapters/config"
	"github.com/worthit/ingest-service/internal/adapters/registry"
	"github.com/worthit/ingest-service/internal/database"
	"github.com/worthit/ingest-service/internal/pipeline"
	"github.com/worthit/ingest-service/internal/product"
)

var (
	ingestAll      bool
	ingestMode     string
	ingestParallel int

	ingestMaxProducts    int
	ingestRequestDelay   float64
	ingestMaxRetries     int
	ingestRetryBackoff   float64
	ingestNoFallback     bool
	ingestProxyURL       string
	ingestBrowser        bool
	ingestBrowserTimeout float64
	ingestBrowserProxy   string
	ingestVertical       string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <retailer>",
	Short: "Run the full ingestion pipeline for a retailer",
	Long: `Run the complete ingestion pipeline (discover, fetch, extract, normalize,
match, persist) for a specific retailer. Listings are linked to canonical
products across retailers and every price capture is appended to history.

Use --all to ingest every configured retailer.`,
	Example: `  ingest-service ingest pb-tech
  ingest-service ingest chemist-warehouse --mode fixture
  ingest-service ingest --all --parallel 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestAll, "all", false, "Ingest all retailers")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "", "Data source mode: live or fixture (defaults to config)")
	ingestCmd.Flags().IntVar(&ingestParallel, "parallel", 0, "Max retailers ingested concurrently (defaults to config)")

	// Per-run overrides of the shipped retailer config.
	ingestCmd.Flags().IntVar(&ingestMaxProducts, "max-products", 0, "Cap on product pages per run")
	ingestCmd.Flags().Float64Var(&ingestRequestDelay, "request-delay-seconds", 0, "Pause between page fetches")
	ingestCmd.Flags().IntVar(&ingestMaxRetries, "max-fetch-retries", 0, "Retries per fetch before giving up")
	ingestCmd.Flags().Float64Var(&ingestRetryBackoff, "retry-backoff-seconds", 0, "Base backoff, doubled per attempt")
	ingestCmd.Flags().BoolVar(&ingestNoFallback, "no-fixture-fallback", false, "Fail instead of serving fixture data when the live pass fails")
	ingestCmd.Flags().StringVar(&ingestProxyURL, "proxy-url", "", "HTTP proxy for page fetches")
	ingestCmd.Flags().BoolVar(&ingestBrowser, "browser-fallback", false, "Render challenged pages in a headless browser")
	ingestCmd.Flags().Float64Var(&ingestBrowserTimeout, "browser-timeout-seconds", 0, "Per-page browser render timeout")
	ingestCmd.Flags().StringVar(&ingestBrowserProxy, "browser-proxy-url", "", "HTTP proxy for the browser renderer")
	ingestCmd.Flags().StringVar(&ingestVertical, "vertical", "", "Override the retailer's default vertical")
}

// adapterOverride carries explicitly-set per-run flags over retailer config
// defaults. Unset flags leave the shipped values alone.
func adapterOverride(cmd *cobra.Command) func(*config.RetailerConfig) {
	changed := cmd.Flags().Changed
	return func(cfg *config.RetailerConfig) {
		if changed("max-products") {
			cfg.MaxProducts = ingestMaxProducts
		}
		if changed("request-delay-seconds") {
			cfg.RequestDelay = time.Duration(ingestRequestDelay * float64(time.Second))
		}
		if changed("max-fetch-retries") {
			cfg.MaxFetchRetries = ingestMaxRetries
		}
		if changed("retry-backoff-seconds") {
			cfg.RetryBackoff = time.Duration(ingestRetryBackoff * float64(time.Second))
		}
		if ingestNoFallback {
			cfg.UseFixtureFallback = false
		}
		if changed("proxy-url") {
			cfg.ProxyURL = ingestProxyURL
		}
		if changed("browser-fallback") {
			cfg.BrowserFallback = ingestBrowser
		}
		if changed("browser-timeout-seconds") {
			cfg.BrowserTimeout = time.Duration(ingestBrowserTimeout * float64(time.Second))
		}
		if changed("browser-proxy-url") {
			cfg.BrowserProxyURL = ingestBrowserProxy
		}
		if changed("vertical") {
			cfg.Vertical = ingestVertical
		}
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cmd.Flags().Changed("vertical") {
		switch ingestVertical {
		case product.VerticalTech, product.VerticalPharma, product.VerticalBeauty,
			product.VerticalHomeAppliances, product.VerticalSupplements, product.VerticalPetGoods:
		default:
			return fmt.Errorf("invalid vertical: %s", ingestVertical)
		}
	}

	var retailers []config.RetailerID
	if ingestAll {
		retailers = config.RetailerIDs
		logger.Info().Msgf("Ingesting all %d retailers", len(retailers))
	} else {
		if len(args) == 0 {
			return fmt.Errorf("either specify <retailer> or use --all flag")
		}
		id := config.RetailerID(args[0])
		if _, ok := config.Get(id); !ok {
			return fmt.Errorf("invalid retailer: %s\nValid retailers: %s", args[0], strings.Join(validRetailers(), ", "))
		}
		retailers = []config.RetailerID{id}
	}

	mode := cfg.Ingest.Mode
	if ingestMode != "" {
		mode = ingestMode
	}
	parallel := cfg.Ingest.Parallelism
	if ingestParallel > 0 {
		parallel = ingestParallel
	}
	if parallel < 1 {
		parallel = 1
	}

	reg := registry.New(registry.Options{
		Mode:        registry.Mode(mode),
		FixturesDir: cfg.Ingest.FixturesDir,
		ArchiveDir:  cfg.Ingest.ArchiveDir,
		Override:    adapterOverride(cmd),
		Logger:      *logger,
	})
	defer reg.Close()

	store := database.NewStore(database.Pool())

	var mu sync.Mutex
	results := make([]ingestResult, 0, len(retailers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, id := range retailers {
		id := id
		g.Go(func() error {
			result := ingestOne(gctx, store, reg, id)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	displayIngestResults(results)

	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("some ingestions failed")
		}
	}
	return nil
}

func ingestOne(ctx context.Context, store *database.Store, reg *registry.Registry, id config.RetailerID) ingestResult {
	logger.Info().Str("retailer", string(id)).Msg("Starting ingestion")

	adapter, err := reg.GetOrInit(id)
	if err != nil {
		logger.Error().Str("retailer", string(id)).Err(err).Msg("Adapter initialization failed")
		return ingestResult{Retailer: string(id), Error: err.Error()}
	}

	retailerCfg, _ := config.Get(id)
	run, err := pipeline.New(store, adapter, retailerCfg.Name, *logger).Run(ctx)
	if err != nil {
		logger.Error().Str("retailer", string(id)).Err(err).Msg("Ingestion failed")
		return ingestResult{Retailer: string(id), Error: err.Error()}
	}

	return ingestResult{
		Retailer:     string(id),
		Success:      run.Status == database.RunStatusCompleted,
		RunID:        run.ID,
		ItemsTotal:   run.ItemsTotal,
		ItemsNew:     run.ItemsNew,
		ItemsUpdated: run.ItemsUpdated,
		ItemsFailed:  run.ItemsFailed,
		UsedFixture:  run.UsedFixture,
		Error:        run.ErrorSummary,
	}
}

type ingestResult struct {
	Retailer     string
	Success      bool
	RunID        string
	ItemsTotal   int
	ItemsNew     int
	ItemsUpdated int
	ItemsFailed  int
	UsedFixture  bool
	Error        string
}

func displayIngestResults(results []ingestResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RETAILER\tSTATUS\tRUN ID\tTOTAL\tNEW\tUPDATED\tFAILED\tFIXTURE")
	fmt.Fprintln(w, "--------\t------\t------\t-----\t---\t-------\t------\t-------")

	for _, r := range results {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
		}
		runID := r.RunID
		if runID == "" {
			runID = "-"
		}
		fixture := "no"
		if r.UsedFixture {
			fixture = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Retailer, status, runID, r.ItemsTotal, r.ItemsNew, r.ItemsUpdated, r.ItemsFailed, fixture)
	}

	w.Flush()
}

func validRetailers() []string {
	retailers := make([]string, len(config.RetailerIDs))
	for i, id := range config.RetailerIDs {
		retailers[i] = string(id)
	}
	return retailers
}
