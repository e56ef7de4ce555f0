package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/worthit/ingest-service/config"
	"github.com/worthit/ingest-service/internal/database"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ingest-service",
	Short: "Ingest Service CLI - NZ retail price intelligence tool",
	Long: `A CLI tool for scraping, normalizing, and matching product listings from
NZ retail sites across the tech, pharma, beauty, home and pet verticals.
Listings are linked to cross-retailer canonical products and every price is
kept as an append-only history.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// setup loads config, builds the logger, and opens the database for the
// subcommands that persist rows.
func setup(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "help", "completion":
		return nil
	}

	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		// Discovery and probing run fine on defaults.
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
	logger = newLogger()

	if !needsDatabase(cmd.Name()) {
		return nil
	}
	if cfg == nil {
		return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
	}
	if err := openDatabase(cmd.Context()); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	logger.Info().Msg("Database connected")
	return nil
}

// needsDatabase reports whether a subcommand persists rows. Discovery and
// probing only talk to retailer sites.
func needsDatabase(name string) bool {
	return name == "ingest" || name == "export"
}

func newLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg != nil && cfg.Logging.NoColor}
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stdout
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func openDatabase(ctx context.Context) error {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Ingest.EnsureSchema {
		if err := database.EnsureSchema(ctx, database.Pool()); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	database.Close()
	if err != nil {
		os.Exit(1)
	}
}
