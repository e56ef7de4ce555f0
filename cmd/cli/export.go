package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/worthit/ingest-service/internal/database"
)

var (
	exportOut      string
	exportVertical string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export current prices to an Excel workbook",
	Long: `Export every listing's current price, joined with its canonical product and
retailer, to an .xlsx workbook. Intended for ad-hoc analysis and sharing
snapshots outside the service.`,
	Example: `  ingest-service export --out prices.xlsx
  ingest-service export --out tech.xlsx --vertical tech`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "prices.xlsx", "Output file path")
	exportCmd.Flags().StringVar(&exportVertical, "vertical", "", "Only export products in this vertical")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pool := database.Pool()

	query := `
		SELECT rt.slug, p.canonical_name, p.vertical, p.brand, p.category,
		       l.title, l.url, COALESCE(l.availability, ''),
		       lp.price_nzd, lp.promo_price_nzd, lp.captured_at
		FROM retailer_listings l
		JOIN retailers rt ON rt.id = l.retailer_id
		JOIN latest_prices lp ON lp.listing_id = l.id
		LEFT JOIN products p ON p.id = l.product_id
		WHERE ($1 = '' OR p.vertical = $1)
		ORDER BY p.vertical, p.canonical_name, lp.price_nzd
	`
	rows, err := pool.Query(ctx, query, exportVertical)
	if err != nil {
		return fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Prices"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{
		"Retailer", "Product", "Vertical", "Brand", "Category",
		"Listing Title", "URL", "Availability", "Price NZD", "Promo Price NZD", "Captured At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	rowIdx := 2
	for rows.Next() {
		var (
			retailer, name, vertical, brand, category *string
			title, url, availability                  string
			priceNZD                                  float64
			promoPriceNZD                             *float64
			capturedAt                                any
		)
		if err := rows.Scan(&retailer, &name, &vertical, &brand, &category,
			&title, &url, &availability, &priceNZD, &promoPriceNZD, &capturedAt); err != nil {
			return fmt.Errorf("failed to scan price row: %w", err)
		}

		values := []any{
			deref(retailer), deref(name), deref(vertical), deref(brand), deref(category),
			title, url, availability, priceNZD,
		}
		if promoPriceNZD != nil {
			values = append(values, *promoPriceNZD)
		} else {
			values = append(values, "")
		}
		values = append(values, capturedAt)

		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
			f.SetCellValue(sheet, cell, v)
		}
		rowIdx++
	}
	if rows.Err() != nil {
		return fmt.Errorf("error iterating prices: %w", rows.Err())
	}

	if err := f.SaveAs(exportOut); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	logger.Info().Str("path", exportOut).Int("rows", rowIdx-2).Msg("Exported prices")
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
