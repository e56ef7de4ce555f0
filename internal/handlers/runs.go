package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/worthit/ingest-service/internal/database"
)

// ListRunsRequest represents query parameters for listing ingestion runs
type ListRunsRequest struct {
	Retailer string `form:"retailer" json:"retailer"`
	Status   string `form:"status" json:"status" jsonschema:"enum=running,enum=completed,enum=failed"`
	Limit    int    `form:"limit" json:"limit" binding:"min=0,max=100" jsonschema:"minimum=1,maximum=100"`
	Offset   int    `form:"offset" json:"offset" binding:"min=0" jsonschema:"minimum=0"`
}

// ListRunsResponse represents the response for listing ingestion runs
type ListRunsResponse struct {
	Runs  []IngestionRun `json:"runs" jsonschema:"required"`
	Total int            `json:"total" jsonschema:"required"`
}

// IngestionRun represents an ingestion run response
type IngestionRun struct {
	ID           string     `json:"id" jsonschema:"required"`
	Retailer     string     `json:"retailer" jsonschema:"required"`
	Status       string     `json:"status" jsonschema:"required,enum=running,enum=completed,enum=failed"`
	ItemsTotal   int        `json:"itemsTotal" jsonschema:"required"`
	ItemsNew     int        `json:"itemsNew" jsonschema:"required"`
	ItemsUpdated int        `json:"itemsUpdated" jsonschema:"required"`
	ItemsFailed  int        `json:"itemsFailed" jsonschema:"required"`
	UsedFixture  bool       `json:"usedFixture" jsonschema:"required"`
	ErrorSummary *string    `json:"errorSummary"`
	StartedAt    time.Time  `json:"startedAt" jsonschema:"required"`
	FinishedAt   *time.Time `json:"finishedAt"`
}

const runSelect = `
	SELECT r.id, rt.slug, r.status, r.items_total, r.items_new, r.items_updated,
	       r.items_failed, r.used_fixture, r.error_summary, r.started_at, r.finished_at
	FROM ingestion_runs r
	JOIN retailers rt ON rt.id = r.retailer_id
`

// ListRuns returns a paginated list of ingestion runs with optional filters
// GET /internal/ingestion/runs
func ListRuns(c *gin.Context) {
	var req ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	pool := database.Pool()
	ctx := c.Request.Context()

	where := ""
	args := []interface{}{}
	argIdx := 1

	if req.Retailer != "" {
		where += fmt.Sprintf(" AND rt.slug = $%d", argIdx)
		args = append(args, req.Retailer)
		argIdx++
	}
	if req.Status != "" {
		where += fmt.Sprintf(" AND r.status = $%d", argIdx)
		args = append(args, req.Status)
		argIdx++
	}

	countQuery := `
		SELECT COUNT(*) FROM ingestion_runs r
		JOIN retailers rt ON rt.id = r.retailer_id
		WHERE 1=1` + where

	var total int
	if err := pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count runs"})
		return
	}

	query := runSelect + " WHERE 1=1" + where +
		fmt.Sprintf(" ORDER BY r.started_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}
	defer rows.Close()

	runs := []IngestionRun{}
	for rows.Next() {
		var run IngestionRun
		if err := rows.Scan(
			&run.ID, &run.Retailer, &run.Status, &run.ItemsTotal, &run.ItemsNew,
			&run.ItemsUpdated, &run.ItemsFailed, &run.UsedFixture, &run.ErrorSummary,
			&run.StartedAt, &run.FinishedAt,
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan run"})
			return
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error iterating runs"})
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{Runs: runs, Total: total})
}

// GetRun returns a single ingestion run by ID
// GET /internal/ingestion/runs/:runId
func GetRun(c *gin.Context) {
	runID := c.Param("runId")
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "runId is required"})
		return
	}

	pool := database.Pool()

	var run IngestionRun
	err := pool.QueryRow(c.Request.Context(), runSelect+" WHERE r.id = $1", runID).Scan(
		&run.ID, &run.Retailer, &run.Status, &run.ItemsTotal, &run.ItemsNew,
		&run.ItemsUpdated, &run.ItemsFailed, &run.UsedFixture, &run.ErrorSummary,
		&run.StartedAt, &run.FinishedAt,
	)
	if err == pgx.ErrNoRows {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// GetStatsRequest represents query parameters for getting ingestion stats
type GetStatsRequest struct {
	From string `form:"from" json:"from" binding:"required" jsonschema:"required"`
	To   string `form:"to" json:"to" binding:"required" jsonschema:"required"`
}

// StatsBucket represents a single time bucket in stats
type StatsBucket struct {
	Label       string `json:"label" jsonschema:"required"` // "24h", "7d", "30d"
	TotalRuns   int    `json:"totalRuns" jsonschema:"required"`
	Completed   int    `json:"completed" jsonschema:"required"`
	Failed      int    `json:"failed" jsonschema:"required"`
	Running     int    `json:"running" jsonschema:"required"`
	FixtureRuns int    `json:"fixtureRuns" jsonschema:"required"`
	ItemsTotal  int    `json:"itemsTotal" jsonschema:"required"`
	ItemsFailed int    `json:"itemsFailed" jsonschema:"required"`
}

// GetStatsResponse represents the response for ingestion stats
type GetStatsResponse struct {
	Buckets []StatsBucket `json:"buckets" jsonschema:"required"`
}

// GetStats returns aggregated run statistics for a time range (24h/7d/30d buckets)
// GET /internal/ingestion/stats
func GetStats(c *gin.Context) {
	var req GetStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, err := time.Parse(time.RFC3339, req.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date format, use RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date format, use RFC3339"})
		return
	}

	pool := database.Pool()
	ctx := c.Request.Context()

	buckets := []StatsBucket{
		{Label: "24h"},
		{Label: "7d"},
		{Label: "30d"},
	}

	for i := range buckets {
		var bucketFrom time.Time
		switch buckets[i].Label {
		case "24h":
			bucketFrom = to.Add(-24 * time.Hour)
		case "7d":
			bucketFrom = to.Add(-7 * 24 * time.Hour)
		case "30d":
			bucketFrom = to.Add(-30 * 24 * time.Hour)
		}
		if bucketFrom.Before(from) {
			bucketFrom = from
		}

		query := `
			SELECT
				COUNT(*) as total_runs,
				COUNT(*) FILTER (WHERE status = 'completed') as completed,
				COUNT(*) FILTER (WHERE status = 'failed') as failed,
				COUNT(*) FILTER (WHERE status = 'running') as running,
				COUNT(*) FILTER (WHERE used_fixture) as fixture_runs,
				COALESCE(SUM(items_total), 0) as items_total,
				COALESCE(SUM(items_failed), 0) as items_failed
			FROM ingestion_runs
			WHERE started_at >= $1 AND started_at <= $2
		`
		err := pool.QueryRow(ctx, query, bucketFrom, to).Scan(
			&buckets[i].TotalRuns, &buckets[i].Completed, &buckets[i].Failed,
			&buckets[i].Running, &buckets[i].FixtureRuns,
			&buckets[i].ItemsTotal, &buckets[i].ItemsFailed,
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
			return
		}
	}

	c.JSON(http.StatusOK, GetStatsResponse{Buckets: buckets})
}
