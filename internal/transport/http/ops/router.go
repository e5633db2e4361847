package opshttp

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marketsync/internal/ingest"
	"marketsync/internal/market"
	"marketsync/internal/store"
	"marketsync/internal/store/runlog"

	"github.com/gin-gonic/gin"
)

// EngineReader is the slice of the ingestion engine the ops API needs.
type EngineReader interface {
	HealthCheck(ctx context.Context) bool
	Progress(ctx context.Context, from, to time.Time) (*ingest.ProgressReport, error)
}

// StoreReader serves checkpoint and symbol listings.
type StoreReader interface {
	ListCheckpoints(ctx context.Context) ([]store.Checkpoint, error)
	ListSymbols(ctx context.Context) ([]market.Symbol, error)
}

// RunLogReader serves recent batch run summaries. Optional.
type RunLogReader interface {
	Recent(ctx context.Context, limit int) ([]runlog.Record, error)
}

// Router wires the read-only ops endpoints.
type Router struct {
	engine EngineReader
	store  StoreReader
	runs   RunLogReader
}

func NewRouter(engine EngineReader, st StoreReader, runs RunLogReader) *Router {
	return &Router{engine: engine, store: st, runs: runs}
}

// Register mounts the ops routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/progress", r.handleProgress)
	group.GET("/checkpoints", r.handleCheckpoints)
	group.GET("/symbols", r.handleSymbols)
	if r.runs != nil {
		group.GET("/runs", r.handleRuns)
	}
}

func (r *Router) handleProgress(c *gin.Context) {
	from := parseDateQuery(c, "from")
	to := parseDateQuery(c, "to")
	report, err := r.engine.Progress(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (r *Router) handleCheckpoints(c *gin.Context) {
	cps, err := r.store.ListCheckpoints(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(cps))
	for _, cp := range cps {
		row := gin.H{
			"symbol":         cp.Symbol,
			"source":         cp.Source,
			"granularity":    cp.Granularity.String(),
			"last_run_date":  cp.LastRunDate.Format(time.DateOnly),
			"records_loaded": cp.RecordsLoaded,
			"status":         cp.Status,
		}
		if cp.LastSuccessfulDate != nil {
			row["last_successful_date"] = cp.LastSuccessfulDate.Format(time.DateOnly)
		}
		if cp.ErrorMessage != "" {
			row["error_message"] = cp.ErrorMessage
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) handleSymbols(c *gin.Context) {
	syms, err := r.store.ListSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(syms), "symbols": syms})
}

func (r *Router) handleRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := r.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

func parseDateQuery(c *gin.Context, key string) time.Time {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
