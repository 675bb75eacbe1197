package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"digipet-api/internal/repository"
	"digipet-api/internal/scheduler"
	"digipet-api/pkg/apierror"
	"digipet-api/pkg/response"
)

// StatsSource reports durable store statistics.
type StatsSource interface {
	Stats(ctx context.Context) (repository.Stats, error)
}

// JobRunner triggers background jobs on demand.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
	Jobs() []string
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	stats     StatsSource
	jobs      JobRunner
	storeType string
	cacheType string
	startTime time.Time
	log       *slog.Logger
}

// NewAdminHandler creates a new admin handler. jobs may be nil when
// workers are disabled.
func NewAdminHandler(stats StatsSource, jobs JobRunner, storeType, cacheType string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		stats:     stats,
		jobs:      jobs,
		storeType: storeType,
		cacheType: cacheType,
		startTime: time.Now(),
		log:       logger.With("component", "admin"),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"uptime_human":   time.Since(h.startTime).Round(time.Second).String(),
		"server_time":    time.Now().UTC().Format(time.RFC3339),
		"store_type":     h.storeType,
		"cache_type":     h.cacheType,
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]any{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if st, err := h.stats.Stats(r.Context()); err != nil {
		stats["store"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		stats["store"] = map[string]any{
			"status":        "connected",
			"pets":          st.Pets,
			"adopted_pets":  st.AdoptedPets,
			"pending_tasks": st.PendingTasks,
		}
	}

	if h.jobs != nil {
		stats["jobs"] = h.jobs.Jobs()
	} else {
		stats["jobs"] = []string{}
	}

	stats["runtime"] = map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunJob handles POST /api/v1/admin/jobs/{name}/run
func (h *AdminHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil || !slices.Contains(h.jobs.Jobs(), name) {
		response.Error(w, apierror.NotFound("unknown job"))
		return
	}

	start := time.Now()
	if err := h.jobs.RunNow(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			response.Error(w, apierror.NotFound("unknown job"))
			return
		}
		h.log.Error("manual job run failed", "job", name, "error", err)
		response.Error(w, apierror.InternalError("job failed"))
		return
	}
	response.OK(w, map[string]any{
		"job":         name,
		"status":      "completed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
