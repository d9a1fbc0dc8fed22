// Package admin provides the HTTP admin dashboard for monitoring the
// opportunity discovery pipeline.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/pipeline"
	"github.com/learnbot/opportunity-hunter/internal/scheduler"
	"github.com/learnbot/opportunity-hunter/internal/scraper"
	"github.com/learnbot/opportunity-hunter/internal/storage"
)

// Handler provides HTTP endpoints for the admin dashboard.
type Handler struct {
	store     storage.Store
	scheduler *scheduler.Scheduler
	health    *scraper.HealthTracker
	history   *History
	orch      *pipeline.Orchestrator
	logger    *log.Logger
}

// NewHandler creates a new admin Handler.
func NewHandler(store storage.Store, sched *scheduler.Scheduler, health *scraper.HealthTracker, history *History, orch *pipeline.Orchestrator, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		store:     store,
		scheduler: sched,
		health:    health,
		history:   history,
		orch:      orch,
		logger:    logger,
	}
}

// RegisterRoutes registers all admin routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/stats", h.GetStats)
	mux.HandleFunc("/admin/runs", h.GetRecentRuns)
	mux.HandleFunc("/admin/scrape/trigger", h.TriggerScrape)
	mux.HandleFunc("/admin/opportunities", h.SearchOpportunities)
	mux.HandleFunc("/admin/opportunities/", h.GetOpportunity)
	mux.HandleFunc("/admin/health", h.Health)
}

// GetStats returns aggregated pipeline statistics.
// GET /admin/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Printf("[admin] GetStats error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":      stats,
		"is_running": h.scheduler.IsRunning(),
		"timestamp":  time.Now().UTC(),
	})
}

// GetRecentRuns returns the most recent pipeline ticks.
// GET /admin/runs?limit=20
func (h *Handler) GetRecentRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	runs := h.history.Recent(limit)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// TriggerScrape triggers an immediate pipeline tick, recording the
// result into the run history.
// POST /admin/scrape/trigger
func (h *Handler) TriggerScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.scheduler.IsRunning() {
		h.writeJSON(w, http.StatusConflict, map[string]interface{}{
			"message": "a tick is already running",
			"running": true,
		})
		return
	}

	go func() {
		summary, err := h.orch.Tick(context.Background())
		h.history.Record(summary, err)
		if err != nil {
			h.logger.Printf("[admin] triggered tick failed: %v", err)
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "tick triggered",
		"running": true,
	})
}

// SearchOpportunities searches the opportunity store with filters.
// GET /admin/opportunities?min_score=70&status=scored&platform=remotive&limit=20
func (h *Handler) SearchOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	filter := model.SearchFilter{
		Status:   model.Status(q.Get("status")),
		Platform: model.Platform(q.Get("platform")),
	}
	if ms := q.Get("min_score"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			filter.MinScore = n
		}
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}

	opps, err := h.store.GetTopN(r.Context(), filter)
	if err != nil {
		h.logger.Printf("[admin] SearchOpportunities error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "failed to search opportunities")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// GetOpportunity retrieves a single opportunity by its natural key.
// GET /admin/opportunities/{natural_key}
func (h *Handler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/admin/opportunities/")
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "natural key is required")
		return
	}

	opp, err := h.store.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.logger.Printf("[admin] GetOpportunity error: %v", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}
	if opp == nil {
		h.writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	h.writeJSON(w, http.StatusOK, opp)
}

// Health reports service and per-source scraper health.
// GET /admin/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"is_running": h.scheduler.IsRunning(),
		"sources":    h.health.Snapshot(),
		"time":       time.Now().UTC(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("[admin] JSON encode error: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
