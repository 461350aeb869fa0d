package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"rescue-map/internal/models"
	"rescue-map/internal/render"
	"rescue-map/internal/repository"
	"rescue-map/internal/services"
	"rescue-map/pkg/logging"
	"rescue-map/pkg/metrics"
)

// Pagination limits for snapshot listings
const (
	defaultLimit = 50
	maxLimit     = 500
)

// MapHandler serves aggregate views of one loaded map. The map is shared
// read-only by every request.
type MapHandler struct {
	parsed     *models.ParsedMap
	aggregator *services.AggregationService
	snapshots  repository.SnapshotRepository
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewMapHandler creates a new map handler. snapshots may be nil, in which
// case the snapshot routes are not registered.
func NewMapHandler(
	parsed *models.ParsedMap,
	aggregator *services.AggregationService,
	snapshots repository.SnapshotRepository,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *MapHandler {
	return &MapHandler{
		parsed:     parsed,
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Count int         `json:"count"`
}

// MapSummary is the body of GET /api/map
type MapSummary struct {
	SourcePath          string                `json:"source_path"`
	Dimensions          models.GridDimensions `json:"dimensions"`
	ExpectedSurvivors   int                   `json:"expected_survivors"`
	SurvivorCount       int                   `json:"survivor_count"`
	ObstacleCount       int                   `json:"obstacle_count"`
	SurvivorDiscrepancy int                   `json:"survivor_discrepancy"`
	Lines               models.LineStats      `json:"lines"`
}

// summarize builds the map summary for m
func summarize(m *models.ParsedMap) MapSummary {
	return MapSummary{
		SourcePath:          m.SourcePath,
		Dimensions:          m.Dimensions,
		ExpectedSurvivors:   m.ExpectedSurvivors,
		SurvivorCount:       len(m.Survivors),
		ObstacleCount:       len(m.Obstacles),
		SurvivorDiscrepancy: m.SurvivorDiscrepancy(),
		Lines:               m.Lines,
	}
}

// GetMap handles GET /api/map
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map")()

	h.metrics.RecordAPIRequest("/api/map", "GET", "200")
	h.sendJSON(w, summarize(h.parsed), http.StatusOK)
}

// GetFloors handles GET /api/map/floors
func (h *MapHandler) GetFloors(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map/floors")()

	floors := h.aggregator.Floors(r.Context(), h.parsed)

	h.metrics.RecordAPIRequest("/api/map/floors", "GET", "200")
	h.sendJSON(w, floors, http.StatusOK)
}

// GetTemperature handles GET /api/map/temperature
func (h *MapHandler) GetTemperature(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map/temperature")()

	buckets := h.aggregator.Temperature(r.Context(), h.parsed)

	h.metrics.RecordAPIRequest("/api/map/temperature", "GET", "200")
	h.sendJSON(w, buckets, http.StatusOK)
}

// GetStatistics handles GET /api/map/statistics
func (h *MapHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map/statistics")()

	stats, err := h.aggregator.Statistics(r.Context(), h.parsed)
	if errors.Is(err, models.ErrEmptyInput) {
		h.metrics.RecordAPIError("empty_input", "/api/map/statistics")
		h.sendErrorCode(w, r, "EmptyInput", "map contains no survivors", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.metrics.RecordAPIError("internal_error", "/api/map/statistics")
		h.sendError(w, r, "failed to compute statistics", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/map/statistics", "GET", "200")
	h.sendJSON(w, stats, http.StatusOK)
}

// GetReport handles GET /api/map/report
func (h *MapHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map/report")()

	report := h.aggregator.BuildReport(r.Context(), h.parsed)

	h.metrics.RecordAPIRequest("/api/map/report", "GET", "200")
	h.sendJSON(w, report, http.StatusOK)
}

// Render3D handles GET /api/map/render/3d
func (h *MapHandler) Render3D(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map/render/3d")()

	h.sendBuilding3D(w, r, h.parsed, "/api/map/render/3d")
}

// ListSnapshots handles GET /api/snapshots
func (h *MapHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/snapshots")()

	page, limit := pagination(r)

	snapshots, err := h.snapshots.ListSnapshots(ctx, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_SNAPSHOTS_ERROR] Failed to list snapshots", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/snapshots")
		h.sendError(w, r, "failed to retrieve snapshots", http.StatusInternalServerError)
		return
	}

	response := PaginatedResponse{
		Data:  snapshots,
		Page:  page,
		Limit: limit,
		Count: len(snapshots),
	}

	h.metrics.RecordAPIRequest("/api/snapshots", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetSnapshot handles GET /api/snapshots/{id}
func (h *MapHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/snapshots/{id}")()

	id, ok := h.snapshotID(w, r)
	if !ok {
		return
	}

	snap, err := h.snapshots.GetSnapshot(ctx, id)
	if err != nil {
		h.sendRepositoryError(w, r, "/api/snapshots/{id}", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/snapshots/{id}", "GET", "200")
	h.sendJSON(w, snap, http.StatusOK)
}

// GetSnapshotFloors handles GET /api/snapshots/{id}/floors
func (h *MapHandler) GetSnapshotFloors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/snapshots/{id}/floors")()

	id, ok := h.snapshotID(w, r)
	if !ok {
		return
	}

	floors, err := h.snapshots.GetFloorRecords(ctx, id)
	if err != nil {
		h.sendRepositoryError(w, r, "/api/snapshots/{id}/floors", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/snapshots/{id}/floors", "GET", "200")
	h.sendJSON(w, floors, http.StatusOK)
}

// RenderSnapshot3D handles GET /api/snapshots/{id}/render/3d
func (h *MapHandler) RenderSnapshot3D(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/snapshots/{id}/render/3d")()

	id, ok := h.snapshotID(w, r)
	if !ok {
		return
	}

	m, err := h.snapshots.LoadMap(ctx, id)
	if err != nil {
		h.sendRepositoryError(w, r, "/api/snapshots/{id}/render/3d", err)
		return
	}

	h.sendBuilding3D(w, r, m, "/api/snapshots/{id}/render/3d")
}

// HealthCheck handles GET /health
func (h *MapHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"map":       h.parsed.SourcePath,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if h.snapshots != nil {
		status["database"] = "ok"
		if err := h.snapshots.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_DEGRADED] Snapshot store unreachable", logging.Fields{
				"error": err.Error(),
			})
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// RegisterRoutes registers all map API routes
func (h *MapHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/map", h.GetMap).Methods("GET")
	router.HandleFunc("/api/map/floors", h.GetFloors).Methods("GET")
	router.HandleFunc("/api/map/temperature", h.GetTemperature).Methods("GET")
	router.HandleFunc("/api/map/statistics", h.GetStatistics).Methods("GET")
	router.HandleFunc("/api/map/report", h.GetReport).Methods("GET")
	router.HandleFunc("/api/map/render/3d", h.Render3D).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	if h.snapshots != nil {
		router.HandleFunc("/api/snapshots", h.ListSnapshots).Methods("GET")
		router.HandleFunc("/api/snapshots/{id}", h.GetSnapshot).Methods("GET")
		router.HandleFunc("/api/snapshots/{id}/floors", h.GetSnapshotFloors).Methods("GET")
		router.HandleFunc("/api/snapshots/{id}/render/3d", h.RenderSnapshot3D).Methods("GET")
	}
}

// observe returns a func recording the request duration for endpoint
func (h *MapHandler) observe(endpoint string) func() {
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	return func() { timer.ObserveDuration() }
}

// sendBuilding3D renders the interactive building page for m. The page is
// buffered so a render failure can still produce a JSON error.
func (h *MapHandler) sendBuilding3D(w http.ResponseWriter, r *http.Request, m *models.ParsedMap, endpoint string) {
	ctx := r.Context()
	buckets := h.aggregator.Temperature(ctx, m)

	var buf bytes.Buffer
	if err := render.Building3DPage(&buf, m, buckets); err != nil {
		h.logger.Error(ctx, "[API_RENDER_ERROR] Failed to render 3D page", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordRenderError(render.ArtifactBuilding3D)
		h.metrics.RecordAPIError("render_error", endpoint)
		h.sendError(w, r, "failed to render 3D view", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// snapshotID parses the {id} route variable, answering 400 when invalid
func (h *MapHandler) snapshotID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.metrics.RecordAPIError("bad_request", routeLabel(r))
		h.sendError(w, r, "invalid snapshot id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// routeLabel returns the matched route template, never the raw path
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// sendRepositoryError maps repository failures to 404 or 500
func (h *MapHandler) sendRepositoryError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		h.metrics.RecordAPIError("not_found", endpoint)
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
		return
	}

	h.logger.Error(r.Context(), "[API_SNAPSHOT_ERROR] Snapshot store request failed", logging.Fields{
		"endpoint": endpoint,
	}, err)
	h.metrics.RecordAPIError("internal_error", endpoint)
	h.sendError(w, r, "failed to retrieve snapshot", http.StatusInternalServerError)
}

// pagination reads page and limit query parameters, ignoring invalid values
func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, defaultLimit

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	return page, limit
}

// sendJSON sends a JSON response
func (h *MapHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response named after the status code
func (h *MapHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.sendErrorCode(w, r, http.StatusText(statusCode), message, statusCode)
}

// sendErrorCode sends an error response with an explicit error name
func (h *MapHandler) sendErrorCode(w http.ResponseWriter, r *http.Request, name, message string, statusCode int) {
	h.metrics.RecordAPIRequest(routeLabel(r), r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   name,
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}
