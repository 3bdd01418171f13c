package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/chronicle/internal/analytics"
	"github.com/loykin/chronicle/internal/job"
	"github.com/loykin/chronicle/internal/metrics"
	"github.com/loykin/chronicle/internal/store"
)

// Router provides embeddable HTTP handlers for ingestion and analytics.
// Endpoints, relative to basePath:
//
//	POST /events/ingest                         body: {"filePath": "..."}
//	GET  /events/ingestion-status/:jobId
//	GET  /events/search                         query: name, start_date_after, end_date_before, sortBy, sortOrder, page, limit
//	GET  /timeline/:rootEventId
//	GET  /insights/overlapping-events
//	GET  /insights/temporal-gaps                query: startDate, endDate
//	GET  /insights/event-influence              query: sourceEventId, targetEventId
//
// /healthz and, when enabled, /metrics are served at the root.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	deps     Deps
	basePath string
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Runner  *job.Runner
	Tracker *job.Tracker
	Service *analytics.Service
	Store   store.Store
	// Metrics mounts the prometheus handler on /metrics.
	Metrics bool
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/events/ingest, /api/timeline/:id, ...
func NewRouter(deps Deps, basePath string) *Router {
	registerValidations()
	return &Router{deps: deps, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealth)
	if r.deps.Metrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	group := g.Group(r.basePath)
	r.Register(group)
	return g
}

// Register mounts the API routes on an existing gin group.
func (r *Router) Register(group *gin.RouterGroup) {
	events := group.Group("/events")
	events.POST("/ingest", r.handleIngest)
	events.GET("/ingestion-status/:jobId", r.handleIngestionStatus)
	events.GET("/search", r.handleSearch)

	group.GET("/timeline/:rootEventId", r.handleTimeline)

	insights := group.Group("/insights")
	insights.GET("/overlapping-events", r.handleOverlaps)
	insights.GET("/temporal-gaps", r.handleTemporalGaps)
	insights.GET("/event-influence", r.handleInfluence)
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Shutdown or Close on the returned server to stop it.
func NewServer(addr, basePath string, deps Deps) (*http.Server, error) {
	r := NewRouter(deps, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "addr", addr, "error", err)
		}
	}()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	FilePath string `json:"filePath" binding:"required"`
}

type ingestResp struct {
	Status  string `json:"status"`
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}

func (r *Router) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "Missing filePath"})
		return
	}
	if !isSafePath(req.FilePath) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid filePath: must be a clean path without traversal"})
		return
	}
	id, err := r.deps.Runner.Submit(req.FilePath)
	if err != nil {
		if errors.Is(err, job.ErrShuttingDown) {
			writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "Server is shutting down"})
			return
		}
		internalError(c, "submit ingestion", err)
		return
	}
	writeJSON(c, http.StatusAccepted, ingestResp{
		Status:  "Ingestion initiated",
		JobID:   id,
		Message: "Check " + r.basePath + "/events/ingestion-status/" + id + " for updates.",
	})
}

func (r *Router) handleIngestionStatus(c *gin.Context) {
	j, ok := r.deps.Tracker.Get(c.Param("jobId"))
	if !ok {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "Job not found"})
		return
	}
	writeJSON(c, http.StatusOK, j)
}

type searchQuery struct {
	Name           string `form:"name"`
	StartDateAfter string `form:"start_date_after" binding:"omitempty,timestamp"`
	EndDateBefore  string `form:"end_date_before" binding:"omitempty,timestamp"`
	SortBy         string `form:"sortBy"`
	SortOrder      string `form:"sortOrder"`
	Page           int    `form:"page"`
	Limit          int    `form:"limit"`
}

func (r *Router) handleSearch(c *gin.Context) {
	var q searchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: bindingMessage(err)})
		return
	}
	page, err := r.deps.Service.Search(c.Request.Context(), q.toStore())
	if err != nil {
		internalError(c, "search events", err)
		return
	}
	writeJSON(c, http.StatusOK, page)
}

func (r *Router) handleTimeline(c *gin.Context) {
	root, err := r.deps.Service.Timeline(c.Request.Context(), c.Param("rootEventId"))
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		writeJSON(c, http.StatusNotFound, errorResp{Error: "Root event not found"})
	case errors.Is(err, analytics.ErrUnresolvedRoot):
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: "Unable to resolve root hierarchy"})
	case err != nil:
		internalError(c, "build timeline", err)
	default:
		writeJSON(c, http.StatusOK, root)
	}
}

func (r *Router) handleOverlaps(c *gin.Context) {
	out, err := r.deps.Service.Overlaps(c.Request.Context())
	if err != nil {
		internalError(c, "find overlaps", err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleTemporalGaps(c *gin.Context) {
	res, err := r.deps.Service.TemporalGap(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		serviceError(c, "find temporal gap", err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (r *Router) handleInfluence(c *gin.Context) {
	res, err := r.deps.Service.InfluencePath(c.Request.Context(), c.Query("sourceEventId"), c.Query("targetEventId"))
	if err != nil {
		serviceError(c, "find influence path", err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

type healthResp struct {
	Status  string             `json:"status"`
	Store   string             `json:"store"`
	Process *metrics.Resources `json:"process,omitempty"`
}

func (r *Router) handleHealth(c *gin.Context) {
	resp := healthResp{Status: "ok", Store: "ok"}
	if res, err := metrics.SampleResources(); err == nil {
		resp.Process = &res
	}
	if r.deps.Store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := r.deps.Store.Ping(ctx); err != nil {
			slog.Warn("Store health check failed", "error", err)
			resp.Status, resp.Store = "degraded", "unreachable"
			writeJSON(c, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

// serviceError answers caller input errors with 400 and everything else
// with a generic 500.
func serviceError(c *gin.Context, op string, err error) {
	if errors.Is(err, analytics.ErrValidation) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	internalError(c, op, err)
}

// internalError logs the cause and hides it from the caller.
func internalError(c *gin.Context, op string, err error) {
	slog.Error("Request failed", "op", op, "path", c.Request.URL.Path, "error", err)
	writeJSON(c, http.StatusInternalServerError, errorResp{Error: "Internal server error"})
}
