package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appmand/appmand/internal/engine"
	"github.com/appmand/appmand/internal/metrics"
)

// Router provides embeddable HTTP handlers over the lifecycle engine.
// Endpoints:
//
//	POST {basePath}/launch     query: app=...
//	POST {basePath}/close      query: app=...
//	POST {basePath}/close-all
//	GET  {basePath}/status
//	GET  {basePath}/stats
//	GET  {basePath}/metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	eng      *engine.Engine
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/api" results in /api/launch, /api/status, ...
func NewRouter(eng *engine.Engine, basePath string) *Router {
	return &Router{eng: eng, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/launch", r.handleLaunch)
	group.POST("/close", r.handleClose)
	group.POST("/close-all", r.handleCloseAll)
	group.GET("/status", r.handleStatus)
	group.GET("/stats", r.handleStats)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Callers shut it down via the returned http.Server.
func NewServer(addr, basePath string, eng *engine.Engine) (*http.Server, error) {
	r := NewRouter(eng, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type closedResp struct {
	Closed []string `json:"closed"`
}

func (r *Router) handleLaunch(c *gin.Context) {
	app := c.Query("app")
	if !isSafeName(app) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "app query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	if err := r.eng.Launch(c.Request.Context(), app); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleClose(c *gin.Context) {
	app := c.Query("app")
	if !isSafeName(app) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "app query param required: allowed [A-Za-z0-9._-]"})
		return
	}
	if err := r.eng.Close(c.Request.Context(), app); err != nil {
		writeJSON(c, statusFor(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCloseAll(c *gin.Context) {
	closed := r.eng.CloseAll(c.Request.Context())
	if closed == nil {
		closed = []string{}
	}
	writeJSON(c, http.StatusOK, closedResp{Closed: closed})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Status())
}

func (r *Router) handleStats(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.eng.Stats(c.Request.Context()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrAlreadyRunning), errors.Is(err, engine.ErrNotRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
