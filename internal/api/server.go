// Package api exposes the HTTP interface for the archiver service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mbaxter/webarc/internal/archive"
	"github.com/mbaxter/webarc/internal/config"
	"github.com/mbaxter/webarc/internal/metrics"
	"github.com/mbaxter/webarc/internal/replay"

	"go.uber.org/zap"
)

// maxDiagnosticLinks bounds the 404 diagnostic listing.
const maxDiagnosticLinks = 20

// Store is the persistence surface the HTTP handlers need: the core
// crawl/replay operations plus the listing queries.
type Store interface {
	archive.Store
	ListSites(ctx context.Context) ([]archive.SiteSummary, error)
	ListJobs(ctx context.Context, host string) ([]archive.JobSummary, error)
	ListPages(ctx context.Context, host string, jobID int64) ([]archive.PageSummary, error)
}

// Scheduler starts crawl sessions in the background.
type Scheduler interface {
	Schedule(cfg archive.SessionConfig) error
}

// Server wires HTTP handlers to the store and the crawl scheduler.
type Server struct {
	router    chi.Router
	store     Store
	scheduler Scheduler
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store Store, scheduler Scheduler, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     store,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/archive", s.triggerArchive)
	r.Get("/archived-sites", s.listSites)
	r.Get("/archived-sites/{host}/jobs", s.listSiteJobs)
	r.Get("/archived-sites/{host}/jobs/{jobID}/pages", s.listJobPages)

	r.Get("/web/{jobAndMod}/*", s.replayResource)

	// Requests that bypassed rewritten links: recover context from the
	// Referer header.
	r.Get("/favicon.ico", s.refererFallback)
	r.Get("/static/*", s.refererFallback)
	r.NotFound(s.refererFallback)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type archiveRequest struct {
	URL        string `json:"url"`
	MaxPages   *int   `json:"max_pages"`
	NumWorkers *int   `json:"num_workers"`
}

// triggerArchive schedules a crawl session and returns immediately.
// The job id is created inside the session and is not part of the
// response.
func (s *Server) triggerArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}

	cfg := archive.SessionConfig{
		SeedURL:    req.URL,
		MaxPages:   valueOrDefault(req.MaxPages, s.cfg.Archive.MaxPagesDefault),
		NumWorkers: valueOrDefault(req.NumWorkers, s.cfg.Archive.NumWorkersDefault),
	}
	if err := s.scheduler.Schedule(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("archive failed to schedule: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": fmt.Sprintf("archive scheduled for %s", req.URL),
		"status":  "scheduled",
	})
}

// replayResource serves GET /web/{jobAndMod}/{encodedUrl}.
func (s *Server) replayResource(w http.ResponseWriter, r *http.Request) {
	jobAndMod := chi.URLParam(r, "jobAndMod")

	// The encoded target must keep its percent escapes; the routed path
	// has them decoded, so cut from the escaped form.
	encoded, ok := strings.CutPrefix(r.URL.EscapedPath(), "/web/"+jobAndMod+"/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid replay path")
		return
	}

	decoded, err := replay.DecodePath(jobAndMod, encoded)
	if err != nil {
		metrics.ObserveReplayRequest("bad_request")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.serveArchived(w, r, decoded.JobID, decoded.URL, "hit")
}

// refererFallback handles replay-adjacent requests that did not arrive
// through a rewritten path. Failures are always 404, never 400: the
// client did not directly specify malformed input.
func (s *Server) refererFallback(w http.ResponseWriter, r *http.Request) {
	jobID, target, ok := replay.ResolveReferer(r.Header.Get("Referer"), r.URL.Path)
	if !ok {
		metrics.ObserveReplayRequest("miss")
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.serveArchived(w, r, jobID, target, "fallback_hit")
}

func (s *Server) serveArchived(w http.ResponseWriter, r *http.Request, jobID int64, target, hitOutcome string) {
	res, err := s.store.FetchResource(r.Context(), jobID, target)
	if errors.Is(err, archive.ErrNotFound) {
		metrics.ObserveReplayRequest("miss")
		s.writeNotFound(w, r, jobID, target)
		return
	}
	if err != nil {
		s.logger.Error("fetch resource failed",
			zap.Int64("job_id", jobID),
			zap.String("url", target),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	metrics.ObserveReplayRequest(hitOutcome)

	contentType := res.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if strings.HasPrefix(strings.ToLower(contentType), "text/html") {
		host := ""
		if u, perr := url.Parse(target); perr == nil {
			host = u.Hostname()
		}
		rewritten, rerr := replay.RewriteHTML(string(res.Content), host, jobID)
		if rerr == nil {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			if _, werr := w.Write([]byte(rewritten)); werr != nil {
				s.logger.Error("write response failed", zap.Error(werr))
			}
			return
		}
		s.logger.Warn("html rewrite failed, serving raw",
			zap.Int64("job_id", jobID),
			zap.String("url", target),
			zap.Error(rerr),
		)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, werr := w.Write(res.Content); werr != nil {
		s.logger.Error("write response failed", zap.Error(werr))
	}
}

// writeNotFound responds 404 with a bounded diagnostic sample of what
// the job did archive. The listing query must not fail the request.
func (s *Server) writeNotFound(w http.ResponseWriter, r *http.Request, jobID int64, target string) {
	payload := map[string]any{
		"error": fmt.Sprintf("archived resource not found: %s", target),
	}
	links, err := s.store.ListResources(r.Context(), jobID, maxDiagnosticLinks)
	if err != nil {
		s.logger.Warn("diagnostic listing failed", zap.Int64("job_id", jobID), zap.Error(err))
	} else if len(links) > 0 {
		payload["available"] = links
	}
	writeJSON(w, http.StatusNotFound, payload)
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archived sites")
		return
	}
	if sites == nil {
		sites = []archive.SiteSummary{}
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) listSiteJobs(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	jobs, err := s.store.ListJobs(r.Context(), host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []archive.JobSummary{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) listJobPages(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	jobID, err := parseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	pages, err := s.store.ListPages(r.Context(), host, jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pages")
		return
	}
	if pages == nil {
		pages = []archive.PageSummary{}
	}
	writeJSON(w, http.StatusOK, pages)
}

func valueOrDefault(ptr *int, def int) int {
	if ptr == nil {
		return def
	}
	return *ptr
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
