package http

import (
	"net/http"
	"time"

	"github.com/vespa-hub/vespa-results/internal/application/access"
	"github.com/vespa-hub/vespa-results/internal/application/command"
	"github.com/vespa-hub/vespa-results/internal/application/query"
	"github.com/vespa-hub/vespa-results/internal/infrastructure/export"
	"github.com/vespa-hub/vespa-results/internal/interface/http/handlers"
	"github.com/vespa-hub/vespa-results/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "VESPA Results API",
		"version": "v1",
		"endpoints": map[string]string{
			"health":    "/health",
			"load":      "/api/v1/results/load",
			"results":   "/api/v1/results",
			"options":   "/api/v1/results/options",
			"columns":   "/api/v1/results/columns",
			"analytics": "/api/v1/results/analytics",
			"export":    "/api/v1/results/export.csv",
		},
	})
}

// handleHealth reports every check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady handles the readiness probe. Optional dependencies never fail it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"ready": false, "message": status.Message})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"ready": true, "degraded": status.Degraded})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"alive": true})
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	s.load(w, r, false)
}

// handleRefresh is the retry action: the cached scope is dropped and the whole
// pipeline runs again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.load(w, r, true)
}

func (s *Server) load(w http.ResponseWriter, r *http.Request, refresh bool) {
	if s.deps.LoadResults == nil {
		writeJSONError(w, r, http.StatusServiceUnavailable, "service_unavailable", "Loading is not available")
		return
	}
	v := viewerFrom(r)

	res, err := s.deps.LoadResults.Handle(r.Context(), command.LoadResultsCommand{Viewer: v, Refresh: refresh})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleResultsPage(w http.ResponseWriter, r *http.Request) {
	state, err := bindViewState(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.GetResultsPage.Handle(r.Context(), query.GetResultsPageQuery{
		ViewerEmail: viewerFrom(r).Email,
		State:       state,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, res, &ResponseMeta{
		TotalCount: res.Page.TotalFiltered,
		Page:       res.Page.Page,
		PageSize:   res.Page.PageSize,
		HasMore:    res.Page.Page < res.Page.TotalPages,
	})
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.deps.GetFilterOptions.Handle(r.Context(), query.GetFilterOptionsQuery{ViewerEmail: viewerFrom(r).Email})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, opts)
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.deps.GetColumns.Handle(r.Context(), query.GetColumnsQuery{ViewerEmail: viewerFrom(r).Email})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cols)
}

func (s *Server) handleStudentChart(w http.ResponseWriter, r *http.Request) {
	chart, err := s.deps.GetStudentChart.Handle(r.Context(), query.GetStudentChartQuery{
		ViewerEmail: viewerFrom(r).Email,
		StudentID:   r.PathValue("id"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, chart)
}

func (s *Server) handleGroupAnalytics(w http.ResponseWriter, r *http.Request) {
	state, err := bindViewState(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.deps.GetGroupAnalytics.Handle(r.Context(), query.GetGroupAnalyticsQuery{
		ViewerEmail: viewerFrom(r).Email,
		State:       state,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleExport streams the CSV. Headers go out with the first row, so a
// failure before any output still gets a JSON error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	state, err := bindViewState(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := &attachmentWriter{
		w:        w,
		filename: export.Filename(time.Now().Format("2006-01-02")),
	}
	res, err := s.deps.ExportResults.Handle(r.Context(), command.ExportResultsCommand{
		ViewerEmail: viewerFrom(r).Email,
		State:       state,
	}, out)
	if err != nil {
		if !out.started {
			s.writeError(w, r, err)
			return
		}
		logger.FromContext(r.Context()).Error("export interrupted", logger.Err(err))
		return
	}
	if !out.started {
		// Nothing was written, not even the header row.
		out.start()
	}
	if res.AuditID != "" {
		logger.FromContext(r.Context()).Debug("export audited", logger.String("audit_id", res.AuditID))
	}
}

type attachmentWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (a *attachmentWriter) start() {
	a.started = true
	a.w.Header().Set("Content-Type", export.ContentType)
	a.w.Header().Set("Content-Disposition", `attachment; filename="`+a.filename+`"`)
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.start()
	}
	return a.w.Write(p)
}

// viewerFrom returns the viewer stored by the identity middleware.
func viewerFrom(r *http.Request) access.Viewer {
	if v, ok := handlers.ViewerFromContext(r.Context()); ok {
		return v
	}
	return handlers.ViewerFromRequest(r)
}
