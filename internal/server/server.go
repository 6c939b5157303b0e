// Package server exposes the report API over HTTP and the per-user
// notification channel over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesruggles/reportsuite/internal/auth"
	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/config"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/metrics"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/playbook"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/version"
)

// Deps are the services the handlers call into.
type Deps struct {
	DB       *database.DB
	Checker  *completeness.Checker
	Versions *version.Dispatcher
	Registry *notify.Registry
	Metrics  *metrics.Metrics
}

type Server struct {
	cfg       *config.Config
	db        *database.DB
	authn     *auth.Authenticator
	authz     *auth.Authorizer
	checker   *completeness.Checker
	attacher  *playbook.Attacher
	versions  *version.Dispatcher
	reportGen *report.Generator
	registry  *notify.Registry
	metrics   *metrics.Metrics
	mux       *http.ServeMux
}

func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		db:        deps.DB,
		authn:     auth.NewAuthenticator(deps.DB, cfg.Auth.UserHeader),
		authz:     auth.NewAuthorizer(deps.DB),
		checker:   deps.Checker,
		attacher:  playbook.NewAttacher(deps.DB, deps.Metrics),
		versions:  deps.Versions,
		reportGen: report.NewGenerator(deps.DB),
		registry:  deps.Registry,
		metrics:   deps.Metrics,
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed API wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	limited := rateLimit(s.cfg.Server.RateLimit, s.cfg.Server.Burst, s.mux)
	return recoveryMiddleware(securityHeaders(loggingMiddleware(tracingMiddleware(limited))))
}

// ListenAndServe serves until ctx is cancelled and then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics.Handler())
	}

	api := http.NewServeMux()

	// Projects & reports
	api.HandleFunc("GET /api/projects", s.handleListProjects)
	api.HandleFunc("POST /api/projects", s.handleCreateProject)
	api.HandleFunc("GET /api/projects/{project_id}", s.handleGetProject)
	api.HandleFunc("PUT /api/projects/{project_id}", s.handleUpdateProject)
	api.HandleFunc("DELETE /api/projects/{project_id}", s.handleDeleteProject)
	api.HandleFunc("GET /api/projects/{project_id}/reports", s.handleListReports)
	api.HandleFunc("POST /api/projects/{project_id}/reports", s.handleCreateReport)
	api.HandleFunc("GET /api/reports/{report_id}", s.handleGetReport)
	api.HandleFunc("GET /api/reports/{report_id}/preview", s.handlePreview)
	api.HandleFunc("GET /api/languages", s.handleListLanguages)
	api.HandleFunc("POST /api/languages", s.handleCreateLanguage)

	// Scope
	api.HandleFunc("GET /api/reports/{report_id}/scopes", s.handleListScopes)
	api.HandleFunc("POST /api/reports/{report_id}/scopes", s.handleCreateScope)
	api.HandleFunc("PUT /api/reports/{report_id}/scopes", s.handleUpdateScope)
	api.HandleFunc("DELETE /api/reports/{report_id}/scopes/{scope_id}", s.handleDeleteScope)

	// Sections
	api.HandleFunc("GET /api/reports/{report_id}/sections", s.handleListSections)
	api.HandleFunc("POST /api/reports/{report_id}/sections", s.handleCreateSection)
	api.HandleFunc("PUT /api/reports/{report_id}/sections", s.handleUpdateSection)
	api.HandleFunc("DELETE /api/reports/{report_id}/sections/{section_id}", s.handleDeleteSection)
	api.HandleFunc("PUT /api/reports/{report_id}/sections/{section_id}/move-up", s.handleMoveSection)
	api.HandleFunc("PUT /api/reports/{report_id}/sections/{section_id}/move-down", s.handleMoveSection)

	// Section playbooks
	api.HandleFunc("GET /api/reports/{report_id}/sections/{section_id}/playbooks", s.handleListSectionPlaybooks)
	api.HandleFunc("POST /api/reports/{report_id}/sections/{section_id}/playbooks", s.handleAttachPlaybooks)
	api.HandleFunc("DELETE /api/reports/{report_id}/sections/{section_id}/playbooks/{playbook_id}", s.handleDeleteSectionPlaybook)
	api.HandleFunc("PUT /api/reports/{report_id}/sections/{section_id}/playbooks/{playbook_id}/move-up", s.handleMoveSectionPlaybook)
	api.HandleFunc("PUT /api/reports/{report_id}/sections/{section_id}/playbooks/{playbook_id}/move-down", s.handleMoveSectionPlaybook)
	api.HandleFunc("PUT /api/reports/{report_id}/procedures/{procedure_id}", s.handleUpdateProcedure)

	// Vulnerabilities
	api.HandleFunc("GET /api/reports/{report_id}/sections/{section_id}/vulnerabilities", s.handleListVulnerabilities)
	api.HandleFunc("POST /api/reports/{report_id}/sections/{section_id}/vulnerabilities", s.handleCreateVulnerability)
	api.HandleFunc("GET /api/reports/{report_id}/sections/{section_id}/vulnerabilities/{vulnerability_id}", s.handleGetVulnerability)
	api.HandleFunc("PUT /api/reports/{report_id}/sections/{section_id}/vulnerabilities/{vulnerability_id}", s.handleUpdateVulnerability)
	api.HandleFunc("DELETE /api/reports/{report_id}/sections/{section_id}/vulnerabilities/{vulnerability_id}", s.handleDeleteVulnerability)

	// Versions
	api.HandleFunc("GET /api/reports/{report_id}/versions", s.handleListVersions)
	api.HandleFunc("POST /api/reports/{report_id}/versions", s.handleCreateVersion)
	api.HandleFunc("PUT /api/reports/{report_id}/versions", s.handleUpdateVersion)
	api.HandleFunc("DELETE /api/reports/{report_id}/versions/{version_id}", s.handleDeleteVersion)
	api.HandleFunc("PUT /api/reports/{report_id}/versions/{version_id}/regenerate", s.handleRegenerateVersion)
	api.HandleFunc("GET /api/reports/{report_id}/versions/{version_id}/{kind}", s.handleDownloadVersion)

	// Templates
	api.HandleFunc("GET /api/templates/playbooks", s.handleListPlaybookTemplates)
	api.HandleFunc("POST /api/templates/playbooks", s.handleCreatePlaybookTemplate)
	api.HandleFunc("GET /api/templates/procedures", s.handleListProcedureTemplates)
	api.HandleFunc("POST /api/templates/procedures", s.handleCreateProcedureTemplate)
	api.HandleFunc("GET /api/templates/vulnerabilities", s.handleListVulnerabilityTemplates)
	api.HandleFunc("POST /api/templates/vulnerabilities", s.handleCreateVulnerabilityTemplate)

	// WebSocket
	api.HandleFunc("GET /api/ws", s.handleWebSocket)

	s.mux.Handle("/api/", s.requireUser(api))
}
