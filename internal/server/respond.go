package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jamesruggles/reportsuite/internal/auth"
	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/playbook"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/status"
	"github.com/jamesruggles/reportsuite/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, env *status.Envelope) {
	writeJSON(w, env.Status, env)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeEnvelope(w, status.Error(code, msg))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// fail maps domain errors to status envelopes. Anything unrecognised is
// logged and reported as a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var structure *playbook.InvalidStructureError
	var incomplete *completeness.IncompleteVulnerabilityError
	switch {
	case errors.As(err, &structure):
		writeEnvelope(w, &status.Envelope{
			Status:   http.StatusBadRequest,
			Severity: status.SeverityError,
			Message:  err.Error(),
			Payload:  map[string]string{"error": "InvalidPlaybookStructure", "path": structure.Path},
		})
	case errors.As(err, &incomplete):
		writeEnvelope(w, &status.Envelope{
			Status:   http.StatusBadRequest,
			Severity: status.SeverityError,
			Message:  err.Error(),
			Payload: map[string]any{
				"vulnerability_id": incomplete.VulnerabilityID,
				"title":            incomplete.Title,
				"missing":          incomplete.Missing,
			},
		})
	case errors.Is(err, version.ErrInvalidData), errors.Is(err, playbook.ErrMissingTranslation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, version.ErrNotFound), errors.Is(err, report.ErrReportNotFound):
		writeError(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Authentication required.")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "You do not have access to this resource.")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func currentUser(r *http.Request) *database.User {
	return auth.UserFrom(r.Context())
}

// reportAccess resolves {report_id} and checks the caller may touch it.
func (s *Server) reportAccess(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(w, r, "report_id")
	if !ok {
		return 0, false
	}
	found, err := s.authz.CheckReport(currentUser(r), id)
	if err != nil {
		s.fail(w, r, err)
		return 0, false
	}
	if !found {
		writeError(w, http.StatusNotFound, "Report not found.")
		return 0, false
	}
	return id, true
}

// projectAccess resolves {project_id} and checks the caller may touch it.
func (s *Server) projectAccess(w http.ResponseWriter, r *http.Request) (*database.Project, bool) {
	id, ok := pathID(w, r, "project_id")
	if !ok {
		return nil, false
	}
	p, err := s.db.GetProject(id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Project not found.")
		return nil, false
	}
	if err := s.authz.CheckProject(currentUser(r), id); err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return p, true
}

// sectionAccess resolves {report_id} and {section_id}; the section must
// belong to the report.
func (s *Server) sectionAccess(w http.ResponseWriter, r *http.Request) (*database.ReportSection, bool) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return nil, false
	}
	sectionID, ok := pathID(w, r, "section_id")
	if !ok {
		return nil, false
	}
	sec, err := s.db.GetSection(reportID, sectionID)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if sec == nil {
		writeError(w, http.StatusNotFound, "Section not found.")
		return nil, false
	}
	return sec, true
}

func requireAdmin(r *http.Request) error {
	u := currentUser(r)
	if u == nil {
		return auth.ErrUnauthenticated
	}
	if !u.IsAdmin {
		return auth.ErrForbidden
	}
	return nil
}
