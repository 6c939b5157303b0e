package server

import (
	"fmt"
	"net/http"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/version"
)

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	versions, err := s.versions.List(reportID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if versions == nil {
		versions = []database.VersionSummary{}
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	var in version.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	env, err := s.versions.Create(r.Context(), reportID, currentUser(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, env)
}

type versionUpdate struct {
	ID int64 `json:"id"`
	version.Input
}

func (s *Server) handleUpdateVersion(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	var in versionUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	env, err := s.versions.Update(r.Context(), reportID, in.ID, currentUser(r), in.Input)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, env)
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	env, err := s.versions.Delete(reportID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, env)
}

func (s *Server) handleRegenerateVersion(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	env, err := s.versions.Regenerate(r.Context(), reportID, id, currentUser(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, env)
}

// handleDownloadVersion serves a stored artifact. Artifacts that do not
// exist yet come back as a 200 placeholder so polling clients can retry.
func (s *Server) handleDownloadVersion(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "version_id")
	if !ok {
		return
	}
	kind := r.PathValue("kind")
	if !version.ValidKind(kind) {
		http.NotFound(w, r)
		return
	}
	dl, err := s.versions.Artifact(reportID, id, kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", dl.ContentType)
	if dl.FileName != "" {
		disposition := "attachment"
		if dl.Inline {
			disposition = "inline"
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, dl.FileName))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(dl.Content)
}
