package server

import (
	"net/http"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/status"
)

// --- Projects ---

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var userID int64
	if !u.IsAdmin {
		userID = u.ID
	}
	projects, err := s.db.ListProjects(userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if projects == nil {
		projects = []database.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p database.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	u := currentUser(r)
	err := s.db.WithTx(func(tx *database.DB) error {
		if err := tx.CreateProject(&p); err != nil {
			return err
		}
		return tx.GrantProjectAccess(u.ID, p.ID)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Project successfully created.", p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	var p database.Project
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = existing.ID
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	updated, err := s.db.UpdateProject(&p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Project not found.")
		return
	}
	writeEnvelope(w, status.Success("Project successfully updated.", p))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteProject(p.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Project successfully deleted.", nil))
}

// --- Reports ---

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	reports, err := s.db.ListReportsByProject(p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if reports == nil {
		reports = []database.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	p, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	var rpt database.Report
	if !decodeJSON(w, r, &rpt) {
		return
	}
	rpt.ProjectID = p.ID
	lang, err := s.db.GetLanguage(rpt.LanguageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if lang == nil {
		writeError(w, http.StatusBadRequest, "unknown report language")
		return
	}
	if err := s.db.CreateReport(&rpt); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Report successfully created.", rpt))
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	tree, err := s.db.LoadReportTree(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tree == nil {
		writeError(w, http.StatusNotFound, "Report not found.")
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	md, err := s.reportGen.Preview(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(md))
}

// --- Languages ---

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := s.db.ListLanguages()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if langs == nil {
		langs = []database.ReportLanguage{}
	}
	writeJSON(w, http.StatusOK, langs)
}

func (s *Server) handleCreateLanguage(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.fail(w, r, err)
		return
	}
	var l database.ReportLanguage
	if !decodeJSON(w, r, &l) {
		return
	}
	l.Name = strings.TrimSpace(l.Name)
	l.LanguageCode = strings.TrimSpace(l.LanguageCode)
	if l.Name == "" || l.LanguageCode == "" {
		writeError(w, http.StatusBadRequest, "name and language_code are required")
		return
	}
	if err := s.db.CreateLanguage(&l); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Report language successfully created.", l))
}
