package server

import (
	"net/http"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/playbook"
	"github.com/jamesruggles/reportsuite/internal/status"
)

func (s *Server) handleListPlaybookTemplates(w http.ResponseWriter, r *http.Request) {
	playbooks, err := s.db.ListPlaybooks()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if playbooks == nil {
		playbooks = []database.Playbook{}
	}
	writeJSON(w, http.StatusOK, playbooks)
}

// handleCreatePlaybookTemplate stores the structure verbatim once its shape
// is valid. Procedure ids are resolved when the playbook is attached.
func (s *Server) handleCreatePlaybookTemplate(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.fail(w, r, err)
		return
	}
	var p database.Playbook
	if !decodeJSON(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := playbook.CheckShape([]byte(p.Structure)); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.db.CreatePlaybook(&p); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Playbook template successfully created.", p))
}

func (s *Server) handleListProcedureTemplates(w http.ResponseWriter, r *http.Request) {
	procs, err := s.db.ListTestProcedures()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if procs == nil {
		procs = []database.TestProcedure{}
	}
	writeJSON(w, http.StatusOK, procs)
}

func (s *Server) handleCreateProcedureTemplate(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.fail(w, r, err)
		return
	}
	var p database.TestProcedure
	if !decodeJSON(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || len(p.Content) == 0 {
		writeError(w, http.StatusBadRequest, "name and content are required")
		return
	}
	if err := s.db.CreateTestProcedure(&p); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Test procedure template successfully created.", p))
}

func (s *Server) handleListVulnerabilityTemplates(w http.ResponseWriter, r *http.Request) {
	tmpls, err := s.db.ListVulnerabilityTemplates()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tmpls == nil {
		tmpls = []database.VulnerabilityTemplate{}
	}
	writeJSON(w, http.StatusOK, tmpls)
}

func (s *Server) handleCreateVulnerabilityTemplate(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.fail(w, r, err)
		return
	}
	var t database.VulnerabilityTemplate
	if !decodeJSON(w, r, &t) {
		return
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" || len(t.Content) == 0 {
		writeError(w, http.StatusBadRequest, "name and content are required")
		return
	}
	if err := s.db.CreateVulnerabilityTemplate(&t); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, created("Vulnerability template successfully created.", t))
}

func created(message string, payload any) *status.Envelope {
	env := status.Success(message, payload)
	env.Status = http.StatusCreated
	return env
}
