package server

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/ordering"
	"github.com/jamesruggles/reportsuite/internal/playbook"
	"github.com/jamesruggles/reportsuite/internal/status"
	"github.com/jamesruggles/reportsuite/internal/validate"
)

// --- Scope ---

func (s *Server) handleListScopes(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	scopes, err := s.db.ListScopes(reportID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if scopes == nil {
		scopes = []database.ReportScope{}
	}
	writeJSON(w, http.StatusOK, scopes)
}

func (s *Server) decodeScope(w http.ResponseWriter, r *http.Request, reportID int64) (*database.ReportScope, bool) {
	var sc database.ReportScope
	if !decodeJSON(w, r, &sc) {
		return nil, false
	}
	asset, err := validate.Asset(sc.Type, sc.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	sc.Asset = asset
	sc.ReportID = reportID
	return &sc, true
}

func (s *Server) handleCreateScope(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	sc, ok := s.decodeScope(w, r, reportID)
	if !ok {
		return
	}
	if err := s.db.CreateScope(sc); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Scope successfully created.", sc))
}

func (s *Server) handleUpdateScope(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	sc, ok := s.decodeScope(w, r, reportID)
	if !ok {
		return
	}
	updated, err := s.db.UpdateScope(sc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Scope not found.")
		return
	}
	writeEnvelope(w, status.Success("Scope successfully updated.", sc))
}

func (s *Server) handleDeleteScope(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "scope_id")
	if !ok {
		return
	}
	if err := s.db.DeleteScope(reportID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Scope successfully deleted.", nil))
}

// --- Sections ---

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	sections, err := s.db.ListSections(reportID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sections == nil {
		sections = []database.ReportSection{}
	}
	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	var sec database.ReportSection
	if !decodeJSON(w, r, &sec) {
		return
	}
	sec.ReportID = reportID
	sec.Name = strings.TrimSpace(sec.Name)
	if sec.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.db.CreateSection(&sec); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Report section successfully created.", sec))
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	var sec database.ReportSection
	if !decodeJSON(w, r, &sec) {
		return
	}
	sec.ReportID = reportID
	sec.Name = strings.TrimSpace(sec.Name)
	if sec.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	updated, err := s.db.UpdateSection(&sec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Section not found.")
		return
	}
	writeEnvelope(w, status.Success("Report section successfully updated.", sec))
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "section_id")
	if !ok {
		return
	}
	if err := s.db.DeleteSection(reportID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Report section successfully deleted.", nil))
}

func (s *Server) handleMoveSection(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	dir, err := ordering.ParseDirection(path.Base(r.URL.Path))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	moved, err := s.db.MoveSection(sec.ReportID, sec.ID, dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Report section order updated.", map[string]bool{"moved": moved}))
}

// --- Section playbooks ---

func (s *Server) handleListSectionPlaybooks(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	trees, err := s.db.LoadSectionPlaybooks(sec.ReportID, sec.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if trees == nil {
		trees = []database.PlaybookTree{}
	}
	writeJSON(w, http.StatusOK, trees)
}

type attachRequest struct {
	PlaybookIDs []int64 `json:"playbook_ids"`
}

func (s *Server) handleAttachPlaybooks(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	var req attachRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.PlaybookIDs) == 0 {
		writeError(w, http.StatusBadRequest, "playbook_ids is required")
		return
	}
	res, err := s.attacher.Attach(sec.ReportID, sec.ID, req.PlaybookIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound, "Section not found.")
		return
	}
	writeEnvelope(w, status.Success("Playbooks successfully added to the section.", res))
}

func (s *Server) handleDeleteSectionPlaybook(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "playbook_id")
	if !ok {
		return
	}
	if err := s.db.DeleteSectionPlaybook(sec.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Playbook successfully removed from the section.", nil))
}

func (s *Server) handleMoveSectionPlaybook(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "playbook_id")
	if !ok {
		return
	}
	dir, err := ordering.ParseDirection(path.Base(r.URL.Path))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	moved, err := s.db.MoveSectionPlaybook(sec.ID, id, dir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Playbook order updated.", map[string]bool{"moved": moved}))
}

// --- Report procedures ---

func (s *Server) handleUpdateProcedure(w http.ResponseWriter, r *http.Request) {
	reportID, ok := s.reportAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "procedure_id")
	if !ok {
		return
	}
	var p database.ReportProcedure
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID, p.ReportID = id, reportID
	updated, err := s.db.UpdateReportProcedure(&p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Procedure not found.")
		return
	}
	writeEnvelope(w, status.Success("Procedure successfully updated.", p))
}

// --- Vulnerabilities ---

func (s *Server) handleListVulnerabilities(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	vulns, err := s.db.ListVulnerabilities(sec.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if vulns == nil {
		vulns = []database.Vulnerability{}
	}
	writeJSON(w, http.StatusOK, vulns)
}

func (s *Server) handleGetVulnerability(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vulnerability(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) vulnerability(w http.ResponseWriter, r *http.Request) (*database.Vulnerability, bool) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return nil, false
	}
	id, ok := pathID(w, r, "vulnerability_id")
	if !ok {
		return nil, false
	}
	v, err := s.db.GetVulnerability(sec.ReportID, sec.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "Vulnerability not found.")
		return nil, false
	}
	return v, true
}

// handleCreateVulnerability creates an empty vulnerability, or clones the
// template named by ?template_id= in the report language.
func (s *Server) handleCreateVulnerability(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}

	v := playbook.EmptyVulnerability(sec.ID, currentUser(r))
	if raw := r.URL.Query().Get("template_id"); raw != "" {
		templateID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid template_id")
			return
		}
		v, ok = s.cloneVulnerability(w, r, sec, templateID)
		if !ok {
			return
		}
	}

	if err := s.db.CreateVulnerability(v); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Vulnerability successfully created.", v))
}

func (s *Server) cloneVulnerability(w http.ResponseWriter, r *http.Request, sec *database.ReportSection, templateID int64) (*database.Vulnerability, bool) {
	tmpl, err := s.db.GetVulnerabilityTemplate(templateID)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if tmpl == nil {
		writeError(w, http.StatusNotFound, "Vulnerability template not found.")
		return nil, false
	}
	rpt, err := s.db.GetReport(sec.ReportID)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if rpt == nil {
		writeError(w, http.StatusNotFound, "Report not found.")
		return nil, false
	}
	lang, err := s.db.GetLanguage(rpt.LanguageID)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if lang == nil {
		writeError(w, http.StatusBadRequest, "report has no language")
		return nil, false
	}
	v, err := playbook.CloneVulnerability(tmpl, sec.ID, lang.LanguageCode)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return v, true
}

func (s *Server) handleUpdateVulnerability(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.vulnerability(w, r)
	if !ok {
		return
	}
	var v database.Vulnerability
	if !decodeJSON(w, r, &v) {
		return
	}
	v.ID, v.SectionID = existing.ID, existing.SectionID
	v.SourceTemplateID, v.Order, v.CreatedAt = existing.SourceTemplateID, existing.Order, existing.CreatedAt
	if v.Status == "" {
		v.Status = existing.Status
	}
	if !v.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown vulnerability status")
		return
	}
	if completeness.RequiresCheck(v.Status) {
		if err := s.checker.CheckVulnerability(&v); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	updated, err := s.db.UpdateVulnerability(&v)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "Vulnerability not found.")
		return
	}
	writeEnvelope(w, status.Success("Vulnerability successfully updated.", v))
}

func (s *Server) handleDeleteVulnerability(w http.ResponseWriter, r *http.Request) {
	sec, ok := s.sectionAccess(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "vulnerability_id")
	if !ok {
		return
	}
	if err := s.db.DeleteVulnerability(sec.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeEnvelope(w, status.Success("Vulnerability successfully deleted.", nil))
}
