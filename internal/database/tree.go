package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// ReportTree is the fully loaded content tree of one report.
type ReportTree struct {
	Project  Project         `json:"project"`
	Report   Report          `json:"report"`
	Language ReportLanguage  `json:"language"`
	Scopes   []ReportScope   `json:"scopes"`
	Sections []SectionTree   `json:"sections"`
	Versions []ReportVersion `json:"versions"`
}

type SectionTree struct {
	ReportSection
	Playbooks       []PlaybookTree  `json:"playbooks"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type PlaybookTree struct {
	ReportSectionPlaybook
	Sections []PlaybookSectionTree `json:"sections"`
}

type PlaybookSectionTree struct {
	PlaybookSection
	Children   []PlaybookSectionTree `json:"children"`
	Procedures []ReportProcedure     `json:"procedures"`
}

// LoadReportTree reads a report with everything below it. It returns nil
// when the report does not exist.
func (db *DB) LoadReportTree(reportID int64) (*ReportTree, error) {
	report, err := db.GetReport(reportID)
	if err != nil || report == nil {
		return nil, err
	}
	project, err := db.GetProject(report.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("report %d has no project", reportID)
	}
	lang, err := db.GetLanguage(report.LanguageID)
	if err != nil {
		return nil, err
	}
	if lang == nil {
		return nil, fmt.Errorf("report %d has no language", reportID)
	}

	tree := &ReportTree{Project: *project, Report: *report, Language: *lang}

	if tree.Scopes, err = db.ListScopes(reportID); err != nil {
		return nil, err
	}
	if tree.Versions, err = db.ListVersions(reportID); err != nil {
		return nil, err
	}

	sections, err := db.ListSections(reportID)
	if err != nil {
		return nil, err
	}
	vulns, err := db.ListVulnerabilitiesByReport(reportID)
	if err != nil {
		return nil, err
	}
	playbooks, err := db.loadPlaybookTrees(reportID)
	if err != nil {
		return nil, err
	}

	for _, s := range sections {
		st := SectionTree{ReportSection: s}
		for _, v := range vulns {
			if v.SectionID == s.ID {
				st.Vulnerabilities = append(st.Vulnerabilities, v)
			}
		}
		for _, p := range playbooks {
			if p.SectionID == s.ID {
				st.Playbooks = append(st.Playbooks, p)
			}
		}
		tree.Sections = append(tree.Sections, st)
	}
	return tree, nil
}

// LoadSectionPlaybooks returns the materialized playbook trees of a single
// section.
func (db *DB) LoadSectionPlaybooks(reportID, sectionID int64) ([]PlaybookTree, error) {
	all, err := db.loadPlaybookTrees(reportID)
	if err != nil {
		return nil, err
	}
	var out []PlaybookTree
	for _, p := range all {
		if p.SectionID == sectionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (db *DB) loadPlaybookTrees(reportID int64) ([]PlaybookTree, error) {
	links, err := db.listReportSectionPlaybooks(reportID)
	if err != nil {
		return nil, err
	}
	nodes, err := db.listReportPlaybookSections(reportID)
	if err != nil {
		return nil, err
	}
	procs, err := db.listReportProcedures(reportID)
	if err != nil {
		return nil, err
	}

	procsBySection := make(map[int64][]ReportProcedure)
	for _, p := range procs {
		procsBySection[p.PlaybookSectionID] = append(procsBySection[p.PlaybookSectionID], p)
	}
	byParent := make(map[int64][]PlaybookSection)
	byRoot := make(map[int64][]PlaybookSection)
	for _, n := range nodes {
		switch {
		case n.ParentID != nil:
			byParent[*n.ParentID] = append(byParent[*n.ParentID], n)
		case n.SectionPlaybookID != nil:
			byRoot[*n.SectionPlaybookID] = append(byRoot[*n.SectionPlaybookID], n)
		}
	}

	var build func(ns []PlaybookSection) []PlaybookSectionTree
	build = func(ns []PlaybookSection) []PlaybookSectionTree {
		sort.SliceStable(ns, func(i, j int) bool { return less(ns[i].Order, ns[i].ID, ns[j].Order, ns[j].ID) })
		out := make([]PlaybookSectionTree, 0, len(ns))
		for _, n := range ns {
			t := PlaybookSectionTree{PlaybookSection: n, Procedures: procsBySection[n.ID]}
			sort.SliceStable(t.Procedures, func(i, j int) bool {
				a, b := t.Procedures[i], t.Procedures[j]
				return less(a.Order, a.ID, b.Order, b.ID)
			})
			t.Children = build(byParent[n.ID])
			out = append(out, t)
		}
		return out
	}

	out := make([]PlaybookTree, 0, len(links))
	for _, l := range links {
		out = append(out, PlaybookTree{ReportSectionPlaybook: l, Sections: build(byRoot[l.ID])})
	}
	return out, nil
}

func less(orderA int, idA int64, orderB int, idB int64) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	return idA < idB
}

func (db *DB) listReportSectionPlaybooks(reportID int64) ([]ReportSectionPlaybook, error) {
	rows, err := db.query(
		`SELECT rsp.id, rsp.section_id, rsp.playbook_id, rsp.name, rsp.sort_order
		 FROM report_section_playbooks rsp JOIN report_sections s ON s.id = rsp.section_id
		 WHERE s.report_id = ? ORDER BY rsp.sort_order, rsp.id`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list report playbooks: %w", err)
	}
	defer rows.Close()

	var out []ReportSectionPlaybook
	for rows.Next() {
		var p ReportSectionPlaybook
		var playbookID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.SectionID, &playbookID, &p.Name, &p.Order); err != nil {
			return nil, fmt.Errorf("scan report playbook: %w", err)
		}
		p.PlaybookID = idPtr(playbookID)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) listReportPlaybookSections(reportID int64) ([]PlaybookSection, error) {
	rows, err := db.query(
		`WITH RECURSIVE tree(id) AS (
		     SELECT ps.id FROM playbook_sections ps
		     JOIN report_section_playbooks rsp ON rsp.id = ps.section_playbook_id
		     JOIN report_sections s ON s.id = rsp.section_id
		     WHERE s.report_id = ?
		     UNION ALL
		     SELECT ps.id FROM playbook_sections ps JOIN tree t ON ps.parent_id = t.id
		 )
		 SELECT ps.id, ps.section_playbook_id, ps.parent_id, ps.name, ps.description, ps.sort_order
		 FROM playbook_sections ps WHERE ps.id IN (SELECT id FROM tree)`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list playbook sections: %w", err)
	}
	defer rows.Close()

	var out []PlaybookSection
	for rows.Next() {
		var s PlaybookSection
		var root, parent sql.NullInt64
		if err := rows.Scan(&s.ID, &root, &parent, &s.Name, &s.Description, &s.Order); err != nil {
			return nil, fmt.Errorf("scan playbook section: %w", err)
		}
		s.SectionPlaybookID = idPtr(root)
		s.ParentID = idPtr(parent)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) listReportProcedures(reportID int64) ([]ReportProcedure, error) {
	rows, err := db.query(
		`SELECT id, report_id, playbook_section_id, source_template_id, name, objective, description, sort_order
		 FROM report_procedures WHERE report_id = ?`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list report procedures: %w", err)
	}
	defer rows.Close()

	var out []ReportProcedure
	for rows.Next() {
		var p ReportProcedure
		var tmpl sql.NullInt64
		if err := rows.Scan(&p.ID, &p.ReportID, &p.PlaybookSectionID, &tmpl, &p.Name, &p.Objective, &p.Description, &p.Order); err != nil {
			return nil, fmt.Errorf("scan report procedure: %w", err)
		}
		p.SourceTemplateID = idPtr(tmpl)
		out = append(out, p)
	}
	return out, rows.Err()
}
