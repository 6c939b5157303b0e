// Package report builds the denormalized report documents handed to the
// renderer and the Markdown preview.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jamesruggles/reportsuite/internal/database"
)

// Snapshot is the full report as stored in a version's json_object.
type Snapshot struct {
	Project Project `json:"project"`
	Report  Report  `json:"report"`
}

type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Customer    string `json:"customer"`
}

type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type Report struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Language Language  `json:"language"`
	Scopes   []Scope   `json:"scopes"`
	Sections []Section `json:"sections"`
	Versions []Version `json:"versions"`
}

type Scope struct {
	Type        string `json:"type"`
	Asset       string `json:"asset"`
	Description string `json:"description"`
}

type Section struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Order           int             `json:"order"`
	Playbooks       []Playbook      `json:"playbooks"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type Playbook struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Order    int               `json:"order"`
	Sections []PlaybookSection `json:"sections"`
}

type PlaybookSection struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Order       int               `json:"order"`
	Sections    []PlaybookSection `json:"sections"`
	Procedures  []Procedure       `json:"procedures"`
}

type Procedure struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Objective   string `json:"objective"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type Vulnerability struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Rating      string   `json:"rating"`
	Measures    []string `json:"measures"`
	Status      string   `json:"status"`
	Order       int      `json:"order"`
}

type Version struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"`
	Comment    string     `json:"comment"`
	ReportDate *time.Time `json:"report_date,omitempty"`
}

// Build denormalizes tree. Hidden sections and vulnerabilities in status
// hide are left out.
func Build(tree *database.ReportTree) *Snapshot {
	s := &Snapshot{
		Project: Project{
			ID:          tree.Project.ID,
			Name:        tree.Project.Name,
			Description: tree.Project.Description,
			Customer:    tree.Project.Customer,
		},
		Report: Report{
			ID:       tree.Report.ID,
			Title:    tree.Report.Title,
			Summary:  tree.Report.Summary,
			Language: Language{Name: tree.Language.Name, Code: tree.Language.LanguageCode},
			Scopes:   []Scope{},
			Sections: []Section{},
			Versions: []Version{},
		},
	}

	for _, sc := range tree.Scopes {
		s.Report.Scopes = append(s.Report.Scopes, Scope{Type: string(sc.Type), Asset: sc.Asset, Description: sc.Description})
	}

	for _, st := range tree.Sections {
		if st.Hide {
			continue
		}
		sec := Section{
			ID:              st.ID,
			Name:            st.Name,
			Description:     st.Description,
			Order:           st.Order,
			Playbooks:       []Playbook{},
			Vulnerabilities: []Vulnerability{},
		}
		for _, pt := range st.Playbooks {
			sec.Playbooks = append(sec.Playbooks, Playbook{
				ID:       pt.ID,
				Name:     pt.Name,
				Order:    pt.Order,
				Sections: playbookSections(pt.Sections),
			})
		}
		for _, v := range st.Vulnerabilities {
			if v.Status == database.VulnerabilityHide {
				continue
			}
			measures := v.Measures
			if measures == nil {
				measures = []string{}
			}
			sec.Vulnerabilities = append(sec.Vulnerabilities, Vulnerability{
				ID:          v.ID,
				Title:       v.Title,
				Description: v.Description,
				Rating:      v.Rating,
				Measures:    measures,
				Status:      string(v.Status),
				Order:       v.Order,
			})
		}
		s.Report.Sections = append(s.Report.Sections, sec)
	}

	for i := range tree.Versions {
		s.AppendVersion(&tree.Versions[i])
	}
	return s
}

func playbookSections(nodes []database.PlaybookSectionTree) []PlaybookSection {
	out := make([]PlaybookSection, 0, len(nodes))
	for _, n := range nodes {
		ps := PlaybookSection{
			ID:          n.ID,
			Name:        n.Name,
			Description: n.Description,
			Order:       n.Order,
			Sections:    playbookSections(n.Children),
			Procedures:  make([]Procedure, 0, len(n.Procedures)),
		}
		for _, p := range n.Procedures {
			ps.Procedures = append(ps.Procedures, Procedure{
				ID:          p.ID,
				Name:        p.Name,
				Objective:   p.Objective,
				Description: p.Description,
				Order:       p.Order,
			})
		}
		out = append(out, ps)
	}
	return out
}

// AppendVersion adds v to the snapshot's version history.
func (s *Snapshot) AppendVersion(v *database.ReportVersion) {
	s.Report.Versions = append(s.Report.Versions, Version{
		Version:    FormatVersion(v.Version),
		Status:     string(v.Status),
		Comment:    v.Comment,
		ReportDate: v.ReportDate,
	})
}

func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// IncompleteFields lists top-level report data a rendered document would
// miss. It never blocks a version.
func (s *Snapshot) IncompleteFields() []string {
	var missing []string
	if strings.TrimSpace(s.Project.Name) == "" {
		missing = append(missing, "project name")
	}
	if strings.TrimSpace(s.Report.Title) == "" {
		missing = append(missing, "report title")
	}
	if strings.TrimSpace(s.Report.Summary) == "" {
		missing = append(missing, "report summary")
	}
	if len(s.Report.Scopes) == 0 {
		missing = append(missing, "report scope")
	}
	return missing
}

// FormatVersion renders a version number with at least one decimal:
// 1 -> "1.0", 1.25 -> "1.25".
func FormatVersion(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
