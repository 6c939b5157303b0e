package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesruggles/reportsuite/internal/database"
)

var ErrReportNotFound = errors.New("report not found")

type Generator struct {
	db *database.DB
}

func NewGenerator(db *database.DB) *Generator {
	return &Generator{db: db}
}

// Preview renders the live content of a report as Markdown.
func (g *Generator) Preview(reportID int64) (string, error) {
	tree, err := g.db.LoadReportTree(reportID)
	if err != nil {
		return "", fmt.Errorf("loading report: %w", err)
	}
	if tree == nil {
		return "", ErrReportNotFound
	}
	return Markdown(Build(tree), time.Now()), nil
}

// Markdown renders a snapshot. Vulnerability descriptions are written
// verbatim; everything else is escaped for table cells where needed.
func Markdown(s *Snapshot, generated time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", s.Report.Title))
	b.WriteString(fmt.Sprintf("**Project:** %s  \n", s.Project.Name))
	if s.Project.Customer != "" {
		b.WriteString(fmt.Sprintf("**Customer:** %s  \n", s.Project.Customer))
	}
	b.WriteString(fmt.Sprintf("**Language:** %s  \n", s.Report.Language.Name))
	b.WriteString(fmt.Sprintf("**Generated:** %s  \n\n", generated.Format("January 2, 2006 15:04:05 MST")))

	// Summary
	b.WriteString("## Summary\n\n")
	if s.Report.Summary != "" {
		b.WriteString(s.Report.Summary)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No summary written.\n\n")
	}

	// Scope
	b.WriteString("## Scope\n\n")
	if len(s.Report.Scopes) > 0 {
		b.WriteString("| Type | Asset | Description |\n")
		b.WriteString("|---|---|---|\n")
		for _, sc := range s.Report.Scopes {
			b.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", sc.Type, sc.Asset, cell(sc.Description)))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No scope defined.\n\n")
	}

	// Findings overview
	counts := make(map[string]int)
	var ratings []string
	for _, sec := range s.Report.Sections {
		for _, v := range sec.Vulnerabilities {
			if counts[v.Rating] == 0 {
				ratings = append(ratings, v.Rating)
			}
			counts[v.Rating]++
		}
	}
	if len(ratings) > 0 {
		b.WriteString("| Rating | Count |\n")
		b.WriteString("|---|---|\n")
		for _, r := range ratings {
			name := r
			if name == "" {
				name = "unrated"
			}
			b.WriteString(fmt.Sprintf("| %s | %d |\n", name, counts[r]))
		}
		b.WriteString("\n")
	}

	for _, sec := range s.Report.Sections {
		b.WriteString(fmt.Sprintf("## %s\n\n", sec.Name))
		if sec.Description != "" {
			b.WriteString(sec.Description)
			b.WriteString("\n\n")
		}

		for _, pb := range sec.Playbooks {
			b.WriteString(fmt.Sprintf("### %s\n\n", pb.Name))
			writePlaybookSections(&b, pb.Sections, 4)
		}

		for _, v := range sec.Vulnerabilities {
			b.WriteString(fmt.Sprintf("### %s\n\n", v.Title))
			b.WriteString(fmt.Sprintf("**Rating:** %s  \n", v.Rating))
			b.WriteString(fmt.Sprintf("**Status:** %s  \n\n", v.Status))
			if v.Description != "" {
				b.WriteString(v.Description)
				b.WriteString("\n\n")
			}
			if len(v.Measures) > 0 {
				b.WriteString("**Measures:**\n\n")
				for _, m := range v.Measures {
					b.WriteString(fmt.Sprintf("- %s\n", m))
				}
				b.WriteString("\n")
			}
		}
	}

	if len(s.Report.Versions) > 0 {
		b.WriteString("## Version History\n\n")
		b.WriteString("| Version | Status | Comment |\n")
		b.WriteString("|---|---|---|\n")
		for _, v := range s.Report.Versions {
			b.WriteString(fmt.Sprintf("| %s | %s | %s |\n", v.Version, v.Status, cell(v.Comment)))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writePlaybookSections(b *strings.Builder, sections []PlaybookSection, depth int) {
	heading := strings.Repeat("#", min(depth, 6))
	for _, ps := range sections {
		b.WriteString(fmt.Sprintf("%s %s\n\n", heading, ps.Name))
		if ps.Description != "" {
			b.WriteString(ps.Description)
			b.WriteString("\n\n")
		}
		for _, p := range ps.Procedures {
			b.WriteString(fmt.Sprintf("- **%s**", p.Name))
			if p.Objective != "" {
				b.WriteString(fmt.Sprintf(": %s", p.Objective))
			}
			b.WriteString("\n")
		}
		if len(ps.Procedures) > 0 {
			b.WriteString("\n")
		}
		writePlaybookSections(b, ps.Sections, depth+1)
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
