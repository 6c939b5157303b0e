package renderer

import (
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/jamesruggles/reportsuite/internal/report"
)

const (
	fontFamily = "goregular"
	margin     = 50.0
	lineHeight = 1.4
)

// draftPDF lays out a snapshot as a plain draft document. It is not a
// replacement for the typeset report.
type draftPDF struct {
	pdf    gopdf.GoPdf
	width  float64
	height float64
	log    *buildLog
}

func renderPDF(s *report.Snapshot, log *buildLog, now time.Time) ([]byte, error) {
	page := *gopdf.PageSizeA4
	d := &draftPDF{width: page.W, height: page.H, log: log}
	d.pdf.Start(gopdf.Config{PageSize: page})
	d.pdf.SetInfo(gopdf.PdfInfo{
		Title:        s.Report.Title,
		Subject:      s.Project.Name,
		Creator:      "reportsuite",
		Producer:     "reportsuite draft renderer",
		CreationDate: now,
	})
	if err := d.pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}
	d.pdf.SetMargins(margin, margin, margin, margin)
	d.pdf.AddPage()

	steps := []func() error{
		func() error { return d.text(s.Report.Title, 20) },
		func() error { return d.text(fmt.Sprintf("Project: %s", s.Project.Name), 11) },
		func() error { return d.text(fmt.Sprintf("Generated: %s", now.Format("January 2, 2006 15:04 MST")), 11) },
		func() error { return d.versions(s.Report.Versions) },
		func() error { return d.heading("Summary", s.Report.Summary) },
		func() error { return d.scope(s.Report.Scopes) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	for _, sec := range s.Report.Sections {
		log.Printf("section %q: %d playbook(s), %d vulnerability(ies)", sec.Name, len(sec.Playbooks), len(sec.Vulnerabilities))
		if err := d.heading(sec.Name, sec.Description); err != nil {
			return nil, err
		}
		for _, pb := range sec.Playbooks {
			if err := d.text(pb.Name, 14); err != nil {
				return nil, err
			}
			if err := d.playbookSections(pb.Sections, 0); err != nil {
				return nil, err
			}
		}
		for _, v := range sec.Vulnerabilities {
			if err := d.vulnerability(v); err != nil {
				return nil, err
			}
		}
	}

	return d.pdf.GetBytesPdfReturnErr()
}

func (d *draftPDF) heading(title, body string) error {
	d.pdf.Br(8)
	if err := d.text(title, 16); err != nil {
		return err
	}
	return d.text(body, 11)
}

func (d *draftPDF) versions(vs []report.Version) error {
	if len(vs) == 0 {
		return nil
	}
	latest := vs[len(vs)-1]
	line := fmt.Sprintf("Version %s (%s)", latest.Version, latest.Status)
	if latest.Comment != "" {
		line += ": " + latest.Comment
	}
	return d.text(line, 11)
}

func (d *draftPDF) scope(scopes []report.Scope) error {
	lines := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		l := fmt.Sprintf("%s  %s", sc.Type, sc.Asset)
		if sc.Description != "" {
			l += "  " + sc.Description
		}
		lines = append(lines, l)
	}
	return d.heading("Scope", strings.Join(lines, "\n"))
}

func (d *draftPDF) playbookSections(sections []report.PlaybookSection, depth int) error {
	indent := strings.Repeat("    ", depth)
	for _, ps := range sections {
		if err := d.text(indent+ps.Name, 12); err != nil {
			return err
		}
		for _, p := range ps.Procedures {
			line := indent + "  - " + p.Name
			if p.Objective != "" {
				line += ": " + p.Objective
			}
			if err := d.text(line, 10); err != nil {
				return err
			}
		}
		if err := d.playbookSections(ps.Sections, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (d *draftPDF) vulnerability(v report.Vulnerability) error {
	if err := d.text(v.Title, 14); err != nil {
		return err
	}
	if err := d.text(fmt.Sprintf("Rating: %s    Status: %s", v.Rating, v.Status), 10); err != nil {
		return err
	}
	if err := d.text(v.Description, 11); err != nil {
		return err
	}
	for _, m := range v.Measures {
		if err := d.text("  - "+m, 11); err != nil {
			return err
		}
	}
	return nil
}

// text writes wrapped paragraphs, adding pages as needed. Empty text is
// skipped.
func (d *draftPDF) text(s string, size float64) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if err := d.pdf.SetFont(fontFamily, "", size); err != nil {
		return err
	}
	h := size * lineHeight
	for _, para := range strings.Split(s, "\n") {
		if strings.TrimSpace(para) == "" {
			d.pdf.Br(h)
			continue
		}
		lines, err := d.pdf.SplitText(para, d.width-2*margin)
		if err != nil {
			return fmt.Errorf("wrapping text: %w", err)
		}
		for _, line := range lines {
			if d.pdf.GetY()+h > d.height-margin {
				d.pdf.AddPage()
				d.log.Printf("page break")
			}
			d.pdf.SetX(margin)
			if err := d.pdf.Cell(nil, line); err != nil {
				return err
			}
			d.pdf.Br(h)
		}
	}
	return nil
}
