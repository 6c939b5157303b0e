package playbook

import (
	"github.com/jamesruggles/reportsuite/internal/database"
)

// orderStart and orderStep number a sibling group 1, 11, 21, ...
const (
	orderStart = 1
	orderStep  = 10
)

// Writer receives the rows produced by Materialize.
type Writer interface {
	InsertPlaybookSection(s *database.PlaybookSection) error
	InsertReportProcedure(p *database.ReportProcedure) error
}

// Stats counts the rows written for one playbook.
type Stats struct {
	Sections   int
	Procedures int
}

// Materialize writes forest below root, depth-first and pre-order. Every
// parent numbers its own child sections and procedures independently.
// Rows are written immediately; callers wrap the call in a transaction.
func Materialize(w Writer, reportID int64, root *database.ReportSectionPlaybook, forest []*Container) (Stats, error) {
	var st Stats
	order := orderStart
	for _, c := range forest {
		s := &database.PlaybookSection{
			SectionPlaybookID: &root.ID,
			Name:              c.Title,
			Description:       c.Description,
			Order:             order,
		}
		if err := w.InsertPlaybookSection(s); err != nil {
			return st, err
		}
		st.Sections++
		if err := materializeChildren(w, reportID, s, c.Children, &st); err != nil {
			return st, err
		}
		order += orderStep
	}
	return st, nil
}

func materializeChildren(w Writer, reportID int64, parent *database.PlaybookSection, children []Node, st *Stats) error {
	sectionOrder, procedureOrder := orderStart, orderStart
	for _, child := range children {
		switch n := child.(type) {
		case *Container:
			s := &database.PlaybookSection{
				ParentID:    &parent.ID,
				Name:        n.Title,
				Description: n.Description,
				Order:       sectionOrder,
			}
			if err := w.InsertPlaybookSection(s); err != nil {
				return err
			}
			st.Sections++
			if err := materializeChildren(w, reportID, s, n.Children, st); err != nil {
				return err
			}
			sectionOrder += orderStep
		case *Procedure:
			templateID := n.TemplateID
			p := &database.ReportProcedure{
				ReportID:          reportID,
				PlaybookSectionID: parent.ID,
				SourceTemplateID:  &templateID,
				Name:              n.Content.Title,
				Objective:         n.Content.Objective,
				Description:       n.Content.Description,
				Order:             procedureOrder,
			}
			if err := w.InsertReportProcedure(p); err != nil {
				return err
			}
			st.Procedures++
			procedureOrder += orderStep
		}
	}
	return nil
}
