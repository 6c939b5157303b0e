package database

import (
	"database/sql"
	"fmt"

	"github.com/jamesruggles/reportsuite/internal/ordering"
)

// --- Report sections ---

// CreateSection appends the section after its existing siblings.
func (db *DB) CreateSection(s *ReportSection) error {
	return db.WithTx(func(tx *DB) error {
		siblings, err := tx.sectionOrders(s.ReportID)
		if err != nil {
			return err
		}
		s.Order = ordering.Next(siblings)
		res, err := tx.exec(
			`INSERT INTO report_sections (report_id, name, description, sort_order, hide) VALUES (?, ?, ?, ?, ?)`,
			s.ReportID, s.Name, s.Description, s.Order, s.Hide,
		)
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		s.ID, _ = res.LastInsertId()
		return nil
	})
}

func (db *DB) GetSection(reportID, id int64) (*ReportSection, error) {
	s := &ReportSection{}
	err := db.queryRow(
		`SELECT id, report_id, name, description, sort_order, hide FROM report_sections WHERE id = ? AND report_id = ?`,
		id, reportID,
	).Scan(&s.ID, &s.ReportID, &s.Name, &s.Description, &s.Order, &s.Hide)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get section: %w", err)
	}
	return s, nil
}

func (db *DB) ListSections(reportID int64) ([]ReportSection, error) {
	rows, err := db.query(
		`SELECT id, report_id, name, description, sort_order, hide
		 FROM report_sections WHERE report_id = ? ORDER BY sort_order, id`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []ReportSection
	for rows.Next() {
		var s ReportSection
		if err := rows.Scan(&s.ID, &s.ReportID, &s.Name, &s.Description, &s.Order, &s.Hide); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// UpdateSection changes name, description and hide. Order is only changed
// through MoveSection.
func (db *DB) UpdateSection(s *ReportSection) (bool, error) {
	res, err := db.exec(
		`UPDATE report_sections SET name = ?, description = ?, hide = ? WHERE id = ? AND report_id = ?`,
		s.Name, s.Description, s.Hide, s.ID, s.ReportID,
	)
	if err != nil {
		return false, fmt.Errorf("update section: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) DeleteSection(reportID, id int64) error {
	_, err := db.exec(`DELETE FROM report_sections WHERE id = ? AND report_id = ?`, id, reportID)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

// MoveSection swaps the section's order with its neighbor. It reports
// whether anything moved.
func (db *DB) MoveSection(reportID, id int64, dir ordering.Direction) (bool, error) {
	var moved bool
	err := db.WithTx(func(tx *DB) error {
		siblings, err := tx.sectionOrders(reportID)
		if err != nil {
			return err
		}
		a, b, ok := ordering.Move(siblings, id, dir)
		if !ok {
			return nil
		}
		for _, it := range []ordering.Item{a, b} {
			if _, err := tx.exec(`UPDATE report_sections SET sort_order = ? WHERE id = ?`, it.Order, it.ID); err != nil {
				return fmt.Errorf("update section order: %w", err)
			}
		}
		moved = true
		return nil
	})
	return moved, err
}

func (db *DB) sectionOrders(reportID int64) ([]ordering.Item, error) {
	return db.orderItems(`SELECT id, sort_order FROM report_sections WHERE report_id = ?`, reportID)
}

func (db *DB) orderItems(q string, args ...any) ([]ordering.Item, error) {
	rows, err := db.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sibling orders: %w", err)
	}
	defer rows.Close()

	var items []ordering.Item
	for rows.Next() {
		var it ordering.Item
		if err := rows.Scan(&it.ID, &it.Order); err != nil {
			return nil, fmt.Errorf("scan sibling order: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- Section playbooks ---

func (db *DB) SectionPlaybookExists(sectionID, playbookID int64) (bool, error) {
	var n int
	err := db.queryRow(
		`SELECT COUNT(*) FROM report_section_playbooks WHERE section_id = ? AND playbook_id = ?`,
		sectionID, playbookID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check section playbook: %w", err)
	}
	return n > 0, nil
}

// CreateSectionPlaybook appends the link after the section's existing
// playbooks.
func (db *DB) CreateSectionPlaybook(p *ReportSectionPlaybook) error {
	siblings, err := db.orderItems(`SELECT id, sort_order FROM report_section_playbooks WHERE section_id = ?`, p.SectionID)
	if err != nil {
		return err
	}
	p.Order = ordering.Next(siblings)
	res, err := db.exec(
		`INSERT INTO report_section_playbooks (section_id, playbook_id, name, sort_order) VALUES (?, ?, ?, ?)`,
		p.SectionID, nullableID(p.PlaybookID), p.Name, p.Order,
	)
	if err != nil {
		return fmt.Errorf("insert section playbook: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) ListSectionPlaybooks(sectionID int64) ([]ReportSectionPlaybook, error) {
	rows, err := db.query(
		`SELECT id, section_id, playbook_id, name, sort_order
		 FROM report_section_playbooks WHERE section_id = ? ORDER BY sort_order, id`, sectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list section playbooks: %w", err)
	}
	defer rows.Close()

	var out []ReportSectionPlaybook
	for rows.Next() {
		var p ReportSectionPlaybook
		var playbookID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.SectionID, &playbookID, &p.Name, &p.Order); err != nil {
			return nil, fmt.Errorf("scan section playbook: %w", err)
		}
		p.PlaybookID = idPtr(playbookID)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteSectionPlaybook removes the link; the materialized subtree goes
// with it through ON DELETE CASCADE.
func (db *DB) DeleteSectionPlaybook(sectionID, id int64) error {
	_, err := db.exec(`DELETE FROM report_section_playbooks WHERE id = ? AND section_id = ?`, id, sectionID)
	if err != nil {
		return fmt.Errorf("delete section playbook: %w", err)
	}
	return nil
}

func (db *DB) MoveSectionPlaybook(sectionID, id int64, dir ordering.Direction) (bool, error) {
	var moved bool
	err := db.WithTx(func(tx *DB) error {
		siblings, err := tx.orderItems(`SELECT id, sort_order FROM report_section_playbooks WHERE section_id = ?`, sectionID)
		if err != nil {
			return err
		}
		a, b, ok := ordering.Move(siblings, id, dir)
		if !ok {
			return nil
		}
		for _, it := range []ordering.Item{a, b} {
			if _, err := tx.exec(`UPDATE report_section_playbooks SET sort_order = ? WHERE id = ?`, it.Order, it.ID); err != nil {
				return fmt.Errorf("update section playbook order: %w", err)
			}
		}
		moved = true
		return nil
	})
	return moved, err
}

// --- Playbook sections & report procedures ---

func (db *DB) InsertPlaybookSection(s *PlaybookSection) error {
	res, err := db.exec(
		`INSERT INTO playbook_sections (section_playbook_id, parent_id, name, description, sort_order) VALUES (?, ?, ?, ?, ?)`,
		nullableID(s.SectionPlaybookID), nullableID(s.ParentID), s.Name, s.Description, s.Order,
	)
	if err != nil {
		return fmt.Errorf("insert playbook section: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) InsertReportProcedure(p *ReportProcedure) error {
	res, err := db.exec(
		`INSERT INTO report_procedures (report_id, playbook_section_id, source_template_id, name, objective, description, sort_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ReportID, p.PlaybookSectionID, nullableID(p.SourceTemplateID), p.Name, p.Objective, p.Description, p.Order,
	)
	if err != nil {
		return fmt.Errorf("insert report procedure: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// UpdateReportProcedure edits the cloned content only; the template is
// never touched.
func (db *DB) UpdateReportProcedure(p *ReportProcedure) (bool, error) {
	res, err := db.exec(
		`UPDATE report_procedures SET name = ?, objective = ?, description = ? WHERE id = ? AND report_id = ?`,
		p.Name, p.Objective, p.Description, p.ID, p.ReportID,
	)
	if err != nil {
		return false, fmt.Errorf("update report procedure: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountPlaybookRows returns how many playbook sections and procedures hang
// below the given section.
func (db *DB) CountPlaybookRows(sectionID int64) (sections, procedures int, err error) {
	err = db.queryRow(
		`WITH RECURSIVE tree(id) AS (
		     SELECT ps.id FROM playbook_sections ps
		     JOIN report_section_playbooks rsp ON rsp.id = ps.section_playbook_id
		     WHERE rsp.section_id = ?
		     UNION ALL
		     SELECT ps.id FROM playbook_sections ps JOIN tree t ON ps.parent_id = t.id
		 )
		 SELECT (SELECT COUNT(*) FROM tree),
		        (SELECT COUNT(*) FROM report_procedures WHERE playbook_section_id IN (SELECT id FROM tree))`,
		sectionID,
	).Scan(&sections, &procedures)
	if err != nil {
		return 0, 0, fmt.Errorf("count playbook rows: %w", err)
	}
	return sections, procedures, nil
}
