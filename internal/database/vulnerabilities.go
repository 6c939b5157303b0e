package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jamesruggles/reportsuite/internal/ordering"
)

const vulnerabilityColumns = `v.id, v.section_id, v.source_template_id, v.title, v.description, v.rating, v.measures, v.status, v.sort_order, v.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVulnerability(row rowScanner) (*Vulnerability, error) {
	v := &Vulnerability{}
	var tmpl sql.NullInt64
	var measures string
	if err := row.Scan(&v.ID, &v.SectionID, &tmpl, &v.Title, &v.Description, &v.Rating, &measures, &v.Status, &v.Order, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.SourceTemplateID = idPtr(tmpl)
	if err := json.Unmarshal([]byte(measures), &v.Measures); err != nil {
		return nil, fmt.Errorf("decode measures of vulnerability %d: %w", v.ID, err)
	}
	return v, nil
}

func encodeMeasures(m []string) (string, error) {
	if m == nil {
		m = []string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode measures: %w", err)
	}
	return string(data), nil
}

// CreateVulnerability appends the vulnerability to its section.
func (db *DB) CreateVulnerability(v *Vulnerability) error {
	measures, err := encodeMeasures(v.Measures)
	if err != nil {
		return err
	}
	if v.Status == "" {
		v.Status = VulnerabilityDraft
	}
	return db.WithTx(func(tx *DB) error {
		siblings, err := tx.orderItems(`SELECT id, sort_order FROM vulnerabilities WHERE section_id = ?`, v.SectionID)
		if err != nil {
			return err
		}
		v.Order = ordering.Next(siblings)
		res, err := tx.exec(
			`INSERT INTO vulnerabilities (section_id, source_template_id, title, description, rating, measures, status, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.SectionID, nullableID(v.SourceTemplateID), v.Title, v.Description, v.Rating, measures, string(v.Status), v.Order,
		)
		if err != nil {
			return fmt.Errorf("insert vulnerability: %w", err)
		}
		v.ID, _ = res.LastInsertId()
		return nil
	})
}

// GetVulnerability scopes the lookup to the report so ids from another
// report never resolve.
func (db *DB) GetVulnerability(reportID, sectionID, id int64) (*Vulnerability, error) {
	v, err := scanVulnerability(db.queryRow(
		`SELECT `+vulnerabilityColumns+`
		 FROM vulnerabilities v JOIN report_sections s ON s.id = v.section_id
		 WHERE v.id = ? AND v.section_id = ? AND s.report_id = ?`, id, sectionID, reportID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vulnerability: %w", err)
	}
	return v, nil
}

func (db *DB) ListVulnerabilities(sectionID int64) ([]Vulnerability, error) {
	return db.listVulnerabilities(`WHERE v.section_id = ?`, sectionID)
}

func (db *DB) ListVulnerabilitiesByReport(reportID int64) ([]Vulnerability, error) {
	return db.listVulnerabilities(`WHERE s.report_id = ?`, reportID)
}

func (db *DB) listVulnerabilities(where string, args ...any) ([]Vulnerability, error) {
	rows, err := db.query(
		`SELECT `+vulnerabilityColumns+`
		 FROM vulnerabilities v JOIN report_sections s ON s.id = v.section_id `+where+`
		 ORDER BY v.sort_order, v.id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list vulnerabilities: %w", err)
	}
	defer rows.Close()

	var out []Vulnerability
	for rows.Next() {
		v, err := scanVulnerability(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vulnerability: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// UpdateVulnerability writes the editable content. Template provenance and
// order are left alone.
func (db *DB) UpdateVulnerability(v *Vulnerability) (bool, error) {
	measures, err := encodeMeasures(v.Measures)
	if err != nil {
		return false, err
	}
	res, err := db.exec(
		`UPDATE vulnerabilities SET title = ?, description = ?, rating = ?, measures = ?, status = ?
		 WHERE id = ? AND section_id = ?`,
		v.Title, v.Description, v.Rating, measures, string(v.Status), v.ID, v.SectionID,
	)
	if err != nil {
		return false, fmt.Errorf("update vulnerability: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) DeleteVulnerability(sectionID, id int64) error {
	_, err := db.exec(`DELETE FROM vulnerabilities WHERE id = ? AND section_id = ?`, id, sectionID)
	if err != nil {
		return fmt.Errorf("delete vulnerability: %w", err)
	}
	return nil
}
