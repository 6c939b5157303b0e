package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// --- Playbook templates ---

func (db *DB) CreatePlaybook(p *Playbook) error {
	res, err := db.exec(`INSERT INTO playbooks (name, structure) VALUES (?, ?)`, p.Name, p.Structure)
	if err != nil {
		return fmt.Errorf("insert playbook: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetPlaybook(id int64) (*Playbook, error) {
	p := &Playbook{}
	err := db.queryRow(`SELECT id, name, structure FROM playbooks WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.Structure)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playbook: %w", err)
	}
	return p, nil
}

func (db *DB) ListPlaybooks() ([]Playbook, error) {
	rows, err := db.query(`SELECT id, name, structure FROM playbooks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}
	defer rows.Close()

	var out []Playbook
	for rows.Next() {
		var p Playbook
		if err := rows.Scan(&p.ID, &p.Name, &p.Structure); err != nil {
			return nil, fmt.Errorf("scan playbook: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Test procedure templates ---

func (db *DB) CreateTestProcedure(p *TestProcedure) error {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return fmt.Errorf("encode procedure content: %w", err)
	}
	res, err := db.exec(`INSERT INTO test_procedures (name, content) VALUES (?, ?)`, p.Name, string(content))
	if err != nil {
		return fmt.Errorf("insert test procedure: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

// TestProcedure looks up a procedure template; nil when it does not exist.
func (db *DB) TestProcedure(id int64) (*TestProcedure, error) {
	p := &TestProcedure{}
	var content string
	err := db.queryRow(`SELECT id, name, content FROM test_procedures WHERE id = ?`, id).Scan(&p.ID, &p.Name, &content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get test procedure: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
		return nil, fmt.Errorf("decode test procedure %d: %w", id, err)
	}
	return p, nil
}

func (db *DB) ListTestProcedures() ([]TestProcedure, error) {
	rows, err := db.query(`SELECT id, name, content FROM test_procedures ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list test procedures: %w", err)
	}
	defer rows.Close()

	var out []TestProcedure
	for rows.Next() {
		var p TestProcedure
		var content string
		if err := rows.Scan(&p.ID, &p.Name, &content); err != nil {
			return nil, fmt.Errorf("scan test procedure: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &p.Content); err != nil {
			return nil, fmt.Errorf("decode test procedure %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Vulnerability templates ---

func (db *DB) CreateVulnerabilityTemplate(t *VulnerabilityTemplate) error {
	content, err := json.Marshal(t.Content)
	if err != nil {
		return fmt.Errorf("encode vulnerability template content: %w", err)
	}
	res, err := db.exec(
		`INSERT INTO vulnerability_templates (name, rating, content) VALUES (?, ?, ?)`, t.Name, t.Rating, string(content),
	)
	if err != nil {
		return fmt.Errorf("insert vulnerability template: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetVulnerabilityTemplate(id int64) (*VulnerabilityTemplate, error) {
	t := &VulnerabilityTemplate{}
	var content string
	err := db.queryRow(
		`SELECT id, name, rating, content FROM vulnerability_templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.Rating, &content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vulnerability template: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &t.Content); err != nil {
		return nil, fmt.Errorf("decode vulnerability template %d: %w", id, err)
	}
	return t, nil
}

func (db *DB) ListVulnerabilityTemplates() ([]VulnerabilityTemplate, error) {
	rows, err := db.query(`SELECT id, name, rating, content FROM vulnerability_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list vulnerability templates: %w", err)
	}
	defer rows.Close()

	var out []VulnerabilityTemplate
	for rows.Next() {
		var t VulnerabilityTemplate
		var content string
		if err := rows.Scan(&t.ID, &t.Name, &t.Rating, &content); err != nil {
			return nil, fmt.Errorf("scan vulnerability template: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &t.Content); err != nil {
			return nil, fmt.Errorf("decode vulnerability template %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
