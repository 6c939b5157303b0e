package database

import (
	"database/sql"
	"fmt"
)

// --- Users ---

func (db *DB) CreateUser(u *User) error {
	res, err := db.exec(
		`INSERT INTO users (email, full_name, is_admin, is_active) VALUES (?, ?, ?, ?)`,
		u.Email, u.FullName, u.IsAdmin, u.IsActive,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetUserByEmail(email string) (*User, error) {
	u := &User{}
	err := db.queryRow(
		`SELECT id, email, full_name, is_admin, is_active FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.IsAdmin, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (db *DB) GetUser(id int64) (*User, error) {
	u := &User{}
	err := db.queryRow(
		`SELECT id, email, full_name, is_admin, is_active FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.FullName, &u.IsAdmin, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (db *DB) GrantProjectAccess(userID, projectID int64) error {
	_, err := db.exec(
		`INSERT OR IGNORE INTO project_access (user_id, project_id) VALUES (?, ?)`, userID, projectID,
	)
	if err != nil {
		return fmt.Errorf("grant project access: %w", err)
	}
	return nil
}

func (db *DB) HasProjectAccess(userID, projectID int64) (bool, error) {
	var n int
	err := db.queryRow(
		`SELECT COUNT(*) FROM project_access WHERE user_id = ? AND project_id = ?`, userID, projectID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check project access: %w", err)
	}
	return n > 0, nil
}

// --- Projects ---

func (db *DB) CreateProject(p *Project) error {
	res, err := db.exec(
		`INSERT INTO projects (name, description, customer) VALUES (?, ?, ?)`,
		p.Name, p.Description, p.Customer,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetProject(id int64) (*Project, error) {
	p := &Project{}
	err := db.queryRow(
		`SELECT id, name, description, customer, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Customer, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project, or only those the user was granted
// when userID is non-zero.
func (db *DB) ListProjects(userID int64) ([]Project, error) {
	q := `SELECT id, name, description, customer, created_at, updated_at FROM projects ORDER BY updated_at DESC`
	args := []any{}
	if userID != 0 {
		q = `SELECT p.id, p.name, p.description, p.customer, p.created_at, p.updated_at
		     FROM projects p JOIN project_access a ON a.project_id = p.id
		     WHERE a.user_id = ? ORDER BY p.updated_at DESC`
		args = append(args, userID)
	}
	rows, err := db.query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Customer, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject reports whether a row was changed.
func (db *DB) UpdateProject(p *Project) (bool, error) {
	res, err := db.exec(
		`UPDATE projects SET name = ?, description = ?, customer = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Name, p.Description, p.Customer, p.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update project: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) DeleteProject(id int64) error {
	_, err := db.exec(`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- Report languages ---

func (db *DB) CreateLanguage(l *ReportLanguage) error {
	res, err := db.exec(
		`INSERT INTO report_languages (name, language_code) VALUES (?, ?)`, l.Name, l.LanguageCode,
	)
	if err != nil {
		return fmt.Errorf("insert language: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetLanguage(id int64) (*ReportLanguage, error) {
	l := &ReportLanguage{}
	err := db.queryRow(
		`SELECT id, name, language_code FROM report_languages WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.LanguageCode)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get language: %w", err)
	}
	return l, nil
}

func (db *DB) ListLanguages() ([]ReportLanguage, error) {
	rows, err := db.query(`SELECT id, name, language_code FROM report_languages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	defer rows.Close()

	var langs []ReportLanguage
	for rows.Next() {
		var l ReportLanguage
		if err := rows.Scan(&l.ID, &l.Name, &l.LanguageCode); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// --- Reports ---

func (db *DB) CreateReport(r *Report) error {
	res, err := db.exec(
		`INSERT INTO reports (project_id, language_id, title, summary) VALUES (?, ?, ?, ?)`,
		r.ProjectID, r.LanguageID, r.Title, r.Summary,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetReport(id int64) (*Report, error) {
	r := &Report{}
	err := db.queryRow(
		`SELECT id, project_id, language_id, title, summary, created_at FROM reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProjectID, &r.LanguageID, &r.Title, &r.Summary, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

func (db *DB) ListReportsByProject(projectID int64) ([]Report, error) {
	rows, err := db.query(
		`SELECT id, project_id, language_id, title, summary, created_at
		 FROM reports WHERE project_id = ? ORDER BY created_at DESC, id DESC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.LanguageID, &r.Title, &r.Summary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (db *DB) UpdateReport(r *Report) (bool, error) {
	res, err := db.exec(
		`UPDATE reports SET title = ?, summary = ? WHERE id = ?`, r.Title, r.Summary, r.ID,
	)
	if err != nil {
		return false, fmt.Errorf("update report: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- Report scopes ---

func (db *DB) CreateScope(s *ReportScope) error {
	res, err := db.exec(
		`INSERT INTO report_scopes (report_id, type, asset, description) VALUES (?, ?, ?, ?)`,
		s.ReportID, string(s.Type), s.Asset, s.Description,
	)
	if err != nil {
		return fmt.Errorf("insert scope: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) UpdateScope(s *ReportScope) (bool, error) {
	res, err := db.exec(
		`UPDATE report_scopes SET type = ?, asset = ?, description = ? WHERE id = ? AND report_id = ?`,
		string(s.Type), s.Asset, s.Description, s.ID, s.ReportID,
	)
	if err != nil {
		return false, fmt.Errorf("update scope: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) DeleteScope(reportID, id int64) error {
	_, err := db.exec(`DELETE FROM report_scopes WHERE id = ? AND report_id = ?`, id, reportID)
	if err != nil {
		return fmt.Errorf("delete scope: %w", err)
	}
	return nil
}

func (db *DB) ListScopes(reportID int64) ([]ReportScope, error) {
	rows, err := db.query(
		`SELECT id, report_id, type, asset, description FROM report_scopes WHERE report_id = ? ORDER BY id`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []ReportScope
	for rows.Next() {
		var s ReportScope
		if err := rows.Scan(&s.ID, &s.ReportID, &s.Type, &s.Asset, &s.Description); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, s)
	}
	return scopes, rows.Err()
}
