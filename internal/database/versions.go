package database

import (
	"database/sql"
	"fmt"
	"time"
)

// ArtifactKind names one of the version blobs that can be downloaded.
type ArtifactKind string

const (
	ArtifactJSON   ArtifactKind = "json"
	ArtifactPDF    ArtifactKind = "pdf"
	ArtifactPDFLog ArtifactKind = "pdf-log"
	ArtifactTex    ArtifactKind = "tex"
	ArtifactXLSX   ArtifactKind = "xlsx"
)

var artifactColumns = map[ArtifactKind]string{
	ArtifactJSON:   "json_object",
	ArtifactPDF:    "pdf",
	ArtifactPDFLog: "pdf_log",
	ArtifactTex:    "tex",
	ArtifactXLSX:   "xlsx",
}

const versionColumns = `id, report_id, user_id, version, status, comment, report_date, creation_status, json_object, created_at`

func scanVersion(row rowScanner) (*ReportVersion, error) {
	v := &ReportVersion{}
	var userID sql.NullInt64
	if err := row.Scan(&v.ID, &v.ReportID, &userID, &v.Version, &v.Status, &v.Comment, &v.ReportDate,
		&v.CreationStatus, &v.JSONObject, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.UserID = idPtr(userID)
	return v, nil
}

func (db *DB) CreateVersion(v *ReportVersion) error {
	if v.CreationStatus == "" {
		v.CreationStatus = CreationScheduled
	}
	res, err := db.exec(
		`INSERT INTO report_versions (report_id, user_id, version, status, comment, report_date, creation_status, json_object)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ReportID, nullableID(v.UserID), v.Version, string(v.Status), v.Comment, nullableTime(v.ReportDate),
		string(v.CreationStatus), nullableText(v.JSONObject),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

func (db *DB) GetVersion(reportID, id int64) (*ReportVersion, error) {
	v, err := scanVersion(db.queryRow(
		`SELECT `+versionColumns+` FROM report_versions WHERE id = ? AND report_id = ?`, id, reportID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// ListVersions returns the report's versions ordered by version number.
func (db *DB) ListVersions(reportID int64) ([]ReportVersion, error) {
	rows, err := db.query(
		`SELECT `+versionColumns+` FROM report_versions WHERE report_id = ? ORDER BY version`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []ReportVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (db *DB) ListVersionSummaries(reportID int64) ([]VersionSummary, error) {
	rows, err := db.query(
		`SELECT rv.id, rv.version, rv.status, rv.comment, rv.report_date, rv.creation_status, rv.created_at,
		        rv.pdf IS NOT NULL, rv.xlsx IS NOT NULL, rv.pdf_log IS NOT NULL, rv.tex IS NOT NULL,
		        u.id, u.email, u.full_name
		 FROM report_versions rv LEFT JOIN users u ON u.id = rv.user_id
		 WHERE rv.report_id = ? ORDER BY rv.version`, reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list version summaries: %w", err)
	}
	defer rows.Close()

	var out []VersionSummary
	for rows.Next() {
		var s VersionSummary
		var userID sql.NullInt64
		var email, fullName sql.NullString
		if err := rows.Scan(&s.ID, &s.Version, &s.Status, &s.Comment, &s.ReportDate, &s.CreationStatus, &s.CreatedAt,
			&s.HasPDF, &s.HasXLSX, &s.HasPDFLog, &s.HasTex, &userID, &email, &fullName); err != nil {
			return nil, fmt.Errorf("scan version summary: %w", err)
		}
		if userID.Valid {
			s.User = &User{ID: userID.Int64, Email: email.String, FullName: fullName.String}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateVersionMetadata changes the user-editable fields of a version.
func (db *DB) UpdateVersionMetadata(v *ReportVersion) (bool, error) {
	res, err := db.exec(
		`UPDATE report_versions SET version = ?, status = ?, comment = ?, report_date = ? WHERE id = ? AND report_id = ?`,
		v.Version, string(v.Status), v.Comment, nullableTime(v.ReportDate), v.ID, v.ReportID,
	)
	if err != nil {
		return false, fmt.Errorf("update version: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (db *DB) DeleteVersion(reportID, id int64) error {
	_, err := db.exec(`DELETE FROM report_versions WHERE id = ? AND report_id = ?`, id, reportID)
	if err != nil {
		return fmt.Errorf("delete version: %w", err)
	}
	return nil
}

func (db *DB) SetVersionCreationStatus(id int64, status CreationStatus) error {
	_, err := db.exec(
		`UPDATE report_versions SET creation_status = ?, status_changed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("set creation status: %w", err)
	}
	return nil
}

// RescheduleVersion clears all render artifacts and puts the version back
// into scheduled. A nil snapshot keeps the stored json_object.
func (db *DB) RescheduleVersion(id int64, snapshot []byte) error {
	q := `UPDATE report_versions SET creation_status = ?, status_changed_at = CURRENT_TIMESTAMP,
	      pdf = NULL, pdf_log = NULL, tex = NULL, xlsx = NULL`
	args := []any{string(CreationScheduled)}
	if snapshot != nil {
		q += `, json_object = ?`
		args = append(args, string(snapshot))
	}
	q += ` WHERE id = ?`
	args = append(args, id)
	if _, err := db.exec(q, args...); err != nil {
		return fmt.Errorf("reschedule version: %w", err)
	}
	return nil
}

// StoreArtifacts is the renderer write-back: blobs plus a terminal status.
func (db *DB) StoreArtifacts(id int64, a Artifacts, status CreationStatus) error {
	_, err := db.exec(
		`UPDATE report_versions SET pdf = ?, pdf_log = ?, tex = ?, xlsx = ?, creation_status = ?,
		 status_changed_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullableBlob(a.PDF), nullableBlob(a.PDFLog), nullableBlob(a.Tex), nullableBlob(a.XLSX), string(status), id,
	)
	if err != nil {
		return fmt.Errorf("store artifacts: %w", err)
	}
	return nil
}

// VersionArtifact is one downloadable blob with the metadata needed to name
// the file.
type VersionArtifact struct {
	ProjectID int64
	Status    VersionStatus
	Version   float64
	Content   []byte
}

// GetVersionArtifact reads a single blob column. It returns nil when the
// version does not belong to the report; Content is nil when the blob has
// not been produced.
func (db *DB) GetVersionArtifact(reportID, versionID int64, kind ArtifactKind) (*VersionArtifact, error) {
	col, ok := artifactColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown artifact kind: %s", kind)
	}
	a := &VersionArtifact{}
	err := db.queryRow(
		`SELECT r.project_id, rv.status, rv.version, rv.`+col+`
		 FROM report_versions rv JOIN reports r ON r.id = rv.report_id
		 WHERE rv.id = ? AND rv.report_id = ?`, versionID, reportID,
	).Scan(&a.ProjectID, &a.Status, &a.Version, &a.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get version artifact: %w", err)
	}
	return a, nil
}

// StaleVersion identifies a render that never reached a terminal state.
type StaleVersion struct {
	ID       int64
	ReportID int64
	UserID   *int64
	Version  float64
}

// ExpireStaleVersions marks versions that have sat in scheduled or
// generating for longer than timeout as failed and returns them.
func (db *DB) ExpireStaleVersions(timeout time.Duration) ([]StaleVersion, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(timeout.Seconds()))
	var stale []StaleVersion
	err := db.WithTx(func(tx *DB) error {
		rows, err := tx.query(
			`SELECT id, report_id, user_id, version FROM report_versions
			 WHERE creation_status IN (?, ?) AND status_changed_at < datetime('now', ?)`,
			string(CreationScheduled), string(CreationGenerating), modifier,
		)
		if err != nil {
			return fmt.Errorf("list stale versions: %w", err)
		}
		for rows.Next() {
			var s StaleVersion
			var userID sql.NullInt64
			if err := rows.Scan(&s.ID, &s.ReportID, &userID, &s.Version); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale version: %w", err)
			}
			s.UserID = idPtr(userID)
			stale = append(stale, s)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("list stale versions: %w", err)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, s := range stale {
			if err := tx.SetVersionCreationStatus(s.ID, CreationFailed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stale, nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
