package version

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/report"
)

// NotFoundText is served in place of an artifact that has not been
// produced, so polling clients never see an HTTP error.
const NotFoundText = "File not found."

// Download is a ready-to-serve artifact.
type Download struct {
	FileName    string
	ContentType string
	Content     []byte
	Inline      bool
}

type artifactFormat struct {
	column      database.ArtifactKind
	ext         string
	contentType string
}

var formats = map[string]artifactFormat{
	"json":     {database.ArtifactJSON, "json", "application/json"},
	"pdf":      {database.ArtifactPDF, "pdf", "application/pdf"},
	"view-pdf": {database.ArtifactPDF, "pdf", "application/pdf"},
	"pdf-log":  {database.ArtifactPDFLog, "log", "text/plain"},
	"tex":      {database.ArtifactTex, "zip", "application/zip"},
	"xlsx":     {database.ArtifactXLSX, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
}

// ValidKind reports whether kind names a downloadable artifact.
func ValidKind(kind string) bool {
	_, ok := formats[kind]
	return ok
}

// FileName builds "{project}_{Status}-Report_v{version}" without extension.
func FileName(projectID int64, s database.VersionStatus, v float64) string {
	return fmt.Sprintf("%d_%s-Report_v%s", projectID, cases.Title(language.English).String(string(s)), report.FormatVersion(v))
}

// Artifact loads one artifact of a version. A missing version or an empty
// blob yields the plain-text placeholder.
func (d *Dispatcher) Artifact(reportID, versionID int64, kind string) (*Download, error) {
	f, ok := formats[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", ErrInvalidData, kind)
	}
	a, err := d.db.GetVersionArtifact(reportID, versionID, f.column)
	if err != nil {
		return nil, err
	}
	if a == nil || len(a.Content) == 0 {
		return &Download{ContentType: "text/plain", Content: []byte(NotFoundText), Inline: true}, nil
	}

	name := FileName(a.ProjectID, a.Status, a.Version)

	content := a.Content
	if f.column == database.ArtifactJSON {
		var v any
		if err := json.Unmarshal(a.Content, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				content = pretty
			}
		}
	}
	return &Download{
		FileName:    name + "." + f.ext,
		ContentType: f.contentType,
		Content:     content,
		Inline:      kind == "view-pdf",
	}, nil
}
