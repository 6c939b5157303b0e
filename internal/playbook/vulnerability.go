package playbook

import (
	"errors"
	"fmt"

	"github.com/jamesruggles/reportsuite/internal/database"
)

// ErrMissingTranslation is returned when a template has no content for the
// report language.
var ErrMissingTranslation = errors.New("template has no content for the report language")

// CloneVulnerability copies the template content for language into a new
// draft vulnerability of the section. The result is not persisted.
func CloneVulnerability(tmpl *database.VulnerabilityTemplate, sectionID int64, language string) (*database.Vulnerability, error) {
	content, ok := tmpl.Content[language]
	if !ok {
		return nil, fmt.Errorf("vulnerability template %d (%s): %w", tmpl.ID, language, ErrMissingTranslation)
	}
	title := content.Title
	if title == "" {
		title = tmpl.Name
	}
	measures := append([]string{}, content.Measures...)
	id := tmpl.ID
	return &database.Vulnerability{
		SectionID:        sectionID,
		SourceTemplateID: &id,
		Title:            title,
		Description:      content.Description,
		Rating:           tmpl.Rating,
		Measures:         measures,
		Status:           database.VulnerabilityDraft,
	}, nil
}

// EmptyVulnerability is the placeholder created when no template is given.
func EmptyVulnerability(sectionID int64, author *database.User) *database.Vulnerability {
	name := "unknown user"
	if author != nil && author.FullName != "" {
		name = author.FullName
	}
	return &database.Vulnerability{
		SectionID: sectionID,
		Title:     "New Vulnerability for " + name,
		Measures:  []string{},
		Status:    database.VulnerabilityDraft,
	}
}
