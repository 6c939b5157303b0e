// Package completeness decides whether vulnerabilities and reports carry
// enough data to be versioned.
package completeness

import (
	"fmt"
	"strings"

	"github.com/jamesruggles/reportsuite/internal/database"
)

// Field names accepted in Checker.RequiredFields.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldRating      = "rating"
	FieldMeasures    = "measures"
)

// DefaultRequiredFields is used when a Checker is built without fields.
var DefaultRequiredFields = []string{FieldTitle, FieldDescription, FieldRating, FieldMeasures}

// IncompleteVulnerabilityError names the vulnerability that blocks a
// version and why. Missing is empty when the status, not the content, is
// the problem.
type IncompleteVulnerabilityError struct {
	VulnerabilityID int64
	Title           string
	Missing         []string
	Status          database.VulnerabilityStatus
}

func (e *IncompleteVulnerabilityError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("vulnerability %q is incomplete, missing: %s", e.Title, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("vulnerability %q is in status %s, final versions require final or resolved", e.Title, e.Status)
}

type Checker struct {
	RequiredFields []string
}

func New(fields []string) (*Checker, error) {
	if len(fields) == 0 {
		fields = DefaultRequiredFields
	}
	for _, f := range fields {
		switch f {
		case FieldTitle, FieldDescription, FieldRating, FieldMeasures:
		default:
			return nil, fmt.Errorf("unknown required vulnerability field %q", f)
		}
	}
	return &Checker{RequiredFields: fields}, nil
}

// MissingFields lists the required fields v leaves empty.
func (c *Checker) MissingFields(v *database.Vulnerability) []string {
	var missing []string
	for _, f := range c.RequiredFields {
		if !present(v, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

func present(v *database.Vulnerability, field string) bool {
	switch field {
	case FieldTitle:
		return strings.TrimSpace(v.Title) != ""
	case FieldDescription:
		return strings.TrimSpace(v.Description) != ""
	case FieldRating:
		return strings.TrimSpace(v.Rating) != ""
	case FieldMeasures:
		for _, m := range v.Measures {
			if strings.TrimSpace(m) != "" {
				return true
			}
		}
		return false
	}
	return true
}

// CheckVulnerability returns an *IncompleteVulnerabilityError when any
// required field is empty.
func (c *Checker) CheckVulnerability(v *database.Vulnerability) error {
	if missing := c.MissingFields(v); len(missing) > 0 {
		return &IncompleteVulnerabilityError{
			VulnerabilityID: v.ID,
			Title:           v.Title,
			Missing:         missing,
			Status:          v.Status,
		}
	}
	return nil
}

// RequiresCheck reports whether moving a vulnerability to status needs a
// passing field check first.
func RequiresCheck(status database.VulnerabilityStatus) bool {
	switch status {
	case database.VulnerabilityReview, database.VulnerabilityFinal, database.VulnerabilityResolved:
		return true
	}
	return false
}

// CheckReport walks every visible section of tree. Hidden sections and
// vulnerabilities in status hide are skipped. For a final version every
// counted vulnerability must also be final or resolved.
func (c *Checker) CheckReport(tree *database.ReportTree, status database.VersionStatus) error {
	for _, section := range tree.Sections {
		if section.Hide {
			continue
		}
		for i := range section.Vulnerabilities {
			v := &section.Vulnerabilities[i]
			if v.Status == database.VulnerabilityHide {
				continue
			}
			if status == database.VersionFinal &&
				(v.Status == database.VulnerabilityDraft || v.Status == database.VulnerabilityReview) {
				return &IncompleteVulnerabilityError{VulnerabilityID: v.ID, Title: v.Title, Status: v.Status}
			}
			if err := c.CheckVulnerability(v); err != nil {
				return err
			}
		}
	}
	return nil
}
