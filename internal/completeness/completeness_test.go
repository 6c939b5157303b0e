package completeness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/database"
)

func complete(status database.VulnerabilityStatus) database.Vulnerability {
	return database.Vulnerability{
		ID:          1,
		Title:       "SQL injection",
		Description: "login form",
		Rating:      "high",
		Measures:    []string{"use prepared statements"},
		Status:      status,
	}
}

func treeWith(hide bool, vulns ...database.Vulnerability) *database.ReportTree {
	return &database.ReportTree{Sections: []database.SectionTree{{
		ReportSection:   database.ReportSection{ID: 1, Hide: hide},
		Vulnerabilities: vulns,
	}}}
}

func TestNew_RejectsUnknownField(t *testing.T) {
	_, err := New([]string{"title", "cvss"})
	assert.Error(t, err)

	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRequiredFields, c.RequiredFields)
}

func TestCheckVulnerability_ListsMissingFields(t *testing.T) {
	c, _ := New(nil)
	v := complete(database.VulnerabilityDraft)
	v.Description = "  "
	v.Measures = []string{""}

	err := c.CheckVulnerability(&v)
	var target *IncompleteVulnerabilityError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{FieldDescription, FieldMeasures}, target.Missing)
	assert.Contains(t, err.Error(), "description, measures")
}

func TestCheckVulnerability_ConfiguredFields(t *testing.T) {
	c, _ := New([]string{FieldTitle})
	v := database.Vulnerability{Title: "XSS"}
	assert.NoError(t, c.CheckVulnerability(&v))
}

func TestCheckReport_FinalGating(t *testing.T) {
	c, _ := New(nil)
	review := complete(database.VulnerabilityReview)

	err := c.CheckReport(treeWith(false, review), database.VersionFinal)
	var target *IncompleteVulnerabilityError
	require.ErrorAs(t, err, &target)
	assert.Empty(t, target.Missing)
	assert.Equal(t, database.VulnerabilityReview, target.Status)

	assert.NoError(t, c.CheckReport(treeWith(false, review), database.VersionDraft))
	assert.NoError(t, c.CheckReport(treeWith(true, review), database.VersionFinal))
}

func TestCheckReport_FinalAcceptsFinalAndResolved(t *testing.T) {
	c, _ := New(nil)
	tree := treeWith(false, complete(database.VulnerabilityFinal), complete(database.VulnerabilityResolved))
	assert.NoError(t, c.CheckReport(tree, database.VersionFinal))
}

func TestCheckReport_SkipsHiddenVulnerabilities(t *testing.T) {
	c, _ := New(nil)
	hidden := database.Vulnerability{ID: 2, Status: database.VulnerabilityHide}
	assert.NoError(t, c.CheckReport(treeWith(false, hidden), database.VersionFinal))
}

func TestCheckReport_DraftStillChecksFields(t *testing.T) {
	c, _ := New(nil)
	v := complete(database.VulnerabilityDraft)
	v.Rating = ""
	err := c.CheckReport(treeWith(false, v), database.VersionDraft)
	var target *IncompleteVulnerabilityError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, []string{FieldRating}, target.Missing)
}

func TestRequiresCheck(t *testing.T) {
	assert.False(t, RequiresCheck(database.VulnerabilityDraft))
	assert.False(t, RequiresCheck(database.VulnerabilityHide))
	assert.True(t, RequiresCheck(database.VulnerabilityReview))
	assert.True(t, RequiresCheck(database.VulnerabilityFinal))
	assert.True(t, RequiresCheck(database.VulnerabilityResolved))
}
