package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/database"
)

func vulnTemplate() *database.VulnerabilityTemplate {
	return &database.VulnerabilityTemplate{
		ID:     3,
		Name:   "weak-tls",
		Rating: "medium",
		Content: map[string]database.VulnerabilityContent{
			"en": {Title: "Weak TLS configuration", Description: "Legacy ciphers enabled.", Measures: []string{"Disable TLS 1.0"}},
			"de": {Description: "Alte Cipher aktiv."},
		},
	}
}

func TestCloneVulnerability(t *testing.T) {
	tmpl := vulnTemplate()
	v, err := CloneVulnerability(tmpl, 9, "en")
	require.NoError(t, err)

	assert.Equal(t, int64(9), v.SectionID)
	require.NotNil(t, v.SourceTemplateID)
	assert.Equal(t, int64(3), *v.SourceTemplateID)
	assert.Equal(t, "Weak TLS configuration", v.Title)
	assert.Equal(t, "medium", v.Rating)
	assert.Equal(t, database.VulnerabilityDraft, v.Status)

	v.Measures[0] = "changed"
	assert.Equal(t, "Disable TLS 1.0", tmpl.Content["en"].Measures[0])
}

func TestCloneVulnerabilityFallsBackToName(t *testing.T) {
	v, err := CloneVulnerability(vulnTemplate(), 9, "de")
	require.NoError(t, err)
	assert.Equal(t, "weak-tls", v.Title)
	assert.NotNil(t, v.Measures)
}

func TestCloneVulnerabilityMissingTranslation(t *testing.T) {
	_, err := CloneVulnerability(vulnTemplate(), 9, "fr")
	assert.ErrorIs(t, err, ErrMissingTranslation)
}

func TestEmptyVulnerability(t *testing.T) {
	v := EmptyVulnerability(4, &database.User{FullName: "Ada Lovelace"})
	assert.Equal(t, "New Vulnerability for Ada Lovelace", v.Title)
	assert.Equal(t, database.VulnerabilityDraft, v.Status)

	assert.Equal(t, "New Vulnerability for unknown user", EmptyVulnerability(4, nil).Title)
}
