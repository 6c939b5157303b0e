package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/ordering"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedReport(t *testing.T, db *DB) *Report {
	t.Helper()
	p := &Project{Name: "ACME external", Customer: "ACME"}
	require.NoError(t, db.CreateProject(p))
	l := &ReportLanguage{Name: "English", LanguageCode: "en"}
	require.NoError(t, db.CreateLanguage(l))
	r := &Report{ProjectID: p.ID, LanguageID: l.ID, Title: "Pentest", Summary: "summary"}
	require.NoError(t, db.CreateReport(r))
	return r
}

func TestCreateSection_AppendsWithStride(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)

	for _, name := range []string{"Intro", "Web", "Network"} {
		require.NoError(t, db.CreateSection(&ReportSection{ReportID: r.ID, Name: name}))
	}

	sections, err := db.ListSections(r.ID)
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, []int{10, 20, 30}, []int{sections[0].Order, sections[1].Order, sections[2].Order})
	assert.Equal(t, "Intro", sections[0].Name)
}

func TestMoveSection(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)
	a := &ReportSection{ReportID: r.ID, Name: "A"}
	b := &ReportSection{ReportID: r.ID, Name: "B"}
	require.NoError(t, db.CreateSection(a))
	require.NoError(t, db.CreateSection(b))

	moved, err := db.MoveSection(r.ID, a.ID, ordering.Up)
	require.NoError(t, err)
	assert.False(t, moved, "first section cannot move up")

	moved, err = db.MoveSection(r.ID, a.ID, ordering.Down)
	require.NoError(t, err)
	assert.True(t, moved)

	sections, err := db.ListSections(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", sections[0].Name)
	assert.Equal(t, 10, sections[0].Order)
	assert.Equal(t, "A", sections[1].Name)
	assert.Equal(t, 20, sections[1].Order)
}

func TestDeleteSectionPlaybook_CascadesSubtree(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)
	s := &ReportSection{ReportID: r.ID, Name: "Web"}
	require.NoError(t, db.CreateSection(s))

	link := &ReportSectionPlaybook{SectionID: s.ID, Name: "OWASP"}
	require.NoError(t, db.CreateSectionPlaybook(link))
	root := &PlaybookSection{SectionPlaybookID: &link.ID, Name: "Auth", Order: 1}
	require.NoError(t, db.InsertPlaybookSection(root))
	child := &PlaybookSection{ParentID: &root.ID, Name: "Sessions", Order: 1}
	require.NoError(t, db.InsertPlaybookSection(child))
	require.NoError(t, db.InsertReportProcedure(&ReportProcedure{ReportID: r.ID, PlaybookSectionID: child.ID, Name: "Cookie flags", Order: 1}))

	nodes, procs, err := db.CountPlaybookRows(s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, nodes)
	assert.Equal(t, 1, procs)

	require.NoError(t, db.DeleteSectionPlaybook(s.ID, link.ID))

	nodes, procs, err = db.CountPlaybookRows(s.ID)
	require.NoError(t, err)
	assert.Zero(t, nodes)
	assert.Zero(t, procs)

	var left int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM playbook_sections`).Scan(&left))
	assert.Zero(t, left)
}

func TestLoadReportTree_OrdersChildren(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)
	s := &ReportSection{ReportID: r.ID, Name: "Web"}
	require.NoError(t, db.CreateSection(s))
	link := &ReportSectionPlaybook{SectionID: s.ID, Name: "OWASP"}
	require.NoError(t, db.CreateSectionPlaybook(link))

	second := &PlaybookSection{SectionPlaybookID: &link.ID, Name: "second", Order: 11}
	first := &PlaybookSection{SectionPlaybookID: &link.ID, Name: "first", Order: 1}
	require.NoError(t, db.InsertPlaybookSection(second))
	require.NoError(t, db.InsertPlaybookSection(first))
	require.NoError(t, db.InsertReportProcedure(&ReportProcedure{ReportID: r.ID, PlaybookSectionID: first.ID, Name: "p2", Order: 11}))
	require.NoError(t, db.InsertReportProcedure(&ReportProcedure{ReportID: r.ID, PlaybookSectionID: first.ID, Name: "p1", Order: 1}))
	require.NoError(t, db.CreateVulnerability(&Vulnerability{SectionID: s.ID, Title: "XSS", Measures: []string{"encode output"}}))

	tree, err := db.LoadReportTree(r.ID)
	require.NoError(t, err)
	require.Len(t, tree.Sections, 1)
	require.Len(t, tree.Sections[0].Playbooks, 1)
	pb := tree.Sections[0].Playbooks[0]
	require.Len(t, pb.Sections, 2)
	assert.Equal(t, "first", pb.Sections[0].Name)
	assert.Equal(t, "second", pb.Sections[1].Name)
	require.Len(t, pb.Sections[0].Procedures, 2)
	assert.Equal(t, "p1", pb.Sections[0].Procedures[0].Name)
	require.Len(t, tree.Sections[0].Vulnerabilities, 1)
	assert.Equal(t, []string{"encode output"}, tree.Sections[0].Vulnerabilities[0].Measures)
	assert.Equal(t, "en", tree.Language.LanguageCode)

	missing, err := db.LoadReportTree(r.ID + 100)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVersions_UniquePerReport(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)

	require.NoError(t, db.CreateVersion(&ReportVersion{ReportID: r.ID, Version: 1.0, Status: VersionDraft, JSONObject: []byte(`{}`)}))
	err := db.CreateVersion(&ReportVersion{ReportID: r.ID, Version: 1.0, Status: VersionFinal})
	assert.Error(t, err)

	versions, err := db.ListVersions(r.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, VersionDraft, versions[0].Status)
	assert.Equal(t, CreationScheduled, versions[0].CreationStatus)
}

func TestVersionArtifacts(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)
	v := &ReportVersion{ReportID: r.ID, Version: 1.1, Status: VersionFinal, JSONObject: []byte(`{"a":1}`)}
	require.NoError(t, db.CreateVersion(v))

	a, err := db.GetVersionArtifact(r.ID, v.ID, ArtifactPDF)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Nil(t, a.Content)
	assert.Equal(t, 1.1, a.Version)

	require.NoError(t, db.StoreArtifacts(v.ID, Artifacts{PDF: []byte("%PDF"), PDFLog: []byte("ok")}, CreationSuccessful))

	a, err = db.GetVersionArtifact(r.ID, v.ID, ArtifactPDF)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), a.Content)

	summaries, err := db.ListVersionSummaries(r.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].HasPDF)
	assert.True(t, summaries[0].HasPDFLog)
	assert.False(t, summaries[0].HasTex)
	assert.Equal(t, CreationSuccessful, summaries[0].CreationStatus)

	require.NoError(t, db.RescheduleVersion(v.ID, nil))
	got, err := db.GetVersion(r.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, CreationScheduled, got.CreationStatus)
	assert.JSONEq(t, `{"a":1}`, string(got.JSONObject))

	a, err = db.GetVersionArtifact(r.ID+1, v.ID, ArtifactPDF)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestExpireStaleVersions(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)
	stuck := &ReportVersion{ReportID: r.ID, Version: 1, Status: VersionDraft}
	fresh := &ReportVersion{ReportID: r.ID, Version: 2, Status: VersionDraft}
	require.NoError(t, db.CreateVersion(stuck))
	require.NoError(t, db.CreateVersion(fresh))
	_, err := db.Exec(`UPDATE report_versions SET status_changed_at = datetime('now', '-2 hours') WHERE id = ?`, stuck.ID)
	require.NoError(t, err)

	expired, err := db.ExpireStaleVersions(30 * time.Minute)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stuck.ID, expired[0].ID)

	got, err := db.GetVersion(r.ID, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, CreationFailed, got.CreationStatus)

	got, err = db.GetVersion(r.ID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, CreationScheduled, got.CreationStatus)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	r := seedReport(t, db)

	err := db.WithTx(func(tx *DB) error {
		require.NoError(t, tx.CreateSection(&ReportSection{ReportID: r.ID, Name: "gone"}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	sections, err := db.ListSections(r.ID)
	require.NoError(t, err)
	assert.Empty(t, sections)
}
