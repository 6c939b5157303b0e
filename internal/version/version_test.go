package version

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/status"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, payload)
	return nil
}

func (p *recordingPublisher) requests(t *testing.T) []GenerationRequest {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerationRequest, 0, len(p.msgs))
	for _, m := range p.msgs {
		var r GenerationRequest
		require.NoError(t, json.Unmarshal(m, &r))
		out = append(out, r)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) all() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

type env struct {
	db       *database.DB
	pub      *recordingPublisher
	notifier *recordingNotifier
	d        *Dispatcher
	user     *database.User
	report   *database.Report
	section  *database.ReportSection
	vuln     *database.Vulnerability
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &database.User{Email: "tester@example.com", FullName: "Test User", IsActive: true}
	require.NoError(t, db.CreateUser(user))
	p := &database.Project{Name: "ACME external"}
	require.NoError(t, db.CreateProject(p))
	l := &database.ReportLanguage{Name: "English", LanguageCode: "en"}
	require.NoError(t, db.CreateLanguage(l))
	r := &database.Report{ProjectID: p.ID, LanguageID: l.ID, Title: "Pentest", Summary: "Summary"}
	require.NoError(t, db.CreateReport(r))
	require.NoError(t, db.CreateScope(&database.ReportScope{ReportID: r.ID, Type: database.AssetIPAddress, Asset: "10.0.0.1"}))
	s := &database.ReportSection{ReportID: r.ID, Name: "Web"}
	require.NoError(t, db.CreateSection(s))
	v := &database.Vulnerability{
		SectionID:   s.ID,
		Title:       "SQL injection",
		Description: "login form",
		Rating:      "high",
		Measures:    []string{"prepared statements"},
		Status:      database.VulnerabilityReview,
	}
	require.NoError(t, db.CreateVulnerability(v))

	checker, err := completeness.New(nil)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	n := &recordingNotifier{}
	d := NewDispatcher(db, checker, pub, n, nil, Options{Channel: "report", PublishTimeout: time.Second})
	return &env{db: db, pub: pub, notifier: n, d: d, user: user, report: r, section: s, vuln: v}
}

func (e *env) create(t *testing.T, version float64, s database.VersionStatus) *status.Envelope {
	t.Helper()
	res, err := e.d.Create(context.Background(), e.report.ID, e.user, Input{Version: version, Status: s})
	require.NoError(t, err)
	return res
}

func (e *env) versionByNumber(t *testing.T, number float64) *database.ReportVersion {
	t.Helper()
	versions, err := e.db.ListVersions(e.report.ID)
	require.NoError(t, err)
	for i := range versions {
		if versions[i].Version == number {
			return &versions[i]
		}
	}
	t.Fatalf("version %v not found", number)
	return nil
}

func (e *env) finish(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, e.db.StoreArtifacts(id, database.Artifacts{PDF: []byte("%PDF-1.4")}, database.CreationSuccessful))
}

func TestCreate_PersistsSnapshotAndPublishes(t *testing.T) {
	e := setup(t)
	res := e.create(t, 1, database.VersionDraft)
	assert.Equal(t, status.SeveritySuccess, res.Severity)

	v := e.versionByNumber(t, 1)
	assert.Equal(t, database.CreationScheduled, v.CreationStatus)
	require.NotNil(t, v.UserID)
	assert.Equal(t, e.user.ID, *v.UserID)

	snap, err := report.Unmarshal(v.JSONObject)
	require.NoError(t, err)
	require.Len(t, snap.Report.Versions, 1)
	assert.Equal(t, "1.0", snap.Report.Versions[0].Version)
	require.Len(t, snap.Report.Sections, 1)
	assert.Equal(t, "SQL injection", snap.Report.Sections[0].Vulnerabilities[0].Title)

	reqs := e.pub.requests(t)
	require.Len(t, reqs, 1)
	assert.Equal(t, RequestTypeReport, reqs[0].Type)
	assert.Equal(t, v.ID, reqs[0].VersionID)
	assert.Equal(t, e.user.ID, reqs[0].Requestor.ID)
	assert.NotEmpty(t, reqs[0].RequestID)
	assert.JSONEq(t, string(v.JSONObject), string(reqs[0].Project))
}

func TestCreate_DuplicateVersionRejected(t *testing.T) {
	e := setup(t)
	e.create(t, 1, database.VersionDraft)

	_, err := e.d.Create(context.Background(), e.report.ID, e.user, Input{Version: 1, Status: database.VersionDraft, Comment: "again"})
	assert.ErrorIs(t, err, ErrDuplicateVersion)
	assert.ErrorIs(t, err, ErrInvalidData)

	versions, err := e.db.ListVersions(e.report.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Empty(t, versions[0].Comment)
	assert.Len(t, e.pub.requests(t), 1)
}

func TestCreate_FinalGating(t *testing.T) {
	e := setup(t)

	_, err := e.d.Create(context.Background(), e.report.ID, e.user, Input{Version: 1, Status: database.VersionFinal})
	var incomplete *completeness.IncompleteVulnerabilityError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, e.vuln.ID, incomplete.VulnerabilityID)
	versions, err := e.db.ListVersions(e.report.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	e.create(t, 1, database.VersionDraft)

	e.section.Hide = true
	_, err = e.db.UpdateSection(e.section)
	require.NoError(t, err)
	e.create(t, 2, database.VersionFinal)
}

func TestCreate_InvalidInput(t *testing.T) {
	e := setup(t)
	_, err := e.d.Create(context.Background(), e.report.ID, e.user, Input{Version: 0, Status: database.VersionDraft})
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = e.d.Create(context.Background(), e.report.ID, e.user, Input{Version: 1, Status: "published"})
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = e.d.Create(context.Background(), e.report.ID+100, e.user, Input{Version: 1, Status: database.VersionDraft})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_WarnsAboutIncompleteReport(t *testing.T) {
	e := setup(t)
	e.report.Summary = ""
	_, err := e.db.UpdateReport(e.report)
	require.NoError(t, err)

	res := e.create(t, 1, database.VersionDraft)
	assert.Equal(t, status.SeverityWarning, res.Severity)
	assert.Contains(t, res.Message, "report summary")
	assert.Len(t, e.pub.requests(t), 1)
}

func TestCreate_QueueFailureMarksVersionFailed(t *testing.T) {
	e := setup(t)
	e.pub.err = errors.New("connection refused")

	res := e.create(t, 1, database.VersionDraft)
	assert.Equal(t, status.SeverityWarning, res.Severity)

	v := e.versionByNumber(t, 1)
	assert.Equal(t, database.CreationFailed, v.CreationStatus)
	snap, err := report.Unmarshal(v.JSONObject)
	require.NoError(t, err)
	assert.Equal(t, "Pentest", snap.Report.Title)

	msgs := e.notifier.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, e.user.ID, msgs[0].User)
	assert.Equal(t, status.SeverityError, msgs[0].Status.Severity)
}

func TestRegenerate_LatestRecomputesOlderReuses(t *testing.T) {
	e := setup(t)
	e.create(t, 1, database.VersionDraft)
	e.create(t, 2, database.VersionDraft)
	v1, v2 := e.versionByNumber(t, 1), e.versionByNumber(t, 2)
	e.finish(t, v1.ID)
	e.finish(t, v2.ID)

	e.report.Title = "Pentest (revised)"
	_, err := e.db.UpdateReport(e.report)
	require.NoError(t, err)

	res, err := e.d.Regenerate(context.Background(), e.report.ID, v1.ID, e.user)
	require.NoError(t, err)
	assert.Equal(t, status.SeveritySuccess, res.Severity)
	got1 := e.versionByNumber(t, 1)
	assert.Equal(t, string(v1.JSONObject), string(got1.JSONObject))
	assert.Equal(t, database.CreationScheduled, got1.CreationStatus)
	a, err := e.db.GetVersionArtifact(e.report.ID, v1.ID, database.ArtifactPDF)
	require.NoError(t, err)
	assert.Nil(t, a.Content)

	_, err = e.d.Regenerate(context.Background(), e.report.ID, v2.ID, e.user)
	require.NoError(t, err)
	got2 := e.versionByNumber(t, 2)
	snap, err := report.Unmarshal(got2.JSONObject)
	require.NoError(t, err)
	assert.Equal(t, "Pentest (revised)", snap.Report.Title)
	require.Len(t, snap.Report.Versions, 2)
	assert.Equal(t, "2.0", snap.Report.Versions[1].Version)

	reqs := e.pub.requests(t)
	require.Len(t, reqs, 4)
	assert.JSONEq(t, string(v1.JSONObject), string(reqs[2].Project))
	assert.JSONEq(t, string(got2.JSONObject), string(reqs[3].Project))
}

func TestRegenerate_InFlightIsInformational(t *testing.T) {
	e := setup(t)
	e.create(t, 1, database.VersionDraft)
	v := e.versionByNumber(t, 1)

	res, err := e.d.Regenerate(context.Background(), e.report.ID, v.ID, e.user)
	require.NoError(t, err)
	assert.Equal(t, status.SeverityInfo, res.Severity)
	assert.Len(t, e.pub.requests(t), 1)

	_, err = e.d.Regenerate(context.Background(), e.report.ID, v.ID+50, e.user)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_SchedulesBackgroundRegeneration(t *testing.T) {
	e := setup(t)
	e.create(t, 1, database.VersionDraft)
	v := e.versionByNumber(t, 1)
	e.finish(t, v.ID)

	res, err := e.d.Update(context.Background(), e.report.ID, v.ID, e.user, Input{Version: 1.1, Status: database.VersionDraft, Comment: "typo fixes"})
	require.NoError(t, err)
	assert.Equal(t, status.SeveritySuccess, res.Severity)
	e.d.Wait()

	got := e.versionByNumber(t, 1.1)
	assert.Equal(t, "typo fixes", got.Comment)
	assert.Equal(t, database.CreationScheduled, got.CreationStatus)
	snap, err := report.Unmarshal(got.JSONObject)
	require.NoError(t, err)
	assert.Equal(t, "typo fixes", snap.Report.Versions[0].Comment)
	assert.Len(t, e.pub.requests(t), 2)
}

func TestUpdate_MissingAndDuplicate(t *testing.T) {
	e := setup(t)
	_, err := e.d.Update(context.Background(), e.report.ID, 999, e.user, Input{Version: 1, Status: database.VersionDraft})
	assert.ErrorIs(t, err, ErrNotFound)

	e.create(t, 1, database.VersionDraft)
	e.create(t, 2, database.VersionDraft)
	v2 := e.versionByNumber(t, 2)
	_, err = e.d.Update(context.Background(), e.report.ID, v2.ID, e.user, Input{Version: 1, Status: database.VersionDraft})
	assert.ErrorIs(t, err, ErrDuplicateVersion)
}

func TestDelete_IsIdempotent(t *testing.T) {
	e := setup(t)
	e.create(t, 1, database.VersionDraft)
	v := e.versionByNumber(t, 1)

	for i := 0; i < 2; i++ {
		res, err := e.d.Delete(e.report.ID, v.ID)
		require.NoError(t, err)
		assert.Equal(t, status.SeveritySuccess, res.Severity)
	}
	list, err := e.d.List(e.report.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type connRecorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (c *connRecorder) Send(_ context.Context, data []byte) error {
	var m notify.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *connRecorder) Close(string) error { return nil }

func (c *connRecorder) all() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.msgs...)
}

func TestCreate_QueueFailureReachesConnectedRequestor(t *testing.T) {
	e := setup(t)
	e.pub.err = errors.New("connection refused")

	// Same broker carries render requests and notifications.
	registry := notify.NewRegistry(nil)
	e.d.notifier = notify.NewPublisher(e.pub, "notify_user", registry)

	conn := &connRecorder{}
	registry.Connect(e.user.ID, conn)
	e.create(t, 1, database.VersionDraft)

	msgs := conn.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, e.user.ID, msgs[0].User)
	assert.Equal(t, status.SeverityError, msgs[0].Status.Severity)
	assert.Contains(t, msgs[0].Status.Message, "message queue is not available")

	registry.Disconnect(e.user.ID, conn)
	e.create(t, 2, database.VersionDraft)
	assert.Len(t, conn.all(), 1)
	assert.Equal(t, database.CreationFailed, e.versionByNumber(t, 2).CreationStatus)
}
