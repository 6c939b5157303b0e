package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/queue"
	"github.com/jamesruggles/reportsuite/internal/status"
	"github.com/jamesruggles/reportsuite/internal/version"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

type fixture struct {
	db     *database.DB
	user   *database.User
	report *database.Report
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &database.User{Email: "tester@example.com", FullName: "Test User", IsActive: true}
	require.NoError(t, db.CreateUser(user))
	p := &database.Project{Name: "ACME"}
	require.NoError(t, db.CreateProject(p))
	l := &database.ReportLanguage{Name: "English", LanguageCode: "en"}
	require.NoError(t, db.CreateLanguage(l))
	r := &database.Report{ProjectID: p.ID, LanguageID: l.ID, Title: "Pentest", Summary: "Line one\n\nLine two"}
	require.NoError(t, db.CreateReport(r))
	require.NoError(t, db.CreateScope(&database.ReportScope{ReportID: r.ID, Type: database.AssetNetworkRange, Asset: "10.0.0.0/24"}))
	s := &database.ReportSection{ReportID: r.ID, Name: "Web", Description: "Web application tests"}
	require.NoError(t, db.CreateSection(s))
	require.NoError(t, db.CreateVulnerability(&database.Vulnerability{
		SectionID: s.ID, Title: "Reflected XSS", Description: "search box", Rating: "medium",
		Measures: []string{"encode output"}, Status: database.VulnerabilityFinal,
	}))
	return &fixture{db: db, user: user, report: r}
}

func (f *fixture) request(t *testing.T) *version.GenerationRequest {
	t.Helper()
	pub := &capturePublisher{}
	checker, err := completeness.New(nil)
	require.NoError(t, err)
	d := version.NewDispatcher(f.db, checker, pub, nil, nil, version.Options{})
	_, err = d.Create(context.Background(), f.report.ID, f.user, version.Input{Version: 1, Status: database.VersionFinal})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	var req version.GenerationRequest
	require.NoError(t, json.Unmarshal(pub.msgs[0], &req))
	return &req
}

type capturePublisher struct{ msgs [][]byte }

func (p *capturePublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.msgs = append(p.msgs, payload)
	return nil
}

func TestRender_WritesPDFAndLog(t *testing.T) {
	f := newFixture(t)
	req := f.request(t)
	n := &recordingNotifier{}
	w := NewWorker(f.db, queue.NewMemory(), "report", n)

	assert.Equal(t, database.CreationSuccessful, w.Render(context.Background(), req))

	pdf, err := f.db.GetVersionArtifact(f.report.ID, req.VersionID, database.ArtifactPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Content, []byte("%PDF")))

	log, err := f.db.GetVersionArtifact(f.report.ID, req.VersionID, database.ArtifactPDFLog)
	require.NoError(t, err)
	assert.Contains(t, string(log.Content), `section "Web"`)
	assert.Contains(t, string(log.Content), "done in")

	require.Len(t, n.msgs, 1)
	assert.Equal(t, f.user.ID, n.msgs[0].User)
	assert.Equal(t, status.SeveritySuccess, n.msgs[0].Status.Severity)
}

func TestRender_FailureIsWrittenBack(t *testing.T) {
	f := newFixture(t)
	req := f.request(t)
	req.Project = nil
	n := &recordingNotifier{}
	w := NewWorker(f.db, queue.NewMemory(), "report", n)

	assert.Equal(t, database.CreationFailed, w.Render(context.Background(), req))

	v, err := f.db.GetVersion(f.report.ID, req.VersionID)
	require.NoError(t, err)
	assert.Equal(t, database.CreationFailed, v.CreationStatus)
	log, err := f.db.GetVersionArtifact(f.report.ID, req.VersionID, database.ArtifactPDFLog)
	require.NoError(t, err)
	assert.Contains(t, string(log.Content), "error: request carries no report snapshot")
	require.Len(t, n.msgs, 1)
	assert.Equal(t, status.SeverityError, n.msgs[0].Status.Severity)
}

type fakeConn struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	var m notify.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent = append(c.sent, m)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close(string) error { return nil }

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestPipeline_QueueToNotification(t *testing.T) {
	f := newFixture(t)
	broker := queue.NewMemory()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := notify.NewRegistry(nil)
	conn := &fakeConn{}
	registry.Connect(f.user.ID, conn)
	go notify.NewListener(broker, "notify_user", registry).Run(ctx)
	go NewWorker(f.db, broker, "report", notify.NewPublisher(broker, "notify_user", nil)).Run(ctx)
	require.Eventually(t, func() bool {
		return broker.Subscribers("report") == 1 && broker.Subscribers("notify_user") == 1
	}, time.Second, 5*time.Millisecond)

	checker, err := completeness.New(nil)
	require.NoError(t, err)
	d := version.NewDispatcher(f.db, checker, broker, registry, nil, version.Options{Channel: "report"})
	_, err = d.Create(ctx, f.report.ID, f.user, version.Input{Version: 1, Status: database.VersionDraft})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return conn.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	list, err := d.List(f.report.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, database.CreationSuccessful, list[0].CreationStatus)
	assert.True(t, list[0].HasPDF)
	assert.True(t, list[0].HasPDFLog)
	assert.False(t, list[0].HasXLSX)
}
