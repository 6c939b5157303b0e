// Package renderer is the embedded stand-in for the external report
// renderer. It consumes generation requests from the queue, writes a draft
// PDF and its log back to the version and notifies the requestor.
package renderer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/queue"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/status"
	"github.com/jamesruggles/reportsuite/internal/tracing"
	"github.com/jamesruggles/reportsuite/internal/version"
)

var tracer = tracing.Tracer("renderer")

type Worker struct {
	db       *database.DB
	sub      queue.Subscriber
	channel  string
	notifier version.Notifier
	now      func() time.Time
}

func NewWorker(db *database.DB, sub queue.Subscriber, channel string, notifier version.Notifier) *Worker {
	return &Worker{db: db, sub: sub, channel: channel, notifier: notifier, now: time.Now}
}

// Run consumes generation requests until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("embedded renderer started", "channel", w.channel)
	return w.sub.Subscribe(ctx, w.channel, w.handle)
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var req version.GenerationRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.VersionID == 0 {
		slog.Warn("ignoring malformed generation request", "error", err)
		return
	}
	if req.Type != version.RequestTypeReport {
		slog.Debug("ignoring generation request", "type", req.Type, "request_id", req.RequestID)
		return
	}
	w.Render(ctx, &req)
}

// Render processes one request and writes the outcome back.
func (w *Worker) Render(ctx context.Context, req *version.GenerationRequest) database.CreationStatus {
	ctx, span := tracer.Start(ctx, "renderer.render", trace.WithAttributes(
		attribute.Int64("version.id", req.VersionID),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	logger := slog.With("request_id", req.RequestID, "version_id", req.VersionID)
	if err := w.db.SetVersionCreationStatus(req.VersionID, database.CreationGenerating); err != nil {
		logger.Error("marking version generating", "error", err)
		return database.CreationFailed
	}

	start := w.now()
	blog := newBuildLog(w.now)
	blog.Printf("request %s for report %d version %s", req.RequestID, req.ReportID, req.Version)

	artifacts, err := w.build(req, blog)
	result := database.CreationSuccessful
	if err != nil {
		result = database.CreationFailed
		blog.Printf("error: %v", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		logger.Error("render failed", "error", err)
	} else {
		blog.Printf("done in %s", w.now().Sub(start).Round(time.Millisecond))
		logger.Info("render finished", "pdf_bytes", len(artifacts.PDF))
	}
	artifacts.PDFLog = blog.Bytes()

	if err := w.db.StoreArtifacts(req.VersionID, artifacts, result); err != nil {
		logger.Error("storing artifacts", "error", err)
		result = database.CreationFailed
	}
	w.notify(ctx, req, result)
	return result
}

func (w *Worker) build(req *version.GenerationRequest, blog *buildLog) (database.Artifacts, error) {
	if len(req.Project) == 0 {
		return database.Artifacts{}, fmt.Errorf("request carries no report snapshot")
	}
	snap, err := report.Unmarshal(req.Project)
	if err != nil {
		return database.Artifacts{}, err
	}
	blog.Printf("report %q with %d section(s)", snap.Report.Title, len(snap.Report.Sections))
	pdf, err := renderPDF(snap, blog, w.now())
	if err != nil {
		return database.Artifacts{}, fmt.Errorf("rendering pdf: %w", err)
	}
	return database.Artifacts{PDF: pdf}, nil
}

func (w *Worker) notify(ctx context.Context, req *version.GenerationRequest, result database.CreationStatus) {
	if w.notifier == nil || req.Requestor == nil {
		return
	}
	payload := &version.VersionPayload{
		ReportID:       req.ReportID,
		VersionID:      req.VersionID,
		Version:        req.Version,
		CreationStatus: result,
	}
	env := status.Success(fmt.Sprintf("Report version %s successfully created.", req.Version), payload)
	if result != database.CreationSuccessful {
		env = &status.Envelope{
			Status:   http.StatusInternalServerError,
			Severity: status.SeverityError,
			Message:  fmt.Sprintf("Report version %s could not be created. See the PDF log for details.", req.Version),
			Payload:  payload,
		}
	}
	w.notifier.Notify(ctx, notify.Message{User: req.Requestor.ID, Status: env})
}
