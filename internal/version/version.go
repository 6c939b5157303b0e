// Package version owns the report version lifecycle: snapshotting a report,
// requesting renders and serving the rendered artifacts.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jamesruggles/reportsuite/internal/completeness"
	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/metrics"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/queue"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/status"
	"github.com/jamesruggles/reportsuite/internal/tracing"
)

var tracer = tracing.Tracer("version")

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidData      = errors.New("invalid data")
	ErrDuplicateVersion = fmt.Errorf("%w: report version already exists", ErrInvalidData)
)

// RequestTypeReport marks a full report render request.
const RequestTypeReport = "report"

// GenerationRequest is published on the report channel for the renderer.
type GenerationRequest struct {
	RequestID string          `json:"request_id"`
	Type      string          `json:"type"`
	ReportID  int64           `json:"report_id"`
	VersionID int64           `json:"version_id"`
	Version   string          `json:"version"`
	Requestor *database.User  `json:"requestor"`
	Project   json.RawMessage `json:"project"`
}

// Notifier delivers a status message to a user, best effort.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

// Input carries the user-editable version fields.
type Input struct {
	Version    float64                `json:"version"`
	Status     database.VersionStatus `json:"status"`
	Comment    string                 `json:"comment"`
	ReportDate *time.Time             `json:"report_date"`
}

func (in *Input) validate() error {
	if in.Version <= 0 {
		return fmt.Errorf("%w: version must be a positive number", ErrInvalidData)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown version status %q", ErrInvalidData, in.Status)
	}
	return nil
}

type Options struct {
	Channel        string
	PublishTimeout time.Duration
}

// Dispatcher creates versions and hands render requests to the queue.
type Dispatcher struct {
	db       *database.DB
	checker  *completeness.Checker
	pub      queue.Publisher
	notifier Notifier
	metrics  *metrics.Metrics
	opts     Options

	wg sync.WaitGroup
}

func NewDispatcher(db *database.DB, checker *completeness.Checker, pub queue.Publisher, notifier Notifier, m *metrics.Metrics, opts Options) *Dispatcher {
	if opts.Channel == "" {
		opts.Channel = "report"
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	return &Dispatcher{db: db, checker: checker, pub: pub, notifier: notifier, metrics: m, opts: opts}
}

// Create snapshots the report, stores the version as scheduled and
// publishes a render request. A queue failure marks the version failed but
// is reported through the envelope, not as an error.
func (d *Dispatcher) Create(ctx context.Context, reportID int64, requestor *database.User, in Input) (*status.Envelope, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var v *database.ReportVersion
	var snap *report.Snapshot
	err := d.db.WithTx(func(tx *database.DB) error {
		tree, err := tx.LoadReportTree(reportID)
		if err != nil {
			return err
		}
		if tree == nil {
			return ErrNotFound
		}
		for _, existing := range tree.Versions {
			if existing.Version == in.Version {
				return ErrDuplicateVersion
			}
		}
		if err := d.checker.CheckReport(tree, in.Status); err != nil {
			return err
		}

		v = &database.ReportVersion{
			ReportID:       reportID,
			UserID:         userID(requestor),
			Version:        in.Version,
			Status:         in.Status,
			Comment:        in.Comment,
			ReportDate:     in.ReportDate,
			CreationStatus: database.CreationScheduled,
		}
		snap = report.Build(tree)
		snap.AppendVersion(v)
		if v.JSONObject, err = snap.Marshal(); err != nil {
			return err
		}
		return tx.CreateVersion(v)
	})
	if err != nil {
		return nil, err
	}
	d.metrics.VersionCreated(string(v.Status))
	slog.Info("report version created", "report_id", reportID, "version_id", v.ID, "version", v.Version, "status", v.Status)

	result := status.Success("Report version successfully created.", versionPayload(v))
	if incomplete := snap.IncompleteFields(); len(incomplete) > 0 {
		result = status.Warning(
			"Report generation task successfully created but the following attributes are missing: "+strings.Join(incomplete, ", "),
			versionPayload(v),
		)
	}
	if !d.publish(ctx, v, requestor) {
		return queueFailed(v), nil
	}
	return result, nil
}

// Regenerate re-requests a render for a finished version. The latest
// version gets a fresh snapshot; older versions are rendered from their
// stored snapshot.
func (d *Dispatcher) Regenerate(ctx context.Context, reportID, versionID int64, requestor *database.User) (*status.Envelope, error) {
	var v *database.ReportVersion
	var incomplete []string
	var running, fresh bool
	err := d.db.WithTx(func(tx *database.DB) error {
		var err error
		v, err = tx.GetVersion(reportID, versionID)
		if err != nil {
			return err
		}
		if v == nil {
			return ErrNotFound
		}
		if !v.CreationStatus.Terminal() {
			running = true
			return nil
		}

		versions, err := tx.ListVersions(reportID)
		if err != nil {
			return err
		}
		if len(versions) == 0 || versions[len(versions)-1].ID != v.ID {
			return tx.RescheduleVersion(v.ID, nil)
		}

		tree, err := tx.LoadReportTree(reportID)
		if err != nil {
			return err
		}
		if tree == nil {
			return ErrNotFound
		}
		if err := d.checker.CheckReport(tree, v.Status); err != nil {
			return err
		}
		// the tree already lists this version last, with its current metadata
		snap := report.Build(tree)
		incomplete = snap.IncompleteFields()
		data, err := snap.Marshal()
		if err != nil {
			return err
		}
		v.JSONObject = data
		fresh = true
		return tx.RescheduleVersion(v.ID, data)
	})
	if err != nil {
		return nil, err
	}
	if running {
		return status.Info("Report generation task is already running. Wait until it has completed or failed and run again."), nil
	}

	if v.JSONObject == nil {
		return nil, fmt.Errorf("%w: version %d has no snapshot", ErrInvalidData, v.ID)
	}
	v.CreationStatus = database.CreationScheduled
	slog.Info("report version rescheduled", "report_id", reportID, "version_id", v.ID, "fresh_snapshot", fresh)

	if !d.publish(ctx, v, requestor) {
		return queueFailed(v), nil
	}
	if len(incomplete) > 0 {
		return status.Warning(
			"Report generation task successfully created but the following attributes are missing: "+strings.Join(incomplete, ", "),
			versionPayload(v),
		), nil
	}
	return status.Success("Report generation task successfully scheduled.", versionPayload(v)), nil
}

// Update edits version metadata and schedules a regeneration in the
// background.
func (d *Dispatcher) Update(ctx context.Context, reportID, versionID int64, requestor *database.User, in Input) (*status.Envelope, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	err := d.db.WithTx(func(tx *database.DB) error {
		v, err := tx.GetVersion(reportID, versionID)
		if err != nil {
			return err
		}
		if v == nil {
			return ErrNotFound
		}
		if v.Version != in.Version {
			versions, err := tx.ListVersions(reportID)
			if err != nil {
				return err
			}
			for _, other := range versions {
				if other.ID != v.ID && other.Version == in.Version {
					return ErrDuplicateVersion
				}
			}
		}
		v.Version, v.Status, v.Comment, v.ReportDate = in.Version, in.Status, in.Comment, in.ReportDate
		_, err = tx.UpdateVersionMetadata(v)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.Go(ctx, func(ctx context.Context) {
		env, err := d.Regenerate(ctx, reportID, versionID, requestor)
		if err != nil {
			slog.Warn("background regeneration failed", "report_id", reportID, "version_id", versionID, "error", err)
			d.notify(ctx, requestor, status.Error(http.StatusBadRequest, err.Error()))
			return
		}
		slog.Debug("background regeneration", "version_id", versionID, "severity", env.Severity, "message", env.Message)
	})
	return status.Success("Report version successfully updated.", nil), nil
}

// Delete removes a version. Deleting a missing version succeeds.
func (d *Dispatcher) Delete(reportID, versionID int64) (*status.Envelope, error) {
	if err := d.db.DeleteVersion(reportID, versionID); err != nil {
		return nil, err
	}
	return status.Success("Report version successfully deleted.", nil), nil
}

func (d *Dispatcher) List(reportID int64) ([]database.VersionSummary, error) {
	return d.db.ListVersionSummaries(reportID)
}

// Go runs fn detached from the request that triggered it. Wait blocks until
// every such task has returned.
func (d *Dispatcher) Go(ctx context.Context, fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(context.WithoutCancel(ctx))
	}()
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// publish sends the render request for v. On failure the version is marked
// failed and the requestor is told; the version row is kept.
func (d *Dispatcher) publish(ctx context.Context, v *database.ReportVersion, requestor *database.User) bool {
	req := GenerationRequest{
		RequestID: uuid.NewString(),
		Type:      RequestTypeReport,
		ReportID:  v.ReportID,
		VersionID: v.ID,
		Version:   report.FormatVersion(v.Version),
		Requestor: requestor,
		Project:   json.RawMessage(v.JSONObject),
	}
	ctx, span := tracer.Start(ctx, "version.publish", trace.WithAttributes(
		attribute.Int64("report.id", v.ReportID),
		attribute.Int64("version.id", v.ID),
		attribute.String("request.id", req.RequestID),
	))
	defer span.End()

	data, err := json.Marshal(req)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(ctx, d.opts.PublishTimeout)
		err = d.pub.Publish(pubCtx, d.opts.Channel, data)
		cancel()
	}
	if err == nil {
		d.metrics.GenerationRequest("published")
		slog.Debug("generation request published", "request_id", req.RequestID, "version_id", v.ID)
		return true
	}

	d.metrics.GenerationRequest("failed")
	span.RecordError(err)
	span.SetStatus(codes.Error, "publish failed")
	slog.Error("publishing generation request failed", "version_id", v.ID, "error", err)
	if err := d.db.SetVersionCreationStatus(v.ID, database.CreationFailed); err != nil {
		slog.Error("marking version failed", "version_id", v.ID, "error", err)
	}
	v.CreationStatus = database.CreationFailed
	d.notify(ctx, requestor, &status.Envelope{
		Status:   http.StatusInternalServerError,
		Severity: status.SeverityError,
		Message:  "PDF report generation task failed because the message queue is not available.",
		Payload:  versionPayload(v),
	})
	return false
}

func (d *Dispatcher) notify(ctx context.Context, user *database.User, env *status.Envelope) {
	if d.notifier == nil || user == nil {
		return
	}
	d.notifier.Notify(ctx, notify.Message{User: user.ID, Status: env})
}

func userID(u *database.User) *int64 {
	if u == nil {
		return nil
	}
	return &u.ID
}

func queueFailed(v *database.ReportVersion) *status.Envelope {
	return status.Warning("Report version saved but the generation task could not be queued.", versionPayload(v))
}

// VersionPayload tells clients which version an envelope refers to.
type VersionPayload struct {
	ReportID       int64                   `json:"report_id"`
	VersionID      int64                   `json:"version_id"`
	Version        string                  `json:"version"`
	CreationStatus database.CreationStatus `json:"creation_status"`
}

func versionPayload(v *database.ReportVersion) *VersionPayload {
	return &VersionPayload{
		ReportID:       v.ReportID,
		VersionID:      v.ID,
		Version:        report.FormatVersion(v.Version),
		CreationStatus: v.CreationStatus,
	}
}
