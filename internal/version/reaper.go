package version

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesruggles/reportsuite/internal/database"
	"github.com/jamesruggles/reportsuite/internal/metrics"
	"github.com/jamesruggles/reportsuite/internal/notify"
	"github.com/jamesruggles/reportsuite/internal/report"
	"github.com/jamesruggles/reportsuite/internal/status"
)

// Reaper fails renders stuck in scheduled or generating for longer than
// the timeout, which unblocks Regenerate for them.
type Reaper struct {
	db       *database.DB
	notifier Notifier
	metrics  *metrics.Metrics
	timeout  time.Duration
	interval time.Duration
}

func NewReaper(db *database.DB, notifier Notifier, m *metrics.Metrics, timeout, interval time.Duration) *Reaper {
	return &Reaper{db: db, notifier: notifier, metrics: m, timeout: timeout, interval: interval}
}

// Run sweeps every interval until ctx is cancelled. A zero timeout or
// interval disables the reaper.
func (r *Reaper) Run(ctx context.Context) {
	if r.timeout <= 0 || r.interval <= 0 {
		slog.Info("stale render reaper disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				slog.Error("stale render sweep failed", "error", err)
			}
		}
	}
}

// Sweep expires stale versions once and notifies their requestors.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	stale, err := r.db.ExpireStaleVersions(r.timeout)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	r.metrics.StaleVersionsExpired(len(stale))
	for _, s := range stale {
		slog.Warn("render timed out", "report_id", s.ReportID, "version_id", s.ID, "timeout", r.timeout)
		if r.notifier == nil || s.UserID == nil {
			continue
		}
		r.notifier.Notify(ctx, notify.Message{User: *s.UserID, Status: &status.Envelope{
			Status:   http.StatusGatewayTimeout,
			Severity: status.SeverityError,
			Message:  fmt.Sprintf("Report version %s was not generated within %s and has been marked as failed.", report.FormatVersion(s.Version), r.timeout),
			Payload: &VersionPayload{
				ReportID:       s.ReportID,
				VersionID:      s.ID,
				Version:        report.FormatVersion(s.Version),
				CreationStatus: database.CreationFailed,
			},
		}})
	}
	return len(stale), nil
}
