// Package metrics exposes the report pipeline counters on a private
// Prometheus registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	versionsCreated      *prometheus.CounterVec
	generationRequests   *prometheus.CounterVec
	notifications        *prometheus.CounterVec
	playbookNodes        *prometheus.CounterVec
	staleVersionsExpired prometheus.Counter
	connectedUsers       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		versionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportsuite_versions_created_total",
				Help: "Report versions created, by version status",
			},
			[]string{"status"},
		),
		generationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportsuite_generation_requests_total",
				Help: "Render requests sent to the queue, by outcome",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportsuite_notifications_total",
				Help: "User notifications, by delivery result",
			},
			[]string{"result"},
		),
		playbookNodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportsuite_playbook_nodes_materialized_total",
				Help: "Playbook sections and procedures cloned into reports",
			},
			[]string{"kind"},
		),
		staleVersionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportsuite_stale_versions_expired_total",
			Help: "Versions marked failed after exceeding the render timeout",
		}),
		connectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reportsuite_connected_users",
			Help: "Users with a live notification connection",
		}),
	}
	m.registry.MustRegister(
		m.versionsCreated,
		m.generationRequests,
		m.notifications,
		m.playbookNodes,
		m.staleVersionsExpired,
		m.connectedUsers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) VersionCreated(status string) {
	if m == nil {
		return
	}
	m.versionsCreated.WithLabelValues(status).Inc()
}

// GenerationRequest records a publish outcome: "published" or "failed".
func (m *Metrics) GenerationRequest(outcome string) {
	if m == nil {
		return
	}
	m.generationRequests.WithLabelValues(outcome).Inc()
}

// Notification records "delivered", "dropped" or "error".
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) PlaybookNodes(sections, procedures int) {
	if m == nil {
		return
	}
	m.playbookNodes.WithLabelValues("section").Add(float64(sections))
	m.playbookNodes.WithLabelValues("procedure").Add(float64(procedures))
}

func (m *Metrics) StaleVersionsExpired(n int) {
	if m == nil {
		return
	}
	m.staleVersionsExpired.Add(float64(n))
}

func (m *Metrics) ConnectedUsers(n int) {
	if m == nil {
		return
	}
	m.connectedUsers.Set(float64(n))
}
