// Package notify pushes render results to the user who requested them.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jamesruggles/reportsuite/internal/metrics"
	"github.com/jamesruggles/reportsuite/internal/status"
)

// Message is the payload carried on the notify channel and written to the
// user's live connection.
type Message struct {
	User   int64            `json:"user"`
	Status *status.Envelope `json:"status"`
}

// Conn is one live client connection.
type Conn interface {
	Send(ctx context.Context, data []byte) error
	Close(reason string) error
}

// Registry holds at most one live connection per user. A reconnect evicts
// the previous connection.
type Registry struct {
	mu      sync.RWMutex
	conns   map[int64]Conn
	metrics *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{conns: make(map[int64]Conn), metrics: m}
}

func (r *Registry) Connect(userID int64, conn Conn) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = conn
	n := len(r.conns)
	r.mu.Unlock()

	if old != nil && old != conn {
		old.Close("replaced by a newer connection")
	}
	r.metrics.ConnectedUsers(n)
	slog.Debug("notification client connected", "user_id", userID)
}

// Disconnect removes conn if it is still the user's current connection.
func (r *Registry) Disconnect(userID int64, conn Conn) {
	r.mu.Lock()
	if cur, ok := r.conns[userID]; ok && cur == conn {
		delete(r.conns, userID)
	}
	n := len(r.conns)
	r.mu.Unlock()
	r.metrics.ConnectedUsers(n)
}

func (r *Registry) Connected(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Send writes msg to the user's connection. It reports whether the message
// was delivered; without a live connection the message is dropped.
func (r *Registry) Send(ctx context.Context, msg Message) bool {
	r.mu.RLock()
	conn := r.conns[msg.User]
	r.mu.RUnlock()

	if conn == nil {
		r.metrics.Notification("dropped")
		slog.Debug("notification dropped, user not connected", "user_id", msg.User)
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		r.metrics.Notification("error")
		return false
	}
	if err := conn.Send(ctx, data); err != nil {
		slog.Debug("notification write error", "user_id", msg.User, "error", err)
		r.metrics.Notification("error")
		r.Disconnect(msg.User, conn)
		conn.Close("write failed")
		return false
	}
	r.metrics.Notification("delivered")
	return true
}

// Notify satisfies the dispatcher's notifier.
func (r *Registry) Notify(ctx context.Context, msg Message) {
	r.Send(ctx, msg)
}
