package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jamesruggles/reportsuite/internal/queue"
)

// Listener forwards messages from the notify channel to the registry.
type Listener struct {
	sub      queue.Subscriber
	channel  string
	registry *Registry
}

func NewListener(sub queue.Subscriber, channel string, registry *Registry) *Listener {
	return &Listener{sub: sub, channel: channel, registry: registry}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (l *Listener) Run(ctx context.Context) error {
	return l.sub.Subscribe(ctx, l.channel, l.handle)
}

func (l *Listener) handle(ctx context.Context, payload []byte) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil || msg.User == 0 || msg.Status == nil {
		slog.Warn("ignoring malformed notification", "channel", l.channel, "payload", string(payload))
		return
	}
	l.registry.Send(ctx, msg)
}

// Publisher sends notifications through the queue so that any API
// instance holding the user's connection can deliver them. When the queue
// rejects a message it is handed to the local registry instead.
type Publisher struct {
	pub     queue.Publisher
	channel string
	local   *Registry
}

// NewPublisher returns a Publisher on channel. local may be nil, in which
// case a failed publish drops the message.
func NewPublisher(pub queue.Publisher, channel string, local *Registry) *Publisher {
	return &Publisher{pub: pub, channel: channel, local: local}
}

func (p *Publisher) Notify(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	err = p.pub.Publish(ctx, p.channel, data)
	if err == nil {
		return
	}
	if p.local == nil {
		slog.Warn("publishing notification failed", "user_id", msg.User, "error", err)
		return
	}
	delivered := p.local.Send(ctx, msg)
	slog.Warn("publishing notification failed, delivering locally",
		"user_id", msg.User, "delivered", delivered, "error", err)
}
