// Package queue carries render requests and user notifications between the
// API, the renderer and the notification listener.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamesruggles/reportsuite/internal/config"
)

// ErrClosed is returned by a broker after Close.
var ErrClosed = errors.New("queue closed")

// Handler is invoked once per inbound message.
type Handler func(ctx context.Context, payload []byte)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber delivers messages published on channel to handler until ctx
// is cancelled. Subscribe blocks.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler Handler) error
}

type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// New returns the broker selected by cfg.Driver.
func New(ctx context.Context, cfg config.QueueConfig) (Broker, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown queue driver: %s", cfg.Driver)
	}
}
