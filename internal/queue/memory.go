package queue

import (
	"context"
	"sync"
)

const memoryBuffer = 64

// Memory is an in-process broker with the same fan-out and drop semantics
// as Redis Pub/Sub.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
	done   chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		subs: make(map[string]map[chan []byte]struct{}),
		done: make(chan struct{}),
	}
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for ch := range m.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		default:
			// slow subscriber, dropped like a Pub/Sub client past its buffer
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	ch := make(chan []byte, memoryBuffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[chan []byte]struct{})
	}
	m.subs[channel][ch] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs[channel], ch)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return ErrClosed
		case msg := <-ch:
			handler(ctx, msg)
		}
	}
}

// Subscribers returns how many subscriptions are active on channel.
func (m *Memory) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[channel])
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
