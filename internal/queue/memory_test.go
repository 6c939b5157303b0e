package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/config"
)

func TestMemory_FanOut(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[int][]string{}
	for i := 0; i < 2; i++ {
		go m.Subscribe(ctx, "report", func(_ context.Context, p []byte) {
			mu.Lock()
			got[i] = append(got[i], string(p))
			mu.Unlock()
		})
	}
	require.Eventually(t, func() bool { return m.Subscribers("report") == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Publish(ctx, "report", []byte("a")))
	require.NoError(t, m.Publish(ctx, "other", []byte("ignored")))
	require.NoError(t, m.Publish(ctx, "report", []byte("b")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got[0]) == 2 && len(got[1]) == 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, got[0])
	mu.Unlock()
}

func TestMemory_PublishWithoutSubscriberDrops(t *testing.T) {
	m := NewMemory()
	assert.NoError(t, m.Publish(context.Background(), "notify_user", []byte("x")))
}

func TestMemory_SubscribeEndsOnCancelAndClose(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Subscribe(ctx, "report", func(context.Context, []byte) {}) }()
	require.Eventually(t, func() bool { return m.Subscribers("report") == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-errc)
	require.Eventually(t, func() bool { return m.Subscribers("report") == 0 }, time.Second, 5*time.Millisecond)

	go func() { errc <- m.Subscribe(context.Background(), "report", func(context.Context, []byte) {}) }()
	require.Eventually(t, func() bool { return m.Subscribers("report") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, <-errc, ErrClosed)
	assert.ErrorIs(t, m.Publish(context.Background(), "report", nil), ErrClosed)
}

func TestNew_MemoryDriver(t *testing.T) {
	b, err := New(context.Background(), config.QueueConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = New(context.Background(), config.QueueConfig{Driver: "kafka"})
	assert.Error(t, err)
}
