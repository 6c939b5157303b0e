package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesruggles/reportsuite/internal/queue"
	"github.com/jamesruggles/reportsuite/internal/status"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed string
	err    error
}

func (c *fakeConn) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = reason
	return nil
}

func (c *fakeConn) messages(t *testing.T) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.sent))
	for _, d := range c.sent {
		var m Message
		require.NoError(t, json.Unmarshal(d, &m))
		out = append(out, m)
	}
	return out
}

func TestRegistry_ReconnectEvictsOlder(t *testing.T) {
	r := NewRegistry(nil)
	first, second := &fakeConn{}, &fakeConn{}

	r.Connect(1, first)
	r.Connect(1, second)
	assert.NotEmpty(t, first.closed)

	assert.True(t, r.Send(context.Background(), Message{User: 1, Status: status.Success("done", nil)}))
	assert.Empty(t, first.messages(t))
	assert.Equal(t, []Message{{User: 1, Status: status.Success("done", nil)}}, second.messages(t))

	// the evicted connection's cleanup must not drop the new one
	r.Disconnect(1, first)
	assert.True(t, r.Connected(1))
	r.Disconnect(1, second)
	assert.False(t, r.Connected(1))
}

func TestRegistry_SendWithoutConnectionDrops(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.Send(context.Background(), Message{User: 9, Status: status.Info("x")}))
}

func TestRegistry_WriteErrorDisconnects(t *testing.T) {
	r := NewRegistry(nil)
	c := &fakeConn{err: errors.New("broken pipe")}
	r.Connect(1, c)
	assert.False(t, r.Send(context.Background(), Message{User: 1, Status: status.Info("x")}))
	assert.False(t, r.Connected(1))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		user := int64(i % 5)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			r.Connect(user, c)
			r.Disconnect(user, c)
		}()
		go func() {
			defer wg.Done()
			r.Send(context.Background(), Message{User: user, Status: status.Info("x")})
		}()
		go func() {
			defer wg.Done()
			r.Connected(user)
		}()
	}
	wg.Wait()
}

func TestListener_DeliversFromQueue(t *testing.T) {
	broker := queue.NewMemory()
	defer broker.Close()
	r := NewRegistry(nil)
	c := &fakeConn{}
	r.Connect(3, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewListener(broker, "notify_user", r).Run(ctx)
	require.Eventually(t, func() bool { return broker.Subscribers("notify_user") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Publish(ctx, "notify_user", []byte("not json")))
	NewPublisher(broker, "notify_user", nil).Notify(ctx, Message{User: 3, Status: status.Success("Report version 1.0 successfully created.", nil)})

	require.Eventually(t, func() bool { return len(c.messages(t)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Report version 1.0 successfully created.", c.messages(t)[0].Status.Message)
}

func TestPublisher_QueueDownDeliversLocally(t *testing.T) {
	broker := queue.NewMemory()
	require.NoError(t, broker.Close())
	r := NewRegistry(nil)
	c, gone := &fakeConn{}, &fakeConn{}
	r.Connect(3, c)
	r.Connect(4, gone)
	r.Disconnect(4, gone)
	p := NewPublisher(broker, "notify_user", r)

	ctx := context.Background()
	p.Notify(ctx, Message{User: 3, Status: status.Error(http.StatusServiceUnavailable, "message queue is not available")})
	p.Notify(ctx, Message{User: 4, Status: status.Error(http.StatusServiceUnavailable, "message queue is not available")})

	msgs := c.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "message queue is not available", msgs[0].Status.Message)
	assert.Empty(t, gone.messages(t))
}

func TestPublisher_QueueDownWithoutRegistryDrops(t *testing.T) {
	broker := queue.NewMemory()
	require.NoError(t, broker.Close())

	assert.NotPanics(t, func() {
		NewPublisher(broker, "notify_user", nil).Notify(context.Background(), Message{User: 3, Status: status.Success("ok", nil)})
	})
}
