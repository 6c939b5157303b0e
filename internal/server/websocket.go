package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 5 * time.Second

// wsConn adapts a websocket connection to notify.Conn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusPolicyViolation, reason)
}

// handleWebSocket registers the caller's connection for notifications. The
// connection is receive-only; inbound frames are discarded. Cross-origin
// upgrades are refused unless the origin matches server.allowed_origins.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.Server.AllowedOrigins,
	})
	if err != nil {
		slog.Error("ws accept error", "error", err)
		return
	}
	defer conn.CloseNow()

	c := &wsConn{conn: conn}
	s.registry.Connect(u.ID, c)
	defer s.registry.Disconnect(u.ID, c)

	// Keep connection alive, wait for close or context cancellation
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}
