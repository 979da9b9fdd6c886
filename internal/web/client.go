package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/livechat/internal/hub"
)

const writeTimeout = 10 * time.Second

// client is a middleman between one websocket connection and the hub.
type client struct {
	conn       *websocket.Conn
	hub        *hub.Hub
	subscriber *hub.Subscriber
}

func (s *Server) serveWS(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		// Accept has already written the error response.
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return nil
	}

	cl := &client{conn: conn, hub: s.hub, subscriber: hub.NewSubscriber()}
	if !s.hub.Register(cl.subscriber) {
		return conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	slog.Info("WebSocket client connected", "remote", c.RealIP())

	cl.writePump(cl.conn.CloseRead(s.ctx))
	return nil
}

// writePump copies hub fragments to the connection until either side goes
// away. Inbound frames are discarded by CloseRead; the page posts over HTTP.
func (cl *client) writePump(ctx context.Context) {
	defer func() {
		cl.hub.Unregister(cl.subscriber)
		cl.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("WebSocket client disconnected")
			return
		case message, ok := <-cl.subscriber.Send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := cl.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Error("writePump error", "error", err)
				return
			}
		}
	}
}
