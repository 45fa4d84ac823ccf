package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings with this period to keep idle connections alive.
	pingPeriod = 30 * time.Second
)

// client is one connected browser holding the reload channel open.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *DevServer
}

func (s *DevServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins(),
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "upgrade_error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 8),
		server: s,
	}

	go c.writePump()
	go c.readPump()

	s.register <- c
}

// allowedOrigins accepts the configured host plus the localhost
// spellings a browser may use for a local dev server.
func (s *DevServer) allowedOrigins() []string {
	addr := s.cfg.Addr()
	return []string{
		addr,
		"localhost:*",
		"127.0.0.1:*",
	}
}

// runHub owns the client set. Connect, disconnect, and broadcast all
// pass through here, so no send ever races a teardown. hubDone closes
// when the hub exits, releasing any goroutine still sending to it.
func (s *DevServer) runHub(ctx context.Context) {
	defer close(s.hubDone)

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-s.register:
			s.clientsMu.Lock()
			s.clients[c.conn] = c
			count := len(s.clients)
			s.clientsMu.Unlock()
			s.log.Debug("client connected", "total", count)

		case conn := <-s.unregister:
			s.clientsMu.Lock()
			if c, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				close(c.send)
				conn.Close(websocket.StatusNormalClosure, "")
			}
			count := len(s.clients)
			s.clientsMu.Unlock()
			s.log.Debug("client disconnected", "total", count)

		case message := <-s.broadcast:
			s.clientsMu.RLock()
			var dead []*websocket.Conn
			for conn, c := range s.clients {
				select {
				case c.send <- message:
				default:
					// Send buffer full: the client is gone or too slow
					// to matter. Drop it rather than block.
					dead = append(dead, conn)
				}
			}
			s.clientsMu.RUnlock()

			if len(dead) > 0 {
				s.clientsMu.Lock()
				for _, conn := range dead {
					if c, ok := s.clients[conn]; ok {
						delete(s.clients, conn)
						close(c.send)
						conn.Close(websocket.StatusNormalClosure, "")
					}
				}
				s.clientsMu.Unlock()
			}
		}
	}
}

// readPump drains the connection until the client goes away, then
// unregisters it. Browsers send nothing meaningful on this socket; the
// read loop exists to observe disconnects. The unregister send blocks
// until the hub takes it (or the hub has stopped), so a disconnect is
// never lost to a momentarily busy hub.
func (c *client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c.conn:
		case <-c.server.hubDone:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(512)

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.server.log.Debug("websocket read ended", "read_error", err)
			}
			return
		}
	}
}

// writePump delivers reload signals and keepalive pings. Each write is
// bounded by writeWait so a dead client never blocks the pump.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
