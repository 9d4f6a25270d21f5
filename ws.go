package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The game client is served from arbitrary origins during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts one websocket to the hub's gameConn. Outbound messages go
// through a buffered channel drained by a single writer goroutine; gorilla
// connections permit only one concurrent writer.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	telemetry *telemetryCounters
	logger    *zap.Logger
}

func newWSConn(conn *websocket.Conn, telemetry *telemetryCounters, logger *zap.Logger) *wsConn {
	return &wsConn{
		conn:      conn,
		send:      make(chan []byte, sendQueueLen),
		closed:    make(chan struct{}),
		telemetry: telemetry,
		logger:    logger,
	}
}

// Enqueue queues a payload for the writer goroutine. A slow client fills
// its queue and loses messages rather than stalling the tick loop; the
// next snapshot supersedes anything dropped.
func (c *wsConn) Enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	case <-c.closed:
		return false
	default:
		c.telemetry.RecordDroppedSend()
		return false
	}
}

// Close shuts the writer down and closes the socket. Safe to call from any
// goroutine, repeatedly.
func (c *wsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

func (c *wsConn) writePump() {
	defer c.conn.Close()
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("write failed", zap.String("player", c.id), zap.Error(err))
				return
			}
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readPump feeds inbound payloads to the hub until the socket dies, then
// tells the hub the player is gone.
func (c *wsConn) readPump(hub *Hub) {
	defer func() {
		hub.Disconnect(c.id)
		c.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", zap.String("player", c.id), zap.Error(err))
			}
			return
		}
		hub.HandleMessage(c.id, payload)
	}
}

// ServeWS upgrades an HTTP request into a game connection and registers it
// with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newWSConn(socket, h.telemetry, h.logger)
	conn.id = h.Connect(conn)
	go conn.writePump()
	go conn.readPump(h)
}
