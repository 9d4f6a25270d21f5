package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	server "freerun/server"
	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

// Client owns one websocket to the game server and the session layered on
// it. Writes are serialized by a mutex; the read loop runs on its own
// goroutine and feeds the session through the Messages channel drained by
// the frame loop, so session state stays single-threaded.
type Client struct {
	logger  *zap.Logger
	conn    *websocket.Conn
	session *Session

	writeMu sync.Mutex

	// Messages carries raw server payloads from the read loop to whoever
	// drains them (normally Poll on the frame loop).
	Messages chan []byte

	done chan struct{}
	once sync.Once
}

// Dial connects to the server's websocket endpoint and starts the read
// loop. The session is not Ready until the init message has been polled.
func Dial(url string, world []*phys.Collider, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		logger:   logger,
		conn:     conn,
		session:  NewSession(world, logger),
		Messages: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Session exposes the protocol state machine.
func (c *Client) Session() *Session { return c.session }

// Done closes when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears the socket down.
func (c *Client) Close() {
	c.once.Do(func() {
		c.conn.Close()
	})
}

func (c *Client) readLoop() {
	defer func() {
		close(c.Messages)
		c.Close()
		close(c.done)
	}()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}
		select {
		case c.Messages <- payload:
		default:
			// Frame loop stalled; the next snapshot carries newer state.
			c.logger.Debug("dropping server message, poll queue full")
		}
	}
}

// Poll drains pending server messages into the session. Call once per
// rendered frame before Frame.
func (c *Client) Poll(dt float32) {
	for {
		select {
		case payload, ok := <-c.Messages:
			if !ok {
				return
			}
			if err := c.session.Handle(dt, payload); err != nil {
				c.logger.Warn("bad server message", zap.Error(err))
			}
		default:
			return
		}
	}
}

func (c *Client) write(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// SendInput reports this frame's input to the server.
func (c *Client) SendInput(in sim.Input, fireDir [3]float32) error {
	msg := server.ClientMessage{
		Type:            "input",
		InputDirection:  server.Vec{X: in.Direction.X(), Y: in.Direction.Y(), Z: in.Direction.Z()},
		LookDirection:   server.Vec{X: in.Look.X(), Y: in.Look.Y(), Z: in.Look.Z()},
		FireDirection:   server.Vec{X: fireDir[0], Y: fireDir[1], Z: fireDir[2]},
		IsJumpPressed:   in.Jump,
		IsCrouchPressed: in.Crouch,
		IsSprintPressed: in.Sprint,
		IsFirePressed:   in.Fire,
		IsAimPressed:    in.Aim,
		IsReloadPressed: in.Reload,
		SentAt:          time.Now().UnixMilli(),
	}
	return c.write(msg)
}

// SendHeartbeat sends a keep-alive carrying the local clock for RTT
// measurement. Call on an interval shorter than the server's timeout.
func (c *Client) SendHeartbeat() error {
	return c.write(server.ClientMessage{
		Type:   "heartbeat",
		SentAt: time.Now().UnixMilli(),
	})
}

// SwitchWeapon requests a weapon change; the server validates and
// rebroadcasts.
func (c *Client) SwitchWeapon(weapon string) error {
	return c.write(server.ClientMessage{
		Type:   "weapon_switch",
		Weapon: weapon,
	})
}

// ResetPosition asks the server to respawn the player, for use when the
// player falls out of bounds.
func (c *Client) ResetPosition() error {
	return c.write(server.ClientMessage{Type: "resetPosition"})
}

// ReportState sends the predicted transform. The server only adopts the
// yaw; position stays input-driven authoritative, so this is optional and
// mainly keeps view orientation fresh between input packets.
func (c *Client) ReportState() error {
	ch := c.session.Predictor().Character()
	return c.write(server.ClientMessage{
		Type:     "playerState",
		Position: server.ToVec(ch.Pos),
		Yaw:      ch.Yaw,
	})
}
