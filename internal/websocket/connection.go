package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection implements interfaces.Connection over a gorilla/websocket
// socket.
// ARCHITECTURAL DISCOVERY: writes must be serialized to prevent races on the
// underlying socket; this wrapper carries no session state of its own — the
// room coordinator (internal/room) is the only thing that knows a
// connection's role, room, or language.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte // 100-buffer absorbs bursts without blocking the sender
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps conn and starts its single writer goroutine.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.NewString(),
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) ID() string { return c.id }

// ARCHITECTURAL DISCOVERY: single writer goroutine pattern eliminates races
// on the socket without a mutex around every WriteMessage call.
func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
		close(c.writeCh)
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
