package server

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 256 * 1024
)

// Client represents a single WebSocket connection. A participant belongs to
// at most one room at a time.
type Client struct {
	ID    string
	Name  string
	Color string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger

	mu         sync.Mutex
	room       *Room // nil until joined
	sendClosed bool
}

var (
	fallbackAdjectives = []string{"Red", "Blue", "Green", "Gold", "Silver", "Purple", "Orange", "Teal", "Coral", "Jade"}
	fallbackAnimals    = []string{"Fox", "Owl", "Bear", "Wolf", "Hawk", "Deer", "Lynx", "Crow", "Dove", "Seal"}
	cursorColors       = []string{"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6", "#1abc9c", "#e67e22", "#00bcd4", "#ff5722", "#8bc34a"}
)

func newClient(hub *Hub, conn *websocket.Conn, logger zerolog.Logger) *Client {
	id := uuid.NewString()
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Client{
		ID:     id,
		Name:   fallbackAdjectives[r.Intn(len(fallbackAdjectives))] + " " + fallbackAnimals[r.Intn(len(fallbackAnimals))],
		Color:  cursorColors[r.Intn(len(cursorColors))],
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger.With().Str("client", id).Logger(),
	}
}

// Room returns the room the client is currently joined to, or nil.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(r *Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// ReadPump reads messages from the WebSocket and routes them.
func (c *Client) ReadPump() {
	defer func() {
		if room := c.Room(); room != nil {
			room.leave <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ErrCodeBadMessage, "invalid message format")
			continue
		}

		switch msg.Type {
		case MsgJoin:
			if c.Room() != nil {
				// One room per connection; switching requires leaving first.
				c.sendError(ErrCodeBadMessage, "already joined to a room")
				continue
			}
			if msg.Name != "" {
				c.Name = msg.Name
			}
			c.hub.joinRoom <- joinRequest{client: c, roomID: msg.RoomID}
		case MsgEdit:
			room := c.Room()
			if room == nil {
				c.sendError(ErrCodeBadMessage, "not joined to a room")
				continue
			}
			room.incoming <- editMessage{client: c, msg: msg}
		case MsgPresence:
			room := c.Room()
			if room == nil {
				c.sendError(ErrCodeBadMessage, "not joined to a room")
				continue
			}
			// Presence bypasses the room's operation loop; it touches
			// disjoint state and must never block document sync.
			c.hub.presence.Update(room.id, c, msg.Cursor, msg.Selection)
		case MsgLeave:
			if room := c.Room(); room != nil {
				room.leave <- c
			}
		default:
			c.sendError(ErrCodeBadMessage, "unknown message type: "+msg.Type)
		}
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMsg(msg ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		// The client already left; whoever still holds a reference must not
		// send on the closed channel.
		return
	}
	select {
	case c.send <- msg.Encode():
	default:
		// Client too slow, drop the message.
	}
}

// closeSend shuts the send channel exactly once; later sendMsg calls become
// no-ops instead of panicking.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *Client) sendError(code, message string) {
	c.sendMsg(ServerMessage{Type: MsgError, Code: code, Message: message})
}
