package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cartela-live/backend/monitoring"
)

// ClientMessage is an action submitted over the live channel.
type ClientMessage struct {
	Action  string `json:"action"`
	GameID  uint   `json:"game_id"`
	CardID  uint   `json:"card_id"`
	Number  int    `json:"number"`
	Message string `json:"message"`
}

// Client adapts one websocket connection to the hub's Subscriber
// contract.
type Client struct {
	key         string
	participant Participant
	conn        *websocket.Conn
	hub         *Hub
	send        chan []byte
	once        sync.Once
	log         *zap.SugaredLogger
}

func NewClient(key string, p Participant, conn *websocket.Conn, hub *Hub, log *zap.SugaredLogger) *Client {
	return &Client{
		key:         key,
		participant: p,
		conn:        conn,
		hub:         hub,
		send:        make(chan []byte, 32),
		log:         log,
	}
}

func (c *Client) Key() string {
	return c.key
}

func (c *Client) Participant() Participant {
	return c.participant
}

// Send queues an event for the write pump. Never blocks: a full buffer
// drops the event, the authoritative state lives in the store. The
// channel can close while a broadcast is in flight; that counts as a
// dropped send, not a process failure.
func (c *Client) Send(ev Event) (ok bool) {
	b, err := json.Marshal(ev)
	if err != nil {
		c.log.Errorw("event marshal failed", "type", ev.Type, "error", err)
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	monitoring.ConnectedClients.Inc()
	go c.writePump()
	go c.readPump()
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
		monitoring.ConnectedClients.Dec()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debugw("client disconnected", "user_id", c.participant.ID)
			} else {
				c.log.Debugw("client read error", "user_id", c.participant.ID, "error", err)
			}
			return
		}
		c.handle(raw)
	}
}

func (c *Client) handle(raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("recovered handling client message", "user_id", c.participant.ID, "panic", r)
		}
	}()

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.log.Debugw("invalid client message", "user_id", c.participant.ID, "error", err)
		return
	}

	ctx := context.Background()
	switch msg.Action {
	case "join-game":
		if err := c.hub.Join(ctx, msg.GameID, c); err != nil {
			c.Send(NewEvent(EventError, ErrorPayload{Message: err.Error()}))
		}
	case "leave-game":
		c.hub.Leave(msg.GameID, c)
	case "mark-number":
		c.hub.MarkNumber(ctx, c, msg.CardID, msg.Number)
	case "game-chat":
		c.hub.Chat(msg.GameID, c, msg.Message)
	default:
		c.log.Debugw("unknown client action", "user_id", c.participant.ID, "action", msg.Action)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.log.Debugw("client write error", "user_id", c.participant.ID, "error", err)
			return
		}
	}
}
