package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cartela-live/backend/models"
)

type EventType string

const (
	EventJoinedGame   EventType = "joined-game"
	EventPlayerJoined EventType = "player-joined"
	EventPlayerLeft   EventType = "player-left"
	EventNumberDrawn  EventType = "number-drawn"
	EventNumberMarked EventType = "number-marked"
	EventWinner       EventType = "winner-declared"
	EventGameStatus   EventType = "game-status-changed"
	EventChat         EventType = "game-chat"
	EventNotification EventType = "notification"
	EventError        EventType = "error"
)

// Event is the structured message every subscriber receives. The wire
// encoding belongs to the transport; this is the contract.
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload, Timestamp: time.Now()}
}

type JoinedGamePayload struct {
	Game  models.Game    `json:"game"`
	Cards []*models.Card `json:"cards"`
}

type PresencePayload struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

type DrawPayload struct {
	Number     int    `json:"number"`
	Letter     string `json:"letter"`
	Sequence   int    `json:"sequence"`
	TotalDrawn int    `json:"total_drawn"`
}

type MarkPayload struct {
	CardID  uint  `json:"card_id"`
	Number  int   `json:"number"`
	Marked  []int `json:"marked"`
	Winner  bool  `json:"winner"`
	Already bool  `json:"already_marked"`
}

type WinnerPayload struct {
	UserID   uint            `json:"user_id"`
	Username string          `json:"username"`
	CardID   uint            `json:"card_id"`
	Position string          `json:"position"`
	Amount   decimal.Decimal `json:"amount"`
	Pattern  string          `json:"pattern"`
	AutoPlay bool            `json:"auto_play"`
}

type StatusPayload struct {
	GameID uint              `json:"game_id"`
	Status models.GameStatus `json:"status"`
}

type ChatPayload struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type NotificationPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
