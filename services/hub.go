package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cartela-live/backend/game"
	"github.com/cartela-live/backend/models"
	"github.com/cartela-live/backend/monitoring"
)

var ErrNoCardForGame = errors.New("participant holds no card for this game")

// Hub maps each live game to its subscriber room and turns authoritative
// game mutations into multicasts. It is the process-wide broadcast
// service: created once at startup, shut down explicitly.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uint]*Room
	registry *game.Registry
	store    game.Store
	log      *zap.SugaredLogger
	closed   bool
}

func NewHub(registry *game.Registry, store game.Store, log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:    make(map[uint]*Room),
		registry: registry,
		store:    store,
		log:      log,
	}
}

// Join adds a participant to a game's room. Non-admin participants must
// hold at least one card for the game. The joiner gets the authoritative
// snapshot; everyone else gets an arrival notice.
func (h *Hub) Join(ctx context.Context, gameID uint, sub Subscriber) error {
	p := sub.Participant()
	if !p.IsAdmin() {
		count, err := h.store.CountUserCards(ctx, gameID, p.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNoCardForGame
		}
	}

	inst, err := h.registry.Instance(ctx, gameID)
	if err != nil {
		return err
	}
	cards, err := h.store.UserCards(ctx, gameID, p.ID)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return game.ErrRegistryClosed
	}
	room, ok := h.rooms[gameID]
	if !ok {
		room = newRoom(gameID)
		h.rooms[gameID] = room
	}
	room.add(sub)
	h.mu.Unlock()

	// Rejoiners rely on this snapshot, never on missed broadcasts.
	sub.Send(NewEvent(EventJoinedGame, JoinedGamePayload{Game: inst.Game(), Cards: cards}))
	room.Broadcast(NewEvent(EventPlayerJoined, PresencePayload{UserID: p.ID, Username: p.Username}), sub.Key())

	h.log.Debugw("participant joined room", "game_id", gameID, "user_id", p.ID, "room_size", room.size())
	return nil
}

// Leave removes a participant from one room, discarding the room when it
// empties.
func (h *Hub) Leave(gameID uint, sub Subscriber) {
	h.mu.Lock()
	room, ok := h.rooms[gameID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.depart(gameID, room, sub)
}

// Disconnect is the implicit leave: it sweeps the participant out of every
// room. Transports call it when a connection dies for any reason.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.RLock()
	rooms := make(map[uint]*Room, len(h.rooms))
	for id, r := range h.rooms {
		rooms[id] = r
	}
	h.mu.RUnlock()

	for gameID, room := range rooms {
		h.depart(gameID, room, sub)
	}
}

func (h *Hub) depart(gameID uint, room *Room, sub Subscriber) {
	present, empty := room.remove(sub.Key())
	if !present {
		return
	}
	if empty {
		h.mu.Lock()
		// Re-check under the hub lock: someone may have joined in between.
		if room.size() == 0 {
			delete(h.rooms, gameID)
		}
		h.mu.Unlock()
	}
	p := sub.Participant()
	room.Broadcast(NewEvent(EventPlayerLeft, PresencePayload{UserID: p.ID, Username: p.Username}), sub.Key())
	h.log.Debugw("participant left room", "game_id", gameID, "user_id", p.ID)
}

// Draw is the single serialization point for a draw's side effects: the
// engine mutation, the room broadcast, and the auto-play reconciliation
// all complete before it returns.
func (h *Hub) Draw(ctx context.Context, gameID uint, n int) (models.Draw, error) {
	inst, err := h.registry.Instance(ctx, gameID)
	if err != nil {
		return models.Draw{}, err
	}
	draw, err := inst.Draw(ctx, n)
	if err != nil {
		return models.Draw{}, err
	}
	monitoring.DrawsTotal.Inc()

	if room := h.room(gameID); room != nil {
		room.Broadcast(NewEvent(EventNumberDrawn, DrawPayload{
			Number:     draw.Number,
			Letter:     draw.Letter,
			Sequence:   draw.Sequence,
			TotalDrawn: draw.Sequence,
		}), "")
	}

	h.reconcile(ctx, gameID, inst, draw)
	return draw, nil
}

// reconcile marks the drawn number on every eligible auto-play card,
// exactly once per card, re-running pattern verification for each. Cards
// fan out in parallel; each mark is atomic under the game instance lock.
func (h *Hub) reconcile(ctx context.Context, gameID uint, inst *game.Instance, draw models.Draw) {
	cards, err := h.store.AutoPlayCards(ctx, gameID)
	if err != nil {
		h.log.Errorw("auto-play reconciliation skipped", "game_id", gameID, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, card := range cards {
		if !card.Numbers.Contains(draw.Number) || card.IsMarked(draw.Number) {
			continue
		}
		wg.Add(1)
		go func(cardID uint) {
			defer wg.Done()
			h.autoMark(ctx, gameID, inst, cardID, draw.Number)
		}(card.ID)
	}
	wg.Wait()
}

func (h *Hub) autoMark(ctx context.Context, gameID uint, inst *game.Instance, cardID uint, n int) {
	outcome, err := inst.AutoMark(ctx, cardID, n)

	// A ConsistencyError with an outcome means the win stood and only the
	// payout needs a retry. Without an outcome the winner itself failed to
	// persist, which is a real failure.
	var consistency *game.ConsistencyError
	if errors.As(err, &consistency) && outcome != nil {
		h.log.Errorw("payout needs retry", "game_id", gameID, "card_id", cardID, "error", err)
		err = nil
	}
	if err != nil {
		h.log.Errorw("auto-mark failed", "game_id", gameID, "card_id", cardID, "number", n, "error", err)
		return
	}
	if outcome == nil {
		return
	}
	monitoring.AutoMarksTotal.Inc()

	room := h.room(gameID)
	if room != nil {
		room.SendToUser(outcome.Card.UserID, NewEvent(EventNotification, NotificationPayload{
			Kind:    "number_auto_marked",
			Message: "number auto-marked on your cartela",
			Data: MarkPayload{
				CardID: outcome.Card.ID,
				Number: n,
				Marked: outcome.Card.Marked,
				Winner: outcome.Winner != nil,
			},
		}))
	}

	if outcome.Winner != nil {
		h.announceWinner(gameID, outcome, true)
	}
}

func (h *Hub) announceWinner(gameID uint, outcome *game.MarkOutcome, autoPlay bool) {
	monitoring.WinnersTotal.Inc()
	room := h.room(gameID)
	if room == nil {
		return
	}
	username := ""
	if user, err := h.store.GetUser(context.Background(), outcome.Winner.UserID); err == nil {
		username = user.Username
	}
	room.Broadcast(NewEvent(EventWinner, WinnerPayload{
		UserID:   outcome.Winner.UserID,
		Username: username,
		CardID:   outcome.Winner.CardID,
		Position: outcome.Winner.Position,
		Amount:   outcome.Winner.Amount,
		Pattern:  outcome.Winner.Pattern,
		AutoPlay: autoPlay,
	}), "")
}

// MarkNumber handles a participant manually marking a drawn number on
// their own card over the live channel.
func (h *Hub) MarkNumber(ctx context.Context, sub Subscriber, cardID uint, n int) {
	card, err := h.store.GetCard(ctx, cardID)
	if err != nil {
		sub.Send(NewEvent(EventError, ErrorPayload{Message: "card not found"}))
		return
	}
	inst, err := h.registry.Instance(ctx, card.GameID)
	if err != nil {
		sub.Send(NewEvent(EventError, ErrorPayload{Message: "game not found"}))
		return
	}

	outcome, err := inst.MarkCard(ctx, cardID, sub.Participant().ID, n)

	// Only a payout-side ConsistencyError carries an outcome; a failed
	// winner persistence does not, and surfaces as an error.
	var consistency *game.ConsistencyError
	if errors.As(err, &consistency) && outcome != nil {
		h.log.Errorw("payout needs retry", "game_id", card.GameID, "card_id", cardID, "error", err)
		err = nil
	}
	if err != nil {
		sub.Send(NewEvent(EventError, ErrorPayload{Message: err.Error()}))
		return
	}

	sub.Send(NewEvent(EventNumberMarked, MarkPayload{
		CardID:  outcome.Card.ID,
		Number:  n,
		Marked:  outcome.Card.Marked,
		Winner:  outcome.Winner != nil,
		Already: outcome.Already,
	}))
	if outcome.Winner != nil {
		h.announceWinner(card.GameID, outcome, false)
	}
}

// Chat relays a room-scoped message to everyone in the room, sender
// included. Empty messages are dropped.
func (h *Hub) Chat(gameID uint, sub Subscriber, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	room := h.room(gameID)
	if room == nil {
		return
	}
	p := sub.Participant()
	room.Broadcast(NewEvent(EventChat, ChatPayload{
		UserID:   p.ID,
		Username: p.Username,
		Message:  message,
	}), "")
}

// BroadcastStatus tells a room about a lifecycle change.
func (h *Hub) BroadcastStatus(gameID uint, status models.GameStatus) {
	if room := h.room(gameID); room != nil {
		room.Broadcast(NewEvent(EventGameStatus, StatusPayload{GameID: gameID, Status: status}), "")
	}
}

// RoomSize reports the connected participant count for a game.
func (h *Hub) RoomSize(gameID uint) int {
	if room := h.room(gameID); room != nil {
		return room.size()
	}
	return 0
}

func (h *Hub) room(gameID uint) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[gameID]
}

// Shutdown drops all rooms. Membership is not durable; transports close
// their own connections.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.rooms = make(map[uint]*Room)
	h.mu.Unlock()
	h.log.Info("broadcast hub shut down")
}
