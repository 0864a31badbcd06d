package services

import (
	"sync"

	"github.com/cartela-live/backend/models"
	"github.com/cartela-live/backend/monitoring"
)

// Participant is the verified identity a transport hands us. Credentials
// were checked upstream; only domain rules apply here.
type Participant struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

func (p Participant) IsAdmin() bool {
	return p.Role == models.AdminRole
}

// Subscriber is one connected participant. Send is best-effort and must
// never block; a false return means the event was dropped.
type Subscriber interface {
	Key() string
	Participant() Participant
	Send(ev Event) bool
}

// Room is the ephemeral subscriber set for one game. It is an index over
// live connections, not an owner of participant lifetime: created on
// first join, discarded when empty, rebuilt from nothing on restart.
type Room struct {
	gameID uint
	mu     sync.RWMutex
	subs   map[string]Subscriber
}

func newRoom(gameID uint) *Room {
	return &Room{gameID: gameID, subs: make(map[string]Subscriber)}
}

func (r *Room) add(s Subscriber) {
	r.mu.Lock()
	r.subs[s.Key()] = s
	r.mu.Unlock()
}

// remove reports whether the subscriber was present and whether the room
// is now empty.
func (r *Room) remove(key string) (present, empty bool) {
	r.mu.Lock()
	_, present = r.subs[key]
	delete(r.subs, key)
	empty = len(r.subs) == 0
	r.mu.Unlock()
	return present, empty
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Broadcast sends to every subscriber, optionally excluding one
// connection (arrival/departure notices skip the subject).
func (r *Room) Broadcast(ev Event, except string) {
	r.mu.RLock()
	targets := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	monitoring.BroadcastEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	for _, s := range targets {
		if s.Key() == except {
			continue
		}
		if !s.Send(ev) {
			monitoring.DroppedSendsTotal.Inc()
		}
	}
}

// SendToUser delivers an event to every connection a participant holds in
// this room.
func (r *Room) SendToUser(userID uint, ev Event) {
	r.mu.RLock()
	targets := make([]Subscriber, 0, 1)
	for _, s := range r.subs {
		if s.Participant().ID == userID {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if !s.Send(ev) {
			monitoring.DroppedSendsTotal.Inc()
		}
	}
}
