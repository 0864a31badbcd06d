package game

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/cartela-live/backend/models"
)

// memStore is an in-memory Store with gorm-like copy semantics: reads
// hand out clones, writes persist clones. Keeps engine tests honest
// about what is actually durable.
type memStore struct {
	mu         sync.Mutex
	games      map[uint]*models.Game
	cards      map[uint]*models.Card
	users      map[uint]*models.User
	lastGameID uint
	lastCardID uint

	// Test hooks, set before goroutines start.
	beforeGetCard func()
	saveGameErr   func(*models.Game) error
}

func newMemStore() *memStore {
	return &memStore{
		games: make(map[uint]*models.Game),
		cards: make(map[uint]*models.Card),
		users: make(map[uint]*models.User),
	}
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.Draws = append([]models.Draw(nil), g.Draws...)
	c.Prizes = append([]models.Prize(nil), g.Prizes...)
	c.Winners = append([]models.Winner(nil), g.Winners...)
	return &c
}

func cloneCard(c *models.Card) *models.Card {
	out := *c
	out.Marked = append([]int(nil), c.Marked...)
	return &out
}

func (s *memStore) SaveGame(_ context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveGameErr != nil {
		if err := s.saveGameErr(g); err != nil {
			return err
		}
	}
	if g.ID == 0 {
		s.lastGameID++
		g.ID = s.lastGameID
	}
	s.games[g.ID] = cloneGame(g)
	return nil
}

func (s *memStore) GetGame(_ context.Context, id uint) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneGame(g), nil
}

func (s *memStore) ActiveGames(_ context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Game
	for _, g := range s.games {
		switch g.Status {
		case models.GameWaiting, models.GameActive, models.GamePaused:
			out = append(out, *cloneGame(g))
		}
	}
	return out, nil
}

func (s *memStore) CreateCards(_ context.Context, cards []*models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cards {
		if c.ID == 0 {
			s.lastCardID++
			c.ID = s.lastCardID
		}
		s.cards[c.ID] = cloneCard(c)
	}
	return nil
}

func (s *memStore) SaveCard(_ context.Context, c *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.lastCardID++
		c.ID = s.lastCardID
	}
	s.cards[c.ID] = cloneCard(c)
	return nil
}

func (s *memStore) GetCard(_ context.Context, id uint) (*models.Card, error) {
	if s.beforeGetCard != nil {
		s.beforeGetCard()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneCard(c), nil
}

func (s *memStore) UserCards(_ context.Context, gameID, userID uint) ([]*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Card
	for _, c := range s.cards {
		if c.GameID == gameID && c.UserID == userID {
			out = append(out, cloneCard(c))
		}
	}
	return out, nil
}

func (s *memStore) AutoPlayCards(_ context.Context, gameID uint) ([]*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Card
	for _, c := range s.cards {
		if c.GameID == gameID && c.AutoPlay && c.Status == models.CardActive {
			out = append(out, cloneCard(c))
		}
	}
	return out, nil
}

func (s *memStore) CountGameCards(_ context.Context, gameID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, c := range s.cards {
		if c.GameID == gameID && c.Status == models.CardActive {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountUserCards(_ context.Context, gameID, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, c := range s.cards {
		if c.GameID == gameID && c.UserID == userID && c.Status == models.CardActive {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountGamePlayers(_ context.Context, gameID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make(map[uint]bool)
	for _, c := range s.cards {
		if c.GameID == gameID && c.Status == models.CardActive {
			players[c.UserID] = true
		}
	}
	return int64(len(players)), nil
}

func (s *memStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *u
	return &out, nil
}

// memLedger records transactions and can be told to fail per type.
type memLedger struct {
	mu        sync.Mutex
	records   []*models.Transaction
	failTypes map[models.TransactionType]bool
}

func newMemLedger() *memLedger {
	return &memLedger{failTypes: make(map[models.TransactionType]bool)}
}

func (l *memLedger) Record(_ context.Context, t *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failTypes[t.Type] {
		return errors.New("ledger unavailable")
	}
	l.records = append(l.records, t)
	return nil
}

func (l *memLedger) byType(tt models.TransactionType) []*models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*models.Transaction
	for _, r := range l.records {
		if r.Type == tt {
			out = append(out, r)
		}
	}
	return out
}
