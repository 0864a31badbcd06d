package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/cartela-live/backend/models"
)

// Store is the gorm-backed implementation of the engine's persistence
// boundary. Game and Card rows are written whole, as atomic documents.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveGame(ctx context.Context, g *models.Game) error {
	return s.db.WithContext(ctx).Save(g).Error
}

func (s *Store) GetGame(ctx context.Context, id uint) (*models.Game, error) {
	var g models.Game
	if err := s.db.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) ActiveGames(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Where("status IN ?", []models.GameStatus{models.GameWaiting, models.GameActive, models.GamePaused}).
		Order("created_at DESC").
		Find(&games).Error
	return games, err
}

func (s *Store) CreateCards(ctx context.Context, cards []*models.Card) error {
	return s.db.WithContext(ctx).Create(cards).Error
}

func (s *Store) SaveCard(ctx context.Context, c *models.Card) error {
	return s.db.WithContext(ctx).Save(c).Error
}

func (s *Store) GetCard(ctx context.Context, id uint) (*models.Card, error) {
	var c models.Card
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) UserCards(ctx context.Context, gameID, userID uint) ([]*models.Card, error) {
	var cards []*models.Card
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND user_id = ?", gameID, userID).
		Order("purchased_at DESC").
		Find(&cards).Error
	return cards, err
}

func (s *Store) AutoPlayCards(ctx context.Context, gameID uint) ([]*models.Card, error) {
	var cards []*models.Card
	err := s.db.WithContext(ctx).
		Where("game_id = ? AND auto_play = ? AND status = ?", gameID, true, models.CardActive).
		Find(&cards).Error
	return cards, err
}

func (s *Store) CountGameCards(ctx context.Context, gameID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("game_id = ? AND status = ?", gameID, models.CardActive).
		Count(&count).Error
	return count, err
}

func (s *Store) CountUserCards(ctx context.Context, gameID, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("game_id = ? AND user_id = ? AND status = ?", gameID, userID, models.CardActive).
		Count(&count).Error
	return count, err
}

func (s *Store) CountGamePlayers(ctx context.Context, gameID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("game_id = ? AND status = ?", gameID, models.CardActive).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
