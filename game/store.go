package game

import (
	"context"

	"github.com/cartela-live/backend/models"
)

// Store is the persistent-store collaborator. Game and Card records are
// read and written as atomic documents; the engine never assumes
// transactions spanning more than one of them.
type Store interface {
	SaveGame(ctx context.Context, g *models.Game) error
	GetGame(ctx context.Context, id uint) (*models.Game, error)
	ActiveGames(ctx context.Context) ([]models.Game, error)

	CreateCards(ctx context.Context, cards []*models.Card) error
	SaveCard(ctx context.Context, c *models.Card) error
	GetCard(ctx context.Context, id uint) (*models.Card, error)
	UserCards(ctx context.Context, gameID, userID uint) ([]*models.Card, error)
	AutoPlayCards(ctx context.Context, gameID uint) ([]*models.Card, error)
	CountGameCards(ctx context.Context, gameID uint) (int64, error)
	CountUserCards(ctx context.Context, gameID, userID uint) (int64, error)
	CountGamePlayers(ctx context.Context, gameID uint) (int64, error)

	GetUser(ctx context.Context, id uint) (*models.User, error)
}

// Ledger records financial side effects. One call per purchase, refund or
// verified payout; failures surface as ConsistencyError upstream, the
// domain mutation they follow is never rolled back.
type Ledger interface {
	Record(ctx context.Context, t *models.Transaction) error
}
