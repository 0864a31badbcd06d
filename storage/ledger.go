package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cartela-live/backend/models"
)

// Ledger writes financial transaction records. It stands in for the
// payment/transaction collaborator: one row per purchase, refund or
// payout, fire-and-confirm.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Record(ctx context.Context, t *models.Transaction) error {
	if t.PublicID == uuid.Nil {
		t.PublicID = uuid.New()
	}
	if t.Status == "" {
		t.Status = models.TransactionCompleted
	}
	return l.db.WithContext(ctx).Create(t).Error
}
