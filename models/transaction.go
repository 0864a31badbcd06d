package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionType string

const (
	PurchaseTransaction TransactionType = "purchase"
	RefundTransaction   TransactionType = "refund"
	PayoutTransaction   TransactionType = "prize_payout"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the financial ledger record written once per purchase,
// refund or verified payout. The engine treats the write as
// fire-and-confirm; a failure surfaces as a consistency error upstream.
type Transaction struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	PublicID    uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"public_id"`
	UserID      uint              `gorm:"index" json:"user_id"`
	GameID      uint              `gorm:"index" json:"game_id"`
	CardID      *uint             `gorm:"index" json:"card_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `gorm:"type:numeric" json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	Metadata    datatypes.JSON    `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}
