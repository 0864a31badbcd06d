package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	PlayerRole   UserRole = "player"
	OperatorRole UserRole = "operator"
	AdminRole    UserRole = "admin"
)

// User is the minimal participant reference the engine needs. Credentials
// and profile data belong to the external auth service.
type User struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"uniqueIndex" json:"username"`
	Role      UserRole        `json:"role"`
	Balance   decimal.Decimal `gorm:"type:numeric" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
