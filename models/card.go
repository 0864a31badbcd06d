package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardWinner  CardStatus = "winner"
	CardExpired CardStatus = "expired"
)

var (
	ErrNumberNotOnCard = errors.New("number not on this card")
	ErrCardNotActive   = errors.New("card is not active")
)

// CardNumbers holds the five column groups of a cartela. N carries only
// four values, the center cell is permanently free.
type CardNumbers struct {
	B []int `json:"B"`
	I []int `json:"I"`
	N []int `json:"N"`
	G []int `json:"G"`
	O []int `json:"O"`
}

// All returns the 24 playable numbers in column order.
func (n CardNumbers) All() []int {
	out := make([]int, 0, 24)
	out = append(out, n.B...)
	out = append(out, n.I...)
	out = append(out, n.N...)
	out = append(out, n.G...)
	out = append(out, n.O...)
	return out
}

func (n CardNumbers) Contains(v int) bool {
	for _, c := range [][]int{n.B, n.I, n.N, n.G, n.O} {
		for _, x := range c {
			if x == v {
				return true
			}
		}
	}
	return false
}

// WinningDetails is set exactly once, when the card is declared a winner.
type WinningDetails struct {
	Position   string          `json:"position"`
	Amount     decimal.Decimal `json:"amount"`
	Pattern    string          `json:"pattern"`
	Numbers    []int           `json:"numbers"`
	VerifiedAt *time.Time      `json:"verified_at"`
}

// Card is a player's cartela for one game, persisted as an atomic document.
type Card struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PublicID      uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"public_id"`
	GameID        uint            `gorm:"index" json:"game_id"`
	UserID        uint            `gorm:"index" json:"user_id"`
	Numbers       CardNumbers     `gorm:"serializer:json" json:"numbers"`
	Marked        []int           `gorm:"serializer:json" json:"marked"`
	Status        CardStatus      `gorm:"index" json:"status"`
	AutoPlay      bool            `json:"auto_play"`
	PurchasePrice decimal.Decimal `gorm:"type:numeric" json:"purchase_price"`
	Winning       WinningDetails  `gorm:"serializer:json" json:"winning"`
	PurchasedAt   time.Time       `json:"purchased_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (c *Card) IsMarked(n int) bool {
	for _, m := range c.Marked {
		if m == n {
			return true
		}
	}
	return false
}

// MarkedSet exposes the marked numbers as a set for pattern evaluation.
func (c *Card) MarkedSet() map[int]bool {
	set := make(map[int]bool, len(c.Marked))
	for _, m := range c.Marked {
		set[m] = true
	}
	return set
}

// Mark adds n to the marked set. Marking an already-marked number is a
// no-op, not an error, which is what makes auto-play reconciliation safe
// under concurrent draws. Returns whether the set actually grew.
func (c *Card) Mark(n int) (bool, error) {
	if !c.Numbers.Contains(n) {
		return false, ErrNumberNotOnCard
	}
	if c.IsMarked(n) {
		return false, nil
	}
	c.Marked = append(c.Marked, n)
	return true, nil
}

// Grid lays the card out as a 5x5 matrix in row-major order, columns
// B..O left to right. The free center cell holds zero.
func (c *Card) Grid() [5][5]int {
	var grid [5][5]int
	cols := [][]int{c.Numbers.B, c.Numbers.I, c.Numbers.N, c.Numbers.G, c.Numbers.O}
	for col, nums := range cols {
		for row := 0; row < 5; row++ {
			if col == 2 {
				// N column: center free, lower rows shift up one slot.
				if row == 2 {
					continue
				}
				i := row
				if row > 2 {
					i = row - 1
				}
				if i < len(nums) {
					grid[row][col] = nums[i]
				}
				continue
			}
			if row < len(nums) {
				grid[row][col] = nums[row]
			}
		}
	}
	return grid
}

// DeclareWinner is the one-shot terminal transition. Declaring twice is an
// error so a duplicate payout can never ride on the second call.
func (c *Card) DeclareWinner(position string, amount decimal.Decimal, pattern string, numbers []int) error {
	if c.Status != CardActive {
		return ErrCardNotActive
	}
	now := time.Now()
	c.Status = CardWinner
	c.Winning = WinningDetails{
		Position:   position,
		Amount:     amount,
		Pattern:    pattern,
		Numbers:    numbers,
		VerifiedAt: &now,
	}
	return nil
}

// Expire retires a card that did not win, or that was cancelled before the
// game started.
func (c *Card) Expire() {
	if c.Status == CardActive {
		c.Status = CardExpired
	}
}
