package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GameStatus string

const (
	GameWaiting   GameStatus = "waiting"
	GameActive    GameStatus = "active"
	GamePaused    GameStatus = "paused"
	GameFinished  GameStatus = "finished"
	GameCancelled GameStatus = "cancelled"
)

type GameType string

const (
	TraditionalGame GameType = "traditional"
	SpeedGame       GameType = "speed"
	PatternGame     GameType = "pattern"
	BlackoutGame    GameType = "blackout"
)

var (
	ErrInvalidNumber = errors.New("bingo number must be between 1 and 75")
	ErrDuplicateDraw = errors.New("number already drawn")
	ErrNoCardsSold   = errors.New("cannot start a game with no cards sold")
)

// InvalidTransitionError reports a lifecycle action attempted from the
// wrong game status.
type InvalidTransitionError struct {
	Action string
	Status GameStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s game while %s", e.Action, e.Status)
}

// Draw is one revealed number. Immutable once appended to the history.
type Draw struct {
	Number   int       `json:"number"`
	Letter   string    `json:"letter"`
	Sequence int       `json:"sequence"`
	DrawnAt  time.Time `json:"drawn_at"`
}

// Prize is one configured payout position. Amount is recomputed from the
// pool whenever the pool or the percentage changes.
type Prize struct {
	Position   string          `json:"position"` // 1st | 2nd | 3rd | consolation
	Percentage float64         `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// Winner is one verified win appended to the game ledger.
type Winner struct {
	UserID     uint            `json:"user_id"`
	CardID     uint            `json:"card_id"`
	Position   string          `json:"position"`
	Amount     decimal.Decimal `json:"amount"`
	Pattern    string          `json:"pattern"`
	Numbers    []int           `json:"numbers"`
	VerifiedAt time.Time       `json:"verified_at"`
}

type GameSettings struct {
	AutoCallIntervalMS int  `json:"auto_call_interval_ms"`
	AllowLateBuying    bool `json:"allow_late_buying"`
	MaxCardsPerPlayer  int  `json:"max_cards_per_player"`
}

type GameStats struct {
	CardsSold          int             `json:"cards_sold"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	TotalPrizesAwarded decimal.Decimal `json:"total_prizes_awarded"`
	HouseProfit        decimal.Decimal `json:"house_profit"`
}

// Game is the authoritative record for one bingo game. It is persisted as
// an atomic document: draws, prizes, winners and settings travel inside the
// row as JSON columns.
type Game struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PublicID    uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"public_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        GameType        `json:"type"`
	Status      GameStatus      `gorm:"index" json:"status"`
	Pattern     string          `json:"pattern"` // winning pattern name
	MaxPlayers  int             `json:"max_players"`
	CardPrice   decimal.Decimal `gorm:"type:numeric" json:"card_price"`
	PrizePool   decimal.Decimal `gorm:"type:numeric" json:"prize_pool"`
	Prizes      []Prize         `gorm:"serializer:json" json:"prizes"`
	Draws       []Draw          `gorm:"serializer:json" json:"draws"`
	Winners     []Winner        `gorm:"serializer:json" json:"winners"`
	Settings    GameSettings    `gorm:"serializer:json" json:"settings"`
	Stats       GameStats       `gorm:"serializer:json" json:"stats"`
	OperatorID  uint            `gorm:"index" json:"operator_id"`
	ScheduledAt *time.Time      `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at"`
	DurationMin *int            `json:"duration_min"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BallLetter derives the column letter for a drawn number.
func BallLetter(n int) (string, error) {
	switch {
	case n >= 1 && n <= 15:
		return "B", nil
	case n >= 16 && n <= 30:
		return "I", nil
	case n >= 31 && n <= 45:
		return "N", nil
	case n >= 46 && n <= 60:
		return "G", nil
	case n >= 61 && n <= 75:
		return "O", nil
	default:
		return "", ErrInvalidNumber
	}
}

// DefaultPrizes is the payout split used when a game is created without one.
func DefaultPrizes() []Prize {
	return []Prize{
		{Position: "1st", Percentage: 50},
		{Position: "2nd", Percentage: 30},
		{Position: "3rd", Percentage: 15},
		{Position: "consolation", Percentage: 5},
	}
}

func (g *Game) HasDrawn(n int) bool {
	for _, d := range g.Draws {
		if d.Number == n {
			return true
		}
	}
	return false
}

// DrawNumber appends a number to the draw history. Only legal while the
// game is active; duplicates and out-of-range numbers are rejected with no
// state change.
func (g *Game) DrawNumber(n int) (Draw, error) {
	if g.Status != GameActive {
		return Draw{}, &InvalidTransitionError{Action: "draw in", Status: g.Status}
	}
	letter, err := BallLetter(n)
	if err != nil {
		return Draw{}, err
	}
	if g.HasDrawn(n) {
		return Draw{}, ErrDuplicateDraw
	}

	draw := Draw{
		Number:   n,
		Letter:   letter,
		Sequence: len(g.Draws) + 1,
		DrawnAt:  time.Now(),
	}
	g.Draws = append(g.Draws, draw)
	return draw, nil
}

// Start moves waiting -> active. The caller owns the cards-sold guard; the
// document only knows its own status.
func (g *Game) Start() error {
	if g.Status != GameWaiting {
		return &InvalidTransitionError{Action: "start", Status: g.Status}
	}
	now := time.Now()
	g.Status = GameActive
	g.StartedAt = &now
	return nil
}

func (g *Game) Pause() error {
	if g.Status != GameActive {
		return &InvalidTransitionError{Action: "pause", Status: g.Status}
	}
	g.Status = GamePaused
	return nil
}

func (g *Game) Resume() error {
	if g.Status != GamePaused {
		return &InvalidTransitionError{Action: "resume", Status: g.Status}
	}
	g.Status = GameActive
	return nil
}

// End moves active/paused -> finished and stamps the elapsed duration.
// Duration stays nil if the game never actually started.
func (g *Game) End() error {
	if g.Status != GameActive && g.Status != GamePaused {
		return &InvalidTransitionError{Action: "end", Status: g.Status}
	}
	now := time.Now()
	g.Status = GameFinished
	g.EndedAt = &now
	if g.StartedAt != nil {
		minutes := int(now.Sub(*g.StartedAt) / time.Minute)
		g.DurationMin = &minutes
	}
	return nil
}

func (g *Game) Cancel() error {
	if g.Status != GameWaiting {
		return &InvalidTransitionError{Action: "cancel", Status: g.Status}
	}
	g.Status = GameCancelled
	return nil
}

// RecalculatePrizes redistributes the pool across the configured positions.
// Must run under the same lock as the pool mutation that triggered it.
func (g *Game) RecalculatePrizes() {
	hundred := decimal.NewFromInt(100)
	for i := range g.Prizes {
		pct := decimal.NewFromFloat(g.Prizes[i].Percentage)
		g.Prizes[i].Amount = g.PrizePool.Mul(pct).Div(hundred)
	}
}

// ApplyPurchase accounts for qty cards sold at the configured price and
// returns the total charged.
func (g *Game) ApplyPurchase(qty int) decimal.Decimal {
	total := g.CardPrice.Mul(decimal.NewFromInt(int64(qty)))
	g.PrizePool = g.PrizePool.Add(total)
	g.Stats.CardsSold += qty
	g.Stats.TotalRevenue = g.Stats.TotalRevenue.Add(total)
	g.recalcProfit()
	g.RecalculatePrizes()
	return total
}

// ApplyCancellation backs one card's price out of the pool and revenue.
func (g *Game) ApplyCancellation(price decimal.Decimal) {
	g.PrizePool = g.PrizePool.Sub(price)
	if g.PrizePool.IsNegative() {
		g.PrizePool = decimal.Zero
	}
	g.Stats.CardsSold--
	g.Stats.TotalRevenue = g.Stats.TotalRevenue.Sub(price)
	g.recalcProfit()
	g.RecalculatePrizes()
}

// NextPrizePosition returns the first configured position without a winner
// yet, falling back to consolation once all positions are taken.
func (g *Game) NextPrizePosition() (string, decimal.Decimal) {
	taken := make(map[string]int)
	for _, w := range g.Winners {
		taken[w.Position]++
	}
	for _, p := range g.Prizes {
		if p.Position != "consolation" && taken[p.Position] == 0 {
			return p.Position, p.Amount
		}
	}
	for _, p := range g.Prizes {
		if p.Position == "consolation" {
			return p.Position, p.Amount
		}
	}
	return "consolation", decimal.Zero
}

// AddWinner appends to the winner ledger and bumps the awarded total. It
// does not verify the pattern; verification happens before this is called
// so it can be replayed or audited independently.
func (g *Game) AddWinner(userID, cardID uint, position string, amount decimal.Decimal, pattern string, numbers []int) Winner {
	w := Winner{
		UserID:     userID,
		CardID:     cardID,
		Position:   position,
		Amount:     amount,
		Pattern:    pattern,
		Numbers:    numbers,
		VerifiedAt: time.Now(),
	}
	g.Winners = append(g.Winners, w)
	g.Stats.TotalPrizesAwarded = g.Stats.TotalPrizesAwarded.Add(amount)
	g.recalcProfit()
	return w
}

func (g *Game) recalcProfit() {
	g.Stats.HouseProfit = g.Stats.TotalRevenue.Sub(g.Stats.TotalPrizesAwarded)
}
