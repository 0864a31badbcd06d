package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cartela-live/backend/models"
)

// CreateGameParams carries everything an operator supplies when opening a
// new game. Zero values fall back to the defaults the settings allow.
type CreateGameParams struct {
	Title       string
	Description string
	Type        models.GameType
	Pattern     string
	MaxPlayers  int
	CardPrice   decimal.Decimal
	Prizes      []models.Prize
	Settings    models.GameSettings
	OperatorID  uint
	ScheduledAt *time.Time
}

// Registry owns the live game instances. It is the single process-wide
// entry point for game mutations: one Instance per game identity, each
// with its own mutex, so draws on different games never contend.
type Registry struct {
	mu        sync.RWMutex
	instances map[uint]*Instance
	store     Store
	ledger    Ledger
	log       *zap.SugaredLogger
	closed    bool
}

func NewRegistry(store Store, ledger Ledger, log *zap.SugaredLogger) *Registry {
	return &Registry{
		instances: make(map[uint]*Instance),
		store:     store,
		ledger:    ledger,
		log:       log,
	}
}

// CreateGame persists a new waiting game and registers its instance.
func (r *Registry) CreateGame(ctx context.Context, p CreateGameParams) (*models.Game, error) {
	if p.Pattern == "" {
		p.Pattern = PatternFullHouse
	}
	if p.Type == "" {
		p.Type = models.TraditionalGame
	}
	if len(p.Prizes) == 0 {
		p.Prizes = models.DefaultPrizes()
	}
	if p.MaxPlayers <= 0 {
		p.MaxPlayers = 100
	}
	if p.Settings.MaxCardsPerPlayer <= 0 {
		p.Settings.MaxCardsPerPlayer = 10
	}
	if p.Settings.AutoCallIntervalMS <= 0 {
		p.Settings.AutoCallIntervalMS = 5000
	}

	g := &models.Game{
		PublicID:    uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		Type:        p.Type,
		Status:      models.GameWaiting,
		Pattern:     p.Pattern,
		MaxPlayers:  p.MaxPlayers,
		CardPrice:   p.CardPrice,
		PrizePool:   decimal.Zero,
		Prizes:      p.Prizes,
		Settings:    p.Settings,
		OperatorID:  p.OperatorID,
		ScheduledAt: p.ScheduledAt,
	}
	g.RecalculatePrizes()

	if err := r.store.SaveGame(ctx, g); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	r.instances[g.ID] = r.newInstance(g)
	r.log.Infow("game created", "game_id", g.ID, "pattern", g.Pattern, "price", g.CardPrice)
	return g, nil
}

// Instance returns the live handle for a game, loading it from the store
// on first use after a restart.
func (r *Registry) Instance(ctx context.Context, gameID uint) (*Instance, error) {
	r.mu.RLock()
	inst, ok := r.instances[gameID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrRegistryClosed
	}
	if ok {
		return inst, nil
	}

	g, err := r.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	// Someone else may have loaded it while we hit the store.
	if inst, ok := r.instances[gameID]; ok {
		return inst, nil
	}
	inst = r.newInstance(g)
	r.instances[gameID] = inst
	return inst, nil
}

// Release drops a finished or cancelled game's instance.
func (r *Registry) Release(gameID uint) {
	r.mu.Lock()
	delete(r.instances, gameID)
	r.mu.Unlock()
}

// Shutdown stops the registry. Live state is already durable in the
// store; instances are simply discarded.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.instances = make(map[uint]*Instance)
	r.mu.Unlock()
	r.log.Info("game registry shut down")
}

func (r *Registry) newInstance(g *models.Game) *Instance {
	return &Instance{game: g, store: r.store, ledger: r.ledger, log: r.log}
}

// Instance is the single-writer handle for one game. Every state mutation
// and the prize recomputation it triggers run under its mutex; ledger
// calls are issued after the mutation, outside the lock.
type Instance struct {
	mu     sync.Mutex
	game   *models.Game
	store  Store
	ledger Ledger
	log    *zap.SugaredLogger
}

// Game returns a consistent copy of the document for read-only use.
func (i *Instance) Game() models.Game {
	i.mu.Lock()
	defer i.mu.Unlock()
	g := *i.game
	g.Draws = append([]models.Draw(nil), i.game.Draws...)
	g.Prizes = append([]models.Prize(nil), i.game.Prizes...)
	g.Winners = append([]models.Winner(nil), i.game.Winners...)
	return g
}

func (i *Instance) ID() uint {
	return i.game.ID
}

// Start moves the game to active. Refused while no cards are sold. The
// count is read under the lock so a concurrent cancellation cannot slip
// between the check and the transition.
func (i *Instance) Start(ctx context.Context) (models.Game, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.game.Status == models.GameWaiting {
		count, err := i.store.CountGameCards(ctx, i.game.ID)
		if err != nil {
			return models.Game{}, err
		}
		if count == 0 {
			return models.Game{}, models.ErrNoCardsSold
		}
	}
	if err := i.game.Start(); err != nil {
		return models.Game{}, err
	}
	return i.persistLocked(ctx)
}

func (i *Instance) Pause(ctx context.Context) (models.Game, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.game.Pause(); err != nil {
		return models.Game{}, err
	}
	return i.persistLocked(ctx)
}

func (i *Instance) Resume(ctx context.Context) (models.Game, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.game.Resume(); err != nil {
		return models.Game{}, err
	}
	return i.persistLocked(ctx)
}

func (i *Instance) End(ctx context.Context) (models.Game, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.game.End(); err != nil {
		return models.Game{}, err
	}
	return i.persistLocked(ctx)
}

func (i *Instance) Cancel(ctx context.Context) (models.Game, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.game.Cancel(); err != nil {
		return models.Game{}, err
	}
	return i.persistLocked(ctx)
}

// Draw appends one number to the history. A draw either fully completes
// or is rejected by a guard; there is no partial application.
func (i *Instance) Draw(ctx context.Context, n int) (models.Draw, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	draw, err := i.game.DrawNumber(n)
	if err != nil {
		return models.Draw{}, err
	}
	if _, err := i.persistLocked(ctx); err != nil {
		return models.Draw{}, err
	}
	i.log.Debugw("number drawn", "game_id", i.game.ID, "number", draw.Number, "letter", draw.Letter, "sequence", draw.Sequence)
	return draw, nil
}

// PurchaseCards sells qty generated cards to a player. Purchases are open
// while the game is waiting, or while active when late buying is allowed.
// The returned cards are valid even when the error is a ConsistencyError
// (the ledger write failed after the sale committed).
func (i *Instance) PurchaseCards(ctx context.Context, userID uint, qty int, autoPlay bool) ([]*models.Card, error) {
	layouts := make([]models.CardNumbers, qty)
	for n := range layouts {
		layouts[n] = GenerateNumbers()
	}
	return i.purchase(ctx, userID, layouts, autoPlay)
}

// PurchaseCustomCard sells a single card with a caller-supplied layout,
// re-validated against the band and uniqueness rules.
func (i *Instance) PurchaseCustomCard(ctx context.Context, userID uint, numbers models.CardNumbers, autoPlay bool) (*models.Card, error) {
	if err := ValidateNumbers(numbers); err != nil {
		return nil, err
	}
	cards, err := i.purchase(ctx, userID, []models.CardNumbers{numbers}, autoPlay)
	if len(cards) == 0 {
		return nil, err
	}
	return cards[0], err
}

func (i *Instance) purchase(ctx context.Context, userID uint, layouts []models.CardNumbers, autoPlay bool) ([]*models.Card, error) {
	qty := len(layouts)
	if qty == 0 {
		return nil, nil
	}

	// The admission counts are read under the lock: two concurrent
	// purchases by the same player must not both pass the caps.
	i.mu.Lock()
	open := i.game.Status == models.GameWaiting ||
		(i.game.Status == models.GameActive && i.game.Settings.AllowLateBuying)
	if !open {
		i.mu.Unlock()
		return nil, ErrPurchaseClosed
	}
	owned, err := i.store.CountUserCards(ctx, i.game.ID, userID)
	if err != nil {
		i.mu.Unlock()
		return nil, err
	}
	if int(owned)+qty > i.game.Settings.MaxCardsPerPlayer {
		i.mu.Unlock()
		return nil, ErrCardLimitReached
	}
	if owned == 0 {
		players, err := i.store.CountGamePlayers(ctx, i.game.ID)
		if err != nil {
			i.mu.Unlock()
			return nil, err
		}
		if int(players) >= i.game.MaxPlayers {
			i.mu.Unlock()
			return nil, ErrGameFull
		}
	}

	now := time.Now()
	cards := make([]*models.Card, qty)
	for n, layout := range layouts {
		cards[n] = &models.Card{
			PublicID:      uuid.New(),
			GameID:        i.game.ID,
			UserID:        userID,
			Numbers:       layout,
			Status:        models.CardActive,
			AutoPlay:      autoPlay,
			PurchasePrice: i.game.CardPrice,
			PurchasedAt:   now,
		}
	}
	if err := i.store.CreateCards(ctx, cards); err != nil {
		i.mu.Unlock()
		return nil, err
	}

	total := i.game.ApplyPurchase(qty)
	if _, err := i.persistLocked(ctx); err != nil {
		i.mu.Unlock()
		return cards, err
	}
	gameID := i.game.ID
	i.mu.Unlock()

	tx := &models.Transaction{
		PublicID:    uuid.New(),
		UserID:      userID,
		GameID:      gameID,
		Type:        models.PurchaseTransaction,
		Amount:      total,
		Description: "cartela purchase",
		Status:      models.TransactionCompleted,
	}
	if err := i.ledger.Record(ctx, tx); err != nil {
		return cards, &ConsistencyError{Op: "purchase transaction", Err: err}
	}
	return cards, nil
}

// CancelCard refunds one card before the game starts. The card expires,
// the pool and prize amounts shrink accordingly. The card is read under
// the game lock so two cancellations can never both see it active and
// refund it twice.
func (i *Instance) CancelCard(ctx context.Context, cardID, userID uint, admin bool) error {
	i.mu.Lock()
	if i.game.Status != models.GameWaiting {
		i.mu.Unlock()
		return ErrCancelAfterStart
	}
	card, err := i.store.GetCard(ctx, cardID)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	if card.GameID != i.game.ID {
		i.mu.Unlock()
		return ErrWrongGame
	}
	if card.UserID != userID && !admin {
		i.mu.Unlock()
		return ErrNotCardOwner
	}
	if card.Status != models.CardActive {
		i.mu.Unlock()
		return models.ErrCardNotActive
	}

	card.Expire()
	if err := i.store.SaveCard(ctx, card); err != nil {
		i.mu.Unlock()
		return err
	}
	i.game.ApplyCancellation(card.PurchasePrice)
	if _, err := i.persistLocked(ctx); err != nil {
		i.mu.Unlock()
		return err
	}
	gameID := i.game.ID
	i.mu.Unlock()

	tx := &models.Transaction{
		PublicID:    uuid.New(),
		UserID:      card.UserID,
		GameID:      gameID,
		CardID:      &card.ID,
		Type:        models.RefundTransaction,
		Amount:      card.PurchasePrice,
		Description: "cartela cancellation refund",
		Status:      models.TransactionCompleted,
	}
	if err := i.ledger.Record(ctx, tx); err != nil {
		return &ConsistencyError{Op: "refund transaction", Err: err}
	}
	return nil
}

// MarkOutcome reports the effect of a mark on one card.
type MarkOutcome struct {
	Card    *models.Card
	Already bool
	Result  Result
	Winner  *models.Winner
}

// MarkCard handles a player manually marking a drawn number on their own
// card, then re-checks the winning pattern.
func (i *Instance) MarkCard(ctx context.Context, cardID, userID uint, n int) (*MarkOutcome, error) {
	i.mu.Lock()
	if i.game.Status != models.GameActive {
		status := i.game.Status
		i.mu.Unlock()
		return nil, &models.InvalidTransitionError{Action: "mark in", Status: status}
	}
	if !i.game.HasDrawn(n) {
		i.mu.Unlock()
		return nil, ErrNumberNotDrawn
	}

	card, err := i.store.GetCard(ctx, cardID)
	if err != nil {
		i.mu.Unlock()
		return nil, err
	}
	if card.GameID != i.game.ID {
		i.mu.Unlock()
		return nil, ErrWrongGame
	}
	if card.UserID != userID {
		i.mu.Unlock()
		return nil, ErrNotCardOwner
	}

	outcome, err := i.markLocked(ctx, card, n)
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return i.settleWin(ctx, outcome)
}

// AutoMark marks a freshly drawn number on an auto-play card during
// reconciliation. The card is reloaded under the game lock so the mark is
// atomic with respect to manual marks and concurrent draws.
func (i *Instance) AutoMark(ctx context.Context, cardID uint, n int) (*MarkOutcome, error) {
	i.mu.Lock()
	card, err := i.store.GetCard(ctx, cardID)
	if err != nil {
		i.mu.Unlock()
		return nil, err
	}
	if card.GameID != i.game.ID || card.Status != models.CardActive {
		i.mu.Unlock()
		return nil, nil
	}
	if !card.Numbers.Contains(n) || card.IsMarked(n) {
		i.mu.Unlock()
		return nil, nil
	}

	outcome, err := i.markLocked(ctx, card, n)
	i.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return i.settleWin(ctx, outcome)
}

// markLocked mutates the card and, on a winning evaluation, appends to the
// game's winner ledger. Caller holds i.mu. The external payout call is
// deliberately left to settleWin, outside the lock. A failed winner
// persistence returns a nil outcome with the error; only settleWin pairs
// a ConsistencyError with a usable outcome.
func (i *Instance) markLocked(ctx context.Context, card *models.Card, n int) (*MarkOutcome, error) {
	grew, err := card.Mark(n)
	if err != nil {
		return nil, err
	}
	if grew {
		if err := i.store.SaveCard(ctx, card); err != nil {
			return nil, err
		}
	}

	outcome := &MarkOutcome{Card: card, Already: !grew, Result: Evaluate(card, i.game.Pattern)}
	if !outcome.Result.Winner || card.Status != models.CardActive {
		return outcome, nil
	}

	position, amount := i.game.NextPrizePosition()
	if err := card.DeclareWinner(position, amount, i.game.Pattern, append([]int(nil), card.Marked...)); err != nil {
		return nil, err
	}
	w := i.game.AddWinner(card.UserID, card.ID, position, amount, i.game.Pattern, card.Winning.Numbers)

	// Ledger append before the external payout: safe to partially retry.
	if _, err := i.persistLocked(ctx); err != nil {
		return nil, err
	}
	if err := i.store.SaveCard(ctx, card); err != nil {
		return nil, err
	}
	outcome.Winner = &w
	i.log.Infow("winner verified",
		"game_id", i.game.ID, "card_id", card.ID, "user_id", card.UserID,
		"position", position, "amount", amount)
	return outcome, nil
}

// settleWin issues the payout transaction for a winning outcome. The win
// itself already committed; a ledger failure comes back as a
// ConsistencyError alongside the outcome so the caller can retry the
// financial side without re-declaring the winner.
func (i *Instance) settleWin(ctx context.Context, outcome *MarkOutcome) (*MarkOutcome, error) {
	if outcome == nil || outcome.Winner == nil {
		return outcome, nil
	}
	w := outcome.Winner
	tx := &models.Transaction{
		PublicID:    uuid.New(),
		UserID:      w.UserID,
		GameID:      i.game.ID,
		CardID:      &outcome.Card.ID,
		Type:        models.PayoutTransaction,
		Amount:      w.Amount,
		Description: "prize payout: " + w.Position,
		Status:      models.TransactionCompleted,
	}
	if err := i.ledger.Record(ctx, tx); err != nil {
		return outcome, &ConsistencyError{Op: "payout transaction", Err: err}
	}
	return outcome, nil
}

// persistLocked writes the game document. Caller holds i.mu. The document
// write stays inside the lock: reordering two saves would corrupt the
// draw history, and it is a single cheap row write.
func (i *Instance) persistLocked(ctx context.Context) (models.Game, error) {
	if err := i.store.SaveGame(ctx, i.game); err != nil {
		return *i.game, &ConsistencyError{Op: "game persistence", Err: err}
	}
	return *i.game, nil
}
