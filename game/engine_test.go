package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartela-live/backend/models"
)

func testEngine(t *testing.T) (*Registry, *memStore, *memLedger) {
	t.Helper()
	store := newMemStore()
	ledger := newMemLedger()
	return NewRegistry(store, ledger, zap.NewNop().Sugar()), store, ledger
}

func createTestGame(t *testing.T, r *Registry, p CreateGameParams) *Instance {
	t.Helper()
	g, err := r.CreateGame(context.Background(), p)
	require.NoError(t, err)
	inst, err := r.Instance(context.Background(), g.ID)
	require.NoError(t, err)
	return inst
}

func testLayout() models.CardNumbers {
	return models.CardNumbers{
		B: []int{1, 2, 3, 4, 5},
		I: []int{16, 17, 18, 19, 20},
		N: []int{31, 32, 33, 34},
		G: []int{46, 47, 48, 49, 50},
		O: []int{61, 62, 63, 64, 65},
	}
}

func TestCreateGameDefaults(t *testing.T) {
	r, _, _ := testEngine(t)
	g, err := r.CreateGame(context.Background(), CreateGameParams{Title: "evening game"})
	require.NoError(t, err)

	assert.Equal(t, models.GameWaiting, g.Status)
	assert.Equal(t, PatternFullHouse, g.Pattern)
	assert.Equal(t, models.TraditionalGame, g.Type)
	assert.Equal(t, 100, g.MaxPlayers)
	assert.Equal(t, 10, g.Settings.MaxCardsPerPlayer)
	assert.Equal(t, 5000, g.Settings.AutoCallIntervalMS)
	require.Len(t, g.Prizes, 4)
	assert.Equal(t, "1st", g.Prizes[0].Position)
}

func TestStartRequiresCardsSold(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	_, err := inst.Start(ctx)
	assert.ErrorIs(t, err, models.ErrNoCardsSold)

	_, err = inst.PurchaseCards(ctx, 7, 1, false)
	require.NoError(t, err)

	g, err := inst.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.GameActive, g.Status)
	assert.NotNil(t, g.StartedAt)
}

func TestDrawGuards(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	_, err := inst.Draw(ctx, 12)
	var transition *models.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, models.GameWaiting, transition.Status)

	_, err = inst.PurchaseCards(ctx, 7, 1, false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	_, err = inst.Draw(ctx, 0)
	assert.ErrorIs(t, err, models.ErrInvalidNumber)
	_, err = inst.Draw(ctx, 76)
	assert.ErrorIs(t, err, models.ErrInvalidNumber)

	draw, err := inst.Draw(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, "B", draw.Letter)
	assert.Equal(t, 1, draw.Sequence)

	_, err = inst.Draw(ctx, 12)
	assert.ErrorIs(t, err, models.ErrDuplicateDraw)

	draw, err = inst.Draw(ctx, 40)
	require.NoError(t, err)
	assert.Equal(t, "N", draw.Letter)
	assert.Equal(t, 2, draw.Sequence)
}

func TestPurchaseRecomputesPrizes(t *testing.T) {
	r, store, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	cards, err := inst.PurchaseCards(ctx, 7, 2, true)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	for _, c := range cards {
		assert.NoError(t, ValidateNumbers(c.Numbers))
		assert.True(t, c.AutoPlay)
		assert.True(t, c.PurchasePrice.Equal(decimal.NewFromInt(10)))
	}

	g := inst.Game()
	assert.True(t, g.PrizePool.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, 2, g.Stats.CardsSold)
	// 50% of a 20 pool.
	assert.True(t, g.Prizes[0].Amount.Equal(decimal.NewFromInt(10)))

	purchases := ledger.byType(models.PurchaseTransaction)
	require.Len(t, purchases, 1)
	assert.True(t, purchases[0].Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, uint(7), purchases[0].UserID)

	saved, err := store.GetGame(ctx, inst.ID())
	require.NoError(t, err)
	assert.True(t, saved.PrizePool.Equal(decimal.NewFromInt(20)))
}

func TestPurchaseGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("card limit per player", func(t *testing.T) {
		r, _, _ := testEngine(t)
		inst := createTestGame(t, r, CreateGameParams{
			CardPrice: decimal.NewFromInt(5),
			Settings:  models.GameSettings{MaxCardsPerPlayer: 2},
		})
		_, err := inst.PurchaseCards(ctx, 7, 3, false)
		assert.ErrorIs(t, err, ErrCardLimitReached)

		_, err = inst.PurchaseCards(ctx, 7, 2, false)
		require.NoError(t, err)
		_, err = inst.PurchaseCards(ctx, 7, 1, false)
		assert.ErrorIs(t, err, ErrCardLimitReached)
	})

	t.Run("max players", func(t *testing.T) {
		r, _, _ := testEngine(t)
		inst := createTestGame(t, r, CreateGameParams{
			CardPrice:  decimal.NewFromInt(5),
			MaxPlayers: 1,
		})
		_, err := inst.PurchaseCards(ctx, 7, 1, false)
		require.NoError(t, err)

		_, err = inst.PurchaseCards(ctx, 8, 1, false)
		assert.ErrorIs(t, err, ErrGameFull)

		// An existing player buying more is not a new seat.
		_, err = inst.PurchaseCards(ctx, 7, 1, false)
		assert.NoError(t, err)
	})

	t.Run("closed after start unless late buying", func(t *testing.T) {
		r, _, _ := testEngine(t)
		inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(5)})
		_, err := inst.PurchaseCards(ctx, 7, 1, false)
		require.NoError(t, err)
		_, err = inst.Start(ctx)
		require.NoError(t, err)

		_, err = inst.PurchaseCards(ctx, 8, 1, false)
		assert.ErrorIs(t, err, ErrPurchaseClosed)
	})

	t.Run("late buying keeps purchases open while active", func(t *testing.T) {
		r, _, _ := testEngine(t)
		inst := createTestGame(t, r, CreateGameParams{
			CardPrice: decimal.NewFromInt(5),
			Settings:  models.GameSettings{AllowLateBuying: true},
		})
		_, err := inst.PurchaseCards(ctx, 7, 1, false)
		require.NoError(t, err)
		_, err = inst.Start(ctx)
		require.NoError(t, err)

		_, err = inst.PurchaseCards(ctx, 8, 1, false)
		assert.NoError(t, err)

		_, err = inst.Pause(ctx)
		require.NoError(t, err)
		_, err = inst.PurchaseCards(ctx, 9, 1, false)
		assert.ErrorIs(t, err, ErrPurchaseClosed)
	})
}

func TestPurchaseCustomCardValidatesLayout(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(5)})
	ctx := context.Background()

	bad := testLayout()
	bad.I = []int{16, 17, 18, 19, 42} // outside the I band
	_, err := inst.PurchaseCustomCard(ctx, 7, bad, false)
	var layout *InvalidCardLayoutError
	require.ErrorAs(t, err, &layout)
	assert.Equal(t, "I", layout.Column)

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, card.Numbers.B)
}

func TestCancelCardRefunds(t *testing.T) {
	r, store, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	cards, err := inst.PurchaseCards(ctx, 7, 2, false)
	require.NoError(t, err)

	err = inst.CancelCard(ctx, cards[0].ID, 8, false)
	assert.ErrorIs(t, err, ErrNotCardOwner)

	require.NoError(t, inst.CancelCard(ctx, cards[0].ID, 7, false))

	cancelled, err := store.GetCard(ctx, cards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardExpired, cancelled.Status)

	g := inst.Game()
	assert.True(t, g.PrizePool.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 1, g.Stats.CardsSold)

	refunds := ledger.byType(models.RefundTransaction)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(decimal.NewFromInt(10)))

	// Cancelling twice hits the already-expired card.
	err = inst.CancelCard(ctx, cards[0].ID, 7, false)
	assert.ErrorIs(t, err, models.ErrCardNotActive)

	// An admin may cancel on a player's behalf.
	require.NoError(t, inst.CancelCard(ctx, cards[1].ID, 99, true))
}

func TestCancelCardRefusedAfterStart(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	cards, err := inst.PurchaseCards(ctx, 7, 1, false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	err = inst.CancelCard(ctx, cards[0].ID, 7, false)
	assert.ErrorIs(t, err, ErrCancelAfterStart)
}

func TestMarkCardGuards(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternFullHouse,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)

	_, err = inst.MarkCard(ctx, card.ID, 7, 1)
	var transition *models.InvalidTransitionError
	assert.ErrorAs(t, err, &transition)

	_, err = inst.Start(ctx)
	require.NoError(t, err)

	_, err = inst.MarkCard(ctx, card.ID, 7, 1)
	assert.ErrorIs(t, err, ErrNumberNotDrawn)

	_, err = inst.Draw(ctx, 1)
	require.NoError(t, err)

	_, err = inst.MarkCard(ctx, card.ID, 8, 1)
	assert.ErrorIs(t, err, ErrNotCardOwner)

	out, err := inst.MarkCard(ctx, card.ID, 7, 1)
	require.NoError(t, err)
	assert.False(t, out.Already)
	assert.False(t, out.Result.Winner)
	assert.True(t, out.Card.IsMarked(1))

	// Re-marking the same number is a no-op, not an error.
	out, err = inst.MarkCard(ctx, card.ID, 7, 1)
	require.NoError(t, err)
	assert.True(t, out.Already)

	// Drawn but absent from the card.
	_, err = inst.Draw(ctx, 15)
	require.NoError(t, err)
	_, err = inst.MarkCard(ctx, card.ID, 7, 15)
	assert.ErrorIs(t, err, models.ErrNumberNotOnCard)
}

func TestWinnerFlow(t *testing.T) {
	r, store, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternLine,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)
	_, err = inst.PurchaseCards(ctx, 8, 1, false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	// Complete the B column: the fifth mark wins a vertical line.
	var out *MarkOutcome
	for _, n := range []int{1, 2, 3, 4, 5} {
		_, err = inst.Draw(ctx, n)
		require.NoError(t, err)
		out, err = inst.MarkCard(ctx, card.ID, 7, n)
		require.NoError(t, err)
	}

	require.True(t, out.Result.Winner)
	assert.Equal(t, "vertical_line", out.Result.Variant)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "1st", out.Winner.Position)
	// 50% of the 20 pool.
	assert.True(t, out.Winner.Amount.Equal(decimal.NewFromInt(10)))

	g := inst.Game()
	require.Len(t, g.Winners, 1)
	assert.True(t, g.Stats.TotalPrizesAwarded.Equal(decimal.NewFromInt(10)))
	assert.True(t, g.Stats.HouseProfit.Equal(decimal.NewFromInt(10)))

	won, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardWinner, won.Status)
	assert.Equal(t, "1st", won.Winning.Position)

	payouts := ledger.byType(models.PayoutTransaction)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, payouts[0].CardID)
	assert.Equal(t, card.ID, *payouts[0].CardID)
}

func TestWonCardDoesNotWinTwice(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternLine,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	for _, n := range []int{1, 2, 3, 4, 5, 16} {
		_, err = inst.Draw(ctx, n)
		require.NoError(t, err)
		_, err = inst.MarkCard(ctx, card.ID, 7, n)
		require.NoError(t, err)
	}

	require.Len(t, inst.Game().Winners, 1)
}

func TestPayoutLedgerFailureIsConsistencyError(t *testing.T) {
	r, _, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternLine,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	ledger.failTypes[models.PayoutTransaction] = true

	var out *MarkOutcome
	for _, n := range []int{1, 2, 3, 4, 5} {
		_, err = inst.Draw(ctx, n)
		require.NoError(t, err)
		out, err = inst.MarkCard(ctx, card.ID, 7, n)
	}

	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, "payout transaction", consistency.Op)

	// The win itself committed; only the payout side effect needs a retry.
	require.NotNil(t, out)
	require.NotNil(t, out.Winner)
	assert.Len(t, inst.Game().Winners, 1)
}

func TestPurchaseLedgerFailureKeepsCards(t *testing.T) {
	r, _, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	ledger.failTypes[models.PurchaseTransaction] = true

	cards, err := inst.PurchaseCards(ctx, 7, 1, false)
	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
	require.Len(t, cards, 1)
	assert.True(t, inst.Game().PrizePool.Equal(decimal.NewFromInt(10)))
}

func TestAutoMarkSkipsIneligibleCards(t *testing.T) {
	r, store, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternFullHouse,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), true)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)
	_, err = inst.Draw(ctx, 1)
	require.NoError(t, err)

	// Number not on the card: silently skipped.
	out, err := inst.AutoMark(ctx, card.ID, 15)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = inst.AutoMark(ctx, card.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.Card.IsMarked(1))

	// Already marked: skipped on the second pass.
	out, err = inst.AutoMark(ctx, card.ID, 1)
	require.NoError(t, err)
	assert.Nil(t, out)

	// Expired cards never auto-mark.
	expired, err := store.GetCard(ctx, card.ID)
	require.NoError(t, err)
	expired.Status = models.CardExpired
	require.NoError(t, store.SaveCard(ctx, expired))
	out, err = inst.AutoMark(ctx, card.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestConcurrentDuplicateDraw(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	_, err := inst.PurchaseCards(ctx, 7, 1, false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_, errs[w] = inst.Draw(ctx, 42)
		}(w)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, models.ErrDuplicateDraw)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, inst.Game().Draws, 1)
}

func TestRegistryLoadsFromStoreAfterRelease(t *testing.T) {
	r, _, _ := testEngine(t)
	ctx := context.Background()

	g, err := r.CreateGame(ctx, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	require.NoError(t, err)

	r.Release(g.ID)

	inst, err := r.Instance(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, inst.ID())

	_, err = r.Instance(ctx, 9999)
	assert.Error(t, err)

	r.Shutdown()
	_, err = r.Instance(ctx, g.ID)
	assert.ErrorIs(t, err, ErrRegistryClosed)
	_, err = r.CreateGame(ctx, CreateGameParams{})
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestGameSnapshotIsACopy(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	_, err := inst.PurchaseCards(ctx, 7, 1, false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)
	_, err = inst.Draw(ctx, 9)
	require.NoError(t, err)

	snap := inst.Game()
	snap.Draws[0].Number = 99
	snap.Status = models.GameCancelled

	fresh := inst.Game()
	assert.Equal(t, 9, fresh.Draws[0].Number)
	assert.Equal(t, models.GameActive, fresh.Status)
}

func TestConsistencyErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ConsistencyError{Op: "payout transaction", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "payout transaction")
}

func TestConcurrentCancelRefundsOnce(t *testing.T) {
	r, store, ledger := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{CardPrice: decimal.NewFromInt(10)})
	ctx := context.Background()

	cards, err := inst.PurchaseCards(ctx, 7, 2, false)
	require.NoError(t, err)

	// Widen the read window so overlapping cancellations would both see
	// the card active if the read happened outside the game lock.
	store.beforeGetCard = func() { time.Sleep(5 * time.Millisecond) }

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			errs[w] = inst.CancelCard(ctx, cards[0].ID, 7, false)
		}(w)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, models.ErrCardNotActive)
		}
	}
	assert.Equal(t, 1, ok, "exactly one cancellation must win")
	assert.Len(t, ledger.byType(models.RefundTransaction), 1)
	assert.True(t, inst.Game().PrizePool.Equal(decimal.NewFromInt(10)),
		"pool must be debited once, got %s", inst.Game().PrizePool)
}

func TestConcurrentPurchaseRespectsCardLimit(t *testing.T) {
	r, _, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Settings:  models.GameSettings{MaxCardsPerPlayer: 1},
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			_, errs[w] = inst.PurchaseCards(ctx, 7, 1, false)
		}(w)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrCardLimitReached)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, inst.Game().Stats.CardsSold)
}

func TestWinnerPersistenceFailureHasNoOutcome(t *testing.T) {
	r, store, _ := testEngine(t)
	inst := createTestGame(t, r, CreateGameParams{
		CardPrice: decimal.NewFromInt(10),
		Pattern:   PatternLine,
	})
	ctx := context.Background()

	card, err := inst.PurchaseCustomCard(ctx, 7, testLayout(), false)
	require.NoError(t, err)
	_, err = inst.Start(ctx)
	require.NoError(t, err)

	for _, n := range []int{1, 2, 3, 4, 5} {
		_, err = inst.Draw(ctx, n)
		require.NoError(t, err)
	}
	for _, n := range []int{1, 2, 3, 4} {
		_, err = inst.MarkCard(ctx, card.ID, 7, n)
		require.NoError(t, err)
	}

	// Refuse the game-document write that would persist the winner.
	store.saveGameErr = func(g *models.Game) error {
		if len(g.Winners) > 0 {
			return errors.New("write refused")
		}
		return nil
	}

	out, err := inst.MarkCard(ctx, card.ID, 7, 5)
	var consistency *ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, "game persistence", consistency.Op)
	assert.Nil(t, out, "an unpersisted winner must not produce an outcome")
}
