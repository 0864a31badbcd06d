package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cartela-live/backend/models"
)

type purchaseRequest struct {
	UserID   uint                `json:"user_id" binding:"required"`
	Quantity int                 `json:"quantity"`
	AutoPlay bool                `json:"auto_play"`
	Numbers  *models.CardNumbers `json:"numbers"` // custom layout, single card
}

// PurchaseCards sells generated cards, or one custom-layout card when
// numbers are supplied.
func (a *API) PurchaseCards(c *gin.Context) {
	inst, err := a.instance(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	var cards []*models.Card
	if req.Numbers != nil {
		card, perr := inst.PurchaseCustomCard(ctx, req.UserID, *req.Numbers, req.AutoPlay)
		if card != nil {
			cards = []*models.Card{card}
		}
		err = perr
	} else {
		cards, err = inst.PurchaseCards(ctx, req.UserID, req.Quantity, req.AutoPlay)
	}

	if err != nil && len(cards) == 0 {
		respondError(c, err)
		return
	}

	resp := gin.H{"cards": cards, "game": inst.Game()}
	if err != nil {
		// Sale committed, ledger write did not. Surface it, keep the cards.
		a.Log.Errorw("purchase ledger write failed", "game_id", inst.ID(), "error", err)
		resp["ledger_error"] = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// ListUserCards returns one player's cards for a game.
func (a *API) ListUserCards(c *gin.Context) {
	gameID, err := idParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	cards, err := a.Store.UserCards(c.Request.Context(), gameID, uint(userID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

type cancelRequest struct {
	UserID uint `json:"user_id" binding:"required"`
	Admin  bool `json:"admin"`
}

// CancelCard refunds a card before its game starts.
func (a *API) CancelCard(c *gin.Context) {
	cardID, err := idParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	card, err := a.Store.GetCard(ctx, cardID)
	if err != nil {
		respondError(c, err)
		return
	}
	inst, err := a.Registry.Instance(ctx, card.GameID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := inst.CancelCard(ctx, cardID, req.UserID, req.Admin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "card cancelled and refunded", "game": inst.Game()})
}

// GetUser is a minimal participant reference lookup.
func (a *API) GetUser(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	user, err := a.Store.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
