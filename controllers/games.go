package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cartela-live/backend/game"
	"github.com/cartela-live/backend/models"
)

type createGameRequest struct {
	Title       string              `json:"title" binding:"required,max=100"`
	Description string              `json:"description" binding:"max=500"`
	Type        models.GameType     `json:"type"`
	Pattern     string              `json:"pattern"`
	MaxPlayers  int                 `json:"max_players"`
	CardPrice   decimal.Decimal     `json:"card_price" binding:"required"`
	Prizes      []models.Prize      `json:"prizes"`
	Settings    models.GameSettings `json:"settings"`
	OperatorID  uint                `json:"operator_id" binding:"required"`
	ScheduledAt *time.Time          `json:"scheduled_at"`
}

// CreateGame opens a new waiting game.
func (a *API) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := a.Registry.CreateGame(c.Request.Context(), game.CreateGameParams{
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Pattern:     req.Pattern,
		MaxPlayers:  req.MaxPlayers,
		CardPrice:   req.CardPrice,
		Prizes:      req.Prizes,
		Settings:    req.Settings,
		OperatorID:  req.OperatorID,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// ListGames returns games that are not yet finished.
func (a *API) ListGames(c *gin.Context) {
	games, err := a.Store.ActiveGames(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, games)
}

// GetGame returns the authoritative game document.
func (a *API) GetGame(c *gin.Context) {
	inst, err := a.instance(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst.Game())
}

// StartGame moves a waiting game with sold cards to active.
func (a *API) StartGame(c *gin.Context) {
	a.transition(c, func(inst *game.Instance) (models.Game, error) {
		return inst.Start(c.Request.Context())
	}, false)
}

// PauseGame suspends draws on an active game.
func (a *API) PauseGame(c *gin.Context) {
	a.transition(c, func(inst *game.Instance) (models.Game, error) {
		return inst.Pause(c.Request.Context())
	}, false)
}

// ResumeGame reactivates a paused game.
func (a *API) ResumeGame(c *gin.Context) {
	a.transition(c, func(inst *game.Instance) (models.Game, error) {
		return inst.Resume(c.Request.Context())
	}, false)
}

// EndGame finishes a game. Terminal: the live instance is released.
func (a *API) EndGame(c *gin.Context) {
	a.transition(c, func(inst *game.Instance) (models.Game, error) {
		return inst.End(c.Request.Context())
	}, true)
}

// CancelGame cancels a game that never started. Terminal.
func (a *API) CancelGame(c *gin.Context) {
	a.transition(c, func(inst *game.Instance) (models.Game, error) {
		return inst.Cancel(c.Request.Context())
	}, true)
}

func (a *API) transition(c *gin.Context, op func(*game.Instance) (models.Game, error), terminal bool) {
	inst, err := a.instance(c)
	if err != nil {
		respondError(c, err)
		return
	}
	g, err := op(inst)
	if err != nil {
		respondError(c, err)
		return
	}
	a.Hub.BroadcastStatus(g.ID, g.Status)
	if terminal {
		a.Registry.Release(g.ID)
	}
	c.JSON(http.StatusOK, g)
}

type drawRequest struct {
	Number int `json:"number" binding:"required"`
}

// DrawNumber draws one number: history append, room broadcast and
// auto-play reconciliation all complete before the response.
func (a *API) DrawNumber(c *gin.Context) {
	gameID, err := idParam(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game id"})
		return
	}
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draw, err := a.Hub.Draw(c.Request.Context(), gameID, req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, draw)
}

func (a *API) instance(c *gin.Context) (*game.Instance, error) {
	gameID, err := idParam(c)
	if err != nil {
		return nil, err
	}
	return a.Registry.Instance(c.Request.Context(), gameID)
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return uint(id), err
}
