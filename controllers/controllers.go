package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cartela-live/backend/game"
	"github.com/cartela-live/backend/models"
	"github.com/cartela-live/backend/services"
)

// API is the thin HTTP surface driving the game engine. Authorization
// happened upstream; handlers only translate requests into engine calls.
type API struct {
	Registry *game.Registry
	Hub      *services.Hub
	Store    game.Store
	Log      *zap.SugaredLogger
}

func NewAPI(registry *game.Registry, hub *services.Hub, store game.Store, log *zap.SugaredLogger) *API {
	return &API{Registry: registry, Hub: hub, Store: store, Log: log}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var layout *game.InvalidCardLayoutError
	var transition *models.InvalidTransitionError
	var consistency *game.ConsistencyError
	var numErr *strconv.NumError

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &numErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
	case errors.As(err, &layout),
		errors.Is(err, models.ErrInvalidNumber),
		errors.Is(err, models.ErrNumberNotOnCard):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &transition),
		errors.Is(err, models.ErrDuplicateDraw),
		errors.Is(err, models.ErrNoCardsSold),
		errors.Is(err, models.ErrCardNotActive),
		errors.Is(err, game.ErrPurchaseClosed),
		errors.Is(err, game.ErrCancelAfterStart),
		errors.Is(err, game.ErrCardLimitReached),
		errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrNumberNotDrawn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrNotCardOwner), errors.Is(err, game.ErrWrongGame):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &consistency):
		// The domain mutation stands; only the side effect needs a retry.
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             err.Error(),
			"retry_side_effect": true,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
