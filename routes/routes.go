package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cartela-live/backend/controllers"
)

func SetupRoutes(r *gin.Engine, api *controllers.API) {
	g := r.Group("/api")

	// ----------------------
	// Game lifecycle
	// ----------------------
	g.POST("/games", api.CreateGame)
	g.GET("/games", api.ListGames)
	g.GET("/games/:id", api.GetGame)
	g.POST("/games/:id/start", api.StartGame)
	g.POST("/games/:id/pause", api.PauseGame)
	g.POST("/games/:id/resume", api.ResumeGame)
	g.POST("/games/:id/end", api.EndGame)
	g.POST("/games/:id/cancel", api.CancelGame)
	g.POST("/games/:id/draw", api.DrawNumber)

	// ----------------------
	// Cards
	// ----------------------
	g.POST("/games/:id/cards", api.PurchaseCards)
	g.GET("/games/:id/cards", api.ListUserCards)
	g.DELETE("/cards/:id", api.CancelCard)

	// ----------------------
	// Users
	// ----------------------
	g.GET("/users/:id", api.GetUser)
}
