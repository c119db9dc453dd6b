package routes

import (
	"github.com/bellapacxx/bingo75-backend/controllers"
	"github.com/bellapacxx/bingo75-backend/monitor"
	"github.com/bellapacxx/bingo75-backend/services"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, api *controllers.API, hub *services.Hub) {
	apiGroup := r.Group("/api")

	// ----------------------
	// Game routes
	// ----------------------
	apiGroup.GET("/rooms", api.ListRooms)             // List active rooms
	apiGroup.GET("/round/:room_id", api.CurrentRound) // Current round for a room
	apiGroup.POST("/buy_card", api.BuyCard)           // Buy a card for a waiting round
	apiGroup.POST("/claim", api.Claim)                // Claim a win

	// ----------------------
	// Realtime + ops
	// ----------------------
	r.GET("/ws/:room_id/:user_id", hub.HandleWebSocket)
	r.GET("/metrics", gin.WrapH(monitor.Handler()))
}
