package routes

import (
	"taxilink/internal/handlers/shared"
	"taxilink/internal/middleware"
	"taxilink/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up the ride lifecycle endpoints.
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *shared.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")
	rides.Use(middleware.AuthRequired(jwtSecret))
	{
		rides.POST("", middleware.PassengerRequired(), rideHandler.CreateRide)
		rides.GET("/:id", rideHandler.GetRide)
		rides.POST("/:id/accept", middleware.DriverRequired(), rideHandler.AcceptRide)
		rides.POST("/:id/complete", middleware.DriverRequired(), rideHandler.CompleteRide)
		rides.POST("/:id/cancel", rideHandler.CancelRide)
	}
}

// SetupChatRoutes sets up the chat endpoints. Real-time messaging goes over
// the websocket; these cover session bootstrap and history catch-up.
func SetupChatRoutes(r *gin.RouterGroup, chatHandler *shared.ChatHandler, jwtSecret string) {
	chats := r.Group("/chats")
	chats.Use(middleware.AuthRequired(jwtSecret))
	{
		chats.POST("", chatHandler.InitiateChat)
		chats.GET("/:id/messages", chatHandler.GetMessages)
	}
}

// SetupWebSocketRoutes sets up the realtime upgrade endpoint.
func SetupWebSocketRoutes(r *gin.Engine, wsHandler *websocket.Handler, path, jwtSecret string) {
	r.GET(path, middleware.AuthRequired(jwtSecret), wsHandler.HandleWebSocket)
}
