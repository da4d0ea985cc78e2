package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/voxnote/internal/handlers"
	"github.com/thereayou/voxnote/internal/middleware"
	"github.com/thereayou/voxnote/internal/services"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

type Endpoints struct {
	WS       *handlers.WebSocketHandler
	Account  *handlers.AccountHandler
	Identity *services.IdentityService
	Limiter  *limiter.Limiter
	Log      *zap.Logger
}

func APIEndpoints(r *gin.Engine, e Endpoints) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limit := middleware.RateLimitMiddleware(e.Limiter)

	// WebSocket endpoints
	wsGroup := r.Group("/ws", limit, middleware.WSAuthMiddleware(e.Identity, e.Log))
	{
		wsGroup.GET("/users/:user_id", e.WS.HandleUser)
		wsGroup.GET("/rooms", e.WS.HandleRoom)
	}

	// API endpoints
	api := r.Group("/api", limit, middleware.AuthMiddleware(e.Identity, e.Log))
	{
		api.POST("/logout", e.Account.Logout)
		api.DELETE("/account", e.Account.DeleteAccount)
	}
}
