package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/voxnote/internal/services"
	"github.com/thereayou/voxnote/pkg/apperr"
	"github.com/thereayou/voxnote/pkg/auth"
	"go.uber.org/zap"
)

const (
	UserKey  = "user"
	TokenKey = "token"
)

// AuthMiddleware проверяет bearer токен для HTTP API
func AuthMiddleware(identity *services.IdentityService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			c.Abort()
			return
		}
		authenticate(c, identity, log, token, "")
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: токен в ?token= или в заголовке,
// страна в ?country=
func WSAuthMiddleware(identity *services.IdentityService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token, _ = auth.ExtractTokenFromHeader(c.Request)
		}
		authenticate(c, identity, log, token, c.Query("country"))
	}
}

func authenticate(c *gin.Context, identity *services.IdentityService, log *zap.Logger, token, country string) {
	user, err := identity.Authenticate(c.Request.Context(), token, country)
	if err != nil {
		if apperr.Is(err, apperr.CodeUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		} else {
			log.Error("handshake failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		c.Abort()
		return
	}

	c.Set(UserKey, user)
	c.Set(TokenKey, token)
	c.Next()
}
