package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/voxnote/internal/middleware"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/internal/services"
	"github.com/thereayou/voxnote/pkg/apperr"
	"go.uber.org/zap"
)

type AccountHandler struct {
	deps     *Deps
	identity *services.IdentityService
}

func NewAccountHandler(deps *Deps, identity *services.IdentityService) *AccountHandler {
	return &AccountHandler{deps: deps, identity: identity}
}

// Logout ставит токен в черный список в Redis до истечения
func (h *AccountHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	if err := h.identity.Revoke(c.Request.Context(), token); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// DeleteAccount удаляет пользователя и опустевшие комнаты, токен больше не действует
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	user := c.MustGet(middleware.UserKey).(*models.User)

	err := storeRun(c.Request.Context(), h.deps, func(ctx context.Context) error {
		return h.deps.DB.DeleteAccount(ctx, user.Username)
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.identity.Revoke(c.Request.Context(), c.GetString(middleware.TokenKey)); err != nil {
		h.deps.Log.Warn("failed to revoke token of deleted account", zap.String("user", user.Username), zap.Error(err))
	}

	h.deps.Log.Info("account deleted", zap.String("user", user.Username))
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) respondError(c *gin.Context, err error) {
	switch apperr.CodeOf(err) {
	case apperr.CodeUnauthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case apperr.CodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.deps.Log.Error("account request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
