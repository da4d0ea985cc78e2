package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/voxnote/internal/middleware"
	"github.com/thereayou/voxnote/internal/models"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	deps     *Deps
	upgrader websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(deps *Deps) *WebSocketHandler {
	return &WebSocketHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// мобильные клиенты Origin не присылают
				return true
			},
		},
	}
}

// HandleUser /ws/users/:user_id
func (h *WebSocketHandler) HandleUser(c *gin.Context) {
	user, conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	client := ws.NewClient(h.deps.Hub, conn, user.ID, user.Username)
	go client.Serve(NewUserSession(h.deps, user, c.Param("user_id")))
}

// HandleRoom /ws/rooms
func (h *WebSocketHandler) HandleRoom(c *gin.Context) {
	user, conn, ok := h.upgrade(c)
	if !ok {
		return
	}
	client := ws.NewClient(h.deps.Hub, conn, user.ID, user.Username)
	go client.Serve(NewRoomSession(h.deps, user))
}

func (h *WebSocketHandler) upgrade(c *gin.Context) (*models.User, *websocket.Conn, bool) {
	value, exists := c.Get(middleware.UserKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, nil, false
	}
	user := value.(*models.User)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.deps.Log.Warn("websocket upgrade failed", zap.String("user", user.Username), zap.Error(err))
		return nil, nil, false
	}
	return user, conn, true
}
