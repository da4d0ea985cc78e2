package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/voxnote/pkg/apperr"
	"go.uber.org/zap"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB
)

// SessionHandler протокол конкретной сессии: пользовательской или комнатной
type SessionHandler interface {
	// Start вызывается после регистрации, до чтения команд. Ошибка закрывает
	// соединение кадром policy violation.
	Start(ctx context.Context, c *Client) error
	// HandleCommand вызывается в отдельной горутине на каждую команду,
	// порядок между командами одного соединения не гарантируется
	HandleCommand(ctx context.Context, c *Client, cmd *Command) error
	// HandleEvent вызывается последовательно для событий хаба
	HandleEvent(ctx context.Context, c *Client, p Payload) error
}

// ErrorFrame кадр с ошибкой команды. Соединение после него остаётся открытым.
type ErrorFrame struct {
	Type  string      `json:"type"`
	Code  apperr.Code `json:"code"`
	Error string      `json:"error"`
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	events chan Event
	groups map[string]bool
	mu     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		events:   make(chan Event, 64),
		groups:   make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
		log:      hub.log.With(zap.String("client_id", id.String()), zap.String("user", username)),
	}
}

// Context отменяется, когда соединение закрыто
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) Logger() *zap.Logger {
	return c.log
}

func (c *Client) Close() {
	c.cancel()
}

func (c *Client) Closed() bool {
	return c.ctx.Err() != nil
}

// Serve регистрирует клиента и крутит насосы до закрытия соединения
func (c *Client) Serve(handler SessionHandler) {
	c.Hub.Register(c)
	go c.WritePump()

	if err := handler.Start(c.ctx, c); err != nil {
		c.log.Warn("session rejected", zap.Error(err))
		c.Reject(err.Error())
		c.Hub.Unregister(c)
		return
	}

	go c.EventPump(handler)
	c.ReadPump(handler)
}

// ReadPump читает команды клиента. Каждая команда исполняется в своей горутине.
func (c *Client) ReadPump(handler SessionHandler) {
	defer func() {
		c.cancel()
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		cmd, err := ParseCommand(data)
		if err != nil {
			c.SendError(apperr.InvalidArgument(err.Error()))
			continue
		}

		go c.dispatch(handler, cmd)
	}
}

func (c *Client) dispatch(handler SessionHandler, cmd *Command) {
	if err := handler.HandleCommand(c.ctx, c, cmd); err != nil {
		if c.Closed() {
			return
		}
		c.log.Warn("command failed", zap.String("command", cmd.Name), zap.Error(err))
		c.SendError(err)
	}
}

// EventPump обрабатывает события хаба по одному
func (c *Client) EventPump(handler SessionHandler) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.events:
			p, err := ev.Decode()
			if err != nil {
				c.log.Warn("undecodable event", zap.String("kind", string(ev.Kind)), zap.Error(err))
				continue
			}
			if err := handler.HandleEvent(c.ctx, c, p); err != nil && !c.Closed() {
				c.log.Warn("event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
				c.SendError(err)
			}
		}
	}
}

// WritePump отправляет кадры клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				c.cancel()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// Push ставит кадр в очередь на отправку. Закрытому соединению ничего не уходит.
func (c *Client) Push(frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if c.Closed() {
		return ErrClientClosed
	}

	select {
	case c.Send <- data:
		return nil
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(err error) {
	code := apperr.CodeOf(err)
	msg := err.Error()
	if code == apperr.CodeInternal {
		msg = "internal error"
	}
	if pushErr := c.Push(ErrorFrame{Type: "error", Code: code, Error: msg}); pushErr != nil {
		c.log.Debug("error frame dropped", zap.Error(pushErr))
	}
}

// Reject закрывает соединение кадром policy violation
func (c *Client) Reject(reason string) {
	if c.Conn != nil {
		deadline := time.Now().Add(writeWait)
		c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	}
	c.cancel()
}

func (c *Client) enqueue(ev Event) error {
	if c.Closed() {
		return ErrClientClosed
	}
	select {
	case c.events <- ev:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) joined(group string) {
	c.mu.Lock()
	c.groups[group] = true
	c.mu.Unlock()
}

func (c *Client) left(group string) {
	c.mu.Lock()
	delete(c.groups, group)
	c.mu.Unlock()
}

func (c *Client) InGroup(group string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.groups[group]
}

func (c *Client) Groups() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groups := make([]string, 0, len(c.groups))
	for group := range c.groups {
		groups = append(groups, group)
	}
	return groups
}
