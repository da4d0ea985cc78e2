package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/pkg/logger"
	"go.uber.org/zap"
)

// Hub раздаёт события группам соединений. Публикация всегда идёт через брокер,
// поэтому соединения в других процессах получают то же самое.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Локальные подписчики групп
	groups map[string]map[uuid.UUID]*Client

	broker Broker
	log    *zap.Logger

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub(broker Broker, log *zap.Logger) *Hub {
	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
		groups:  make(map[string]map[uuid.UUID]*Client),
		broker:  broker,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run раздаёт сообщения брокера локальным подписчикам до Stop
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	messages := h.broker.Messages()
	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-messages:
			if !ok {
				h.log.Warn("broker channel closed")
				return
			}
			h.deliver(msg)

		case <-ticker.C:
			h.mu.RLock()
			h.log.Debug("hub stats", zap.Int("clients", len(h.clients)), zap.Int("groups", len(h.groups)))
			h.mu.RUnlock()
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	if err := h.broker.Close(); err != nil {
		h.log.Warn("failed to close broker", zap.Error(err))
	}
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.log.Info("client registered", zap.String("client_id", client.ID.String()), zap.String("user", client.Username))
}

// Unregister убирает клиента из всех групп. После возврата событий ему больше не будет.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, group := range client.Groups() {
		h.removeFromGroupUnsafe(client, group)
	}
	delete(h.clients, client.ID)

	h.log.Info("client unregistered", zap.String("client_id", client.ID.String()), zap.String("user", client.Username))
}

// Subscribe добавляет клиента в группу
func (h *Hub) Subscribe(group string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[uuid.UUID]*Client)
	}
	h.groups[group][client.ID] = client
	client.joined(group)

	h.log.Debug("group join", zap.String("client_id", client.ID.String()), zap.String("group", group))
}

// Unsubscribe удаляет клиента из группы
func (h *Hub) Unsubscribe(group string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromGroupUnsafe(client, group)
}

func (h *Hub) removeFromGroupUnsafe(client *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	client.left(group)

	h.log.Debug("group leave", zap.String("client_id", client.ID.String()), zap.String("group", group))
}

// Publish отправляет событие всем соединениям группы, включая другие процессы
func (h *Hub) Publish(ctx context.Context, group string, p Payload) error {
	ev, err := NewEvent(p)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.broker.Publish(ctx, group, data)
}

// Send доставляет событие ровно одному соединению
func (h *Hub) Send(client *Client, p Payload) error {
	ev, err := NewEvent(p)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrClientClosed
	}
	return client.enqueue(ev)
}

func (h *Hub) deliver(msg BrokerMessage) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		h.log.Warn("dropping malformed broker message", zap.String("group", msg.Group), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.groups[msg.Group] {
		if err := client.enqueue(ev); err != nil {
			h.log.Warn("event dropped",
				zap.String("client_id", client.ID.String()),
				zap.String("group", msg.Group),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
		}
	}
}

// GroupSize число локальных соединений в группе
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// ClientCount число зарегистрированных соединений процесса
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
