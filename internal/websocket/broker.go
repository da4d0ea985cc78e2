package websocket

import (
	"context"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/thereayou/voxnote/pkg/logger"
	"go.uber.org/zap"
)

const channelPrefix = "voxnote:group:"

// BrokerMessage сообщение, пришедшее из брокера для группы
type BrokerMessage struct {
	Group string
	Data  []byte
}

// Broker транспорт между процессами. Каждый процесс получает все публикации
// и сам раздаёт их своим локальным соединениям.
type Broker interface {
	Publish(ctx context.Context, group string, data []byte) error
	Messages() <-chan BrokerMessage
	Close() error
}

// RedisBroker PUBLISH в канал группы и один PSUBSCRIBE на все группы
type RedisBroker struct {
	rdb    *redis.Client
	pubsub *redis.PubSub
	out    chan BrokerMessage
	log    *zap.Logger
	once   sync.Once
}

func NewRedisBroker(ctx context.Context, rdb *redis.Client, log *zap.Logger) (*RedisBroker, error) {
	log = logger.OrNop(log)
	pubsub := rdb.PSubscribe(ctx, channelPrefix+"*")
	// ждём подтверждения подписки, иначе первые публикации потеряются
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	b := &RedisBroker{
		rdb:    rdb,
		pubsub: pubsub,
		out:    make(chan BrokerMessage, 1024),
		log:    log,
	}
	go b.forward()
	return b, nil
}

func (b *RedisBroker) forward() {
	defer close(b.out)
	for msg := range b.pubsub.Channel() {
		group := strings.TrimPrefix(msg.Channel, channelPrefix)
		b.out <- BrokerMessage{Group: group, Data: []byte(msg.Payload)}
	}
	b.log.Debug("redis broker subscription closed")
}

func (b *RedisBroker) Publish(ctx context.Context, group string, data []byte) error {
	return b.rdb.Publish(ctx, channelPrefix+group, data).Err()
}

func (b *RedisBroker) Messages() <-chan BrokerMessage {
	return b.out
}

func (b *RedisBroker) Close() error {
	var err error
	b.once.Do(func() { err = b.pubsub.Close() })
	return err
}

// LocalBroker брокер внутри одного процесса
type LocalBroker struct {
	out    chan BrokerMessage
	mu     sync.RWMutex
	closed bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{out: make(chan BrokerMessage, 1024)}
}

func (b *LocalBroker) Publish(ctx context.Context, group string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	select {
	case b.out <- BrokerMessage{Group: group, Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *LocalBroker) Messages() <-chan BrokerMessage {
	return b.out
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.out)
	}
	return nil
}
