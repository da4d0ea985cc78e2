package handlers

import (
	"context"
	"time"

	"github.com/thereayou/voxnote/internal/database"
	"github.com/thereayou/voxnote/internal/handlers/dto"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/internal/workers"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"github.com/thereayou/voxnote/pkg/apperr"
	"github.com/thereayou/voxnote/pkg/storage"
	"go.uber.org/zap"
)

// refreshMargin запас до истечения подписанной ссылки
const refreshMargin = time.Hour

// Deps общие зависимости сессий
type Deps struct {
	DB     *database.Database
	Hub    *ws.Hub
	Signer storage.URLSigner
	Pool   *workers.Pool
	Log    *zap.Logger
}

// store выполняет обращение к базе в пуле. Закрытие соединения не прерывает
// начатую операцию, её результат просто не будет отправлен.
func store[T any](ctx context.Context, d *Deps, fn func(context.Context) (T, error)) (T, error) {
	return workers.Do(context.WithoutCancel(ctx), d.Pool, fn)
}

func storeRun(ctx context.Context, d *Deps, fn func(context.Context) error) error {
	return d.Pool.Run(context.WithoutCancel(ctx), fn)
}

// refreshIn через сколько миллисекунд клиенту нужно запросить новую ссылку
func (d *Deps) refreshIn() int64 {
	ttl := d.Signer.TTL() - refreshMargin
	if ttl < 0 {
		ttl = 0
	}
	return ttl.Milliseconds()
}

func (d *Deps) inbox(ctx context.Context, viewer *models.User) (dto.NotificationsFrame, error) {
	items, err := store(ctx, d, func(ctx context.Context) ([]database.InboxItem, error) {
		return d.DB.Inbox(ctx, viewer.ID)
	})
	if err != nil {
		return dto.NotificationsFrame{}, err
	}

	entries := make([]dto.InboxEntry, len(items))
	for i, item := range items {
		entries[i] = dto.InboxEntry{
			RoomID:          item.RoomID,
			RoomName:        item.RoomName,
			RoomMembers:     item.MemberPhones,
			Read:            item.Read,
			Timestamp:       item.Timestamp.Unix(),
			IsOwnMessage:    item.IsOwnMessage,
			LatestMessageID: item.LatestMessageID,
		}
	}
	return dto.NotificationsFrame{Type: "notifications", Notifications: entries}, nil
}

func (d *Deps) messageEntry(n *models.MessageNotification) (*dto.MessageNotificationEntry, error) {
	url, err := d.Signer.DownloadURL(n.MessageID.String())
	if err != nil {
		return nil, apperr.Internal("failed to sign download url", err)
	}
	return &dto.MessageNotificationEntry{
		ID:                 n.ID,
		MessageID:          n.MessageID,
		RoomID:             n.RoomID,
		CreatorPhoneNumber: n.Message.Creator.PhoneNumber,
		CreatorDisplayName: n.Message.Creator.DisplayName,
		Timestamp:          n.CreatedAt.Unix(),
		DownloadURL:        url,
	}, nil
}

// notifyMembers отправляет refresh_notifications в личные группы участников
func (d *Deps) notifyMembers(ctx context.Context, members []models.User) error {
	for _, m := range members {
		if err := d.Hub.Publish(ctx, ws.UserGroup(m.Username), ws.RefreshNotifications{}); err != nil {
			return apperr.Internal("failed to publish refresh", err)
		}
	}
	return nil
}

func memberPhones(members []models.User) []string {
	phones := make([]string, len(members))
	for i, m := range members {
		phones[i] = m.PhoneNumber
	}
	return phones
}
