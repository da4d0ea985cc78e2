package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InboxItem строка снимка уведомлений пользователя
type InboxItem struct {
	RoomID          uuid.UUID
	RoomName        string
	MemberPhones    []string
	Read            bool
	Timestamp       time.Time
	IsOwnMessage    bool
	LatestMessageID *uuid.UUID
}

// RecordMessage сохраняет сообщение и обновляет журнал одной транзакцией:
// сообщение, отметки прочтения участников, входящие на каждого участника.
// Повторный вызов с тем же id ничего не дублирует.
func (d *Database) RecordMessage(ctx context.Context, roomID, senderID, messageID uuid.UUID) (*models.Message, []models.User, error) {
	var (
		message models.Message
		members []models.User
	)
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		message = models.Message{ID: messageID, RoomID: roomID, CreatorID: senderID}
		err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&message).Error
		if err != nil {
			return apperr.Integrity("failed to save message", err)
		}

		message = models.Message{}
		err = tx.Where("id = ? AND room_id = ? AND creator_id = ?", messageID, roomID, senderID).
			First(&message).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Integrity("message id already used in another room", err)
		}
		if err != nil {
			return err
		}

		members, err = roomMembers(tx, roomID)
		if err != nil {
			return err
		}

		now := time.Now()
		err = tx.Model(&models.UserRoomNotification{}).
			Where("room_id = ? AND user_id <> ?", roomID, senderID).
			Updates(map[string]interface{}{"latest_message_id": message.ID, "read": false, "timestamp": now}).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.UserRoomNotification{}).
			Where("room_id = ? AND user_id = ?", roomID, senderID).
			Updates(map[string]interface{}{"latest_message_id": message.ID, "read": true, "timestamp": now}).Error
		if err != nil {
			return err
		}

		inbox := make([]models.MessageNotification, len(members))
		for i, m := range members {
			inbox[i] = models.MessageNotification{RoomID: roomID, ReceiverID: m.ID, MessageID: message.ID}
		}
		return tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&inbox).Error
	})
	if err != nil {
		return nil, nil, translate(err, "failed to record message")
	}
	return &message, members, nil
}

// MarkRoomRead ставит отметку "прочитано" для пары (комната, пользователь)
func (d *Database) MarkRoomRead(ctx context.Context, roomID, userID uuid.UUID) error {
	err := d.db.WithContext(ctx).
		Model(&models.UserRoomNotification{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{"read": true, "timestamp": time.Now()}).Error
	return translate(err, "failed to mark room read")
}

func (d *Database) GetRoomNotification(ctx context.Context, roomID, userID uuid.UUID) (*models.UserRoomNotification, error) {
	var n models.UserRoomNotification
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&n).Error
	if err != nil {
		return nil, translate(err, "room notification not found")
	}
	return &n, nil
}

// Inbox снимок уведомлений: сначала непрочитанные, затем по времени от новых к старым
func (d *Database) Inbox(ctx context.Context, viewer uuid.UUID) ([]InboxItem, error) {
	db := d.db.WithContext(ctx)

	var rows []models.UserRoomNotification
	err := db.
		Preload("Room").
		Preload("LatestMessage").
		Where("user_id = ?", viewer).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "read"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "failed to load notifications")
	}
	if len(rows) == 0 {
		return []InboxItem{}, nil
	}

	roomIDs := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		roomIDs[i] = r.RoomID
	}

	var memberships []models.RoomMember
	err = db.Preload("User").
		Where("room_id IN ?", roomIDs).
		Find(&memberships).Error
	if err != nil {
		return nil, translate(err, "failed to load room members")
	}
	byRoom := make(map[uuid.UUID][]models.User, len(rows))
	for _, m := range memberships {
		byRoom[m.RoomID] = append(byRoom[m.RoomID], m.User)
	}

	items := make([]InboxItem, 0, len(rows))
	for _, r := range rows {
		members := byRoom[r.RoomID]
		phones := make([]string, 0, len(members))
		for _, m := range members {
			phones = append(phones, m.PhoneNumber)
		}
		items = append(items, InboxItem{
			RoomID:          r.RoomID,
			RoomName:        r.Room.NameFor(viewer, members),
			MemberPhones:    phones,
			Read:            r.Read,
			Timestamp:       r.Timestamp,
			IsOwnMessage:    r.LatestMessage != nil && r.LatestMessage.CreatorID == viewer,
			LatestMessageID: r.LatestMessageID,
		})
	}
	return items, nil
}

// LatestMessageNotification самая свежая запись во входящих получателя в комнате.
// Свои сообщения во входящие не попадают. Нет записи: nil без ошибки.
func (d *Database) LatestMessageNotification(ctx context.Context, roomID, receiverID uuid.UUID) (*models.MessageNotification, error) {
	var n models.MessageNotification
	err := d.db.WithContext(ctx).
		Preload("Message.Creator").
		Joins("JOIN messages ON messages.id = message_notifications.message_id").
		Where("message_notifications.room_id = ? AND message_notifications.receiver_id = ?", roomID, receiverID).
		Where("messages.creator_id <> ?", receiverID).
		Order("message_notifications.created_at DESC").
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, "failed to load message notification")
	}
	return &n, nil
}

// MessageNotificationFor запись получателя по конкретному сообщению
func (d *Database) MessageNotificationFor(ctx context.Context, roomID, receiverID, messageID uuid.UUID) (*models.MessageNotification, error) {
	var n models.MessageNotification
	err := d.db.WithContext(ctx).
		Preload("Message.Creator").
		Where("room_id = ? AND receiver_id = ? AND message_id = ?", roomID, receiverID, messageID).
		First(&n).Error
	if err != nil {
		return nil, translate(err, "message notification not found")
	}
	return &n, nil
}
