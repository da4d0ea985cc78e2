package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/models"
	"gorm.io/gorm"
)

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := d.db.WithContext(ctx).Preload("Creator").First(&message, "id = ?", id).Error; err != nil {
		return nil, translate(err, "message not found")
	}
	return &message, nil
}

// DeleteMessage удаляет сообщение вместе с записями во входящих и снимает
// ссылки на него из журнала. Возвращает участников комнаты, чтобы обновить им счётчики.
func (d *Database) DeleteMessage(ctx context.Context, id uuid.UUID) ([]models.User, error) {
	var members []models.User
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.First(&message, "id = ?", id).Error; err != nil {
			return translate(err, "message not found")
		}

		var err error
		members, err = roomMembers(tx, message.RoomID)
		if err != nil {
			return err
		}

		if err := tx.Where("message_id = ?", id).Delete(&models.MessageNotification{}).Error; err != nil {
			return err
		}
		err = tx.Model(&models.UserRoomNotification{}).
			Where("latest_message_id = ?", id).
			Update("latest_message_id", nil).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Report{}).
			Where("message_id = ?", id).
			Update("message_id", nil).Error
		if err != nil {
			return err
		}
		return tx.Delete(&message).Error
	})
	if err != nil {
		return nil, translate(err, "failed to delete message")
	}
	return members, nil
}
