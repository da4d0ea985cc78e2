package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportMessageNotification создаёт жалобу на автора сообщения и удаляет запись
// из входящих жалующегося. Жалоба на самого себя отклоняется ограничением в базе.
func (d *Database) ReportMessageNotification(ctx context.Context, reporterID, notificationID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n models.MessageNotification
		err := tx.Preload("Message").
			Where("id = ? AND receiver_id = ?", notificationID, reporterID).
			First(&n).Error
		if err != nil {
			return translate(err, "message notification not found")
		}

		messageID := n.MessageID
		report = models.Report{
			ReporterID:     reporterID,
			ReportedUserID: n.Message.CreatorID,
			MessageID:      &messageID,
		}
		if err := tx.Omit(clause.Associations).Create(&report).Error; err != nil {
			return apperr.Integrity("failed to create report", err)
		}

		return tx.Delete(&models.MessageNotification{}, "id = ?", n.ID).Error
	})
	if err != nil {
		return nil, translate(err, "failed to report message")
	}
	return &report, nil
}
