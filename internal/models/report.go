package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report жалоба на сообщение. Только добавляется, не меняется.
type Report struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ReporterID     uuid.UUID  `gorm:"type:uuid;not null;index;check:chk_reports_not_same,reporter_id <> reported_user_id"`
	ReportedUserID uuid.UUID  `gorm:"type:uuid;not null;index"`
	MessageID      *uuid.UUID `gorm:"type:uuid;index"`
	ReportedAt     time.Time  `gorm:"autoCreateTime"`

	// Связи
	Reporter     User     `gorm:"foreignKey:ReporterID;constraint:OnDelete:CASCADE"`
	ReportedUser User     `gorm:"foreignKey:ReportedUserID;constraint:OnDelete:CASCADE"`
	Message      *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:SET NULL"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// All модели для AutoMigrate в порядке зависимостей
func All() []interface{} {
	return []interface{}{
		&User{}, &Block{}, &Room{}, &RoomMember{}, &Message{},
		&UserRoomNotification{}, &MessageNotification{}, &Report{},
	}
}
