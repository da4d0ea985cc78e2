package models

import (
	"time"

	"github.com/google/uuid"
)

// Message голосовое сообщение. ID совпадает с ключом объекта в хранилище.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Связи
	Creator User `gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
	Room    Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}
