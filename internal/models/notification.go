package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRoomNotification отметка прочитано/не прочитано на пару (комната, участник).
// Создаётся вместе с комнатой, дальше только обновляется.
type UserRoomNotification struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RoomID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_room_notification"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_room_notification;index"`
	Read            bool       `gorm:"not null"`
	LatestMessageID *uuid.UUID `gorm:"type:uuid"`
	Timestamp       time.Time  `gorm:"autoUpdateTime"`

	// Связи
	Room          Room     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User          User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	LatestMessage *Message `gorm:"foreignKey:LatestMessageID;constraint:OnDelete:SET NULL"`
}

func (n *UserRoomNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// MessageNotification запись во входящих получателя по конкретному сообщению
type MessageNotification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_notification"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_notification"`
	MessageID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_notification"`
	CreatedAt  time.Time `gorm:"index"`

	// Связи
	Room     Room    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Receiver User    `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE"`
	Message  Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (n *MessageNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
