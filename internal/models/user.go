package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username    string    `gorm:"uniqueIndex;not null"` // стабильный uid из токена
	// Пустой номер допустим у нескольких пользователей (токен без номера)
	PhoneNumber string `gorm:"uniqueIndex:idx_users_phone_number,where:phone_number <> '';not null"`
	CountryCode string    `gorm:"size:2"`
	DisplayName string    `gorm:"size:150"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Block заблокированные пользователи. Только хранится, нигде не применяется.
type Block struct {
	BlockerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	BlockedID uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time

	// Связи
	Blocker User `gorm:"foreignKey:BlockerID;constraint:OnDelete:CASCADE"`
	Blocked User `gorm:"foreignKey:BlockedID;constraint:OnDelete:CASCADE"`
}
