package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRoomName имя новой групповой комнаты до первого переименования
const DefaultRoomName = "New group"

type Room struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"size:150"`
	// Хэш отсортированного набора участников: одна комната на набор
	MemberKey string `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time

	// Связи
	Members []RoomMember `gorm:"foreignKey:RoomID"`
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// NameFor имя комнаты глазами viewer: в комнате на двоих это имя собеседника
func (r *Room) NameFor(viewer uuid.UUID, members []User) string {
	if len(members) == 2 {
		for _, m := range members {
			if m.ID != viewer {
				return m.DisplayName
			}
		}
	}
	return r.DisplayName
}

// RoomMember явная таблица членства
type RoomMember struct {
	RoomID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`

	// Связи
	Room Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// MemberKey детерминированный ключ набора участников, порядок не важен
func MemberKey(ids []uuid.UUID) string {
	parts := make([]string, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		parts = append(parts, id.String())
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}
