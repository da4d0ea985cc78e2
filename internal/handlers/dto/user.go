package dto

import (
	"github.com/google/uuid"
	"github.com/thereayou/voxnote/pkg/phone"
)

// Команды пользовательской сессии

type UpdateDisplayNameCommand struct {
	Name string `json:"name"`
}

type FetchRegisteredContactsCommand struct {
	PhoneContacts []phone.Contact `json:"phone_contacts"`
}

// События пользовательской сессии

type DisplayNameFrame struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

type NotificationsFrame struct {
	Type          string       `json:"type"`
	Notifications []InboxEntry `json:"notifications"`
}

// InboxEntry строка снимка уведомлений. Timestamp в секундах epoch.
type InboxEntry struct {
	RoomID          uuid.UUID  `json:"room_id"`
	RoomName        string     `json:"room_name"`
	RoomMembers     []string   `json:"room_members"`
	Read            bool       `json:"read"`
	Timestamp       int64      `json:"timestamp"`
	IsOwnMessage    bool       `json:"is_own_message"`
	LatestMessageID *uuid.UUID `json:"latest_message_id"`
}

type RegisteredContactsFrame struct {
	Type               string              `json:"type"`
	RegisteredContacts []RegisteredContact `json:"registered_contacts"`
}

type RegisteredContact struct {
	PhoneNumber string `json:"phone_number"`
	DisplayName string `json:"display_name"`
}
