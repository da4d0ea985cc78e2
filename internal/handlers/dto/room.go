package dto

import "github.com/google/uuid"

// Команды комнатной сессии

type ConnectCommand struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

type UpdateRoomNameCommand struct {
	Name string `json:"name"`
}

type SendMessageCommand struct {
	Filename string `json:"filename"`
}

type ReportMessageNotificationCommand struct {
	MessageNotificationID string `json:"message_notification_id"`
}

// События комнатной сессии

type NewRoomFrame struct {
	Type        string    `json:"type"`
	RoomID      uuid.UUID `json:"room_id"`
	RoomName    string    `json:"room_name"`
	RoomMembers []string  `json:"room_members"`
}

type UpdatedRoomNameFrame struct {
	Type     string `json:"type"`
	RoomName string `json:"room_name"`
}

// UploadURLFrame интервал обновления в миллисекундах
type UploadURLFrame struct {
	Type                       string `json:"type"`
	UploadURL                  string `json:"upload_url"`
	UploadFilename             string `json:"upload_filename"`
	RefreshUploadDestinationIn int64  `json:"refresh_upload_destination_in"`
}

type MessageNotificationsFrame struct {
	Type                          string                     `json:"type"`
	MessageNotifications          []MessageNotificationEntry `json:"message_notifications"`
	RefreshMessageNotificationsIn int64                      `json:"refresh_message_notifications_in"`
}

type NewMessageFrame struct {
	Type      string                    `json:"type"`
	MessageID uuid.UUID                 `json:"message_id"`
	Message   *MessageNotificationEntry `json:"message,omitempty"`
}

type MessageNotificationEntry struct {
	ID                 uuid.UUID `json:"id"`
	MessageID          uuid.UUID `json:"message_id"`
	RoomID             uuid.UUID `json:"room_id"`
	CreatorPhoneNumber string    `json:"creator_phone_number"`
	CreatorDisplayName string    `json:"creator_display_name"`
	Timestamp          int64     `json:"timestamp"`
	DownloadURL        string    `json:"download_url"`
}
