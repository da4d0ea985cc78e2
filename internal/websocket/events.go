package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind тип события, которое ходит через хаб между сессиями
type EventKind string

const (
	KindDisplayName          EventKind = "display_name"
	KindRefreshNotifications EventKind = "refresh_notifications"
	KindUpdatedRoomName      EventKind = "updated_room_name"
	KindNewMessage           EventKind = "new_message"
	KindRoomNotified         EventKind = "room_notified"
)

// Payload один из вариантов события
type Payload interface {
	Kind() EventKind
}

// DisplayNameChanged рассылается во все устройства пользователя
type DisplayNameChanged struct {
	DisplayName string `json:"display_name"`
}

// RefreshNotifications просит пересчитать снимок уведомлений
type RefreshNotifications struct{}

type RoomRenamed struct {
	RoomID   uuid.UUID `json:"room_id"`
	RoomName string    `json:"room_name"`
}

type NewMessage struct {
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
}

// RoomNotified сессия комнаты шлёт самой себе после connect и send_message
type RoomNotified struct {
	RoomID uuid.UUID `json:"room_id"`
}

func (DisplayNameChanged) Kind() EventKind   { return KindDisplayName }
func (RefreshNotifications) Kind() EventKind { return KindRefreshNotifications }
func (RoomRenamed) Kind() EventKind          { return KindUpdatedRoomName }
func (NewMessage) Kind() EventKind           { return KindNewMessage }
func (RoomNotified) Kind() EventKind         { return KindRoomNotified }

// Event конверт, в котором событие уходит в брокер
type Event struct {
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEvent(p Payload) (Event, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{Kind: p.Kind(), Payload: data}, nil
}

// Decode возвращает типизированный вариант события
func (e Event) Decode() (Payload, error) {
	var p Payload
	switch e.Kind {
	case KindDisplayName:
		p = &DisplayNameChanged{}
	case KindRefreshNotifications:
		p = &RefreshNotifications{}
	case KindUpdatedRoomName:
		p = &RoomRenamed{}
	case KindNewMessage:
		p = &NewMessage{}
	case KindRoomNotified:
		p = &RoomNotified{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Kind)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Command входящий кадр клиента: {"command": "...", ...поля}
type Command struct {
	Name string
	Raw  json.RawMessage
}

func ParseCommand(data []byte) (*Command, error) {
	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Command == "" {
		return nil, ErrInvalidMessage
	}
	return &Command{Name: head.Command, Raw: data}, nil
}

// Bind разбирает поля команды в v
func (c *Command) Bind(v interface{}) error {
	if err := json.Unmarshal(c.Raw, v); err != nil {
		return ErrInvalidMessage
	}
	return nil
}

// UserGroup группа всех соединений пользователя
func UserGroup(username string) string {
	return "user:" + username
}

func RoomGroup(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}
