package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/handlers/dto"
	"github.com/thereayou/voxnote/internal/models"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"github.com/thereayou/voxnote/pkg/apperr"
	"github.com/thereayou/voxnote/pkg/phone"
	"go.uber.org/zap"
)

// RoomSession канал комнаты. Соединение начинает без комнаты, connect привязывает
// его к комнате; повторный connect перепривязывает. Один экземпляр на соединение.
type RoomSession struct {
	deps *Deps
	user models.User

	mu      sync.RWMutex
	room    *models.Room
	members []models.User
}

func NewRoomSession(deps *Deps, user *models.User) *RoomSession {
	return &RoomSession{deps: deps, user: *user}
}

func (s *RoomSession) Start(ctx context.Context, c *ws.Client) error {
	return nil
}

// bound текущая комната или NotFound, если connect ещё не было
func (s *RoomSession) bound() (models.Room, []models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.room == nil {
		return models.Room{}, nil, apperr.NotFound("not connected to a room")
	}
	return *s.room, s.members, nil
}

func (s *RoomSession) HandleCommand(ctx context.Context, c *ws.Client, cmd *ws.Command) error {
	// рассылки другим участникам должны уйти, даже если это соединение уже закрыто
	ctx = context.WithoutCancel(ctx)

	switch cmd.Name {
	case "connect":
		var req dto.ConnectCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.connect(ctx, c, req.PhoneNumbers)

	case "update_room_name":
		var req dto.UpdateRoomNameCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.updateRoomName(ctx, c, req.Name)

	case "fetch_upload_url":
		if _, _, err := s.bound(); err != nil {
			return err
		}
		return s.pushUploadURL(c)

	case "send_message":
		var req dto.SendMessageCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.sendMessage(ctx, c, req.Filename)

	case "fetch_message_notifications":
		return s.fetchMessageNotifications(ctx, c)

	case "report_message_notification":
		var req dto.ReportMessageNotificationCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.reportMessageNotification(ctx, c, req.MessageNotificationID)

	default:
		return apperr.InvalidArgument("unknown command: " + cmd.Name)
	}
}

func (s *RoomSession) HandleEvent(ctx context.Context, c *ws.Client, p ws.Payload) error {
	switch e := p.(type) {
	case *ws.RoomRenamed:
		s.mu.Lock()
		current := s.room != nil && s.room.ID == e.RoomID
		if current {
			s.room.DisplayName = e.RoomName
		}
		s.mu.Unlock()
		if !current {
			return nil
		}
		return c.Push(dto.UpdatedRoomNameFrame{Type: "updated_room_name", RoomName: e.RoomName})

	case *ws.NewMessage:
		return s.forwardNewMessage(ctx, c, e)

	case *ws.RoomNotified:
		return s.roomNotified(ctx, e.RoomID)

	default:
		return nil
	}
}

// connect находит или создаёт комнату для набора номеров и привязывает к ней соединение.
// Неудачная привязка снимает и предыдущую.
func (s *RoomSession) connect(ctx context.Context, c *ws.Client, numbers []string) error {
	normalized := phone.NormalizeAll(numbers, s.user.CountryCode)

	type resolved struct {
		room    *models.Room
		members []models.User
	}
	res, err := store(ctx, s.deps, func(ctx context.Context) (resolved, error) {
		room, members, err := s.deps.DB.ResolveRoom(ctx, &s.user, normalized)
		if err != nil {
			return resolved{}, err
		}
		ok, err := s.deps.DB.IsRoomMember(ctx, room.ID, s.user.ID)
		if err != nil {
			return resolved{}, err
		}
		if !ok {
			return resolved{}, apperr.PermissionDenied("not a member of this room")
		}
		return resolved{room: room, members: members}, nil
	})
	if err != nil {
		s.unbind(c)
		return err
	}
	if c.Closed() {
		return nil
	}

	// комната и группа хаба меняются вместе под s.mu
	s.mu.Lock()
	previous := s.room
	s.room = res.room
	s.members = res.members
	if previous != nil && previous.ID != res.room.ID {
		s.deps.Hub.Unsubscribe(ws.RoomGroup(previous.ID), c)
	}
	s.deps.Hub.Subscribe(ws.RoomGroup(res.room.ID), c)
	s.mu.Unlock()

	err = c.Push(dto.NewRoomFrame{
		Type:        "new_room",
		RoomID:      res.room.ID,
		RoomName:    res.room.NameFor(s.user.ID, res.members),
		RoomMembers: memberPhones(res.members),
	})
	if err != nil {
		return err
	}
	return s.deps.Hub.Send(c, ws.RoomNotified{RoomID: res.room.ID})
}

func (s *RoomSession) unbind(c *ws.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil {
		s.deps.Hub.Unsubscribe(ws.RoomGroup(s.room.ID), c)
	}
	s.room = nil
	s.members = nil
}

// updateRoomName в комнате на двоих имя всегда берётся у собеседника, поэтому
// переименование там ничего не делает
func (s *RoomSession) updateRoomName(ctx context.Context, c *ws.Client, name string) error {
	room, _, err := s.bound()
	if err != nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	members, err := store(ctx, s.deps, func(ctx context.Context) ([]models.User, error) {
		ok, err := s.deps.DB.IsRoomMember(ctx, room.ID, s.user.ID)
		if err != nil || !ok {
			return nil, err
		}
		members, err := s.deps.DB.RoomMembers(ctx, room.ID)
		if err != nil || len(members) <= 2 {
			return nil, err
		}
		return members, s.deps.DB.UpdateRoomName(ctx, room.ID, name)
	})
	if err != nil || len(members) == 0 {
		return err
	}

	if err := s.deps.Hub.Publish(ctx, ws.RoomGroup(room.ID), ws.RoomRenamed{RoomID: room.ID, RoomName: name}); err != nil {
		return apperr.Internal("failed to publish room name", err)
	}
	return s.deps.notifyMembers(ctx, members)
}

func (s *RoomSession) pushUploadURL(c *ws.Client) error {
	key := uuid.New().String()
	url, err := s.deps.Signer.UploadURL(key)
	if err != nil {
		return apperr.Internal("failed to sign upload url", err)
	}
	return c.Push(dto.UploadURLFrame{
		Type:                       "upload_url",
		UploadURL:                  url,
		UploadFilename:             key,
		RefreshUploadDestinationIn: s.deps.refreshIn(),
	})
}

// sendMessage порядок важен: сначала транзакция с журналом, потом рассылки
func (s *RoomSession) sendMessage(ctx context.Context, c *ws.Client, filename string) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil
	}
	room, _, err := s.bound()
	if err != nil {
		return err
	}
	messageID, err := uuid.Parse(filename)
	if err != nil {
		return apperr.InvalidArgument("filename must be an upload filename")
	}

	type recorded struct {
		message *models.Message
		members []models.User
	}
	rec, err := store(ctx, s.deps, func(ctx context.Context) (recorded, error) {
		message, members, err := s.deps.DB.RecordMessage(ctx, room.ID, s.user.ID, messageID)
		return recorded{message: message, members: members}, err
	})
	if err != nil {
		return err
	}

	event := ws.NewMessage{RoomID: room.ID, MessageID: rec.message.ID, SenderID: s.user.ID}
	if err := s.deps.Hub.Publish(ctx, ws.RoomGroup(room.ID), event); err != nil {
		return apperr.Internal("failed to publish message", err)
	}
	if err := s.deps.notifyMembers(ctx, rec.members); err != nil {
		return err
	}
	if c.Closed() {
		return nil
	}
	if err := s.pushUploadURL(c); err != nil {
		return err
	}
	return s.deps.Hub.Send(c, ws.RoomNotified{RoomID: room.ID})
}

// fetchMessageNotifications самая свежая необработанная запись во входящих, список из 0 или 1
func (s *RoomSession) fetchMessageNotifications(ctx context.Context, c *ws.Client) error {
	room, _, err := s.bound()
	if err != nil {
		return err
	}

	n, err := store(ctx, s.deps, func(ctx context.Context) (*models.MessageNotification, error) {
		return s.deps.DB.LatestMessageNotification(ctx, room.ID, s.user.ID)
	})
	if err != nil {
		return err
	}

	entries := []dto.MessageNotificationEntry{}
	if n != nil {
		entry, err := s.deps.messageEntry(n)
		if err != nil {
			return err
		}
		entries = append(entries, *entry)
	}
	return c.Push(dto.MessageNotificationsFrame{
		Type:                          "message_notifications",
		MessageNotifications:          entries,
		RefreshMessageNotificationsIn: s.deps.refreshIn(),
	})
}

// reportMessageNotification жалоба и одновременно удаление записи из входящих
func (s *RoomSession) reportMessageNotification(ctx context.Context, c *ws.Client, rawID string) error {
	if _, _, err := s.bound(); err != nil {
		return err
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return apperr.InvalidArgument("invalid message notification id")
	}

	report, err := store(ctx, s.deps, func(ctx context.Context) (*models.Report, error) {
		return s.deps.DB.ReportMessageNotification(ctx, s.user.ID, id)
	})
	if err != nil {
		return err
	}
	c.Logger().Info("message reported",
		zap.String("report_id", report.ID.String()),
		zap.String("reported_user_id", report.ReportedUserID.String()))

	return s.fetchMessageNotifications(ctx, c)
}

// forwardNewMessage каждый получатель, включая отправителя, видит свою запись во входящих
func (s *RoomSession) forwardNewMessage(ctx context.Context, c *ws.Client, e *ws.NewMessage) error {
	room, _, err := s.bound()
	if err != nil || room.ID != e.RoomID {
		return nil
	}

	n, err := store(ctx, s.deps, func(ctx context.Context) (*models.MessageNotification, error) {
		return s.deps.DB.MessageNotificationFor(ctx, room.ID, s.user.ID, e.MessageID)
	})
	if apperr.Is(err, apperr.CodeNotFound) {
		// запись уже удалена жалобой или удалением сообщения
		return nil
	}
	if err != nil {
		return err
	}
	entry, err := s.deps.messageEntry(n)
	if err != nil {
		return err
	}
	return c.Push(dto.NewMessageFrame{Type: "new_message", MessageID: e.MessageID, Message: entry})
}

// roomNotified отмечает комнату прочитанной и обновляет бейджи на всех устройствах
func (s *RoomSession) roomNotified(ctx context.Context, roomID uuid.UUID) error {
	room, _, err := s.bound()
	if err != nil || room.ID != roomID {
		return nil
	}

	err = storeRun(ctx, s.deps, func(ctx context.Context) error {
		return s.deps.DB.MarkRoomRead(ctx, room.ID, s.user.ID)
	})
	if err != nil {
		return err
	}
	return s.deps.Hub.Publish(ctx, ws.UserGroup(s.user.Username), ws.RefreshNotifications{})
}
