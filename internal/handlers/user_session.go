package handlers

import (
	"context"
	"strings"
	"sync"

	"github.com/thereayou/voxnote/internal/handlers/dto"
	"github.com/thereayou/voxnote/internal/models"
	ws "github.com/thereayou/voxnote/internal/websocket"
	"github.com/thereayou/voxnote/pkg/apperr"
	"github.com/thereayou/voxnote/pkg/phone"
)

// UserSession личный канал пользователя: имя, контакты, снимок уведомлений.
// Один экземпляр на соединение.
type UserSession struct {
	deps        *Deps
	routeUserID string

	mu   sync.RWMutex
	user models.User
}

func NewUserSession(deps *Deps, user *models.User, routeUserID string) *UserSession {
	return &UserSession{deps: deps, user: *user, routeUserID: routeUserID}
}

func (s *UserSession) current() models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Start пускает только владельца канала
func (s *UserSession) Start(ctx context.Context, c *ws.Client) error {
	user := s.current()
	if s.routeUserID != user.Username {
		return apperr.PermissionDenied("user id does not match token")
	}

	s.deps.Hub.Subscribe(ws.UserGroup(user.Username), c)
	if err := c.Push(dto.DisplayNameFrame{Type: "display_name", DisplayName: user.DisplayName}); err != nil {
		return err
	}
	return s.pushInbox(ctx, c)
}

func (s *UserSession) HandleCommand(ctx context.Context, c *ws.Client, cmd *ws.Command) error {
	switch cmd.Name {
	case "update_display_name":
		var req dto.UpdateDisplayNameCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.updateDisplayName(ctx, c, req.Name)

	case "fetch_registered_contacts":
		var req dto.FetchRegisteredContactsCommand
		if err := cmd.Bind(&req); err != nil {
			return apperr.InvalidArgument(err.Error())
		}
		return s.fetchRegisteredContacts(ctx, c, req.PhoneContacts)

	default:
		return apperr.InvalidArgument("unknown command: " + cmd.Name)
	}
}

func (s *UserSession) HandleEvent(ctx context.Context, c *ws.Client, p ws.Payload) error {
	switch e := p.(type) {
	case *ws.DisplayNameChanged:
		s.mu.Lock()
		s.user.DisplayName = e.DisplayName
		s.mu.Unlock()
		return c.Push(dto.DisplayNameFrame{Type: "display_name", DisplayName: e.DisplayName})

	case *ws.RefreshNotifications:
		return s.pushInbox(ctx, c)

	default:
		return nil
	}
}

// updateDisplayName пустое имя не сохраняется, клиенту просто повторяется текущее
func (s *UserSession) updateDisplayName(ctx context.Context, c *ws.Client, name string) error {
	user := s.current()
	name = strings.TrimSpace(name)
	if name == "" {
		return c.Push(dto.DisplayNameFrame{Type: "display_name", DisplayName: user.DisplayName})
	}

	err := storeRun(ctx, s.deps, func(ctx context.Context) error {
		return s.deps.DB.UpdateDisplayName(ctx, user.ID, name)
	})
	if err != nil {
		return err
	}
	return s.deps.Hub.Publish(ctx, ws.UserGroup(user.Username), ws.DisplayNameChanged{DisplayName: name})
}

func (s *UserSession) fetchRegisteredContacts(ctx context.Context, c *ws.Client, contacts []phone.Contact) error {
	user := s.current()
	numbers := phone.NormalizeContacts(contacts, user.CountryCode)

	found, err := store(ctx, s.deps, func(ctx context.Context) ([]models.User, error) {
		return s.deps.DB.FindContacts(ctx, numbers, user.ID)
	})
	if err != nil {
		return err
	}

	registered := make([]dto.RegisteredContact, len(found))
	for i, u := range found {
		registered[i] = dto.RegisteredContact{PhoneNumber: u.PhoneNumber, DisplayName: u.DisplayName}
	}
	return c.Push(dto.RegisteredContactsFrame{Type: "registered_contacts", RegisteredContacts: registered})
}

func (s *UserSession) pushInbox(ctx context.Context, c *ws.Client) error {
	user := s.current()
	frame, err := s.deps.inbox(ctx, &user)
	if err != nil {
		return err
	}
	return c.Push(frame)
}
