package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolveRoom возвращает единственную комнату, чей состав совпадает с
// requester плюс пользователи с номерами из phones. Если такой нет, создаёт её
// вместе с отметками прочтения для каждого участника.
func (d *Database) ResolveRoom(ctx context.Context, requester *models.User, phones []string) (*models.Room, []models.User, error) {
	members := []models.User{*requester}
	if len(phones) > 0 {
		var found []models.User
		err := d.db.WithContext(ctx).
			Where("phone_number IN ? AND id <> ?", phones, requester.ID).
			Find(&found).Error
		if err != nil {
			return nil, nil, translate(err, "failed to look up room members")
		}
		members = append(members, found...)
	}
	if len(members) < 2 {
		return nil, nil, apperr.NotFound("no registered users for these phone numbers")
	}

	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	key := models.MemberKey(ids)

	var room models.Room
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("member_key = ?", key).First(&room).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		room = models.Room{DisplayName: models.DefaultRoomName, MemberKey: key}
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "member_key"}}, DoNothing: true}).
			Create(&room)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// параллельный запрос успел раньше
			room = models.Room{}
			return tx.Where("member_key = ?", key).First(&room).Error
		}

		roomMembers := make([]models.RoomMember, len(ids))
		ledger := make([]models.UserRoomNotification, len(ids))
		for i, id := range ids {
			roomMembers[i] = models.RoomMember{RoomID: room.ID, UserID: id}
			ledger[i] = models.UserRoomNotification{RoomID: room.ID, UserID: id}
		}
		if err := tx.Omit(clause.Associations).Create(&roomMembers).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&ledger).Error
	})
	if err != nil {
		return nil, nil, translate(err, "failed to resolve room")
	}

	loaded, err := d.RoomMembers(ctx, room.ID)
	if err != nil {
		return nil, nil, err
	}
	if !sameMembers(loaded, ids) {
		return nil, nil, apperr.Integrity("room member set does not match its key", nil)
	}
	return &room, loaded, nil
}

func sameMembers(members []models.User, ids []uuid.UUID) bool {
	if len(members) != len(ids) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, m := range members {
		if !set[m.ID] {
			return false
		}
	}
	return true
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err, "room not found")
	}
	return &room, nil
}

// RoomMembers участники комнаты по имени
func (d *Database) RoomMembers(ctx context.Context, roomID uuid.UUID) ([]models.User, error) {
	return roomMembers(d.db.WithContext(ctx), roomID)
}

func roomMembers(tx *gorm.DB, roomID uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	err := tx.
		Joins("JOIN room_members ON room_members.user_id = users.id").
		Where("room_members.room_id = ?", roomID).
		Order("users.display_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "failed to load room members")
	}
	return users, nil
}

func (d *Database) IsRoomMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "failed to check membership")
	}
	return count > 0, nil
}

func (d *Database) UpdateRoomName(ctx context.Context, roomID uuid.UUID, name string) error {
	res := d.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("display_name", name)
	if res.Error != nil {
		return translate(res.Error, "failed to rename room")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("room not found")
	}
	return nil
}

// rekeyRooms пересчитывает member_key комнат после ухода участника. Если
// комната с таким набором уже есть, история переносится в неё.
func rekeyRooms(tx *gorm.DB, ids []uuid.UUID) error {
	for _, id := range ids {
		var memberIDs []uuid.UUID
		err := tx.Model(&models.RoomMember{}).Where("room_id = ?", id).Pluck("user_id", &memberIDs).Error
		if err != nil {
			return err
		}
		if len(memberIDs) <= 1 {
			continue
		}
		key := models.MemberKey(memberIDs)

		var existing models.Room
		err = tx.Where("member_key = ? AND id <> ?", key, id).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Model(&models.Room{}).Where("id = ?", id).Update("member_key", key).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := mergeRoom(tx, id, existing.ID); err != nil {
			return err
		}
	}
	return nil
}

// mergeRoom переносит сообщения и входящие из source в target и удаляет source
func mergeRoom(tx *gorm.DB, source, target uuid.UUID) error {
	unread := tx.Model(&models.UserRoomNotification{}).
		Select("user_id").
		Where(map[string]interface{}{"room_id": source, "read": false})
	err := tx.Model(&models.UserRoomNotification{}).
		Where("room_id = ? AND user_id IN (?)", target, unread).
		Update("read", false).Error
	if err != nil {
		return err
	}
	for _, model := range []interface{}{
		&models.Message{},
		&models.MessageNotification{},
	} {
		if err := tx.Model(model).Where("room_id = ?", source).Update("room_id", target).Error; err != nil {
			return err
		}
	}
	return deleteRooms(tx, []uuid.UUID{source})
}
