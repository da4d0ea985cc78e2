package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/voxnote/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertUser находит пользователя по uid или создаёт его. Пустые phone и country
// не затирают сохранённые значения. Номер уникален: если он числился за другим
// uid, у того номер снимается.
func (d *Database) UpsertUser(ctx context.Context, username, phone, country string) (*models.User, error) {
	columns := []string{"updated_at"}
	if phone != "" {
		columns = append(columns, "phone_number")
	}
	if country != "" {
		columns = append(columns, "country_code")
	}

	user := models.User{Username: username, PhoneNumber: phone, CountryCode: country}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if phone != "" {
			err := tx.Model(&models.User{}).
				Where("phone_number = ? AND username <> ?", phone, username).
				Update("phone_number", "").Error
			if err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&user).Error
	})
	if err != nil {
		return nil, translate(err, "failed to save user")
	}
	return d.GetUserByUsername(ctx, username)
}

func (d *Database) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user not found")
	}
	return &user, nil
}

func (d *Database) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err, "user not found")
	}
	return &user, nil
}

func (d *Database) UpdateDisplayName(ctx context.Context, userID uuid.UUID, name string) error {
	err := d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("display_name", name).Error
	return translate(err, "failed to update display name")
}

// FindContacts зарегистрированные пользователи с номерами из списка, кроме exclude.
// Сортировка по отображаемому имени.
func (d *Database) FindContacts(ctx context.Context, phones []string, exclude uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	if len(phones) == 0 {
		return users, nil
	}
	err := d.db.WithContext(ctx).
		Where("phone_number IN ? AND id <> ?", phones, exclude).
		Order("display_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "failed to search contacts")
	}
	return users, nil
}

// DeleteAccount удаляет пользователя со всем, что на него ссылается, затем
// комнаты, где осталось не больше одного участника.
func (d *Database) DeleteAccount(ctx context.Context, username string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("username = ?", username).First(&user).Error; err != nil {
			return translate(err, "user not found")
		}

		var touched []uuid.UUID
		err := tx.Model(&models.RoomMember{}).Where("user_id = ?", user.ID).Pluck("room_id", &touched).Error
		if err != nil {
			return translate(err, "failed to load memberships")
		}

		own := func() *gorm.DB {
			return tx.Model(&models.Message{}).Select("id").Where("creator_id = ?", user.ID)
		}
		steps := []func() error{
			func() error {
				return tx.Where("receiver_id = ? OR message_id IN (?)", user.ID, own()).
					Delete(&models.MessageNotification{}).Error
			},
			func() error {
				return tx.Model(&models.UserRoomNotification{}).
					Where("latest_message_id IN (?)", own()).
					Update("latest_message_id", nil).Error
			},
			func() error {
				return tx.Model(&models.Report{}).
					Where("message_id IN (?)", own()).
					Update("message_id", nil).Error
			},
			func() error {
				return tx.Where("user_id = ?", user.ID).Delete(&models.UserRoomNotification{}).Error
			},
			func() error {
				return tx.Where("reporter_id = ? OR reported_user_id = ?", user.ID, user.ID).
					Delete(&models.Report{}).Error
			},
			func() error {
				return tx.Where("blocker_id = ? OR blocked_id = ?", user.ID, user.ID).
					Delete(&models.Block{}).Error
			},
			func() error { return tx.Where("creator_id = ?", user.ID).Delete(&models.Message{}).Error },
			func() error { return tx.Where("user_id = ?", user.ID).Delete(&models.RoomMember{}).Error },
			func() error { return tx.Delete(&user).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return translate(err, "failed to delete account")
			}
		}

		var orphaned []uuid.UUID
		err = tx.Model(&models.Room{}).
			Select("rooms.id").
			Joins("LEFT JOIN room_members ON room_members.room_id = rooms.id").
			Group("rooms.id").
			Having("COUNT(room_members.user_id) <= 1").
			Pluck("rooms.id", &orphaned).Error
		if err != nil {
			return translate(err, "failed to find orphaned rooms")
		}
		if err := deleteRooms(tx, orphaned); err != nil {
			return translate(err, "failed to delete orphaned rooms")
		}
		return translate(rekeyRooms(tx, touched), "failed to rekey rooms")
	})
}

// deleteRooms удаляет комнаты и всё, что в них лежит
func deleteRooms(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, model := range []interface{}{
		&models.MessageNotification{},
		&models.UserRoomNotification{},
	} {
		if err := tx.Where("room_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	msgs := tx.Model(&models.Message{}).Select("id").Where("room_id IN ?", ids)
	if err := tx.Model(&models.Report{}).Where("message_id IN (?)", msgs).Update("message_id", nil).Error; err != nil {
		return err
	}
	for _, model := range []interface{}{
		&models.Message{},
		&models.RoomMember{},
	} {
		if err := tx.Where("room_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.Room{}).Error
}
