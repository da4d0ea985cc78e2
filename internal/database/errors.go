package database

import (
	"errors"

	"github.com/thereayou/voxnote/pkg/apperr"
	"gorm.io/gorm"
)

// translate переводит ошибку gorm в apperr. NotFound становится NOT_FOUND,
// остальное INTERNAL.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(msg, err)
}
