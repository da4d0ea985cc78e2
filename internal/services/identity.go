package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/thereayou/voxnote/internal/database"
	"github.com/thereayou/voxnote/internal/models"
	"github.com/thereayou/voxnote/internal/workers"
	"github.com/thereayou/voxnote/pkg/apperr"
	"github.com/thereayou/voxnote/pkg/auth"
	"github.com/thereayou/voxnote/pkg/phone"
)

const blacklistPrefix = "blacklist:"

// IdentityService проверяет токен и возвращает пользователя, создавая его при первом входе
type IdentityService struct {
	jwt   *auth.JWTManager
	db    *database.Database
	redis *redis.Client
	pool  *workers.Pool
}

func NewIdentityService(jwt *auth.JWTManager, db *database.Database, rdb *redis.Client, pool *workers.Pool) *IdentityService {
	return &IdentityService{jwt: jwt, db: db, redis: rdb, pool: pool}
}

// Authenticate проверяет токен и обновляет номер и страну пользователя.
// country пустая или не из двух букв не меняет сохранённую.
func (s *IdentityService) Authenticate(ctx context.Context, token, country string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthenticated("missing token")
	}

	exists, err := s.redis.Exists(ctx, blacklistPrefix+token).Result()
	if err != nil {
		return nil, apperr.Internal("failed to check token", err)
	}
	if exists > 0 {
		return nil, apperr.Unauthenticated("token is blacklisted")
	}

	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid token")
	}

	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		country = ""
	}

	number := claims.PhoneNumber
	if number != "" {
		if normalized, ok := phone.Normalize(number, country); ok {
			number = normalized
		}
	}

	return workers.Do(ctx, s.pool, func(ctx context.Context) (*models.User, error) {
		return s.db.UpsertUser(ctx, claims.Subject, number, country)
	})
}

// Revoke кладёт токен в черный список до его истечения
func (s *IdentityService) Revoke(ctx context.Context, token string) error {
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return apperr.Unauthenticated("invalid token")
	}
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistPrefix+token, 1, ttl).Err(); err != nil {
		return apperr.Internal("failed to revoke token", err)
	}
	return nil
}
