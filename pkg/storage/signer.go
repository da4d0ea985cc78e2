package storage

import (
	"errors"
	"net/http"
	"time"

	gcs "cloud.google.com/go/storage"
)

const uploadContentType = "audio/mp4"

// URLSigner выдаёт временные ссылки на объекты голосовых сообщений
type URLSigner interface {
	UploadURL(objectKey string) (string, error)
	DownloadURL(objectKey string) (string, error)
	TTL() time.Duration
}

// GCSSigner подписывает V4 ссылки ключом сервисного аккаунта, без обращений к сети
type GCSSigner struct {
	bucket     string
	accessID   string
	privateKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewGCSSigner(bucket, accessID string, privateKey []byte, ttl time.Duration) (*GCSSigner, error) {
	if bucket == "" || accessID == "" || len(privateKey) == 0 {
		return nil, errors.New("GCS bucket, access id and private key are required")
	}
	return &GCSSigner{
		bucket:     bucket,
		accessID:   accessID,
		privateKey: privateKey,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

func (s *GCSSigner) TTL() time.Duration { return s.ttl }

// UploadURL ссылка на PUT аудиофайла
func (s *GCSSigner) UploadURL(objectKey string) (string, error) {
	return s.sign(objectKey, http.MethodPut, uploadContentType)
}

func (s *GCSSigner) DownloadURL(objectKey string) (string, error) {
	return s.sign(objectKey, http.MethodGet, "")
}

func (s *GCSSigner) sign(objectKey, method, contentType string) (string, error) {
	return gcs.SignedURL(s.bucket, objectKey, &gcs.SignedURLOptions{
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
		Method:         method,
		ContentType:    contentType,
		Expires:        s.now().Add(s.ttl),
		Scheme:         gcs.SigningSchemeV4,
	})
}
