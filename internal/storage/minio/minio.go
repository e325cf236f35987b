// minio реализует storage.Media поверх MinIO (minio-go/v7).
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/shop-auth/internal/config"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// MediaStorage — адаптер MinIO для загрузки изображений профиля.
type MediaStorage struct {
	cfg    config.MediaConfig
	client *mclient.Client
}

// New создает клиент MinIO.
// Схема endpoint определяет Secure; отсутствие бакета — ошибка старта.
func New(ctx context.Context, cfg config.MediaConfig) (*MediaStorage, error) {
	const op = "storage/minio/New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &MediaStorage{cfg: cfg, client: client}, nil
}

// Upload кладёт файл в бакет под новым ключом.
func (s *MediaStorage) Upload(ctx context.Context, file models.MediaFile) (models.MediaAsset, error) {
	const op = "storage/minio/Upload"

	key := storage.MediaKey(file.ContentType)

	size := file.Size
	if size <= 0 {
		size = -1
	}

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, file.Body, size, mclient.PutObjectOptions{
		ContentType: file.ContentType,
	})
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.MediaAsset{
		URL:      storage.MediaURL(s.cfg.PublicBaseURL, s.cfg.Endpoint, s.cfg.Bucket, key),
		PublicID: key,
	}, nil
}

// Delete удаляет объект. Отсутствующий ключ ошибкой не считается.
func (s *MediaStorage) Delete(ctx context.Context, publicID string) error {
	const op = "storage/minio/Delete"

	err := s.client.RemoveObject(ctx, s.cfg.Bucket, publicID, mclient.RemoveObjectOptions{})
	if err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == 404 {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

var _ storage.Media = (*MediaStorage)(nil)
