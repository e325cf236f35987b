// s3 реализует storage.Media поверх AWS S3 (aws-sdk-go-v2).
// Подходит и для S3-совместимых хранилищ: при заданном endpoint
// включается path-style адресация.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pribylovaa/shop-auth/internal/config"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// objectAPI — используемое подмножество *s3.Client.
type objectAPI interface {
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// MediaStorage — адаптер S3 для загрузки изображений профиля.
type MediaStorage struct {
	cfg    config.MediaConfig
	client objectAPI
}

// New собирает клиент S3 из конфига и проверяет доступность бакета.
func New(ctx context.Context, cfg config.MediaConfig) (*MediaStorage, error) {
	const op = "storage/s3/New"

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newWithClient(ctx, cfg, client)
}

func newWithClient(ctx context.Context, cfg config.MediaConfig, client objectAPI) (*MediaStorage, error) {
	const op = "storage/s3/New"

	if _, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("%s: bucket %q: %w", op, cfg.Bucket, err)
	}

	return &MediaStorage{cfg: cfg, client: client}, nil
}

// Upload кладёт файл в бакет под новым ключом.
// Несикабельное тело буферизуется: SDK подписывает payload целиком.
func (s *MediaStorage) Upload(ctx context.Context, file models.MediaFile) (models.MediaAsset, error) {
	const op = "storage/s3/Upload"

	body, ok := file.Body.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(file.Body)
		if err != nil {
			return models.MediaAsset{}, fmt.Errorf("%s: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	key := storage.MediaKey(file.ContentType)

	in := &awss3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if file.ContentType != "" {
		in.ContentType = aws.String(file.ContentType)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return models.MediaAsset{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.MediaAsset{
		URL:      storage.MediaURL(s.cfg.PublicBaseURL, s.endpoint(), s.cfg.Bucket, key),
		PublicID: key,
	}, nil
}

// Delete удаляет объект по ключу. S3 не сообщает об отсутствии ключа.
func (s *MediaStorage) Delete(ctx context.Context, publicID string) error {
	const op = "storage/s3/Delete"

	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *MediaStorage) endpoint() string {
	if s.cfg.Endpoint != "" {
		return s.cfg.Endpoint
	}

	return fmt.Sprintf("https://s3.%s.amazonaws.com", s.cfg.Region)
}

var _ storage.Media = (*MediaStorage)(nil)
