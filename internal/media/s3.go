// s3.go — бэкенд медиа-хранилища на S3-совместимом объектном хранилище.
// PublicID ассета — ключ объекта: {folder}/{uuid}{ext}.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// S3Config — параметры подключения к объектному хранилищу.
type S3Config struct {
	// Endpoint — базовый URL (MinIO и т.п.); пусто — AWS по региону
	Endpoint string
	Region   string
	Bucket   string
	// AccessKey/SecretKey — статические ключи; пусто — цепочка по умолчанию
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// s3API — подмножество *s3.Client, используемое адаптером.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 — реализация Uploader поверх S3.
type S3 struct {
	client  s3API
	bucket  string
	timeout time.Duration
	newKey  func() string
	logger  *slog.Logger
}

// NewS3 создаёт клиент объектного хранилища.
func NewS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3WithClient(client, cfg.Bucket, cfg.Timeout, logger), nil
}

// newS3WithClient собирает адаптер на готовом клиенте (используется в тестах).
func newS3WithClient(client s3API, bucket string, timeout time.Duration, logger *slog.Logger) *S3 {
	return &S3{
		client:  client,
		bucket:  bucket,
		timeout: timeout,
		newKey:  func() string { return uuid.New().String() },
		logger:  logger.With(slog.String("component", "s3_media")),
	}
}

// Upload кладёт payload объектом в бакет. Трансформации не поддерживаются,
// размер — длина payload, длительность неизвестна (0).
func (s *S3) Upload(ctx context.Context, payload []byte, kind model.MediaKind, opts Options) (*model.UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ext := strings.ToLower(path.Ext(opts.Filename))
	key := s.newKey() + ext
	if opts.Folder != "" {
		key = opts.Folder + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(http.DetectContentType(payload)),
		Metadata:    map[string]string{"kind": string(kind)},
	})
	if err != nil {
		return nil, uploadFailure("PutObject %s: %w", key, err)
	}

	s.logger.Debug("Объект загружен",
		slog.String("key", key),
		slog.String("kind", string(kind)),
		slog.Int("bytes", len(payload)),
	)

	return &model.UploadResult{
		PublicID: key,
		Bytes:    int64(len(payload)),
		Format:   strings.TrimPrefix(ext, "."),
		Kind:     kind,
	}, nil
}

// Destroy удаляет объект по ключу.
func (s *S3) Destroy(ctx context.Context, publicID string, _ model.MediaKind) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	}); err != nil {
		return fmt.Errorf("DeleteObject %s: %w", publicID, err)
	}
	return nil
}
