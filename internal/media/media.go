// Пакет media — адаптер медиа-сервиса: загрузка изображений и видео
// во внешнее хранилище ассетов и удаление загруженных ассетов.
//
// Бэкенды:
//   - cloudinary — подписанная загрузка через REST API медиа-сервиса;
//   - s3 — S3-совместимое объектное хранилище (aws-sdk-go-v2).
//
// Каждый вызов — одна попытка без повторов, ограниченная таймаутом.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/media-module/internal/config"
	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// ErrUploadFailure — медиа-сервис отклонил загрузку, недоступен,
// не ответил вовремя или вернул некорректный результат.
var ErrUploadFailure = errors.New("ошибка загрузки в медиа-сервис")

// VideoTransformation — входная трансформация видео: авто-качество, формат mp4.
const VideoTransformation = "q_auto,f_mp4"

// Options — параметры одной загрузки.
type Options struct {
	// Folder — папка назначения
	Folder string
	// Transformation — директива обработки (только видео), например q_auto,f_mp4
	Transformation string
	// Filename — исходное имя файла от клиента (для расширения и content type)
	Filename string
}

// Uploader — контракт адаптера медиа-сервиса.
type Uploader interface {
	// Upload сохраняет payload. При успехе PublicID не пуст, Bytes заполнен;
	// для видео также Duration (0, если бэкенд её не сообщает).
	// Любой сбой оборачивает ErrUploadFailure.
	Upload(ctx context.Context, payload []byte, kind model.MediaKind, opts Options) (*model.UploadResult, error)
	// Destroy удаляет ранее загруженный ассет.
	Destroy(ctx context.Context, publicID string, kind model.MediaKind) error
}

// New создаёт адаптер выбранного в конфигурации бэкенда.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Uploader, error) {
	switch cfg.MediaBackend {
	case config.MediaBackendCloudinary:
		return NewCloudinary(CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			APIURL:    cfg.CloudinaryAPIURL,
			Timeout:   cfg.MediaUploadTimeout,
		}, logger), nil
	case config.MediaBackendS3:
		return NewS3(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Timeout:   cfg.MediaUploadTimeout,
		}, logger)
	default:
		return nil, fmt.Errorf("неизвестный медиа-бэкенд %q", cfg.MediaBackend)
	}
}

// uploadFailure оборачивает причину в ErrUploadFailure.
func uploadFailure(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrUploadFailure, fmt.Errorf(format, args...))
}
