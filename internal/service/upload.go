// upload.go — сервис загрузки медиа.
// Изображение: одна загрузка в медиа-сервис, без записи в БД.
// Видео: загрузка в медиа-сервис, затем запись VideoRecord; если запись
// не удалась, ассет удаляется (компенсация, отключаемая конфигурацией).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// Prometheus-метрики загрузок.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_uploads_total",
		Help: "Общее количество загрузок по типу и результату.",
	}, []string{"kind", "status"})
	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_upload_duration_seconds",
		Help:    "Длительность загрузки в медиа-сервис.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})
	uploadBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_upload_bytes",
		Help:    "Размер загружаемого payload в байтах.",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	}, []string{"kind"})
	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_upload_compensations_total",
		Help: "Удаления ассетов после неудачной записи в БД.",
	}, []string{"result"})
)

// Статусы для лейбла status в mm_uploads_total.
const (
	statusOK            = "ok"
	statusUploadFailed  = "upload_failed"
	statusPersistFailed = "persist_failed"
	compensationOK      = "ok"
	compensationFailed  = "failed"
)

// VideoUpload — данные формы загрузки видео.
type VideoUpload struct {
	Payload  []byte
	Filename string
	// Title, Description, OriginalSize — как прислал клиент, без проверки.
	Title        string
	Description  string
	OriginalSize string
}

// UploadConfig — параметры UploadService.
type UploadConfig struct {
	ImageFolder string
	VideoFolder string
	// OwnerScoped — записывать владельца видео (иначе user_id = NULL).
	OwnerScoped bool
	// Compensate — удалять ассет, если запись в БД не удалась.
	Compensate bool
}

// UploadService — оркестрация загрузки и сохранения.
type UploadService struct {
	uploader media.Uploader
	sessions repository.Sessions
	cache    *ListCache
	cfg      UploadConfig
	logger   *slog.Logger
}

// NewUploadService создаёт сервис загрузки. cache может быть nil.
func NewUploadService(
	uploader media.Uploader,
	sessions repository.Sessions,
	cache *ListCache,
	cfg UploadConfig,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		uploader: uploader,
		sessions: sessions,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "upload_service")),
	}
}

// UploadImage загружает изображение в папку изображений.
func (s *UploadService) UploadImage(ctx context.Context, payload []byte, filename string) (*model.UploadResult, error) {
	res, err := s.upload(ctx, payload, model.MediaKindImage, media.Options{
		Folder:   s.cfg.ImageFolder,
		Filename: filename,
	})
	if err != nil {
		return nil, err
	}
	uploadsTotal.WithLabelValues(string(model.MediaKindImage), statusOK).Inc()

	s.logger.Info("Изображение загружено",
		slog.String("public_id", res.PublicID),
		slog.Int64("bytes", res.Bytes),
	)
	return res, nil
}

// UploadVideo загружает видео (q_auto,f_mp4) и сохраняет VideoRecord.
// userID — владелец; в глобальном режиме не записывается.
func (s *UploadService) UploadVideo(ctx context.Context, userID string, in VideoUpload) (*model.VideoRecord, error) {
	res, err := s.upload(ctx, in.Payload, model.MediaKindVideo, media.Options{
		Folder:         s.cfg.VideoFolder,
		Transformation: media.VideoTransformation,
		Filename:       in.Filename,
	})
	if err != nil {
		return nil, err
	}

	var ownerID *string
	if s.cfg.OwnerScoped {
		ownerID = &userID
	}

	record, err := s.persist(ctx, repository.CreateVideoParams{
		UserID:         ownerID,
		Title:          in.Title,
		Description:    in.Description,
		PublicID:       res.PublicID,
		OriginalSize:   in.OriginalSize,
		CompressedSize: strconv.FormatInt(res.Bytes, 10),
		Duration:       res.Duration,
	})
	if err != nil {
		uploadsTotal.WithLabelValues(string(model.MediaKindVideo), statusPersistFailed).Inc()
		s.compensate(ctx, res)
		return nil, err
	}
	uploadsTotal.WithLabelValues(string(model.MediaKindVideo), statusOK).Inc()
	s.cache.Invalidate(context.WithoutCancel(ctx), ownerID)

	s.logger.Info("Видео загружено",
		slog.String("id", record.ID),
		slog.String("public_id", record.PublicID),
		slog.String("user_id", userID),
		slog.String("compressed_size", record.CompressedSize),
		slog.Int("compression_percent", record.CompressionPercent()),
	)
	return record, nil
}

// upload — один вызов медиа-сервиса с метриками.
func (s *UploadService) upload(ctx context.Context, payload []byte, kind model.MediaKind, opts media.Options) (*model.UploadResult, error) {
	uploadBytes.WithLabelValues(string(kind)).Observe(float64(len(payload)))

	start := time.Now()
	res, err := s.uploader.Upload(ctx, payload, kind, opts)
	uploadDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		uploadsTotal.WithLabelValues(string(kind), statusUploadFailed).Inc()
		return nil, fmt.Errorf("загрузка %s: %w", kind, err)
	}
	return res, nil
}

// persist сохраняет запись в отдельной сессии. Сессия берётся после
// загрузки, чтобы не держать соединение во время долгого вызова.
func (s *UploadService) persist(ctx context.Context, params repository.CreateVideoParams) (*model.VideoRecord, error) {
	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("сохранение видео: %w", err)
	}
	defer session.Release()

	record, err := session.Videos().Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("сохранение видео: %w", err)
	}
	return record, nil
}

// compensate удаляет загруженный ассет. Отмена контекста клиента
// не прерывает удаление. Ошибка только логируется.
func (s *UploadService) compensate(ctx context.Context, res *model.UploadResult) {
	if !s.cfg.Compensate {
		s.logger.Warn("Ассет остался без записи в БД",
			slog.String("public_id", res.PublicID),
		)
		return
	}

	err := s.uploader.Destroy(context.WithoutCancel(ctx), res.PublicID, res.Kind)
	if err != nil {
		compensationsTotal.WithLabelValues(compensationFailed).Inc()
		s.logger.Error("Не удалось удалить ассет после ошибки записи",
			slog.String("public_id", res.PublicID),
			slog.String("error", err.Error()),
		)
		return
	}
	compensationsTotal.WithLabelValues(compensationOK).Inc()
	s.logger.Info("Ассет удалён после ошибки записи",
		slog.String("public_id", res.PublicID),
	)
}

// IsUploadFailure — ошибка медиа-сервиса (а не хранилища).
func IsUploadFailure(err error) bool {
	return errors.Is(err, media.ErrUploadFailure)
}
