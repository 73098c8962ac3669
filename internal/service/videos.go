// videos.go — сервис списка видео.
// Координирует сессии хранилища, опциональный LRU-кэш и метрики.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// Prometheus-метрики списков.
var (
	listTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_video_list_total",
		Help: "Общее количество запросов списка видео.",
	})
	listDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_video_list_duration_seconds",
		Help:    "Длительность запросов списка видео.",
		Buckets: prometheus.DefBuckets,
	})
)

// VideoService — выдача списков VideoRecord.
// Одновременные промахи кэша по одному ключу схлопываются в один запрос к БД.
type VideoService struct {
	sessions repository.Sessions
	cache    *ListCache
	group    singleflight.Group
	logger   *slog.Logger
}

// NewVideoService создаёт сервис списков. cache может быть nil.
func NewVideoService(sessions repository.Sessions, cache *ListCache, logger *slog.Logger) *VideoService {
	return &VideoService{
		sessions: sessions,
		cache:    cache,
		logger:   logger.With(slog.String("component", "video_service")),
	}
}

// List возвращает записи владельца (или все при ownerID == nil),
// от новых к старым. Пустой результат — пустой срез.
func (s *VideoService) List(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error) {
	start := time.Now()
	listTotal.Inc()
	defer func() { listDuration.Observe(time.Since(start).Seconds()) }()

	if videos, ok := s.cache.Get(ctx, ownerID); ok {
		return videos, nil
	}

	v, err, shared := s.group.Do(listKey(ownerID), func() (any, error) {
		return s.load(ctx, ownerID)
	})
	if err != nil {
		return nil, err
	}
	videos := v.([]*model.VideoRecord)

	s.logger.Debug("Список видео",
		slog.Int("count", len(videos)),
		slog.Bool("scoped", ownerID != nil),
		slog.Bool("shared", shared),
	)
	return videos, nil
}

// load читает список из БД и кладёт его в кэш. Версия ключа читается
// до запроса: если загрузка видео сбросила список, пока шёл SELECT,
// снимок не попадёт в кэш.
func (s *VideoService) load(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error) {
	version, cacheable := s.cache.Version(ctx, ownerID)

	session, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("список видео: %w", err)
	}
	defer session.Release()

	videos, err := session.Videos().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("список видео: %w", err)
	}

	if cacheable {
		s.cache.SetIfVersion(ctx, ownerID, version, videos)
	}
	return videos, nil
}
