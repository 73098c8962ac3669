// Пакет service — бизнес-логика Media Module.
// ListCache — кэш списков видео с TTL.
// Бэкенды: локальный LRU (hashicorp/golang-lru/v2/expirable)
// или общий для всех реплик Redis (cache_redis.go).
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_list_cache_hits_total",
		Help: "Общее количество попаданий в кэш списков видео.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_list_cache_misses_total",
		Help: "Общее количество промахов кэша списков видео.",
	})
	cacheErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_list_cache_errors_total",
		Help: "Общее количество ошибок бэкенда кэша списков видео.",
	})
	cacheStaleWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_list_cache_stale_writes_total",
		Help: "Общее количество списков, не записанных в кэш из-за сброса во время загрузки.",
	})
)

// globalListKey — ключ списка всех записей (ownerID == nil).
const globalListKey = "*"

// listStore — бэкенд кэша. Ошибка бэкенда не фатальна: ListCache
// считает её промахом и идёт в БД.
//
// У каждого ключа есть версия: invalidate увеличивает её, а setIfVersion
// пишет список, только если версия не менялась. Так снимок БД, прочитанный
// до загрузки, не перезапишет сброс, случившийся во время чтения.
type listStore interface {
	get(ctx context.Context, key string) ([]*model.VideoRecord, bool, error)
	set(ctx context.Context, key string, videos []*model.VideoRecord) error
	version(ctx context.Context, key string) (uint64, error)
	setIfVersion(ctx context.Context, key string, version uint64, videos []*model.VideoRecord) (bool, error)
	invalidate(ctx context.Context, keys ...string) error
	len() int
}

// ListCache — кэш результатов ListByOwner.
// Ключ — владелец или globalListKey для полного списка.
type ListCache struct {
	store  listStore
	logger *slog.Logger
}

// NewListCache создаёт локальный кэш экземпляра. При ttl <= 0 возвращает nil:
// кэш отключён, все методы nil-receiver безопасны.
func NewListCache(maxSize int, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		return nil
	}
	return &ListCache{
		store: &lruStore{
			cache:    expirable.NewLRU[string, []*model.VideoRecord](maxSize, nil, ttl),
			versions: make(map[string]uint64),
		},
		logger: slog.Default(),
	}
}

// listKey — ключ кэша для владельца.
func listKey(ownerID *string) string {
	if ownerID == nil {
		return globalListKey
	}
	return "owner:" + *ownerID
}

// Get возвращает список из кэша. Обновляет Prometheus-метрики hit/miss.
func (c *ListCache) Get(ctx context.Context, ownerID *string) ([]*model.VideoRecord, bool) {
	if c == nil {
		return nil, false
	}
	val, ok, err := c.store.get(ctx, listKey(ownerID))
	if err != nil {
		cacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка чтения кэша списков", slog.String("error", err.Error()))
	}
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет список без проверки версии.
func (c *ListCache) Set(ctx context.Context, ownerID *string, videos []*model.VideoRecord) {
	if c == nil {
		return
	}
	if err := c.store.set(ctx, listKey(ownerID), videos); err != nil {
		cacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка записи кэша списков", slog.String("error", err.Error()))
	}
}

// Version возвращает текущую версию списка. Читать её нужно до запроса в БД.
// false — кэш отключён или недоступен, результат загрузки не кэшируется.
func (c *ListCache) Version(ctx context.Context, ownerID *string) (uint64, bool) {
	if c == nil {
		return 0, false
	}
	v, err := c.store.version(ctx, listKey(ownerID))
	if err != nil {
		cacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка чтения версии кэша списков", slog.String("error", err.Error()))
		return 0, false
	}
	return v, true
}

// SetIfVersion сохраняет список, если с момента Version ключ не сбрасывался.
// Возвращает false, если запись пропущена.
func (c *ListCache) SetIfVersion(ctx context.Context, ownerID *string, version uint64, videos []*model.VideoRecord) bool {
	if c == nil {
		return false
	}
	ok, err := c.store.setIfVersion(ctx, listKey(ownerID), version, videos)
	if err != nil {
		cacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка записи кэша списков", slog.String("error", err.Error()))
		return false
	}
	if !ok {
		cacheStaleWritesTotal.Inc()
		c.logger.Debug("Список устарел во время загрузки, в кэш не записан",
			slog.String("key", listKey(ownerID)),
		)
	}
	return ok
}

// Invalidate сбрасывает список владельца и полный список
// (новая запись попадает в оба) и увеличивает их версии.
func (c *ListCache) Invalidate(ctx context.Context, ownerID *string) {
	if c == nil {
		return
	}
	keys := []string{globalListKey}
	if ownerID != nil {
		keys = append(keys, listKey(ownerID))
	}
	if err := c.store.invalidate(ctx, keys...); err != nil {
		cacheErrorsTotal.Inc()
		c.logger.Warn("Ошибка сброса кэша списков", slog.String("error", err.Error()))
	}
}

// Len возвращает количество списков в локальном кэше (0 для Redis).
func (c *ListCache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.len()
}

// lruStore — локальный LRU с TTL.
// Версии живут отдельно от LRU: вытеснение списка не должно сбрасывать версию.
type lruStore struct {
	cache *expirable.LRU[string, []*model.VideoRecord]

	mu       sync.Mutex
	versions map[string]uint64
}

func (s *lruStore) get(_ context.Context, key string) ([]*model.VideoRecord, bool, error) {
	val, ok := s.cache.Get(key)
	return val, ok, nil
}

func (s *lruStore) set(_ context.Context, key string, videos []*model.VideoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, videos)
	return nil
}

func (s *lruStore) version(_ context.Context, key string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[key], nil
}

func (s *lruStore) setIfVersion(_ context.Context, key string, version uint64, videos []*model.VideoRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[key] != version {
		return false, nil
	}
	s.cache.Add(key, videos)
	return true, nil
}

func (s *lruStore) invalidate(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.versions[k]++
		s.cache.Remove(k)
	}
	return nil
}

func (s *lruStore) len() int {
	return s.cache.Len()
}
