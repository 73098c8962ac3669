// cache_redis.go — бэкенд кэша списков в Redis.
// Списки хранятся JSON-строками с TTL; общий для всех реплик,
// поэтому загрузка на одной реплике сбрасывает список на всех.
// Рядом со списком лежит счётчик версии ({key}:ver): запись списка идёт
// через WATCH на счётчик, сброс увеличивает его через INCR.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// DefaultRedisKeyPrefix — префикс ключей кэша по умолчанию.
const DefaultRedisKeyPrefix = "mm:videos:"

// redisVersionTTL — время жизни счётчика версии. Должно превышать
// длительность любой загрузки списка из БД.
const redisVersionTTL = 24 * time.Hour

// RedisCacheConfig — параметры Redis-кэша списков.
type RedisCacheConfig struct {
	// Addrs — адреса узлов (один адрес, кластер или sentinel)
	Addrs []string
	// MasterName — имя master для sentinel (пусто — не sentinel)
	MasterName string
	Username   string
	Password   string
	DB         int
	// KeyPrefix — префикс ключей (по умолчанию DefaultRedisKeyPrefix)
	KeyPrefix string
	// TTL — время жизни списка
	TTL time.Duration
	// Timeout — таймаут одной операции
	Timeout time.Duration
}

// NewRedisClient создаёт клиент go-redis по конфигурации.
func NewRedisClient(cfg RedisCacheConfig) (redis.UniversalClient, error) {
	addrs := make([]string, 0, len(cfg.Addrs))
	for _, a := range cfg.Addrs {
		if trimmed := strings.TrimSpace(a); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("redis: не задан ни один адрес")
	}

	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		MasterName:   strings.TrimSpace(cfg.MasterName),
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   2,
	}), nil
}

// NewRedisListCache создаёт кэш списков поверх клиента Redis.
// При cfg.TTL <= 0 возвращает nil (кэш отключён).
func NewRedisListCache(client redis.UniversalClient, cfg RedisCacheConfig, logger *slog.Logger) *ListCache {
	if cfg.TTL <= 0 {
		return nil
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &ListCache{
		store: &redisStore{
			client:  client,
			prefix:  prefix,
			ttl:     cfg.TTL,
			timeout: cfg.Timeout,
		},
		logger: logger.With(slog.String("component", "list_cache")),
	}
}

// redisStore — listStore в Redis.
type redisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// opContext ограничивает операцию таймаутом, чтобы медленный Redis
// не задерживал ответ дольше, чем запрос в БД.
func (s *redisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// dataKey — ключ списка. Hash tag {…} держит список и его версию
// в одном слоте Redis Cluster, иначе WATCH + MULTI невозможен.
func (s *redisStore) dataKey(key string) string {
	return s.prefix + "{" + key + "}"
}

func (s *redisStore) versionKey(key string) string {
	return s.dataKey(key) + ":ver"
}

func (s *redisStore) get(ctx context.Context, key string) ([]*model.VideoRecord, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, s.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var videos []*model.VideoRecord
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, false, fmt.Errorf("разбор кэша %s: %w", key, err)
	}
	if videos == nil {
		videos = []*model.VideoRecord{}
	}
	return videos, true, nil
}

func marshalList(key string, videos []*model.VideoRecord) ([]byte, error) {
	if videos == nil {
		videos = []*model.VideoRecord{}
	}
	data, err := json.Marshal(videos)
	if err != nil {
		return nil, fmt.Errorf("сериализация списка %s: %w", key, err)
	}
	return data, nil
}

func (s *redisStore) set(ctx context.Context, key string, videos []*model.VideoRecord) error {
	data, err := marshalList(key, videos)
	if err != nil {
		return err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.dataKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// version читает счётчик; отсутствующий счётчик — версия 0.
func (s *redisStore) version(ctx context.Context, key string) (uint64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	v, err := s.client.Get(ctx, s.versionKey(key)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", s.versionKey(key), err)
	}
	return v, nil
}

func (s *redisStore) setIfVersion(ctx context.Context, key string, version uint64, videos []*model.VideoRecord) (bool, error) {
	data, err := marshalList(key, videos)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	verKey := s.versionKey(key)
	written := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.dataKey(key), data, s.ttl)
			return nil
		})
		if err == nil {
			written = true
		}
		return err
	}, verKey)
	// Счётчик изменился между WATCH и EXEC — сброс случился во время записи
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return written, nil
}

// invalidate увеличивает версии и удаляет списки. Команды идут по ключу,
// чтобы конвейер работал и в Redis Cluster.
func (s *redisStore) invalidate(ctx context.Context, keys ...string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Incr(ctx, s.versionKey(k))
			pipe.Expire(ctx, s.versionKey(k), redisVersionTTL)
			pipe.Del(ctx, s.dataKey(k))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func (s *redisStore) len() int {
	return 0
}

// RedisReadinessChecker — проверка доступности Redis для /health/ready.
// Недоступный кэш не блокирует работу: статус degraded, не fail.
type RedisReadinessChecker struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedisReadinessChecker создаёт checker.
func NewRedisReadinessChecker(client redis.UniversalClient, timeout time.Duration) *RedisReadinessChecker {
	return &RedisReadinessChecker{client: client, timeout: timeout}
}

// CheckReady выполняет PING.
func (c *RedisReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return "degraded", fmt.Sprintf("Redis недоступен: %v", err)
	}
	return "ok", "Redis доступен"
}
