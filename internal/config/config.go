// Пакет config — загрузка и валидация конфигурации Media Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранения медиа.
const (
	MediaBackendCloudinary = "cloudinary"
	MediaBackendS3         = "s3"
)

// Бэкенды кэша списков.
const (
	ListCacheBackendMemory = "memory"
	ListCacheBackendRedis  = "redis"
)

// Режимы выдачи списка видео.
const (
	// ListingModeGated — список доступен только аутентифицированным, фильтр по владельцу.
	ListingModeGated = "gated"
	// ListingModePublic — все записи без проверки identity.
	ListingModePublic = "public"
)

// Config содержит все параметры конфигурации Media Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Порог in-memory буфера multipart-формы (остальное уходит во временные файлы)
	UploadMaxMemory int64

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Identity provider (JWT / JWKS) ---

	// URL JWKS endpoint провайдера идентичности
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Допустимые значения claim azp (пусто — не проверяется)
	JWTAuthorizedParties []string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Путь к CA-сертификату для JWKS (опционально)
	JWKSCACertPath string

	// --- Медиа-сервис ---

	// Бэкенд: cloudinary или s3
	MediaBackend string
	// Таймаут одного вызова медиа-сервиса
	MediaUploadTimeout time.Duration
	// Удалять загруженный ассет, если запись в БД не удалась
	MediaCompensate bool
	// Папка для изображений
	ImageFolder string
	// Папка для видео
	VideoFolder string

	CloudinaryCloudName   string
	CloudinaryAPIKey      string
	CloudinaryAPISecret   string
	CloudinaryAPIURL      string
	CloudinaryDeliveryURL string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// --- Поведение API ---

	// Режим GET /api/videos: gated или public
	ListingMode string
	// Записывать владельца при загрузке видео
	VideoOwnerScoped bool
	// Максимальный размер кэша списков
	ListCacheSize int
	// TTL кэша списков (0 — кэш отключён)
	ListCacheTTL time.Duration
	// Бэкенд кэша: memory (на экземпляр) или redis (общий)
	ListCacheBackend string
	// Публичные страницы для Route Gate
	PublicRoutes []string
	// Публичные API для Route Gate
	PublicAPIRoutes []string

	// --- Redis (MM_LIST_CACHE_BACKEND=redis) ---

	RedisAddrs      []string
	RedisMasterName string
	RedisUsername   string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string
	RedisTimeout    time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("MM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("MM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MM_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MM_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("MM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("MM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_READ_TIMEOUT: %w", err)
	}
	// Запись ответа ждёт завершения загрузки видео в медиа-сервис
	cfg.HTTPWriteTimeout, err = getEnvDuration("MM_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("MM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	maxMemory, err := getEnvInt("MM_UPLOAD_MAX_MEMORY", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("MM_UPLOAD_MAX_MEMORY: %w", err)
	}
	if maxMemory <= 0 {
		return nil, fmt.Errorf("MM_UPLOAD_MAX_MEMORY: значение должно быть > 0")
	}
	cfg.UploadMaxMemory = int64(maxMemory)

	cfg.ShutdownTimeout, err = getEnvDuration("MM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("MM_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("MM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MM_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("MM_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("MM_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("MM_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("MM_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("MM_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Identity provider ---

	if cfg.JWTJWKSURL, err = getEnvRequired("MM_JWT_JWKS_URL"); err != nil {
		return nil, err
	}
	cfg.JWTIssuer = os.Getenv("MM_JWT_ISSUER")
	cfg.JWTAuthorizedParties = parseCSV(os.Getenv("MM_JWT_AUTHORIZED_PARTIES"))
	cfg.JWTLeeway, err = getEnvDuration("MM_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSClientTimeout, err = getEnvDurationPositive("MM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationPositive("MM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWKSCACertPath = os.Getenv("MM_JWKS_CA_CERT_PATH")

	// --- Медиа-сервис ---

	if err := loadMedia(cfg); err != nil {
		return nil, err
	}

	// --- Поведение API ---

	cfg.ListingMode = getEnvDefault("MM_LISTING_MODE", ListingModeGated)
	if cfg.ListingMode != ListingModeGated && cfg.ListingMode != ListingModePublic {
		return nil, fmt.Errorf("MM_LISTING_MODE: недопустимое значение %q, допустимые: gated, public", cfg.ListingMode)
	}
	cfg.VideoOwnerScoped, err = getEnvBool("MM_VIDEO_OWNER_SCOPED", true)
	if err != nil {
		return nil, fmt.Errorf("MM_VIDEO_OWNER_SCOPED: %w", err)
	}
	cfg.ListCacheSize, err = getEnvInt("MM_LIST_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("MM_LIST_CACHE_SIZE: %w", err)
	}
	if cfg.ListCacheSize < 1 {
		return nil, fmt.Errorf("MM_LIST_CACHE_SIZE: значение должно быть > 0")
	}
	cfg.ListCacheTTL, err = getEnvDuration("MM_LIST_CACHE_TTL", 0)
	if err != nil {
		return nil, fmt.Errorf("MM_LIST_CACHE_TTL: %w", err)
	}
	if err := loadListCacheBackend(cfg); err != nil {
		return nil, err
	}
	cfg.PublicRoutes = parseCSV(getEnvDefault("MM_PUBLIC_ROUTES", "/sign-in,/sign-up,/"))
	cfg.PublicAPIRoutes = parseCSV(getEnvDefault("MM_PUBLIC_API_ROUTES", "/api/videos"))

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("MM_DEPHEALTH_GROUP", "artstore")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("MM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// loadMedia загружает параметры медиа-бэкенда.
// Обязательные переменные зависят от MM_MEDIA_BACKEND.
func loadMedia(cfg *Config) error {
	var err error

	cfg.MediaBackend = getEnvDefault("MM_MEDIA_BACKEND", MediaBackendCloudinary)
	cfg.MediaUploadTimeout, err = getEnvDurationPositive("MM_MEDIA_UPLOAD_TIMEOUT", 5*time.Minute)
	if err != nil {
		return fmt.Errorf("MM_MEDIA_UPLOAD_TIMEOUT: %w", err)
	}
	cfg.MediaCompensate, err = getEnvBool("MM_MEDIA_COMPENSATE", true)
	if err != nil {
		return fmt.Errorf("MM_MEDIA_COMPENSATE: %w", err)
	}
	cfg.ImageFolder = getEnvDefault("MM_IMAGE_FOLDER", "bit-craft-image-uploads")
	cfg.VideoFolder = getEnvDefault("MM_VIDEO_FOLDER", "video-uploads")

	switch cfg.MediaBackend {
	case MediaBackendCloudinary:
		if cfg.CloudinaryCloudName, err = getEnvRequired("MM_CLOUDINARY_CLOUD_NAME"); err != nil {
			return err
		}
		if cfg.CloudinaryAPIKey, err = getEnvRequired("MM_CLOUDINARY_API_KEY"); err != nil {
			return err
		}
		if cfg.CloudinaryAPISecret, err = getEnvRequired("MM_CLOUDINARY_API_SECRET"); err != nil {
			return err
		}
		cfg.CloudinaryAPIURL = strings.TrimRight(getEnvDefault("MM_CLOUDINARY_API_URL", "https://api.cloudinary.com"), "/")
		cfg.CloudinaryDeliveryURL = strings.TrimRight(getEnvDefault("MM_CLOUDINARY_DELIVERY_URL", "https://res.cloudinary.com"), "/")
	case MediaBackendS3:
		if cfg.S3Bucket, err = getEnvRequired("MM_S3_BUCKET"); err != nil {
			return err
		}
		cfg.S3Endpoint = os.Getenv("MM_S3_ENDPOINT")
		cfg.S3Region = getEnvDefault("MM_S3_REGION", "us-east-1")
		cfg.S3AccessKey = os.Getenv("MM_S3_ACCESS_KEY")
		cfg.S3SecretKey = os.Getenv("MM_S3_SECRET_KEY")
		if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
			return fmt.Errorf("MM_S3_ACCESS_KEY и MM_S3_SECRET_KEY задаются только вместе")
		}
	default:
		return fmt.Errorf("MM_MEDIA_BACKEND: недопустимое значение %q, допустимые: cloudinary, s3", cfg.MediaBackend)
	}

	return nil
}

// loadListCacheBackend загружает бэкенд кэша списков и параметры Redis.
func loadListCacheBackend(cfg *Config) error {
	var err error

	cfg.ListCacheBackend = getEnvDefault("MM_LIST_CACHE_BACKEND", ListCacheBackendMemory)
	switch cfg.ListCacheBackend {
	case ListCacheBackendMemory:
		return nil
	case ListCacheBackendRedis:
	default:
		return fmt.Errorf("MM_LIST_CACHE_BACKEND: недопустимое значение %q, допустимые: memory, redis", cfg.ListCacheBackend)
	}

	cfg.RedisAddrs = parseCSV(os.Getenv("MM_REDIS_ADDRS"))
	if len(cfg.RedisAddrs) == 0 {
		return fmt.Errorf("MM_REDIS_ADDRS: обязательная переменная окружения не задана")
	}
	cfg.RedisMasterName = os.Getenv("MM_REDIS_MASTER_NAME")
	cfg.RedisUsername = os.Getenv("MM_REDIS_USERNAME")
	cfg.RedisPassword = os.Getenv("MM_REDIS_PASSWORD")
	cfg.RedisDB, err = getEnvInt("MM_REDIS_DB", 0)
	if err != nil {
		return fmt.Errorf("MM_REDIS_DB: %w", err)
	}
	if cfg.RedisDB < 0 {
		return fmt.Errorf("MM_REDIS_DB: значение должно быть >= 0")
	}
	cfg.RedisKeyPrefix = getEnvDefault("MM_REDIS_KEY_PREFIX", "mm:videos:")
	cfg.RedisTimeout, err = getEnvDurationPositive("MM_REDIS_TIMEOUT", 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("MM_REDIS_TIMEOUT: %w", err)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL (keyword/value).
// Значения в одинарных кавычках, поэтому пробелы и кавычки в пароле допустимы.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		quoteDSN(c.DBHost), c.DBPort, quoteDSN(c.DBName), quoteDSN(c.DBUser),
		quoteDSN(c.DBPassword), quoteDSN(c.DBSSLMode),
	)
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteDSN экранирует \ и ' и оборачивает значение в одинарные кавычки.
func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает список через запятую, пропуская пустые элементы.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}
