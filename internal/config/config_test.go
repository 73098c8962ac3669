package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"MM_DB_HOST":               "localhost",
		"MM_DB_NAME":               "media",
		"MM_DB_USER":               "media",
		"MM_DB_PASSWORD":           "secret",
		"MM_JWT_JWKS_URL":          "https://idp.test/.well-known/jwks.json",
		"MM_CLOUDINARY_CLOUD_NAME": "demo",
		"MM_CLOUDINARY_API_KEY":    "key",
		"MM_CLOUDINARY_API_SECRET": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидается 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.MediaBackend != MediaBackendCloudinary {
		t.Errorf("MediaBackend = %q, ожидается cloudinary", cfg.MediaBackend)
	}
	if cfg.CloudinaryAPIURL != "https://api.cloudinary.com" {
		t.Errorf("CloudinaryAPIURL = %q", cfg.CloudinaryAPIURL)
	}
	if cfg.ImageFolder != "bit-craft-image-uploads" {
		t.Errorf("ImageFolder = %q, ожидается bit-craft-image-uploads", cfg.ImageFolder)
	}
	if cfg.VideoFolder != "video-uploads" {
		t.Errorf("VideoFolder = %q, ожидается video-uploads", cfg.VideoFolder)
	}
	if cfg.MediaUploadTimeout != 5*time.Minute {
		t.Errorf("MediaUploadTimeout = %v, ожидается 5m", cfg.MediaUploadTimeout)
	}
	if !cfg.MediaCompensate {
		t.Error("MediaCompensate = false, ожидается true")
	}
	if cfg.ListingMode != ListingModeGated {
		t.Errorf("ListingMode = %q, ожидается gated", cfg.ListingMode)
	}
	if !cfg.VideoOwnerScoped {
		t.Error("VideoOwnerScoped = false, ожидается true")
	}
	if cfg.ListCacheTTL != 0 {
		t.Errorf("ListCacheTTL = %v, ожидается 0 (кэш отключён)", cfg.ListCacheTTL)
	}
	if len(cfg.PublicRoutes) != 3 || cfg.PublicRoutes[2] != "/" {
		t.Errorf("PublicRoutes = %v, ожидается [/sign-in /sign-up /]", cfg.PublicRoutes)
	}
	if len(cfg.PublicAPIRoutes) != 1 || cfg.PublicAPIRoutes[0] != "/api/videos" {
		t.Errorf("PublicAPIRoutes = %v, ожидается [/api/videos]", cfg.PublicAPIRoutes)
	}
	if cfg.ListCacheBackend != ListCacheBackendMemory {
		t.Errorf("ListCacheBackend = %q, ожидается memory", cfg.ListCacheBackend)
	}
	if cfg.UploadMaxMemory != 32<<20 {
		t.Errorf("UploadMaxMemory = %d, ожидается 32 MiB", cfg.UploadMaxMemory)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"MM_DB_HOST", "MM_DB_NAME", "MM_DB_USER", "MM_DB_PASSWORD",
		"MM_JWT_JWKS_URL", "MM_CLOUDINARY_CLOUD_NAME", "MM_CLOUDINARY_API_KEY", "MM_CLOUDINARY_API_SECRET",
	}

	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			envs := minimalEnvs()
			envs[key] = ""
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() без %s должен вернуть ошибку", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("ошибка %q должна содержать имя переменной %s", err.Error(), key)
			}
		})
	}
}

func TestLoad_S3Backend(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "MM_CLOUDINARY_CLOUD_NAME")
	envs["MM_MEDIA_BACKEND"] = "s3"
	envs["MM_S3_BUCKET"] = "media"
	envs["MM_S3_ENDPOINT"] = "http://minio:9000"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.S3Bucket != "media" {
		t.Errorf("S3Bucket = %q, ожидается media", cfg.S3Bucket)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, ожидается us-east-1", cfg.S3Region)
	}
}

func TestLoad_S3PartialCredentials(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_MEDIA_BACKEND"] = "s3"
	envs["MM_S3_BUCKET"] = "media"
	envs["MM_S3_ACCESS_KEY"] = "only-key"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Fatal("Load() с неполными S3-учётными данными должен вернуть ошибку")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "порт не число", key: "MM_PORT", value: "abc"},
		{name: "порт вне диапазона", key: "MM_PORT", value: "70000"},
		{name: "уровень логов", key: "MM_LOG_LEVEL", value: "verbose"},
		{name: "формат логов", key: "MM_LOG_FORMAT", value: "xml"},
		{name: "ssl mode", key: "MM_DB_SSL_MODE", value: "prefer-maybe"},
		{name: "бэкенд", key: "MM_MEDIA_BACKEND", value: "ftp"},
		{name: "режим списка", key: "MM_LISTING_MODE", value: "private"},
		{name: "таймаут медиа", key: "MM_MEDIA_UPLOAD_TIMEOUT", value: "0s"},
		{name: "булево", key: "MM_VIDEO_OWNER_SCOPED", value: "maybe"},
		{name: "размер кэша", key: "MM_LIST_CACHE_SIZE", value: "0"},
		{name: "длительность", key: "MM_LIST_CACHE_TTL", value: "soon"},
		{name: "бэкенд кэша", key: "MM_LIST_CACHE_BACKEND", value: "memcached"},
		{name: "redis без адресов", key: "MM_LIST_CACHE_BACKEND", value: "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Fatalf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_PublicListingMode(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_LISTING_MODE"] = "public"
	envs["MM_VIDEO_OWNER_SCOPED"] = "false"
	envs["MM_JWT_AUTHORIZED_PARTIES"] = "https://app.test, https://admin.test"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.ListingMode != ListingModePublic {
		t.Errorf("ListingMode = %q, ожидается public", cfg.ListingMode)
	}
	if cfg.VideoOwnerScoped {
		t.Error("VideoOwnerScoped = true, ожидается false")
	}
	if len(cfg.JWTAuthorizedParties) != 2 || cfg.JWTAuthorizedParties[1] != "https://admin.test" {
		t.Errorf("JWTAuthorizedParties = %v", cfg.JWTAuthorizedParties)
	}
}

func TestLoad_RedisCacheBackend(t *testing.T) {
	envs := minimalEnvs()
	envs["MM_LIST_CACHE_BACKEND"] = "redis"
	envs["MM_LIST_CACHE_TTL"] = "30s"
	envs["MM_REDIS_ADDRS"] = "redis-0:6379, redis-1:6379"
	envs["MM_REDIS_DB"] = "2"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if len(cfg.RedisAddrs) != 2 || cfg.RedisAddrs[1] != "redis-1:6379" {
		t.Errorf("RedisAddrs = %v", cfg.RedisAddrs)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, ожидается 2", cfg.RedisDB)
	}
	if cfg.RedisKeyPrefix != "mm:videos:" {
		t.Errorf("RedisKeyPrefix = %q", cfg.RedisKeyPrefix)
	}
	if cfg.RedisTimeout != 500*time.Millisecond {
		t.Errorf("RedisTimeout = %v, ожидается 500ms", cfg.RedisTimeout)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5433, DBName: "media", DBUser: "u", DBPassword: "p", DBSSLMode: "require"}

	want := "host='db' port=5433 dbname='media' user='u' password='p' sslmode='require'"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
	if got := cfg.DatabaseURL(); strings.Contains(got, "p@") || got != "postgres://db:5433/media" {
		t.Errorf("DatabaseURL() = %q", got)
	}
}

func TestDatabaseDSN_SpecialCharacters(t *testing.T) {
	passwords := []string{"p w", "it's", `back\slash`, "a=b c='d'"}

	for _, password := range passwords {
		t.Run(password, func(t *testing.T) {
			cfg := &Config{DBHost: "db", DBPort: 5432, DBName: "media", DBUser: "media user", DBPassword: password, DBSSLMode: "disable"}

			parsed, err := pgconn.ParseConfig(cfg.DatabaseDSN())
			if err != nil {
				t.Fatalf("ParseConfig(%q): %v", cfg.DatabaseDSN(), err)
			}
			if parsed.Password != password {
				t.Errorf("Password = %q, ожидается %q", parsed.Password, password)
			}
			if parsed.User != "media user" || parsed.Database != "media" || parsed.Host != "db" || parsed.Port != 5432 {
				t.Errorf("разобрано %s@%s:%d/%s", parsed.User, parsed.Host, parsed.Port, parsed.Database)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	got := parseCSV(" a, ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("parseCSV = %v, ожидается [a b]", got)
	}
	if parseCSV("") != nil {
		t.Error("parseCSV(\"\") должен вернуть nil")
	}
}
