// Точка входа Media Module — загрузка изображений и видео пользователей.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт адаптер медиа-сервиса (Cloudinary или S3), сервисный слой и handlers,
// запускает topologymetrics и HTTP-сервер с Identity Gate, Route Gate
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/media-module/internal/api/handlers"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/config"
	"github.com/bigkaa/goartstore/media-module/internal/database"
	"github.com/bigkaa/goartstore/media-module/internal/delivery"
	"github.com/bigkaa/goartstore/media-module/internal/media"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
	"github.com/bigkaa/goartstore/media-module/internal/server"
	"github.com/bigkaa/goartstore/media-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Media Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("media_backend", cfg.MediaBackend),
		slog.String("listing_mode", cfg.ListingMode),
	)

	if os.Getenv("MM_DEPHEALTH_GROUP") == "" {
		logger.Warn("MM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Адаптер медиа-сервиса
	uploader, err := media.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания медиа-адаптера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Сессии БД и кэш списков (nil при MM_LIST_CACHE_TTL=0)
	sessions := repository.NewPoolSessions(pool)

	var (
		listCache    *service.ListCache
		cacheChecker handlers.ReadinessChecker
	)
	switch cfg.ListCacheBackend {
	case config.ListCacheBackendRedis:
		redisCfg := service.RedisCacheConfig{
			Addrs:      cfg.RedisAddrs,
			MasterName: cfg.RedisMasterName,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			KeyPrefix:  cfg.RedisKeyPrefix,
			TTL:        cfg.ListCacheTTL,
			Timeout:    cfg.RedisTimeout,
		}
		redisClient, redisErr := service.NewRedisClient(redisCfg)
		if redisErr != nil {
			logger.Error("Ошибка создания Redis-клиента", slog.String("error", redisErr.Error()))
			os.Exit(1)
		}
		defer func() { _ = redisClient.Close() }()

		listCache = service.NewRedisListCache(redisClient, redisCfg, logger)
		cacheChecker = service.NewRedisReadinessChecker(redisClient, cfg.RedisTimeout)
	default:
		listCache = service.NewListCache(cfg.ListCacheSize, cfg.ListCacheTTL)
	}
	if listCache != nil {
		logger.Info("Кэш списков видео включён",
			slog.String("backend", cfg.ListCacheBackend),
			slog.Int("size", cfg.ListCacheSize),
			slog.String("ttl", cfg.ListCacheTTL.String()),
		)
	}

	// 7. Services
	uploadSvc := service.NewUploadService(uploader, sessions, listCache, service.UploadConfig{
		ImageFolder: cfg.ImageFolder,
		VideoFolder: cfg.VideoFolder,
		OwnerScoped: cfg.VideoOwnerScoped,
		Compensate:  cfg.MediaCompensate,
	}, logger)
	videoSvc := service.NewVideoService(sessions, listCache, logger)

	// 8. Identity Gate (JWKS провайдера идентичности)
	identityGate, err := middleware.NewIdentityGate(
		cfg.JWTJWKSURL,
		cfg.JWKSCACertPath,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		middleware.IdentityGateOptions{
			Issuer:            cfg.JWTIssuer,
			AuthorizedParties: cfg.JWTAuthorizedParties,
			Leeway:            cfg.JWTLeeway,
		},
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания Identity Gate", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Identity Gate инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	routeGate := middleware.NewRouteGate(cfg.PublicRoutes, cfg.PublicAPIRoutes, logger)

	// 9. Readiness checkers (PostgreSQL + JWKS)
	pgChecker := database.NewReadinessChecker(pool)
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSCACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. URL доставки — только у Cloudinary
	var builder *delivery.Builder
	if cfg.MediaBackend == config.MediaBackendCloudinary {
		builder = delivery.NewBuilder(cfg.CloudinaryDeliveryURL, cfg.CloudinaryCloudName)
	}

	// 11. Handlers
	h := server.Handlers{
		Health:   handlers.NewHealthHandler(pgChecker, jwksChecker, cacheChecker),
		Uploads:  handlers.NewUploadHandler(uploadSvc, cfg.UploadMaxMemory, logger),
		Videos:   handlers.NewVideosHandler(videoSvc, cfg.ListingMode == config.ListingModePublic, logger),
		Delivery: handlers.NewDeliveryHandler(builder),
	}

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "media-module",
		Group:         cfg.DephealthGroup,
		PgConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, identityGate, routeGate)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Media Module остановлен")
}
