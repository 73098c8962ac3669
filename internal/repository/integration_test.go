package repository_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goartstore/media-module/internal/config"
	"github.com/bigkaa/goartstore/media-module/internal/database"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// setupPool поднимает PostgreSQL, применяет миграции и возвращает пул.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("media_test"),
		postgres.WithUsername("media"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, _ := container.Host(ctx)
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	cfg := &config.Config{
		DBHost: host, DBPort: port.Int(), DBName: "media_test",
		DBUser: "media", DBPassword: "test-password", DBSSLMode: "disable",
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestVideoRepo_Integration(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	session, err := repository.NewPoolSessions(pool).Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() вернул ошибку: %v", err)
	}
	defer session.Release()
	videos := session.Videos()

	u1, u2 := "u1", "u2"
	for _, p := range []repository.CreateVideoParams{
		{UserID: &u1, Title: "first", PublicID: "p1", OriginalSize: "100", CompressedSize: "50"},
		{UserID: &u2, Title: "other", PublicID: "p2", OriginalSize: "100", CompressedSize: "50"},
		{UserID: &u1, Title: "second", PublicID: "p3", OriginalSize: "100", CompressedSize: "50", Duration: 12.5},
	} {
		if _, err := videos.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) вернул ошибку: %v", p.PublicID, err)
		}
	}

	// Фильтр по владельцу, от новых к старым
	list, err := videos.ListByOwner(ctx, &u1)
	if err != nil {
		t.Fatalf("ListByOwner() вернул ошибку: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, ожидалось 2", len(list))
	}
	if list[0].PublicID != "p3" || list[1].PublicID != "p1" {
		t.Errorf("порядок = [%s %s], ожидался [p3 p1]", list[0].PublicID, list[1].PublicID)
	}
	if list[0].Duration != 12.5 {
		t.Errorf("Duration = %v, ожидалось 12.5", list[0].Duration)
	}

	all, err := videos.ListByOwner(ctx, nil)
	if err != nil {
		t.Fatalf("ListByOwner(nil) вернул ошибку: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, ожидалось 3", len(all))
	}

	none, err := videos.ListByOwner(ctx, new(string))
	if err != nil {
		t.Fatalf("ListByOwner(\"\") вернул ошибку: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ожидался пустой срез, получено %v", none)
	}

	// Повтор public_id — ошибка хранилища
	_, err = videos.Create(ctx, repository.CreateVideoParams{UserID: &u1, Title: "dup", PublicID: "p1"})
	if !errors.Is(err, repository.ErrDuplicatePublicID) {
		t.Errorf("err = %v, ожидался ErrDuplicatePublicID", err)
	}
}

func TestVideoRepo_Integration_InsertionOrder(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() вернул ошибку: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	owner := "u-order"
	videos := repository.NewVideoRepository(tx)
	var prev time.Time
	for _, id := range []string{"o1", "o2", "o3"} {
		v, err := videos.Create(ctx, repository.CreateVideoParams{
			UserID: &owner, Title: id, PublicID: id, OriginalSize: "1", CompressedSize: "1",
		})
		if err != nil {
			t.Fatalf("Create(%s) вернул ошибку: %v", id, err)
		}
		// Внутри одной транзакции время всё равно растёт
		if !v.CreatedAt.After(prev) {
			t.Errorf("CreatedAt(%s) = %v, не позже предыдущего %v", id, v.CreatedAt, prev)
		}
		prev = v.CreatedAt
	}

	// Одинаковое время: порядок определяет последовательность вставки
	if _, err := tx.Exec(ctx, `UPDATE videos SET created_at = now() WHERE user_id = $1`, owner); err != nil {
		t.Fatalf("UPDATE вернул ошибку: %v", err)
	}

	list, err := videos.ListByOwner(ctx, &owner)
	if err != nil {
		t.Fatalf("ListByOwner() вернул ошибку: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, ожидалось 3", len(list))
	}
	if list[0].PublicID != "o3" || list[1].PublicID != "o2" || list[2].PublicID != "o1" {
		t.Errorf("порядок = [%s %s %s], ожидался [o3 o2 o1]", list[0].PublicID, list[1].PublicID, list[2].PublicID)
	}
}
