// Пакет repository — слой доступа к данным PostgreSQL для Media Module.
// Все запросы — чистый SQL через pgx, без ORM.
// Доступ к БД выполняется через сессии: одна сессия — одно соединение пула,
// которое вызывающий код обязан вернуть через Release на любом пути выхода.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrPersistence — запись или чтение в хранилище не удались
	// (нарушение ограничений, потеря соединения).
	ErrPersistence = errors.New("ошибка хранилища")
	// ErrDuplicatePublicID — запись с таким public_id уже существует.
	ErrDuplicatePublicID = errors.New("public_id уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется *pgxpool.Pool, *pgxpool.Conn и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session — сессия хранилища, привязанная к одному соединению.
type Session interface {
	// Videos возвращает репозиторий видео в рамках сессии.
	Videos() VideoRepository
	// Release возвращает соединение в пул. Повторный вызов безопасен.
	Release()
}

// Sessions — фабрика сессий хранилища (по одной на запрос).
type Sessions interface {
	// Acquire берёт соединение из пула. При ошибке возвращает ErrPersistence.
	Acquire(ctx context.Context) (Session, error)
}

// poolSessions — реализация Sessions поверх pgxpool.
type poolSessions struct {
	pool *pgxpool.Pool
}

// NewPoolSessions создаёт фабрику сессий на пуле pgx.
func NewPoolSessions(pool *pgxpool.Pool) Sessions {
	return &poolSessions{pool: pool}
}

// Acquire берёт соединение из пула.
func (p *poolSessions) Acquire(ctx context.Context) (Session, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: получение соединения: %w", ErrPersistence, err)
	}
	return &connSession{conn: conn, videos: NewVideoRepository(conn)}, nil
}

// connSession — сессия на одном *pgxpool.Conn.
type connSession struct {
	conn   *pgxpool.Conn
	videos VideoRepository
}

func (s *connSession) Videos() VideoRepository {
	return s.videos
}

func (s *connSession) Release() {
	if s.conn == nil {
		return
	}
	s.conn.Release()
	s.conn = nil
}
