package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// videoColumns — список столбцов таблицы videos для SELECT и RETURNING.
const videoColumns = `id, user_id, title, description, public_id,
	original_size, compressed_size, duration, created_at, updated_at`

// CreateVideoParams — поля новой записи видео.
type CreateVideoParams struct {
	// UserID — владелец; nil — запись без владельца
	UserID         *string
	Title          string
	Description    string
	PublicID       string
	OriginalSize   string
	CompressedSize string
	Duration       float64
}

// VideoRepository — интерфейс доступа к таблице videos.
type VideoRepository interface {
	// Create вставляет запись. created_at назначается БД.
	Create(ctx context.Context, params CreateVideoParams) (*model.VideoRecord, error)
	// ListByOwner возвращает записи владельца (или все при ownerID == nil),
	// от новых к старым. Пустой результат — пустой срез.
	ListByOwner(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error)
}

// videoRepo — реализация VideoRepository через pgx.
type videoRepo struct {
	db DBTX
}

// NewVideoRepository создаёт репозиторий видео.
func NewVideoRepository(db DBTX) VideoRepository {
	return &videoRepo{db: db}
}

// Create вставляет запись видео и возвращает её вместе с id и created_at.
func (r *videoRepo) Create(ctx context.Context, params CreateVideoParams) (*model.VideoRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO videos (id, user_id, title, description, public_id,
			original_size, compressed_size, duration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, videoColumns)

	v := &model.VideoRecord{}
	err := r.db.QueryRow(ctx, query,
		uuid.New().String(), params.UserID, params.Title, params.Description, params.PublicID,
		params.OriginalSize, params.CompressedSize, params.Duration,
	).Scan(
		&v.ID, &v.UserID, &v.Title, &v.Description, &v.PublicID,
		&v.OriginalSize, &v.CompressedSize, &v.Duration, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %w: %s", ErrPersistence, ErrDuplicatePublicID, params.PublicID)
		}
		return nil, fmt.Errorf("%w: создание записи видео: %w", ErrPersistence, err)
	}
	return v, nil
}

// ListByOwner возвращает записи, отсортированные по created_at DESC.
// Совпадения времени разрешает seq DESC (порядок вставки).
func (r *videoRepo) ListByOwner(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error) {
	query, args := buildListQuery(ownerID)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: список видео: %w", ErrPersistence, err)
	}
	defer rows.Close()

	result := make([]*model.VideoRecord, 0)
	for rows.Next() {
		v := &model.VideoRecord{}
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.Title, &v.Description, &v.PublicID,
			&v.OriginalSize, &v.CompressedSize, &v.Duration, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: сканирование видео: %w", ErrPersistence, err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: итерация результатов: %w", ErrPersistence, err)
	}

	return result, nil
}

// buildListQuery строит SELECT для списка видео с опциональным фильтром по владельцу.
func buildListQuery(ownerID *string) (query string, args []any) {
	where := ""
	if ownerID != nil {
		where = "WHERE user_id = $1"
		args = append(args, *ownerID)
	}
	query = fmt.Sprintf(`SELECT %s FROM videos %s ORDER BY created_at DESC, seq DESC`, videoColumns, where)
	return query, args
}
