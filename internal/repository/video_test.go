package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Fake DBTX ---

// fakeRow — реализация pgx.Row с подменяемым Scan.
type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error { return r.scanFn(dest...) }

// fakeRows — реализация pgx.Rows поверх заранее заданных строк.
type fakeRows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1])
}

// assign копирует значения строки в указатели dest (только типы таблицы videos).
func assign(dest, values []any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = values[i].(string)
		case **string:
			*p, _ = values[i].(*string)
		case *float64:
			*p = values[i].(float64)
		case *time.Time:
			*p = values[i].(time.Time)
		default:
			return errors.New("неподдерживаемый тип dest")
		}
	}
	return nil
}

// fakeDB — мок DBTX.
type fakeDB struct {
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (f *fakeDB) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.queryFn(ctx, sql, args...)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFn(ctx, sql, args...)
}

func videoRow(id string, owner *string, createdAt time.Time) []any {
	return []any{id, owner, "title", "desc", "pub-" + id, "1000", "500", 42.0, createdAt, createdAt}
}

// --- Тесты buildListQuery ---

func TestBuildListQuery_AllRecords(t *testing.T) {
	query, args := buildListQuery(nil)

	if strings.Contains(query, "WHERE") {
		t.Errorf("query = %q, не ожидался WHERE без владельца", query)
	}
	if !strings.Contains(query, "ORDER BY created_at DESC, seq DESC") {
		t.Errorf("query = %q, ожидалась сортировка created_at DESC", query)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

func TestBuildListQuery_Owner(t *testing.T) {
	owner := "u1"
	query, args := buildListQuery(&owner)

	if !strings.Contains(query, "WHERE user_id = $1") {
		t.Errorf("query = %q, ожидался фильтр user_id = $1", query)
	}
	if len(args) != 1 || args[0] != "u1" {
		t.Errorf("args = %v, ожидался [u1]", args)
	}
}

// --- Тесты Create ---

func TestVideoRepo_Create(t *testing.T) {
	owner := "u1"
	now := time.Now().UTC()

	db := &fakeDB{
		queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "INSERT INTO videos") {
				t.Errorf("sql = %q, ожидался INSERT INTO videos", sql)
			}
			if len(args) != 8 {
				t.Fatalf("args count = %d, ожидалось 8", len(args))
			}
			if args[4] != "abc123" || args[5] != "1000000" || args[6] != "500000" || args[7] != 42.0 {
				t.Errorf("args = %v", args)
			}
			row := []any{args[0].(string), args[1].(*string), args[2].(string), args[3].(string), args[4].(string),
				args[5].(string), args[6].(string), args[7].(float64), now, now}
			return &fakeRow{scanFn: func(dest ...any) error { return assign(dest, row) }}
		},
	}

	repo := NewVideoRepository(db)
	v, err := repo.Create(context.Background(), CreateVideoParams{
		UserID: &owner, Title: "Demo", Description: "test", PublicID: "abc123",
		OriginalSize: "1000000", CompressedSize: "500000", Duration: 42,
	})
	if err != nil {
		t.Fatalf("Create ошибка: %v", err)
	}
	if v.ID == "" {
		t.Error("ID пустой, ожидался UUID")
	}
	if v.UserID == nil || *v.UserID != "u1" {
		t.Errorf("UserID = %v, ожидался u1", v.UserID)
	}
	if v.Title != "Demo" || v.Description != "test" || v.PublicID != "abc123" {
		t.Errorf("запись = %+v", v)
	}
	if !v.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, ожидался %v", v.CreatedAt, now)
	}
}

func TestVideoRepo_Create_UniqueViolation(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error {
				return &pgconn.PgError{Code: "23505", Message: "duplicate key"}
			}}
		},
	}

	_, err := NewVideoRepository(db).Create(context.Background(), CreateVideoParams{PublicID: "dup"})
	if !errors.Is(err, ErrDuplicatePublicID) {
		t.Errorf("err = %v, ожидался ErrDuplicatePublicID", err)
	}
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, ожидался ErrPersistence", err)
	}
}

func TestVideoRepo_Create_ConnectionError(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(_ ...any) error { return errors.New("connection reset") }}
		},
	}

	_, err := NewVideoRepository(db).Create(context.Background(), CreateVideoParams{PublicID: "p"})
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, ожидался ErrPersistence", err)
	}
	if errors.Is(err, ErrDuplicatePublicID) {
		t.Error("ошибка соединения не должна классифицироваться как дубликат")
	}
}

// --- Тесты ListByOwner ---

func TestVideoRepo_ListByOwner_Empty(t *testing.T) {
	rows := &fakeRows{}
	db := &fakeDB{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	result, err := NewVideoRepository(db).ListByOwner(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListByOwner ошибка: %v", err)
	}
	if result == nil {
		t.Error("result = nil, ожидался пустой срез")
	}
	if len(result) != 0 {
		t.Errorf("len = %d, ожидался 0", len(result))
	}
	if !rows.closed {
		t.Error("rows не закрыты")
	}
}

func TestVideoRepo_ListByOwner_PreservesOrder(t *testing.T) {
	owner := "u1"
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{data: [][]any{
		videoRow("c", &owner, t1.Add(2*time.Hour)),
		videoRow("b", &owner, t1.Add(time.Hour)),
		videoRow("a", &owner, t1),
	}}
	db := &fakeDB{
		queryFn: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			if len(args) != 1 || args[0] != "u1" {
				t.Errorf("args = %v, ожидался [u1]", args)
			}
			return rows, nil
		},
	}

	result, err := NewVideoRepository(db).ListByOwner(context.Background(), &owner)
	if err != nil {
		t.Fatalf("ListByOwner ошибка: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("len = %d, ожидалось 3", len(result))
	}
	for i, want := range []string{"c", "b", "a"} {
		if result[i].ID != want {
			t.Errorf("result[%d].ID = %q, ожидался %q", i, result[i].ID, want)
		}
	}
}

func TestVideoRepo_ListByOwner_QueryError(t *testing.T) {
	db := &fakeDB{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, errors.New("db down")
		},
	}

	_, err := NewVideoRepository(db).ListByOwner(context.Background(), nil)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, ожидался ErrPersistence", err)
	}
}

func TestVideoRepo_ListByOwner_RowsError(t *testing.T) {
	rows := &fakeRows{err: errors.New("stream broken")}
	db := &fakeDB{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return rows, nil },
	}

	_, err := NewVideoRepository(db).ListByOwner(context.Background(), nil)
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("err = %v, ожидался ErrPersistence", err)
	}
}

func TestConnSession_ReleaseTwice(t *testing.T) {
	s := &connSession{}
	s.Release()
	s.Release()
}
