package service

import (
	"context"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/media"
	"github.com/bigkaa/goartstore/media-module/internal/repository"
)

// --- Mock media.Uploader ---

type mockUploader struct {
	uploadFn  func(ctx context.Context, payload []byte, kind model.MediaKind, opts media.Options) (*model.UploadResult, error)
	destroyFn func(ctx context.Context, publicID string, kind model.MediaKind) error
}

func (m *mockUploader) Upload(ctx context.Context, payload []byte, kind model.MediaKind, opts media.Options) (*model.UploadResult, error) {
	return m.uploadFn(ctx, payload, kind, opts)
}

func (m *mockUploader) Destroy(ctx context.Context, publicID string, kind model.MediaKind) error {
	if m.destroyFn != nil {
		return m.destroyFn(ctx, publicID, kind)
	}
	return nil
}

// --- Mock repository ---

type mockVideoRepo struct {
	createFn      func(ctx context.Context, params repository.CreateVideoParams) (*model.VideoRecord, error)
	listByOwnerFn func(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error)
}

func (m *mockVideoRepo) Create(ctx context.Context, params repository.CreateVideoParams) (*model.VideoRecord, error) {
	return m.createFn(ctx, params)
}

func (m *mockVideoRepo) ListByOwner(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerID)
	}
	return []*model.VideoRecord{}, nil
}

// mockSessions — фабрика сессий, считающая Acquire/Release.
type mockSessions struct {
	repo       *mockVideoRepo
	acquireErr error
	acquired   int
	released   int
}

func (m *mockSessions) Acquire(_ context.Context) (repository.Session, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	m.acquired++
	return &mockSession{parent: m}, nil
}

type mockSession struct {
	parent *mockSessions
}

func (s *mockSession) Videos() repository.VideoRepository { return s.parent.repo }
func (s *mockSession) Release()                           { s.parent.released++ }
