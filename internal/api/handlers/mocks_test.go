package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/service"
)

// --- Mock MediaUploader ---

type mockMediaUploader struct {
	uploadImageFn func(ctx context.Context, payload []byte, filename string) (*model.UploadResult, error)
	uploadVideoFn func(ctx context.Context, userID string, in service.VideoUpload) (*model.VideoRecord, error)
	calls         int
}

func (m *mockMediaUploader) UploadImage(ctx context.Context, payload []byte, filename string) (*model.UploadResult, error) {
	m.calls++
	return m.uploadImageFn(ctx, payload, filename)
}

func (m *mockMediaUploader) UploadVideo(ctx context.Context, userID string, in service.VideoUpload) (*model.VideoRecord, error) {
	m.calls++
	return m.uploadVideoFn(ctx, userID, in)
}

// --- Mock VideoLister ---

type mockVideoLister struct {
	listFn func(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error)
	calls  int
}

func (m *mockVideoLister) List(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error) {
	m.calls++
	return m.listFn(ctx, ownerID)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser добавляет identity в контекст запроса, как это делает Identity Gate.
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), &middleware.Identity{UserID: userID}))
}

// multipartRequest собирает multipart-запрос с полями и (опционально) файлом.
func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if payload != nil {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
