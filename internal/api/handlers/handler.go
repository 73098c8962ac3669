// handler.go — общие интерфейсы и вспомогательные функции обработчиков API.
// Handlers зависят от интерфейсов сервисного слоя, а не от реализаций.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
	"github.com/bigkaa/goartstore/media-module/internal/service"
)

// MediaUploader — загрузка изображений и видео (service.UploadService).
type MediaUploader interface {
	UploadImage(ctx context.Context, payload []byte, filename string) (*model.UploadResult, error)
	UploadVideo(ctx context.Context, userID string, in service.VideoUpload) (*model.VideoRecord, error)
}

// VideoLister — выдача списков видео (service.VideoService).
type VideoLister interface {
	List(ctx context.Context, ownerID *string) ([]*model.VideoRecord, error)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
