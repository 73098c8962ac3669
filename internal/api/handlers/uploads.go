// uploads.go — обработчики загрузки медиа.
// POST /api/image-upload — изображение → {"publicId"}
// POST /api/video-upload — видео + метаданные → {"data": VideoRecord}
//
// Identity проверяется до чтения тела запроса.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/service"
)

// errMissingFile — в форме нет поля file (или тело не multipart).
var errMissingFile = errors.New("поле file отсутствует")

// UploadHandler — обработчик загрузок.
type UploadHandler struct {
	uploader  MediaUploader
	maxMemory int64
	logger    *slog.Logger
}

// NewUploadHandler создаёт обработчик загрузок.
// maxMemory — порог in-memory буфера multipart (остальное во временных файлах).
func NewUploadHandler(uploader MediaUploader, maxMemory int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		uploader:  uploader,
		maxMemory: maxMemory,
		logger:    logger.With(slog.String("component", "upload_handler")),
	}
}

// imageUploadResponse — ответ загрузки изображения.
type imageUploadResponse struct {
	PublicID string `json:"publicId"`
}

// videoUploadResponse — ответ загрузки видео.
type videoUploadResponse struct {
	Data any `json:"data"`
}

// UploadImage — POST /api/image-upload.
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromContext(r.Context()) == nil {
		apierrors.Unauthorized(w)
		return
	}

	payload, filename, err := h.readFile(r)
	if errors.Is(err, errMissingFile) {
		apierrors.FileNotFound(w)
		return
	}
	if err != nil {
		h.logger.Error("Image Upload Failed", slog.String("error", err.Error()))
		apierrors.InternalError(w, apierrors.MsgImageUploadFailed)
		return
	}

	res, err := h.uploader.UploadImage(r.Context(), payload, filename)
	if err != nil {
		h.logger.Error("Image Upload Failed", slog.String("error", err.Error()))
		apierrors.InternalError(w, apierrors.MsgImageUploadFailed)
		return
	}

	writeJSON(w, http.StatusOK, imageUploadResponse{PublicID: res.PublicID})
}

// UploadVideo — POST /api/video-upload.
// Поля title, description, originalSize не проверяются.
func (h *UploadHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		apierrors.Unauthorized(w)
		return
	}

	payload, filename, err := h.readFile(r)
	if errors.Is(err, errMissingFile) {
		apierrors.FileNotFound(w)
		return
	}
	if err != nil {
		h.logger.Error("Image Upload Failed", slog.String("error", err.Error()))
		apierrors.InternalError(w, apierrors.MsgVideoUploadFailed)
		return
	}

	record, err := h.uploader.UploadVideo(r.Context(), id.UserID, service.VideoUpload{
		Payload:      payload,
		Filename:     filename,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		OriginalSize: r.FormValue("originalSize"),
	})
	if err != nil {
		stage := "persist"
		if service.IsUploadFailure(err) {
			stage = "upload"
		}
		h.logger.Error("Image Upload Failed",
			slog.String("stage", stage),
			slog.String("user_id", id.UserID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, apierrors.MsgVideoUploadFailed)
		return
	}

	writeJSON(w, http.StatusOK, videoUploadResponse{Data: record})
}

// readFile разбирает multipart-форму и читает поле file целиком.
// Тело не multipart или нет поля file — errMissingFile.
func (h *UploadHandler) readFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", errMissingFile
		}
		return nil, "", fmt.Errorf("разбор multipart-формы: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", errMissingFile
		}
		return nil, "", fmt.Errorf("чтение поля file: %w", err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("чтение файла: %w", err)
	}
	return payload, header.Filename, nil
}
