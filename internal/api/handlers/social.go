// social.go — вспомогательные endpoints доставки медиа.
// GET /api/social/formats — пресеты соцсетей
// GET /api/image-transform?publicId=&format= — URL кадрирования под пресет
// GET /api/video-urls?publicId= — URL миниатюры, полного видео и превью
//
// При бэкенде s3 URL доставки не строятся — 501.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/delivery"
)

// DeliveryHandler — обработчик URL доставки.
type DeliveryHandler struct {
	// builder — nil, если доставка не поддерживается бэкендом.
	builder *delivery.Builder
}

// NewDeliveryHandler создаёт обработчик. builder может быть nil.
func NewDeliveryHandler(builder *delivery.Builder) *DeliveryHandler {
	return &DeliveryHandler{builder: builder}
}

// socialFormatsResponse — {"formats": [...]}.
type socialFormatsResponse struct {
	Formats []delivery.SocialFormat `json:"formats"`
}

// SocialFormats — GET /api/social/formats.
func (h *DeliveryHandler) SocialFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, socialFormatsResponse{Formats: delivery.SocialFormats()})
}

// ImageTransform — GET /api/image-transform.
func (h *DeliveryHandler) ImageTransform(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromContext(r.Context()) == nil {
		apierrors.Unauthorized(w)
		return
	}
	if h.builder == nil {
		apierrors.NotImplemented(w, apierrors.MsgDeliveryNotEnabled)
		return
	}

	publicID := r.URL.Query().Get("publicId")
	if publicID == "" {
		apierrors.ValidationError(w, "publicId is required")
		return
	}
	format, ok := delivery.LookupFormat(r.URL.Query().Get("format"))
	if !ok {
		apierrors.ValidationError(w, "Unknown social format")
		return
	}

	writeJSON(w, http.StatusOK, h.builder.ImageTransform(publicID, format))
}

// VideoURLs — GET /api/video-urls.
func (h *DeliveryHandler) VideoURLs(w http.ResponseWriter, r *http.Request) {
	if middleware.IdentityFromContext(r.Context()) == nil {
		apierrors.Unauthorized(w)
		return
	}
	if h.builder == nil {
		apierrors.NotImplemented(w, apierrors.MsgDeliveryNotEnabled)
		return
	}

	publicID := r.URL.Query().Get("publicId")
	if publicID == "" {
		apierrors.ValidationError(w, "publicId is required")
		return
	}

	writeJSON(w, http.StatusOK, h.builder.VideoURLs(publicID))
}
