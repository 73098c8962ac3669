// videos.go — обработчик GET /api/videos.
// Режим gated: только аутентифицированные, только свои записи.
// Режим public: все записи без проверки identity.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/media-module/internal/api/errors"
	"github.com/bigkaa/goartstore/media-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-module/internal/domain/model"
)

// VideosHandler — обработчик списка видео.
type VideosHandler struct {
	lister VideoLister
	public bool
	logger *slog.Logger
}

// NewVideosHandler создаёт обработчик списка. public — режим public.
func NewVideosHandler(lister VideoLister, public bool, logger *slog.Logger) *VideosHandler {
	return &VideosHandler{
		lister: lister,
		public: public,
		logger: logger.With(slog.String("component", "videos_handler")),
	}
}

// videosResponse — {"videos": [...]}; пустой список сериализуется как [].
type videosResponse struct {
	Videos []*model.VideoRecord `json:"videos"`
}

// ListVideos — GET /api/videos.
func (h *VideosHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	var ownerID *string
	if !h.public {
		id := middleware.IdentityFromContext(r.Context())
		if id == nil {
			apierrors.WriteMessage(w, http.StatusUnauthorized, apierrors.MsgUnauthorized)
			return
		}
		ownerID = &id.UserID
	}

	videos, err := h.lister.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("Error in Retrieving Videos", slog.String("error", err.Error()))
		apierrors.WriteMessage(w, http.StatusInternalServerError, apierrors.MsgListVideosFailed+": "+err.Error())
		return
	}
	if videos == nil {
		videos = []*model.VideoRecord{}
	}

	writeJSON(w, http.StatusOK, videosResponse{Videos: videos})
}
