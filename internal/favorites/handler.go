package favorites

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/middleware"
	"github.com/aura-drive/backend/pkg/response"
)

// Handler handles favorite HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a favorites handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Toggle handles POST /files/:id/favorite. Any member of the file's organization may toggle.
func (h *Handler) Toggle(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}
	favorited, err := h.svc.ToggleFavorite(c.Request.Context(), middleware.Actor(c), fileID)
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to toggle favorite")
		return
	}
	response.OK(c, gin.H{"file_id": fileID, "favorited": favorited})
}

// List handles GET /organizations/:id/favorites.
func (h *Handler) List(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	list, err := h.svc.ListFavorites(c.Request.Context(), middleware.Actor(c), orgID)
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to list favorites")
		return
	}
	response.OK(c, list)
}
