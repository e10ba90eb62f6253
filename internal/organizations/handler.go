package organizations

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/middleware"
	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/response"
)

// Directory is the read side of organization data used by the handler.
type Directory interface {
	ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]UserOrganization, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	dir    Directory
	access *access.Evaluator
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(dir Directory, evaluator *access.Evaluator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dir: dir, access: evaluator, logger: logger}
}

// ListMyOrganizations handles GET /organizations. Returns orgs the current user is a member of.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	actor := middleware.Actor(c)
	if actor == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	orgs, err := h.dir.ListOrganizationsForUser(c.Request.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("list organizations failed", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /organizations/:id/members. Non-members get an empty list.
func (h *Handler) ListMembers(c *gin.Context) {
	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	if _, err := h.access.AuthorizeOrg(c.Request.Context(), middleware.Actor(c), orgID); err != nil {
		if models.IsDenied(err) {
			response.OK(c, []Member{})
			return
		}
		middleware.RespondError(c, h.logger, err, "failed to load members")
		return
	}
	members, err := h.dir.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list members failed", zap.String("organization_id", orgID.String()), zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}
