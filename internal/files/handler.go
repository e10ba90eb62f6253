package files

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/middleware"
	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/response"
	"github.com/aura-drive/backend/pkg/storage"
)

// PurgeEnqueuer schedules an on-demand purge sweep. Optional; nil disables POST /admin/purge.
type PurgeEnqueuer interface {
	EnqueuePurge(ctx context.Context, requestedBy uuid.UUID, reason string) error
}

// GenerateUploadURLRequest is the body for POST /organizations/:id/files/upload-url.
type GenerateUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// CreateFileRequest is the body for POST /organizations/:id/files (after the client uploaded via presigned URL).
type CreateFileRequest struct {
	Name       string `json:"name" binding:"required"`
	StorageRef string `json:"storage_ref" binding:"required"`
	Type       string `json:"type" binding:"required"`
}

// Handler handles file HTTP endpoints.
type Handler struct {
	svc    *Service
	purges PurgeEnqueuer
	logger *zap.Logger
}

// NewHandler creates a files handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// SetPurgeQueue sets the optional queue used by TriggerPurge.
func (h *Handler) SetPurgeQueue(q PurgeEnqueuer) { h.purges = q }

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// GenerateUploadURL handles POST /organizations/:id/files/upload-url. Members only.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	orgID, ok := parseID(c, "organization")
	if !ok {
		return
	}
	var req GenerateUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	target, err := h.svc.GenerateUploadURL(c.Request.Context(), middleware.Actor(c), orgID, req.Filename, req.ContentType)
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to generate upload URL")
		return
	}
	response.OK(c, target)
}

// Upload handles POST /organizations/:id/files/upload (multipart form field "file", optional "name").
func (h *Handler) Upload(c *gin.Context) {
	orgID, ok := parseID(c, "organization")
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxFileSize {
		response.BadRequest(c, "file size exceeds 20MB limit")
		return
	}
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = file.Filename
	}
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	id, err := h.svc.UploadFile(c.Request.Context(), middleware.Actor(c), orgID, name, file.Header.Get("Content-Type"), rc, file.Size)
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to upload file")
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Create handles POST /organizations/:id/files. Members only.
func (h *Handler) Create(c *gin.Context) {
	orgID, ok := parseID(c, "organization")
	if !ok {
		return
	}
	var req CreateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, err := h.svc.CreateFile(c.Request.Context(), middleware.Actor(c), orgID, req.Name, req.StorageRef, models.FileType(strings.ToLower(req.Type)))
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to create file")
		return
	}
	response.Created(c, gin.H{"id": id})
}

// List handles GET /organizations/:id/files?query=&favorites=&deleted=&type=.
// Non-members get an empty list.
func (h *Handler) List(c *gin.Context) {
	orgID, ok := parseID(c, "organization")
	if !ok {
		return
	}
	filter := Filter{
		Query:         c.Query("query"),
		FavoritesOnly: queryBool(c, "favorites"),
		DeletedOnly:   queryBool(c, "deleted"),
	}
	if t := strings.ToLower(strings.TrimSpace(c.Query("type"))); t != "" && t != "all" {
		filter.Type = models.FileType(t)
		if !filter.Type.Valid() {
			response.BadRequest(c, "invalid type filter")
			return
		}
	}
	list, err := h.svc.ListFiles(c.Request.Context(), middleware.Actor(c), orgID, filter)
	if err != nil {
		middleware.RespondError(c, h.logger, err, "failed to list files")
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /files/:id. Flags the file for purge; owner or org admin only.
func (h *Handler) Delete(c *gin.Context) {
	fileID, ok := parseID(c, "file")
	if !ok {
		return
	}
	if err := h.svc.DeleteFile(c.Request.Context(), middleware.Actor(c), fileID); err != nil {
		middleware.RespondError(c, h.logger, err, "failed to delete file")
		return
	}
	response.OK(c, gin.H{"id": fileID, "should_delete": true})
}

// Restore handles POST /files/:id/restore. Owner or org admin only.
func (h *Handler) Restore(c *gin.Context) {
	fileID, ok := parseID(c, "file")
	if !ok {
		return
	}
	if err := h.svc.RestoreFile(c.Request.Context(), middleware.Actor(c), fileID); err != nil {
		middleware.RespondError(c, h.logger, err, "failed to restore file")
		return
	}
	response.OK(c, gin.H{"id": fileID, "should_delete": false})
}

// TriggerPurge handles POST /admin/purge (platform admin). Queues a purge sweep for the worker.
func (h *Handler) TriggerPurge(c *gin.Context) {
	if h.purges == nil {
		response.ServiceUnavailable(c, "purge queue not configured")
		return
	}
	actor := middleware.Actor(c)
	if actor == nil {
		response.Unauthorized(c, "missing user context")
		return
	}
	if err := h.purges.EnqueuePurge(c.Request.Context(), actor.UserID, "manual"); err != nil {
		h.logger.Error("enqueue purge failed", zap.Error(err))
		response.Internal(c, "failed to schedule purge")
		return
	}
	response.Accepted(c, gin.H{"status": "queued"})
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(key, "false"))
	return err == nil && v
}
