package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/response"
)

// RespondError writes the response envelope for a service error. Unknown errors are logged and
// reported as 500 with fallback as the message.
func RespondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		response.Unauthorized(c, "authentication required")
	case errors.Is(err, models.ErrForbidden):
		response.Forbidden(c, "not authorized for this resource")
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "file not found")
	case errors.Is(err, models.ErrInvalidFileType):
		response.BadRequest(c, "invalid file type: only image, csv and pdf files are allowed")
	case errors.Is(err, models.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, models.ErrBlobUnavailable):
		logger.Warn("blob storage unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServiceUnavailable(c, "file storage unavailable")
	default:
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, fallback)
	}
}
