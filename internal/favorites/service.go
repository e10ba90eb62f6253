// Package favorites maintains per-user favorite marks on organization files.
package favorites

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/models"
)

// FileGetter loads a file record. It returns models.ErrNotFound for unknown ids.
type FileGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.File, error)
}

// Store persists favorites, unique per (user, file).
type Store interface {
	// Find returns nil, nil when the user has not favorited the file.
	Find(ctx context.Context, userID, fileID uuid.UUID) (*models.Favorite, error)
	Create(ctx context.Context, fav *models.Favorite) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUserAndOrganization(ctx context.Context, userID, organizationID uuid.UUID) ([]models.Favorite, error)
}

// Service toggles and lists favorites. Favoriting needs read access to the file only; it does not
// depend on ownership, role or the file's delete flag.
type Service struct {
	store  Store
	files  FileGetter
	access *access.Evaluator
	logger *zap.Logger
}

// NewService creates a favorites service.
func NewService(store Store, files FileGetter, evaluator *access.Evaluator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, files: files, access: evaluator, logger: logger}
}

// ToggleFavorite adds the favorite if absent and removes it if present. It returns whether the
// file is favorited afterwards.
func (s *Service) ToggleFavorite(ctx context.Context, actor *models.Actor, fileID uuid.UUID) (bool, error) {
	if actor == nil {
		return false, models.ErrUnauthenticated
	}
	f, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return false, err
	}
	if _, err := s.access.AuthorizeFile(ctx, actor, f); err != nil {
		return false, err
	}
	existing, err := s.store.Find(ctx, actor.UserID, fileID)
	if err != nil {
		return false, fmt.Errorf("find favorite: %w", err)
	}
	if existing != nil {
		if err := s.store.Delete(ctx, existing.ID); err != nil {
			return false, fmt.Errorf("delete favorite: %w", err)
		}
		s.logger.Debug("favorite removed", zap.String("user_id", actor.UserID.String()), zap.String("file_id", fileID.String()))
		return false, nil
	}
	fav := &models.Favorite{
		UserID:         actor.UserID,
		OrganizationID: f.OrganizationID,
		FileID:         fileID,
	}
	if err := s.store.Create(ctx, fav); err != nil {
		return false, fmt.Errorf("create favorite: %w", err)
	}
	s.logger.Debug("favorite added", zap.String("user_id", actor.UserID.String()), zap.String("file_id", fileID.String()))
	return true, nil
}

// ListFavorites returns the actor's favorites in the organization, including favorites of files
// flagged for deletion. Actors without access get an empty list.
func (s *Service) ListFavorites(ctx context.Context, actor *models.Actor, organizationID uuid.UUID) ([]models.Favorite, error) {
	if _, err := s.access.AuthorizeOrg(ctx, actor, organizationID); err != nil {
		if models.IsDenied(err) {
			return []models.Favorite{}, nil
		}
		return nil, err
	}
	list, err := s.store.ListByUserAndOrganization(ctx, actor.UserID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return list, nil
}
