// Package files manages organization file records: registration, listing, soft delete, restore and purge.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-drive/backend/internal/access"
	"github.com/aura-drive/backend/internal/models"
	"github.com/aura-drive/backend/pkg/storage"
)

const (
	defaultURLConcurrency   = 8
	defaultPurgeConcurrency = 4
	defaultMaxNameLength    = 255
)

// Store persists file records.
type Store interface {
	Create(ctx context.Context, f *models.File) error
	// GetByID returns models.ErrNotFound when no file has the id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	// ListByOrganization returns the organization's files whose should_delete equals deleted, newest first.
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, deleted bool) ([]models.File, error)
	// SetShouldDelete returns models.ErrNotFound when no file has the id.
	SetShouldDelete(ctx context.Context, id uuid.UUID, shouldDelete bool) error
	ListMarkedForDeletion(ctx context.Context) ([]models.File, error)
	// Purge removes the file record and every favorite pointing at it, but only while the record is
	// still flagged; otherwise it returns ErrNotFlagged. beforeDelete runs after the flag check and
	// before the delete, with the record protected from concurrent changes.
	Purge(ctx context.Context, id uuid.UUID, beforeDelete func(ctx context.Context) error) error
}

// FavoriteLookup returns the file ids a user has favorited within an organization.
type FavoriteLookup interface {
	FavoriteFileIDs(ctx context.Context, userID, organizationID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// BlobStore holds file bytes. DeleteBlob returns storage.ErrBlobNotFound when the blob is already gone.
type BlobStore interface {
	RegisterUpload(ctx context.Context, organizationID uuid.UUID, filename, contentType string) (*storage.UploadTarget, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	ResolveURL(ctx context.Context, storageRef string) (string, error)
	DeleteBlob(ctx context.Context, storageRef string) error
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	URLConcurrency   int
	PurgeConcurrency int
	MaxNameLength    int
}

// Service is the file lifecycle manager. Every actor-facing operation authorizes through the
// access evaluator before it touches a record.
type Service struct {
	store     Store
	favorites FavoriteLookup
	blobs     BlobStore
	access    *access.Evaluator
	opts      Options
	logger    *zap.Logger
}

// NewService creates a file lifecycle service.
func NewService(store Store, favorites FavoriteLookup, blobs BlobStore, evaluator *access.Evaluator, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.URLConcurrency <= 0 {
		opts.URLConcurrency = defaultURLConcurrency
	}
	if opts.PurgeConcurrency <= 0 {
		opts.PurgeConcurrency = defaultPurgeConcurrency
	}
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = defaultMaxNameLength
	}
	return &Service{store: store, favorites: favorites, blobs: blobs, access: evaluator, opts: opts, logger: logger}
}

// GenerateUploadURL issues an upload target for a new file in the organization. Members only.
func (s *Service) GenerateUploadURL(ctx context.Context, actor *models.Actor, organizationID uuid.UUID, filename, contentType string) (*storage.UploadTarget, error) {
	if _, err := s.access.AuthorizeOrg(ctx, actor, organizationID); err != nil {
		return nil, err
	}
	if _, ok := storage.FileTypeForUpload(contentType, filename); !ok {
		return nil, models.ErrInvalidFileType
	}
	target, err := s.blobs.RegisterUpload(ctx, organizationID, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBlobUnavailable, err)
	}
	return target, nil
}

// CreateFile registers an uploaded blob as a live file owned by the actor. Names are not unique.
func (s *Service) CreateFile(ctx context.Context, actor *models.Actor, organizationID uuid.UUID, name, storageRef string, fileType models.FileType) (uuid.UUID, error) {
	if _, err := s.access.AuthorizeOrg(ctx, actor, organizationID); err != nil {
		return uuid.Nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > s.opts.MaxNameLength {
		return uuid.Nil, fmt.Errorf("%w: name must be 1-%d characters", models.ErrInvalidInput, s.opts.MaxNameLength)
	}
	if strings.TrimSpace(storageRef) == "" {
		return uuid.Nil, fmt.Errorf("%w: storage ref required", models.ErrInvalidInput)
	}
	// Refs must come from this organization's upload space; the unique index on storage_ref keeps
	// two records from sharing one blob.
	if !storage.IsFileKey(organizationID.String(), storageRef) {
		return uuid.Nil, fmt.Errorf("%w: storage ref does not belong to this organization", models.ErrInvalidInput)
	}
	if !fileType.Valid() {
		return uuid.Nil, models.ErrInvalidFileType
	}
	f := &models.File{
		Name:           name,
		OrganizationID: organizationID,
		OwnerUserID:    actor.UserID,
		StorageRef:     storageRef,
		Type:           fileType,
		ShouldDelete:   false,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("create file: %w", err)
	}
	s.logger.Info("file created",
		zap.String("file_id", f.ID.String()),
		zap.String("organization_id", organizationID.String()),
		zap.String("owner_user_id", actor.UserID.String()))
	return f.ID, nil
}

// UploadFile streams bytes to blob storage and registers them as a new file. The blob is removed
// again if the record cannot be created.
func (s *Service) UploadFile(ctx context.Context, actor *models.Actor, organizationID uuid.UUID, name, contentType string, body io.Reader, size int64) (uuid.UUID, error) {
	if _, err := s.access.AuthorizeOrg(ctx, actor, organizationID); err != nil {
		return uuid.Nil, err
	}
	ft, ok := storage.FileTypeForUpload(contentType, name)
	if !ok {
		return uuid.Nil, models.ErrInvalidFileType
	}
	if _, allowed := storage.AllowedFileTypes[strings.ToLower(contentType)]; !allowed {
		contentType = storage.ContentTypeForFilename(name)
	}
	key := storage.FileKey(organizationID.String(), name)
	ref, err := s.blobs.Upload(ctx, key, contentType, body, size)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", models.ErrBlobUnavailable, err)
	}
	id, err := s.CreateFile(ctx, actor, organizationID, name, ref, models.FileType(ft))
	if err != nil {
		if delErr := s.blobs.DeleteBlob(ctx, ref); delErr != nil && !errors.Is(delErr, storage.ErrBlobNotFound) {
			s.logger.Warn("cleanup uploaded blob failed", zap.String("storage_ref", ref), zap.Error(delErr))
		}
		return uuid.Nil, err
	}
	return id, nil
}

// ListFiles returns the organization's files that match filter, each with a retrieval URL.
// An actor without access to the organization gets an empty list, not an error.
func (s *Service) ListFiles(ctx context.Context, actor *models.Actor, organizationID uuid.UUID, filter Filter) ([]models.FileWithURL, error) {
	if _, err := s.access.AuthorizeOrg(ctx, actor, organizationID); err != nil {
		if models.IsDenied(err) {
			return []models.FileWithURL{}, nil
		}
		return nil, err
	}
	list, err := s.store.ListByOrganization(ctx, organizationID, filter.DeletedOnly)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	var favorites map[uuid.UUID]struct{}
	if filter.FavoritesOnly {
		favorites, err = s.favorites.FavoriteFileIDs(ctx, actor.UserID, organizationID)
		if err != nil {
			return nil, fmt.Errorf("load favorites: %w", err)
		}
	}
	return s.resolveURLs(ctx, filter.Apply(list, favorites)), nil
}

// resolveURLs annotates files with retrieval URLs concurrently. Output order matches input order;
// a file whose URL cannot be resolved keeps a nil URL.
func (s *Service) resolveURLs(ctx context.Context, list []models.File) []models.FileWithURL {
	out := make([]models.FileWithURL, len(list))
	var g errgroup.Group
	g.SetLimit(s.opts.URLConcurrency)
	for i := range list {
		i := i
		out[i].File = list[i]
		g.Go(func() error {
			url, err := s.blobs.ResolveURL(ctx, out[i].StorageRef)
			if err != nil {
				s.logger.Warn("resolve file url failed",
					zap.String("file_id", out[i].ID.String()),
					zap.Error(err))
				return nil
			}
			out[i].URL = &url
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// DeleteFile flags a file for purge. Only the owner or an org admin may do it. Deleting an
// already flagged file succeeds without a write.
func (s *Service) DeleteFile(ctx context.Context, actor *models.Actor, fileID uuid.UUID) error {
	return s.setShouldDelete(ctx, actor, fileID, true)
}

// RestoreFile clears the purge flag under the same rules as DeleteFile.
func (s *Service) RestoreFile(ctx context.Context, actor *models.Actor, fileID uuid.UUID) error {
	return s.setShouldDelete(ctx, actor, fileID, false)
}

func (s *Service) setShouldDelete(ctx context.Context, actor *models.Actor, fileID uuid.UUID, shouldDelete bool) error {
	if actor == nil {
		return models.ErrUnauthenticated
	}
	f, err := s.store.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	membership, err := s.access.AuthorizeFile(ctx, actor, f)
	if err != nil {
		return err
	}
	if !access.CanMutateOrDelete(actor, f, membership) {
		s.logger.Warn("file mutation denied",
			zap.String("file_id", fileID.String()),
			zap.String("user_id", actor.UserID.String()),
			zap.String("role", string(membership.Role)))
		return models.ErrForbidden
	}
	if f.ShouldDelete == shouldDelete {
		return nil
	}
	if err := s.store.SetShouldDelete(ctx, fileID, shouldDelete); err != nil {
		return err
	}
	s.logger.Info("file delete flag changed",
		zap.String("file_id", fileID.String()),
		zap.String("user_id", actor.UserID.String()),
		zap.Bool("should_delete", shouldDelete))
	return nil
}
