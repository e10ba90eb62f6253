package files

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-drive/backend/internal/models"
)

const fileColumns = `id, name, organization_id, owner_user_id, storage_ref, type, should_delete, created_at, updated_at`

// Repository handles file persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a files repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner, f *models.File) error {
	return row.Scan(&f.ID, &f.Name, &f.OrganizationID, &f.OwnerUserID, &f.StorageRef, &f.Type, &f.ShouldDelete, &f.CreatedAt, &f.UpdatedAt)
}

const (
	uniqueViolation       = "23505"
	storageRefUniqueIndex = "idx_files_storage_ref"
)

// Create inserts a new file record. A storage ref that is already registered fails with
// models.ErrInvalidInput.
func (r *Repository) Create(ctx context.Context, f *models.File) error {
	const q = `INSERT INTO files (id, name, organization_id, owner_user_id, storage_ref, type, should_delete)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, f.Name, f.OrganizationID, f.OwnerUserID, f.StorageRef, string(f.Type), f.ShouldDelete).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == storageRefUniqueIndex {
		return fmt.Errorf("%w: storage ref already registered", models.ErrInvalidInput)
	}
	return err
}

// GetByID returns a file by ID, or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var f models.File
	if err := scanFile(r.pool.QueryRow(ctx, q, id), &f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// ListByOrganization returns an organization's live or flagged files, newest first.
func (r *Repository) ListByOrganization(ctx context.Context, organizationID uuid.UUID, deleted bool) ([]models.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files
		WHERE organization_id = $1 AND should_delete = $2
		ORDER BY created_at DESC`
	return r.query(ctx, q, organizationID, deleted)
}

// ListMarkedForDeletion returns every flagged file across organizations.
func (r *Repository) ListMarkedForDeletion(ctx context.Context) ([]models.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE should_delete = TRUE ORDER BY updated_at`
	return r.query(ctx, q)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]models.File, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.File{}
	for rows.Next() {
		var f models.File
		if err := scanFile(rows, &f); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// SetShouldDelete sets the purge flag on a file.
func (r *Repository) SetShouldDelete(ctx context.Context, id uuid.UUID, shouldDelete bool) error {
	const q = `UPDATE files SET should_delete = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.pool.Exec(ctx, q, shouldDelete, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Purge removes a flagged file record and its favorites in one transaction. The row is locked and
// its flag re-read first; if it is gone or was restored, Purge returns ErrNotFlagged and changes
// nothing. beforeDelete runs while the lock is held, so a concurrent restore waits for the purge.
func (r *Repository) Purge(ctx context.Context, id uuid.UUID, beforeDelete func(ctx context.Context) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var flagged bool
		err := tx.QueryRow(ctx, `SELECT should_delete FROM files WHERE id = $1 FOR UPDATE`, id).Scan(&flagged)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFlagged
		}
		if err != nil {
			return err
		}
		if !flagged {
			return ErrNotFlagged
		}
		if beforeDelete != nil {
			if err := beforeDelete(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM favorites WHERE file_id = $1`, id); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM files WHERE id = $1 AND should_delete = TRUE`, id)
		return err
	})
}
