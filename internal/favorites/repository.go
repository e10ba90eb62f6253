package favorites

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-drive/backend/internal/models"
)

// Repository handles favorite persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a favorites repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Find returns the favorite for (user, file), or nil if there is none.
func (r *Repository) Find(ctx context.Context, userID, fileID uuid.UUID) (*models.Favorite, error) {
	const q = `SELECT id, user_id, organization_id, file_id, created_at FROM favorites WHERE user_id = $1 AND file_id = $2`
	var fav models.Favorite
	err := r.pool.QueryRow(ctx, q, userID, fileID).Scan(&fav.ID, &fav.UserID, &fav.OrganizationID, &fav.FileID, &fav.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fav, nil
}

// Create inserts a favorite. A concurrent duplicate for the same (user, file) is ignored.
func (r *Repository) Create(ctx context.Context, fav *models.Favorite) error {
	const q = `INSERT INTO favorites (id, user_id, organization_id, file_id)
		VALUES (gen_random_uuid(), $1, $2, $3)
		ON CONFLICT (user_id, file_id) DO UPDATE SET organization_id = EXCLUDED.organization_id
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, fav.UserID, fav.OrganizationID, fav.FileID).Scan(&fav.ID, &fav.CreatedAt)
}

// Delete removes a favorite by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM favorites WHERE id = $1`, id)
	return err
}

// ListByUserAndOrganization returns a user's favorites within one organization.
func (r *Repository) ListByUserAndOrganization(ctx context.Context, userID, organizationID uuid.UUID) ([]models.Favorite, error) {
	const q = `SELECT id, user_id, organization_id, file_id, created_at FROM favorites
		WHERE user_id = $1 AND organization_id = $2
		ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Favorite{}
	for rows.Next() {
		var fav models.Favorite
		if err := rows.Scan(&fav.ID, &fav.UserID, &fav.OrganizationID, &fav.FileID, &fav.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, fav)
	}
	return list, rows.Err()
}

// FavoriteFileIDs returns the set of file ids a user has favorited within an organization.
func (r *Repository) FavoriteFileIDs(ctx context.Context, userID, organizationID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT file_id FROM favorites WHERE user_id = $1 AND organization_id = $2`, userID, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
