package organizations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-drive/backend/internal/models"
)

// Repository reads organizations and memberships. Both are provisioned outside this service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MembershipsForUser returns every (organization, role) the user holds. It is read fresh on each
// call so membership changes apply to the next request.
func (r *Repository) MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	rows, err := r.pool.Query(ctx, `SELECT organization_id, role FROM organization_users WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.OrganizationID, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// UserOrganization is an organization together with the caller's role in it.
type UserOrganization struct {
	models.Organization
	Role models.OrgRole `json:"role"`
}

// ListOrganizationsForUser returns organizations the user is a member of (for GET /organizations).
func (r *Repository) ListOrganizationsForUser(ctx context.Context, userID uuid.UUID) ([]UserOrganization, error) {
	const q = `SELECT o.id, o.name, o.slug, o.created_at, o.updated_at, ou.role
		FROM organizations o
		INNER JOIN organization_users ou ON ou.organization_id = o.id
		WHERE ou.user_id = $1
		ORDER BY o.name`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []UserOrganization{}
	for rows.Next() {
		var o UserOrganization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt, &o.Role); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// Member represents an organization member with user details (for GET /organizations/:id/members).
type Member struct {
	ID       uuid.UUID      `json:"id"`
	UserID   uuid.UUID      `json:"user_id"`
	Email    string         `json:"email"`
	FullName string         `json:"full_name"`
	Role     models.OrgRole `json:"role"`
	AddedAt  time.Time      `json:"added_at"`
}

// ListMembers returns members of an organization (join organization_users + users).
func (r *Repository) ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error) {
	const q = `SELECT ou.id, ou.user_id, u.email, COALESCE(u.full_name, ''), ou.role, ou.created_at
		FROM organization_users ou
		INNER JOIN users u ON u.id = ou.user_id
		WHERE ou.organization_id = $1
		ORDER BY ou.created_at ASC`
	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.UserID, &m.Email, &m.FullName, &m.Role, &m.AddedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
