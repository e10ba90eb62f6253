// Package access decides which actors may see and change organization files.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-drive/backend/internal/models"
)

// MembershipOracle returns the organizations a user belongs to, each with a role.
type MembershipOracle interface {
	MembershipsForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
}

// Evaluator answers org and file access questions. It keeps no membership state of its own;
// the oracle is consulted on every call.
type Evaluator struct {
	oracle MembershipOracle
	logger *zap.Logger
}

// NewEvaluator creates an access evaluator.
func NewEvaluator(oracle MembershipOracle, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{oracle: oracle, logger: logger}
}

// AuthorizeOrg returns the actor's membership in orgID. It fails with models.ErrUnauthenticated
// for a nil actor and models.ErrForbidden when the actor is not a member. Any other error comes
// from the oracle.
func (e *Evaluator) AuthorizeOrg(ctx context.Context, actor *models.Actor, orgID uuid.UUID) (*models.Membership, error) {
	if actor == nil {
		e.logger.Warn("org access denied",
			zap.String("organization_id", orgID.String()),
			zap.String("reason", "unauthenticated"))
		return nil, models.ErrUnauthenticated
	}
	memberships, err := e.oracle.MembershipsForUser(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	for i := range memberships {
		m := &memberships[i]
		if m.OrganizationID == orgID {
			e.logger.Info("org access granted",
				zap.String("user_id", actor.UserID.String()),
				zap.String("organization_id", orgID.String()),
				zap.String("role", string(m.Role)))
			return m, nil
		}
	}
	e.logger.Warn("org access denied",
		zap.String("user_id", actor.UserID.String()),
		zap.String("organization_id", orgID.String()),
		zap.String("reason", "not a member"))
	return nil, models.ErrForbidden
}

// AuthorizeFile grants access to a file to any member of the file's organization, regardless of owner.
func (e *Evaluator) AuthorizeFile(ctx context.Context, actor *models.Actor, file *models.File) (*models.Membership, error) {
	return e.AuthorizeOrg(ctx, actor, file.OrganizationID)
}

// CanMutateOrDelete reports whether the actor may delete or restore the file: the owner or an
// admin of the file's organization.
func CanMutateOrDelete(actor *models.Actor, file *models.File, membership *models.Membership) bool {
	if actor == nil || file == nil || membership == nil {
		return false
	}
	if file.OwnerUserID == actor.UserID {
		return true
	}
	return membership.OrganizationID == file.OrganizationID && membership.IsAdmin()
}
