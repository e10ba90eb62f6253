package access

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-drive/backend/internal/models"
)

type staticOracle struct {
	memberships map[uuid.UUID][]models.Membership
	err         error
	calls       int
}

func (o *staticOracle) MembershipsForUser(_ context.Context, userID uuid.UUID) ([]models.Membership, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	return o.memberships[userID], nil
}

func TestAuthorizeOrg(t *testing.T) {
	orgID := uuid.New()
	otherOrg := uuid.New()
	member := &models.Actor{UserID: uuid.New()}
	outsider := &models.Actor{UserID: uuid.New()}
	oracle := &staticOracle{memberships: map[uuid.UUID][]models.Membership{
		member.UserID: {
			{OrganizationID: otherOrg, Role: models.OrgRoleAdmin},
			{OrganizationID: orgID, Role: models.OrgRoleMember},
		},
	}}
	e := NewEvaluator(oracle, nil)

	m, err := e.AuthorizeOrg(context.Background(), member, orgID)
	require.NoError(t, err)
	assert.Equal(t, orgID, m.OrganizationID)
	assert.Equal(t, models.OrgRoleMember, m.Role)

	_, err = e.AuthorizeOrg(context.Background(), outsider, orgID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = e.AuthorizeOrg(context.Background(), nil, orgID)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthorizeOrgConsultsOracleEveryCall(t *testing.T) {
	orgID := uuid.New()
	actor := &models.Actor{UserID: uuid.New()}
	oracle := &staticOracle{memberships: map[uuid.UUID][]models.Membership{
		actor.UserID: {{OrganizationID: orgID, Role: models.OrgRoleMember}},
	}}
	e := NewEvaluator(oracle, nil)

	_, err := e.AuthorizeOrg(context.Background(), actor, orgID)
	require.NoError(t, err)

	oracle.memberships[actor.UserID] = nil
	_, err = e.AuthorizeOrg(context.Background(), actor, orgID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.Equal(t, 2, oracle.calls)
}

func TestAuthorizeOrgOracleFailureIsNotDenial(t *testing.T) {
	boom := errors.New("db down")
	e := NewEvaluator(&staticOracle{err: boom}, nil)

	_, err := e.AuthorizeOrg(context.Background(), &models.Actor{UserID: uuid.New()}, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, models.ErrForbidden)
}

func TestAuthorizeOrgWritesAuditLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	orgID := uuid.New()
	actor := &models.Actor{UserID: uuid.New()}
	oracle := &staticOracle{memberships: map[uuid.UUID][]models.Membership{
		actor.UserID: {{OrganizationID: orgID, Role: models.OrgRoleAdmin}},
	}}
	e := NewEvaluator(oracle, zap.New(core))

	_, _ = e.AuthorizeOrg(context.Background(), actor, orgID)
	_, _ = e.AuthorizeOrg(context.Background(), actor, uuid.New())

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "org access granted", entries[0].Message)
	assert.Equal(t, "org access denied", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestAuthorizeFileUsesFileOrganization(t *testing.T) {
	orgID := uuid.New()
	creator := uuid.New()
	reader := &models.Actor{UserID: uuid.New()}
	oracle := &staticOracle{memberships: map[uuid.UUID][]models.Membership{
		reader.UserID: {{OrganizationID: orgID, Role: models.OrgRoleMember}},
	}}
	e := NewEvaluator(oracle, nil)

	file := &models.File{ID: uuid.New(), OrganizationID: orgID, OwnerUserID: creator}
	m, err := e.AuthorizeFile(context.Background(), reader, file)
	require.NoError(t, err)
	assert.Equal(t, orgID, m.OrganizationID)

	foreign := &models.File{ID: uuid.New(), OrganizationID: uuid.New(), OwnerUserID: reader.UserID}
	_, err = e.AuthorizeFile(context.Background(), reader, foreign)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCanMutateOrDelete(t *testing.T) {
	orgID := uuid.New()
	owner := &models.Actor{UserID: uuid.New()}
	other := &models.Actor{UserID: uuid.New()}
	file := &models.File{ID: uuid.New(), OrganizationID: orgID, OwnerUserID: owner.UserID}

	memberOf := &models.Membership{OrganizationID: orgID, Role: models.OrgRoleMember}
	adminOf := &models.Membership{OrganizationID: orgID, Role: models.OrgRoleAdmin}
	adminElsewhere := &models.Membership{OrganizationID: uuid.New(), Role: models.OrgRoleAdmin}

	tests := []struct {
		name       string
		actor      *models.Actor
		membership *models.Membership
		want       bool
	}{
		{"owner member", owner, memberOf, true},
		{"owner admin", owner, adminOf, true},
		{"non-owner member", other, memberOf, false},
		{"non-owner admin", other, adminOf, true},
		{"admin of another org", other, adminElsewhere, false},
		{"nil membership", owner, nil, false},
		{"nil actor", nil, adminOf, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutateOrDelete(tt.actor, file, tt.membership))
		})
	}
}
