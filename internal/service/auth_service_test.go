package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

func TestAgentRegistrationFlow(t *testing.T) {
	s := newStore()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost},
		AuthDependencies{AgentRepo: fakeAgentRepo{s}})
	ctx := context.Background()

	first, err := svc.RegisterAgent(ctx, "Anna Admin", "Anna@Example.it", "password1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRoleAdmin, first.Role)
	assert.Equal(t, domain.AgentStatusApproved, first.Status)
	assert.Equal(t, "anna@example.it", first.Email)

	second, err := svc.RegisterAgent(ctx, "Luca Bianchi", "luca@example.it", "password2")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusPending, second.Status)

	_, err = svc.RegisterAgent(ctx, "Luca Doppio", "luca@example.it", "password3")
	assert.Equal(t, "CONFLICT", errorutil.ToDomainError(err).Code)
	_, err = svc.RegisterAgent(ctx, "Corto", "corto@example.it", "abc")
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)

	_, _, _, err = svc.LoginAgent(ctx, "luca@example.it", "password2")
	assert.Equal(t, "FORBIDDEN", errorutil.ToDomainError(err).Code)

	_, err = svc.ApproveAgent(ctx, second.ID, domain.AgentRoleAgent)
	require.NoError(t, err)

	agent, token, _, err := svc.LoginAgent(ctx, "LUCA@example.it", "password2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, agent.ID)
	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, second.ID, claims.AgentID)

	_, _, _, err = svc.LoginAgent(ctx, "luca@example.it", "wrong-password")
	assert.Equal(t, "UNAUTHORIZED", errorutil.ToDomainError(err).Code)
	_, _, _, err = svc.LoginAgent(ctx, "nobody@example.it", "password2")
	assert.Equal(t, "UNAUTHORIZED", errorutil.ToDomainError(err).Code)
}

func TestRejectAgent(t *testing.T) {
	s := newStore()
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost},
		AuthDependencies{AgentRepo: fakeAgentRepo{s}})
	ctx := context.Background()

	admin, err := svc.RegisterAgent(ctx, "Anna Admin", "anna@example.it", "password1")
	require.NoError(t, err)
	pending, err := svc.RegisterAgent(ctx, "Luca Bianchi", "luca@example.it", "password2")
	require.NoError(t, err)

	_, err = svc.RejectAgent(ctx, admin.ID, admin.ID)
	assert.Equal(t, "VALIDATION_FAILED", errorutil.ToDomainError(err).Code)

	rejected, err := svc.RejectAgent(ctx, pending.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusRejected, rejected.Status)

	_, _, _, err = svc.LoginAgent(ctx, "luca@example.it", "password2")
	de := errorutil.ToDomainError(err)
	assert.Equal(t, "FORBIDDEN", de.Code)
	assert.Equal(t, "account rejected", de.Message)

	_, err = svc.RejectAgent(ctx, 9999, admin.ID)
	assert.Equal(t, "NOT_FOUND", errorutil.ToDomainError(err).Code)
}
