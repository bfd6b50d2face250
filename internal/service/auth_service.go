package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-helpdesk/internal/auth"
	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/domain"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/pkg/util/errorutil"
)

// AuthService coordinates agent registration, approval and login.
type AuthService struct {
	agents     repository.AgentRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AgentRepo repository.AgentRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		agents:     deps.AgentRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// RegisterAgent creates an agent account awaiting approval. The very first
// account is approved as admin so the system can be bootstrapped.
func (s *AuthService) RegisterAgent(ctx context.Context, fullName, email, password string) (*domain.Agent, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" {
		return nil, errorutil.NewValidationError("full_name and email are required", nil)
	}
	if _, err := s.agents.GetByEmail(ctx, email); err == nil {
		return nil, errorutil.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, errorutil.NewValidationError(err.Error(), nil)
		}
		return nil, err
	}

	agent := &domain.Agent{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.AgentRoleAgent,
		Status:       domain.AgentStatusPending,
	}
	existing, err := s.agents.List(ctx, repository.AgentFilter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		agent.Role = domain.AgentRoleAdmin
		agent.Status = domain.AgentStatusApproved
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// LoginAgent authenticates an approved agent and issues a token.
func (s *AuthService) LoginAgent(ctx context.Context, email, password string) (*domain.Agent, string, time.Time, error) {
	agent, err := s.agents.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(agent.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errorutil.NewUnauthorized("invalid credentials")
	}
	switch agent.Status {
	case domain.AgentStatusApproved:
	case domain.AgentStatusRejected:
		return nil, "", time.Time{}, errorutil.NewForbidden("account rejected")
	default:
		return nil, "", time.Time{}, errorutil.NewForbidden("account awaiting approval")
	}
	token, exp, err := s.tokenMgr.GenerateToken(agent)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return agent, token, exp, nil
}

// ApproveAgent approves a pending agent with the given role.
func (s *AuthService) ApproveAgent(ctx context.Context, id int64, role domain.AgentRole) (*domain.Agent, error) {
	if role != domain.AgentRoleAgent && role != domain.AgentRoleAdmin {
		return nil, errorutil.NewValidationError("invalid role", map[string]any{"role": role})
	}
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	agent.Role = role
	agent.Status = domain.AgentStatusApproved
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// RejectAgent marks an agent rejected. The record stays so tickets assigned
// by name keep resolving; the agent can no longer log in.
func (s *AuthService) RejectAgent(ctx context.Context, id, actorID int64) (*domain.Agent, error) {
	if id == actorID {
		return nil, errorutil.NewValidationError("agents cannot reject themselves", nil)
	}
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if agent.Status == domain.AgentStatusRejected {
		return agent, nil
	}
	agent.Status = domain.AgentStatusRejected
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents returns agents, optionally filtered by status.
func (s *AuthService) ListAgents(ctx context.Context, status *domain.AgentStatus) ([]domain.Agent, error) {
	return s.agents.List(ctx, repository.AgentFilter{Status: status})
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
