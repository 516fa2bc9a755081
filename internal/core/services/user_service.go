package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type UserService struct {
	repo     ports.UserRepository
	identity ports.IdentityProvider
}

func NewUserService(repo ports.UserRepository, identity ports.IdentityProvider) *UserService {
	return &UserService{
		repo:     repo,
		identity: identity,
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Me returns the user behind the current identity.
func (s *UserService) Me(ctx context.Context) (*domain.User, error) {
	caller, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return s.GetByID(ctx, caller.UserID)
}
