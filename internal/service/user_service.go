package service

import (
	"context"
	"fmt"

	"github.com/tazhate/lunchbot/internal/domain"
)

type UserService struct {
	store Store
}

func NewUserService(s Store) *UserService {
	return &UserService{store: s}
}

// Resolve maps a Telegram id to its registered user.
func (s *UserService) Resolve(ctx context.Context, id int64) (*domain.User, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// Authorize resolves the actor and checks the access level. An actor that
// cannot be resolved is forbidden rather than not found.
func (s *UserService) Authorize(ctx context.Context, actorID int64, level domain.AccessLevel) (*domain.User, error) {
	if actorID == 0 {
		return nil, domain.ErrForbidden
	}
	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := domain.Authorize(u, level); err != nil {
		return nil, err
	}
	return u, nil
}
