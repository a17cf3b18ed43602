package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tazhate/lunchbot/internal/domain"
)

type RegistrationService struct {
	store Store
}

func NewRegistrationService(s Store) *RegistrationService {
	return &RegistrationService{store: s}
}

// Register creates the user on first contact share. Sharing again refreshes
// phone and name only; role and balance are kept.
func (s *RegistrationService) Register(ctx context.Context, c domain.Contact) (*domain.User, error) {
	if c.UserID == 0 {
		return nil, fmt.Errorf("%w: contact without user id", domain.ErrInvalidInput)
	}
	phone := strings.TrimSpace(c.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: contact without phone number", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	u, err := s.store.UpsertUserContact(ctx, &domain.User{
		ID:       c.UserID,
		Phone:    phone,
		FullName: strings.TrimSpace(c.FullName()),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}
