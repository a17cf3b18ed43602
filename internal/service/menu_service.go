package service

import (
	"context"
	"time"

	"github.com/tazhate/lunchbot/internal/domain"
)

type MenuService struct {
	store Store
	now   func() time.Time
}

func NewMenuService(s Store, now func() time.Time) *MenuService {
	if now == nil {
		now = time.Now
	}
	return &MenuService{store: s, now: now}
}

// Today returns the active items for the current local date.
func (s *MenuService) Today(ctx context.Context) ([]*domain.MenuItem, error) {
	items, err := s.store.ListMenuByDate(ctx, domain.MenuDate(s.now()), true)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.MenuItem{}
	}
	return items, nil
}

func (s *MenuService) OrderingClosed() bool {
	return domain.OrderingClosed(s.now())
}
