package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tazhate/lunchbot/internal/domain"
)

type AdminService struct {
	store  Store
	users  *UserService
	orders *OrderService
	now    func() time.Time
}

func NewAdminService(s Store, users *UserService, orders *OrderService, now func() time.Time) *AdminService {
	if now == nil {
		now = time.Now
	}
	return &AdminService{store: s, users: users, orders: orders, now: now}
}

// AddMenuItem puts a new active item on today's menu.
func (s *AdminService) AddMenuItem(ctx context.Context, actorID int64, title string, price domain.Amount) (*domain.MenuItem, error) {
	if _, err := s.users.Authorize(ctx, actorID, domain.LevelAdmin); err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrInvalidInput)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrInvalidInput)
	}

	item := &domain.MenuItem{
		Title:    title,
		Price:    price,
		Date:     domain.MenuDate(s.now()),
		IsActive: true,
	}
	if err := s.store.CreateMenuItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}
	return item, nil
}

func (s *AdminService) ListUsers(ctx context.Context, actorID int64) ([]*domain.User, error) {
	if _, err := s.users.Authorize(ctx, actorID, domain.LevelAdmin); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// TopUpBalance adds amount (possibly negative) to the target's balance. The
// balance may not drop below zero and one adjustment is capped at MaxTopUp.
func (s *AdminService) TopUpBalance(ctx context.Context, actorID, targetID int64, amount domain.Amount) (domain.Amount, error) {
	if _, err := s.users.Authorize(ctx, actorID, domain.LevelAdmin); err != nil {
		return 0, err
	}
	if targetID == 0 {
		return 0, fmt.Errorf("%w: target_id is required", domain.ErrInvalidInput)
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount cannot be zero", domain.ErrInvalidInput)
	}
	if amount > domain.MaxTopUp || amount < -domain.MaxTopUp {
		return 0, fmt.Errorf("%w: amount exceeds %s", domain.ErrInvalidInput, domain.MaxTopUp)
	}

	balance, err := s.store.AdjustBalance(ctx, targetID, amount)
	if err != nil {
		return 0, fmt.Errorf("adjust balance of %d: %w", targetID, err)
	}
	return balance, nil
}

// Promote makes the target an admin. Only the boss may do it; promoting an
// admin again is a no-op and a boss is left as is.
func (s *AdminService) Promote(ctx context.Context, actorID, targetID int64) error {
	if _, err := s.users.Authorize(ctx, actorID, domain.LevelBoss); err != nil {
		return err
	}
	target, err := s.users.Resolve(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role.Level() >= domain.LevelAdmin {
		return nil
	}
	if err := s.store.SetUserRole(ctx, targetID, domain.RoleAdmin); err != nil {
		return fmt.Errorf("set role of %d: %w", targetID, err)
	}
	return nil
}

func (s *AdminService) TodayOrders(ctx context.Context, actorID int64) (*domain.DaySummary, error) {
	if _, err := s.users.Authorize(ctx, actorID, domain.LevelAdmin); err != nil {
		return nil, err
	}
	return s.orders.TodaySummary(ctx)
}
