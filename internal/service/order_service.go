package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/lunchbot/internal/domain"
)

const defaultHistoryLimit = 20

// OrderObserver is notified about every ordering attempt outcome.
type OrderObserver interface {
	OrderPlaced(price domain.Amount)
	OrderRejected(reason string)
}

type OrderService struct {
	store    Store
	now      func() time.Time
	log      *zap.Logger
	observer OrderObserver
}

func NewOrderService(s Store, now func() time.Time, log *zap.Logger) *OrderService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{store: s, now: now, log: log}
}

func (s *OrderService) SetObserver(o OrderObserver) {
	s.observer = o
}

// Place runs the ordering flow: cutoff, user and item lookup, balance check,
// then a single debit-and-insert in the store.
func (s *OrderService) Place(ctx context.Context, userID, menuID int64) (*domain.OrderResult, error) {
	res, err := s.place(ctx, userID, menuID)
	if s.observer != nil {
		if err != nil {
			s.observer.OrderRejected(rejectReason(err))
		} else {
			s.observer.OrderPlaced(res.Order.PriceAtMoment)
		}
	}
	return res, err
}

func (s *OrderService) place(ctx context.Context, userID, menuID int64) (*domain.OrderResult, error) {
	now := s.now()
	if domain.OrderingClosed(now) {
		return nil, domain.ErrDeadlinePassed
	}
	if userID == 0 || menuID == 0 {
		return nil, fmt.Errorf("%w: user_id and menu_id are required", domain.ErrInvalidInput)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}

	item, err := s.store.GetMenuItem(ctx, menuID)
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("menu item %d: %w", menuID, domain.ErrNotFound)
	}
	if !item.OfferedOn(domain.MenuDate(now)) {
		return nil, domain.ErrItemUnavailable
	}

	if user.Balance < item.Price {
		return nil, domain.ErrInsufficientBalance
	}

	order := &domain.Order{
		UserID:        user.ID,
		MenuID:        item.ID,
		PriceAtMoment: item.Price,
	}
	balance, err := s.store.PlaceOrder(ctx, order)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.log.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", user.ID),
		zap.Int64("menu_id", item.ID),
		zap.Int64("price", item.Price.Int64()),
		zap.Int64("new_balance", balance.Int64()),
	)

	return &domain.OrderResult{Order: order, NewBalance: balance}, nil
}

// History returns the user's most recent orders, newest first.
func (s *OrderService) History(ctx context.Context, userID int64, limit int) ([]*domain.OrderLine, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	lines, err := s.store.ListOrdersByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if lines == nil {
		lines = []*domain.OrderLine{}
	}
	return lines, nil
}

// DaySummary tallies the orders placed for the given menu date.
func (s *OrderService) DaySummary(ctx context.Context, date string) (*domain.DaySummary, error) {
	lines, err := s.store.ListOrdersByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list orders by date: %w", err)
	}
	return domain.Summarize(date, lines), nil
}

// TodaySummary is DaySummary for the current local date.
func (s *OrderService) TodaySummary(ctx context.Context) (*domain.DaySummary, error) {
	return s.DaySummary(ctx, domain.MenuDate(s.now()))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrItemUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
