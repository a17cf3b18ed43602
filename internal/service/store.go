package service

import (
	"context"

	"github.com/tazhate/lunchbot/internal/domain"
)

// Store is the data access surface every backend (SQL, PostgREST, memory)
// implements. Lookups return (nil, nil) when the record does not exist.
type Store interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// UpsertUserContact inserts the user or overwrites phone and full name,
	// leaving role and balance untouched.
	UpsertUserContact(ctx context.Context, u *domain.User) (*domain.User, error)
	// ListUsers orders by role (lexically), then id.
	ListUsers(ctx context.Context) ([]*domain.User, error)
	// AdjustBalance adds delta atomically. It returns (0, domain.ErrNotFound)
	// for a missing user and domain.ErrInsufficientBalance when the result
	// would be negative.
	AdjustBalance(ctx context.Context, userID int64, delta domain.Amount) (domain.Amount, error)
	// SetUserRole returns domain.ErrNotFound for a missing user.
	SetUserRole(ctx context.Context, userID int64, role domain.UserRole) error

	CreateMenuItem(ctx context.Context, m *domain.MenuItem) error
	GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error)
	ListMenuByDate(ctx context.Context, date string, activeOnly bool) ([]*domain.MenuItem, error)

	// PlaceOrder debits o.PriceAtMoment from the user if the balance covers it
	// and records the order, as one unit. It returns the balance after the
	// debit, or domain.ErrInsufficientBalance without side effects.
	PlaceOrder(ctx context.Context, o *domain.Order) (domain.Amount, error)
	ListOrdersByDate(ctx context.Context, menuDate string) ([]*domain.OrderLine, error)
	ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]*domain.OrderLine, error)
}
