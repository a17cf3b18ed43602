package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tazhate/lunchbot/internal/domain"
)

const (
	userSelect  = "id,phone,full_name,balance,role,created_at"
	menuSelect  = "id,title,price,date,is_active,created_at"
	orderSelect = "id,user_id,menu_id,price_at_moment,created_at,users(full_name)"

	casAttempts = 5
)

// ErrConflict is returned when a balance kept changing under a
// compare-and-swap update.
var ErrConflict = errors.New("balance changed concurrently, retry")

// Store implements the service store on top of PostgREST. PostgREST has no
// relative updates, so balance changes are compare-and-swap on the old value.
type Store struct {
	c *Client
}

func NewStore(c *Client) *Store {
	return &Store{c: c}
}

func (s *Store) Close() error {
	return nil
}

// === Users ===

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	q := url.Values{}
	q.Set("select", userSelect)
	q.Set("id", Eq(id))

	var rows []*domain.User
	if err := s.c.Select(ctx, tableUsers, q, &rows); err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) UpsertUserContact(ctx context.Context, u *domain.User) (*domain.User, error) {
	var rows []*domain.User
	row := contactRow{ID: u.ID, Phone: u.Phone, FullName: u.FullName}
	if err := s.c.Upsert(ctx, tableUsers, "id", row, &rows); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("upsert user: empty representation")
	}
	return rows[0], nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	q := url.Values{}
	q.Set("select", userSelect)
	q.Set("order", "role.asc,id.asc")

	var rows []*domain.User
	if err := s.c.Select(ctx, tableUsers, q, &rows); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	return rows, nil
}

// swapBalance sets the balance to next only if it still equals prev. It
// reports whether the row was updated.
func (s *Store) swapBalance(ctx context.Context, userID int64, prev, next domain.Amount) (bool, error) {
	q := url.Values{}
	q.Set("id", Eq(userID))
	q.Set("balance", Eq(prev.Int64()))

	var rows []*domain.User
	patch := map[string]interface{}{"balance": next}
	if err := s.c.Update(ctx, tableUsers, q, patch, &rows); err != nil {
		return false, fmt.Errorf("update balance: %w", err)
	}
	return len(rows) == 1, nil
}

func (s *Store) AdjustBalance(ctx context.Context, userID int64, delta domain.Amount) (domain.Amount, error) {
	for i := 0; i < casAttempts; i++ {
		u, err := s.GetUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		if u == nil {
			return 0, domain.ErrNotFound
		}
		next, fits := u.Balance.Add(delta)
		if !fits {
			return 0, fmt.Errorf("%w: balance overflow", domain.ErrInvalidInput)
		}
		if next < 0 {
			return 0, domain.ErrInsufficientBalance
		}
		ok, err := s.swapBalance(ctx, userID, u.Balance, next)
		if err != nil {
			return 0, err
		}
		if ok {
			return next, nil
		}
	}
	return 0, ErrConflict
}

func (s *Store) SetUserRole(ctx context.Context, userID int64, role domain.UserRole) error {
	q := url.Values{}
	q.Set("id", Eq(userID))

	var rows []*domain.User
	if err := s.c.Update(ctx, tableUsers, q, map[string]interface{}{"role": role}, &rows); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// === Menu ===

func (s *Store) CreateMenuItem(ctx context.Context, m *domain.MenuItem) error {
	var rows []*domain.MenuItem
	row := menuInsert{Title: m.Title, Price: m.Price, Date: m.Date, IsActive: m.IsActive}
	if err := s.c.Insert(ctx, tableMenu, row, &rows); err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("insert menu item: empty representation")
	}
	m.ID = rows[0].ID
	m.CreatedAt = rows[0].CreatedAt
	return nil
}

func (s *Store) GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error) {
	q := url.Values{}
	q.Set("select", menuSelect)
	q.Set("id", Eq(id))

	var rows []*domain.MenuItem
	if err := s.c.Select(ctx, tableMenu, q, &rows); err != nil {
		return nil, fmt.Errorf("select menu item: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Store) ListMenuByDate(ctx context.Context, date string, activeOnly bool) ([]*domain.MenuItem, error) {
	q := url.Values{}
	q.Set("select", menuSelect)
	q.Set("date", Eq(date))
	if activeOnly {
		q.Set("is_active", "eq.true")
	}
	q.Set("order", "id.asc")

	var rows []*domain.MenuItem
	if err := s.c.Select(ctx, tableMenu, q, &rows); err != nil {
		return nil, fmt.Errorf("select menu: %w", err)
	}
	return rows, nil
}

// === Orders ===

// PlaceOrder debits by compare-and-swap, then inserts the order. If the insert
// fails the debit is credited back.
func (s *Store) PlaceOrder(ctx context.Context, o *domain.Order) (domain.Amount, error) {
	balance, err := s.AdjustBalance(ctx, o.UserID, -o.PriceAtMoment)
	if err != nil {
		return 0, err
	}

	var rows []*domain.Order
	row := orderInsert{UserID: o.UserID, MenuID: o.MenuID, PriceAtMoment: o.PriceAtMoment}
	insertErr := s.c.Insert(ctx, tableOrders, row, &rows)
	if insertErr == nil && len(rows) == 0 {
		insertErr = fmt.Errorf("empty representation")
	}
	if insertErr != nil {
		// The request context may already be done; the refund must still go out.
		refundCtx := context.WithoutCancel(ctx)
		if _, err := s.AdjustBalance(refundCtx, o.UserID, o.PriceAtMoment); err != nil {
			return 0, errors.Join(fmt.Errorf("insert order: %w", insertErr), fmt.Errorf("refund debit: %w", err))
		}
		return 0, fmt.Errorf("insert order: %w", insertErr)
	}

	o.ID = rows[0].ID
	o.CreatedAt = rows[0].CreatedAt
	return balance, nil
}

func (s *Store) ListOrdersByDate(ctx context.Context, menuDate string) ([]*domain.OrderLine, error) {
	q := url.Values{}
	q.Set("select", orderSelect+",menu!inner(title,date)")
	q.Set("menu.date", Eq(menuDate))
	q.Set("order", "id.asc")
	return s.listOrders(ctx, q)
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]*domain.OrderLine, error) {
	q := url.Values{}
	q.Set("select", orderSelect+",menu(title,date)")
	q.Set("user_id", Eq(userID))
	q.Set("order", "id.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return s.listOrders(ctx, q)
}

func (s *Store) listOrders(ctx context.Context, q url.Values) ([]*domain.OrderLine, error) {
	var rows []*orderRow
	if err := s.c.Select(ctx, tableOrders, q, &rows); err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	lines := make([]*domain.OrderLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.line())
	}
	return lines, nil
}
