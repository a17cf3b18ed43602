// Package memory is an in-process store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tazhate/lunchbot/internal/domain"
)

type Store struct {
	mu         sync.Mutex
	users      map[int64]*domain.User
	menu       map[int64]*domain.MenuItem
	orders     []*domain.Order
	nextMenuID int64
	nextOrder  int64

	// failNext makes the next call of the named operation return the error.
	failNext map[string]error
}

func New() *Store {
	return &Store{
		users:      make(map[int64]*domain.User),
		menu:       make(map[int64]*domain.MenuItem),
		nextMenuID: 1,
		nextOrder:  1,
		failNext:   make(map[string]error),
	}
}

// FailNext injects err into the next call of op (e.g. "PlaceOrder").
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = err
}

func (s *Store) takeErr(op string) error {
	if err, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return err
	}
	return nil
}

// PutUser stores u as is, role and balance included.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	if cp.Role == "" {
		cp.Role = domain.RoleUser
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.users[cp.ID] = &cp
}

func (s *Store) Orders() []*domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpsertUserContact(_ context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("UpsertUserContact"); err != nil {
		return nil, err
	}
	existing, ok := s.users[u.ID]
	if !ok {
		existing = &domain.User{ID: u.ID, Role: domain.RoleUser, CreatedAt: time.Now()}
		s.users[u.ID] = existing
	}
	existing.Phone = u.Phone
	existing.FullName = u.FullName
	cp := *existing
	return &cp, nil
}

func (s *Store) ListUsers(_ context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListUsers"); err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) AdjustBalance(_ context.Context, userID int64, delta domain.Amount) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("AdjustBalance"); err != nil {
		return 0, err
	}
	u, ok := s.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	next, ok := u.Balance.Add(delta)
	if !ok {
		return 0, fmt.Errorf("%w: balance overflow", domain.ErrInvalidInput)
	}
	if next < 0 {
		return 0, domain.ErrInsufficientBalance
	}
	u.Balance = next
	return u.Balance, nil
}

func (s *Store) SetUserRole(_ context.Context, userID int64, role domain.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("SetUserRole"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	return nil
}

func (s *Store) CreateMenuItem(_ context.Context, m *domain.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("CreateMenuItem"); err != nil {
		return err
	}
	m.ID = s.nextMenuID
	s.nextMenuID++
	m.CreatedAt = time.Now()
	cp := *m
	s.menu[m.ID] = &cp
	return nil
}

func (s *Store) GetMenuItem(_ context.Context, id int64) (*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("GetMenuItem"); err != nil {
		return nil, err
	}
	m, ok := s.menu[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMenuByDate(_ context.Context, date string, activeOnly bool) ([]*domain.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListMenuByDate"); err != nil {
		return nil, err
	}
	var out []*domain.MenuItem
	for _, m := range s.menu {
		if m.Date != date || (activeOnly && !m.IsActive) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PlaceOrder checks and debits under the store lock, so concurrent orders by
// the same user cannot overdraw.
func (s *Store) PlaceOrder(_ context.Context, o *domain.Order) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("PlaceOrder"); err != nil {
		return 0, err
	}
	u, ok := s.users[o.UserID]
	if !ok {
		return 0, fmt.Errorf("user %d: %w", o.UserID, domain.ErrNotFound)
	}
	if u.Balance < o.PriceAtMoment {
		return 0, domain.ErrInsufficientBalance
	}
	u.Balance -= o.PriceAtMoment
	o.ID = s.nextOrder
	s.nextOrder++
	o.CreatedAt = time.Now()
	cp := *o
	s.orders = append(s.orders, &cp)
	return u.Balance, nil
}

func (s *Store) ListOrdersByDate(_ context.Context, menuDate string) ([]*domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListOrdersByDate"); err != nil {
		return nil, err
	}
	var out []*domain.OrderLine
	for _, o := range s.orders {
		line := s.line(o)
		if line.MenuDate == menuDate {
			out = append(out, line)
		}
	}
	return out, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID int64, limit int) ([]*domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr("ListOrdersByUser"); err != nil {
		return nil, err
	}
	var out []*domain.OrderLine
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID != userID {
			continue
		}
		out = append(out, s.line(s.orders[i]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) line(o *domain.Order) *domain.OrderLine {
	l := &domain.OrderLine{Order: *o}
	if u, ok := s.users[o.UserID]; ok {
		l.UserName = u.FullName
	}
	if m, ok := s.menu[o.MenuID]; ok {
		l.MenuTitle = m.Title
		l.MenuDate = m.Date
	}
	return l
}
