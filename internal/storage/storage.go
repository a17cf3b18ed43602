package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tazhate/lunchbot/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Storage is the SQL backend. It speaks SQLite for local deployments and
// Postgres for a managed database.
type Storage struct {
	db      *sqlx.DB
	timeout time.Duration
}

// New opens dsn: a postgres:// URL selects Postgres, anything else is a SQLite
// file path.
func New(dsn string, timeout time.Duration) (*Storage, error) {
	var (
		db  *sqlx.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
	} else {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err = sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// One writer at a time; SQLite would answer SQLITE_BUSY otherwise.
		db.SetMaxOpenConns(1)
	}

	s := NewWithDB(db, timeout)

	ctx, cancel := s.ctx(context.Background())
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewWithDB wraps an already opened handle without migrating it.
func NewWithDB(db *sqlx.DB, timeout time.Duration) *Storage {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Storage{db: db, timeout: timeout}
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *Storage) migrate(ctx context.Context) error {
	migrations := sqliteMigrations
	if s.db.DriverName() == "postgres" {
		migrations = postgresMigrations
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") && !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		phone TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		balance INTEGER NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'user',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS menu (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		price INTEGER NOT NULL CHECK (price > 0),
		date TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		menu_id INTEGER NOT NULL,
		price_at_moment INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (menu_id) REFERENCES menu(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_date ON menu(date)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_menu_id ON orders(menu_id)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		phone TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS menu (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		price BIGINT NOT NULL CHECK (price > 0),
		date TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		menu_id BIGINT NOT NULL REFERENCES menu(id),
		price_at_moment BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_menu_date ON menu(date)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_menu_id ON orders(menu_id)`,
}

// === Users ===

const userColumns = `id, phone, full_name, balance, role, created_at`

func (s *Storage) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	u := &domain.User{}
	err := s.db.GetContext(ctx, u, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Storage) UpsertUserContact(ctx context.Context, u *domain.User) (*domain.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, phone, full_name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET phone = excluded.phone, full_name = excluded.full_name`),
		u.ID, u.Phone, u.FullName,
	)
	if err != nil {
		return nil, err
	}

	out := &domain.User{}
	if err := s.db.GetContext(ctx, out, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), u.ID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers returns all users ordered by role string, then id.
func (s *Storage) ListUsers(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var users []*domain.User
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY role, id`); err != nil {
		return nil, err
	}
	return users, nil
}

// AdjustBalance applies delta only while the result stays within
// [0, MaxInt64]. SQLite would otherwise store an overflowing sum as REAL and
// leave the row unreadable.
func (s *Storage) AdjustBalance(ctx context.Context, userID int64, delta domain.Amount) (domain.Amount, error) {
	if delta == math.MinInt64 {
		return 0, fmt.Errorf("%w: balance overflow", domain.ErrInvalidInput)
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	lo, hi := -delta, domain.Amount(math.MaxInt64)
	if delta > 0 {
		lo, hi = 0, hi-delta
	}

	var balance domain.Amount
	err := s.db.GetContext(ctx, &balance, s.db.Rebind(
		`UPDATE users SET balance = balance + ? WHERE id = ? AND balance >= ? AND balance <= ? RETURNING balance`),
		delta, userID, lo, hi,
	)
	if errors.Is(err, sql.ErrNoRows) {
		var current domain.Amount
		err := s.db.GetContext(ctx, &current, s.db.Rebind(`SELECT balance FROM users WHERE id = ?`), userID)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		if _, ok := current.Add(delta); !ok {
			return 0, fmt.Errorf("%w: balance overflow", domain.ErrInvalidInput)
		}
		return 0, domain.ErrInsufficientBalance
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Storage) SetUserRole(ctx context.Context, userID int64, role domain.UserRole) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE id = ?`), role, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// === Menu ===

const menuColumns = `id, title, price, date, is_active, created_at`

func (s *Storage) CreateMenuItem(ctx context.Context, m *domain.MenuItem) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	err := s.db.QueryRowxContext(ctx, s.db.Rebind(
		`INSERT INTO menu (title, price, date, is_active) VALUES (?, ?, ?, ?) RETURNING id`),
		m.Title, m.Price, m.Date, m.IsActive,
	).Scan(&m.ID)
	if err != nil {
		return err
	}
	m.CreatedAt = time.Now()
	return nil
}

func (s *Storage) GetMenuItem(ctx context.Context, id int64) (*domain.MenuItem, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	m := &domain.MenuItem{}
	err := s.db.GetContext(ctx, m, s.db.Rebind(`SELECT `+menuColumns+` FROM menu WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Storage) ListMenuByDate(ctx context.Context, date string, activeOnly bool) ([]*domain.MenuItem, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	query := `SELECT ` + menuColumns + ` FROM menu WHERE date = ?`
	args := []interface{}{date}
	if activeOnly {
		query += ` AND is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id`

	var items []*domain.MenuItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return items, nil
}

// === Orders ===

// PlaceOrder debits the user only if the balance covers the price and inserts
// the order in the same transaction.
func (s *Storage) PlaceOrder(ctx context.Context, o *domain.Order) (domain.Amount, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var balance domain.Amount
	err = tx.GetContext(ctx, &balance, tx.Rebind(
		`UPDATE users SET balance = balance - ? WHERE id = ? AND balance >= ? RETURNING balance`),
		o.PriceAtMoment, o.UserID, o.PriceAtMoment,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	err = tx.QueryRowxContext(ctx, tx.Rebind(
		`INSERT INTO orders (user_id, menu_id, price_at_moment) VALUES (?, ?, ?) RETURNING id`),
		o.UserID, o.MenuID, o.PriceAtMoment,
	).Scan(&o.ID)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	o.CreatedAt = time.Now()
	return balance, nil
}

const orderLineQuery = `SELECT o.id, o.user_id, o.menu_id, o.price_at_moment, o.created_at,
		u.full_name AS user_name, m.title AS menu_title, m.date AS menu_date
	FROM orders o
	JOIN users u ON u.id = o.user_id
	JOIN menu m ON m.id = o.menu_id`

func (s *Storage) ListOrdersByDate(ctx context.Context, menuDate string) ([]*domain.OrderLine, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var lines []*domain.OrderLine
	err := s.db.SelectContext(ctx, &lines, s.db.Rebind(orderLineQuery+` WHERE m.date = ? ORDER BY o.id`), menuDate)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Storage) ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]*domain.OrderLine, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()

	var lines []*domain.OrderLine
	err := s.db.SelectContext(ctx, &lines, s.db.Rebind(orderLineQuery+` WHERE o.user_id = ? ORDER BY o.id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, err
	}
	return lines, nil
}
