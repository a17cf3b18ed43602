package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/lunchbot/internal/domain"
	"github.com/tazhate/lunchbot/internal/storage/memory"
)

const today = "2026-10-19"

type fixture struct {
	store  *memory.Store
	users  *UserService
	orders *OrderService
	admin  *AdminService
	menu   *MenuService
	reg    *RegistrationService
	now    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, domain.Location)
	f := &fixture{store: memory.New(), now: &now}
	clock := func() time.Time { return *f.now }
	f.users = NewUserService(f.store)
	f.orders = NewOrderService(f.store, clock, nil)
	f.admin = NewAdminService(f.store, f.users, f.orders, clock)
	f.menu = NewMenuService(f.store, clock)
	f.reg = NewRegistrationService(f.store)

	f.store.PutUser(&domain.User{ID: 100, FullName: "Boss", Role: domain.RoleBoss})
	f.store.PutUser(&domain.User{ID: 200, FullName: "Admin", Role: domain.RoleAdmin})
	return f
}

func (f *fixture) setTime(h, m int) {
	*f.now = time.Date(2026, 10, 19, h, m, 0, 0, domain.Location)
}

func (f *fixture) addItem(t *testing.T, title string, price domain.Amount) *domain.MenuItem {
	t.Helper()
	item := &domain.MenuItem{Title: title, Price: price, Date: today, IsActive: true}
	require.NoError(t, f.store.CreateMenuItem(context.Background(), item))
	return item
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 1, FullName: "A", Balance: 50000})
	item := f.addItem(t, "Osh", 20000)

	res, err := f.orders.Place(ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(30000), res.NewBalance)
	assert.Equal(t, domain.Amount(20000), res.Order.PriceAtMoment)

	orders := f.store.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].UserID)
	assert.Equal(t, item.ID, orders[0].MenuID)
	assert.Equal(t, domain.Amount(20000), orders[0].PriceAtMoment)

	u, _ := f.store.GetUser(ctx, 1)
	assert.Equal(t, domain.Amount(30000), u.Balance)

	// Same user tries again after the cutoff.
	f.setTime(10, 15)
	_, err = f.orders.Place(ctx, 1, item.ID)
	assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
	u, _ = f.store.GetUser(ctx, 1)
	assert.Equal(t, domain.Amount(30000), u.Balance)
	assert.Len(t, f.store.Orders(), 1)
}

func TestPlaceOrder_DeadlineSkipsAllChecks(t *testing.T) {
	f := newFixture(t)
	f.setTime(10, 10)
	// Neither user nor item exists: the deadline still wins.
	_, err := f.orders.Place(context.Background(), 999, 999)
	assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
}

func TestPlaceOrder_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.setTime(8, 0)
	f.store.PutUser(&domain.User{ID: 2, FullName: "B", Balance: 5000})
	item := f.addItem(t, "Osh", 20000)

	_, err := f.orders.Place(context.Background(), 2, item.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	u, _ := f.store.GetUser(context.Background(), 2)
	assert.Equal(t, domain.Amount(5000), u.Balance)
	assert.Empty(t, f.store.Orders())
}

func TestPlaceOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	item := f.addItem(t, "Osh", 20000)
	f.store.PutUser(&domain.User{ID: 3, Balance: 50000})

	_, err := f.orders.Place(context.Background(), 404, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orders.Place(context.Background(), 3, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrder_StaleItemUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(&domain.User{ID: 3, Balance: 50000})
	old := &domain.MenuItem{Title: "Osh", Price: 20000, Date: "2026-10-18", IsActive: true}
	require.NoError(t, f.store.CreateMenuItem(context.Background(), old))

	_, err := f.orders.Place(context.Background(), 3, old.ID)
	assert.ErrorIs(t, err, domain.ErrItemUnavailable)
}

func TestPlaceOrder_StoreFailureLeavesBalance(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(&domain.User{ID: 4, Balance: 50000})
	item := f.addItem(t, "Osh", 20000)

	f.store.FailNext("PlaceOrder", errors.New("connection reset"))
	_, err := f.orders.Place(context.Background(), 4, item.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInsufficientBalance)

	u, _ := f.store.GetUser(context.Background(), 4)
	assert.Equal(t, domain.Amount(50000), u.Balance)
}

func TestPlaceOrder_ConcurrentOrdersCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(&domain.User{ID: 5, Balance: 50000})
	item := f.addItem(t, "Osh", 20000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.Place(context.Background(), 5, item.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	u, _ := f.store.GetUser(context.Background(), 5)
	assert.Equal(t, domain.Amount(10000), u.Balance)
	assert.Len(t, f.store.Orders(), 2)
}

type countingObserver struct {
	placed   int
	rejected []string
}

func (o *countingObserver) OrderPlaced(domain.Amount) { o.placed++ }
func (o *countingObserver) OrderRejected(r string)    { o.rejected = append(o.rejected, r) }

func TestPlaceOrder_Observer(t *testing.T) {
	f := newFixture(t)
	obs := &countingObserver{}
	f.orders.SetObserver(obs)
	f.store.PutUser(&domain.User{ID: 6, Balance: 20000})
	item := f.addItem(t, "Osh", 20000)

	_, err := f.orders.Place(context.Background(), 6, item.ID)
	require.NoError(t, err)
	_, err = f.orders.Place(context.Background(), 6, item.ID)
	require.Error(t, err)

	assert.Equal(t, 1, obs.placed)
	assert.Equal(t, []string{"insufficient_balance"}, obs.rejected)
}

func TestAdmin_UserRoleIsForbiddenEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 7, Role: domain.RoleUser})
	f.store.PutUser(&domain.User{ID: 8, Role: domain.RoleUser})

	_, err := f.admin.AddMenuItem(ctx, 7, "Osh", 20000)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.admin.ListUsers(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.admin.TopUpBalance(ctx, 7, 8, 1000)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.admin.Promote(ctx, 7, 8), domain.ErrForbidden)
	_, err = f.admin.TodayOrders(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdmin_UnknownActorIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.AddMenuItem(ctx, 12345, "Osh", 20000)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.admin.ListUsers(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.admin.Promote(ctx, 12345, 200), domain.ErrForbidden)
}

func TestAdmin_AdminCannotPromote(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(&domain.User{ID: 9, Role: domain.RoleUser})

	assert.ErrorIs(t, f.admin.Promote(context.Background(), 200, 9), domain.ErrForbidden)
	u, _ := f.store.GetUser(context.Background(), 9)
	assert.Equal(t, domain.RoleUser, u.Role)
}

func TestAdmin_AddMenuItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.admin.AddMenuItem(ctx, 200, "  Lag'mon ", 18000)
	require.NoError(t, err)
	assert.Equal(t, "Lag'mon", item.Title)
	assert.Equal(t, today, item.Date)
	assert.True(t, item.IsActive)

	menu, err := f.menu.Today(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, item.ID, menu[0].ID)

	_, err = f.admin.AddMenuItem(ctx, 100, "Free soup", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.admin.AddMenuItem(ctx, 100, "   ", 1000)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMenu_TodayEmpty(t *testing.T) {
	f := newFixture(t)
	menu, err := f.menu.Today(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, menu)
	assert.Empty(t, menu)
}

func TestAdmin_ListUsersOrderedByRoleString(t *testing.T) {
	f := newFixture(t)
	f.store.PutUser(&domain.User{ID: 10, Role: domain.RoleUser})

	users, err := f.admin.ListUsers(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.Equal(t, domain.RoleBoss, users[1].Role)
	assert.Equal(t, domain.RoleUser, users[2].Role)
}

func TestAdmin_TopUpBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 11, Balance: 1000})

	bal, err := f.admin.TopUpBalance(ctx, 200, 11, 50000)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(51000), bal)

	bal, err = f.admin.TopUpBalance(ctx, 100, 11, -1000)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(50000), bal)

	_, err = f.admin.TopUpBalance(ctx, 100, 11, -60000)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = f.admin.TopUpBalance(ctx, 100, 404, 1000)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.admin.TopUpBalance(ctx, 100, 11, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdmin_TopUpBalanceBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 11, Balance: 1000})

	for _, amount := range []domain.Amount{math.MaxInt64, math.MinInt64, domain.MaxTopUp + 1, -domain.MaxTopUp - 1} {
		_, err := f.admin.TopUpBalance(ctx, 100, 11, amount)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "amount %d", amount)
	}

	u, err := f.store.GetUser(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(1000), u.Balance)

	bal, err := f.admin.TopUpBalance(ctx, 100, 11, domain.MaxTopUp)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxTopUp+1000, bal)

	// The store refuses an overflowing sum even without the cap.
	f.store.PutUser(&domain.User{ID: 12, Balance: math.MaxInt64 - 10})
	_, err = f.store.AdjustBalance(ctx, 12, 11)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdmin_PromoteScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 12, FullName: "C", Role: domain.RoleUser})

	require.NoError(t, f.admin.Promote(ctx, 100, 12))
	u, _ := f.store.GetUser(ctx, 12)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	// Idempotent.
	require.NoError(t, f.admin.Promote(ctx, 100, 12))
	u, _ = f.store.GetUser(ctx, 12)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	// C can now act as admin.
	_, err := f.admin.AddMenuItem(ctx, 12, "Somsa", 8000)
	assert.NoError(t, err)

	// The boss is never downgraded.
	require.NoError(t, f.admin.Promote(ctx, 100, 100))
	u, _ = f.store.GetUser(ctx, 100)
	assert.Equal(t, domain.RoleBoss, u.Role)

	assert.ErrorIs(t, f.admin.Promote(ctx, 100, 404), domain.ErrNotFound)
}

func TestRegistration_ReshareKeepsRoleAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.reg.Register(ctx, domain.Contact{UserID: 13, Phone: "998901234567", FirstName: "Ali"})
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", u.Phone)
	assert.Equal(t, "Ali", u.FullName)
	assert.Equal(t, domain.RoleUser, u.Role)

	_, err = f.admin.TopUpBalance(ctx, 100, 13, 40000)
	require.NoError(t, err)
	require.NoError(t, f.admin.Promote(ctx, 100, 13))

	u, err = f.reg.Register(ctx, domain.Contact{UserID: 13, Phone: "+998907654321", FirstName: "Ali", LastName: "Valiyev"})
	require.NoError(t, err)
	assert.Equal(t, "+998907654321", u.Phone)
	assert.Equal(t, "Ali Valiyev", u.FullName)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, domain.Amount(40000), u.Balance)
}

func TestRegistration_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.Register(context.Background(), domain.Contact{Phone: "+1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.reg.Register(context.Background(), domain.Contact{UserID: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUserService_Resolve(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.Resolve(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "Boss", u.FullName)

	_, err = f.users.Resolve(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.users.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOrders_HistoryAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutUser(&domain.User{ID: 14, FullName: "Ali", Balance: 100000})
	f.store.PutUser(&domain.User{ID: 15, FullName: "Vali", Balance: 100000})
	osh := f.addItem(t, "Osh", 20000)
	soup := f.addItem(t, "Sho'rva", 15000)

	for _, p := range []struct{ user, item int64 }{{14, osh.ID}, {15, osh.ID}, {14, soup.ID}} {
		_, err := f.orders.Place(ctx, p.user, p.item)
		require.NoError(t, err)
	}

	history, err := f.orders.History(ctx, 14, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Sho'rva", history[0].MenuTitle)

	summary, err := f.admin.TodayOrders(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, today, summary.Date)
	assert.Equal(t, 3, summary.Orders)
	assert.Equal(t, domain.Amount(55000), summary.Total)
	require.Len(t, summary.Items, 2)
	assert.Equal(t, []string{"Ali", "Vali"}, summary.Items[0].Eaters)

	empty, err := f.orders.History(ctx, 100, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
