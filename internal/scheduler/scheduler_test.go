package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/lunchbot/internal/domain"
	"github.com/tazhate/lunchbot/internal/service"
	"github.com/tazhate/lunchbot/internal/storage/memory"
)

type recordingSender struct {
	sent map[int64]string
	fail map[int64]bool
}

func (r *recordingSender) SendMessage(chatID int64, text string) error {
	if r.fail[chatID] {
		return errors.New("chat not found")
	}
	if r.sent == nil {
		r.sent = make(map[int64]string)
	}
	r.sent[chatID] = text
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *memory.Store) {
	t.Helper()
	store := memory.New()
	now := time.Date(2026, 10, 19, 10, 10, 0, 0, domain.Location)
	orders := service.NewOrderService(store, func() time.Time { return now }, zap.NewNop())
	return New(store, orders, time.Second, zap.NewNop()), store
}

func TestSendSummary_AdminsAndBossOnly(t *testing.T) {
	s, store := newTestScheduler(t)
	ctx := context.Background()

	store.PutUser(&domain.User{ID: 1, FullName: "Boss", Role: domain.RoleBoss})
	store.PutUser(&domain.User{ID: 2, FullName: "Admin", Role: domain.RoleAdmin})
	store.PutUser(&domain.User{ID: 3, FullName: "Ali", Balance: 50000})

	item := &domain.MenuItem{Title: "Osh", Price: 20000, Date: "2026-10-19", IsActive: true}
	require.NoError(t, store.CreateMenuItem(ctx, item))
	_, err := store.PlaceOrder(ctx, &domain.Order{UserID: 3, MenuID: item.ID, PriceAtMoment: 20000})
	require.NoError(t, err)

	sender := &recordingSender{}
	s.SetSender(sender)
	require.NoError(t, s.SendSummary(ctx))

	assert.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent, int64(1))
	assert.Contains(t, sender.sent, int64(2))
	assert.NotContains(t, sender.sent, int64(3))
	assert.Contains(t, sender.sent[1], "Osh</b> × 1 = 20 000 so'm")
	assert.Contains(t, sender.sent[1], "Ali")
}

func TestSendSummary_SendFailureDoesNotStopOthers(t *testing.T) {
	s, store := newTestScheduler(t)
	store.PutUser(&domain.User{ID: 1, Role: domain.RoleBoss})
	store.PutUser(&domain.User{ID: 2, Role: domain.RoleAdmin})

	sender := &recordingSender{fail: map[int64]bool{2: true}}
	s.SetSender(sender)
	require.NoError(t, s.SendSummary(context.Background()))
	assert.Contains(t, sender.sent, int64(1))
}

func TestSendSummary_StoreError(t *testing.T) {
	s, store := newTestScheduler(t)
	store.FailNext("ListOrdersByDate", errors.New("timeout"))
	s.SetSender(&recordingSender{})

	err := s.SendSummary(context.Background())
	assert.ErrorContains(t, err, "today summary")
}

func TestSendSummary_NoSender(t *testing.T) {
	s, _ := newTestScheduler(t)
	assert.NoError(t, s.SendSummary(context.Background()))
}

func TestFormatSummary_Empty(t *testing.T) {
	text := FormatSummary(&domain.DaySummary{Date: "2026-10-19"})
	assert.Contains(t, text, "2026-10-19")
	assert.Contains(t, text, "Bugun buyurtma yo'q.")
}

func TestFormatSummary_Totals(t *testing.T) {
	sum := domain.Summarize("2026-10-19", []*domain.OrderLine{
		{Order: domain.Order{MenuID: 1, PriceAtMoment: 20000}, UserName: "Vali", MenuTitle: "Osh"},
		{Order: domain.Order{MenuID: 1, PriceAtMoment: 20000}, UserName: "Ali", MenuTitle: "Osh"},
		{Order: domain.Order{MenuID: 2, PriceAtMoment: 15000}, UserName: "Ali", MenuTitle: "Sho'rva"},
	})

	text := FormatSummary(sum)
	assert.Contains(t, text, "Osh</b> × 2 = 40 000 so'm")
	assert.Contains(t, text, "Ali, Vali")
	assert.Contains(t, text, "Jami: <b>3</b> ta, <b>55 000</b> so'm")
}
