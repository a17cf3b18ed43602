package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tazhate/lunchbot/internal/domain"
	"github.com/tazhate/lunchbot/internal/service"
	"go.uber.org/zap"
)

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// UserLister is the slice of the store the scheduler needs to find recipients.
type UserLister interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

type Scheduler struct {
	cron    *cron.Cron
	users   UserLister
	orders  *service.OrderService
	sender  MessageSender
	timeout time.Duration
	log     *zap.Logger
}

func New(users UserLister, orders *service.OrderService, timeout time.Duration, log *zap.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(domain.Location))

	return &Scheduler{
		cron:    c,
		users:   users,
		orders:  orders,
		timeout: timeout,
		log:     log,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	// Сводка сразу после закрытия приёма заказов
	spec := fmt.Sprintf("%d %d * * *", domain.CutoffMinute, domain.CutoffHour)
	if _, err := s.cron.AddFunc(spec, s.cutoffSummary); err != nil {
		return fmt.Errorf("add cutoff summary: %w", err)
	}

	s.cron.Start()
	s.log.Info("Scheduler started", zap.String("tz", domain.Location.String()), zap.String("summary", spec))

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *Scheduler) cutoffSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.SendSummary(ctx); err != nil {
		s.log.Error("Cutoff summary failed", zap.Error(err))
	}
}

// SendSummary delivers today's order summary to every admin and the boss.
func (s *Scheduler) SendSummary(ctx context.Context) error {
	if s.sender == nil {
		return nil
	}

	summary, err := s.orders.TodaySummary(ctx)
	if err != nil {
		return fmt.Errorf("today summary: %w", err)
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	text := FormatSummary(summary)
	for _, u := range users {
		if u.Role.Level() < domain.LevelAdmin {
			continue
		}
		if err := s.sender.SendMessage(u.ID, text); err != nil {
			s.log.Warn("Failed to send summary", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

func FormatSummary(sum *domain.DaySummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>Buyurtmalar: %s</b>\n\n", sum.Date)

	if sum.Orders == 0 {
		sb.WriteString("Bugun buyurtma yo'q.")
		return sb.String()
	}

	for _, item := range sum.Items {
		fmt.Fprintf(&sb, "🍽 <b>%s</b> × %d = %s so'm\n", html.EscapeString(item.Title), item.Count, item.Total)
		if len(item.Eaters) > 0 {
			fmt.Fprintf(&sb, "   <i>%s</i>\n", html.EscapeString(strings.Join(item.Eaters, ", ")))
		}
	}
	fmt.Fprintf(&sb, "\nJami: <b>%d</b> ta, <b>%s</b> so'm", sum.Orders, sum.Total)
	return sb.String()
}
