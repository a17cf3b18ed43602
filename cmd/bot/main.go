package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tazhate/lunchbot/config"
	"github.com/tazhate/lunchbot/internal/bot"
	"github.com/tazhate/lunchbot/internal/clients/supabase"
	"github.com/tazhate/lunchbot/internal/metrics"
	"github.com/tazhate/lunchbot/internal/scheduler"
	"github.com/tazhate/lunchbot/internal/service"
	"github.com/tazhate/lunchbot/internal/storage"
	"github.com/tazhate/lunchbot/internal/storage/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Инициализация storage
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to init storage", zap.Error(err))
	}
	defer closeStore()

	// Инициализация сервисов
	m := metrics.New()
	users := service.NewUserService(store)
	orders := service.NewOrderService(store, time.Now, logger)
	orders.SetObserver(m)
	svc := bot.Services{
		Users:        users,
		Menu:         service.NewMenuService(store, time.Now),
		Orders:       orders,
		Admin:        service.NewAdminService(store, users, orders, time.Now),
		Registration: service.NewRegistrationService(store),
	}

	// Инициализация бота
	tgBot, err := bot.New(cfg, svc, m, logger)
	if err != nil {
		logger.Fatal("Failed to init bot", zap.Error(err))
	}

	if cfg.BotMode == config.ModeWebhook {
		if err := tgBot.SetupWebhook(); err != nil {
			logger.Fatal("Failed to setup webhook", zap.Error(err))
		}
	}

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sched *scheduler.Scheduler
	if cfg.DailySummary {
		sched = scheduler.New(store, orders, cfg.StoreTimeout, logger)
		sched.SetSender(tgBot)
		go func() {
			if err := sched.Start(ctx); err != nil {
				logger.Error("Scheduler error", zap.Error(err))
			}
		}()
	}

	// Запуск бота в горутине
	go func() {
		if err := tgBot.Start(ctx); err != nil {
			logger.Error("Bot error", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("LunchBot started", zap.String("mode", string(cfg.BotMode)))

	// Ожидание сигнала завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	// Graceful shutdown
	cancel()
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping bot", zap.Error(err))
	}

	logger.Info("LunchBot stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// openStore picks the backend: Supabase REST when configured, otherwise the
// DATABASE_URL (postgres, sqlite, or memory:// for throwaway runs).
func openStore(cfg *config.Config, logger *zap.Logger) (service.Store, func(), error) {
	if cfg.UseSupabase() {
		logger.Info("Using Supabase backend", zap.String("url", cfg.SupabaseURL))
		s := supabase.NewStore(supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.StoreTimeout))
		return s, func() { s.Close() }, nil
	}

	if strings.HasPrefix(cfg.DatabaseURL, "memory://") {
		logger.Warn("Using in-memory backend, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	s, err := storage.New(cfg.DatabaseURL, cfg.StoreTimeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using SQL backend")
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}, nil
}
