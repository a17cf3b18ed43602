package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/lunchbot/config"
	"github.com/tazhate/lunchbot/internal/metrics"
	"github.com/tazhate/lunchbot/internal/service"
	"go.uber.org/zap"
)

// Services bundles everything the bot and the web API call into.
type Services struct {
	Users        *service.UserService
	Menu         *service.MenuService
	Orders       *service.OrderService
	Admin        *service.AdminService
	Registration *service.RegistrationService
}

type Bot struct {
	api     *tgbotapi.BotAPI
	sender  Sender
	cfg     *config.Config
	svc     Services
	metrics *metrics.Metrics
	limiter *clientLimiter
	log     *zap.Logger
	server  *http.Server
}

func New(cfg *config.Config, svc Services, m *metrics.Metrics, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info("Authorized", zap.String("username", api.Self.UserName))

	b := newBot(cfg, svc, &telegramSender{api: api}, m, log)
	b.api = api

	// Set bot commands (menu button)
	b.setCommands()

	return b, nil
}

func newBot(cfg *config.Config, svc Services, sender Sender, m *metrics.Metrics, log *zap.Logger) *Bot {
	return &Bot{
		sender:  sender,
		cfg:     cfg,
		svc:     svc,
		metrics: m,
		limiter: newClientLimiter(cfg.RateLimit, cfg.RateBurst, cfg.TrustProxy),
		log:     log,
	}
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "📲 Ro'yxatdan o'tish"},
		{Command: "menu", Description: "🍽 Bugungi menyu"},
		{Command: "balance", Description: "💰 Balans"},
		{Command: "help", Description: "❓ Yordam"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		b.log.Warn("Failed to set commands", zap.Error(err))
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + webhookPath

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		b.log.Warn("Webhook last error", zap.String("message", info.LastErrorMessage))
	}

	b.log.Info("Webhook set", zap.String("url", webhookURL))
	return nil
}

// Start serves the HTTP API and, in polling mode, pulls updates from
// Telegram until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.server = &http.Server{
		Addr:              ":" + b.cfg.ServerPort,
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.log.Info("Starting HTTP server", zap.String("port", b.cfg.ServerPort))
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var updates tgbotapi.UpdatesChannel
	if b.cfg.BotMode == config.ModePolling && b.api != nil {
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			b.log.Warn("Failed to delete webhook", zap.Error(err))
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates = b.api.GetUpdatesChan(u)
		b.log.Info("Polling for updates")
	}

	for {
		select {
		case <-ctx.Done():
			if updates != nil {
				b.api.StopReceivingUpdates()
			}
			return nil
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case update, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

// SendMessage lets the scheduler reach chats through the bot.
func (b *Bot) SendMessage(chatID int64, text string) error {
	return b.sender.SendMessage(chatID, text)
}
