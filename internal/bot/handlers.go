package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/lunchbot/internal/domain"
	"go.uber.org/zap"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Update handler panic", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		b.countUpdate("other")
		return
	}

	switch {
	case msg.Contact != nil:
		b.countUpdate("contact")
		b.handleContact(ctx, msg)
	case commandOf(msg) != "":
		b.countUpdate("command")
		b.handleCommand(ctx, msg)
	default:
		b.countUpdate("message")
	}
}

func (b *Bot) countUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.UpdateReceived(kind)
	}
}

// commandOf also accepts a bare "/cmd" text without a bot_command entity.
func commandOf(msg *tgbotapi.Message) string {
	if cmd := msg.Command(); cmd != "" {
		return cmd
	}
	if !strings.HasPrefix(msg.Text, "/") {
		return ""
	}
	cmd := strings.Fields(msg.Text)[0][1:]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch commandOf(msg) {
	case "start":
		b.reply(chatID, b.sender.RequestContact(chatID, msgWelcome))
	case "balance":
		b.cmdBalance(ctx, msg)
	case "menu":
		b.cmdMenu(ctx, chatID)
	case "help":
		b.reply(chatID, b.sender.SendMessage(chatID, msgHelp))
	default:
		b.reply(chatID, b.sender.SendMessage(chatID, msgUnknownCommand))
	}
}

func (b *Bot) reply(chatID int64, err error) {
	if err != nil {
		b.log.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) cmdBalance(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.From == nil {
		return
	}

	user, err := b.svc.Users.Resolve(ctx, msg.From.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.reply(chatID, b.sender.SendMessage(chatID, msgNotRegistered))
		return
	case err != nil:
		b.log.Error("Failed to resolve user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(chatID, b.sender.SendMessage(chatID, msgRegisterFailed))
		return
	}

	b.reply(chatID, b.sender.SendMessage(chatID, fmt.Sprintf(msgBalance, user.Balance)))
}

func (b *Bot) cmdMenu(ctx context.Context, chatID int64) {
	items, err := b.svc.Menu.Today(ctx)
	if err != nil {
		b.log.Error("Failed to load menu", zap.Error(err))
		b.reply(chatID, b.sender.SendMessage(chatID, msgRegisterFailed))
		return
	}
	if len(items) == 0 {
		b.reply(chatID, b.sender.SendMessage(chatID, msgMenuEmpty))
		return
	}

	b.reply(chatID, b.sender.SendWebAppButton(chatID, formatMenu(items, b.svc.Menu.OrderingClosed()), btnOrder, b.cfg.WebAppURL))
}

func formatMenu(items []*domain.MenuItem, closed bool) string {
	var sb strings.Builder
	sb.WriteString(msgMenuHeader)
	sb.WriteString("\n\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "• %s: %s so'm\n", html.EscapeString(item.Title), item.Price)
	}
	sb.WriteString("\n")
	if closed {
		sb.WriteString(msgMenuClosed)
	} else {
		sb.WriteString(msgMenuOpen)
	}
	return sb.String()
}

func (b *Bot) handleContact(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.From == nil {
		return
	}

	// Only the sender's own card counts; a phonebook entry has no user_id.
	if msg.Contact.UserID != msg.From.ID {
		b.reply(chatID, b.sender.RequestContact(chatID, msgForeignContact))
		return
	}

	user, err := b.svc.Registration.Register(ctx, domain.Contact{
		UserID:    msg.From.ID,
		Phone:     msg.Contact.PhoneNumber,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	})
	if err != nil {
		b.log.Error("Registration failed", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(chatID, b.sender.SendMessage(chatID, msgRegisterFailed))
		return
	}

	b.log.Info("User registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	b.reply(chatID, b.sender.SendWebAppButton(chatID, msgRegistered, btnOrder, b.cfg.WebAppURL))
}
