package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the outbound half of the Telegram conversation.
type Sender interface {
	SendMessage(chatID int64, text string) error
	RequestContact(chatID int64, text string) error
	SendWebAppButton(chatID int64, text, buttonText, url string) error
}

type telegramSender struct {
	api *tgbotapi.BotAPI
}

func (s *telegramSender) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := s.api.Send(msg)
	return err
}

func (s *telegramSender) RequestContact(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = contactKeyboard()
	_, err := s.api.Send(msg)
	return err
}

// SendWebAppButton posts the raw request because the library's inline
// button type has no web_app field.
func (s *telegramSender) SendWebAppButton(chatID int64, text, buttonText, url string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("text", text)
	params.AddNonEmpty("parse_mode", "HTML")
	if err := params.AddInterface("reply_markup", webAppKeyboard(buttonText, url)); err != nil {
		return fmt.Errorf("encode reply markup: %w", err)
	}

	if _, err := s.api.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("send web app button: %w", err)
	}
	return nil
}

// Contact request keyboard, hidden after the first press
func contactKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(btnShareContact),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

type webAppInfo struct {
	URL string `json:"url"`
}

type webAppButton struct {
	Text   string     `json:"text"`
	WebApp webAppInfo `json:"web_app"`
}

type inlineWebAppMarkup struct {
	InlineKeyboard [][]webAppButton `json:"inline_keyboard"`
}

func webAppKeyboard(text, url string) inlineWebAppMarkup {
	return inlineWebAppMarkup{
		InlineKeyboard: [][]webAppButton{
			{{Text: text, WebApp: webAppInfo{URL: url}}},
		},
	}
}
