package bot

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleWebhook always acknowledges with 200 so Telegram does not retry
// the same update.
func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		b.log.Warn("Bad webhook payload",
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
	} else {
		b.handleUpdate(r.Context(), update)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
