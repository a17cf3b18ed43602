package bot

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/tazhate/lunchbot/internal/domain"
	"go.uber.org/zap"
)

const (
	webhookPath  = "/api/bot"
	maxBodyBytes = 1 << 20
)

type successResponse struct {
	Success    bool           `json:"success"`
	NewBalance *domain.Amount `json:"new_balance,omitempty"`
}

type orderRequest struct {
	UserID flexID `json:"user_id"`
	MenuID flexID `json:"menu_id"`
}

// Money fields are parsed only after the caller is authorized.
type addMenuRequest struct {
	UserID flexID          `json:"user_id"`
	Title  string          `json:"title"`
	Price  json.RawMessage `json:"price"`
}

type updateBalanceRequest struct {
	AdminID  flexID          `json:"admin_id"`
	TargetID flexID          `json:"target_id"`
	Amount   json.RawMessage `json:"amount"`
}

type promoteRequest struct {
	BossID   flexID `json:"boss_id"`
	TargetID flexID `json:"target_id"`
}

// flexID accepts a Telegram id sent either as a JSON number or a string.
type flexID int64

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return domain.ErrInvalidInput
	}
	*id = flexID(v)
	return nil
}

// Router builds the HTTP surface: webhook, web API, health, metrics and the
// static web view.
func (b *Bot) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(b.requestLogger)
	if b.metrics != nil {
		r.Use(b.metrics.Middleware)
		r.Handle("/metrics", b.metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc(webhookPath, b.handleWebhook).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(cors, b.limiter.Middleware)
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	api.HandleFunc("/me", b.apiMe).Methods(http.MethodGet)
	api.HandleFunc("/menu", b.apiMenu).Methods(http.MethodGet)
	api.HandleFunc("/order", b.apiOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", b.apiOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/today", b.apiOrdersToday).Methods(http.MethodGet)
	api.HandleFunc("/add-menu", b.apiAddMenu).Methods(http.MethodPost)
	api.HandleFunc("/users", b.apiUsers).Methods(http.MethodGet)
	api.HandleFunc("/update-balance", b.apiUpdateBalance).Methods(http.MethodPost)
	api.HandleFunc("/promote", b.apiPromote).Methods(http.MethodPost)

	if st, err := os.Stat(b.cfg.StaticDir); err == nil && st.IsDir() {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(b.cfg.StaticDir)))
	}

	return r
}

func (b *Bot) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.log.Warn("Failed to encode response", zap.Error(err))
	}
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	b.jsonResponse(w, status, map[string]string{"error": err})
}

// writeError maps service errors to a status and a localized message.
func (b *Bot) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		b.jsonError(w, errForbidden, http.StatusForbidden)
	case errors.Is(err, domain.ErrDeadlinePassed):
		b.jsonError(w, errDeadline, http.StatusBadRequest)
	case errors.Is(err, domain.ErrInsufficientBalance):
		b.jsonError(w, errInsufficient, http.StatusBadRequest)
	case errors.Is(err, domain.ErrItemUnavailable):
		b.jsonError(w, errUnavailable, http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		b.jsonError(w, errNotFound, http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		b.jsonError(w, errInvalid, http.StatusBadRequest)
	default:
		b.log.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err))
		b.jsonError(w, errInternal, http.StatusInternalServerError)
	}
}

func (b *Bot) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		b.jsonError(w, errBadRequest, http.StatusBadRequest)
		return false
	}
	return true
}

// rawAmount parses a money field kept as raw JSON. A missing field is zero.
func rawAmount(raw json.RawMessage) (domain.Amount, error) {
	var a domain.Amount
	if len(raw) == 0 {
		return 0, nil
	}
	if err := a.UnmarshalJSON(raw); err != nil {
		return 0, err
	}
	return a, nil
}

func queryID(r *http.Request, key string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// GET /api/me?id=
func (b *Bot) apiMe(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "id")
	if !ok {
		b.jsonError(w, errIDRequired, http.StatusBadRequest)
		return
	}

	user, err := b.svc.Users.Resolve(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		b.jsonError(w, errUserNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		b.writeError(w, r, err)
		return
	}

	b.jsonResponse(w, http.StatusOK, user)
}

// GET /api/menu
func (b *Bot) apiMenu(w http.ResponseWriter, r *http.Request) {
	items, err := b.svc.Menu.Today(r.Context())
	if err != nil {
		b.writeError(w, r, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, items)
}

// POST /api/order
func (b *Bot) apiOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !b.decode(w, r, &req) {
		return
	}

	res, err := b.svc.Orders.Place(r.Context(), int64(req.UserID), int64(req.MenuID))
	if errors.Is(err, domain.ErrNotFound) {
		// Unknown user or item is a bad order, not a missing resource.
		b.jsonError(w, errNotFound, http.StatusBadRequest)
		return
	}
	if err != nil {
		b.writeError(w, r, err)
		return
	}

	b.jsonResponse(w, http.StatusOK, successResponse{Success: true, NewBalance: &res.NewBalance})
}

// GET /api/orders?user_id=
func (b *Bot) apiOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(r, "user_id")
	if !ok {
		b.jsonError(w, errIDRequired, http.StatusBadRequest)
		return
	}

	if _, err := b.svc.Users.Resolve(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			b.jsonError(w, errUserNotFound, http.StatusNotFound)
			return
		}
		b.writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	lines, err := b.svc.Orders.History(r.Context(), id, limit)
	if err != nil {
		b.writeError(w, r, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, lines)
}

// GET /api/orders/today?user_id=
func (b *Bot) apiOrdersToday(w http.ResponseWriter, r *http.Request) {
	id, _ := queryID(r, "user_id")

	summary, err := b.svc.Admin.TodayOrders(r.Context(), id)
	if err != nil {
		b.writeError(w, r, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, summary)
}

// POST /api/add-menu
func (b *Bot) apiAddMenu(w http.ResponseWriter, r *http.Request) {
	var req addMenuRequest
	if !b.decode(w, r, &req) {
		return
	}

	if _, err := b.svc.Users.Authorize(r.Context(), int64(req.UserID), domain.LevelAdmin); err != nil {
		b.writeError(w, r, err)
		return
	}
	price, err := rawAmount(req.Price)
	if err != nil {
		b.writeError(w, r, err)
		return
	}

	if _, err := b.svc.Admin.AddMenuItem(r.Context(), int64(req.UserID), req.Title, price); err != nil {
		b.writeError(w, r, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, successResponse{Success: true})
}

// GET /api/users?user_id=
func (b *Bot) apiUsers(w http.ResponseWriter, r *http.Request) {
	id, _ := queryID(r, "user_id")

	users, err := b.svc.Admin.ListUsers(r.Context(), id)
	if err != nil {
		b.writeError(w, r, err)
		return
	}
	b.jsonResponse(w, http.StatusOK, users)
}

// POST /api/update-balance
func (b *Bot) apiUpdateBalance(w http.ResponseWriter, r *http.Request) {
	var req updateBalanceRequest
	if !b.decode(w, r, &req) {
		return
	}

	if _, err := b.svc.Users.Authorize(r.Context(), int64(req.AdminID), domain.LevelAdmin); err != nil {
		b.writeError(w, r, err)
		return
	}
	amount, err := rawAmount(req.Amount)
	if err != nil {
		b.writeError(w, r, err)
		return
	}

	balance, err := b.svc.Admin.TopUpBalance(r.Context(), int64(req.AdminID), int64(req.TargetID), amount)
	if errors.Is(err, domain.ErrNotFound) {
		b.jsonError(w, errUserNotFound, http.StatusNotFound)
		return
	}
	if err != nil {
		b.writeError(w, r, err)
		return
	}

	b.jsonResponse(w, http.StatusOK, successResponse{Success: true, NewBalance: &balance})
}

// POST /api/promote
func (b *Bot) apiPromote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if !b.decode(w, r, &req) {
		return
	}

	err := b.svc.Admin.Promote(r.Context(), int64(req.BossID), int64(req.TargetID))
	switch {
	case errors.Is(err, domain.ErrForbidden):
		b.jsonError(w, errBossOnly, http.StatusForbidden)
		return
	case errors.Is(err, domain.ErrNotFound):
		b.jsonError(w, errUserNotFound, http.StatusNotFound)
		return
	case err != nil:
		b.writeError(w, r, err)
		return
	}

	b.jsonResponse(w, http.StatusOK, successResponse{Success: true})
}
