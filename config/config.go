package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultWebAppURL = "https://abeed.vercel.app"

type BotMode string

const (
	ModeWebhook BotMode = "webhook"
	ModePolling BotMode = "polling"
)

type Config struct {
	TelegramToken string
	SupabaseURL   string
	SupabaseKey   string
	DatabaseURL   string
	WebAppURL     string
	WebhookURL    string
	BotMode       BotMode
	ServerPort    string
	StoreTimeout  time.Duration
	StaticDir     string
	DailySummary  bool
	LogLevel      string
	RateLimit     float64
	RateBurst     int
	TrustProxy    bool
}

// Load reads the environment, after merging a .env file if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_KEY")
	if (supabaseURL == "") != (supabaseKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_KEY must be set together")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "./data/lunchbot.db"
	}

	webAppURL := os.Getenv("WEBAPP_URL")
	if webAppURL == "" {
		if vercel := os.Getenv("VERCEL_URL"); vercel != "" {
			webAppURL = "https://" + vercel
		} else {
			webAppURL = defaultWebAppURL
		}
	}
	webAppURL = strings.TrimSuffix(webAppURL, "/")

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		webhookURL = webAppURL
	}
	webhookURL = strings.TrimSuffix(webhookURL, "/")

	mode := BotMode(strings.ToLower(os.Getenv("BOT_MODE")))
	switch mode {
	case "":
		mode = ModeWebhook
	case ModeWebhook, ModePolling:
	default:
		return nil, fmt.Errorf("invalid BOT_MODE %q: want webhook or polling", mode)
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	storeTimeout := 5 * time.Second
	if v := os.Getenv("STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid STORE_TIMEOUT %q", v)
		}
		storeTimeout = d
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./public"
	}

	dailySummary := true
	if v := os.Getenv("DAILY_SUMMARY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DAILY_SUMMARY: %w", err)
		}
		dailySummary = b
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	rateLimit := 10.0
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid API_RATE_LIMIT %q", v)
		}
		rateLimit = f
	}

	rateBurst := 20
	if v := os.Getenv("API_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid API_RATE_BURST %q", v)
		}
		rateBurst = n
	}

	trustProxy := false
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUST_PROXY: %w", err)
		}
		trustProxy = b
	}

	return &Config{
		TelegramToken: token,
		SupabaseURL:   supabaseURL,
		SupabaseKey:   supabaseKey,
		DatabaseURL:   dbURL,
		WebAppURL:     webAppURL,
		WebhookURL:    webhookURL,
		BotMode:       mode,
		ServerPort:    serverPort,
		StoreTimeout:  storeTimeout,
		StaticDir:     staticDir,
		DailySummary:  dailySummary,
		LogLevel:      logLevel,
		RateLimit:     rateLimit,
		RateBurst:     rateBurst,
		TrustProxy:    trustProxy,
	}, nil
}

// UseSupabase reports whether the PostgREST backend is configured.
func (c *Config) UseSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}
