package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Settings are presentation preferences passed explicitly to the
// components that need them.
type Settings struct {
	StoreName      string
	CurrencySymbol string
	Language       string
	Timezone       *time.Location
	ReceiptFooter  string
	PrintWidth     int
}

type Config struct {
	Port           string
	JWTSecret      string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration

	// DatabaseURL enables the Postgres reconciliation ledger; empty keeps
	// it in memory.
	DatabaseURL string

	DefaultTaxPercent decimal.Decimal
	PaymentRetryDelay time.Duration
	MenuMaxAge        time.Duration
	SessionIdleTTL    time.Duration

	Settings Settings
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8082"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8081"),
		BackendAPIKey:  getEnv("BACKEND_API_KEY", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
	}

	var err error
	if cfg.BackendTimeout, err = getDuration("BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PaymentRetryDelay, err = getDuration("PAYMENT_RETRY_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.MenuMaxAge, err = getDuration("MENU_MAX_AGE", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}

	tax, err := decimal.NewFromString(getEnv("DEFAULT_TAX_PERCENT", "10"))
	if err != nil || tax.IsNegative() || tax.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("DEFAULT_TAX_PERCENT must be a number in [0, 100]")
	}
	cfg.DefaultTaxPercent = tax

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Asia/Jakarta"))
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	width, err := strconv.Atoi(getEnv("RECEIPT_PRINT_WIDTH", "40"))
	if err != nil || width < 24 {
		return nil, fmt.Errorf("RECEIPT_PRINT_WIDTH must be an integer >= 24")
	}

	cfg.Settings = Settings{
		StoreName:      getEnv("STORE_NAME", "Kiwari"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "Rp"),
		Language:       getEnv("LANGUAGE", "id"),
		Timezone:       loc,
		ReceiptFooter:  getEnv("RECEIPT_FOOTER", "Thank you for dining with us!"),
		PrintWidth:     width,
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
