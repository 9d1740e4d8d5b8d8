package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/marwilc/graph-p2p-backend/internal/models"
)

type Config struct {
	// Market
	Fiat           string
	Asset          string
	ListingRows    int
	TradeDirection models.TradeDirection
	PayTypes       []string

	// Polling
	PollIntervalSeconds int
	FetchTimeoutSeconds int
	RetentionDays       int

	// Upstream
	BinanceP2PURL string

	// API
	APIPort         int
	APIKey          string
	CORSAllowOrigin string

	// Storage (postgres preferred, then redis, else in-memory)
	DBHost        string
	DBPort        int
	DBName        string
	DBUser        string
	DBPassword    string
	RedisAddr     string
	RedisPassword string

	// Alerts
	WebhookURL        string
	BotName           string
	PriceAlertPercent float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Fiat:           envStr("FIAT", "VES"),
		Asset:          envStr("ASSET", "USDT"),
		ListingRows:    envInt("LISTING_ROWS", 10),
		TradeDirection: models.TradeDirection(envStr("TRADE_DIRECTION", "BUY")),
		PayTypes:       envStrSlice("PAY_TYPES"),

		PollIntervalSeconds: envInt("POLL_INTERVAL_SECONDS", 8),
		FetchTimeoutSeconds: envInt("FETCH_TIMEOUT_SECONDS", 15),
		RetentionDays:       envInt("RETENTION_DAYS", 30),

		BinanceP2PURL: envStr("BINANCE_P2P_URL", ""),

		APIPort:         envInt("API_PORT", 8080),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		DBHost:        envStr("DB_HOST", ""),
		DBPort:        envInt("DB_PORT", 5432),
		DBName:        envStr("DB_NAME", "graph_p2p"),
		DBUser:        envStr("DB_USER", ""),
		DBPassword:    envStr("DB_PASSWORD", ""),
		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),

		WebhookURL:        envStr("WEBHOOK_URL", ""),
		BotName:           envStr("BOT_NAME", "GraphP2PTracker"),
		PriceAlertPercent: envFloat("PRICE_ALERT_PERCENT", 5),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if !c.TradeDirection.Valid() {
		errs = append(errs, fmt.Sprintf("TRADE_DIRECTION must be BUY or SELL, got %q", c.TradeDirection))
	}
	if c.PollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	if c.RetentionDays <= 0 {
		errs = append(errs, "RETENTION_DAYS must be positive")
	}
	if c.DBHost == "" && c.RedisAddr == "" {
		fmt.Println("[WARN] No DB_HOST or REDIS_ADDR configured — price history will not survive restarts")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== P2P Rate Tracker Configuration ===")
	fmt.Printf("Pair: %s/%s (%s)\n", c.Asset, c.Fiat, c.TradeDirection)
	if len(c.PayTypes) > 0 {
		fmt.Printf("Payment methods: %s\n", strings.Join(c.PayTypes, ", "))
	} else {
		fmt.Println("Payment methods: any")
	}
	fmt.Println("--------------------------------------")
	fmt.Printf("Poll interval: %ds\n", c.PollIntervalSeconds)
	fmt.Printf("Retention: %d days\n", c.RetentionDays)
	fmt.Printf("Listing rows: %d\n", c.ListingRows)
	fmt.Println("--------------------------------------")
	switch {
	case c.DBHost != "":
		fmt.Printf("Store: postgres (%s:%d/%s)\n", c.DBHost, c.DBPort, c.DBName)
	case c.RedisAddr != "":
		fmt.Printf("Store: redis (%s)\n", c.RedisAddr)
	default:
		fmt.Println("Store: in-memory")
	}
	fmt.Printf("Alerts: %s\n", boolLabel(c.WebhookURL != "", "webhook configured", "disabled"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envStrSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
