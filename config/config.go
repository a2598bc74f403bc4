package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fxsignal/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Robot
	Robot          string // "entropy" or "macd"
	Instruments    string // "EURUSDb:5,USDJPYb:3"
	Timeframe      string
	TrendTimeframe string
	Bars           int
	RiskPerTrade   float64
	Workers        int
	EvalInterval   time.Duration

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string // REST API and /ws signal feed
	LogLevel      string

	// Notifications (empty disables the channel)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
	AMQPURL          string
	AMQPQueue        string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	robot := getEnv("ROBOT", "entropy")
	defTF, defTrend, defBars := "5m", "", 100
	if robot == "macd" {
		defTF, defTrend, defBars = "15m", "1h", 200
	}

	tf := getEnv("TIMEFRAME", defTF)
	// One run per closed candle unless overridden.
	defInterval := model.Timeframe(tf).Duration()
	if defInterval == 0 {
		defInterval = 5 * time.Minute
	}

	return &Config{
		Robot:          robot,
		Instruments:    getEnv("INSTRUMENTS", "EURUSDb:5,GBPUSDb:5,USDJPYb:3"),
		Timeframe:      tf,
		TrendTimeframe: getEnv("TREND_TIMEFRAME", defTrend),
		Bars:           getInt("BARS", defBars),
		RiskPerTrade:   getFloat("RISK_PER_TRADE", 10),
		Workers:        getInt("WORKERS", 8),
		EvalInterval:   getDuration("EVAL_INTERVAL", defInterval),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fxsignal.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPQueue:        getEnv("AMQP_QUEUE", "fx.signals"),
	}
}

// ParseInstruments parses the Instruments string into a registry.
// Invalid entries are fatal: a robot without a digits table cannot price signals.
func (c *Config) ParseInstruments() model.Instruments {
	reg, err := model.ParseInstruments(c.Instruments)
	if err != nil {
		log.Fatalf("[config] INSTRUMENTS: %v", err)
	}
	if len(reg) == 0 {
		log.Fatalf("[config] INSTRUMENTS is empty")
	}
	return reg
}

// TF returns the evaluated timeframe.
func (c *Config) TF() model.Timeframe { return model.Timeframe(c.Timeframe) }

// TrendTF returns the higher timeframe, empty for single-timeframe robots.
func (c *Config) TrendTF() model.Timeframe { return model.Timeframe(c.TrendTimeframe) }

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
