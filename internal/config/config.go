package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	SQLitePath      string
	GroupID         string
	BotPhone        string
	ReplyDelayMinMs int  // Minimum delay before reply (milliseconds)
	ReplyDelayMaxMs int  // Maximum delay before reply (milliseconds), 0 = use min as fixed
	ShowTyping      bool // Show typing indicator during delay
	LogLevel        string

	ClassifierProvider string // "openrouter" or "gemini"
	ClassifierRPS      float64
	MaxTokens          int

	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterEndpoint string
	OpenRouterReferer  string
	OpenRouterTitle    string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// SyncPointsToUsers also writes awarded points into the registered users list.
	SyncPointsToUsers bool
	RewardsCatalog    string

	AMQPURL      string
	AMQPExchange string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults/environment variables")
	}

	return Config{
		Port:            getenv("PORT", "8080"),
		SQLitePath:      getenv("SQLITE_PATH", "./data/amchegoa.db"),
		GroupID:         getenv("GROUP_ID", ""),
		BotPhone:        getenv("BOT_PHONE", ""),
		ReplyDelayMinMs: getenvInt("REPLY_DELAY_MIN_MS", 0),
		ReplyDelayMaxMs: getenvInt("REPLY_DELAY_MAX_MS", 0),
		ShowTyping:      getenvBool("SHOW_TYPING", false),
		LogLevel:        getenv("LOG_LEVEL", "info"),

		ClassifierProvider: getenv("CLASSIFIER_PROVIDER", "openrouter"),
		ClassifierRPS:      getenvFloat("CLASSIFIER_RPS", 0),
		MaxTokens:          getenvInt("CLASSIFIER_MAX_TOKENS", 200),

		OpenRouterAPIKey:   getenv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    getenv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		OpenRouterEndpoint: getenv("OPENROUTER_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
		OpenRouterReferer:  getenv("OPENROUTER_REFERER", "https://amchegoa.app"),
		OpenRouterTitle:    getenv("OPENROUTER_TITLE", "AmcheGoa Civic Reporting"),

		GeminiAPIKey:  getenv("GEMINI_API_KEY", ""),
		GeminiModel:   getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL: getenv("GEMINI_BASE_URL", ""),

		SyncPointsToUsers: getenvBool("SYNC_POINTS_TO_USERS", false),
		RewardsCatalog:    getenv("REWARDS_CATALOG", ""),

		AMQPURL:      getenv("AMQP_URL", ""),
		AMQPExchange: getenv("AMQP_EXCHANGE", "civic-reports"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
