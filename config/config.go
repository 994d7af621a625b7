/*
Package config loads server configuration from the environment.

A .env file in the working directory is honored when present; real
environment variables win. Every value has a usable default so a bare
`go run ./cmd/server` starts with the in-memory store.
*/
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   int
	UserID string

	// StoreDriver selects persistence: "memory", "sqlite" or "mongo".
	StoreDriver string
	SQLitePath  string
	MongoURI    string
	MongoDB     string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	ReqTimeoutSec int

	DefaultCurrency string
	DefaultSymbol   string
	DefaultTimezone string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// Load reads the environment (and .env, when present) into a Config.
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Port:            atoi("PORT", 8080),
		UserID:          getenv("LEDGER_USER_ID", "local"),
		StoreDriver:     getenv("STORE_DRIVER", "memory"),
		SQLitePath:      getenv("SQLITE_PATH", "ledger.db"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getenv("MONGO_DATABASE", "ledger"),
		OpenAIKey:       getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getenv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		ReqTimeoutSec:   atoi("REQUEST_TIMEOUT_SECONDS", 30),
		DefaultCurrency: getenv("DEFAULT_CURRENCY", "USD"),
		DefaultSymbol:   getenv("DEFAULT_CURRENCY_SYMBOL", "$"),
		DefaultTimezone: getenv("DEFAULT_TIMEZONE", ""),
	}
}
