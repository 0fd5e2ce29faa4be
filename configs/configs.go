// Package configs provides application configuration loaded from
// environment variables, with an optional .env file for local
// development.
package configs

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// Coingecko contains settings for the price source client.
	Coingecko CoingeckoConfig

	// Pipeline contains settings for the ingestion loop.
	Pipeline PipelineConfig

	// StoragePath is the directory of the ordered key-value database.
	StoragePath string

	// RPCAddr is the TCP listen address of the RPC server.
	RPCAddr string
}

// CoingeckoConfig holds CoinGecko API client settings.
type CoingeckoConfig struct {
	// APIKey is the optional demo API key.
	APIKey string

	// BaseURL is the API base URL.
	BaseURL string

	// VsCurrency is the quote currency for prices and volumes.
	VsCurrency string

	// TopNCoins is how many coins, by descending market cap, each
	// cycle tracks.
	TopNCoins int

	// TopNExchanges is how many exchange tickers may contribute to an
	// average price.
	TopNExchanges int

	// RequestDelay is the minimum spacing between API calls, to stay
	// under the public rate limit.
	RequestDelay time.Duration
}

// PipelineConfig holds ingestion loop settings.
type PipelineConfig struct {
	// Interval is the time between ingestion cycles.
	Interval time.Duration
}

// AppLoad loads all application configuration from environment
// variables. Call this once at application startup.
func AppLoad() *AppConfig {
	_ = godotenv.Load() // .env is optional

	return &AppConfig{
		Coingecko: CoingeckoConfig{
			APIKey:        getEnv("COINGECKO_API_KEY", ""),
			BaseURL:       getEnv("COINGECKO_API_BASE_URL", "https://api.coingecko.com/api/v3"),
			VsCurrency:    getEnv("VS_CURRENCY", "usd"),
			TopNCoins:     getEnvInt("TOP_N_COINS", 5),
			TopNExchanges: getEnvInt("TOP_N_EXCHANGES", 3),
			RequestDelay:  time.Duration(getEnvInt("REQUEST_DELAY_MS", 600)) * time.Millisecond,
		},
		Pipeline: PipelineConfig{
			Interval: time.Duration(getEnvInt("PIPELINE_INTERVAL_MS", 30000)) * time.Millisecond,
		},
		StoragePath: getEnv("STORAGE_PATH", "./db/crypto-data"),
		RPCAddr:     getEnv("RPC_ADDR", ":40001"),
	}
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
