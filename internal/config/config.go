package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the sync engine.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Environment string
	Gateway     GatewayConfig
	Sync        SyncConfig
	Metrics     MetricsConfig
}

type GatewayConfig struct {
	// APIBaseURL is the marketplace REST API root, e.g. https://api.swapsphere.app
	APIBaseURL string
	// SocketURL is the realtime gateway endpoint, e.g. wss://api.swapsphere.app/ws
	SocketURL string
	// Token is the bearer credential issued by the auth collaborator.
	Token string
}

type SyncConfig struct {
	// RequestTimeout bounds every REST call; on expiry the optimistic
	// mutation is rolled back and a retryable error returned.
	RequestTimeout time.Duration
	// BidSafetyBuffer rejects bids this close to auction end before they
	// are sent. The server decision stays authoritative.
	BidSafetyBuffer time.Duration
	// CountdownInterval is the auction countdown tick period.
	CountdownInterval time.Duration
	// TypingTTL is how long a typing indicator stays visible without refresh.
	TypingTTL time.Duration
	// ReconnectBaseDelay seeds the socket reconnect backoff.
	ReconnectBaseDelay time.Duration
	// ReconnectMaxDelay caps the socket reconnect backoff.
	ReconnectMaxDelay time.Duration
}

type MetricsConfig struct {
	Addr string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Gateway: GatewayConfig{
			APIBaseURL: getEnv("SWAPSPHERE_API_URL", "http://localhost:8080"),
			SocketURL:  getEnv("SWAPSPHERE_SOCKET_URL", "ws://localhost:8080/ws"),
			Token:      getEnv("SWAPSPHERE_TOKEN", ""),
		},
		Sync: SyncConfig{
			RequestTimeout:     getEnvAsDuration("SYNC_REQUEST_TIMEOUT", 10*time.Second),
			BidSafetyBuffer:    getEnvAsDuration("SYNC_BID_SAFETY_BUFFER", 2*time.Second),
			CountdownInterval:  getEnvAsDuration("SYNC_COUNTDOWN_INTERVAL", time.Second),
			TypingTTL:          getEnvAsDuration("SYNC_TYPING_TTL", 4*time.Second),
			ReconnectBaseDelay: getEnvAsDuration("SYNC_RECONNECT_BASE_DELAY", time.Second),
			ReconnectMaxDelay:  getEnvAsDuration("SYNC_RECONNECT_MAX_DELAY", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
