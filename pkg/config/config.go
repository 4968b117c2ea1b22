package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the decision engine.
type Config struct {
	Port string

	// Market data
	ScreenerURL string
	UseMockFeed bool
	MockTickers []string

	// Broker gateway
	BrokerURL    string
	BrokerAPIKey string
	BrokerRPS    float64

	// Execution
	DryRun bool

	// Dry-run simulation
	DryRunFeeRate        float64 // decimal (e.g. 0.0004 = 4 bps)
	DryRunSlippageBps    float64 // slippage applied on fills (bps)
	DryRunGwLatencyMinMs int
	DryRunGwLatencyMaxMs int

	// Order persistence
	EnableOrderWAL bool
	OrderWALPath   string

	// Database
	DBPath string

	// Trading parameters
	ParamsPath string // YAML file, optional

	// Alerts
	AlertWebhookURL string

	// Auth
	JWTSecret        string
	OperatorUser     string
	OperatorPassHash string // bcrypt hash of the operator password
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		ScreenerURL:          getEnv("SCREENER_URL", "ws://localhost:9000/stream"),
		UseMockFeed:          getEnv("USE_MOCK_FEED", "true") == "true",
		MockTickers:          splitAndTrim(getEnv("MOCK_TICKERS", "NVDA,AMD,TSLA")),
		BrokerURL:            getEnv("BROKER_URL", "http://localhost:9100"),
		BrokerAPIKey:         os.Getenv("BROKER_API_KEY"),
		BrokerRPS:            getEnvFloat("BROKER_RPS", 5),
		DryRun:               getEnv("DRY_RUN", "true") == "true",
		DryRunFeeRate:        getEnvFloat("DRY_RUN_FEE_RATE", 0.0004),
		DryRunSlippageBps:    getEnvFloat("DRY_RUN_SLIPPAGE_BPS", 2),
		DryRunGwLatencyMinMs: getEnvInt("DRY_RUN_GATEWAY_LATENCY_MIN_MS", 0),
		DryRunGwLatencyMaxMs: getEnvInt("DRY_RUN_GATEWAY_LATENCY_MAX_MS", 0),
		EnableOrderWAL:       getEnv("ENABLE_ORDER_WAL", "true") == "true",
		OrderWALPath:         getEnv("ORDER_WAL_PATH", "./data/order_wal"),
		DBPath:               getEnv("DB_PATH", "./data/momentum.db"),
		ParamsPath:           getEnv("PARAMS_PATH", ""),
		AlertWebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
		JWTSecret:            getEnv("JWT_SECRET", "dev-secret"),
		OperatorUser:         getEnv("OPERATOR_USER", "operator"),
		OperatorPassHash:     os.Getenv("OPERATOR_PASSWORD_HASH"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
