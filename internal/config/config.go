package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Subscription
	TrialPeriod time.Duration

	// Payment gateway
	PaymentGatewayURL       string
	PaymentGatewayAPIKey    string
	PaymentGatewayTimeout   time.Duration
	PaymentReconcileTimeout time.Duration

	// Password hashing
	BcryptCost int

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int
	RateLimitPayment int

	// Expiry sweep
	ExpirySweepInterval time.Duration
	ExpirySweepBatch    int

	// Server
	ServerPort        string
	WorkerMetricsPort string

	// Logging
	LogLevel string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv はカレントディレクトリの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.PaymentGatewayURL = os.Getenv("PAYMENT_GATEWAY_URL")
	if cfg.PaymentGatewayURL == "" {
		missing = append(missing, "PAYMENT_GATEWAY_URL")
	}

	cfg.PaymentGatewayAPIKey = os.Getenv("PAYMENT_GATEWAY_API_KEY")
	if cfg.PaymentGatewayAPIKey == "" {
		missing = append(missing, "PAYMENT_GATEWAY_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 30*24*time.Hour)
	cfg.TrialPeriod = getEnvDuration("TRIAL_PERIOD", 7*24*time.Hour)
	cfg.PaymentGatewayTimeout = getEnvDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second)
	cfg.PaymentReconcileTimeout = getEnvDuration("PAYMENT_RECONCILE_TIMEOUT", 30*time.Second)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RateLimitPayment = getEnvInt("RATE_LIMIT_PAYMENT", 10)
	cfg.ExpirySweepInterval = getEnvDuration("EXPIRY_SWEEP_INTERVAL", time.Hour)
	cfg.ExpirySweepBatch = getEnvInt("EXPIRY_SWEEP_BATCH", 500)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
