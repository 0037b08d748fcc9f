package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ストレージドライバ
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver string
	DatabaseURL   string

	// Database pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	TxMaxAttempts     int

	// Loan policy
	LoanPeriodDays int
	MaxActiveLoans int
	DailyFineRate  decimal.Decimal
	MinimumAge     int

	// Paging
	DefaultPageSize int
	MaxPageSize     int

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLoanOps int

	// Worker
	OverdueScanInterval time.Duration
	WorkerMetricsPort   string

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// 「今日」を判定するタイムゾーン
	Location *time.Location
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageDriver = strings.ToLower(getEnvString("STORAGE_DRIVER", StorageDriverPostgres))
	switch cfg.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", cfg.StorageDriver)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageDriver == StorageDriverPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.TxMaxAttempts = getEnvInt("TX_MAX_ATTEMPTS", 3)
	cfg.LoanPeriodDays = getEnvInt("LOAN_PERIOD_DAYS", 14)
	cfg.MaxActiveLoans = getEnvInt("MAX_ACTIVE_LOANS", 5)
	cfg.MinimumAge = getEnvInt("MINIMUM_AGE", 12)
	cfg.DefaultPageSize = getEnvInt("DEFAULT_PAGE_SIZE", 100)
	cfg.MaxPageSize = getEnvInt("MAX_PAGE_SIZE", 500)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLoanOps = getEnvInt("RATE_LIMIT_LOAN_OPS", 30)
	cfg.OverdueScanInterval = getEnvDuration("OVERDUE_SCAN_INTERVAL", time.Hour)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9090")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvLogLevel("LOG_LEVEL", slog.LevelInfo)

	rate, err := getEnvDecimal("DAILY_FINE_RATE", decimal.RequireFromString("2.50"))
	if err != nil {
		return nil, err
	}
	cfg.DailyFineRate = rate

	loc, err := time.LoadLocation(getEnvString("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var invalid []string
	if c.LoanPeriodDays < 1 {
		invalid = append(invalid, "LOAN_PERIOD_DAYS")
	}
	if c.MaxActiveLoans < 1 {
		invalid = append(invalid, "MAX_ACTIVE_LOANS")
	}
	if c.MinimumAge < 0 {
		invalid = append(invalid, "MINIMUM_AGE")
	}
	if c.DailyFineRate.IsNegative() {
		invalid = append(invalid, "DAILY_FINE_RATE")
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		invalid = append(invalid, "DEFAULT_PAGE_SIZE/MAX_PAGE_SIZE")
	}
	if c.RateLimitGeneral < 1 || c.RateLimitLoanOps < 1 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL/RATE_LIMIT_LOAN_OPS")
	}
	if c.TxMaxAttempts < 1 {
		invalid = append(invalid, "TX_MAX_ATTEMPTS")
	}
	if c.OverdueScanInterval <= 0 {
		invalid = append(invalid, "OVERDUE_SCAN_INTERVAL")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
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

// getEnvDecimal は金額を読み込む。金額は誤設定に気付けるよう不正値をエラーにする。
func getEnvDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvLogLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return level
}
