package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/ticket"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTClockSkew       time.Duration
	CORSAllowedOrigins []string
	CurrencyCode       string

	SaleSessionTTL   time.Duration
	ReservationTTL   time.Duration
	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	IdempotencyTTL   time.Duration

	Fees                       ticket.FeeSchedule
	FeeCacheTTL                time.Duration
	StoreCreditMaxInstallments int
	WalkInCustomerID           string

	RateLimit        string
	BodyLimitBytes   int64
	QueueConcurrency int
}

// Policy returns the ticket policy derived from the configured fee defaults.
func (c *Config) Policy() ticket.Policy {
	return ticket.Policy{
		Fees:                       c.Fees,
		StoreCreditMaxInstallments: c.StoreCreditMaxInstallments,
		WalkInCustomerID:           c.WalkInCustomerID,
	}
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	fees, err := loadFees(k)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "backoffice"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "pos"),
		JWTClockSkew:       parseDuration(k.String("JWT_CLOCK_SKEW"), "30s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "BRL")),

		SaleSessionTTL:   parseDuration(k.String("SALE_SESSION_TTL"), "2h"),
		ReservationTTL:   parseDuration(k.String("RESERVATION_TTL"), "15m"),
		LockTTL:          parseDuration(k.String("LOCK_TTL"), "5s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "25ms"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		Fees:                       fees,
		FeeCacheTTL:                parseDuration(k.String("FEE_CACHE_TTL"), "5m"),
		StoreCreditMaxInstallments: parseInt(k.String("STORE_CREDIT_MAX_INSTALLMENTS"), 12),
		WalkInCustomerID:           valueOrDefault(k.String("WALK_IN_CUSTOMER_ID"), ticket.WalkInCustomer),

		RateLimit:        valueOrDefault(k.String("RATE_LIMIT"), "600-M"),
		BodyLimitBytes:   int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		QueueConcurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func loadFees(k *koanf.Koanf) (ticket.FeeSchedule, error) {
	fees := ticket.DefaultFeeSchedule()
	var err error
	if raw := strings.TrimSpace(k.String("FEE_DEBIT_PERCENT")); raw != "" {
		if fees.DebitFeePercent, err = decimal.NewFromString(raw); err != nil {
			return fees, fmt.Errorf("FEE_DEBIT_PERCENT: %w", err)
		}
	}
	if raw := strings.TrimSpace(k.String("FEE_CREDIT_PERCENT")); raw != "" {
		if fees.CreditFeePercent, err = decimal.NewFromString(raw); err != nil {
			return fees, fmt.Errorf("FEE_CREDIT_PERCENT: %w", err)
		}
	}
	fees.InterestFreeInstallments = parseInt(k.String("FEE_INTEREST_FREE_INSTALLMENTS"), fees.InterestFreeInstallments)
	fees.MaxInstallments = parseInt(k.String("FEE_MAX_INSTALLMENTS"), fees.MaxInstallments)
	table, err := ParseInterestTable(k.String("FEE_INTEREST_TABLE"))
	if err != nil {
		return fees, fmt.Errorf("FEE_INTEREST_TABLE: %w", err)
	}
	fees.InterestTable = table
	if err := fees.Validate(); err != nil {
		return fees, fmt.Errorf("fee schedule: %w", err)
	}
	return fees, nil
}

// ParseInterestTable reads "installments:rate" pairs separated by commas, e.g. "4:2.99,6:3.5".
func ParseInterestTable(value string) (map[int]decimal.Decimal, error) {
	table := map[int]decimal.Decimal{}
	for _, pair := range splitAndTrim(value) {
		n, rate, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		count, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid installment count %q", n)
		}
		pct, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
		}
		table[count] = pct
	}
	return table, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
