package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "LIVRINHO"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv   = "LIVRINHO_APP_ENV"
	EnvPort     = "LIVRINHO_APP_PORT"
	EnvDBDSN    = "LIVRINHO_DB_DSN"
	EnvDBHost   = "LIVRINHO_DB_HOST"
	EnvDBUser   = "LIVRINHO_DB_USER"
	EnvDBName   = "LIVRINHO_DB_NAME"
	EnvRedisURL = "LIVRINHO_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Coupon   CouponConfig
	Cart     CartConfig
	Worker   WorkerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIVRINHO_APP_ENV" required:"true"`
	Port         string `envconfig:"LIVRINHO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIVRINHO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIVRINHO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LIVRINHO_DB_DSN"`
	Driver string `envconfig:"LIVRINHO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIVRINHO_DB_HOST"`
	LegacyPort     int    `envconfig:"LIVRINHO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIVRINHO_DB_USER"`
	LegacyPassword string `envconfig:"LIVRINHO_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIVRINHO_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIVRINHO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIVRINHO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIVRINHO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIVRINHO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIVRINHO_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"LIVRINHO_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIVRINHO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIVRINHO_REDIS_ADDR"`
	Password     string        `envconfig:"LIVRINHO_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIVRINHO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIVRINHO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIVRINHO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIVRINHO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIVRINHO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIVRINHO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LIVRINHO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LIVRINHO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LIVRINHO_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// GatewayConfig points at the payment gateway and carries the business
// parameters of both payment methods. The PIX TTL is deliberately a single
// knob: the expiry written on a charge is always CreatedAt + PixTTL.
type GatewayConfig struct {
	BaseURL        string         `envconfig:"LIVRINHO_GATEWAY_BASE_URL" required:"true"`
	APIKey         string         `envconfig:"LIVRINHO_GATEWAY_API_KEY" required:"true"`
	WebhookSecret  string         `envconfig:"LIVRINHO_GATEWAY_WEBHOOK_SECRET"`
	Timeout        time.Duration  `envconfig:"LIVRINHO_GATEWAY_TIMEOUT" default:"10s"`
	PixTTL         time.Duration  `envconfig:"LIVRINHO_GATEWAY_PIX_TTL" default:"15m"`
	CardSurcharges SurchargeTable `envconfig:"LIVRINHO_GATEWAY_CARD_SURCHARGES" default:"4:2.99,5:3.49,6:3.99,7:4.49,8:4.99,9:5.49,10:5.99,11:6.49,12:6.99"`
	MaxInstallment int            `envconfig:"LIVRINHO_GATEWAY_MAX_INSTALLMENTS" default:"12"`
}

type CheckoutConfig struct {
	MaxConflictRetries int           `envconfig:"LIVRINHO_CHECKOUT_MAX_CONFLICT_RETRIES" default:"3"`
	StatusCacheTTL     time.Duration `envconfig:"LIVRINHO_CHECKOUT_STATUS_CACHE_TTL" default:"3s"`
}

type CouponConfig struct {
	ProgressiveTable ProgressiveTable `envconfig:"LIVRINHO_COUPON_PROGRESSIVE_TABLE" default:"1:0,3:5,5:10,10:15"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"LIVRINHO_CART_TTL" default:"720h"`
}

// WorkerConfig tunes the background expiry sweep.
type WorkerConfig struct {
	SweepInterval time.Duration `envconfig:"LIVRINHO_WORKER_SWEEP_INTERVAL" default:"1m"`
	MetricsPort   string        `envconfig:"LIVRINHO_WORKER_METRICS_PORT" default:"9090"`
}

// SurchargeTable maps installment counts to a surcharge percentage.
// Its env representation is "installments:percent" pairs joined by commas.
type SurchargeTable map[int]decimal.Decimal

// Decode implements envconfig.Decoder.
func (t *SurchargeTable) Decode(value string) error {
	parsed, err := parseRateTable(value)
	if err != nil {
		return fmt.Errorf("card surcharge table: %w", err)
	}
	*t = parsed
	return nil
}

// PercentFor returns the surcharge percentage for an installment count.
// Counts below the lowest configured tier carry no surcharge.
func (t SurchargeTable) PercentFor(installments int) decimal.Decimal {
	if rate, ok := t[installments]; ok {
		return rate
	}
	return decimal.Zero
}

// ProgressiveTable maps minimum unit counts to the percentage discount
// applied per unit at that tier. Tiers are matched by the highest threshold
// not exceeding the unit count.
type ProgressiveTable map[int]decimal.Decimal

// Decode implements envconfig.Decoder.
func (t *ProgressiveTable) Decode(value string) error {
	parsed, err := parseRateTable(value)
	if err != nil {
		return fmt.Errorf("progressive coupon table: %w", err)
	}
	*t = parsed
	return nil
}

// PercentFor resolves the per-unit percentage for the given quantity.
func (t ProgressiveTable) PercentFor(quantity int) decimal.Decimal {
	thresholds := make([]int, 0, len(t))
	for th := range t {
		thresholds = append(thresholds, th)
	}
	sort.Ints(thresholds)

	rate := decimal.Zero
	for _, th := range thresholds {
		if quantity >= th {
			rate = t[th]
		}
	}
	return rate
}

func parseRateTable(value string) (map[int]decimal.Decimal, error) {
	table := map[int]decimal.Decimal{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid entry %q (expected key:percent)", pair)
		}
		key, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid key in %q: %w", pair, err)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid percent in %q: %w", pair, err)
		}
		table[key] = rate
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("table is empty")
	}
	return table, nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
