package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "bartab"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BARTAB_DB_DSN"
	EnvDBHost = "BARTAB_DB_HOST"
	EnvDBUser = "BARTAB_DB_USER"
	EnvDBName = "BARTAB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Mollie       MollieConfig
	Sendgrid     SendgridConfig
	Checkout     CheckoutConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"BARTAB_APP_ENV" required:"true"`
	Port         string `envconfig:"BARTAB_APP_PORT" required:"true"`
	SiteName     string `envconfig:"BARTAB_SITE_NAME" default:"Bar Tab"`
	LogLevel     string `envconfig:"BARTAB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BARTAB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BARTAB_DB_DSN"`
	Driver string `envconfig:"BARTAB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BARTAB_DB_HOST"`
	LegacyPort     int    `envconfig:"BARTAB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BARTAB_DB_USER"`
	LegacyPassword string `envconfig:"BARTAB_DB_PASSWORD"`
	LegacyName     string `envconfig:"BARTAB_DB_NAME"`
	LegacySSLMode  string `envconfig:"BARTAB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BARTAB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BARTAB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BARTAB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BARTAB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BARTAB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BARTAB_REDIS_ADDR"`
	Password     string        `envconfig:"BARTAB_REDIS_PASSWORD"`
	DB           int           `envconfig:"BARTAB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BARTAB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BARTAB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BARTAB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BARTAB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BARTAB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BARTAB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BARTAB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BARTAB_JWT_EXPIRATION_MINUTES" required:"true"`
}

type MollieConfig struct {
	APIKey  string        `envconfig:"BARTAB_MOLLIE_API_KEY" required:"true"`
	BaseURL string        `envconfig:"BARTAB_MOLLIE_BASE_URL" default:"https://api.mollie.com"`
	Timeout time.Duration `envconfig:"BARTAB_MOLLIE_TIMEOUT" default:"10s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"BARTAB_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"BARTAB_SENDGRID_FROM_EMAIL"`
}

// CheckoutConfig carries the public URLs handed to the payment gateway.
type CheckoutConfig struct {
	PublicBaseURL string `envconfig:"BARTAB_CHECKOUT_PUBLIC_BASE_URL" required:"true"`
	TabPageURL    string `envconfig:"BARTAB_CHECKOUT_TAB_PAGE_URL" required:"true"`
}

// ReturnURL is where the gateway sends the guest's browser after checkout.
func (c CheckoutConfig) ReturnURL(tabID string) string {
	return fmt.Sprintf("%s/pay/return?tabId=%s", strings.TrimRight(c.PublicBaseURL, "/"), url.QueryEscape(tabID))
}

// WebhookURL is where the gateway posts payment callbacks.
func (c CheckoutConfig) WebhookURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/webhooks/mollie"
}

type WebhookConfig struct {
	ReplayTTL        time.Duration `envconfig:"BARTAB_WEBHOOK_REPLAY_TTL" default:"15s"`
	ReceiptDedupeTTL time.Duration `envconfig:"BARTAB_RECEIPT_DEDUPE_TTL" default:"15s"`
	IdempotencyTTL   time.Duration `envconfig:"BARTAB_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BARTAB_AUTO_MIGRATE" default:"false"`
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
