package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Gate modes. LIVE enforces denials; DRY_RUN only logs them.
const (
	ModeLive   = "LIVE"
	ModeDryRun = "DRY_RUN"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Session  SessionConfig
	Mail     MailConfig
	Gate     GateConfig
	Tracing  TracingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"APP_NAME" envDefault:"auth-gateway"`
	Env                   string `env:"APP_ENV" envDefault:"development"`
	Host                  string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"APP_PORT" envDefault:"3000"`
	Version               string `env:"APP_VERSION" envDefault:"dev"`
	BaseURL               string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	RequestTimeoutSeconds int    `env:"HTTP_REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"POSTGRES_DSN"`
	MaxConns       int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"POSTGRES_RUN_MIGRATIONS" envDefault:"true"`
	MigrationsDir  string `env:"POSTGRES_MIGRATIONS_DIR" envDefault:"migrations"`
	ConnMaxIdleSec int32  `env:"POSTGRES_CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"POSTGRES_CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"20"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"500ms"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"500ms"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	Secret                 string   `env:"AUTH_SECRET" envDefault:"dev-secret"`
	BcryptCost             int      `env:"AUTH_BCRYPT_COST" envDefault:"12"`
	MinPasswordLength      int      `env:"AUTH_MIN_PASSWORD_LENGTH" envDefault:"6"`
	MaxPasswordLength      int      `env:"AUTH_MAX_PASSWORD_LENGTH" envDefault:"128"`
	ResetTokenTTLMinutes   int      `env:"AUTH_RESET_TOKEN_TTL_MINUTES" envDefault:"60"`
	DeleteTokenTTLMinutes  int      `env:"AUTH_DELETE_TOKEN_TTL_MINUTES" envDefault:"60"`
	TrustedCallbackOrigins []string `env:"AUTH_TRUSTED_ORIGINS" envSeparator:","`
}

// SessionConfig controls session lifetime and the signed cookie cache.
type SessionConfig struct {
	ExpiresIn         time.Duration `env:"SESSION_EXPIRES_IN" envDefault:"168h"`
	UpdateAge         time.Duration `env:"SESSION_UPDATE_AGE" envDefault:"24h"`
	CookieCacheTTL    time.Duration `env:"SESSION_COOKIE_CACHE_TTL" envDefault:"5m"`
	CookieCache       bool          `env:"SESSION_COOKIE_CACHE" envDefault:"true"`
	SecureCookies     bool          `env:"SESSION_SECURE_COOKIES" envDefault:"false"`
	CookieDomain      string        `env:"SESSION_COOKIE_DOMAIN"`
	RememberMeDefault bool          `env:"SESSION_REMEMBER_ME_DEFAULT" envDefault:"true"`
}

// MailConfig selects the outgoing mail transport. An empty SMTP host logs
// messages instead of sending them.
type MailConfig struct {
	From     string `env:"MAIL_FROM" envDefault:"noreply@example.com"`
	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASSWORD"`
}

// GateConfig is the request gate policy, built once at startup.
type GateConfig struct {
	Mode         string        `env:"GATE_MODE"`
	APIKey       string        `env:"GATE_API_KEY"`
	StrictMax    int64         `env:"GATE_STRICT_MAX" envDefault:"10"`
	StrictWindow time.Duration `env:"GATE_STRICT_WINDOW" envDefault:"10m"`
	LaxMax       int64         `env:"GATE_LAX_MAX" envDefault:"60"`
	LaxWindow    time.Duration `env:"GATE_LAX_WINDOW" envDefault:"1m"`
	EmailBlock   []string      `env:"GATE_EMAIL_BLOCK" envSeparator:"," envDefault:"DISPOSABLE,INVALID,NO_MX_RECORDS"`
	BotAllow     []string      `env:"GATE_BOT_ALLOW" envSeparator:","`
	TrustProxy   bool          `env:"GATE_TRUST_PROXY" envDefault:"false"`
	FailOpen     bool          `env:"GATE_FAIL_OPEN" envDefault:"false"`
	Store        string        `env:"GATE_STORE" envDefault:"redis"`
	StatsEnabled bool          `env:"GATE_STATS_ENABLED" envDefault:"false"`
	KeyPrefix    string        `env:"GATE_KEY_PREFIX" envDefault:"gate"`
	MXLookupRPS  float64       `env:"GATE_MX_LOOKUP_RPS" envDefault:"20"`
	MXTimeout    time.Duration `env:"GATE_MX_TIMEOUT" envDefault:"3s"`
}

// TracingConfig enables OTLP trace export when an endpoint is configured.
type TracingConfig struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

var knownEmailTypes = map[string]struct{}{
	"DISPOSABLE":    {},
	"INVALID":       {},
	"NO_MX_RECORDS": {},
	"FREE":          {},
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Gate.Mode = strings.ToUpper(strings.TrimSpace(c.Gate.Mode))
	if c.Gate.Mode == "" {
		c.Gate.Mode = ModeDryRun
		if c.App.IsProduction() {
			c.Gate.Mode = ModeLive
		}
	}
	c.Gate.EmailBlock = normalizeList(c.Gate.EmailBlock, strings.ToUpper)
	c.Gate.BotAllow = normalizeList(c.Gate.BotAllow, strings.ToUpper)
	c.Gate.Store = strings.ToLower(strings.TrimSpace(c.Gate.Store))
	c.App.BaseURL = strings.TrimRight(c.App.BaseURL, "/")
}

// Validate rejects settings the gate or auth service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Gate.Mode {
	case ModeLive, ModeDryRun:
	default:
		errs = append(errs, fmt.Errorf("GATE_MODE must be %s or %s, got %q", ModeLive, ModeDryRun, c.Gate.Mode))
	}
	if c.Gate.StrictMax <= 0 || c.Gate.LaxMax <= 0 {
		errs = append(errs, errors.New("GATE_STRICT_MAX and GATE_LAX_MAX must be > 0"))
	}
	if c.Gate.StrictWindow <= 0 || c.Gate.LaxWindow <= 0 {
		errs = append(errs, errors.New("GATE_STRICT_WINDOW and GATE_LAX_WINDOW must be > 0"))
	}
	for _, t := range c.Gate.EmailBlock {
		if _, ok := knownEmailTypes[t]; !ok {
			errs = append(errs, fmt.Errorf("GATE_EMAIL_BLOCK: unknown email type %q", t))
		}
	}
	switch c.Gate.Store {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("GATE_STORE must be redis or memory, got %q", c.Gate.Store))
	}
	if c.Gate.Mode == ModeLive && strings.TrimSpace(c.Gate.APIKey) == "" {
		errs = append(errs, errors.New("GATE_API_KEY is required when GATE_MODE=LIVE"))
	}
	if c.Auth.MinPasswordLength <= 0 || c.Auth.MaxPasswordLength < c.Auth.MinPasswordLength {
		errs = append(errs, errors.New("AUTH_MIN_PASSWORD_LENGTH must be > 0 and <= AUTH_MAX_PASSWORD_LENGTH"))
	}
	if c.App.IsProduction() && c.Auth.Secret == "dev-secret" {
		errs = append(errs, errors.New("AUTH_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// IsProduction reports whether APP_ENV selects production behavior.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Live reports whether gate rules enforce their denials.
func (g GateConfig) Live() bool {
	return g.Mode == ModeLive
}

func normalizeList(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, fn(v))
	}
	return out
}
