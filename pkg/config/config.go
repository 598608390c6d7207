package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	Wizard       WizardConfig
	Pricing      PricingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PACKAGEBUILDER_APP_ENV" required:"true"`
	Port         string   `envconfig:"PACKAGEBUILDER_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PACKAGEBUILDER_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PACKAGEBUILDER_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"PACKAGEBUILDER_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"PACKAGEBUILDER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// MetricsAddr is the scrape listener for worker binaries. Empty disables it.
	MetricsAddr string `envconfig:"PACKAGEBUILDER_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, AppEnvProduction)
}

// validateEnv keeps dev-only shortcuts out of production.
func (c *Config) validateEnv() error {
	if !c.App.IsProd() {
		return nil
	}
	if c.FeatureFlags.UseSQLite || strings.EqualFold(c.DB.Driver, "sqlite") {
		return fmt.Errorf("sqlite is not allowed when %s is %q", EnvAppEnv, c.App.Env)
	}
	return nil
}

type ServiceConfig struct {
	Kind string `envconfig:"PACKAGEBUILDER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PACKAGEBUILDER_DB_DSN"`
	Driver string `envconfig:"PACKAGEBUILDER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PACKAGEBUILDER_DB_HOST"`
	LegacyPort     int    `envconfig:"PACKAGEBUILDER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PACKAGEBUILDER_DB_USER"`
	LegacyPassword string `envconfig:"PACKAGEBUILDER_DB_PASSWORD"`
	LegacyName     string `envconfig:"PACKAGEBUILDER_DB_NAME"`
	LegacySSLMode  string `envconfig:"PACKAGEBUILDER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PACKAGEBUILDER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PACKAGEBUILDER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PACKAGEBUILDER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PACKAGEBUILDER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"PACKAGEBUILDER_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PACKAGEBUILDER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PACKAGEBUILDER_REDIS_ADDR"`
	Password     string        `envconfig:"PACKAGEBUILDER_REDIS_PASSWORD"`
	DB           int           `envconfig:"PACKAGEBUILDER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PACKAGEBUILDER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PACKAGEBUILDER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PACKAGEBUILDER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PACKAGEBUILDER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PACKAGEBUILDER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PACKAGEBUILDER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PACKAGEBUILDER_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	SaveIdempotencyTTL time.Duration `envconfig:"PACKAGEBUILDER_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

// WizardConfig drives configuration session lifecycle.
type WizardConfig struct {
	StepDelay     time.Duration `envconfig:"PACKAGEBUILDER_WIZARD_STEP_DELAY" default:"500ms"`
	SessionTTL    time.Duration `envconfig:"PACKAGEBUILDER_WIZARD_SESSION_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"PACKAGEBUILDER_WIZARD_SWEEP_INTERVAL" default:"1m"`
	MaxSessions   int           `envconfig:"PACKAGEBUILDER_WIZARD_MAX_SESSIONS" default:"10000"`
}

type PricingConfig struct {
	PlanNames          []string    `envconfig:"PACKAGEBUILDER_PRICING_PLAN_NAMES" default:"Monthly,Quarterly,Semi-Annual,Annual,Custom"`
	PlanDiscounts      DecimalList `envconfig:"PACKAGEBUILDER_PRICING_PLAN_DISCOUNTS" default:"0,0.10,0.15,0.20,0"`
	SupportNames       []string    `envconfig:"PACKAGEBUILDER_PRICING_SUPPORT_NAMES" default:"Standard,Priority,Dedicated"`
	SupportMultipliers DecimalList `envconfig:"PACKAGEBUILDER_PRICING_SUPPORT_MULTIPLIERS" default:"0,0.20,0.40"`
	DefaultCurrency    string      `envconfig:"PACKAGEBUILDER_PRICING_DEFAULT_CURRENCY" default:"USD"`
}

func (p PricingConfig) validate() error {
	if len(p.PlanNames) != len(p.PlanDiscounts) {
		return fmt.Errorf("%s and %s must have the same length", EnvPricingPlanNames, EnvPricingPlanDiscounts)
	}
	if len(p.SupportNames) != len(p.SupportMultipliers) {
		return fmt.Errorf("%s and %s must have the same length", EnvPricingSupportNames, EnvPricingSupportMultipliers)
	}
	one := decimal.NewFromInt(1)
	for i, d := range p.PlanDiscounts {
		if d.IsNegative() || d.GreaterThanOrEqual(one) {
			return fmt.Errorf("%s[%d] must be in [0,1): %s", EnvPricingPlanDiscounts, i, d)
		}
	}
	for i, m := range p.SupportMultipliers {
		if m.IsNegative() {
			return fmt.Errorf("%s[%d] must not be negative: %s", EnvPricingSupportMultipliers, i, m)
		}
	}
	return nil
}

// DecimalList decodes a comma separated list of decimal values.
type DecimalList []decimal.Decimal

func (l *DecimalList) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(value, ",")
	out := make(DecimalList, 0, len(parts))
	for _, part := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", part, err)
		}
		out = append(out, d)
	}
	*l = out
	return nil
}

// GCPConfig falls back to application default credentials when neither
// credential field is set.
type GCPConfig struct {
	ProjectID              string `envconfig:"PACKAGEBUILDER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PACKAGEBUILDER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PACKAGEBUILDER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ConfigurationsTopic string `envconfig:"PACKAGEBUILDER_PUBSUB_CONFIGURATIONS_TOPIC" default:"pb-configuration-events"`
	EmulatorHost        string `envconfig:"PACKAGEBUILDER_PUBSUB_EMULATOR_HOST"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PACKAGEBUILDER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PACKAGEBUILDER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PACKAGEBUILDER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"PACKAGEBUILDER_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PACKAGEBUILDER_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"PACKAGEBUILDER_CRON_LOCK_TTL" default:"30m"`
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
