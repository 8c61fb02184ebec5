package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "BUNAI"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Workflow     WorkflowConfig
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
	if err := cfg.Workflow.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BUNAI_APP_ENV" required:"true"`
	Port         string `envconfig:"BUNAI_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BUNAI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUNAI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BUNAI_DB_DSN"`
	Driver string `envconfig:"BUNAI_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BUNAI_DB_HOST"`
	Port     int    `envconfig:"BUNAI_DB_PORT" default:"5432"`
	User     string `envconfig:"BUNAI_DB_USER"`
	Password string `envconfig:"BUNAI_DB_PASSWORD"`
	Name     string `envconfig:"BUNAI_DB_NAME"`
	SSLMode  string `envconfig:"BUNAI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BUNAI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUNAI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUNAI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUNAI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either BUNAI_DB_DSN or BUNAI_DB_HOST/USER/NAME must be set")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"BUNAI_REDIS_URL"`
	Address      string        `envconfig:"BUNAI_REDIS_ADDR"`
	Password     string        `envconfig:"BUNAI_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUNAI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUNAI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUNAI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUNAI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUNAI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUNAI_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// WorkflowConfig carries the order-workflow knobs handed to the approval
// orchestrator and conversation handlers at construction time.
type WorkflowConfig struct {
	OwnerPhone         string        `envconfig:"BUNAI_OWNER_PHONE"`
	OverdueWindow      time.Duration `envconfig:"BUNAI_OVERDUE_WINDOW" default:"168h"`
	DefaultTaxRate     string        `envconfig:"BUNAI_DEFAULT_TAX_RATE" default:"0.05"`
	MaxAlternatives    int           `envconfig:"BUNAI_MAX_ALTERNATIVES" default:"3"`
	InvoiceNumberSeed  string        `envconfig:"BUNAI_INVOICE_PREFIX" default:"INV"`
	ApprovalIdemWindow time.Duration `envconfig:"BUNAI_APPROVAL_IDEM_WINDOW" default:"168h"`
}

func (w WorkflowConfig) validate() error {
	if _, err := decimal.NewFromString(w.DefaultTaxRate); err != nil {
		return fmt.Errorf("invalid BUNAI_DEFAULT_TAX_RATE %q: %w", w.DefaultTaxRate, err)
	}
	if w.OverdueWindow <= 0 {
		return fmt.Errorf("BUNAI_OVERDUE_WINDOW must be positive")
	}
	if w.MaxAlternatives <= 0 {
		return fmt.Errorf("BUNAI_MAX_ALTERNATIVES must be positive")
	}
	return nil
}

// DefaultTax returns the parsed fallback tax rate. validate guarantees the
// string parses, so failures here mean Load was bypassed.
func (w WorkflowConfig) DefaultTax() decimal.Decimal {
	rate, err := decimal.NewFromString(w.DefaultTaxRate)
	if err != nil {
		return decimal.NewFromFloat(0.05)
	}
	return rate
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BUNAI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BUNAI_AUTO_MIGRATE" default:"false"`
}
