package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CoinConnect   CoinConnectConfig
	SMTP          SMTPConfig
	Cron          CronConfig
	AdminSeed     AdminSeedConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = "file:gembot.db?cache=shared"
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GEMBOT_APP_ENV" required:"true"`
	Port         string `envconfig:"GEMBOT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GEMBOT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEMBOT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GEMBOT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GEMBOT_DB_DSN"`
	Driver string `envconfig:"GEMBOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GEMBOT_DB_HOST"`
	LegacyPort     int    `envconfig:"GEMBOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GEMBOT_DB_USER"`
	LegacyPassword string `envconfig:"GEMBOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"GEMBOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"GEMBOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEMBOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GEMBOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GEMBOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEMBOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GEMBOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GEMBOT_REDIS_ADDR"`
	Password     string        `envconfig:"GEMBOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEMBOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEMBOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEMBOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEMBOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEMBOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEMBOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GEMBOT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GEMBOT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GEMBOT_JWT_EXPIRATION_MINUTES" default:"10080"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GEMBOT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GEMBOT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GEMBOT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GEMBOT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GEMBOT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"GEMBOT_AUTH_RATE_LIMIT_OTP_WINDOW" default:"1m"`
	OTPEmailLimit int           `envconfig:"GEMBOT_AUTH_RATE_LIMIT_OTP_EMAIL_LIMIT" default:"3"`
	OTPIPLimit    int           `envconfig:"GEMBOT_AUTH_RATE_LIMIT_OTP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GEMBOT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GEMBOT_AUTO_MIGRATE" default:"false"`
}

// CoinConnectConfig carries the env fallback credentials for the external
// wallet provider; the settings store takes precedence at runtime.
type CoinConnectConfig struct {
	Key             string        `envconfig:"GEMBOT_CCA_KEY"`
	Secret          string        `envconfig:"GEMBOT_CCA_SECRET"`
	BaseURL         string        `envconfig:"GEMBOT_CCA_BASE_URL" default:"https://api.coinconnect.tech"`
	AccountsBaseURL string        `envconfig:"GEMBOT_CCA_ACCOUNTS_BASE_URL" default:"https://cca.neuralaitraders.com"`
	CallTimeout     time.Duration `envconfig:"GEMBOT_CCA_CALL_TIMEOUT" default:"30s"`
	WithdrawTimeout time.Duration `envconfig:"GEMBOT_CCA_WITHDRAW_TIMEOUT" default:"60s"`
}

type SMTPConfig struct {
	Host     string `envconfig:"GEMBOT_SMTP_HOST"`
	Port     int    `envconfig:"GEMBOT_SMTP_PORT" default:"587"`
	Username string `envconfig:"GEMBOT_SMTP_USERNAME"`
	Password string `envconfig:"GEMBOT_SMTP_PASSWORD"`
	From     string `envconfig:"GEMBOT_SMTP_FROM"`
	FromName string `envconfig:"GEMBOT_SMTP_FROM_NAME" default:"GEM BOT"`
}

// Configured reports whether outbound mail can actually be sent.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.From != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GEMBOT_CRON_INTERVAL" default:"1h"`
}

// AdminSeedConfig bootstraps the first back-office account on an empty
// admins table. Leave unset to skip seeding.
type AdminSeedConfig struct {
	Email    string `envconfig:"GEMBOT_ADMIN_SEED_EMAIL"`
	Name     string `envconfig:"GEMBOT_ADMIN_SEED_NAME"`
	Password string `envconfig:"GEMBOT_ADMIN_SEED_PASSWORD"`
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
