package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "medicura"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Gateway      GatewayConfig
	Frontend     FrontendConfig
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
	Env          string `envconfig:"MEDICURA_APP_ENV" required:"true"`
	Port         string `envconfig:"MEDICURA_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"MEDICURA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEDICURA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"MEDICURA_DB_DSN"`

	Host     string `envconfig:"MEDICURA_DB_HOST"`
	Port     int    `envconfig:"MEDICURA_DB_PORT" default:"5432"`
	User     string `envconfig:"MEDICURA_DB_USER"`
	Password string `envconfig:"MEDICURA_DB_PASSWORD"`
	Name     string `envconfig:"MEDICURA_DB_NAME"`
	SSLMode  string `envconfig:"MEDICURA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEDICURA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEDICURA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEDICURA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEDICURA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("database DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"MEDICURA_REDIS_URL"`
	Address      string        `envconfig:"MEDICURA_REDIS_ADDR"`
	Password     string        `envconfig:"MEDICURA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEDICURA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEDICURA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEDICURA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEDICURA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEDICURA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEDICURA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MEDICURA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MEDICURA_JWT_ISSUER" default:"medicura"`
	ExpirationMinutes int    `envconfig:"MEDICURA_JWT_EXPIRATION_MINUTES" default:"720"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEDICURA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEDICURA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEDICURA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEDICURA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEDICURA_ARGON_KEY_LEN" default:"32"`
}

// GatewayConfig holds the SSLCommerz-style payment gateway settings.
type GatewayConfig struct {
	StoreID        string        `envconfig:"MEDICURA_GATEWAY_STORE_ID"`
	StorePassword  string        `envconfig:"MEDICURA_GATEWAY_STORE_PASSWORD"`
	SessionURL     string        `envconfig:"MEDICURA_GATEWAY_SESSION_URL" default:"https://sandbox.sslcommerz.com/gwprocess/v3/api.php"`
	ValidationURL  string        `envconfig:"MEDICURA_GATEWAY_VALIDATION_URL" default:"https://sandbox.sslcommerz.com/validator/api/validationserverAPI.php"`
	CallbackBase   string        `envconfig:"MEDICURA_GATEWAY_CALLBACK_BASE" default:"http://localhost:5000"`
	RequestTimeout time.Duration `envconfig:"MEDICURA_GATEWAY_TIMEOUT" default:"15s"`
	CallbackTTL    time.Duration `envconfig:"MEDICURA_GATEWAY_CALLBACK_TTL" default:"24h"`
}

type FrontendConfig struct {
	BaseURL string `envconfig:"MEDICURA_FRONTEND_BASE_URL" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MEDICURA_AUTO_MIGRATE" default:"false"`
}
