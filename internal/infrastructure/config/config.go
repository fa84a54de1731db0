package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/99minutos/credential-service/internal/core/domain"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

type Config struct {
	Port            string        `env:"PORT,             default=3000"        validate:"required,numeric"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	BcryptCost      int           `env:"BCRYPT_COST,      default=10"          validate:"min=4,max=31"`
	ConflictPolicy  string        `env:"CONFLICT_POLICY,  default=reject"      validate:"oneof=reject legacy"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Password PasswordConfig
	Store    StoreConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

// PasswordConfig maps onto domain.PasswordPolicy. A zero character-class
// minimum disables that rule; lowercase and uppercase are off by default.
type PasswordConfig struct {
	MinLength    int `env:"PASSWORD_MIN_LENGTH,    default=5"  validate:"min=1"`
	MaxLength    int `env:"PASSWORD_MAX_LENGTH,    default=24" validate:"gtefield=MinLength"`
	MinLowercase int `env:"PASSWORD_MIN_LOWERCASE, default=0"  validate:"min=0"`
	MinUppercase int `env:"PASSWORD_MIN_UPPERCASE, default=0"  validate:"min=0"`
	MinSpecial   int `env:"PASSWORD_MIN_SPECIAL,   default=1"  validate:"min=0"`
}

type StoreConfig struct {
	Backend string `env:"STORE_BACKEND, default=memory" validate:"oneof=memory mongo redis"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=credentials"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main: it panics on error.
func MustLoad(ctx context.Context) *Config {
	cfg, err := Load(ctx)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) IsDevelopment() bool { return c.Env == "development" }

func (c *Config) Addr() string { return ":" + c.Port }

func (c *Config) PasswordPolicy() domain.PasswordPolicy {
	return domain.PasswordPolicy{
		MinLength:    c.Password.MinLength,
		MaxLength:    c.Password.MaxLength,
		MinLowercase: c.Password.MinLowercase,
		MinUppercase: c.Password.MinUppercase,
		MinSpecial:   c.Password.MinSpecial,
	}
}

func (c *Config) Conflicts() domain.ConflictPolicy {
	return domain.ConflictPolicy(c.ConflictPolicy)
}
