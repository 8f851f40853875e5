package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8000" validate:"min=1000,max=65535"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT"  envDefault:"true"`
	InstanceID     string `env:"INSTANCE_ID"`

	WsWriteTimeout       time.Duration `env:"WS_WRITE_TIMEOUT"      envDefault:"10s"   validate:"gt=0"`
	WsPingPeriod         time.Duration `env:"WS_PING_PERIOD"        envDefault:"30s"   validate:"min=0"`
	WsReadLimit          int64         `env:"WS_READ_LIMIT"         envDefault:"32768" validate:"min=1"`
	BroadcastParallelism int           `env:"BROADCAST_PARALLELISM" envDefault:"32"    validate:"min=1"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379"           validate:"min=1000,max=65535"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"chat:broadcast" validate:"required"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chat_db"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}

	// Instances need a stable name in the session log; fall back to a random one.
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return cfg, nil
}
