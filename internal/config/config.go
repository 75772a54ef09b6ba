package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`

	// SQLite is the default store; DATABASE_URL switches to Postgres.
	DBPath      string `envconfig:"DB_PATH" default:"./data/deadline.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// External deadline feed. Sync is disabled when FEED_URL is empty.
	FeedURL      string        `envconfig:"FEED_URL"`
	FeedInterval time.Duration `envconfig:"FEED_INTERVAL" default:"30m"`

	TickInterval time.Duration `envconfig:"TICK_INTERVAL" default:"20m"`
	DefaultTZ    string        `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	AdminIDs     []int64       `envconfig:"ADMIN_IDS"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr     string        `envconfig:"HTTP_ADDR" default:":8080"`
}

// Load reads environment variables into Config. A .env file in the working
// directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
