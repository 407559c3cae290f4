// Package config loads the strategy configuration from config.json and
// the gateway connection parameters from the environment. Both are read
// once at startup and immutable afterwards.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	DefaultLookbackDays = 100

	defaultBaseURL  = "https://paper-api.alpaca.markets"
	defaultClientID = 1
)

type Config struct {
	Ticker               string `json:"ticker" validate:"required"`
	Exchange             string `json:"exchange" validate:"required"`
	Currency             string `json:"currency" validate:"required,len=3"`
	FastPeriod           int    `json:"ma_fast_period" validate:"required,gt=0,ltfield=SlowPeriod"`
	SlowPeriod           int    `json:"ma_slow_period" validate:"required,gt=0"`
	PositionSize         int    `json:"position_size" validate:"required,gt=0"`
	CheckIntervalSeconds int    `json:"check_interval_seconds" validate:"required,gt=0"`
	LookbackDays         int    `json:"lookback_days" validate:"omitempty,gt=0"`

	Conn Connection `json:"-" validate:"-"`
}

// Connection parameterizes the gateway only; it never reaches the
// strategy core.
type Connection struct {
	BaseURL   string
	APIKey    string
	APISecret string
	ClientID  int
}

func (c Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// Load reads and validates the config file, then resolves connection
// parameters from the environment. Any failure here aborts the run
// before a gateway connection is attempted.
func Load(path string) (Config, error) {
	loadDotEnvIfPresent(".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	if cfg.LookbackDays == 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	cfg.Conn = connectionFromEnv()
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func connectionFromEnv() Connection {
	conn := Connection{
		BaseURL:   defaultBaseURL,
		APIKey:    os.Getenv("APCA_API_KEY_ID"),
		APISecret: os.Getenv("APCA_API_SECRET_KEY"),
		ClientID:  defaultClientID,
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		conn.BaseURL = v
	}
	if v := os.Getenv("CLIENT_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			conn.ClientID = id
		}
	}
	return conn
}

func loadDotEnvIfPresent(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Existing environment wins over .env values.
	_ = godotenv.Load(path)
}
