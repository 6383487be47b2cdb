// Package config loads server and client settings from the environment.
//
// Values come from OHHELL_* variables, optionally seeded from a .env file,
// and are validated before use. Command-line flags override them.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	EnvPlayers         = "OHHELL_PLAYERS"
	EnvBidding         = "OHHELL_BIDDING"
	EnvPassword        = "OHHELL_PASSWORD"
	EnvManualApproval  = "OHHELL_MANUAL_APPROVAL"
	EnvAddr            = "OHHELL_ADDR"
	EnvHTTPAddr        = "OHHELL_HTTP_ADDR"
	EnvNATSURL         = "OHHELL_NATS_URL"
	EnvLivenessTimeout = "OHHELL_LIVENESS_TIMEOUT"
	EnvLogLevel        = "OHHELL_LOG_LEVEL"
)

type Config struct {
	Players         int           `validate:"min=2,max=6"`
	Bidding         string        `validate:"oneof=classic random"`
	Password        string        `validate:"omitempty,len=16,hexadecimal"`
	ManualApproval  bool
	Addr            string        `validate:"required"`
	HTTPAddr        string
	NATSURL         string        `validate:"omitempty,url"`
	LivenessTimeout time.Duration `validate:"min=100ms"`
	LogLevel        string        `validate:"oneof=trace debug info warn error"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Players:         4,
		Bidding:         "classic",
		Addr:            ":5050",
		HTTPAddr:        ":8080",
		LivenessTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "validate config failed")
	}
	return nil
}

// Load reads the environment on top of the defaults. Missing env files are
// ignored unless named explicitly.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrap(err, "load .env failed")
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, errors.Wrap(err, "load env files failed")
	}

	c := Default()
	var err error
	if c.Players, err = envInt(EnvPlayers, c.Players); err != nil {
		return Config{}, err
	}
	if c.ManualApproval, err = envBool(EnvManualApproval, c.ManualApproval); err != nil {
		return Config{}, err
	}
	if c.LivenessTimeout, err = envDuration(EnvLivenessTimeout, c.LivenessTimeout); err != nil {
		return Config{}, err
	}
	c.Bidding = strings.ToLower(envString(EnvBidding, c.Bidding))
	c.Password = envString(EnvPassword, c.Password)
	c.Addr = envString(EnvAddr, c.Addr)
	c.HTTPAddr = envString(EnvHTTPAddr, c.HTTPAddr)
	c.NATSURL = envString(EnvNATSURL, c.NATSURL)
	c.LogLevel = strings.ToLower(envString(EnvLogLevel, c.LogLevel))
	return c, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s failed", key)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, errors.Wrapf(err, "parse %s failed", key)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s failed", key)
	}
	return d, nil
}
