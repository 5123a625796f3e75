package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. STAGETRACK_ADDR.
const EnvPrefix = "STAGETRACK"

// Config holds application configuration.
type Config struct {
	Addr               string // STAGETRACK_ADDR, default ":8080"
	DBPath             string // STAGETRACK_DB, default "stagetrack.db"
	AuthToken          string // STAGETRACK_AUTH_TOKEN, optional
	ErrorSample        int    // STAGETRACK_ERROR_SAMPLE, default 10
	CancelledRetention int    // STAGETRACK_CANCELLED_RETENTION, default 5
	Seed               bool   // STAGETRACK_SEED, default false
}

// Keys understood by FromViper. Cobra flags bind to the same names.
const (
	KeyAddr               = "addr"
	KeyDB                 = "db"
	KeyAuthToken          = "auth_token"
	KeyErrorSample        = "error_sample"
	KeyCancelledRetention = "cancelled_retention"
	KeySeed               = "seed"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyDB, "stagetrack.db")
	v.SetDefault(KeyAuthToken, "")
	v.SetDefault(KeyErrorSample, 10)
	v.SetDefault(KeyCancelledRetention, 5)
	v.SetDefault(KeySeed, false)
}

// NewViper returns a viper instance with defaults set and the environment
// bound under EnvPrefix.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper reads a Config out of v. Non-positive counts fall back to their
// defaults; a retention of 0 is allowed and disables the cancelled window.
func FromViper(v *viper.Viper) Config {
	cfg := Config{
		Addr:               v.GetString(KeyAddr),
		DBPath:             v.GetString(KeyDB),
		AuthToken:          v.GetString(KeyAuthToken),
		ErrorSample:        v.GetInt(KeyErrorSample),
		CancelledRetention: v.GetInt(KeyCancelledRetention),
		Seed:               v.GetBool(KeySeed),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "stagetrack.db"
	}
	if cfg.ErrorSample <= 0 {
		cfg.ErrorSample = 10
	}
	if cfg.CancelledRetention < 0 {
		cfg.CancelledRetention = 5
	}
	return cfg
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return FromViper(NewViper())
}
