package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
// Constructed once at startup and injected into every component; there is no
// process-wide config singleton.
type Config struct {
	RPCURL    string
	ProgramID string
	PGDSN     string

	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	JournalPath    string
	JournalEnabled bool

	PendingMaxAge time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESCROW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "https://api.devnet.solana.com")
	v.SetDefault("program-id", "HZ8paEkYZ2hKBwHoVk23doSLEad9K5duASRTGaYogmfg")
	v.SetDefault("confirm-timeout", 60*time.Second)
	v.SetDefault("poll-interval", 500*time.Millisecond)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("journal", "./data/reconcile.jsonl")
	v.SetDefault("journal-enabled", true)
	v.SetDefault("pending-max-age", 24*time.Hour)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		ProgramID:      v.GetString("program-id"),
		PGDSN:          v.GetString("pg-dsn"),
		ConfirmTimeout: v.GetDuration("confirm-timeout"),
		PollInterval:   v.GetDuration("poll-interval"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		JournalPath:    v.GetString("journal"),
		JournalEnabled: v.GetBool("journal-enabled"),
		PendingMaxAge:  v.GetDuration("pending-max-age"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
