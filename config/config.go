package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/f3rmion/frosttap/chain"
	"github.com/f3rmion/frosttap/logging"
	"github.com/f3rmion/frosttap/session"
	"github.com/f3rmion/frosttap/taproot"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override, e.g. FROSTTAP_RPC_HOST.
const EnvPrefix = "FROSTTAP"

// Config is the full runtime configuration.
type Config struct {
	Network  string         `mapstructure:"network"`
	Fee      int64          `mapstructure:"fee"`
	RPC      RPC            `mapstructure:"rpc"`
	Ceremony Ceremony       `mapstructure:"ceremony"`
	Logging  logging.Config `mapstructure:"logging"`
}

// RPC locates the Bitcoin node.
type RPC struct {
	Host       string `mapstructure:"host"`
	User       string `mapstructure:"user"`
	Pass       string `mapstructure:"pass"`
	DisableTLS bool   `mapstructure:"disable_tls"`
}

// Ceremony tunes signing rounds.
type Ceremony struct {
	RoundTimeout    time.Duration `mapstructure:"round_timeout"`
	StrictDeadlines bool          `mapstructure:"strict_deadlines"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"network":          "network",
	"fee":              "fee",
	"rpc-host":         "rpc.host",
	"rpc-user":         "rpc.user",
	"rpc-pass":         "rpc.pass",
	"rpc-disable-tls":  "rpc.disable_tls",
	"round-timeout":    "ceremony.round_timeout",
	"strict-deadlines": "ceremony.strict_deadlines",
	"log-level":        "logging.level",
	"log-file":         "logging.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "testnet")
	v.SetDefault("fee", int64(taproot.DefaultFee))
	v.SetDefault("rpc.host", "localhost:18332")
	v.SetDefault("rpc.user", "")
	v.SetDefault("rpc.pass", "")
	v.SetDefault("rpc.disable_tls", true)
	v.SetDefault("ceremony.round_timeout", session.DefaultRoundTimeout)
	v.SetDefault("ceremony.strict_deadlines", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Load merges, in increasing priority: defaults, the YAML/TOML/JSON file at
// path (if path is not empty), FROSTTAP_* environment variables and the
// flags in fs that were set explicitly. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if _, err := taproot.NetworkParams(c.Network); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Fee < 0 {
		return errors.New("config: fee must not be negative")
	}
	if c.Ceremony.RoundTimeout <= 0 {
		return errors.New("config: ceremony.round_timeout must be positive")
	}
	return nil
}

// Params returns the chain parameters of the configured network.
func (c *Config) Params() *chaincfg.Params {
	p, err := taproot.NetworkParams(c.Network)
	if err != nil {
		return &chaincfg.TestNet3Params
	}
	return p
}

// FeeAmount returns the configured fee.
func (c *Config) FeeAmount() btcutil.Amount { return btcutil.Amount(c.Fee) }

// ChainRPC returns the node connection settings.
func (c *Config) ChainRPC() chain.RPCConfig {
	return chain.RPCConfig{
		Host:       c.RPC.Host,
		User:       c.RPC.User,
		Pass:       c.RPC.Pass,
		DisableTLS: c.RPC.DisableTLS,
	}
}

// Session returns coordinator settings that log to log.
func (c *Config) Session(log *zap.Logger) session.Config {
	return session.Config{
		RoundTimeout:    c.Ceremony.RoundTimeout,
		StrictDeadlines: c.Ceremony.StrictDeadlines,
		Logger:          log,
	}
}
