// Package config loads the poolmirror configuration from a YAML file,
// POOLMIRROR_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/defistate/defistate-mirror-go/chains"
	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "POOLMIRROR"

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the validated configuration of the binary.
type Config struct {
	Chains  []Chain
	Refresh Refresh
	Metrics Metrics
	Log     Log
	// Shards is the shard count of every pool store. Zero uses the default.
	Shards int
}

// Chain is one chain to mirror.
type Chain struct {
	ChainID uint64
	WSURL   string
	HTTPURL string
	// V4 is zero when the chain has no V4 deployment configured.
	V4      chains.V4Deployment
	V2Pools []common.Address
	V3Pools []common.Address
	V4Pools []uniswapv4.PoolKey
}

// Refresh tunes the refresh worker.
type Refresh struct {
	Interval   time.Duration
	BatchSize  int
	WordRadius int
}

// Metrics configures the prometheus endpoint.
type Metrics struct {
	Addr string
}

// Log configures the root logger.
type Log struct {
	Level slog.Level
}

type chainEntry struct {
	ChainID       uint64         `mapstructure:"chain_id"`
	WSURL         string         `mapstructure:"ws_url"`
	HTTPURL       string         `mapstructure:"http_url"`
	V4PoolManager string         `mapstructure:"v4_pool_manager"`
	V4StateView   string         `mapstructure:"v4_state_view"`
	Addresses     addressesEntry `mapstructure:"addresses"`
}

type addressesEntry struct {
	V2 []string       `mapstructure:"v2"`
	V3 []string       `mapstructure:"v3"`
	V4 []poolKeyEntry `mapstructure:"v4"`
}

type poolKeyEntry struct {
	Currency0   string `mapstructure:"currency0"`
	Currency1   string `mapstructure:"currency1"`
	Fee         uint32 `mapstructure:"fee"`
	TickSpacing int32  `mapstructure:"tick_spacing"`
	Hooks       string `mapstructure:"hooks"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"metrics-addr":       "metrics.addr",
	"log-level":          "log.level",
	"refresh-interval":   "refresh.interval",
	"refresh-batch-size": "refresh.batch_size",
}

// Load merges config file, environment variables, and flags into Config.
// Flags that were not set on the command line do not override the file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("refresh.interval", 2*time.Second)
	v.SetDefault("refresh.batch_size", 32)
	v.SetDefault("refresh.word_radius", 2)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("shards", 0)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
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

	var entries []chainEntry
	if err := v.UnmarshalKey("chains", &entries); err != nil {
		return Config{}, fmt.Errorf("decode chains: %w", err)
	}

	cfg := Config{
		Refresh: Refresh{
			Interval:   v.GetDuration("refresh.interval"),
			BatchSize:  v.GetInt("refresh.batch_size"),
			WordRadius: v.GetInt("refresh.word_radius"),
		},
		Metrics: Metrics{Addr: v.GetString("metrics.addr")},
		Shards:  v.GetInt("shards"),
	}
	if err := cfg.Log.Level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	seen := make(map[uint64]bool, len(entries))
	for i, e := range entries {
		c, err := e.parse()
		if err != nil {
			return Config{}, fmt.Errorf("%w: chains[%d]: %w", ErrInvalidConfig, i, err)
		}
		if seen[c.ChainID] {
			return Config{}, fmt.Errorf("%w: chains[%d]: duplicate chain_id %d", ErrInvalidConfig, i, c.ChainID)
		}
		seen[c.ChainID] = true
		cfg.Chains = append(cfg.Chains, c)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("%w: at least one chain is required", ErrInvalidConfig)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("%w: refresh.interval must be positive", ErrInvalidConfig)
	}
	if c.Refresh.BatchSize <= 0 {
		return fmt.Errorf("%w: refresh.batch_size must be positive", ErrInvalidConfig)
	}
	if c.Refresh.WordRadius < 0 {
		return fmt.Errorf("%w: refresh.word_radius must not be negative", ErrInvalidConfig)
	}
	if c.Shards < 0 {
		return fmt.Errorf("%w: shards must not be negative", ErrInvalidConfig)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required", ErrInvalidConfig)
	}
	return nil
}

func (e chainEntry) parse() (Chain, error) {
	c := Chain{ChainID: e.ChainID, WSURL: e.WSURL, HTTPURL: e.HTTPURL}
	if c.ChainID == 0 {
		return c, errors.New("chain_id is required")
	}
	if c.WSURL == "" {
		return c, errors.New("ws_url is required")
	}
	if c.HTTPURL == "" {
		return c, errors.New("http_url is required")
	}

	c.V4, _ = chains.DefaultV4Deployment(c.ChainID)
	if e.V4PoolManager != "" {
		a, err := parseAddress("v4_pool_manager", e.V4PoolManager)
		if err != nil {
			return c, err
		}
		c.V4.PoolManager = a
	}
	if e.V4StateView != "" {
		a, err := parseAddress("v4_state_view", e.V4StateView)
		if err != nil {
			return c, err
		}
		c.V4.StateView = a
	}

	var err error
	if c.V2Pools, err = parseAddresses("addresses.v2", e.Addresses.V2); err != nil {
		return c, err
	}
	if c.V3Pools, err = parseAddresses("addresses.v3", e.Addresses.V3); err != nil {
		return c, err
	}
	for i, k := range e.Addresses.V4 {
		key, err := k.parse()
		if err != nil {
			return c, fmt.Errorf("addresses.v4[%d]: %w", i, err)
		}
		c.V4Pools = append(c.V4Pools, key)
	}
	if len(c.V4Pools) > 0 && c.V4.PoolManager == (common.Address{}) {
		return c, errors.New("v4 pools configured without v4_pool_manager")
	}
	return c, nil
}

func (k poolKeyEntry) parse() (uniswapv4.PoolKey, error) {
	var key uniswapv4.PoolKey
	var err error
	if key.Currency0, err = parseAddress("currency0", k.Currency0); err != nil {
		return key, err
	}
	if key.Currency1, err = parseAddress("currency1", k.Currency1); err != nil {
		return key, err
	}
	if k.Hooks != "" {
		if key.Hooks, err = parseAddress("hooks", k.Hooks); err != nil {
			return key, err
		}
	}
	if k.Fee >= protocols.FeeDenominator {
		return key, fmt.Errorf("fee %d out of range", k.Fee)
	}
	if k.TickSpacing <= 0 {
		return key, fmt.Errorf("tick_spacing %d must be positive", k.TickSpacing)
	}
	key.Fee = k.Fee
	key.TickSpacing = k.TickSpacing
	return key, nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(field string, items []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(items))
	for i, s := range items {
		a, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
