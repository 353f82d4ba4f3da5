// Package config holds the tunables of the optimizer. Values come from, in
// increasing precedence, the defaults below, a config file, GODBOPT_*
// environment variables and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GODBOPT"

type Config struct {
	Memo      MemoConfig      `mapstructure:"memo"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
}

type MemoConfig struct {
	// MaxGroupExpressions bounds the number of group expressions a memo may
	// hold. 0 means unbounded.
	MaxGroupExpressions int `mapstructure:"max_group_expressions"`
}

type CatalogConfig struct {
	// LockTimeout is how long WriteLockOrError waits for a database write lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type OptimizerConfig struct {
	// MaxIterations bounds the number of rule-application passes over the memo.
	MaxIterations int `mapstructure:"max_iterations"`
}

func Default() Config {
	return Config{
		Memo:      MemoConfig{MaxGroupExpressions: 10000},
		Catalog:   CatalogConfig{LockTimeout: 100 * time.Millisecond},
		Optimizer: OptimizerConfig{MaxIterations: 64},
	}
}

type setting struct {
	key   string
	flag  string
	usage string
}

var settings = []setting{
	{"memo.max_group_expressions", "memo-max-group-expressions", "maximum number of group expressions per memo (0 = unbounded)"},
	{"catalog.lock_timeout", "catalog-lock-timeout", "how long to wait for a database write lock"},
	{"optimizer.max_iterations", "optimizer-max-iterations", "maximum number of rule application passes"},
}

// RegisterFlags adds the optimizer flags to fs, with the defaults as their
// default values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int(settings[0].flag, d.Memo.MaxGroupExpressions, settings[0].usage)
	fs.Duration(settings[1].flag, d.Catalog.LockTimeout, settings[1].usage)
	fs.Int(settings[2].flag, d.Optimizer.MaxIterations, settings[2].usage)
}

// Load resolves the configuration from v. If fs is not nil, flags registered
// with RegisterFlags that were set on the command line take precedence. A
// config file is read only if one was set on v.
func Load(v *viper.Viper, fs *pflag.FlagSet) (Config, error) {
	d := Default()
	v.SetDefault("memo.max_group_expressions", d.Memo.MaxGroupExpressions)
	v.SetDefault("catalog.lock_timeout", d.Catalog.LockTimeout)
	v.SetDefault("optimizer.max_iterations", d.Optimizer.MaxIterations)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, s := range settings {
		if err := v.BindEnv(s.key); err != nil {
			return Config{}, errors.Wrapf(err, "binding env for %s", s.key)
		}
		if fs == nil {
			continue
		}
		if f := fs.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return Config{}, errors.Wrapf(err, "binding flag %s", s.flag)
			}
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "reading optimizer config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding optimizer config")
	}
	if cfg.Memo.MaxGroupExpressions < 0 || cfg.Optimizer.MaxIterations <= 0 || cfg.Catalog.LockTimeout < 0 {
		return Config{}, errors.Newf("invalid optimizer config %+v", cfg)
	}
	return cfg, nil
}
