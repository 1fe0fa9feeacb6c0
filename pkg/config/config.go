// Package config provides a reusable loader for the execution core's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"ledgerengine/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a host process embedding the
// core. It mirrors the YAML files under cmd/config.
type Config struct {
	Fees struct {
		DefaultMultiplier    uint64 `mapstructure:"default_multiplier" json:"default_multiplier"`
		PerByteStorageCredit uint64 `mapstructure:"per_byte_storage_credit" json:"per_byte_storage_credit"`
	} `mapstructure:"fees" json:"fees"`

	Indices struct {
		MaxUnique                int `mapstructure:"max_unique" json:"max_unique"`
		MaxCompoundPropertyChars int `mapstructure:"max_compound_property_chars" json:"max_compound_property_chars"`
	} `mapstructure:"indices" json:"indices"`

	Backend struct {
		DataDir string `mapstructure:"data_dir" json:"data_dir"`
	} `mapstructure:"backend" json:"backend"`

	Worker struct {
		InboxCapacity int `mapstructure:"inbox_capacity" json:"inbox_capacity"`
	} `mapstructure:"worker" json:"worker"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// env selects an additional config file (e.g. "testnet") merged on top of
// the default. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // no env prefix is set, so overrides use unprefixed variable names

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CORE_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CORE_ENV", ""))
}
