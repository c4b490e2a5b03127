// Copyright (C) 2024-2025, Iron Fish. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/iron-fish/snapshotter/pkg/constants"
)

// Config wraps the viper-backed configuration. Precedence is flags over
// SNAPSHOTTER_* environment variables over the config file.
type Config struct{}

func New() *Config {
	viper.SetEnvPrefix(constants.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(constants.ConfigMaxBlocksPerChunkKey, constants.DefaultMaxBlocksPerChunk)
	viper.SetDefault(constants.ConfigNodeAddressKey, constants.DefaultNodeAddress)
	viper.SetDefault(constants.ConfigUploadBackendKey, constants.UploadBackendPut)

	return &Config{}
}

// BindFlags gives command flags the highest precedence for their keys.
func (*Config) BindFlags(flags *pflag.FlagSet) error {
	return viper.BindPFlags(flags)
}

func (*Config) GetConfigStringValue(key string) string {
	return viper.GetString(key)
}

func (*Config) GetConfigIntValue(key string) int {
	return viper.GetInt(key)
}

func (*Config) ConfigValueIsSet(key string) bool {
	return viper.IsSet(key)
}

func (*Config) ConfigFileExists() bool {
	return viper.ConfigFileUsed() != ""
}

func (*Config) SetConfigValue(key string, value interface{}) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// GetConfigPath returns the path to the configuration file
func (*Config) GetConfigPath() string {
	return viper.ConfigFileUsed()
}
