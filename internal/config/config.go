// Package config loads emberdb's YAML configuration via viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for an emberdb process.
type Config struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir  string `mapstructure:"workdir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	Bufferpool struct {
		PoolSize  int `mapstructure:"pool_size"`
		ReplacerK int `mapstructure:"replacer_k"`
	} `mapstructure:"bufferpool"`

	Server struct {
		Port  int  `mapstructure:"port"`
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"server"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{AppName: "emberdb"}
	cfg.Storage.Workdir = "./data"
	cfg.Storage.PageSize = 4096
	cfg.Bufferpool.PoolSize = 128
	cfg.Bufferpool.ReplacerK = 2
	cfg.Server.Port = 5433
	return cfg
}

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
