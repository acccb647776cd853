// Package config loads settings from file, environment and the settings table.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/modpack-installer/internal/catalog"
	"github.com/example/modpack-installer/internal/installer"
)

// EnvPrefix prefixes every environment override, e.g. MODPACKS_API_KEY.
const EnvPrefix = "MODPACKS"

type SSH struct {
	KeyPath string `mapstructure:"key_path"`
}

type Install struct {
	Backup                bool   `mapstructure:"backup"`
	ProfileEnabled        bool   `mapstructure:"profile_enabled"`
	InstallerProfile      string `mapstructure:"installer_profile"`
	RuntimeProfile        string `mapstructure:"runtime_profile"`
	OfflineTimeoutSeconds int    `mapstructure:"offline_timeout_seconds"`
}

// Config is the resolved application configuration.
type Config struct {
	APIKey                string  `mapstructure:"api_key"`
	CacheDurationSeconds  int     `mapstructure:"cache_duration_seconds"`
	RequestTimeoutSeconds int     `mapstructure:"request_timeout_seconds"`
	ResultsPerPage        int     `mapstructure:"results_per_page"`
	ListenAddr            string  `mapstructure:"listen_addr"`
	DBPath                string  `mapstructure:"db_path"`
	EncKey                string  `mapstructure:"enc_key"`
	LogLevel              string  `mapstructure:"log_level"`
	LogFormat             string  `mapstructure:"log_format"`
	SSH                   SSH     `mapstructure:"ssh"`
	Install               Install `mapstructure:"install"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("cache_duration_seconds", int(catalog.DefaultTTL/time.Second))
	v.SetDefault("request_timeout_seconds", 10)
	v.SetDefault("results_per_page", catalog.DefaultPerPage)
	v.SetDefault("listen_addr", ":5298")
	v.SetDefault("db_path", "./data/app.db")
	v.SetDefault("enc_key", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("ssh.key_path", "./ssh/id_ed25519")
	v.SetDefault("install.backup", true)
	v.SetDefault("install.profile_enabled", false)
	v.SetDefault("install.installer_profile", installer.DefaultInstallerProfile)
	v.SetDefault("install.runtime_profile", installer.DefaultRuntimeProfile)
	v.SetDefault("install.offline_timeout_seconds", 60)
}

// Load reads cfgFile when given, otherwise an optional config.{yaml,toml,json}
// in the working directory, then applies MODPACKS_* environment overrides.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.ResultsPerPage = catalog.ClampPerPage(c.ResultsPerPage)
	if c.CacheDurationSeconds < 0 {
		c.CacheDurationSeconds = 0
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = 10
	}
	if c.Install.OfflineTimeoutSeconds <= 0 {
		c.Install.OfflineTimeoutSeconds = 60
	}
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheDurationSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Timings returns the installer timings with the configured offline timeout.
func (c *Config) Timings() installer.Timings {
	t := installer.DefaultTimings()
	t.OfflineTimeout = time.Duration(c.Install.OfflineTimeoutSeconds) * time.Second
	return t
}
