package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solatis/mediafilter/internal/types"
)

// LoadConfig loads configuration from file using viper.
// Environment > config file > defaults precedence.
func LoadConfig(configPath string) (*FilterAPIConfig, error) {
	return LoadConfigWithFlags(configPath, nil)
}

// LoadConfigWithFlags is LoadConfig with CLI flags bound on top.
// Flags are matched by name: "port" binds filter_api.port, and so on.
// Only flags the user changed override lower layers.
func LoadConfigWithFlags(configPath string, flags *pflag.FlagSet) (*FilterAPIConfig, error) {
	v := viper.New()

	d := DefaultFilterAPIConfig()
	v.SetDefault("filter_api.host", d.Host)
	v.SetDefault("filter_api.port", d.Port)
	v.SetDefault("filter_api.max_connections", d.MaxConnections)
	v.SetDefault("filter_api.request_timeout", d.RequestTimeout.String())
	v.SetDefault("filter_api.max_sessions", d.MaxSessions)
	v.SetDefault("filter_api.max_media_page", d.MaxMediaPage)
	v.SetDefault("filter_api.data_dir", d.DataDir)
	v.SetDefault("filter_api.database_url", d.DatabaseURL)
	v.SetDefault("filter_api.nats_url", d.NATSURL)

	// MF_FILTER_API_PORT -> filter_api.port
	v.SetEnvPrefix("MF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for _, name := range []string{"host", "port", "max_connections", "request_timeout", "max_sessions", "max_media_page", "data_dir", "database_url", "nats_url"} {
			flag := flags.Lookup(strings.ReplaceAll(name, "_", "-"))
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag("filter_api."+name, flag); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", flag.Name, err)
			}
		}
	}

	cfg := &FilterAPIConfig{
		Host:           v.GetString("filter_api.host"),
		Port:           v.GetInt("filter_api.port"),
		MaxConnections: v.GetInt("filter_api.max_connections"),
		RequestTimeout: v.GetDuration("filter_api.request_timeout"),
		MaxSessions:    v.GetInt("filter_api.max_sessions"),
		MaxMediaPage:   v.GetInt("filter_api.max_media_page"),
		DataDir:        v.GetString("filter_api.data_dir"),
		DatabaseURL:    v.GetString("filter_api.database_url"),
		NATSURL:        v.GetString("filter_api.nats_url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *FilterAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions must be positive, got %d", cfg.MaxSessions)
	}
	if cfg.MaxMediaPage <= 0 || cfg.MaxMediaPage > types.MaxMediaPageSize {
		return fmt.Errorf("max_media_page must be between 1 and %d, got %d", types.MaxMediaPageSize, cfg.MaxMediaPage)
	}
	if cfg.DatabaseURL == "" && cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required when database_url is not set")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig looks at the file layer only, so MF_HMAC_SECRET in the
// environment does not trip it.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("filter_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use MF_HMAC_SECRET environment variable)")
	}
	return nil
}
