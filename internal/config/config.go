// Package config provides Viper-based hierarchical configuration:
// defaults, then an optional yaml file, then environment variables with
// the AOTG prefix (e.g. AOTG_DATABASE_URL, AOTG_GEMINI_API_KEY).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Gemini struct {
		Model  string `mapstructure:"model"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"gemini"`

	Archive struct {
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"archive"`

	Analytics struct {
		Project string `mapstructure:"project"`
		Dataset string `mapstructure:"dataset"`
		Table   string `mapstructure:"table"`
	} `mapstructure:"analytics"`

	Notion struct {
		Token      string `mapstructure:"token"`
		DatabaseID string `mapstructure:"database_id"`
	} `mapstructure:"notion"`

	Auth struct {
		SessionTTLHours int `mapstructure:"session_ttl_hours"`
	} `mapstructure:"auth"`
}

// Load initializes the configuration hierarchy and unmarshals it.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.accounting-on-the-go")

	v.SetEnvPrefix("AOTG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.url", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("analytics.project", "")
	v.SetDefault("analytics.dataset", "finance")
	v.SetDefault("analytics.table", "transactions")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.database_id", "")
	v.SetDefault("auth.session_ttl_hours", 720)
}
