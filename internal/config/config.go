package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	API      *APIConfig      `mapstructure:"api"`
	Gin      *GinConfig      `mapstructure:"gin"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
	Draw     *DrawConfig     `mapstructure:"draw"`
	Sweeper  *SweeperConfig  `mapstructure:"sweeper"`
	NATS     *NATSConfig     `mapstructure:"nats"`
}

type APIConfig struct {
	Environment        string `mapstructure:"environment"`
	BaseURL            string `mapstructure:"base_url"`
	Port               string `mapstructure:"port"`
	JWTSigningKey      string `mapstructure:"jwt_signing_key"`
	AllowedCORSDomains string `mapstructure:"allowed_cors_domains"`
}

type GinConfig struct {
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DB       string `mapstructure:"db"`
}

type DrawConfig struct {
	// CountdownSeconds is how long a filled room counts down before the
	// winner is drawn.
	CountdownSeconds int `mapstructure:"countdown_seconds"`
	// OpenTTLMinutes is how long an OPEN draw may sit before the sweeper
	// expires it and refunds its participants. Zero disables expiry.
	OpenTTLMinutes int `mapstructure:"open_ttl_minutes"`
	// StartingDemoCredits is granted to every new signup's DEMO wallet.
	StartingDemoCredits int64 `mapstructure:"starting_demo_credits"`
}

type SweeperConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// IntervalSeconds is the sweep cadence; the sweeper is the authoritative
	// finalize trigger, in-process timers are best effort only.
	IntervalSeconds int   `mapstructure:"interval_seconds"`
	BotCount        int   `mapstructure:"bot_count"`
	BotTopUpBelow   int64 `mapstructure:"bot_top_up_below"`
	BotTopUpAmount  int64 `mapstructure:"bot_top_up_amount"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads the yaml config at path. Every key can be overridden from the
// environment, e.g. DRAWROOM_POSTGRES_PASSWORD.
func Load(path string) (*AppConfig, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("DRAWROOM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("viper.ReadInConfig -> %w", err)
	}

	conf := &AppConfig{}
	if err := viper.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("viper.Unmarshal -> %w", err)
	}

	if conf.Draw == nil {
		conf.Draw = &DrawConfig{}
	}
	if conf.Draw.CountdownSeconds <= 0 {
		conf.Draw.CountdownSeconds = 30
	}
	if conf.Sweeper == nil {
		conf.Sweeper = &SweeperConfig{Enabled: true}
	}
	if conf.Sweeper.IntervalSeconds <= 0 {
		conf.Sweeper.IntervalSeconds = 60
	}

	return conf, nil
}
