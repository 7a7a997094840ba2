package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Portal   PortalConfig   `yaml:"portal" mapstructure:"portal"`
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the session checkpoint database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PortalConfig holds trade portal access settings.
type PortalConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`
	Proxy         string `yaml:"proxy" mapstructure:"proxy"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	Headless      bool   `yaml:"headless" mapstructure:"headless"`
	SelectorsFile string `yaml:"selectors_file" mapstructure:"selectors_file"`
}

// TelegramConfig holds the captcha relay bot settings.
type TelegramConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	ChatID        string `yaml:"chat_id" mapstructure:"chat_id"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
}

// DownloadConfig configures where report files land and how they are named.
// FilePattern has two %s slots: sanitized reporter and sanitized partner.
type DownloadConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	FilePattern       string `yaml:"file_pattern" mapstructure:"file_pattern"`
	TariffFilePattern string `yaml:"tariff_file_pattern" mapstructure:"tariff_file_pattern"`
}

// ServerConfig configures the captcha answer webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ITC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("portal.url", "https://www.trademap.org/Product_SelCountry_TS.aspx")
	v.SetDefault("portal.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36")
	v.SetDefault("portal.headless", false)
	v.SetDefault("download.dir", ".")
	v.SetDefault("download.file_pattern", "Trade_Map_-_Bilateral_trade_between_%s_and_%s.txt")
	v.SetDefault("download.tariff_file_pattern", "Trade_Map_-_Bilateral_trade_between_%s_and_%s_(all_products).txt")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
