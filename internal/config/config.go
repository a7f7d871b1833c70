package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	MetricsPort         string `mapstructure:"metrics_port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	Development         bool   `mapstructure:"development"`
}

type MongoCfg struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers     []string `mapstructure:"brokers"`
	PushTopic   string   `mapstructure:"push_topic"`
	StatusTopic string   `mapstructure:"status_topic"`
	GroupID     string   `mapstructure:"group_id"`
}

type JWTCfg struct {
	AccessSecret     string `mapstructure:"access_secret"`
	RefreshSecret    string `mapstructure:"refresh_secret"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
	RefreshTTLDays   int    `mapstructure:"refresh_ttl_days"`
}

type S3Cfg struct {
	Region string `mapstructure:"region"`
	Bucket string `mapstructure:"bucket"`
}

type ChatCfg struct {
	PageSize             int `mapstructure:"page_size"`
	PreviewRunes         int `mapstructure:"preview_runes"`
	SummaryScan          int `mapstructure:"summary_scan"`
	RateLimitPerSec      int `mapstructure:"rate_limit_per_sec"`
	NotificationTTLHours int `mapstructure:"notification_ttl_hours"`
	SummaryCacheSeconds  int `mapstructure:"summary_cache_seconds"`
}

type Config struct {
	Server ServerCfg `mapstructure:"server"`
	Mongo  MongoCfg  `mapstructure:"mongo"`
	Redis  RedisCfg  `mapstructure:"redis"`
	Kafka  KafkaCfg  `mapstructure:"kafka"`
	JWT    JWTCfg    `mapstructure:"jwt"`
	S3     S3Cfg     `mapstructure:"s3"`
	Chat   ChatCfg   `mapstructure:"chat"`
	// Derived
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = "9090"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	if cfg.JWT.AccessTTLMinutes == 0 {
		cfg.JWT.AccessTTLMinutes = 15
	}
	if cfg.JWT.RefreshTTLDays == 0 {
		cfg.JWT.RefreshTTLDays = 7
	}
	if cfg.Chat.PageSize == 0 {
		cfg.Chat.PageSize = 20
	}
	if cfg.Chat.PreviewRunes == 0 {
		cfg.Chat.PreviewRunes = 50
	}
	if cfg.Chat.SummaryScan == 0 {
		cfg.Chat.SummaryScan = 200
	}
	if cfg.Chat.RateLimitPerSec == 0 {
		cfg.Chat.RateLimitPerSec = 20
	}
	if cfg.Chat.NotificationTTLHours == 0 {
		cfg.Chat.NotificationTTLHours = 24 * 30
	}
	if cfg.Chat.SummaryCacheSeconds == 0 {
		cfg.Chat.SummaryCacheSeconds = 60
	}
	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	return &cfg, nil
}
