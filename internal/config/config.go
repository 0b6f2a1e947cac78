package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port string
	// BaseURL is the public origin short links are built from,
	// e.g. https://qkpth.io (no trailing slash).
	BaseURL string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

// StorageConfig points at the S3-compatible bucket QR images are uploaded to.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL is the origin uploaded objects are served from.
	// Empty means objects are served straight off the endpoint.
	PublicBaseURL string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	cfg.Storage.Endpoint = viper.GetString("STORAGE_ENDPOINT")
	cfg.Storage.AccessKey = viper.GetString("STORAGE_ACCESS_KEY")
	cfg.Storage.SecretKey = viper.GetString("STORAGE_SECRET_KEY")
	cfg.Storage.Bucket = viper.GetString("STORAGE_BUCKET")
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "qr-codes"
	}
	cfg.Storage.UseSSL = viper.GetBool("STORAGE_USE_SSL")
	cfg.Storage.PublicBaseURL = viper.GetString("STORAGE_PUBLIC_URL")

	cfg.RateLimit.RequestsPerSecond = viper.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = viper.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize == 0 {
		cfg.RateLimit.BurstSize = 20
	}

	return &cfg, nil
}
