package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds all configuration values. Every key can be set through the
// environment variable of the same name in upper case.
type Config struct {
	AppPort    string `mapstructure:"tour_port"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     string `mapstructure:"db_port"`
	DBUser     string `mapstructure:"db_user"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name"`
	DBSSLMode  string `mapstructure:"db_sslmode"`

	MinioEndpoint  string        `mapstructure:"minio_endpoint"`
	MinioAccessKey string        `mapstructure:"minio_access_key"`
	MinioSecretKey string        `mapstructure:"minio_secret_key"`
	MinioBucket    string        `mapstructure:"minio_bucket"`
	MinioSSL       bool          `mapstructure:"minio_ssl"`
	MediaURLExpiry time.Duration `mapstructure:"media_url_expiry"`

	RedisHost string `mapstructure:"redis_host"`
	RedisPort string `mapstructure:"redis_port"`

	ExportCacheTTL      time.Duration `mapstructure:"export_cache_ttl"`
	ExportCacheMaxBytes int64         `mapstructure:"export_cache_max_bytes"`

	// Default radius in meters for nearby node lookups
	NearbyRadius float64 `mapstructure:"nearby_radius"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// LoadConfig loads configuration from the environment, and from the file
// named by TOUR_CONFIG when set.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("tour_port", "8080")
	v.SetDefault("db_host", "")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "")
	v.SetDefault("minio_ssl", false)
	v.SetDefault("media_url_expiry", "1h")
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("export_cache_ttl", "10m")
	v.SetDefault("export_cache_max_bytes", 64<<20)
	v.SetDefault("nearby_radius", 30.0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if path := os.Getenv("TOUR_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required and all-or-nothing settings.
func (c *Config) Validate() error {
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	set := 0
	for _, s := range []string{c.MinioEndpoint, c.MinioAccessKey, c.MinioSecretKey, c.MinioBucket} {
		if s != "" {
			set++
		}
	}
	if set != 0 && set != 4 {
		return fmt.Errorf("minio configuration is incomplete")
	}
	if c.NearbyRadius <= 0 {
		return fmt.Errorf("invalid NEARBY_RADIUS value: %v", c.NearbyRadius)
	}
	return nil
}

// MinioEnabled reports whether media storage is configured.
func (c *Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

// RedisEnabled reports whether the shared export cache layer is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// ConnectDatabase initializes a GORM database connection to PostgreSQL.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}
