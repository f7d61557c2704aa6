package config

import (
	"fmt"
	"strings"

	"github.com/Netflix/go-env"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	RateLimitBackendStore = "store"
	RateLimitBackendRedis = "redis"
)

type Config struct {
	Port      int    `env:"PORT,default=3000"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	DBDriver  string `env:"DB_DRIVER,default=sqlite"`
	DBPath    string `env:"DB_PATH,default=data.sqlite"`
	DBDSN     string `env:"DATABASE_DSN"`
	RedisURL  string `env:"REDIS_URL"`
	PublicDir string `env:"PUBLIC_DIR,default=public"`
	AssetsDir string `env:"ASSETS_DIR,default=assets/zips"`

	WidgetsPath string `env:"WIDGETS_PATH,default=config/widgets.json"`

	KitAPIKey         string `env:"KIT_API_KEY"`
	KitFormID         string `env:"KIT_FORM_ID"`
	KitTagID          string `env:"KIT_TAG_ID"`
	KitTokenField     string `env:"KIT_CUSTOM_TOKEN_FIELD,default=widget_claim_token"`
	KitWidgetField    string `env:"KIT_CUSTOM_WIDGET_FIELD,default=widget_id"`
	KitAPIBaseURL     string `env:"KIT_API_BASE_URL,default=https://api.convertkit.com/v3"`
	KitTimeoutSeconds int    `env:"KIT_TIMEOUT_SECONDS,default=0"`

	DownloadBaseURL      string `env:"DOWNLOAD_BASE_URL"`
	DownloadS3Bucket     string `env:"DOWNLOAD_S3_BUCKET"`
	DownloadS3Prefix     string `env:"DOWNLOAD_S3_PREFIX"`
	DownloadS3Region     string `env:"DOWNLOAD_S3_REGION,default=us-east-1"`
	DownloadS3TTLSeconds int    `env:"DOWNLOAD_S3_URL_TTL_SECONDS,default=300"`

	SupportEmail string `env:"SUPPORT_EMAIL,default=support@senergygroup.com"`
	GuideURL     string `env:"GUIDE_URL,default=https://example.com/guide.pdf"`
	BrandName    string `env:"BRAND_NAME,default=SenergyGroup LLC"`
	ShopURL      string `env:"SHOP_URL,default=https://www.etsy.com/shop/SenergyGroup"`
	IPSalt       string `env:"IP_SALT,default=senergygroup"`
	ProxyHeader  string `env:"PROXY_HEADER"`

	RateLimitBackend       string `env:"RATE_LIMIT_BACKEND,default=store"`
	RateLimitMax           int    `env:"RATE_LIMIT_MAX,default=5"`
	RateLimitWindowMinutes int    `env:"RATE_LIMIT_WINDOW_MINUTES,default=60"`

	MetricsEnabled bool `env:"METRICS_ENABLED,default=true"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	c.KitAPIBaseURL = strings.TrimRight(strings.TrimSpace(c.KitAPIBaseURL), "/")
	c.DownloadBaseURL = strings.TrimRight(strings.TrimSpace(c.DownloadBaseURL), "/")
}

// Validate checks options that are only required on some code paths.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.RateLimitBackend {
	case RateLimitBackendStore:
	case RateLimitBackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// GatewayConfigured reports whether subscription calls will reach the provider.
func (c *Config) GatewayConfigured() bool {
	return strings.TrimSpace(c.KitAPIKey) != "" && strings.TrimSpace(c.KitFormID) != ""
}
