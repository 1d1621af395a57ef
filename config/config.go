package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "pairchat-secret-key-change-in-production"

type Config struct {
	Env        string `mapstructure:"APP_ENV"`
	ServerAddr string `mapstructure:"SERVER_ADDR"`
	Port       string `mapstructure:"PORT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	MysqlDSN    string `mapstructure:"MYSQL_DSN"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	// RequireFriendship gates message sends on an accepted friendship.
	RequireFriendship bool `mapstructure:"REQUIRE_FRIENDSHIP"`

	ImageStore    string `mapstructure:"IMAGE_STORE"`
	UploadDir     string `mapstructure:"UPLOAD_DIR"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`
	S3Bucket      string `mapstructure:"S3_BUCKET"`
	S3Region      string `mapstructure:"S3_REGION"`
	S3Endpoint    string `mapstructure:"S3_ENDPOINT"`
	S3PublicURL   string `mapstructure:"S3_PUBLIC_URL"`

	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"APP_ENV":               "development",
	"PORT":                  "8080",
	"SERVER_ADDR":           "",
	"STORE_DRIVER":          "mysql",
	"MYSQL_DSN":             "root:root@tcp(localhost:3306)/pairchat?charset=utf8mb4&parseTime=True&loc=UTC",
	"JWT_SECRET":            defaultJWTSecret,
	"TOKEN_TTL":             "168h",
	"REQUIRE_FRIENDSHIP":    true,
	"IMAGE_STORE":           "local",
	"UPLOAD_DIR":            "./uploads",
	"PUBLIC_BASE_URL":       "",
	"S3_BUCKET":             "",
	"S3_REGION":             "us-east-1",
	"S3_ENDPOINT":           "",
	"S3_PUBLIC_URL":         "",
	"REDIS_ADDR":            "",
	"REDIS_PASSWORD":        "",
	"RATE_LIMIT_PER_MINUTE": 120,
	"CORS_ALLOWED_ORIGINS":  "http://localhost:5173,http://localhost:3000",
}

// Load reads an optional env file and the process environment. envFile may be
// empty, in which case only the environment and defaults are used.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", envFile, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = ":" + cfg.Port
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.ImageStore = strings.ToLower(strings.TrimSpace(cfg.ImageStore))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.ImageStore {
	case "local":
	case "s3":
		if strings.TrimSpace(c.S3Bucket) == "" {
			return errors.New("config: S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return fmt.Errorf("config: unknown IMAGE_STORE %q", c.ImageStore)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into trimmed entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
