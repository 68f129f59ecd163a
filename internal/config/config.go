package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	defaultPort          = "8080"
	defaultAllowOrigins  = "http://localhost:3000"
	defaultUserAgent     = "PostmanRuntime/7.50.0"
	defaultTimeout       = 30 * time.Second
	defaultUploadMaxSize = 10 << 20
)

// Config holds all configuration for the portal server.
// Upstream and Storage carry secrets; they are never serialized or logged.
type Config struct {
	// Server Configuration
	Server ServerConfig

	// Upstream HR API Configuration
	Upstream UpstreamConfig

	// Object Storage Configuration
	Storage StorageConfig

	// Web shell Configuration
	Web WebConfig

	// Logging Configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port         string   `validate:"required,numeric"`
	AllowOrigins []string `validate:"dive,required"`
}

// UpstreamConfig holds the upstream API location and the secret header it requires
type UpstreamConfig struct {
	// Must be absolute. proxy.New still falls back to a fixed origin for
	// callers that skip Validate.
	BaseURL   string        `validate:"required,url"`
	HeaderKey string        `json:"-" validate:"required"`
	APIKey    string        `json:"-" validate:"required"`
	AppID     int           `validate:"gte=0"`
	UserAgent string        `validate:"required"`
	Timeout   time.Duration `validate:"gt=0"`
}

// StorageConfig holds S3 bucket configuration
type StorageConfig struct {
	Region          string `validate:"required"`
	Bucket          string `validate:"required"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-" validate:"required_with=AccessKeyID"`
	Endpoint        string `validate:"omitempty,url"`
	ForcePathStyle  bool
	MaxUploadBytes  int64 `validate:"gt=0"`
}

// WebConfig holds the optional static shell served behind the route guard
type WebConfig struct {
	Root string `validate:"omitempty,dir"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string `validate:"oneof=json console"` // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	appID, err := intEnv("APP_ID", 0)
	if err != nil {
		return nil, err
	}

	timeout, err := durationEnv("API_TIMEOUT", defaultTimeout)
	if err != nil {
		return nil, err
	}

	maxUpload, err := intEnv("UPLOAD_MAX_BYTES", defaultUploadMaxSize)
	if err != nil {
		return nil, err
	}

	forcePathStyle, err := boolEnv("AWS_FORCE_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", defaultPort),
			AllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", defaultAllowOrigins)),
		},
		Upstream: UpstreamConfig{
			BaseURL:   strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
			HeaderKey: os.Getenv("API_HEADER_KEY"),
			APIKey:    os.Getenv("API_KEY"),
			AppID:     appID,
			UserAgent: getEnv("API_USER_AGENT", defaultUserAgent),
			Timeout:   timeout,
		},
		Storage: StorageConfig{
			Region:          os.Getenv("AWS_REGION"),
			Bucket:          os.Getenv("AWS_BUCKET"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Endpoint:        os.Getenv("AWS_ENDPOINT_URL"), // e.g., http://localstack:4566
			ForcePathStyle:  forcePathStyle,
			MaxUploadBytes:  int64(maxUpload),
		},
		Web: WebConfig{
			Root: os.Getenv("WEB_ROOT"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration. Errors name the offending fields only.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}

// LogSummary adds the non-secret parts of the configuration to a log event.
func (c *Config) LogSummary(e *zerolog.Event) *zerolog.Event {
	return e.
		Str("port", c.Server.Port).
		Str("upstream", c.Upstream.BaseURL).
		Int("app_id", c.Upstream.AppID).
		Str("region", c.Storage.Region).
		Str("bucket", c.Storage.Bucket).
		Bool("static_credentials", c.Storage.AccessKeyID != "").
		Bool("web_shell", c.Web.Root != "")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
