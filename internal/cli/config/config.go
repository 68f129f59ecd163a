package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/laskarbuah/freelance-portal/internal/ipinfo"
	"github.com/laskarbuah/freelance-portal/internal/session"
)

const (
	DefaultPortalURL = "http://localhost:8080"

	StoreFile    = "file"
	StoreKeyring = "keyring"
)

// Config holds the CLI's client-side settings. Nothing here is secret.
type Config struct {
	PortalURL    string `validate:"required,url"`
	AppID        int    `validate:"gte=0"`
	SessionStore string `validate:"oneof=file keyring"`
	SessionFile  string
	IPLookupURL  string `validate:"required,url"`
	LogLevel     string
}

// Load reads the CLI settings from the environment and optional .env files
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	appID := 0
	if v := os.Getenv("APP_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid APP_ID: %w", err)
		}
		appID = n
	}

	cfg := &Config{
		PortalURL:    strings.TrimRight(getEnv("PORTAL_URL", DefaultPortalURL), "/"),
		AppID:        appID,
		SessionStore: strings.ToLower(getEnv("PORTAL_SESSION_STORE", StoreFile)),
		SessionFile:  os.Getenv("PORTAL_SESSION_FILE"),
		IPLookupURL:  getEnv("IP_LOOKUP_URL", ipinfo.DefaultURL),
		LogLevel:     getEnv("PORTAL_LOG_LEVEL", "warn"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings, naming the invalid fields
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
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}

// OpenStore returns the configured session store
func (c *Config) OpenStore() (session.Store, error) {
	switch c.SessionStore {
	case StoreKeyring:
		return session.NewKeyringStore(), nil
	case StoreFile, "":
		path := c.SessionFile
		if path == "" {
			p, err := session.DefaultFilePath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return session.NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
