// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port         int    `koanf:"port"`
	DatabaseURL  string `koanf:"database_url"`
	DatabaseType string `koanf:"database_type"`

	// Secrets
	JWTSecret      string        `koanf:"jwt_secret"`
	TokenTTL       time.Duration `koanf:"token_ttl"`
	IdentitySecret string        `koanf:"identity_shared_secret"`
	IPHashSalt     string        `koanf:"ip_hash_salt"`

	// AdminEmail is promoted to admin on sign-in.
	AdminEmail string `koanf:"admin_email"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	CORSOrigins     []string `koanf:"cors_origins"`
	RateLimit       int      `koanf:"rate_limit"`
	MatricAllowList []string `koanf:"matric_allow_list"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `koanf:"trust_proxy"`

	// MaxDocumentSize is a human size such as "10MiB"; MaxDocumentBytes is its parsed value.
	MaxDocumentSize  string `koanf:"max_document_size"`
	MaxDocumentBytes int64  `koanf:"-"`

	// External collaborators
	StorageURL       string        `koanf:"storage_url"`
	DocumentURL      string        `koanf:"document_service_url"`
	FaceURL          string        `koanf:"face_service_url"`
	ServiceAPIKey    string        `koanf:"service_api_key"`
	UpstreamTimeout  time.Duration `koanf:"upstream_timeout"`
	FaceNamespace    string        `koanf:"face_namespace"`
	FaceDupThreshold float64       `koanf:"face_duplicate_threshold"`
}

func defaults() Config {
	return Config{
		Port:             3318,
		DatabaseType:     "sqlite",
		TokenTTL:         7 * 24 * time.Hour,
		LogLevel:         "info",
		LogFormat:        "json",
		CORSOrigins:      []string{"*"},
		RateLimit:        30,
		MaxDocumentSize:  "10MiB",
		UpstreamTimeout:  15 * time.Second,
		FaceNamespace:    "campus-vote",
		FaceDupThreshold: 85,
	}
}

// envKeys maps environment variables onto config keys. Anything else in the
// environment is ignored.
var envKeys = map[string]string{
	"PORT":                     "port",
	"DATABASE_URL":             "database_url",
	"DATABASE_TYPE":            "database_type",
	"JWT_SECRET":               "jwt_secret",
	"TOKEN_TTL":                "token_ttl",
	"IDENTITY_SHARED_SECRET":   "identity_shared_secret",
	"IP_HASH_SALT":             "ip_hash_salt",
	"ADMIN_EMAIL":              "admin_email",
	"LOG_LEVEL":                "log_level",
	"LOG_FORMAT":               "log_format",
	"CORS_ORIGINS":             "cors_origins",
	"RATE_LIMIT":               "rate_limit",
	"TRUST_PROXY":              "trust_proxy",
	"MATRIC_ALLOW_LIST":        "matric_allow_list",
	"MAX_DOCUMENT_SIZE":        "max_document_size",
	"STORAGE_URL":              "storage_url",
	"DOCUMENT_SERVICE_URL":     "document_service_url",
	"FACE_SERVICE_URL":         "face_service_url",
	"SERVICE_API_KEY":          "service_api_key",
	"UPSTREAM_TIMEOUT":         "upstream_timeout",
	"FACE_NAMESPACE":           "face_namespace",
	"FACE_DUPLICATE_THRESHOLD": "face_duplicate_threshold",
}

var sliceKeys = []string{"cors_origins", "matric_allow_list"}

// ParseFlags builds the configuration. Precedence, highest first:
// CLI flags, environment (including a .env file), CONFIG_PATH yaml file, defaults.
func ParseFlags(args []string) (Config, error) {
	var port int
	var dbURL, dbType, configPath string

	fs := flag.NewFlagSet("campus-vote", flag.ContinueOnError)
	fs.IntVar(&port, "p", 0, "Server port")
	fs.StringVar(&dbURL, "d", "", "Database URL")
	fs.StringVar(&dbType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&configPath, "c", "", "YAML config file (overrides CONFIG_PATH)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := splitSliceKeys(k); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	// CLI flags win over everything else
	if port != 0 {
		cfg.Port = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if dbType != "" {
		cfg.DatabaseType = dbType
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// splitSliceKeys turns comma separated env values into lists. YAML lists pass through.
func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		s, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port")
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != "sqlite" && c.DatabaseType != "postgres" {
		return fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}

	// Secrets - MUST be provided
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET required (at least 32 characters)")
	}
	if c.IdentitySecret == "" {
		return errors.New("IDENTITY_SHARED_SECRET required")
	}
	if c.IPHashSalt == "" {
		c.IPHashSalt = c.JWTSecret
	}

	size, err := humanize.ParseBytes(c.MaxDocumentSize)
	if err != nil {
		return fmt.Errorf("invalid MAX_DOCUMENT_SIZE: %w", err)
	}
	c.MaxDocumentBytes = int64(size)

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	return nil
}
