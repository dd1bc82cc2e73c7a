package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Amund211/viewcache/internal/domain"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type ViewSource string

const (
	FilesystemSource ViewSource = "filesystem"
	PostgresSource   ViewSource = "postgres"
)

const DEFAULT_PORT = "8080"
const DEFAULT_VIEWS_ROOT = "views"

type Config struct {
	port                   string
	viewsRoot              string
	viewsExtension         string
	viewSource             ViewSource
	viewDiagnostics        bool
	allowedOrigins         []string
	logLevel               string
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	sentryDSN              string
	gcpProject             string
	env                    environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) ViewsRoot() string {
	return c.viewsRoot
}

func (c *Config) ViewsExtension() string {
	return c.viewsExtension
}

func (c *Config) ViewSource() ViewSource {
	return c.viewSource
}

func (c *Config) ViewDiagnostics() bool {
	return c.viewDiagnostics
}

// Domain suffixes allowed to embed views cross-origin
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) LogLevel() string {
	return c.logLevel
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) GCPProject() string {
	return c.gcpProject
}

// Views are cached forever in production, and re-read on every request elsewhere
func (c *Config) CacheViews() bool {
	return c.IsProduction()
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, viewsRoot: %s, viewsExtension: %s, viewSource: %s, viewDiagnostics: %t, ...}",
		string(c.env), c.port, c.viewsRoot, c.viewsExtension, string(c.viewSource), c.viewDiagnostics,
	)
}

func getenvOr(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("VIEWCACHE_ENVIRONMENT")
	if !ok {
		return missingKey("VIEWCACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: VIEWCACHE_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	var viewSource ViewSource
	rawViewSource := getenvOr("VIEWS_SOURCE", string(FilesystemSource))
	switch rawViewSource {
	case string(FilesystemSource):
		viewSource = FilesystemSource
	case string(PostgresSource):
		viewSource = PostgresSource
	default:
		return Config{}, fmt.Errorf("%w: VIEWS_SOURCE (%s)", ErrInvalidValue, rawViewSource)
	}

	viewDiagnostics := false
	if rawViewDiagnostics := os.Getenv("VIEWS_DIAGNOSTICS"); rawViewDiagnostics != "" {
		parsed, err := strconv.ParseBool(rawViewDiagnostics)
		if err != nil {
			return Config{}, fmt.Errorf("%w: VIEWS_DIAGNOSTICS (%s)", ErrInvalidValue, rawViewDiagnostics)
		}
		viewDiagnostics = parsed
	}

	var allowedOrigins []string
	for _, origin := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	viewsRoot := os.Getenv("VIEWS_ROOT")
	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")

	if env == production || env == staging {
		if viewsRoot == "" {
			return missingKey("VIEWS_ROOT")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if viewSource == PostgresSource {
			if cloudSQLUnixSocketPath == "" {
				return missingKey("CLOUDSQL_UNIX_SOCKET")
			}
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
		}
	}

	if viewsRoot == "" {
		viewsRoot = DEFAULT_VIEWS_ROOT
	}

	return Config{
		port:                   getenvOr("PORT", DEFAULT_PORT),
		viewsRoot:              viewsRoot,
		viewsExtension:         getenvOr("VIEWS_EXTENSION", domain.DEFAULT_EXTENSION),
		viewSource:             viewSource,
		viewDiagnostics:        viewDiagnostics,
		allowedOrigins:         allowedOrigins,
		logLevel:               getenvOr("LOG_LEVEL", "info"),
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		sentryDSN:              sentryDSN,
		gcpProject:             os.Getenv("GOOGLE_CLOUD_PROJECT"),
		env:                    env,
	}, nil
}
