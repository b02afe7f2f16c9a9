package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	TokenPepper string
	SessionTTL  time.Duration

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// FrontendBaseURL is where the login page and dashboards live;
	// PublicBaseURL is this service's own externally visible origin.
	// Both are trusted senders of the AUTH_SUCCESS handoff message.
	FrontendBaseURL string
	PublicBaseURL   string
	TrustedOrigins  []string
	CORSOrigins     []string

	AuthRateLimitRPM int
	APIRateLimitRPM  int

	RedisAddr        string
	PresenceCacheTTL time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
	EnableOTelHTTP            bool

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

// Load reads configuration from the environment, optionally seeded
// from a dotenv file. Variables already present in the environment
// win over file values.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			recordConfigValidationEvent(context.Background(), os.Getenv("APP_ENV"), "failure", "load")
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8081"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		JWTIssuer:   getEnv("AUTH_JWT_ISSUER", "hostbridge"),
		JWTAudience: getEnv("AUTH_JWT_AUDIENCE", "hostbridge"),
		TokenPepper: getEnv("AUTH_TOKEN_PEPPER", ""),
		SessionTTL:  getDuration("AUTH_SESSION_TTL", 24*time.Hour),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		FrontendBaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8081"),

		AuthRateLimitRPM: getInt("AUTH_RATE_LIMIT_RPM", 30),
		APIRateLimitRPM:  getInt("API_RATE_LIMIT_RPM", 300),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		PresenceCacheTTL: getDuration("PRESENCE_CACHE_TTL", 30*time.Second),

		OTELServiceName:           getEnv("OTEL_SERVICE_NAME", "hostbridge"),
		OTELEnvironment:           getEnv("OTEL_ENVIRONMENT", "development"),
		OTELExporterOTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure:  getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELMetricsEnabled:        getBool("OTEL_METRICS_ENABLED", false),
		OTELTracesEnabled:         getBool("OTEL_TRACES_ENABLED", false),
		OTELLogsEnabled:           getBool("OTEL_LOGS_ENABLED", false),
		OTELMetricsExportInterval: getDuration("OTEL_METRICS_EXPORT_INTERVAL", 15*time.Second),
		EnableOTelHTTP:            getBool("OTEL_HTTP_ENABLED", false),

		ShutdownTimeout:              getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		ShutdownHTTPDrainTimeout:     getDuration("SHUTDOWN_HTTP_DRAIN_TIMEOUT", 5*time.Second),
		ShutdownObservabilityTimeout: getDuration("SHUTDOWN_OBSERVABILITY_TIMEOUT", 5*time.Second),
	}

	cfg.TrustedOrigins = getList("AUTH_TRUSTED_ORIGINS", []string{cfg.FrontendBaseURL, cfg.PublicBaseURL})
	cfg.CORSOrigins = getList("CORS_ORIGINS", []string{cfg.FrontendBaseURL})
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.PublicBaseURL + "/auth/google/callback"
	}

	if err := cfg.Validate(); err != nil {
		recordConfigValidationEvent(context.Background(), cfg.AppEnv, "failure", "validation")
		return nil, fmt.Errorf("validate config: %w", err)
	}
	recordConfigValidationEvent(context.Background(), cfg.AppEnv, "success", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if len(c.JWTSecret) < 32 {
		problems = append(problems, "AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.TokenPepper == "" {
		problems = append(problems, "AUTH_TOKEN_PEPPER is required")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "AUTH_SESSION_TTL must be positive")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required for the postgres driver")
	}
	if c.IsProduction() {
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			problems = append(problems, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production")
		}
	}
	if len(c.TrustedOrigins) == 0 {
		problems = append(problems, "AUTH_TRUSTED_ORIGINS must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool { return strings.EqualFold(c.AppEnv, "production") }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
