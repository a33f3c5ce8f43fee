package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the wizard service.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	PopularGeoKey string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	// UpstreamPaths carries per-endpoint overrides, keyed by the snake_case
	// operation name, loaded from UPSTREAM_PATH_* variables.
	UpstreamPaths map[string]string

	PlacesEndpoint       string
	PlacesAPIKey         string
	AutocompleteCacheTTL time.Duration

	StripeAPIKey string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:             ":8080",
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         10 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		PopularGeoKey:        "popular_places_geo",
		KafkaTopic:           "ride-events",
		UpstreamTimeout:      15 * time.Second,
		AutocompleteCacheTTL: 5 * time.Minute,
		LogLevel:             "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.PopularGeoKey, "POPULAR_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.UpstreamBaseURL, "UPSTREAM_BASE_URL")
	setDurationFromEnv(&cfg.UpstreamTimeout, "UPSTREAM_TIMEOUT", &errs)
	cfg.UpstreamPaths = upstreamPathsFromEnv()

	setStringFromEnv(&cfg.PlacesEndpoint, "PLACES_ENDPOINT")
	cfg.PlacesAPIKey = os.Getenv("PLACES_API_KEY")
	setDurationFromEnv(&cfg.AutocompleteCacheTTL, "AUTOCOMPLETE_CACHE_TTL", &errs)

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.UpstreamBaseURL == "" {
		errs = append(errs, fmt.Errorf("UPSTREAM_BASE_URL must be set"))
	}

	return cfg, errors.Join(errs...)
}

// upstreamPathsFromEnv collects UPSTREAM_PATH_SEND_OTP=/v2/otp style
// overrides into {"send_otp": "/v2/otp"}.
func upstreamPathsFromEnv() map[string]string {
	const prefix = "UPSTREAM_PATH_"
	paths := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) || v == "" {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, prefix))
		paths[name] = v
	}
	return paths
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
