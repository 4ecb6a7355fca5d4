package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type StoreBackend string

const (
	StoreBackendNone     StoreBackend = "none"
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendMinio    StoreBackend = "minio"
)

type BlobCodec string

const (
	BlobCodecZstd BlobCodec = "zstd"
	BlobCodecLZ4  BlobCodec = "lz4"
)

type Config struct {
	port      string
	sentryDSN string

	providerURL    string
	providerAPIKey string

	cacheMaxAge         time.Duration
	cacheBudgetBytes    int64
	cacheEvictInterval  time.Duration
	loadTimeout         time.Duration
	requestTimeout      time.Duration
	telemetryDownsample int

	storeBackend       StoreBackend
	dbConnectionString string
	minioEndpoint      string
	minioAccessKey     string
	minioSecretKey     string
	minioBucket        string
	minioUseSSL        bool
	blobCodec          BlobCodec

	otelEnabled bool

	env environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) ProviderURL() string {
	return c.providerURL
}

func (c *Config) ProviderAPIKey() string {
	return c.providerAPIKey
}

// Entries idle for longer than this are evicted
func (c *Config) CacheMaxAge() time.Duration {
	return c.cacheMaxAge
}

func (c *Config) CacheBudgetBytes() int64 {
	return c.cacheBudgetBytes
}

func (c *Config) CacheEvictInterval() time.Duration {
	return c.cacheEvictInterval
}

// Upper bound on one fetch + normalize, independent of the requests waiting for it
func (c *Config) LoadTimeout() time.Duration {
	return c.loadTimeout
}

func (c *Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c *Config) TelemetryDownsample() int {
	return c.telemetryDownsample
}

func (c *Config) StoreBackend() StoreBackend {
	return c.storeBackend
}

func (c *Config) DBConnectionString() string {
	return c.dbConnectionString
}

func (c *Config) MinioEndpoint() string {
	return c.minioEndpoint
}

func (c *Config) MinioAccessKey() string {
	return c.minioAccessKey
}

func (c *Config) MinioSecretKey() string {
	return c.minioSecretKey
}

func (c *Config) MinioBucket() string {
	return c.minioBucket
}

func (c *Config) MinioUseSSL() bool {
	return c.minioUseSSL
}

func (c *Config) BlobCodec() BlobCodec {
	return c.blobCodec
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
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
		"Config{env: %s, port: %s, store: %s, codec: %s, cacheBudget: %d, cacheMaxAge: %s, ...}",
		string(c.env),
		c.port,
		string(c.storeBackend),
		string(c.blobCodec),
		c.cacheBudgetBytes,
		c.cacheMaxAge,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("PITWALL_ENVIRONMENT")
	if !ok {
		return missingKey("PITWALL_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("PITWALL_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := getenvOr("PORT", "8123")
	if parsed, err := strconv.Atoi(port); err != nil || parsed <= 0 || parsed > 65535 {
		return invalidValue("PORT", port)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	providerURL := os.Getenv("PROVIDER_URL")
	providerAPIKey := os.Getenv("PROVIDER_API_KEY")

	durations := map[string]*time.Duration{}
	cacheMaxAge := 30 * time.Minute
	cacheEvictInterval := time.Minute
	loadTimeout := 2 * time.Minute
	requestTimeout := 30 * time.Second
	durations["CACHE_MAX_AGE"] = &cacheMaxAge
	durations["CACHE_EVICT_INTERVAL"] = &cacheEvictInterval
	durations["LOAD_TIMEOUT"] = &loadTimeout
	durations["REQUEST_TIMEOUT"] = &requestTimeout
	for key, target := range durations {
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return invalidValue(key, raw)
		}
		*target = parsed
	}

	cacheBudgetBytes := int64(512 * 1024 * 1024)
	if raw := os.Getenv("CACHE_BUDGET_BYTES"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return invalidValue("CACHE_BUDGET_BYTES", raw)
		}
		cacheBudgetBytes = parsed
	}

	telemetryDownsample := 1
	if raw := os.Getenv("TELEMETRY_DOWNSAMPLE"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return invalidValue("TELEMETRY_DOWNSAMPLE", raw)
		}
		telemetryDownsample = parsed
	}

	var storeBackend StoreBackend
	switch rawBackend := getenvOr("STORE_BACKEND", string(StoreBackendNone)); rawBackend {
	case string(StoreBackendNone):
		storeBackend = StoreBackendNone
	case string(StoreBackendPostgres):
		storeBackend = StoreBackendPostgres
	case string(StoreBackendMinio):
		storeBackend = StoreBackendMinio
	default:
		return invalidValue("STORE_BACKEND", rawBackend)
	}

	var blobCodec BlobCodec
	switch rawCodec := getenvOr("BLOB_CODEC", string(BlobCodecZstd)); rawCodec {
	case string(BlobCodecZstd):
		blobCodec = BlobCodecZstd
	case string(BlobCodecLZ4):
		blobCodec = BlobCodecLZ4
	default:
		return invalidValue("BLOB_CODEC", rawCodec)
	}

	dbConnectionString := os.Getenv("DB_CONNECTION_STRING")
	minioEndpoint := os.Getenv("MINIO_ENDPOINT")
	minioAccessKey := os.Getenv("MINIO_ACCESS_KEY")
	minioSecretKey := os.Getenv("MINIO_SECRET_KEY")
	minioBucket := os.Getenv("MINIO_BUCKET")

	minioUseSSL, err := parseBool("MINIO_USE_SSL", true)
	if err != nil {
		return Config{}, err
	}
	otelEnabled, err := parseBool("OTEL_ENABLED", env != development)
	if err != nil {
		return Config{}, err
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if providerURL == "" {
			return missingKey("PROVIDER_URL")
		}
	}

	switch storeBackend {
	case StoreBackendPostgres:
		if dbConnectionString == "" {
			return missingKey("DB_CONNECTION_STRING")
		}
	case StoreBackendMinio:
		if minioEndpoint == "" {
			return missingKey("MINIO_ENDPOINT")
		}
		if minioAccessKey == "" {
			return missingKey("MINIO_ACCESS_KEY")
		}
		if minioSecretKey == "" {
			return missingKey("MINIO_SECRET_KEY")
		}
		if minioBucket == "" {
			return missingKey("MINIO_BUCKET")
		}
	}

	return Config{
		port:      port,
		sentryDSN: sentryDSN,

		providerURL:    providerURL,
		providerAPIKey: providerAPIKey,

		cacheMaxAge:         cacheMaxAge,
		cacheBudgetBytes:    cacheBudgetBytes,
		cacheEvictInterval:  cacheEvictInterval,
		loadTimeout:         loadTimeout,
		requestTimeout:      requestTimeout,
		telemetryDownsample: telemetryDownsample,

		storeBackend:       storeBackend,
		dbConnectionString: dbConnectionString,
		minioEndpoint:      minioEndpoint,
		minioAccessKey:     minioAccessKey,
		minioSecretKey:     minioSecretKey,
		minioBucket:        minioBucket,
		minioUseSSL:        minioUseSSL,
		blobCodec:          blobCodec,

		otelEnabled: otelEnabled,

		env: env,
	}, nil
}

func getenvOr(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func parseBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return parsed, nil
}
