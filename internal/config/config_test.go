package config_test

import (
	"testing"
	"time"

	"github.com/Amund211/pitwall/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var requiredInProductionAndStaging = []string{"SENTRY_DSN", "PROVIDER_URL"}

func TestGetConfig(t *testing.T) {
	compareEnvironment := func(env environment, conf config.Config) {
		t.Helper()
		require.Equal(t, env == production, conf.IsProduction())
		require.Equal(t, env == staging, conf.IsStaging())
		require.Equal(t, env == development, conf.IsDevelopment())
	}

	t.Run("ensure base environment is clean", func(t *testing.T) {
		t.Run("environment is missing", func(t *testing.T) {
			// PITWALL_ENVIRONMENT is required, so this should fail
			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)
		})

		t.Run("development environment uses defaults", func(t *testing.T) {
			t.Setenv("PITWALL_ENVIRONMENT", "development")

			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			compareEnvironment(development, conf)

			require.Equal(t, "8123", conf.Port())
			require.Equal(t, "", conf.SentryDSN())
			require.Equal(t, "", conf.ProviderURL())
			require.Equal(t, "", conf.ProviderAPIKey())
			require.Equal(t, 30*time.Minute, conf.CacheMaxAge())
			require.Equal(t, int64(512*1024*1024), conf.CacheBudgetBytes())
			require.Equal(t, time.Minute, conf.CacheEvictInterval())
			require.Equal(t, 2*time.Minute, conf.LoadTimeout())
			require.Equal(t, 30*time.Second, conf.RequestTimeout())
			require.Equal(t, 1, conf.TelemetryDownsample())
			require.Equal(t, config.StoreBackendNone, conf.StoreBackend())
			require.Equal(t, config.BlobCodecZstd, conf.BlobCodec())
			require.True(t, conf.MinioUseSSL())
			require.False(t, conf.OTelEnabled())
		})
	})

	t.Run("values are read correctly", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("SENTRY_DSN", "SENTRY_DSN")
		t.Setenv("PROVIDER_URL", "PROVIDER_URL")
		t.Setenv("PROVIDER_API_KEY", "PROVIDER_API_KEY")
		t.Setenv("CACHE_MAX_AGE", "10m")
		t.Setenv("CACHE_BUDGET_BYTES", "1048576")
		t.Setenv("CACHE_EVICT_INTERVAL", "15s")
		t.Setenv("LOAD_TIMEOUT", "45s")
		t.Setenv("REQUEST_TIMEOUT", "5s")
		t.Setenv("TELEMETRY_DOWNSAMPLE", "4")
		t.Setenv("STORE_BACKEND", "minio")
		t.Setenv("MINIO_ENDPOINT", "MINIO_ENDPOINT")
		t.Setenv("MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY")
		t.Setenv("MINIO_SECRET_KEY", "MINIO_SECRET_KEY")
		t.Setenv("MINIO_BUCKET", "MINIO_BUCKET")
		t.Setenv("MINIO_USE_SSL", "false")
		t.Setenv("BLOB_CODEC", "lz4")
		t.Setenv("OTEL_ENABLED", "true")

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("PITWALL_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				compareEnvironment(env, conf)

				require.Equal(t, "9000", conf.Port())
				require.Equal(t, "SENTRY_DSN", conf.SentryDSN())
				require.Equal(t, "PROVIDER_URL", conf.ProviderURL())
				require.Equal(t, "PROVIDER_API_KEY", conf.ProviderAPIKey())
				require.Equal(t, 10*time.Minute, conf.CacheMaxAge())
				require.Equal(t, int64(1048576), conf.CacheBudgetBytes())
				require.Equal(t, 15*time.Second, conf.CacheEvictInterval())
				require.Equal(t, 45*time.Second, conf.LoadTimeout())
				require.Equal(t, 5*time.Second, conf.RequestTimeout())
				require.Equal(t, 4, conf.TelemetryDownsample())
				require.Equal(t, config.StoreBackendMinio, conf.StoreBackend())
				require.Equal(t, "MINIO_ENDPOINT", conf.MinioEndpoint())
				require.Equal(t, "MINIO_ACCESS_KEY", conf.MinioAccessKey())
				require.Equal(t, "MINIO_SECRET_KEY", conf.MinioSecretKey())
				require.Equal(t, "MINIO_BUCKET", conf.MinioBucket())
				require.False(t, conf.MinioUseSSL())
				require.Equal(t, config.BlobCodecLZ4, conf.BlobCodec())
				require.True(t, conf.OTelEnabled())
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		for _, variable := range requiredInProductionAndStaging {
			t.Setenv(variable, "placeholder_value")
		}

		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("PITWALL_ENVIRONMENT", string(env))

				for _, variable := range requiredInProductionAndStaging {
					t.Run(variable, func(t *testing.T) {
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("store backends require their settings", func(t *testing.T) {
		t.Setenv("PITWALL_ENVIRONMENT", "development")

		t.Run("postgres", func(t *testing.T) {
			t.Setenv("STORE_BACKEND", "postgres")

			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)

			t.Setenv("DB_CONNECTION_STRING", "postgres://localhost/pitwall")
			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			require.Equal(t, config.StoreBackendPostgres, conf.StoreBackend())
			require.Equal(t, "postgres://localhost/pitwall", conf.DBConnectionString())
		})

		t.Run("minio", func(t *testing.T) {
			minioVariables := []string{"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET"}

			t.Setenv("STORE_BACKEND", "minio")
			for _, variable := range minioVariables {
				t.Setenv(variable, "placeholder_value")
			}

			for _, variable := range minioVariables {
				t.Run(variable, func(t *testing.T) {
					t.Setenv(variable, "")

					_, err := config.ConfigFromEnv()
					require.ErrorIs(t, err, config.ErrMissingRequiredValue)
				})
			}
		})
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("PITWALL_ENVIRONMENT", "development")

		cases := []struct {
			variable string
			value    string
		}{
			{variable: "PORT", value: "http"},
			{variable: "PORT", value: "70000"},
			{variable: "CACHE_MAX_AGE", value: "forever"},
			{variable: "CACHE_MAX_AGE", value: "-1m"},
			{variable: "CACHE_BUDGET_BYTES", value: "lots"},
			{variable: "CACHE_BUDGET_BYTES", value: "0"},
			{variable: "LOAD_TIMEOUT", value: "0s"},
			{variable: "TELEMETRY_DOWNSAMPLE", value: "0"},
			{variable: "STORE_BACKEND", value: "sqlite"},
			{variable: "BLOB_CODEC", value: "gzip"},
			{variable: "MINIO_USE_SSL", value: "maybe"},
			{variable: "OTEL_ENABLED", value: "yes please"},
		}

		for _, c := range cases {
			t.Run(c.variable+"="+c.value, func(t *testing.T) {
				t.Setenv(c.variable, c.value)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		for _, env := range []string{"", "invalid", "my-env"} {
			t.Run(env, func(t *testing.T) {
				t.Setenv("PITWALL_ENVIRONMENT", env)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})
}
