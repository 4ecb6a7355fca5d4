package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/database"
	"github.com/Amund211/pitwall/internal/config"
)

// NewSessionStoreFromConfig connects to the configured backend. Postgres is migrated before use.
func NewSessionStoreFromConfig(ctx context.Context, conf config.Config, logger *slog.Logger) (SessionStore, error) {
	if conf.StoreBackend() == config.StoreBackendNone {
		logger.InfoContext(ctx, "No session store configured")
		return NewNoopStore(), nil
	}

	codec, err := NewCodec(conf.BlobCodec())
	if err != nil {
		return nil, err
	}

	switch conf.StoreBackend() {
	case config.StoreBackendPostgres:
		db, err := database.NewPostgresDatabaseFromConfig(conf)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		schema := database.GetSchemaName(!conf.IsProduction())
		migrator := database.NewDatabaseMigrator(db, logger)
		if err := migrator.Migrate(ctx, schema); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		logger.InfoContext(ctx, "Using postgres session store", "schema", schema, "codec", string(conf.BlobCodec()))
		return NewPostgresSessionStore(db, schema, codec, time.Now), nil
	case config.StoreBackendMinio:
		client, err := NewMinioClient(conf.MinioEndpoint(), conf.MinioAccessKey(), conf.MinioSecretKey(), conf.MinioUseSSL())
		if err != nil {
			return nil, err
		}

		store, err := NewMinioSessionStore(ctx, client, conf.MinioBucket(), codec)
		if err != nil {
			return nil, fmt.Errorf("failed to create minio session store: %w", err)
		}

		logger.InfoContext(ctx, "Using minio session store", "bucket", conf.MinioBucket(), "codec", string(conf.BlobCodec()))
		return store, nil
	}

	return nil, fmt.Errorf("unknown store backend '%s'", conf.StoreBackend())
}
