package sessionstore

import (
	"context"
	"testing"

	"github.com/Amund211/pitwall/internal/config"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/domaintest"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	t.Parallel()

	key := domaintest.NewSessionKey(2023, "Saudi Arabian", domain.SessionTypeQualifying)
	require.Equal(t, "sessions/2023/Saudi_Arabian/Qualifying.bin", objectName(key))
}

// Requires a local MinIO instance with the default credentials
func TestMinioSessionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping minio tests in short mode.")
	}

	ctx := context.Background()

	client, err := NewMinioClient("localhost:9000", "minioadmin", "minioadmin", false)
	require.NoError(t, err)

	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available: %v", err)
	}

	codec, err := NewCodec(config.BlobCodecLZ4)
	require.NoError(t, err)

	store, err := NewMinioSessionStore(ctx, client, "pitwall-test", codec)
	require.NoError(t, err)

	key := domaintest.NewSessionKey(2022, "Bahrain", domain.SessionTypeSprint)

	t.Run("miss", func(t *testing.T) {
		missingKey := domaintest.NewSessionKey(1950, "Never stored", domain.SessionTypeRace)
		_, err := store.Get(ctx, missingKey)
		require.ErrorIs(t, err, domain.ErrStoreMiss)
	})

	t.Run("put then get", func(t *testing.T) {
		entry := domaintest.NewEntryBuilder(key).
			WithDriver(domain.Driver{ID: "LEC"}).
			WithSeries(domaintest.NewSeriesBuilder("LEC", 3).WithSample(0, 0, 80).Build()).
			BuildPtr()

		require.NoError(t, store.Put(ctx, entry))

		stored, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, entry.Key, stored.Key)
		require.Equal(t, entry.Telemetry, stored.Telemetry)
		require.True(t, stored.HasTelemetry("LEC", 3))
	})
}
