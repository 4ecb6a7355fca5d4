package domain_test

import (
	"strings"
	"testing"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestNewSessionKey(t *testing.T) {
	t.Parallel()

	t.Run("valid keys", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			season      int
			event       string
			sessionType string
			expected    domain.SessionKey
		}{
			{
				season:      2023,
				event:       "Australian",
				sessionType: "Race",
				expected:    domain.SessionKey{Season: 2023, Event: "Australian", SessionType: domain.SessionTypeRace},
			},
			{
				season:      2022,
				event:       "  Emilia Romagna ",
				sessionType: "sprint",
				expected:    domain.SessionKey{Season: 2022, Event: "Emilia Romagna", SessionType: domain.SessionTypeSprint},
			},
			{
				season:      1950,
				event:       "British",
				sessionType: "QUALIFYING",
				expected:    domain.SessionKey{Season: 1950, Event: "British", SessionType: domain.SessionTypeQualifying},
			},
			{
				season:      2100,
				event:       "Azerbaijan",
				sessionType: " practice ",
				expected:    domain.SessionKey{Season: 2100, Event: "Azerbaijan", SessionType: domain.SessionTypePractice},
			},
		}

		for _, c := range cases {
			t.Run(c.expected.String(), func(t *testing.T) {
				t.Parallel()

				key, err := domain.NewSessionKey(c.season, c.event, c.sessionType)
				require.NoError(t, err)
				require.Equal(t, c.expected, key)
				require.NoError(t, key.Validate())
			})
		}
	})

	t.Run("invalid keys", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name        string
			season      int
			event       string
			sessionType string
		}{
			{name: "season too early", season: 1949, event: "British", sessionType: "Race"},
			{name: "season too late", season: 2101, event: "British", sessionType: "Race"},
			{name: "zero season", season: 0, event: "British", sessionType: "Race"},
			{name: "empty event", season: 2023, event: "", sessionType: "Race"},
			{name: "blank event", season: 2023, event: "   ", sessionType: "Race"},
			{name: "event with slash", season: 2023, event: "Abu/Dhabi", sessionType: "Race"},
			{name: "event with control character", season: 2023, event: "Abu\nDhabi", sessionType: "Race"},
			{name: "event too long", season: 2023, event: strings.Repeat("a", 65), sessionType: "Race"},
			{name: "unknown session type", season: 2023, event: "British", sessionType: "Warmup"},
			{name: "empty session type", season: 2023, event: "British", sessionType: ""},
		}

		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				t.Parallel()

				_, err := domain.NewSessionKey(c.season, c.event, c.sessionType)
				require.ErrorIs(t, err, domain.ErrCacheKeyInvalid)
			})
		}
	})

	t.Run("zero value is invalid", func(t *testing.T) {
		t.Parallel()

		require.ErrorIs(t, domain.SessionKey{}.Validate(), domain.ErrCacheKeyInvalid)
	})

	t.Run("untrimmed event is invalid", func(t *testing.T) {
		t.Parallel()

		key := domain.SessionKey{Season: 2023, Event: " British", SessionType: domain.SessionTypeRace}
		require.ErrorIs(t, key.Validate(), domain.ErrCacheKeyInvalid)
	})
}

func TestSessionKeyNames(t *testing.T) {
	t.Parallel()

	key, err := domain.NewSessionKey(2021, "Saudi Arabian", "Race")
	require.NoError(t, err)

	require.Equal(t, "2021/Saudi Arabian/Race", key.String())
	require.Equal(t, "2021/Saudi_Arabian/Race", key.BlobName())
}

func TestSessionTypeHasLapTable(t *testing.T) {
	t.Parallel()

	require.False(t, domain.SessionTypePractice.HasLapTable())
	require.True(t, domain.SessionTypeQualifying.HasLapTable())
	require.True(t, domain.SessionTypeSprint.HasLapTable())
	require.True(t, domain.SessionTypeRace.HasLapTable())
}
