package domain

import (
	"fmt"
	"strings"
	"unicode"
)

type SessionType string

const (
	SessionTypePractice   SessionType = "Practice"
	SessionTypeQualifying SessionType = "Qualifying"
	SessionTypeSprint     SessionType = "Sprint"
	SessionTypeRace       SessionType = "Race"
)

const (
	minSeason      = 1950
	maxSeason      = 2100
	maxEventLength = 64
)

var sessionTypes = []SessionType{
	SessionTypePractice,
	SessionTypeQualifying,
	SessionTypeSprint,
	SessionTypeRace,
}

// ParseSessionType matches the session type case-insensitively and returns the canonical spelling
func ParseSessionType(raw string) (SessionType, error) {
	trimmed := strings.TrimSpace(raw)
	for _, sessionType := range sessionTypes {
		if strings.EqualFold(trimmed, string(sessionType)) {
			return sessionType, nil
		}
	}
	return "", fmt.Errorf("%w: unknown session type '%s'", ErrCacheKeyInvalid, raw)
}

// HasLapTable reports whether sessions of this type carry lap-level race data
func (s SessionType) HasLapTable() bool {
	switch s {
	case SessionTypeQualifying, SessionTypeSprint, SessionTypeRace:
		return true
	}
	return false
}

// SessionKey uniquely identifies one session and one cache entry.
//
// The zero value is invalid. Use NewSessionKey to construct keys from user input.
type SessionKey struct {
	Season      int
	Event       string
	SessionType SessionType
}

func NewSessionKey(season int, event string, sessionType string) (SessionKey, error) {
	parsedType, err := ParseSessionType(sessionType)
	if err != nil {
		return SessionKey{}, err
	}

	key := SessionKey{
		Season:      season,
		Event:       strings.TrimSpace(event),
		SessionType: parsedType,
	}
	if err := key.Validate(); err != nil {
		return SessionKey{}, err
	}

	return key, nil
}

func (k SessionKey) Validate() error {
	if k.Season < minSeason || k.Season > maxSeason {
		return fmt.Errorf("%w: season %d outside [%d, %d]", ErrCacheKeyInvalid, k.Season, minSeason, maxSeason)
	}

	if k.Event == "" || strings.TrimSpace(k.Event) != k.Event {
		return fmt.Errorf("%w: event '%s' is empty or not trimmed", ErrCacheKeyInvalid, k.Event)
	}
	if len(k.Event) > maxEventLength {
		return fmt.Errorf("%w: event is longer than %d bytes", ErrCacheKeyInvalid, maxEventLength)
	}
	for _, char := range k.Event {
		if char == '/' || unicode.IsControl(char) {
			return fmt.Errorf("%w: event '%s' contains a forbidden character", ErrCacheKeyInvalid, k.Event)
		}
	}

	for _, sessionType := range sessionTypes {
		if k.SessionType == sessionType {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown session type '%s'", ErrCacheKeyInvalid, k.SessionType)
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Season, k.Event, k.SessionType)
}

// BlobName is the name used for the key in persistent stores
func (k SessionKey) BlobName() string {
	return fmt.Sprintf("%d/%s/%s", k.Season, strings.ReplaceAll(k.Event, " ", "_"), k.SessionType)
}
