package domain

import "errors"

var (
	ErrCacheKeyInvalid        = errors.New("invalid session key")
	ErrProviderFetchFailed    = errors.New("provider fetch failed")
	ErrNormalizationFailed    = errors.New("normalization failed")
	ErrLapNotFound            = errors.New("lap not found")
	ErrTimeout                = errors.New("timed out waiting for session data")
	ErrSessionNotFound        = errors.New("session not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidChannel         = errors.New("invalid telemetry channel")
	ErrStoreMiss              = errors.New("session not in store")
)
