package sessionprovider

import (
	"context"

	"github.com/Amund211/pitwall/internal/domain"
)

type SessionProvider interface {
	// Raises domain.ErrSessionNotFound if the provider has no data for the session
	//
	// Raises domain.ErrTemporarilyUnavailable if the provider implementation receives an error believed to be intermittent. The call may be retried later.
	Fetch(ctx context.Context, key domain.SessionKey) (*RawSession, error)
}
