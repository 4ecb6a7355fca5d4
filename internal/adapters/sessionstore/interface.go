package sessionstore

import (
	"context"

	"github.com/Amund211/pitwall/internal/domain"
)

type SessionStore interface {
	// Raises domain.ErrStoreMiss if no entry is stored for the key
	Get(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error)
	Put(ctx context.Context, entry *domain.SessionEntry) error
}
