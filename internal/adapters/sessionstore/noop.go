package sessionstore

import (
	"context"
	"fmt"

	"github.com/Amund211/pitwall/internal/domain"
)

type noopStore struct{}

func NewNoopStore() *noopStore {
	return &noopStore{}
}

func (s *noopStore) Get(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
	return nil, fmt.Errorf("%w: no store configured", domain.ErrStoreMiss)
}

func (s *noopStore) Put(ctx context.Context, entry *domain.SessionEntry) error {
	return nil
}
