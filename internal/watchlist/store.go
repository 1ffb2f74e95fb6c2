package watchlist

import (
	"context"
	"errors"
)

var (
	ErrItemNotFound    = errors.New("watchlist item not found")
	ErrDuplicateSymbol = errors.New("symbol already tracked by owner")
)

// Store persists watchlist items. Implementations must be safe for
// concurrent use and reflect a completed write in later reads.
type Store interface {
	Create(ctx context.Context, it *Item) error
	FindByID(ctx context.Context, id string) (*Item, error)
	FindByOwnerSymbol(ctx context.Context, ownerID, symbol string) (*Item, error)
	// ListByOwner returns the owner's items, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Item, error)
	Update(ctx context.Context, id string, f Fields) (*Item, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}
