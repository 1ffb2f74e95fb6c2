package watchlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
)

var (
	errNameRequired   = apperror.Validation("Name is required")
	errSymbolRequired = apperror.Validation("Symbol is required")
	errNegativeAlert  = apperror.Validation("Price alert must be >= 0")
	errNoOwner        = apperror.Unauthenticated("Not authorized")
	errItemNotFound   = apperror.NotFound("Item not found")
	errNotOwner       = apperror.Forbidden("Not authorized")
	errSymbolTracked  = apperror.Conflict("Symbol already in watchlist")
)

// Policy switches the behaviours that differ between deployments.
type Policy struct {
	// UniqueSymbol rejects a second item with the same symbol for one owner.
	UniqueSymbol bool
}

// Service is the ownership-checked CRUD over a user's watchlist.
type Service struct {
	store  Store
	policy Policy
}

func NewService(store Store, policy Policy) *Service {
	return &Service{store: store, policy: policy}
}

// CreateInput is a new item as submitted by its owner.
type CreateInput struct {
	Name       string
	Symbol     string
	PriceAlert *float64
}

// Patch is a partial update. Nil fields keep their value; a set PriceAlert
// with a nil Value clears the alert.
type Patch struct {
	Name       *string
	Symbol     *string
	PriceAlert PriceAlert
}

func checkAlert(v *float64) error {
	if v != nil && *v < 0 {
		return errNegativeAlert
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	if userID == "" {
		return nil, errNoOwner
	}
	return s.store.ListByOwner(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Item, error) {
	if userID == "" {
		return nil, errNoOwner
	}

	name := strings.TrimSpace(in.Name)
	symbol := strings.TrimSpace(in.Symbol)
	switch {
	case name == "":
		return nil, errNameRequired
	case symbol == "":
		return nil, errSymbolRequired
	}
	if err := checkAlert(in.PriceAlert); err != nil {
		return nil, err
	}

	if s.policy.UniqueSymbol {
		_, err := s.store.FindByOwnerSymbol(ctx, userID, symbol)
		switch {
		case err == nil:
			return nil, errSymbolTracked
		case !errors.Is(err, ErrItemNotFound):
			return nil, fmt.Errorf("check symbol: %w", err)
		}
	}

	it := &Item{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Symbol:     symbol,
		PriceAlert: in.PriceAlert,
	}
	if err := s.store.Create(ctx, it); err != nil {
		if errors.Is(err, ErrDuplicateSymbol) {
			return nil, errSymbolTracked
		}
		return nil, err
	}
	return it, nil
}

// owned loads itemID and checks it belongs to userID. Existence is checked
// first so a stranger's item yields Forbidden rather than NotFound.
func (s *Service) owned(ctx context.Context, userID, itemID string) (*Item, error) {
	if userID == "" {
		return nil, errNoOwner
	}
	it, err := s.store.FindByID(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return nil, errItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, errNotOwner
	}
	return it, nil
}

func (s *Service) Update(ctx context.Context, userID, itemID string, patch Patch) (*Item, error) {
	it, err := s.owned(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	var f Fields
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errNameRequired
		}
		f.Name = &name
	}
	if patch.Symbol != nil {
		symbol := strings.TrimSpace(*patch.Symbol)
		if symbol == "" {
			return nil, errSymbolRequired
		}
		if symbol != it.Symbol {
			f.Symbol = &symbol
		}
	}
	if patch.PriceAlert.Set {
		if err := checkAlert(patch.PriceAlert.Value); err != nil {
			return nil, err
		}
		if patch.PriceAlert.Value == nil {
			f.ClearPriceAlert = true
		} else {
			f.PriceAlert = patch.PriceAlert.Value
		}
	}

	if f.Empty() {
		return it, nil
	}

	if s.policy.UniqueSymbol && f.Symbol != nil {
		_, err := s.store.FindByOwnerSymbol(ctx, userID, *f.Symbol)
		switch {
		case err == nil:
			return nil, errSymbolTracked
		case !errors.Is(err, ErrItemNotFound):
			return nil, fmt.Errorf("check symbol: %w", err)
		}
	}

	updated, err := s.store.Update(ctx, itemID, f)
	switch {
	case errors.Is(err, ErrItemNotFound):
		return nil, errItemNotFound
	case errors.Is(err, ErrDuplicateSymbol):
		return nil, errSymbolTracked
	case err != nil:
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	if _, err := s.owned(ctx, userID, itemID); err != nil {
		return err
	}
	err := s.store.Delete(ctx, itemID)
	if errors.Is(err, ErrItemNotFound) {
		return errItemNotFound
	}
	return err
}

// DeleteOwnedBy removes every item of userID. Used when an account is deleted.
func (s *Service) DeleteOwnedBy(ctx context.Context, userID string) (int64, error) {
	return s.store.DeleteByOwner(ctx, userID)
}
