package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// OwnerSymbolIndex is the unique index backing the one-symbol-per-owner policy.
const OwnerSymbolIndex = "watchlist_items_owner_symbol_key"

// GormStore persists items in postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrItemNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == OwnerSymbolIndex:
			return ErrDuplicateSymbol
		case pgErr.Code == "22P02":
			// malformed uuid in a lookup
			return ErrItemNotFound
		}
	}
	return err
}

func (s *GormStore) Create(ctx context.Context, it *Item) error {
	if err := s.db.WithContext(ctx).Create(it).Error; err != nil {
		return fmt.Errorf("create watchlist item: %w", translate(err))
	}
	return nil
}

func (s *GormStore) first(ctx context.Context, query string, args ...any) (*Item, error) {
	var it Item
	if err := s.db.WithContext(ctx).Where(query, args...).First(&it).Error; err != nil {
		return nil, translate(err)
	}
	return &it, nil
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*Item, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) FindByOwnerSymbol(ctx context.Context, ownerID, symbol string) (*Item, error) {
	return s.first(ctx, "user_id = ? AND symbol = ?", ownerID, symbol)
}

func (s *GormStore) ListByOwner(ctx context.Context, ownerID string) ([]Item, error) {
	items := make([]Item, 0)
	err := s.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return items, nil
}

func (s *GormStore) Update(ctx context.Context, id string, f Fields) (*Item, error) {
	updates := map[string]any{}
	if f.Name != nil {
		updates["name"] = *f.Name
	}
	if f.Symbol != nil {
		updates["symbol"] = *f.Symbol
	}
	switch {
	case f.ClearPriceAlert:
		updates["price_alert"] = nil
	case f.PriceAlert != nil:
		updates["price_alert"] = *f.PriceAlert
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&Item{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update watchlist item: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, ErrItemNotFound
		}
	}

	return s.FindByID(ctx, id)
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Item{})
	if res.Error != nil {
		return fmt.Errorf("delete watchlist item: %w", translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *GormStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Delete(&Item{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete watchlist for owner: %w", res.Error)
	}
	return res.RowsAffected, nil
}
