package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// GormUserStore persists users in postgres.
type GormUserStore struct {
	db *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{db: db}
}

// translate maps driver errors onto the store's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return ErrEmailTaken
		case strings.Contains(pgErr.ConstraintName, "referral_code"):
			return ErrReferralCodeTaken
		}
	}
	return err
}

func (s *GormUserStore) Create(ctx context.Context, u *User) error {
	if u.PerksUnlocked == nil {
		u.PerksUnlocked = pq.StringArray{}
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *GormUserStore) first(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormUserStore) FindByReferralCode(ctx context.Context, code string) (*User, error) {
	return s.first(ctx, "referral_code = ?", code)
}

func (s *GormUserStore) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *GormUserStore) UpdateProfile(ctx context.Context, id string, f ProfileFields) (*User, error) {
	updates := map[string]any{}
	if f.Name != nil {
		updates["name"] = *f.Name
	}
	if f.Email != nil {
		updates["email"] = *f.Email
	}
	if f.PasswordHash != nil {
		updates["password_hash"] = *f.PasswordHash
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update user: %w", translate(res.Error))
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}

	return s.FindByID(ctx, id)
}

func (s *GormUserStore) SetRole(ctx context.Context, id, role string) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("set role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *GormUserStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *GormUserStore) CountReferredBy(ctx context.Context, id string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("referred_by = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}

// mergeArray unions a text[] column with new values inside postgres, so
// concurrent merges never drop each other's perks.
func mergeArray(column string, values []string) any {
	return gorm.Expr(
		"ARRAY(SELECT DISTINCT unnest(COALESCE("+column+", '{}'::text[]) || ?::text[]))",
		pq.StringArray(values),
	)
}

func (s *GormUserStore) SaveReferral(ctx context.Context, applicantID, referrerID string, applicantPerks, referrerPerks []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&User{}).
			Where("id = ? AND has_referral = ?", applicantID, false).
			Updates(map[string]any{
				"referred_by":    referrerID,
				"has_referral":   true,
				"perks_unlocked": mergeArray("perks_unlocked", applicantPerks),
			})
		if res.Error != nil {
			return fmt.Errorf("apply referral: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&User{}).Where("id = ?", applicantID).Count(&exists).Error; err != nil {
				return fmt.Errorf("apply referral: %w", err)
			}
			if exists == 0 {
				return ErrUserNotFound
			}
			return ErrReferralAlreadyApplied
		}

		res = tx.Model(&User{}).
			Where("id = ?", referrerID).
			Update("perks_unlocked", mergeArray("perks_unlocked", referrerPerks))
		if res.Error != nil {
			return fmt.Errorf("credit referrer: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}
