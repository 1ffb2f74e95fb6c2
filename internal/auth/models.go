package auth

import (
	"time"

	"github.com/lib/pq"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account. PasswordHash never leaves the server.
type User struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Email         string         `gorm:"uniqueIndex:users_email_key;not null" json:"email"`
	PasswordHash  string         `gorm:"not null" json:"-"`
	Role          string         `gorm:"not null;default:'user'" json:"role"`
	ReferralCode  string         `gorm:"uniqueIndex:users_referral_code_key;not null" json:"referralCode"`
	ReferredBy    *string        `gorm:"type:uuid;index" json:"referredBy"`
	HasReferral   bool           `gorm:"not null;default:false" json:"hasReferral"`
	PerksUnlocked pq.StringArray `gorm:"type:text[]" json:"perksUnlocked"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (User) TableName() string { return "app_auth.users" }

// Summary is the short form returned by register and login.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// ProfileFields holds the profile columns an update may touch. Nil means unchanged.
type ProfileFields struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

func (p ProfileFields) Empty() bool {
	return p.Name == nil && p.Email == nil && p.PasswordHash == nil
}

// MergePerks returns the set union of have and add, keeping have's order.
func MergePerks(have []string, add ...string) []string {
	seen := make(map[string]struct{}, len(have)+len(add))
	out := make([]string, 0, len(have)+len(add))
	for _, list := range [][]string{have, add} {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
