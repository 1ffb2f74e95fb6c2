package auth

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrEmailTaken             = errors.New("email already registered")
	ErrReferralCodeTaken      = errors.New("referral code already in use")
	ErrReferralAlreadyApplied = errors.New("referral already applied")
)

// UserStore persists accounts. Implementations must be safe for concurrent use.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByReferralCode(ctx context.Context, code string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, id string, fields ProfileFields) (*User, error)
	SetRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
	CountReferredBy(ctx context.Context, id string) (int64, error)

	// SaveReferral links applicant to referrer and unions both perk lists in
	// one atomic step. It fails with ErrReferralAlreadyApplied when the
	// applicant already has a referral, leaving both records untouched.
	SaveReferral(ctx context.Context, applicantID, referrerID string, applicantPerks, referrerPerks []string) error
}
