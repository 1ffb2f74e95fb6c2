// Package referral links referred accounts to their referrer and hands out
// the perks both sides earn.
package referral

import (
	"context"
	"errors"
	"strings"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
)

var (
	// ApplicantPerks are granted to the user who redeems a code.
	ApplicantPerks = []string{"Extended Watchlist Limit", "Advanced Price Alerts", "Ad-Free Dashboard"}
	// ReferrerPerks are granted to the owner of the redeemed code.
	ReferrerPerks = []string{"Referral Bonus Credit", "Early Access to Features"}
)

var (
	errCodeRequired   = apperror.Validation("Referral code is required.")
	errNoUser         = apperror.Unauthenticated("Unauthorized: No user found.")
	errInvalidCode    = apperror.NotFound("Invalid referral code.")
	errOwnCode        = apperror.SelfReferral("You cannot use your own referral code.")
	errUserNotFound   = apperror.NotFound("User not found.")
	errAlreadyApplied = apperror.AlreadyApplied("Referral code already applied.")
)

// Recorder observes referral outcomes; *metrics.Metrics satisfies it.
type Recorder interface {
	Referral(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) Referral(string) {}

type Service struct {
	users auth.UserStore
	rec   Recorder
}

func NewService(users auth.UserStore, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{users: users, rec: rec}
}

// Result is the applicant's state after a successful Apply.
type Result struct {
	User          *auth.User
	PerksUnlocked []string
}

// Apply redeems code for userID. Both accounts are updated in one atomic
// store call; a user whose referral is already recorded gets AlreadyApplied
// and no perks are credited twice.
func (s *Service) Apply(ctx context.Context, userID, code string) (*Result, error) {
	res, err := s.apply(ctx, userID, code)
	if err != nil {
		s.rec.Referral(apperror.Normalize(err).Kind.String())
		return nil, err
	}
	s.rec.Referral("applied")
	return res, nil
}

func (s *Service) apply(ctx context.Context, userID, code string) (*Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errCodeRequired
	}
	if userID == "" {
		return nil, errNoUser
	}

	referrer, err := s.users.FindByReferralCode(ctx, code)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, errInvalidCode
	}
	if err != nil {
		return nil, err
	}
	if referrer.ID == userID {
		return nil, errOwnCode
	}

	applicant, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if applicant.HasReferral {
		return nil, errAlreadyApplied
	}

	err = s.users.SaveReferral(ctx, applicant.ID, referrer.ID, ApplicantPerks, ReferrerPerks)
	switch {
	case errors.Is(err, auth.ErrReferralAlreadyApplied):
		return nil, errAlreadyApplied
	case errors.Is(err, auth.ErrUserNotFound):
		return nil, errUserNotFound
	case err != nil:
		return nil, err
	}

	updated, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{User: updated, PerksUnlocked: updated.PerksUnlocked}, nil
}

// Data is a user's own referral summary.
type Data struct {
	ReferralCode  string   `json:"referralCode"`
	ReferralCount int64    `json:"referralCount"`
	PerksUnlocked []string `json:"perksUnlocked"`
	HasReferral   bool     `json:"hasReferral"`
}

func (s *Service) Data(ctx context.Context, userID string) (*Data, error) {
	if userID == "" {
		return nil, errNoUser
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}

	count, err := s.users.CountReferredBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	perks := []string(user.PerksUnlocked)
	if perks == nil {
		perks = []string{}
	}
	return &Data{
		ReferralCode:  user.ReferralCode,
		ReferralCount: count,
		PerksUnlocked: perks,
		HasReferral:   user.HasReferral,
	}, nil
}

// Redeem is Apply without the result, for callers that only need the outcome.
func (s *Service) Redeem(ctx context.Context, userID, code string) error {
	_, err := s.Apply(ctx, userID, code)
	return err
}
