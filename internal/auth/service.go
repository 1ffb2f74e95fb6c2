package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/utils"
)

const (
	referralCodeLength   = 6
	referralCodeAttempts = 5
	referralAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	errInvalidCredentials = apperror.Unauthenticated("Invalid email or password")
	errEmailRegistered    = apperror.Conflict("Email already registered").WithStatus(http.StatusBadRequest)
	errUserNotFound       = apperror.NotFound("User not found")
)

// OwnedData is data keyed by user that goes away with the account.
type OwnedData interface {
	DeleteOwnedBy(ctx context.Context, userID string) (int64, error)
}

// Service owns account creation, credential checks and profile changes.
type Service struct {
	store  UserStore
	hasher PasswordHasher
	owned  []OwnedData
}

func NewService(store UserStore, hasher PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// CascadeTo makes Delete remove d's rows for the user before the account.
func (s *Service) CascadeTo(d OwnedData) {
	s.owned = append(s.owned, d)
}

// NormalizeEmail trims and lowercases an address. A Caser is stateful, so
// each call gets its own.
func (s *Service) NormalizeEmail(email string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// Create registers a new account with a freshly generated referral code.
func (s *Service) Create(ctx context.Context, name, email, rawPassword string) (*User, error) {
	email = s.NormalizeEmail(email)

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, errEmailRegistered
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hashed, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hashed,
		Role:         RoleUser,
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}
		user.ReferralCode = code

		err = s.store.Create(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, ErrReferralCodeTaken):
			continue
		case errors.Is(err, ErrEmailTaken):
			return nil, errEmailRegistered
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("create user: no free referral code after %d attempts", referralCodeAttempts)
}

// VerifyCredentials returns the user when rawPassword matches. Unknown
// emails and wrong passwords fail identically.
func (s *Service) VerifyCredentials(ctx context.Context, email, rawPassword string) (*User, error) {
	user, err := s.store.FindByEmail(ctx, s.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, rawPassword); err != nil {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Name     *string
	Email    *string
	Password *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*User, error) {
	var fields ProfileFields

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		fields.Name = &name
	}
	if patch.Email != nil {
		email := s.NormalizeEmail(*patch.Email)
		fields.Email = &email
	}
	if patch.Password != nil {
		hashed, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		fields.PasswordHash = &hashed
	}

	user, err := s.store.UpdateProfile(ctx, userID, fields)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil, errUserNotFound
	case errors.Is(err, ErrEmailTaken):
		return nil, errEmailRegistered
	case err != nil:
		return nil, err
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, errUserNotFound
	}
	return user, err
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// Delete removes the account and, when cascading is configured, its owned
// data first. Without a cascade, owned rows are left orphaned.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}

	for _, d := range s.owned {
		if _, err := d.DeleteOwnedBy(ctx, userID); err != nil {
			return fmt.Errorf("delete owned data: %w", err)
		}
	}

	err := s.store.Delete(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return errUserNotFound
	}
	return err
}

// Promote sets the role of the account registered with email.
func (s *Service) Promote(ctx context.Context, email, role string) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, apperror.Validation("Unknown role " + role)
	}
	user, err := s.store.FindByEmail(ctx, s.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, errUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.store.SetRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// FindIdentity resolves a token subject to a live account for the auth middleware.
func (s *Service) FindIdentity(ctx context.Context, userID string) (utils.Identity, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return utils.Identity{}, err
	}
	return utils.Identity{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
	}, nil
}

// IsNotFound reports whether err means the account does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		buf[i] = referralAlphabet[n.Int64()]
	}
	return string(buf), nil
}
