package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
)

// MemoryUserStore keeps users in process memory. Used by tests and the
// STORAGE=memory development mode.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	byCode  map[string]string
	now     func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		byCode:  make(map[string]string),
		now:     time.Now,
	}
}

func cloneUser(u *User) *User {
	cp := *u
	cp.PerksUnlocked = append(pq.StringArray{}, u.PerksUnlocked...)
	if u.ReferredBy != nil {
		ref := *u.ReferredBy
		cp.ReferredBy = &ref
	}
	return &cp
}

func (s *MemoryUserStore) Create(ctx context.Context, u *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	if _, ok := s.byCode[u.ReferralCode]; ok {
		return ErrReferralCodeTaken
	}

	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.PerksUnlocked == nil {
		u.PerksUnlocked = pq.StringArray{}
	}

	s.byID[u.ID] = cloneUser(u)
	s.byEmail[u.Email] = u.ID
	s.byCode[u.ReferralCode] = u.ID
	return nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryUserStore) findByIndex(ctx context.Context, index map[string]string, key string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findByIndex(ctx, s.byEmail, email)
}

func (s *MemoryUserStore) FindByReferralCode(ctx context.Context, code string) (*User, error) {
	return s.findByIndex(ctx, s.byCode, code)
}

func (s *MemoryUserStore) List(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, *cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryUserStore) UpdateProfile(ctx context.Context, id string, f ProfileFields) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	if f.Email != nil && *f.Email != u.Email {
		if _, taken := s.byEmail[*f.Email]; taken {
			return nil, ErrEmailTaken
		}
		delete(s.byEmail, u.Email)
		u.Email = *f.Email
		s.byEmail[u.Email] = u.ID
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.PasswordHash != nil {
		u.PasswordHash = *f.PasswordHash
	}
	u.UpdatedAt = s.now()

	return cloneUser(u), nil
}

func (s *MemoryUserStore) SetRole(ctx context.Context, id, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now()
	return nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.byCode, u.ReferralCode)
	delete(s.byID, id)
	return nil
}

func (s *MemoryUserStore) CountReferredBy(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, u := range s.byID {
		if u.ReferredBy != nil && *u.ReferredBy == id {
			n++
		}
	}
	return n, nil
}

func (s *MemoryUserStore) SaveReferral(ctx context.Context, applicantID, referrerID string, applicantPerks, referrerPerks []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	applicant, ok := s.byID[applicantID]
	if !ok {
		return ErrUserNotFound
	}
	referrer, ok := s.byID[referrerID]
	if !ok {
		return ErrUserNotFound
	}
	if applicant.HasReferral {
		return ErrReferralAlreadyApplied
	}

	now := s.now()
	ref := referrerID
	applicant.ReferredBy = &ref
	applicant.HasReferral = true
	applicant.PerksUnlocked = MergePerks(applicant.PerksUnlocked, applicantPerks...)
	applicant.UpdatedAt = now
	referrer.PerksUnlocked = MergePerks(referrer.PerksUnlocked, referrerPerks...)
	referrer.UpdatedAt = now
	return nil
}
