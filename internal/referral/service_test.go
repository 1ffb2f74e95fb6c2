package referral

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/auth"
)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *countingRecorder) Referral(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = map[string]int{}
	}
	c.outcomes[outcome]++
}

type fixture struct {
	store *auth.MemoryUserStore
	svc   *Service
	rec   *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := auth.NewMemoryUserStore()
	rec := &countingRecorder{}
	return &fixture{store: store, svc: NewService(store, rec), rec: rec}
}

func (f *fixture) user(t *testing.T, name, email string) *auth.User {
	t.Helper()
	users := auth.NewService(f.store, auth.NewBcryptHasher(bcrypt.MinCost))
	u, err := users.Create(context.Background(), name, email, "Passw0rd")
	require.NoError(t, err)
	return u
}

func (f *fixture) reload(t *testing.T, id string) *auth.User {
	t.Helper()
	u, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestApply_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.user(t, "Alice", "alice@example.com")
	applicant := f.user(t, "Bob", "bob@example.com")

	res, err := f.svc.Apply(ctx, applicant.ID, referrer.ReferralCode)
	require.NoError(t, err)
	assert.ElementsMatch(t, ApplicantPerks, res.PerksUnlocked)
	assert.True(t, res.User.HasReferral)

	got := f.reload(t, applicant.ID)
	require.NotNil(t, got.ReferredBy)
	assert.Equal(t, referrer.ID, *got.ReferredBy)
	assert.True(t, got.HasReferral)

	ref := f.reload(t, referrer.ID)
	assert.ElementsMatch(t, ReferrerPerks, []string(ref.PerksUnlocked))
	assert.False(t, ref.HasReferral, "crediting the referrer must not mark them as referred")
	assert.Equal(t, 1, f.rec.outcomes["applied"])
}

func TestApply_SecondTimeIsRejectedAndPerksUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.user(t, "Alice", "alice@example.com")
	other := f.user(t, "Carol", "carol@example.com")
	applicant := f.user(t, "Bob", "bob@example.com")

	_, err := f.svc.Apply(ctx, applicant.ID, referrer.ReferralCode)
	require.NoError(t, err)
	before := f.reload(t, applicant.ID)

	for _, code := range []string{referrer.ReferralCode, other.ReferralCode} {
		_, err = f.svc.Apply(ctx, applicant.ID, code)
		assert.True(t, apperror.Is(err, apperror.KindAlreadyApplied), "got %v", err)
		assert.Equal(t, "Referral code already applied.", apperror.Normalize(err).Message)
	}

	after := f.reload(t, applicant.ID)
	assert.Equal(t, before.PerksUnlocked, after.PerksUnlocked)
	assert.Equal(t, *before.ReferredBy, *after.ReferredBy)
	assert.Empty(t, f.reload(t, other.ID).PerksUnlocked)
	assert.Equal(t, 2, f.rec.outcomes["already_applied"])
}

func TestApply_OwnCode(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", "alice@example.com")

	_, err := f.svc.Apply(context.Background(), alice.ID, alice.ReferralCode)

	assert.True(t, apperror.Is(err, apperror.KindSelfReferral))
	assert.Equal(t, 400, apperror.Normalize(err).HTTPStatus())
	assert.False(t, f.reload(t, alice.ID).HasReferral)
}

func TestApply_Rejections(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", "alice@example.com")
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		code   string
		kind   apperror.Kind
		msg    string
	}{
		{"empty code", alice.ID, "  ", apperror.KindValidation, "Referral code is required."},
		{"no caller", "", alice.ReferralCode, apperror.KindUnauthenticated, "Unauthorized: No user found."},
		{"unknown code", alice.ID, "ZZZZZZ", apperror.KindNotFound, "Invalid referral code."},
		{"caller vanished", "00000000-0000-0000-0000-000000000000", alice.ReferralCode, apperror.KindNotFound, "User not found."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Apply(ctx, tc.userID, tc.code)
			require.Error(t, err)
			appErr := apperror.Normalize(err)
			assert.Equal(t, tc.kind, appErr.Kind)
			assert.Equal(t, tc.msg, appErr.Message)
		})
	}
}

func TestApply_ExistingPerksAreMergedWithoutDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	carol := f.user(t, "Carol", "carol@example.com")

	// alice refers two people; her perks must not repeat
	_, err := f.svc.Apply(ctx, bob.ID, alice.ReferralCode)
	require.NoError(t, err)
	_, err = f.svc.Apply(ctx, carol.ID, alice.ReferralCode)
	require.NoError(t, err)

	assert.Len(t, f.reload(t, alice.ID).PerksUnlocked, len(ReferrerPerks))

	// bob, already holding applicant perks, later earns referrer perks too
	dave := f.user(t, "Dave", "dave@example.com")
	_, err = f.svc.Apply(ctx, dave.ID, bob.ReferralCode)
	require.NoError(t, err)

	perks := f.reload(t, bob.ID).PerksUnlocked
	assert.Len(t, perks, len(ApplicantPerks)+len(ReferrerPerks))
	assert.ElementsMatch(t, append(append([]string{}, ApplicantPerks...), ReferrerPerks...), []string(perks))
}

func TestApply_ConcurrentRedemptionCreditsOnce(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.svc.Redeem(context.Background(), bob.ID, alice.ReferralCode); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Len(t, f.reload(t, bob.ID).PerksUnlocked, len(ApplicantPerks))
}

func TestData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	carol := f.user(t, "Carol", "carol@example.com")

	data, err := f.svc.Data(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ReferralCode, data.ReferralCode)
	assert.Equal(t, int64(0), data.ReferralCount)
	assert.NotNil(t, data.PerksUnlocked)

	require.NoError(t, f.svc.Redeem(ctx, bob.ID, alice.ReferralCode))
	require.NoError(t, f.svc.Redeem(ctx, carol.ID, alice.ReferralCode))

	data, err = f.svc.Data(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), data.ReferralCount)
	assert.ElementsMatch(t, ReferrerPerks, data.PerksUnlocked)

	_, err = f.svc.Data(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
