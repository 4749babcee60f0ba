package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-careerdesk/admins"
	"go-careerdesk/entitlement"
	"go-careerdesk/plan"
	"go-careerdesk/web/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user  = entitlement.Actor{UserID: "u-1", Email: "user@example.com"}
	admin = entitlement.Actor{UserID: "u-admin", Email: "admin@example.com"}
)

func newMeter(t *testing.T, freeCredits int64) (*Meter, *entitlement.Engine) {
	t.Helper()
	engine := entitlement.NewEngine(entitlement.NewMemoryStore(), entitlement.NewHub(),
		admins.New(admin.Email), entitlement.Options{FreeCredits: freeCredits})
	for _, a := range []entitlement.Actor{user, admin} {
		_, err := engine.Provision(context.Background(), a.UserID, a.Email)
		require.NoError(t, err)
	}
	return NewMeter(engine), engine
}

func credits(t *testing.T, e *entitlement.Engine, userID string) int64 {
	t.Helper()
	rec, err := e.Get(context.Background(), userID)
	require.NoError(t, err)
	return rec.Credits
}

func TestRunChargesOneCreditOnSuccess(t *testing.T) {
	m, e := newMeter(t, 2)
	calls := 0
	err := m.Run(context.Background(), user, plan.ResumeAnalysis, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), credits(t, e, user.UserID))
}

func TestRunRefundsOnFailure(t *testing.T) {
	m, e := newMeter(t, 1)
	boom := errors.New("runner unavailable")
	err := m.Run(context.Background(), user, plan.CoverLetter, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), credits(t, e, user.UserID))
}

func TestRunBlocksWithoutCredits(t *testing.T) {
	m, e := newMeter(t, 0)
	err := m.Run(context.Background(), user, plan.JobMatch, func(context.Context) error {
		t.Fatal("flow must not run without credits")
		return nil
	})
	assert.ErrorIs(t, err, ErrNoCredits)
	assert.Equal(t, int64(0), credits(t, e, user.UserID))
}

func TestRunLocksRecruiterFeatures(t *testing.T) {
	m, e := newMeter(t, 5)
	_, err := e.SetPlan(context.Background(), admin, user.UserID, plan.Pro, nil)
	require.NoError(t, err)

	err = m.Run(context.Background(), user, plan.CandidateMatch, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrFeatureLocked)

	err = m.Run(context.Background(), admin, plan.CandidateMatch, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRunDoesNotMeterPaidPlans(t *testing.T) {
	m, e := newMeter(t, 0)
	_, err := e.SetPlan(context.Background(), admin, user.UserID, plan.Essentials, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Run(context.Background(), user, plan.ATSOptimize, func(context.Context) error { return nil }))
	}
	assert.Equal(t, int64(0), credits(t, e, user.UserID))
}

// upgradingStore moves the user to pro right before the conditional
// decrement, as a concurrent payment would.
type upgradingStore struct {
	*entitlement.MemoryStore
	once sync.Once
}

func (s *upgradingStore) DecrementCredit(ctx context.Context, userID string) (db.Entitlement, bool, error) {
	s.once.Do(func() {
		_, _ = s.Update(ctx, userID, func(r *db.Entitlement) error {
			r.Plan = plan.Pro
			return nil
		})
	})
	return s.MemoryStore.DecrementCredit(ctx, userID)
}

func TestRunSkipsMeteringWhenUpgradedMidCall(t *testing.T) {
	store := &upgradingStore{MemoryStore: entitlement.NewMemoryStore()}
	engine := entitlement.NewEngine(store, entitlement.NewHub(), admins.New(admin.Email), entitlement.Options{FreeCredits: 0})
	_, err := engine.Provision(context.Background(), user.UserID, user.Email)
	require.NoError(t, err)

	calls := 0
	err = NewMeter(engine).Run(context.Background(), user, plan.ResumeAnalysis, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(0), credits(t, engine, user.UserID))
}
