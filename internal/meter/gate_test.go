package meter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/store"
)

func newTestGate(t *testing.T, opts ...Option) (*Gate, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	g := New(st, DefaultCatalog(), "free", 10, opts...)
	return g, st
}

func TestCheckAllowed_NewAccountGetsDefaultPlan(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	allowed, reason, err := g.CheckAllowed(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)

	acct, err := st.GetUsageAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "free", acct.PlanID)
	assert.Equal(t, 10, acct.MonthlyQuota)
}

func TestCheckAllowed_RefusesWhenExhausted(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUsageAccount(ctx, &model.UsageAccount{
		ID: "acct-1", PlanID: "free", MonthlyQuota: 1, ConsumedThisPeriod: 1, CreditBalance: 0,
		PeriodStart: monthStart(time.Now().UTC()),
	}))

	allowed, reason, err := g.CheckAllowed(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, ReasonQuotaExhausted, reason)
}

func TestCheckAllowed_NoQuotaPlanReportsCredits(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUsageAccount(ctx, &model.UsageAccount{
		ID: "acct-1", PlanID: "payg", MonthlyQuota: 0, CreditBalance: 0,
		PeriodStart: monthStart(time.Now().UTC()),
	}))

	allowed, reason, err := g.CheckAllowed(ctx, "acct-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, ReasonNoCredits, reason)
}

func TestCheckAllowed_CreditsAdmitWithoutQuota(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUsageAccount(ctx, &model.UsageAccount{
		ID: "acct-1", PlanID: "free", MonthlyQuota: 1, ConsumedThisPeriod: 1, CreditBalance: 3,
		PeriodStart: monthStart(time.Now().UTC()),
	}))

	allowed, reason, err := g.CheckAllowed(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestCheckAllowed_FailsClosed(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())

	g := New(st, DefaultCatalog(), "free", 10)

	allowed, _, err := g.CheckAllowed(context.Background(), "acct-1")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestDecrement_QuotaFirstThenCredit(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, st.CreateUsageAccount(ctx, &model.UsageAccount{
		ID: "acct-1", PlanID: "free", MonthlyQuota: 1, CreditBalance: 1,
		PeriodStart: monthStart(time.Now().UTC()),
	}))

	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-1", 0.05))
	txn, err := st.GetUsageTransactionByAttempt(ctx, "attempt-1")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, model.UsageSourceQuota, txn.Source)

	// Quota now exhausted, so the next attempt draws a credit.
	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-2", 0.05))
	txn, err = st.GetUsageTransactionByAttempt(ctx, "attempt-2")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, model.UsageSourceCredit, txn.Source)

	acct, err := st.GetUsageAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, acct.ConsumedThisPeriod)
	assert.Equal(t, 0, acct.CreditBalance)
}

func TestDecrement_IdempotentPerAttempt(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-1", 0.05))
	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-1", 0.05))
	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-1", 0.15))

	acct, err := st.GetUsageAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, acct.ConsumedThisPeriod)
}

func TestDecrement_RecordsAttemptCost(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-basic", 0.05))
	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-premium", 0.16028))

	basic, err := st.GetUsageTransactionByAttempt(ctx, "attempt-basic")
	require.NoError(t, err)
	premium, err := st.GetUsageTransactionByAttempt(ctx, "attempt-premium")
	require.NoError(t, err)

	assert.InDelta(t, 0.05, basic.CostUSD, 1e-9)
	assert.InDelta(t, 0.16028, premium.CostUSD, 1e-9)
}

// failingTxnStore makes the audit log unwritable while the rest of the
// store keeps working.
type failingTxnStore struct {
	store.Store
}

func (f *failingTxnStore) AppendUsageTransaction(ctx context.Context, txn *model.UsageTransaction) error {
	return errors.New("disk full")
}

func TestDecrement_TransactionWriteFailureDoesNotBlock(t *testing.T) {
	_, st := newTestGate(t)
	g := New(&failingTxnStore{Store: st}, DefaultCatalog(), "free", 10)
	ctx := context.Background()

	require.NoError(t, g.Decrement(ctx, "acct-1", "attempt-1", 0.05))

	acct, err := st.GetUsageAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 1, acct.ConsumedThisPeriod)
}

func TestEnsureAccount_PeriodRollover(t *testing.T) {
	clock := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	g, st := newTestGate(t, WithNow(func() time.Time { return clock }))
	ctx := context.Background()

	require.NoError(t, st.CreateUsageAccount(ctx, &model.UsageAccount{
		ID: "acct-1", PlanID: "free", MonthlyQuota: 10, ConsumedThisPeriod: 10,
		PeriodStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Exhausted last month, but a new period has started.
	allowed, _, err := g.CheckAllowed(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, allowed)

	acct, err := st.GetUsageAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, 0, acct.ConsumedThisPeriod)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), acct.PeriodStart.UTC())
}
