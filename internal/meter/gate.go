package meter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/store"
)

// Denial reasons returned by CheckAllowed. The caller surfaces them so
// the user knows whether to upgrade the plan or buy credits.
const (
	ReasonQuotaExhausted = "monthly quota exhausted; upgrade the plan or purchase credits"
	ReasonNoCredits      = "no credits remaining; purchase credits to continue"
)

// Gate admits or refuses enrichment attempts based on the account's
// remaining allowance, and performs the post-attempt decrement.
type Gate struct {
	store         store.Store
	plans         *Catalog
	defaultPlanID string
	defaultQuota  int
	now           func() time.Time
}

// Option configures the gate.
type Option func(*Gate)

// WithNow overrides the clock. Used in tests.
func WithNow(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a metering gate. Accounts seen for the first time are
// created on the default plan.
func New(st store.Store, plans *Catalog, defaultPlanID string, defaultQuota int, opts ...Option) *Gate {
	g := &Gate{
		store:         st,
		plans:         plans,
		defaultPlanID: defaultPlanID,
		defaultQuota:  defaultQuota,
		now:           time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// CheckAllowed reports whether the account may start an enrichment
// attempt: quota headroom this period, or at least one credit. On
// refusal the reason says which allowance ran out. Any store failure
// refuses admission.
//
// The check is advisory. Concurrent attempts can each pass it and later
// push the period counter past the quota; the decrement never blocks a
// finished attempt.
func (g *Gate) CheckAllowed(ctx context.Context, accountID string) (bool, string, error) {
	acct, err := g.ensureAccount(ctx, accountID)
	if err != nil {
		return false, "", err
	}
	switch {
	case acct.QuotaRemaining() > 0 || acct.CreditBalance > 0:
		return true, "", nil
	case acct.MonthlyQuota > 0:
		return false, ReasonQuotaExhausted, nil
	default:
		return false, ReasonNoCredits, nil
	}
}

// Decrement consumes one enrichment for the finished attempt and logs
// costUSD, the attempt's full provider spend, in the audit transaction.
// The source is chosen at decrement time: quota while headroom remains,
// otherwise one credit. Calling it again for the same attempt is a
// no-op. A failure writing the audit transaction is logged but does
// not undo the decrement.
func (g *Gate) Decrement(ctx context.Context, accountID, attemptID string, costUSD float64) error {
	existing, err := g.store.GetUsageTransactionByAttempt(ctx, attemptID)
	if err != nil {
		return eris.Wrapf(err, "meter: look up attempt %s", attemptID)
	}
	if existing != nil {
		zap.L().Debug("attempt already metered",
			zap.String("attempt_id", attemptID),
			zap.String("source", existing.Source),
		)
		return nil
	}

	acct, err := g.ensureAccount(ctx, accountID)
	if err != nil {
		return err
	}

	source := model.UsageSourceCredit
	if acct.QuotaRemaining() > 0 {
		source = model.UsageSourceQuota
	}

	if err := g.store.ApplyUsage(ctx, accountID, source); err != nil {
		return eris.Wrapf(err, "meter: decrement %s", accountID)
	}

	txn := &model.UsageTransaction{
		AccountID: accountID,
		AttemptID: attemptID,
		Source:    source,
		CostUSD:   costUSD,
	}
	if err := g.store.AppendUsageTransaction(ctx, txn); err != nil {
		zap.L().Error("usage transaction write failed",
			zap.String("account_id", accountID),
			zap.String("attempt_id", attemptID),
			zap.String("source", source),
			zap.Error(err),
		)
	}

	zap.L().Info("usage decremented",
		zap.String("account_id", accountID),
		zap.String("attempt_id", attemptID),
		zap.String("source", source),
		zap.Float64("cost_usd", costUSD),
	)
	return nil
}

// Account returns the account's current allowance, creating it on the
// default plan if needed and rolling the period over when a new month
// has started.
func (g *Gate) Account(ctx context.Context, accountID string) (*model.UsageAccount, error) {
	return g.ensureAccount(ctx, accountID)
}

func (g *Gate) ensureAccount(ctx context.Context, accountID string) (*model.UsageAccount, error) {
	acct, err := g.store.GetUsageAccount(ctx, accountID)
	if err != nil {
		return nil, eris.Wrapf(err, "meter: get account %s", accountID)
	}

	now := g.now().UTC()

	if acct == nil {
		quota := g.defaultQuota
		if plan, ok := g.plans.Get(g.defaultPlanID); ok {
			quota = plan.MonthlyQuota
		}
		acct = &model.UsageAccount{
			ID:           accountID,
			PlanID:       g.defaultPlanID,
			MonthlyQuota: quota,
			PeriodStart:  monthStart(now),
		}
		if err := g.store.CreateUsageAccount(ctx, acct); err != nil {
			return nil, eris.Wrapf(err, "meter: create account %s", accountID)
		}
		return acct, nil
	}

	if start := monthStart(now); acct.PeriodStart.UTC().Before(start) {
		if err := g.store.ResetPeriod(ctx, accountID, start); err != nil {
			return nil, eris.Wrapf(err, "meter: reset period %s", accountID)
		}
		acct.ConsumedThisPeriod = 0
		acct.PeriodStart = start
	}
	return acct, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
