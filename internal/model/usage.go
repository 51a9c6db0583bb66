package model

import "time"

// UsageAccount tracks an account's enrichment allowance: a monthly quota
// from its plan plus a prepaid, non-expiring credit balance.
//
// The consumed <= quota relation is not enforced here; admission and
// decrement decisions belong to the metering gate.
type UsageAccount struct {
	ID                 string    `json:"id"`
	PlanID             string    `json:"plan_id"`
	MonthlyQuota       int       `json:"monthly_quota"`
	ConsumedThisPeriod int       `json:"consumed_this_period"`
	CreditBalance      int       `json:"credit_balance"`
	PeriodStart        time.Time `json:"period_start"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// QuotaRemaining reports how many quota-covered enrichments are left this period.
func (a *UsageAccount) QuotaRemaining() int {
	if r := a.MonthlyQuota - a.ConsumedThisPeriod; r > 0 {
		return r
	}
	return 0
}

// UsageTransaction is an immutable audit row recording one metered decrement.
type UsageTransaction struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	AttemptID string    `json:"attempt_id"`
	Source    string    `json:"source"` // "quota" or "credit"
	CostUSD   float64   `json:"cost_usd"`
	CreatedAt time.Time `json:"created_at"`
}

// Decrement sources.
const (
	UsageSourceQuota  = "quota"
	UsageSourceCredit = "credit"
)
