// Package store persists records, enrichment attempts, and usage accounting.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

// RecordFilter specifies criteria for listing records.
type RecordFilter struct {
	AccountID string             `json:"account_id,omitempty"`
	Status    model.RecordStatus `json:"status,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Offset    int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment flow.
type Store interface {
	// Records
	CreateRecord(ctx context.Context, rec *model.Record) error
	// GetRecord returns (nil, nil) when no record exists with the id.
	GetRecord(ctx context.Context, id string) (*model.Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)
	// SaveRecordFields writes only the given columns, leaving the rest of
	// the row untouched. Keys must come from the saveable column whitelist.
	SaveRecordFields(ctx context.Context, id string, fields map[string]any) error
	UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus, errMsg string) error

	// Attempts
	CreateAttempt(ctx context.Context, recordID, accountID string) (*model.Attempt, error)
	CompleteAttempt(ctx context.Context, attemptID string, status model.AttemptStatus, usedPremium bool, costUSD float64, errMsg string) error
	GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error)
	// RecordPhase appends one finished phase to an attempt's audit trail.
	RecordPhase(ctx context.Context, attemptID string, phase model.PhaseResult) error

	// Usage accounts
	CreateUsageAccount(ctx context.Context, acct *model.UsageAccount) error
	// GetUsageAccount returns (nil, nil) when the account does not exist.
	GetUsageAccount(ctx context.Context, accountID string) (*model.UsageAccount, error)
	// ApplyUsage consumes one enrichment from the given source: quota
	// increments the period counter, credit decrements the balance and
	// fails when no credit remains.
	ApplyUsage(ctx context.Context, accountID string, source string) error
	AddCredits(ctx context.Context, accountID string, n int) error
	ResetPeriod(ctx context.Context, accountID string, start time.Time) error
	AppendUsageTransaction(ctx context.Context, txn *model.UsageTransaction) error
	// GetUsageTransactionByAttempt returns (nil, nil) when no decrement
	// has been recorded for the attempt.
	GetUsageTransactionByAttempt(ctx context.Context, attemptID string) (*model.UsageTransaction, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// recordFieldColumns whitelists the columns SaveRecordFields may touch.
// The value marks columns stored as JSON text.
var recordFieldColumns = map[string]bool{
	"first_name": false,
	"last_name":  false,
	"company":    false,
	"job_title":  false,
	"email":      false,
	"phone":      false,

	"auto_filled_fields":   true,
	"auto_fill_source":     false,
	"auto_fill_confidence": false,

	"reputation_score": false,
	"review_count":     false,
	"reviews":          true,
	"photos":           true,
	"profile_url":      false,
	"company_facts":    true,
	"news":             true,
	"social_links":     true,
	"summary":          false,
	"drafts":           true,
	"sync_warning":     false,
}

// encodeRecordFields validates a partial-save field map against the
// whitelist and returns column names in deterministic order alongside
// their encoded values.
func encodeRecordFields(fields map[string]any) ([]string, []any, error) {
	if len(fields) == 0 {
		return nil, nil, eris.New("store: no fields to save")
	}

	cols := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := recordFieldColumns[k]; !ok {
			return nil, nil, eris.Errorf("store: field not saveable: %s", k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols))
	for _, col := range cols {
		v := fields[col]
		if recordFieldColumns[col] {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, nil, eris.Wrapf(err, "store: marshal field %s", col)
			}
			args = append(args, string(b))
		} else {
			args = append(args, v)
		}
	}
	return cols, args, nil
}
