package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/db"
	"github.com/metspa/network-buddy-sub000/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used in tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id           TEXT NOT NULL,
	first_name           TEXT NOT NULL DEFAULT '',
	last_name            TEXT NOT NULL DEFAULT '',
	company              TEXT NOT NULL DEFAULT '',
	job_title            TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	auto_filled_fields   JSONB,
	auto_fill_source     TEXT NOT NULL DEFAULT '',
	auto_fill_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	reputation_score     DOUBLE PRECISION,
	review_count         INTEGER NOT NULL DEFAULT 0,
	reviews              JSONB,
	photos               JSONB,
	profile_url          TEXT NOT NULL DEFAULT '',
	company_facts        JSONB,
	news                 JSONB,
	social_links         JSONB,
	summary              TEXT NOT NULL DEFAULT '',
	drafts               JSONB,
	sync_warning         TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	error                TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id    TEXT NOT NULL REFERENCES records(id),
	account_id   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	used_premium BOOLEAN NOT NULL DEFAULT false,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempt_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	attempt_id TEXT NOT NULL REFERENCES attempts(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_accounts (
	id                   TEXT PRIMARY KEY,
	plan_id              TEXT NOT NULL,
	monthly_quota        INTEGER NOT NULL DEFAULT 0,
	consumed_this_period INTEGER NOT NULL DEFAULT 0,
	credit_balance       INTEGER NOT NULL DEFAULT 0,
	period_start         TIMESTAMPTZ NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS usage_transactions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	account_id TEXT NOT NULL,
	attempt_id TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL,
	cost_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_account ON records(account_id);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_attempts_record ON attempts(record_id);
CREATE INDEX IF NOT EXISTS idx_attempt_phases_attempt ON attempt_phases(attempt_id);
CREATE INDEX IF NOT EXISTS idx_usage_txns_account ON usage_transactions(account_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgRecordColumns = `id, account_id, first_name, last_name, company, job_title,
	email, phone, auto_filled_fields, auto_fill_source, auto_fill_confidence,
	reputation_score, review_count, reviews, photos, profile_url,
	company_facts, news, social_links, summary, drafts, sync_warning,
	status, error, created_at, updated_at`

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RecordStatusPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO records (id, account_id, first_name, last_name, company, job_title,
			email, phone, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.AccountID, rec.FirstName, rec.LastName, rec.Company, rec.JobTitle,
		rec.Email, rec.Phone, string(rec.Status), now, now,
	)
	return eris.Wrap(err, "postgres: insert record")
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM records WHERE id = $1`, id)
	return scanPgRecord(row)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + pgRecordColumns + ` FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.AccountID != "" {
		query += fmt.Sprintf(` AND account_id = $%d`, argIdx)
		args = append(args, filter.AccountID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) SaveRecordFields(ctx context.Context, id string, fields map[string]any) error {
	cols, args, err := encodeRecordFields(fields)
	if err != nil {
		return err
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args = append(args, time.Now().UTC(), id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE records SET %s, updated_at = $%d WHERE id = $%d`,
			strings.Join(sets, ", "), len(cols)+1, len(cols)+2),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save record fields %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateAttempt(ctx context.Context, recordID, accountID string) (*model.Attempt, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (id, record_id, account_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, recordID, accountID, string(model.AttemptStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert attempt for record %s", recordID)
	}

	return &model.Attempt{
		ID:        id,
		RecordID:  recordID,
		AccountID: accountID,
		Status:    model.AttemptStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteAttempt(ctx context.Context, attemptID string, status model.AttemptStatus, usedPremium bool, costUSD float64, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE attempts SET status = $1, used_premium = $2, cost_usd = $3, error = $4, updated_at = $5
		 WHERE id = $6`,
		string(status), usedPremium, costUSD, errMsg, time.Now().UTC(), attemptID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete attempt %s", attemptID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("attempt not found: %s", attemptID)
	}
	return nil
}

func (s *PostgresStore) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	var a model.Attempt
	err := s.pool.QueryRow(ctx,
		`SELECT id, record_id, account_id, status, used_premium, cost_usd, error, created_at, updated_at
		 FROM attempts WHERE id = $1`, attemptID,
	).Scan(&a.ID, &a.RecordID, &a.AccountID, &a.Status, &a.UsedPremium, &a.CostUSD, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("attempt not found: %s", attemptID)
		}
		return nil, eris.Wrapf(err, "postgres: get attempt %s", attemptID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT result FROM attempt_phases WHERE attempt_id = $1 ORDER BY started_at, id`, attemptID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get attempt phases %s", attemptID)
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON []byte
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phase")
		}
		if len(resultJSON) == 0 {
			continue
		}
		var phase model.PhaseResult
		if err := json.Unmarshal(resultJSON, &phase); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal phase result")
		}
		a.Phases = append(a.Phases, phase)
	}
	return &a, eris.Wrap(rows.Err(), "postgres: phases iterate")
}

func (s *PostgresStore) RecordPhase(ctx context.Context, attemptID string, phase model.PhaseResult) error {
	resultJSON, err := json.Marshal(phase)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO attempt_phases (id, attempt_id, name, status, result, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), attemptID, phase.Name, string(phase.Status), resultJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert phase for attempt %s", attemptID)
}

func (s *PostgresStore) CreateUsageAccount(ctx context.Context, acct *model.UsageAccount) error {
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	if acct.PeriodStart.IsZero() {
		acct.PeriodStart = now
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_accounts (id, plan_id, monthly_quota, consumed_this_period,
			credit_balance, period_start, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		acct.ID, acct.PlanID, acct.MonthlyQuota, acct.ConsumedThisPeriod,
		acct.CreditBalance, acct.PeriodStart, now, now,
	)
	return eris.Wrapf(err, "postgres: insert usage account %s", acct.ID)
}

func (s *PostgresStore) GetUsageAccount(ctx context.Context, accountID string) (*model.UsageAccount, error) {
	var a model.UsageAccount
	err := s.pool.QueryRow(ctx,
		`SELECT id, plan_id, monthly_quota, consumed_this_period, credit_balance,
			period_start, created_at, updated_at
		 FROM usage_accounts WHERE id = $1`, accountID,
	).Scan(&a.ID, &a.PlanID, &a.MonthlyQuota, &a.ConsumedThisPeriod, &a.CreditBalance,
		&a.PeriodStart, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get usage account %s", accountID)
	}
	return &a, nil
}

func (s *PostgresStore) ApplyUsage(ctx context.Context, accountID string, source string) error {
	var query string
	switch source {
	case model.UsageSourceQuota:
		query = `UPDATE usage_accounts SET consumed_this_period = consumed_this_period + 1, updated_at = $1
			 WHERE id = $2`
	case model.UsageSourceCredit:
		query = `UPDATE usage_accounts SET credit_balance = credit_balance - 1, updated_at = $1
			 WHERE id = $2 AND credit_balance > 0`
	default:
		return eris.Errorf("postgres: unknown usage source %q", source)
	}

	tag, err := s.pool.Exec(ctx, query, time.Now().UTC(), accountID)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply usage %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		if source == model.UsageSourceCredit {
			return eris.Errorf("no credit remaining: %s", accountID)
		}
		return eris.Errorf("usage account not found: %s", accountID)
	}
	return nil
}

func (s *PostgresStore) AddCredits(ctx context.Context, accountID string, n int) error {
	if n <= 0 {
		return eris.New("postgres: credits must be positive")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE usage_accounts SET credit_balance = credit_balance + $1, updated_at = $2 WHERE id = $3`,
		n, time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: add credits %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("usage account not found: %s", accountID)
	}
	return nil
}

func (s *PostgresStore) ResetPeriod(ctx context.Context, accountID string, start time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE usage_accounts SET consumed_this_period = 0, period_start = $1, updated_at = $2
		 WHERE id = $3`,
		start.UTC(), time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset period %s", accountID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("usage account not found: %s", accountID)
	}
	return nil
}

func (s *PostgresStore) AppendUsageTransaction(ctx context.Context, txn *model.UsageTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_transactions (id, account_id, attempt_id, source, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.ID, txn.AccountID, txn.AttemptID, txn.Source, txn.CostUSD, txn.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert usage transaction for attempt %s", txn.AttemptID)
}

func (s *PostgresStore) GetUsageTransactionByAttempt(ctx context.Context, attemptID string) (*model.UsageTransaction, error) {
	var t model.UsageTransaction
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, attempt_id, source, cost_usd, created_at
		 FROM usage_transactions WHERE attempt_id = $1`, attemptID,
	).Scan(&t.ID, &t.AccountID, &t.AttemptID, &t.Source, &t.CostUSD, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get usage transaction %s", attemptID)
	}
	return &t, nil
}

func scanPgRecord(row pgx.Row) (*model.Record, error) {
	var r model.Record
	var autoFilled, reviews, photos, companyFacts, news, socialLinks, drafts []byte

	err := row.Scan(
		&r.ID, &r.AccountID, &r.FirstName, &r.LastName, &r.Company, &r.JobTitle,
		&r.Email, &r.Phone, &autoFilled, &r.AutoFillSource, &r.AutoFillConfidence,
		&r.ReputationScore, &r.ReviewCount, &reviews, &photos, &r.ProfileURL,
		&companyFacts, &news, &socialLinks, &r.Summary, &drafts, &r.SyncWarning,
		&r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: scan record")
	}

	for _, f := range []struct {
		src []byte
		dst any
	}{
		{autoFilled, &r.AutoFilledFields},
		{reviews, &r.Reviews},
		{photos, &r.Photos},
		{companyFacts, &r.CompanyFacts},
		{news, &r.News},
		{socialLinks, &r.SocialLinks},
		{drafts, &r.Drafts},
	} {
		if len(f.src) == 0 || string(f.src) == "null" {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record column")
		}
	}
	return &r, nil
}
