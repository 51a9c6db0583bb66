package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/metspa/network-buddy-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id                   TEXT PRIMARY KEY,
	account_id           TEXT NOT NULL,
	first_name           TEXT NOT NULL DEFAULT '',
	last_name            TEXT NOT NULL DEFAULT '',
	company              TEXT NOT NULL DEFAULT '',
	job_title            TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL DEFAULT '',
	phone                TEXT NOT NULL DEFAULT '',
	auto_filled_fields   TEXT,
	auto_fill_source     TEXT NOT NULL DEFAULT '',
	auto_fill_confidence REAL NOT NULL DEFAULT 0,
	reputation_score     REAL,
	review_count         INTEGER NOT NULL DEFAULT 0,
	reviews              TEXT,
	photos               TEXT,
	profile_url          TEXT NOT NULL DEFAULT '',
	company_facts        TEXT,
	news                 TEXT,
	social_links         TEXT,
	summary              TEXT NOT NULL DEFAULT '',
	drafts               TEXT,
	sync_warning         TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'pending',
	error                TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL REFERENCES records(id),
	account_id   TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	used_premium INTEGER NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempt_phases (
	id         TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL REFERENCES attempts(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_accounts (
	id                   TEXT PRIMARY KEY,
	plan_id              TEXT NOT NULL,
	monthly_quota        INTEGER NOT NULL DEFAULT 0,
	consumed_this_period INTEGER NOT NULL DEFAULT 0,
	credit_balance       INTEGER NOT NULL DEFAULT 0,
	period_start         DATETIME NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS usage_transactions (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	attempt_id TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL,
	cost_usd   REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_account ON records(account_id);
CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_attempts_record ON attempts(record_id);
CREATE INDEX IF NOT EXISTS idx_attempt_phases_attempt ON attempt_phases(attempt_id);
CREATE INDEX IF NOT EXISTS idx_usage_txns_account ON usage_transactions(account_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const recordColumns = `id, account_id, first_name, last_name, company, job_title,
	email, phone, auto_filled_fields, auto_fill_source, auto_fill_confidence,
	reputation_score, review_count, reviews, photos, profile_url,
	company_facts, news, social_links, summary, drafts, sync_warning,
	status, error, created_at, updated_at`

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RecordStatusPending
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, account_id, first_name, last_name, company, job_title,
			email, phone, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.FirstName, rec.LastName, rec.Company, rec.JobTitle,
		rec.Email, rec.Phone, string(rec.Status), now, now,
	)
	return eris.Wrap(err, "sqlite: insert record")
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE 1=1`
	var args []any

	if filter.AccountID != "" {
		query += ` AND account_id = ?`
		args = append(args, filter.AccountID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) SaveRecordFields(ctx context.Context, id string, fields map[string]any) error {
	cols, args, err := encodeRecordFields(fields)
	if err != nil {
		return err
	}

	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = col + " = ?"
	}
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET `+strings.Join(sets, ", ")+`, updated_at = ? WHERE id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save record fields %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record status %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) CreateAttempt(ctx context.Context, recordID, accountID string) (*model.Attempt, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, record_id, account_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, recordID, accountID, string(model.AttemptStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert attempt for record %s", recordID)
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

func (s *SQLiteStore) CompleteAttempt(ctx context.Context, attemptID string, status model.AttemptStatus, usedPremium bool, costUSD float64, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status = ?, used_premium = ?, cost_usd = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), usedPremium, costUSD, errMsg, time.Now().UTC(), attemptID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete attempt %s", attemptID)
	}
	return checkRowsAffected(res, "attempt", attemptID)
}

func (s *SQLiteStore) GetAttempt(ctx context.Context, attemptID string) (*model.Attempt, error) {
	var a model.Attempt
	var usedPremium int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, record_id, account_id, status, used_premium, cost_usd, error, created_at, updated_at
		 FROM attempts WHERE id = ?`, attemptID,
	).Scan(&a.ID, &a.RecordID, &a.AccountID, &a.Status, &usedPremium, &a.CostUSD, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("attempt not found: %s", attemptID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get attempt %s", attemptID)
	}
	a.UsedPremium = usedPremium != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM attempt_phases WHERE attempt_id = ? ORDER BY started_at, id`, attemptID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get attempt phases %s", attemptID)
	}
	defer rows.Close()

	for rows.Next() {
		var resultJSON sql.NullString
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if !resultJSON.Valid {
			continue
		}
		var phase model.PhaseResult
		if err := json.Unmarshal([]byte(resultJSON.String), &phase); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal phase result")
		}
		a.Phases = append(a.Phases, phase)
	}
	return &a, eris.Wrap(rows.Err(), "sqlite: phases iterate")
}

func (s *SQLiteStore) RecordPhase(ctx context.Context, attemptID string, phase model.PhaseResult) error {
	resultJSON, err := json.Marshal(phase)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempt_phases (id, attempt_id, name, status, result, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), attemptID, phase.Name, string(phase.Status), string(resultJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert phase for attempt %s", attemptID)
}

func (s *SQLiteStore) CreateUsageAccount(ctx context.Context, acct *model.UsageAccount) error {
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	if acct.PeriodStart.IsZero() {
		acct.PeriodStart = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_accounts (id, plan_id, monthly_quota, consumed_this_period,
			credit_balance, period_start, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.PlanID, acct.MonthlyQuota, acct.ConsumedThisPeriod,
		acct.CreditBalance, acct.PeriodStart, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert usage account %s", acct.ID)
}

func (s *SQLiteStore) GetUsageAccount(ctx context.Context, accountID string) (*model.UsageAccount, error) {
	var a model.UsageAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan_id, monthly_quota, consumed_this_period, credit_balance,
			period_start, created_at, updated_at
		 FROM usage_accounts WHERE id = ?`, accountID,
	).Scan(&a.ID, &a.PlanID, &a.MonthlyQuota, &a.ConsumedThisPeriod, &a.CreditBalance,
		&a.PeriodStart, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get usage account %s", accountID)
	}
	return &a, nil
}

func (s *SQLiteStore) ApplyUsage(ctx context.Context, accountID string, source string) error {
	var res sql.Result
	var err error

	switch source {
	case model.UsageSourceQuota:
		res, err = s.db.ExecContext(ctx,
			`UPDATE usage_accounts SET consumed_this_period = consumed_this_period + 1, updated_at = ?
			 WHERE id = ?`,
			time.Now().UTC(), accountID,
		)
	case model.UsageSourceCredit:
		res, err = s.db.ExecContext(ctx,
			`UPDATE usage_accounts SET credit_balance = credit_balance - 1, updated_at = ?
			 WHERE id = ? AND credit_balance > 0`,
			time.Now().UTC(), accountID,
		)
	default:
		return eris.Errorf("sqlite: unknown usage source %q", source)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply usage %s", accountID)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		if source == model.UsageSourceCredit {
			return eris.Errorf("no credit remaining: %s", accountID)
		}
		return eris.Errorf("usage account not found: %s", accountID)
	}
	return nil
}

func (s *SQLiteStore) AddCredits(ctx context.Context, accountID string, n int) error {
	if n <= 0 {
		return eris.New("sqlite: credits must be positive")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE usage_accounts SET credit_balance = credit_balance + ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: add credits %s", accountID)
	}
	return checkRowsAffected(res, "usage account", accountID)
}

func (s *SQLiteStore) ResetPeriod(ctx context.Context, accountID string, start time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE usage_accounts SET consumed_this_period = 0, period_start = ?, updated_at = ?
		 WHERE id = ?`,
		start.UTC(), time.Now().UTC(), accountID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset period %s", accountID)
	}
	return checkRowsAffected(res, "usage account", accountID)
}

func (s *SQLiteStore) AppendUsageTransaction(ctx context.Context, txn *model.UsageTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_transactions (id, account_id, attempt_id, source, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.AccountID, txn.AttemptID, txn.Source, txn.CostUSD, txn.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert usage transaction for attempt %s", txn.AttemptID)
}

func (s *SQLiteStore) GetUsageTransactionByAttempt(ctx context.Context, attemptID string) (*model.UsageTransaction, error) {
	var t model.UsageTransaction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, attempt_id, source, cost_usd, created_at
		 FROM usage_transactions WHERE attempt_id = ?`, attemptID,
	).Scan(&t.ID, &t.AccountID, &t.AttemptID, &t.Source, &t.CostUSD, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get usage transaction %s", attemptID)
	}
	return &t, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.Record, error) {
	var r model.Record
	var autoFilled, reviews, photos, companyFacts, news, socialLinks, drafts sql.NullString
	var repScore sql.NullFloat64

	err := row.Scan(
		&r.ID, &r.AccountID, &r.FirstName, &r.LastName, &r.Company, &r.JobTitle,
		&r.Email, &r.Phone, &autoFilled, &r.AutoFillSource, &r.AutoFillConfidence,
		&repScore, &r.ReviewCount, &reviews, &photos, &r.ProfileURL,
		&companyFacts, &news, &socialLinks, &r.Summary, &drafts, &r.SyncWarning,
		&r.Status, &r.Error, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan record")
	}

	if repScore.Valid {
		v := repScore.Float64
		r.ReputationScore = &v
	}
	for _, f := range []struct {
		src sql.NullString
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
		if !f.src.Valid || f.src.String == "" || f.src.String == "null" {
			continue
		}
		if err := json.Unmarshal([]byte(f.src.String), f.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record column")
		}
	}
	return &r, nil
}
