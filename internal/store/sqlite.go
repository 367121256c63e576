package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/lead2close/crm-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// single-operator setups and tests; postgres is the production backend.
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                     TEXT PRIMARY KEY,
	business_name          TEXT NOT NULL,
	city                   TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	website_url            TEXT NOT NULL DEFAULT '',
	rating                 REAL NOT NULL DEFAULT 0,
	review_count           INTEGER NOT NULL DEFAULT 0,
	working_hours          TEXT,
	has_opt_in             INTEGER NOT NULL DEFAULT 0,
	enrichment_status      TEXT NOT NULL DEFAULT 'not_enriched',
	enrichment_data        TEXT,
	enrichment_last_at     DATETIME,
	enrichment_error       TEXT,
	scan_score             REAL,
	scan_confidence        TEXT NOT NULL DEFAULT '',
	scan_reasons           TEXT,
	scan_recommended_angle TEXT NOT NULL DEFAULT '',
	outreach_status        TEXT NOT NULL DEFAULT 'none',
	outreach_scheduled_at  DATETIME,
	outreach_results       TEXT,
	last_contacted_at      DATETIME,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_outreach_queue ON leads(outreach_status, outreach_scheduled_at ASC);

CREATE TABLE IF NOT EXISTS outreach_sends (
	id       TEXT PRIMARY KEY,
	user_id  TEXT NOT NULL,
	lead_id  TEXT NOT NULL REFERENCES leads(id),
	channel  TEXT NOT NULL,
	provider TEXT NOT NULL,
	to_value TEXT NOT NULL,
	subject  TEXT NOT NULL DEFAULT '',
	body     TEXT NOT NULL,
	status   TEXT NOT NULL,
	sent_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_outreach_sends_lead_id ON outreach_sends(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadColumns = `id, business_name, city, category, phone, email, website_url,
	rating, review_count, working_hours, has_opt_in,
	enrichment_status, enrichment_data, enrichment_last_at, enrichment_error,
	scan_score, scan_confidence, scan_reasons, scan_recommended_angle,
	outreach_status, outreach_scheduled_at, outreach_results, last_contacted_at,
	created_at, updated_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
	out := *lead
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now
	if out.EnrichmentStatus == "" {
		out.EnrichmentStatus = model.EnrichmentNotEnriched
	}
	if out.OutreachStatus == "" {
		out.OutreachStatus = model.OutreachNone
	}

	hoursJSON, err := nullableJSONString(out.WorkingHours, out.WorkingHours == nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal working hours")
	}
	reasonsJSON, err := nullableJSONString(out.ScanReasons, out.ScanReasons == nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal scan reasons")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads
		 (id, business_name, city, category, phone, email, website_url,
		  rating, review_count, working_hours, has_opt_in,
		  enrichment_status, scan_score, scan_confidence, scan_reasons, scan_recommended_angle,
		  outreach_status, outreach_scheduled_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.BusinessName, out.City, out.Category, out.Phone, out.Email, out.WebsiteURL,
		out.Rating, out.ReviewCount, hoursJSON, out.HasOptIn,
		string(out.EnrichmentStatus), out.ScanScore, out.ScanConfidence, reasonsJSON, out.ScanRecommendedAngle,
		string(out.OutreachStatus), out.OutreachScheduledAt, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &out, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`, id)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.EnrichmentStatus != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(filter.EnrichmentStatus))
	}
	if filter.OutreachStatus != "" {
		query += ` AND outreach_status = ?`
		args = append(args, string(filter.OutreachStatus))
	}
	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
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
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLeadFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	var setClauses []string
	var args []any
	for col, val := range fields {
		if !updatableColumns[col] {
			return eris.Errorf("sqlite: field %q is not updatable", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", col))
		args = append(args, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = ?`, strings.Join(setClauses, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SetEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET enrichment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set enrichment status %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SaveEnrichmentSuccess(ctx context.Context, id string, report *model.IntelligenceReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET enrichment_status = ?, enrichment_data = ?, enrichment_last_at = ?, enrichment_error = NULL, updated_at = ? WHERE id = ?`,
		string(model.EnrichmentEnriched), string(reportJSON), time.Now().UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save enrichment %s", id)
	}
	return checkRowsAffected(res)
}

// SaveEnrichmentFailure leaves enrichment_data untouched.
func (s *SQLiteStore) SaveEnrichmentFailure(ctx context.Context, id string, detail model.ErrorDetail) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal error detail")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET enrichment_status = ?, enrichment_error = ?, updated_at = ? WHERE id = ?`,
		string(model.EnrichmentFailed), string(detailJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save enrichment failure %s", id)
	}
	return checkRowsAffected(res)
}

// ClaimNextQueued claims the oldest queued lead. SQLite serializes writers,
// so the subselect-update is atomic without row locks.
func (s *SQLiteStore) ClaimNextQueued(ctx context.Context) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE leads SET outreach_status = ?, updated_at = ?
		 WHERE id = (
			SELECT id FROM leads
			WHERE outreach_status = ?
			ORDER BY outreach_scheduled_at ASC
			LIMIT 1
		 )
		 RETURNING `+sqliteLeadColumns,
		string(model.OutreachProcessing), time.Now().UTC(), string(model.OutreachQueued),
	)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: claim next queued")
	}
	return lead, nil
}

func (s *SQLiteStore) FinishOutreach(ctx context.Context, id string, status model.OutreachStatus, results map[string]any) error {
	resultsJSON, err := nullableJSONString(results, results == nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outreach results")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET outreach_status = ?, outreach_results = ?, updated_at = ? WHERE id = ?`,
		string(status), resultsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish outreach %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) MarkContacted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET last_contacted_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark contacted %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) InsertSendLog(ctx context.Context, entry *model.SendLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outreach_sends (id, user_id, lead_id, channel, provider, to_value, subject, body, status, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.LeadID, entry.Channel, entry.Provider,
		entry.ToValue, entry.Subject, entry.Body, entry.Status, entry.SentAt,
	)
	return eris.Wrap(err, "sqlite: insert send log")
}

// helpers

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var hours, data, errDetail, reasons, results sql.NullString
	var lastAt, scheduledAt, contactedAt sql.NullTime
	var scanScore sql.NullFloat64

	err := row.Scan(
		&l.ID, &l.BusinessName, &l.City, &l.Category, &l.Phone, &l.Email, &l.WebsiteURL,
		&l.Rating, &l.ReviewCount, &hours, &l.HasOptIn,
		&l.EnrichmentStatus, &data, &lastAt, &errDetail,
		&scanScore, &l.ScanConfidence, &reasons, &l.ScanRecommendedAngle,
		&l.OutreachStatus, &scheduledAt, &results, &contactedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastAt.Valid {
		l.EnrichmentLastAt = &lastAt.Time
	}
	if scheduledAt.Valid {
		l.OutreachScheduledAt = &scheduledAt.Time
	}
	if contactedAt.Valid {
		l.LastContactedAt = &contactedAt.Time
	}
	if scanScore.Valid {
		l.ScanScore = &scanScore.Float64
	}
	if hours.Valid {
		if err := json.Unmarshal([]byte(hours.String), &l.WorkingHours); err != nil {
			return nil, eris.Wrap(err, "unmarshal working hours")
		}
	}
	if reasons.Valid {
		if err := json.Unmarshal([]byte(reasons.String), &l.ScanReasons); err != nil {
			return nil, eris.Wrap(err, "unmarshal scan reasons")
		}
	}
	if results.Valid {
		if err := json.Unmarshal([]byte(results.String), &l.OutreachResults); err != nil {
			return nil, eris.Wrap(err, "unmarshal outreach results")
		}
	}
	if errDetail.Valid {
		l.EnrichmentError = &model.ErrorDetail{}
		if err := json.Unmarshal([]byte(errDetail.String), l.EnrichmentError); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment error")
		}
	}
	if data.Valid {
		l.EnrichmentData = &model.IntelligenceReport{}
		if err := json.Unmarshal([]byte(data.String), l.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment data")
		}
		l.EnrichmentData.Migrate()
	}
	return &l, nil
}

func nullableJSONString(v any, isNil bool) (any, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
