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

	"github.com/lead2close/crm-cli/internal/db"
	"github.com/lead2close/crm-cli/internal/model"
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

// leadColumns is the column list every lead read uses, in scanLead order.
const leadColumns = `id, business_name, city, category, phone, email, website_url,
	rating, review_count, working_hours, has_opt_in,
	enrichment_status, enrichment_data, enrichment_last_at, enrichment_error,
	scan_score, scan_confidence, scan_reasons, scan_recommended_angle,
	outreach_status, outreach_scheduled_at, outreach_results, last_contacted_at,
	created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"get_lead":                `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"set_enrichment_status":   `UPDATE leads SET enrichment_status = $1, updated_at = $2 WHERE id = $3`,
	"save_enrichment_success": `UPDATE leads SET enrichment_status = $1, enrichment_data = $2, enrichment_last_at = $3, enrichment_error = NULL, updated_at = $3 WHERE id = $4`,
	"save_enrichment_failure": `UPDATE leads SET enrichment_status = $1, enrichment_error = $2, updated_at = $3 WHERE id = $4`,
	"finish_outreach":         `UPDATE leads SET outreach_status = $1, outreach_results = $2, updated_at = $3 WHERE id = $4`,
	"mark_contacted":          `UPDATE leads SET last_contacted_at = $1, updated_at = $1 WHERE id = $2`,
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

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk lead import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	business_name          TEXT NOT NULL,
	city                   TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	phone                  TEXT NOT NULL DEFAULT '',
	email                  TEXT NOT NULL DEFAULT '',
	website_url            TEXT NOT NULL DEFAULT '',
	rating                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count           INTEGER NOT NULL DEFAULT 0,
	working_hours          JSONB,
	has_opt_in             BOOLEAN NOT NULL DEFAULT false,
	enrichment_status      TEXT NOT NULL DEFAULT 'not_enriched',
	enrichment_data        JSONB,
	enrichment_last_at     TIMESTAMPTZ,
	enrichment_error       JSONB,
	scan_score             DOUBLE PRECISION,
	scan_confidence        TEXT NOT NULL DEFAULT '',
	scan_reasons           JSONB,
	scan_recommended_angle TEXT NOT NULL DEFAULT '',
	outreach_status        TEXT NOT NULL DEFAULT 'none',
	outreach_scheduled_at  TIMESTAMPTZ,
	outreach_results       JSONB,
	last_contacted_at      TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_enrichment_status ON leads(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_outreach_queue ON leads(outreach_status, outreach_scheduled_at ASC);

CREATE TABLE IF NOT EXISTS outreach_sends (
	id       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id  TEXT NOT NULL,
	lead_id  TEXT NOT NULL REFERENCES leads(id),
	channel  TEXT NOT NULL,
	provider TEXT NOT NULL,
	to_value TEXT NOT NULL,
	subject  TEXT NOT NULL DEFAULT '',
	body     TEXT NOT NULL,
	status   TEXT NOT NULL,
	sent_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_outreach_sends_lead_id ON outreach_sends(lead_id);
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

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (*model.Lead, error) {
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

	hoursJSON, err := marshalNullable(out.WorkingHours)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal working hours")
	}
	reasonsJSON, err := marshalNullable(out.ScanReasons)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal scan reasons")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads
		 (id, business_name, city, category, phone, email, website_url,
		  rating, review_count, working_hours, has_opt_in,
		  enrichment_status, scan_score, scan_confidence, scan_reasons, scan_recommended_angle,
		  outreach_status, outreach_scheduled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		out.ID, out.BusinessName, out.City, out.Category, out.Phone, out.Email, out.WebsiteURL,
		out.Rating, out.ReviewCount, hoursJSON, out.HasOptIn,
		string(out.EnrichmentStatus), out.ScanScore, out.ScanConfidence, reasonsJSON, out.ScanRecommendedAngle,
		string(out.OutreachStatus), out.OutreachScheduledAt, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &out, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.EnrichmentStatus != "" {
		query += fmt.Sprintf(` AND enrichment_status = $%d`, argIdx)
		args = append(args, string(filter.EnrichmentStatus))
		argIdx++
	}
	if filter.OutreachStatus != "" {
		query += fmt.Sprintf(` AND outreach_status = $%d`, argIdx)
		args = append(args, string(filter.OutreachStatus))
		argIdx++
	}
	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
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
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// updatableColumns allowlists the fields UpdateLeadFields may touch.
// Enrichment and outreach state go through their dedicated transitions.
var updatableColumns = map[string]bool{
	"business_name": true, "city": true, "category": true,
	"phone": true, "email": true, "website_url": true,
	"rating": true, "review_count": true, "has_opt_in": true,
	"scan_score": true, "scan_confidence": true, "scan_recommended_angle": true,
	"outreach_scheduled_at": true, "outreach_status": true,
}

func (s *PostgresStore) UpdateLeadFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := []string{}
	args := []any{}
	argIdx := 1
	for col, val := range fields {
		if !updatableColumns[col] {
			return eris.Errorf("postgres: field %q is not updatable", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, time.Now().UTC())
	argIdx++
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argIdx)
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetEnrichmentStatus(ctx context.Context, id string, status model.EnrichmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET enrichment_status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set enrichment status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveEnrichmentSuccess(ctx context.Context, id string, report *model.IntelligenceReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET enrichment_status = $1, enrichment_data = $2, enrichment_last_at = $3, enrichment_error = NULL, updated_at = $3 WHERE id = $4`,
		string(model.EnrichmentEnriched), reportJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save enrichment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveEnrichmentFailure flips the status and records the diagnostic without
// touching enrichment_data: a failed retry never destroys a prior report.
func (s *PostgresStore) SaveEnrichmentFailure(ctx context.Context, id string, detail model.ErrorDetail) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal error detail")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET enrichment_status = $1, enrichment_error = $2, updated_at = $3 WHERE id = $4`,
		string(model.EnrichmentFailed), detailJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save enrichment failure %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNextQueued atomically claims the oldest queued lead. SKIP LOCKED
// keeps concurrent drainers off the same row.
func (s *PostgresStore) ClaimNextQueued(ctx context.Context) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE leads SET outreach_status = $1, updated_at = $2
		 WHERE id = (
			SELECT id FROM leads
			WHERE outreach_status = $3
			ORDER BY outreach_scheduled_at ASC NULLS LAST
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+leadColumns,
		string(model.OutreachProcessing), time.Now().UTC(), string(model.OutreachQueued),
	)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: claim next queued")
	}
	return lead, nil
}

func (s *PostgresStore) FinishOutreach(ctx context.Context, id string, status model.OutreachStatus, results map[string]any) error {
	resultsJSON, err := marshalNullable(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outreach results")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET outreach_status = $1, outreach_results = $2, updated_at = $3 WHERE id = $4`,
		string(status), resultsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish outreach %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkContacted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET last_contacted_at = $1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark contacted %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertSendLog(ctx context.Context, entry *model.SendLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO outreach_sends (id, user_id, lead_id, channel, provider, to_value, subject, body, status, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.LeadID, entry.Channel, entry.Provider,
		entry.ToValue, entry.Subject, entry.Body, entry.Status, entry.SentAt,
	)
	return eris.Wrap(err, "postgres: insert send log")
}

// scanLead reads one lead row in leadColumns order. Reports persisted under
// an older schema variant are migrated on the way out.
func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var hoursJSON, dataJSON, errJSON, reasonsJSON, resultsJSON []byte

	err := row.Scan(
		&l.ID, &l.BusinessName, &l.City, &l.Category, &l.Phone, &l.Email, &l.WebsiteURL,
		&l.Rating, &l.ReviewCount, &hoursJSON, &l.HasOptIn,
		&l.EnrichmentStatus, &dataJSON, &l.EnrichmentLastAt, &errJSON,
		&l.ScanScore, &l.ScanConfidence, &reasonsJSON, &l.ScanRecommendedAngle,
		&l.OutreachStatus, &l.OutreachScheduledAt, &resultsJSON, &l.LastContactedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalNullable(hoursJSON, &l.WorkingHours); err != nil {
		return nil, eris.Wrap(err, "unmarshal working hours")
	}
	if err := unmarshalNullable(reasonsJSON, &l.ScanReasons); err != nil {
		return nil, eris.Wrap(err, "unmarshal scan reasons")
	}
	if err := unmarshalNullable(resultsJSON, &l.OutreachResults); err != nil {
		return nil, eris.Wrap(err, "unmarshal outreach results")
	}
	if len(errJSON) > 0 {
		l.EnrichmentError = &model.ErrorDetail{}
		if err := json.Unmarshal(errJSON, l.EnrichmentError); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment error")
		}
	}
	if len(dataJSON) > 0 {
		l.EnrichmentData = &model.IntelligenceReport{}
		if err := json.Unmarshal(dataJSON, l.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "unmarshal enrichment data")
		}
		l.EnrichmentData.Migrate()
	}
	return &l, nil
}

func marshalNullable(v any) ([]byte, error) {
	switch x := v.(type) {
	case map[string]string:
		if x == nil {
			return nil, nil
		}
	case map[string]any:
		if x == nil {
			return nil, nil
		}
	case []string:
		if x == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
