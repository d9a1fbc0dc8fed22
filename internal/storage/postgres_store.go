package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

// PostgresStore persists opportunities to a networked Postgres
// database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pre-pings a connection pool, then ensures
// the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS opportunities (
		id               BIGSERIAL PRIMARY KEY,
		natural_key      TEXT NOT NULL UNIQUE,
		platform         TEXT NOT NULL,
		title            TEXT NOT NULL,
		description      TEXT,
		source_url       TEXT,
		budget_min       BIGINT,
		budget_max       BIGINT,
		budget_type      TEXT NOT NULL DEFAULT 'unknown',
		skills_required  TEXT[],
		client_country   TEXT,
		client_rating    DOUBLE PRECISION,
		client_info      JSONB,
		posted_at        TIMESTAMPTZ,
		scraped_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		score            BIGINT,
		score_reason     TEXT,
		score_details    JSONB,
		suggested_bid    BIGINT,
		estimated_hours  BIGINT,
		status           TEXT NOT NULL DEFAULT 'discovered',
		notes            TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_opportunities_score ON opportunities (score DESC);
	CREATE INDEX IF NOT EXISTS idx_opportunities_status ON opportunities (status);
	CREATE INDEX IF NOT EXISTS idx_opportunities_platform ON opportunities (platform);
	`)
	if err != nil {
		return fmt.Errorf("storage: migrate postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, opp *model.Opportunity) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO opportunities (
			natural_key, platform, title, description, source_url,
			budget_min, budget_max, budget_type, skills_required,
			client_country, client_rating, client_info, posted_at,
			scraped_at, score, score_reason, score_details,
			suggested_bid, estimated_hours, status
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		)
		ON CONFLICT (natural_key) DO UPDATE SET
			title           = EXCLUDED.title,
			description     = EXCLUDED.description,
			source_url      = EXCLUDED.source_url,
			budget_min      = EXCLUDED.budget_min,
			budget_max      = EXCLUDED.budget_max,
			budget_type     = EXCLUDED.budget_type,
			skills_required = EXCLUDED.skills_required,
			client_country  = EXCLUDED.client_country,
			client_rating   = EXCLUDED.client_rating,
			client_info     = EXCLUDED.client_info,
			posted_at       = EXCLUDED.posted_at,
			scraped_at      = EXCLUDED.scraped_at,
			score           = COALESCE(EXCLUDED.score, opportunities.score),
			score_reason    = COALESCE(NULLIF(EXCLUDED.score_reason, ''), opportunities.score_reason),
			score_details   = COALESCE(EXCLUDED.score_details, opportunities.score_details),
			suggested_bid   = COALESCE(EXCLUDED.suggested_bid, opportunities.suggested_bid),
			estimated_hours = COALESCE(EXCLUDED.estimated_hours, opportunities.estimated_hours),
			updated_at      = NOW()
		RETURNING id, created_at, status`,
		opp.NaturalKey, opp.Platform, opp.Title, opp.Description, opp.SourceURL,
		opp.BudgetMin, opp.BudgetMax, opp.BudgetType, pq.Array(opp.SkillsRequired),
		opp.ClientCountry, opp.ClientRating, opp.ClientInfo, opp.PostedAt,
		opp.ScrapedAt, opp.Score, opp.ScoreReason, opp.ScoreDetails,
		opp.SuggestedBid, opp.EstimatedHours, string(opp.Status),
	).Scan(&opp.ID, &opp.CreatedAt, &opp.Status)
}

func (s *PostgresStore) BatchUpsert(ctx context.Context, opps []*model.Opportunity) ([]*model.Opportunity, error) {
	persisted := make([]*model.Opportunity, 0, len(opps))
	var errs []error
	for _, opp := range opps {
		if err := s.Upsert(ctx, opp); err != nil {
			errs = append(errs, fmt.Errorf("storage: batch upsert %s: %w", opp.NaturalKey, err))
			continue
		}
		persisted = append(persisted, opp)
	}
	return persisted, errors.Join(errs...)
}

func (s *PostgresStore) GetByNaturalKey(ctx context.Context, key string) (*model.Opportunity, error) {
	opp := &model.Opportunity{}
	err := s.db.QueryRowContext(ctx, selectColumns+` FROM opportunities WHERE natural_key = $1`, key).
		Scan(scanTargets(opp)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return opp, nil
}

func (s *PostgresStore) GetTopN(ctx context.Context, filter model.SearchFilter) ([]*model.Opportunity, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	idx := 1

	if filter.MinScore > 0 {
		where = append(where, fmt.Sprintf("score >= $%d", idx))
		args = append(args, filter.MinScore)
		idx++
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(filter.Status))
		idx++
	}
	if filter.Platform != "" {
		where = append(where, fmt.Sprintf("platform = $%d", idx))
		args = append(args, string(filter.Platform))
		idx++
	}
	for _, excl := range filter.ExcludeStatus {
		where = append(where, fmt.Sprintf("status != $%d", idx))
		args = append(args, string(excl))
		idx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(selectColumns+` FROM opportunities WHERE %s ORDER BY score DESC NULLS LAST, created_at ASC LIMIT $%d`,
		strings.Join(where, " AND "), idx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: get top n: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM opportunities WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list by status: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (s *PostgresStore) ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` FROM opportunities WHERE platform = $1 ORDER BY created_at DESC LIMIT $2`, string(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list by platform: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, key string, status model.Status, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE opportunities SET status = $1, notes = $2, updated_at = NOW()
		WHERE natural_key = $3`, string(status), notes, key)
	if err != nil {
		return fmt.Errorf("storage: update status %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	stats.ByStatus = make(map[string]int)
	stats.ByPlatform = make(map[string]int)

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("storage: count: %w", err)
	}
	s.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(score), 0) FROM opportunities WHERE score IS NOT NULL`).Scan(&stats.AvgScore)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities WHERE score >= 80`).Scan(&stats.HighScoreCount)

	if rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM opportunities GROUP BY status`); err == nil {
		defer rows.Close()
		for rows.Next() {
			var st string
			var n int
			if rows.Scan(&st, &n) == nil {
				stats.ByStatus[st] = n
			}
		}
	}
	if rows, err := s.db.QueryContext(ctx, `SELECT platform, COUNT(*) FROM opportunities GROUP BY platform`); err == nil {
		defer rows.Close()
		for rows.Next() {
			var pl string
			var n int
			if rows.Scan(&pl, &n) == nil {
				stats.ByPlatform[pl] = n
			}
		}
	}
	return stats, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, natural_key, platform, title, description, source_url,
	budget_min, budget_max, budget_type, skills_required, client_country,
	client_rating, client_info, posted_at, scraped_at, created_at, updated_at,
	score, score_reason, score_details, suggested_bid, estimated_hours, status, notes`

func scanTargets(o *model.Opportunity) []interface{} {
	return []interface{}{
		&o.ID, &o.NaturalKey, &o.Platform, &o.Title, &o.Description, &o.SourceURL,
		&o.BudgetMin, &o.BudgetMax, &o.BudgetType, &o.SkillsRequired, &o.ClientCountry,
		&o.ClientRating, &o.ClientInfo, &o.PostedAt, &o.ScrapedAt, &o.CreatedAt, &o.UpdatedAt,
		&o.Score, &o.ScoreReason, &o.ScoreDetails, &o.SuggestedBid, &o.EstimatedHours, &o.Status, &o.Notes,
	}
}

func scanAll(rows *sql.Rows) ([]*model.Opportunity, error) {
	var out []*model.Opportunity
	for rows.Next() {
		opp := &model.Opportunity{}
		if err := rows.Scan(scanTargets(opp)...); err != nil {
			return nil, fmt.Errorf("storage: scan row: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}
