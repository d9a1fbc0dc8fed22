package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

// SQLiteStore persists opportunities to a single embedded database
// file, for deployments that don't want to run Postgres. It implements
// the identical Store contract as PostgresStore; skill lists and
// score details are JSON-encoded text columns since SQLite has no
// native array or JSONB type.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database file and
// ensures its schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	// SQLite serializes writers internally; a single connection avoids
	// "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS opportunities (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		natural_key      TEXT NOT NULL UNIQUE,
		platform         TEXT NOT NULL,
		title            TEXT NOT NULL,
		description      TEXT,
		source_url       TEXT,
		budget_min       INTEGER,
		budget_max       INTEGER,
		budget_type      TEXT NOT NULL DEFAULT 'unknown',
		skills_required  TEXT,
		client_country   TEXT,
		client_rating    REAL,
		client_info      TEXT,
		posted_at        TEXT,
		scraped_at       TEXT NOT NULL,
		created_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		score            INTEGER,
		score_reason     TEXT,
		score_details    TEXT,
		suggested_bid    INTEGER,
		estimated_hours  INTEGER,
		status           TEXT NOT NULL DEFAULT 'discovered',
		notes            TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_score ON opportunities(score DESC);
	CREATE INDEX IF NOT EXISTS idx_status ON opportunities(status);
	CREATE INDEX IF NOT EXISTS idx_platform ON opportunities(platform);
	`)
	if err != nil {
		return fmt.Errorf("storage: migrate sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, opp *model.Opportunity) error {
	skillsJSON, _ := json.Marshal([]string(opp.SkillsRequired))

	existing, err := s.GetByNaturalKey(ctx, opp.NaturalKey)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	createdAt := now
	status := opp.Status
	if status == "" {
		status = model.StatusDiscovered
	}
	if existing != nil {
		// Status only ever advances via UpdateStatus; an upsert that
		// re-observes an already-known record must never regress it.
		createdAt = existing.CreatedAt
		status = existing.Status
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO opportunities (
			natural_key, platform, title, description, source_url,
			budget_min, budget_max, budget_type, skills_required,
			client_country, client_rating, client_info, posted_at,
			scraped_at, created_at, updated_at, score, score_reason,
			score_details, suggested_bid, estimated_hours, status, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(natural_key) DO UPDATE SET
			title           = excluded.title,
			description     = excluded.description,
			source_url      = excluded.source_url,
			budget_min      = excluded.budget_min,
			budget_max      = excluded.budget_max,
			budget_type     = excluded.budget_type,
			skills_required = excluded.skills_required,
			client_country  = excluded.client_country,
			client_rating   = excluded.client_rating,
			client_info     = excluded.client_info,
			posted_at       = excluded.posted_at,
			scraped_at      = excluded.scraped_at,
			score           = COALESCE(excluded.score, opportunities.score),
			score_reason    = COALESCE(NULLIF(excluded.score_reason, ''), opportunities.score_reason),
			score_details   = COALESCE(excluded.score_details, opportunities.score_details),
			suggested_bid   = COALESCE(excluded.suggested_bid, opportunities.suggested_bid),
			estimated_hours = COALESCE(excluded.estimated_hours, opportunities.estimated_hours),
			updated_at      = excluded.updated_at`,
		opp.NaturalKey, string(opp.Platform), opp.Title, opp.Description, opp.SourceURL,
		opp.BudgetMin, opp.BudgetMax, string(opp.BudgetType), string(skillsJSON),
		opp.ClientCountry, opp.ClientRating, string(opp.ClientInfo), nullTimeStr(opp.PostedAt),
		opp.ScrapedAt.UTC().Format(time.RFC3339), createdAt.Format(time.RFC3339), now.Format(time.RFC3339),
		opp.Score, opp.ScoreReason, string(opp.ScoreDetails), opp.SuggestedBid, opp.EstimatedHours,
		string(status), opp.Notes,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert %s: %w", opp.NaturalKey, err)
	}

	saved, err := s.GetByNaturalKey(ctx, opp.NaturalKey)
	if err != nil {
		return err
	}
	*opp = *saved
	return nil
}

func (s *SQLiteStore) BatchUpsert(ctx context.Context, opps []*model.Opportunity) ([]*model.Opportunity, error) {
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

func (s *SQLiteStore) GetByNaturalKey(ctx context.Context, key string) (*model.Opportunity, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectColumns+` FROM opportunities WHERE natural_key = ?`, key)
	opp, err := scanSQLiteRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return opp, nil
}

func (s *SQLiteStore) GetTopN(ctx context.Context, filter model.SearchFilter) ([]*model.Opportunity, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, filter.MinScore)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Platform != "" {
		where = append(where, "platform = ?")
		args = append(args, string(filter.Platform))
	}
	for _, excl := range filter.ExcludeStatus {
		where = append(where, "status != ?")
		args = append(args, string(excl))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(sqliteSelectColumns+` FROM opportunities WHERE %s ORDER BY score DESC, created_at ASC LIMIT ?`,
		strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: get top n: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectColumns+` FROM opportunities WHERE status = ? ORDER BY created_at DESC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list by status: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

func (s *SQLiteStore) ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectColumns+` FROM opportunities WHERE platform = ? ORDER BY created_at DESC LIMIT ?`, string(platform), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list by platform: %w", err)
	}
	defer rows.Close()
	return scanSQLiteRows(rows)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, key string, status model.Status, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE opportunities SET status = ?, notes = ?, updated_at = ?
		WHERE natural_key = ?`, string(status), notes, time.Now().UTC().Format(time.RFC3339), key)
	if err != nil {
		return fmt.Errorf("storage: update status %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (model.Stats, error) {
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteSelectColumns = `SELECT id, natural_key, platform, title, description, source_url,
	budget_min, budget_max, budget_type, skills_required, client_country,
	client_rating, client_info, posted_at, scraped_at, created_at, updated_at,
	score, score_reason, score_details, suggested_bid, estimated_hours, status, notes`

type sqliteScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteRow(row sqliteScanner) (*model.Opportunity, error) {
	opp := &model.Opportunity{}
	var skillsJSON, clientInfo, scoreDetails sql.NullString
	var postedAt, scrapedAt, createdAt, updatedAt sql.NullString

	err := row.Scan(
		&opp.ID, &opp.NaturalKey, &opp.Platform, &opp.Title, &opp.Description, &opp.SourceURL,
		&opp.BudgetMin, &opp.BudgetMax, &opp.BudgetType, &skillsJSON, &opp.ClientCountry,
		&opp.ClientRating, &clientInfo, &postedAt, &scrapedAt, &createdAt, &updatedAt,
		&opp.Score, &opp.ScoreReason, &scoreDetails, &opp.SuggestedBid, &opp.EstimatedHours,
		&opp.Status, &opp.Notes,
	)
	if err != nil {
		return nil, err
	}

	if skillsJSON.Valid && skillsJSON.String != "" {
		var skills []string
		json.Unmarshal([]byte(skillsJSON.String), &skills)
		opp.SkillsRequired = skills
	}
	if clientInfo.Valid {
		opp.ClientInfo = []byte(clientInfo.String)
	}
	if scoreDetails.Valid {
		opp.ScoreDetails = []byte(scoreDetails.String)
	}
	if postedAt.Valid {
		if t, err := time.Parse(time.RFC3339, postedAt.String); err == nil {
			opp.PostedAt = sql.NullTime{Time: t, Valid: true}
		}
	}
	if t, err := time.Parse(time.RFC3339, scrapedAt.String); err == nil {
		opp.ScrapedAt = t
	}
	if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
		opp.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt.String); err == nil {
		opp.UpdatedAt = t
	}
	return opp, nil
}

func scanSQLiteRows(rows *sql.Rows) ([]*model.Opportunity, error) {
	var out []*model.Opportunity
	for rows.Next() {
		opp, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan row: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

func nullTimeStr(t sql.NullTime) interface{} {
	if !t.Valid {
		return nil
	}
	return t.Time.UTC().Format(time.RFC3339)
}
