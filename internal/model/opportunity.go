// Package model defines the core data types for the opportunity
// discovery pipeline.
package model

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// Platform identifies the source a record was scraped from.
type Platform string

const (
	PlatformUpwork    Platform = "upwork"
	PlatformRemotive  Platform = "remotive"
	PlatformWWR       Platform = "wwr"
	PlatformRemoteOK  Platform = "remoteok"
	PlatformArbeitnow Platform = "arbeitnow"
	PlatformToptal    Platform = "toptal"
)

// BudgetType classifies how a record's budget should be interpreted.
type BudgetType string

const (
	BudgetFixed   BudgetType = "fixed"
	BudgetHourly  BudgetType = "hourly"
	BudgetUnknown BudgetType = "unknown"
)

// Status represents the lifecycle state of an Opportunity.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusScored     Status = "scored"
	StatusNotified   Status = "notified"
	StatusApplied    Status = "applied"
	StatusWon        Status = "won"
	StatusRejected   Status = "rejected"
)

// ScoreDetails holds the structured output of the scoring pipeline.
type ScoreDetails struct {
	MatchScore       int      `json:"match_score"`
	BudgetReasonable bool     `json:"budget_reasonable"`
	RequirementClear bool     `json:"requirement_clear"`
	Recommended      bool     `json:"recommended"`
	Risks            []string `json:"risks,omitempty"`
	Strengths        []string `json:"strengths,omitempty"`
}

// Opportunity is the central persisted record.
type Opportunity struct {
	ID             int64           `db:"id" json:"id"`
	NaturalKey     string          `db:"natural_key" json:"natural_key"`
	Platform       Platform        `db:"platform" json:"platform"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	SourceURL      string          `db:"source_url" json:"source_url"`
	BudgetMin      sql.NullInt64   `db:"budget_min" json:"budget_min,omitempty"`
	BudgetMax      sql.NullInt64   `db:"budget_max" json:"budget_max,omitempty"`
	BudgetType     BudgetType      `db:"budget_type" json:"budget_type"`
	SkillsRequired pq.StringArray  `db:"skills_required" json:"skills_required,omitempty"`
	ClientCountry  sql.NullString  `db:"client_country" json:"client_country,omitempty"`
	ClientRating   sql.NullFloat64 `db:"client_rating" json:"client_rating,omitempty"`
	ClientInfo     []byte          `db:"client_info" json:"client_info,omitempty"`
	PostedAt       sql.NullTime    `db:"posted_at" json:"posted_at,omitempty"`
	ScrapedAt      time.Time       `db:"scraped_at" json:"scraped_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	Score          sql.NullInt64   `db:"score" json:"score,omitempty"`
	ScoreReason    string          `db:"score_reason" json:"score_reason,omitempty"`
	ScoreDetails   []byte          `db:"score_details" json:"score_details,omitempty"`
	SuggestedBid   sql.NullInt64   `db:"suggested_bid" json:"suggested_bid,omitempty"`
	EstimatedHours sql.NullInt64   `db:"estimated_hours" json:"estimated_hours,omitempty"`
	Status         Status          `db:"status" json:"status"`
	Notes          sql.NullString  `db:"notes" json:"notes,omitempty"`
}

// ScrapedOpportunity is the intermediate shape produced by scrapers,
// before filtering, dedup, and scoring.
type ScrapedOpportunity struct {
	Platform       Platform
	PlatformID     string
	Title          string
	Description    string
	SourceURL      string
	BudgetMin      *int
	BudgetMax      *int
	BudgetType     BudgetType
	SkillsRequired []string
	ClientCountry  string
	ClientRating   *float64
	ClientInfo     map[string]interface{}
	PostedAt       *time.Time
	ScrapedAt      time.Time
}

// NaturalKey derives the stable idempotency key for a scraped record.
func (s *ScrapedOpportunity) NaturalKey() string {
	return string(s.Platform) + "_" + s.PlatformID
}

// SearchFilter holds criteria for querying the opportunity store.
type SearchFilter struct {
	MinScore      int
	ExcludeStatus []Status
	Status        Status
	Platform      Platform
	Limit         int
}

// Stats holds aggregated statistics over the opportunity store.
type Stats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByPlatform     map[string]int `json:"by_platform"`
	AvgScore       float64        `json:"avg_score"`
	HighScoreCount int            `json:"high_score_count"`
}

// SiteConfig is per-source scraper configuration.
type SiteConfig struct {
	Name        string            `toml:"name"`
	Kind        string            `toml:"kind"`
	URL         string            `toml:"url"`
	Timeout     int               `toml:"timeout"`
	Enabled     bool              `toml:"enabled"`
	SearchQuery string            `toml:"search_query"`
	Headers     map[string]string `toml:"headers"`
}

// FilterConfig holds keyword-based filter criteria.
type FilterConfig struct {
	RequiredKeywords []string `toml:"required_keywords"`
	LevelKeywords    []string `toml:"level_keywords"`
	ExcludeKeywords  []string `toml:"exclude_keywords"`
}

// ScoringConfig holds the scorer's own configuration.
type ScoringConfig struct {
	Skills         []string `toml:"skills"`
	MinBudget      int      `toml:"min_budget"`
	ScoreThreshold int      `toml:"score_threshold"`
	Concurrency    int      `toml:"concurrency"`
}
