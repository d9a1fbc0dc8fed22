// Package scraper defines the Scraper interface, a closed registry of
// concrete implementations, and the HTML-walking helpers they share.
package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
)

// Scraper fetches one batch of opportunities from a single source.
// Fetch must never block indefinitely; it honors ctx cancellation and
// returns a (possibly empty) slice plus an error describing why fewer
// records than expected were returned. Callers treat a non-nil error
// as "degrade to empty", never as fatal.
type Scraper interface {
	// Source returns the platform this scraper produces records for.
	Source() model.Platform

	// Name returns a human-readable name, used in logs and health
	// reporting.
	Name() string

	// Fetch retrieves the current batch of opportunities.
	Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error)
}

// BaseScraper provides the HTTP client, logger, and robots.txt checker
// shared by every concrete scraper.
type BaseScraper struct {
	Client *httpclient.Client
	Logger *log.Logger
	Robots *httpclient.RobotsChecker
	Config model.SiteConfig
	Skills []string
}

// NewBaseScraper builds a BaseScraper from HTTP client configuration,
// the site's own settings, and the configured skill vocabulary used by
// ExtractSkills. The site's own Timeout, when set, overrides the
// shared client configuration's RequestTimeout so each source can be
// tuned independently.
func NewBaseScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (*BaseScraper, error) {
	if site.Timeout > 0 {
		cfg.RequestTimeout = time.Duration(site.Timeout) * time.Second
	}
	client, err := httpclient.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build http client for %s: %w", site.Name, err)
	}
	robots := httpclient.NewRobotsChecker(client, cfg.UserAgent)
	return &BaseScraper{
		Client: client,
		Logger: logger,
		Robots: robots,
		Config: site,
		Skills: skills,
	}, nil
}
