package scraper

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
)

const remotiveFixture = `{
	"jobs": [
		{
			"id": 555123,
			"title": "Senior Golang Backend Engineer",
			"company_name": "Acme Remote",
			"candidate_required_location": "Worldwide",
			"url": "https://remotive.com/remote-jobs/555123",
			"description": "We need a senior engineer fluent in Go and PostgreSQL.",
			"publication_date": "2026-07-01T12:00:00",
			"salary": "$80,000-$120,000"
		}
	]
}`

func newTestScraper(t *testing.T, body string, kind string) (Scraper, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	site := model.SiteConfig{Name: kind, Kind: kind, URL: srv.URL, Enabled: true}
	skills := []string{"go", "postgresql", "docker", "kubernetes", "aws"}
	scrapers, err := Build(httpclient.DefaultConfig(), []model.SiteConfig{site}, skills, log.Default())
	if err != nil {
		t.Fatalf("construct %s scraper: %v", kind, err)
	}
	if len(scrapers) != 1 {
		t.Fatalf("expected exactly 1 scraper, got %d", len(scrapers))
	}
	return scrapers[0], srv
}

func TestRemotiveScraperParsesFixture(t *testing.T) {
	sc, _ := newTestScraper(t, remotiveFixture, "remotive")

	out, err := sc.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}

	got := out[0]
	if got.NaturalKey() != "remotive_555123" {
		t.Fatalf("unexpected natural key: %s", got.NaturalKey())
	}
	if got.Title != "Senior Golang Backend Engineer" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.BudgetType != model.BudgetFixed {
		t.Fatalf("expected fixed budget, got %s", got.BudgetType)
	}
	if got.BudgetMin == nil || *got.BudgetMin != 80000 {
		t.Fatalf("expected budget_min 80000, got %v", got.BudgetMin)
	}
	if got.ClientCountry != "Worldwide" {
		t.Fatalf("expected Worldwide location, got %s", got.ClientCountry)
	}
}
