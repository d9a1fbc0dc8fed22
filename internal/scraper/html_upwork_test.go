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

const upworkFixtureHTML = `<!DOCTYPE html>
<html><body>
<section class="air3-card">
	<a class="job-title-link" href="/jobs/~0123456789abcdef">Go Backend Developer Needed</a>
	<div class="job-description">Looking for an experienced Go developer for a fixed-price project.</div>
	<li>Fixed-price: $2,000</li>
</section>
</body></html>`

func newTestHTMLServer(t *testing.T, cardHTML string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(cardHTML))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUpworkScraperParsesFixture(t *testing.T) {
	srv := newTestHTMLServer(t, upworkFixtureHTML)

	site := model.SiteConfig{Name: "upwork", Kind: "upwork", URL: srv.URL, Enabled: true}
	scrapers, err := Build(httpclient.DefaultConfig(), []model.SiteConfig{site}, []string{"go"}, log.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := scrapers[0].Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 card, got %d", len(out))
	}

	got := out[0]
	if got.Title != "Go Backend Developer Needed" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.PlatformID != "0123456789abcdef" {
		t.Fatalf("unexpected platform id: %s", got.PlatformID)
	}
	if got.BudgetMin == nil || *got.BudgetMin != 2000 {
		t.Fatalf("expected budget_min 2000, got %v", got.BudgetMin)
	}
}

func TestUpworkScraperReturnsEmptyOnSelectorMiss(t *testing.T) {
	srv := newTestHTMLServer(t, `<html><body><div id="totally-unrelated-markup"></div></body></html>`)

	site := model.SiteConfig{Name: "upwork", Kind: "upwork", URL: srv.URL, Enabled: true}
	scrapers, err := Build(httpclient.DefaultConfig(), []model.SiteConfig{site}, []string{"go"}, log.Default())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out, err := scrapers[0].Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch returned an error instead of degrading to empty: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected 0 records on a total selector miss, got %d", len(out))
	}
}
