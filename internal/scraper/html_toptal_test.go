package scraper

import (
	"context"
	"log"
	"testing"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
)

const toptalFixtureHTML = `<!DOCTYPE html>
<html><body>
<div class="job-listing">
	<a class="job-title" href="/jobs/senior-go-engineer">Senior Go Engineer</a>
	<div class="job-summary">Fully remote Go and distributed-systems role for an established client.</div>
	<span class="location">Remote - Anywhere</span>
</div>
</body></html>`

func TestToptalScraperParsesFixture(t *testing.T) {
	srv := newTestHTMLServer(t, toptalFixtureHTML)

	site := model.SiteConfig{Name: "toptal", Kind: "toptal", URL: srv.URL, Enabled: true}
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
	if got.Title != "Senior Go Engineer" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.PlatformID != "senior-go-engineer" {
		t.Fatalf("unexpected platform id: %s", got.PlatformID)
	}
	if got.ClientCountry != "Remote" {
		t.Fatalf("expected normalized Remote location, got %q", got.ClientCountry)
	}
}
