package scraper

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/normalize"
)

// Renderer fetches a page's final HTML. The default renderer is a
// plain HTTP GET; a JS-rendering implementation can be injected for
// sites whose job cards are populated client-side.
type Renderer interface {
	Render(ctx context.Context, url string, headers map[string]string) (string, error)
}

// httpRenderer renders by issuing a single GET through the shared
// rate-limited client. It sees whatever markup the server returns
// without executing client-side JavaScript.
type httpRenderer struct {
	client *httpclient.Client
}

func (r *httpRenderer) Render(ctx context.Context, url string, headers map[string]string) (string, error) {
	return r.client.GetBody(ctx, url, headers)
}

type upworkScraper struct {
	*BaseScraper
	renderer Renderer
}

func newUpworkScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &upworkScraper{BaseScraper: base, renderer: &httpRenderer{client: base.Client}}, nil
}

func (s *upworkScraper) Source() model.Platform { return model.PlatformUpwork }
func (s *upworkScraper) Name() string           { return "upwork" }

var (
	upworkCardSelectors  = []string{"section.air3-card", "article.job-tile", "div.job-tile"}
	upworkTitleSelectors = []string{"a.job-title-link", "h2", "a"}
	upworkDescSelectors  = []string{"div.job-description", "p"}
	upworkBudgetSelectors = []string{"strong", "li"}
)

func (s *upworkScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	searchURL := s.Config.URL
	if s.Config.SearchQuery != "" {
		searchURL = fmt.Sprintf("%s?q=%s", searchURL, strings.ReplaceAll(s.Config.SearchQuery, " ", "+"))
	}

	if !s.Robots.IsAllowed(ctx, searchURL) {
		return nil, fmt.Errorf("upwork: disallowed by robots.txt")
	}

	body, err := s.renderer.Render(ctx, searchURL, s.Config.Headers)
	if err != nil {
		return nil, fmt.Errorf("upwork: fetch: %w", err)
	}

	doc, err := parseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("upwork: parse: %w", err)
	}

	var cards []*html.Node
	for _, sel := range upworkCardSelectors {
		if found := findAll(doc, sel); len(found) > 0 {
			cards = found
			break
		}
	}

	const maxCards = 20
	if len(cards) > maxCards {
		cards = cards[:maxCards]
	}

	now := time.Now().UTC()
	out := make([]*model.ScrapedOpportunity, 0, len(cards))
	for _, card := range cards {
		opp := s.extractCard(card, now)
		if opp != nil && opp.Title != "" {
			out = append(out, opp)
		}
	}
	return out, nil
}

func (s *upworkScraper) extractCard(card *html.Node, scrapedAt time.Time) *model.ScrapedOpportunity {
	titleNode := findBySelector(card, upworkTitleSelectors...)
	if titleNode == nil {
		return nil
	}
	title := extractText(titleNode)
	href := getAttr(titleNode, "href")
	url := resolveURL("https://www.upwork.com", href)

	descNode := findBySelector(card, upworkDescSelectors...)
	desc := ""
	if descNode != nil {
		desc = extractText(descNode)
	}
	desc = normalize.CleanText(desc)

	budgetNode := findBySelector(card, upworkBudgetSelectors...)
	budgetRaw := ""
	if budgetNode != nil {
		budgetRaw = extractText(budgetNode)
	}
	min, max, kind := normalize.ParseBudget(budgetRaw)

	id := href
	if idx := strings.LastIndex(href, "~"); idx >= 0 {
		id = strings.SplitN(href[idx+1:], "?", 2)[0]
	} else if idx := strings.LastIndex(href, "/"); idx >= 0 {
		id = strings.SplitN(href[idx+1:], "?", 2)[0]
	}
	if id == "" {
		id = url
	}

	return &model.ScrapedOpportunity{
		Platform:       model.PlatformUpwork,
		PlatformID:     id,
		Title:          title,
		Description:    desc,
		SourceURL:      url,
		BudgetMin:      min,
		BudgetMax:      max,
		BudgetType:     kind,
		SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
		ScrapedAt:      scrapedAt,
	}
}
