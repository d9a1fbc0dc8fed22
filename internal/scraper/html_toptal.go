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

type toptalScraper struct {
	*BaseScraper
	renderer Renderer
}

func newToptalScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &toptalScraper{BaseScraper: base, renderer: &httpRenderer{client: base.Client}}, nil
}

func (s *toptalScraper) Source() model.Platform { return model.PlatformToptal }
func (s *toptalScraper) Name() string           { return "toptal" }

var (
	toptalCardSelectors  = []string{"div.job-listing", "article.opportunity", "li.job-item"}
	toptalTitleSelectors = []string{"a.job-title", "h3 a", "a"}
	toptalDescSelectors  = []string{"div.job-summary", "p.description", "p"}
	toptalLocationSelectors = []string{"span.location", ".job-location"}
)

func (s *toptalScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	if !s.Robots.IsAllowed(ctx, s.Config.URL) {
		return nil, fmt.Errorf("toptal: disallowed by robots.txt")
	}

	body, err := s.renderer.Render(ctx, s.Config.URL, s.Config.Headers)
	if err != nil {
		return nil, fmt.Errorf("toptal: fetch: %w", err)
	}

	doc, err := parseHTML(body)
	if err != nil {
		return nil, fmt.Errorf("toptal: parse: %w", err)
	}

	var cards []*html.Node
	for _, sel := range toptalCardSelectors {
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

func (s *toptalScraper) extractCard(card *html.Node, scrapedAt time.Time) *model.ScrapedOpportunity {
	titleNode := findBySelector(card, toptalTitleSelectors...)
	if titleNode == nil {
		return nil
	}
	title := extractText(titleNode)
	href := getAttr(titleNode, "href")
	url := resolveURL("https://www.toptal.com", href)

	descNode := findBySelector(card, toptalDescSelectors...)
	desc := ""
	if descNode != nil {
		desc = extractText(descNode)
	}
	desc = normalize.CleanText(desc)

	locNode := findBySelector(card, toptalLocationSelectors...)
	loc := ""
	if locNode != nil {
		loc = parseLocation(extractText(locNode))
	}

	id := url
	if idx := strings.LastIndex(href, "/"); idx >= 0 {
		id = strings.SplitN(href[idx+1:], "?", 2)[0]
	}

	return &model.ScrapedOpportunity{
		Platform:       model.PlatformToptal,
		PlatformID:     id,
		Title:          title,
		Description:    desc,
		SourceURL:      url,
		BudgetType:     model.BudgetUnknown,
		SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
		ClientCountry:  loc,
		ScrapedAt:      scrapedAt,
	}
}
