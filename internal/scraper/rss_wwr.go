package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/normalize"
)

type wwrScraper struct {
	*BaseScraper
}

func newWWRScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &wwrScraper{BaseScraper: base}, nil
}

func (s *wwrScraper) Source() model.Platform { return model.PlatformWWR }
func (s *wwrScraper) Name() string           { return "wwr" }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

func (s *wwrScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	body, err := s.Client.GetBody(ctx, s.Config.URL, s.Config.Headers)
	if err != nil {
		return nil, fmt.Errorf("wwr: fetch: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal([]byte(body), &feed); err != nil {
		return nil, fmt.Errorf("wwr: decode rss: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*model.ScrapedOpportunity, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		desc := normalize.CleanText(item.Description)
		out = append(out, &model.ScrapedOpportunity{
			Platform:       model.PlatformWWR,
			PlatformID:     item.Link,
			Title:          item.Title,
			Description:    desc,
			SourceURL:      item.Link,
			BudgetType:     model.BudgetUnknown,
			SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
			ClientCountry:  "Remote",
			PostedAt:       normalize.ParseTimestamp(item.PubDate),
			ScrapedAt:      now,
		})
	}
	return out, nil
}
