package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/normalize"
)

type arbeitnowScraper struct {
	*BaseScraper
}

func newArbeitnowScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &arbeitnowScraper{BaseScraper: base}, nil
}

func (s *arbeitnowScraper) Source() model.Platform { return model.PlatformArbeitnow }
func (s *arbeitnowScraper) Name() string           { return "arbeitnow" }

type arbeitnowResponse struct {
	Data []arbeitnowJob `json:"data"`
}

type arbeitnowJob struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	Location    string `json:"location"`
	URL         string `json:"url"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	Salary      string `json:"salary"`
}

func (s *arbeitnowScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	body, err := s.Client.GetBody(ctx, s.Config.URL, s.Config.Headers)
	if err != nil {
		return nil, fmt.Errorf("arbeitnow: fetch: %w", err)
	}

	var resp arbeitnowResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("arbeitnow: decode: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*model.ScrapedOpportunity, 0, len(resp.Data))
	for _, j := range resp.Data {
		min, max, kind := normalize.ParseBudget(j.Salary)
		loc := j.Location
		if loc == "" {
			loc = "Remote"
		}
		desc := normalize.CleanText(j.Description)
		out = append(out, &model.ScrapedOpportunity{
			Platform:       model.PlatformArbeitnow,
			PlatformID:     j.Slug,
			Title:          j.Title,
			Description:    desc,
			SourceURL:      j.URL,
			BudgetMin:      min,
			BudgetMax:      max,
			BudgetType:     kind,
			SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
			ClientCountry:  loc,
			PostedAt:       normalize.ParseTimestamp(j.CreatedAt),
			ScrapedAt:      now,
		})
	}
	return out, nil
}
