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

type remotiveScraper struct {
	*BaseScraper
}

func newRemotiveScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &remotiveScraper{BaseScraper: base}, nil
}

func (s *remotiveScraper) Source() model.Platform { return model.PlatformRemotive }
func (s *remotiveScraper) Name() string           { return "remotive" }

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID                        int64  `json:"id"`
	Title                     string `json:"title"`
	CompanyName               string `json:"company_name"`
	CandidateRequiredLocation string `json:"candidate_required_location"`
	URL                       string `json:"url"`
	Description               string `json:"description"`
	PublicationDate           string `json:"publication_date"`
	Salary                    string `json:"salary"`
}

func (s *remotiveScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	url := s.Config.URL
	if s.Config.SearchQuery != "" {
		url = fmt.Sprintf("%s?search=%s", url, s.Config.SearchQuery)
	}

	body, err := s.Client.GetBody(ctx, url, s.Config.Headers)
	if err != nil {
		return nil, fmt.Errorf("remotive: fetch: %w", err)
	}

	var resp remotiveResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("remotive: decode: %w", err)
	}

	now := time.Now().UTC()
	out := make([]*model.ScrapedOpportunity, 0, len(resp.Jobs))
	for _, j := range resp.Jobs {
		min, max, kind := normalize.ParseBudget(j.Salary)
		loc := j.CandidateRequiredLocation
		if loc == "" {
			loc = "Worldwide"
		}
		desc := normalize.CleanText(j.Description)
		out = append(out, &model.ScrapedOpportunity{
			Platform:       model.PlatformRemotive,
			PlatformID:     fmt.Sprintf("%d", j.ID),
			Title:          j.Title,
			Description:    desc,
			SourceURL:      j.URL,
			BudgetMin:      min,
			BudgetMax:      max,
			BudgetType:     kind,
			SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
			ClientCountry:  loc,
			PostedAt:       normalize.ParseTimestamp(j.PublicationDate),
			ScrapedAt:      now,
		})
	}
	return out, nil
}
