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

type remoteOKScraper struct {
	*BaseScraper
}

func newRemoteOKScraper(cfg httpclient.Config, site model.SiteConfig, skills []string, logger *log.Logger) (Scraper, error) {
	base, err := NewBaseScraper(cfg, site, skills, logger)
	if err != nil {
		return nil, err
	}
	return &remoteOKScraper{BaseScraper: base}, nil
}

func (s *remoteOKScraper) Source() model.Platform { return model.PlatformRemoteOK }
func (s *remoteOKScraper) Name() string           { return "remoteok" }

type remoteOKJob struct {
	ID          json.Number `json:"id"`
	Position    string      `json:"position"`
	Company     string      `json:"company"`
	Location    string      `json:"location"`
	Epoch       int64       `json:"epoch"`
	Salary      string      `json:"salary"`
	SalaryMin   int64       `json:"salary_min"`
	Description string      `json:"description"`
}

// Fetch parses RemoteOK's JSON array response. RemoteOK always returns
// a leading metadata object as element 0, followed by job postings.
func (s *remoteOKScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	headers := s.Config.Headers
	if headers == nil {
		headers = map[string]string{"User-Agent": "Mozilla/5.0"}
	}

	body, err := s.Client.GetBody(ctx, s.Config.URL, headers)
	if err != nil {
		return nil, fmt.Errorf("remoteok: fetch: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("remoteok: decode: %w", err)
	}
	if len(raw) <= 1 {
		return nil, nil
	}

	now := time.Now().UTC()
	out := make([]*model.ScrapedOpportunity, 0, len(raw)-1)
	for _, item := range raw[1:] {
		var j remoteOKJob
		if err := json.Unmarshal(item, &j); err != nil {
			continue
		}
		if j.Position == "" {
			continue
		}

		salaryRaw := j.Salary
		if salaryRaw == "" && j.SalaryMin > 0 {
			salaryRaw = fmt.Sprintf("$%d", j.SalaryMin)
		}
		min, max, kind := normalize.ParseBudget(salaryRaw)

		var postedAt *time.Time
		if j.Epoch > 0 {
			t := time.Unix(j.Epoch, 0)
			postedAt = &t
		}

		loc := j.Location
		if loc == "" {
			loc = "Remote"
		}
		desc := normalize.CleanText(j.Description)

		out = append(out, &model.ScrapedOpportunity{
			Platform:       model.PlatformRemoteOK,
			PlatformID:     j.ID.String(),
			Title:          j.Position,
			Description:    desc,
			SourceURL:      fmt.Sprintf("https://remoteok.com/remote-jobs/%s", j.ID.String()),
			BudgetMin:      min,
			BudgetMax:      max,
			BudgetType:     kind,
			SkillsRequired: normalize.ExtractSkills(s.Skills, desc),
			ClientCountry:  loc,
			PostedAt:       postedAt,
			ScrapedAt:      now,
		})
	}
	return out, nil
}
