// Package pipeline wires scraping, filtering, deduplication, scoring,
// persistence, and notification into one tick.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/normalize"
	"github.com/learnbot/opportunity-hunter/internal/notify"
	"github.com/learnbot/opportunity-hunter/internal/scoring"
	"github.com/learnbot/opportunity-hunter/internal/scraper"
	"github.com/learnbot/opportunity-hunter/internal/seenset"
	"github.com/learnbot/opportunity-hunter/internal/storage"
)

// Summary reports what one tick accomplished, surfaced to the admin
// dashboard and CLI.
type Summary struct {
	StartedAt     time.Time
	Duration      time.Duration
	Scraped       int
	AfterFilter   int
	AfterDedup    int
	Scored        int
	Upserted      int
	Notified      int
	ScraperErrors map[string]string
}

// Orchestrator runs one end-to-end tick of the discovery pipeline.
type Orchestrator struct {
	scrapers []scraper.Scraper
	health   *scraper.HealthTracker
	filter   model.FilterConfig
	seen     seenset.Store
	scorer   *scoring.Scorer
	store    storage.Store
	notifier *notify.Dispatcher
	logger   *log.Logger
}

// New builds an Orchestrator from its constituent components.
func New(
	scrapers []scraper.Scraper,
	health *scraper.HealthTracker,
	filter model.FilterConfig,
	seen seenset.Store,
	scorer *scoring.Scorer,
	store storage.Store,
	notifier *notify.Dispatcher,
	logger *log.Logger,
) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		scrapers: scrapers,
		health:   health,
		filter:   filter,
		seen:     seen,
		scorer:   scorer,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// Tick runs the full fetch -> filter -> dedup -> score -> upsert ->
// notify -> mark-sent sequence exactly once.
func (o *Orchestrator) Tick(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: time.Now(), ScraperErrors: make(map[string]string)}

	scraped := o.fetchAll(ctx, &summary)
	summary.Scraped = len(scraped)

	filtered := o.filterAll(scraped)
	summary.AfterFilter = len(filtered)

	deduped, err := o.dedupAll(ctx, filtered)
	if err != nil {
		return summary, fmt.Errorf("pipeline: dedup: %w", err)
	}
	summary.AfterDedup = len(deduped)

	if len(deduped) == 0 {
		summary.Duration = time.Since(summary.StartedAt)
		return summary, nil
	}

	results, err := o.scorer.ScoreAll(ctx, deduped)
	if err != nil {
		return summary, fmt.Errorf("pipeline: score: %w", err)
	}
	summary.Scored = len(results)

	// Final ordering is score descending; ties keep scraper fetch order,
	// which is already the input order here (sort.SliceStable).
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	opps := toOpportunities(results)
	persisted, err := o.store.BatchUpsert(ctx, opps)
	if err != nil {
		o.logger.Printf("pipeline: batch upsert error: %v", err)
	}
	summary.Upserted = len(persisted)

	// Only records BatchUpsert actually persisted are eligible for
	// notification: a record that failed to upsert must never be
	// marked seen, or it would never be retried.
	sent, err := o.notifier.SendAll(ctx, persisted)
	if err != nil {
		o.logger.Printf("pipeline: notify error: %v", err)
	}
	summary.Notified = len(sent)

	if len(sent) > 0 {
		keys := make([]string, 0, len(sent))
		for _, opp := range sent {
			keys = append(keys, opp.NaturalKey)
			if err := o.store.UpdateStatus(ctx, opp.NaturalKey, model.StatusNotified, ""); err != nil {
				o.logger.Printf("pipeline: update status %s: %v", opp.NaturalKey, err)
			}
		}
		if err := o.seen.MarkSentBatch(ctx, keys); err != nil {
			o.logger.Printf("pipeline: mark sent: %v", err)
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	return summary, nil
}

// fetchAll runs every scraper concurrently. A scraper's error never
// fails the tick: it degrades to an empty result and is recorded for
// the health tracker and summary.
func (o *Orchestrator) fetchAll(ctx context.Context, summary *Summary) []*model.ScrapedOpportunity {
	results := make([][]*model.ScrapedOpportunity, len(o.scrapers))

	g, gctx := errgroup.WithContext(ctx)
	for i, sc := range o.scrapers {
		i, sc := i, sc
		g.Go(func() error {
			items, err := sc.Fetch(gctx)
			if o.health != nil {
				o.health.Record(sc.Name(), len(items), err)
			}
			if err != nil {
				o.logger.Printf("pipeline: %s fetch failed: %v", sc.Name(), err)
				summary.ScraperErrors[sc.Name()] = err.Error()
				return nil
			}
			results[i] = items
			return nil
		})
	}
	g.Wait()

	var all []*model.ScrapedOpportunity
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

func (o *Orchestrator) filterAll(scraped []*model.ScrapedOpportunity) []*model.ScrapedOpportunity {
	out := make([]*model.ScrapedOpportunity, 0, len(scraped))
	for _, s := range scraped {
		if normalize.Filter(o.filter, s.Title, s.Description) {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) dedupAll(ctx context.Context, scraped []*model.ScrapedOpportunity) ([]*model.ScrapedOpportunity, error) {
	out := make([]*model.ScrapedOpportunity, 0, len(scraped))
	localSeen := make(map[string]struct{})
	for _, s := range scraped {
		key := s.NaturalKey()
		if _, dup := localSeen[key]; dup {
			continue
		}
		sent, err := o.seen.IsSent(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("check seen %s: %w", key, err)
		}
		if sent {
			continue
		}
		localSeen[key] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func toOpportunities(results []scoring.Result) []*model.Opportunity {
	out := make([]*model.Opportunity, 0, len(results))
	for _, r := range results {
		opp := r.Opportunity
		var budgetMin, budgetMax *int64
		if opp.BudgetMin != nil {
			v := int64(*opp.BudgetMin)
			budgetMin = &v
		}
		if opp.BudgetMax != nil {
			v := int64(*opp.BudgetMax)
			budgetMax = &v
		}

		o := &model.Opportunity{
			NaturalKey:     opp.NaturalKey(),
			Platform:       opp.Platform,
			Title:          opp.Title,
			Description:    opp.Description,
			SourceURL:      opp.SourceURL,
			BudgetType:     opp.BudgetType,
			SkillsRequired: opp.SkillsRequired,
			ScrapedAt:      opp.ScrapedAt,
			Status:         model.StatusScored,
			ScoreReason:    r.Reason,
			ScoreDetails:   scoring.MarshalDetails(r.Details),
		}
		if budgetMin != nil {
			o.BudgetMin.Int64, o.BudgetMin.Valid = *budgetMin, true
		}
		if budgetMax != nil {
			o.BudgetMax.Int64, o.BudgetMax.Valid = *budgetMax, true
		}
		if opp.ClientCountry != "" {
			o.ClientCountry.String, o.ClientCountry.Valid = opp.ClientCountry, true
		}
		if opp.ClientRating != nil {
			o.ClientRating.Float64, o.ClientRating.Valid = *opp.ClientRating, true
		}
		if len(opp.ClientInfo) > 0 {
			if data, err := json.Marshal(opp.ClientInfo); err == nil {
				o.ClientInfo = data
			}
		}
		if opp.PostedAt != nil {
			o.PostedAt.Time, o.PostedAt.Valid = *opp.PostedAt, true
		}
		o.Score.Int64, o.Score.Valid = int64(r.Score), true
		if r.SuggestedBid > 0 {
			o.SuggestedBid.Int64, o.SuggestedBid.Valid = int64(r.SuggestedBid), true
		}
		if r.EstimatedHours > 0 {
			o.EstimatedHours.Int64, o.EstimatedHours.Valid = int64(r.EstimatedHours), true
		}
		out = append(out, o)
	}
	return out
}
