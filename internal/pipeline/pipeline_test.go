package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/notify"
	"github.com/learnbot/opportunity-hunter/internal/scoring"
	"github.com/learnbot/opportunity-hunter/internal/scraper"
)

var errBoom = errors.New("scraper boom")

type fakeScraper struct {
	source model.Platform
	name   string
	items  []*model.ScrapedOpportunity
	err    error
}

func (f *fakeScraper) Source() model.Platform { return f.source }
func (f *fakeScraper) Name() string           { return f.name }
func (f *fakeScraper) Fetch(ctx context.Context) ([]*model.ScrapedOpportunity, error) {
	return f.items, f.err
}

type fakeSeenStore struct {
	sent map[string]bool
}

func newFakeSeenStore() *fakeSeenStore { return &fakeSeenStore{sent: make(map[string]bool)} }

func (f *fakeSeenStore) IsSent(ctx context.Context, key string) (bool, error) {
	return f.sent[key], nil
}
func (f *fakeSeenStore) MarkSent(ctx context.Context, key string) error {
	f.sent[key] = true
	return nil
}
func (f *fakeSeenStore) MarkSentBatch(ctx context.Context, keys []string) error {
	for _, k := range keys {
		f.sent[k] = true
	}
	return nil
}

type fakeStore struct {
	upserted []*model.Opportunity
	statuses map[string]model.Status
	failKeys map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: make(map[string]model.Status)}
}

func (f *fakeStore) Upsert(ctx context.Context, opp *model.Opportunity) error {
	f.upserted = append(f.upserted, opp)
	return nil
}
func (f *fakeStore) BatchUpsert(ctx context.Context, opps []*model.Opportunity) ([]*model.Opportunity, error) {
	persisted := make([]*model.Opportunity, 0, len(opps))
	var errs []error
	for _, opp := range opps {
		if f.failKeys[opp.NaturalKey] {
			errs = append(errs, fmt.Errorf("fake upsert failure for %s", opp.NaturalKey))
			continue
		}
		f.upserted = append(f.upserted, opp)
		persisted = append(persisted, opp)
	}
	return persisted, errors.Join(errs...)
}
func (f *fakeStore) GetByNaturalKey(ctx context.Context, key string) (*model.Opportunity, error) {
	return nil, nil
}
func (f *fakeStore) GetTopN(ctx context.Context, filter model.SearchFilter) ([]*model.Opportunity, error) {
	return f.upserted, nil
}
func (f *fakeStore) ListByStatus(ctx context.Context, status model.Status, limit int) ([]*model.Opportunity, error) {
	return nil, nil
}
func (f *fakeStore) ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Opportunity, error) {
	return nil, nil
}
func (f *fakeStore) UpdateStatus(ctx context.Context, key string, status model.Status, notes string) error {
	f.statuses[key] = status
	return nil
}
func (f *fakeStore) Stats(ctx context.Context) (model.Stats, error) { return model.Stats{}, nil }
func (f *fakeStore) Close() error                                  { return nil }

type fakeLLMClient struct{}

func (fakeLLMClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"score": 85, "reason": "good fit", "match_score": 90, "budget_reasonable": true, "requirement_clear": true, "estimated_hours": 20, "suggested_bid": 1500, "risks": [], "strengths": ["go"]}`}},
		},
	}, nil
}

func TestFetchAllDegradesOnScraperError(t *testing.T) {
	good := &fakeScraper{source: model.PlatformRemotive, name: "remotive", items: []*model.ScrapedOpportunity{
		{Platform: model.PlatformRemotive, PlatformID: "1", Title: "ok"},
	}}
	bad := &fakeScraper{source: model.PlatformUpwork, name: "upwork", err: errBoom}

	health := scraper.NewHealthTracker()
	orch := &Orchestrator{scrapers: []scraper.Scraper{good, bad}, health: health, logger: log.Default()}

	summary := Summary{ScraperErrors: make(map[string]string)}
	out := orch.fetchAll(context.Background(), &summary)

	if len(out) != 1 || out[0].Title != "ok" {
		t.Fatalf("expected only the healthy scraper's result, got %d items", len(out))
	}
	if summary.ScraperErrors["upwork"] == "" {
		t.Fatal("expected the failing scraper's error to be recorded in the summary")
	}
	snap := health.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected health entries for both scrapers, got %d", len(snap))
	}
}

func TestFilterAllExcludesKeyword(t *testing.T) {
	orch := &Orchestrator{filter: model.FilterConfig{
		RequiredKeywords: []string{"work"},
		LevelKeywords:    []string{"engineer", "site"},
		ExcludeKeywords:  []string{"wordpress"},
	}}
	in := []*model.ScrapedOpportunity{
		{Title: "Go engineer", Description: "backend work"},
		{Title: "WordPress site", Description: "cms work"},
	}
	out := orch.filterAll(in)
	if len(out) != 1 || out[0].Title != "Go engineer" {
		t.Fatalf("expected only the non-excluded opportunity, got %d results", len(out))
	}
}

func TestDedupAllSkipsAlreadySeenAndDuplicates(t *testing.T) {
	seen := newFakeSeenStore()
	seen.sent["remotive_1"] = true
	orch := &Orchestrator{seen: seen}

	in := []*model.ScrapedOpportunity{
		{Platform: model.PlatformRemotive, PlatformID: "1", Title: "already sent"},
		{Platform: model.PlatformRemotive, PlatformID: "2", Title: "fresh"},
		{Platform: model.PlatformRemotive, PlatformID: "2", Title: "duplicate within batch"},
	}

	out, err := orch.dedupAll(context.Background(), in)
	if err != nil {
		t.Fatalf("dedupAll returned error: %v", err)
	}
	if len(out) != 1 || out[0].Title != "fresh" {
		t.Fatalf("expected exactly the one fresh opportunity, got %d", len(out))
	}
}

func TestScoreAndUpsertIntegration(t *testing.T) {
	budget := 1000
	scraped := []*model.ScrapedOpportunity{
		{
			Platform:    model.PlatformRemotive,
			PlatformID:  "1",
			Title:       "Go backend engineer",
			Description: "Looking for a senior Go developer to build and maintain REST APIs for a payments platform, with a focus on reliability.",
			BudgetMin:   &budget,
			BudgetType:  model.BudgetFixed,
		},
	}

	s := scoring.New(fakeLLMClient{}, []string{"go"}, 500, log.Default())
	results, err := s.ScoreAll(context.Background(), scraped)
	if err != nil {
		t.Fatalf("ScoreAll returned error: %v", err)
	}

	store := newFakeStore()
	persisted, err := store.BatchUpsert(context.Background(), toOpportunities(results))
	if err != nil {
		t.Fatalf("BatchUpsert returned error: %v", err)
	}
	if len(persisted) != 1 || len(store.upserted) != 1 {
		t.Fatalf("expected 1 upserted record, got %d", len(persisted))
	}
	if store.upserted[0].Score.Int64 != 85 {
		t.Fatalf("expected score carried through from the llm response, got %d", store.upserted[0].Score.Int64)
	}
}

func TestToOpportunitiesCarriesScoreAndBudget(t *testing.T) {
	budget := 750
	results := []scoring.Result{
		{
			Opportunity: &model.ScrapedOpportunity{
				Platform:   model.PlatformRemotive,
				PlatformID: "9",
				Title:      "Go role",
				BudgetMin:  &budget,
			},
			Score:          77,
			Reason:         "solid match",
			SuggestedBid:   900,
			EstimatedHours: 15,
		},
	}

	out := toOpportunities(results)
	if len(out) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(out))
	}
	o := out[0]
	if o.NaturalKey != "remotive_9" {
		t.Fatalf("expected natural key remotive_9, got %s", o.NaturalKey)
	}
	if !o.Score.Valid || o.Score.Int64 != 77 {
		t.Fatalf("expected score 77, got %+v", o.Score)
	}
	if !o.BudgetMin.Valid || o.BudgetMin.Int64 != 750 {
		t.Fatalf("expected budget min 750, got %+v", o.BudgetMin)
	}
	if o.Status != model.StatusScored {
		t.Fatalf("expected status scored, got %s", o.Status)
	}
}

// TestTickNeverNotifiesOrMarksSeenARecordThatFailedToPersist covers the
// case where BatchUpsert partially fails: the record that failed to
// persist must not be sent to the dispatcher or added to the seen-set,
// since it will otherwise be lost for good (never stored, never
// retried).
func TestTickNeverNotifiesOrMarksSeenARecordThatFailedToPersist(t *testing.T) {
	var notifiedTitles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notifiedTitles = append(notifiedTitles, "sent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	client, err := httpclient.New(httpclient.Config{MaxRetries: 0, RequestsPerMinute: 6000}, nil)
	if err != nil {
		t.Fatalf("build http client: %v", err)
	}
	dispatcher := notify.New(client, "token", "chat", notify.WithBaseURL(srv.URL))

	good := &fakeScraper{source: model.PlatformRemotive, name: "remotive", items: []*model.ScrapedOpportunity{
		{Platform: model.PlatformRemotive, PlatformID: "ok", Title: "Go engineer", Description: "Go role"},
		{Platform: model.PlatformRemotive, PlatformID: "bad", Title: "Rust engineer", Description: "Rust role"},
	}}

	store := newFakeStore()
	store.failKeys = map[string]bool{"remotive_bad": true}
	seen := newFakeSeenStore()
	scorer := scoring.New(fakeLLMClient{}, []string{"go"}, 0, log.Default())

	filter := model.FilterConfig{
		RequiredKeywords: []string{"role"},
		LevelKeywords:    []string{"engineer"},
	}
	orch := New([]scraper.Scraper{good}, scraper.NewHealthTracker(), filter, seen, scorer, store, dispatcher, log.Default())

	summary, err := orch.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}
	if summary.Upserted != 1 {
		t.Fatalf("expected 1 successfully persisted record, got %d", summary.Upserted)
	}
	if summary.Notified != 1 {
		t.Fatalf("expected only the persisted record to be notified, got %d", summary.Notified)
	}
	if seen.sent["remotive_bad"] {
		t.Fatal("record that failed to persist must never be marked seen")
	}
	if !seen.sent["remotive_ok"] {
		t.Fatal("expected the successfully persisted record to be marked seen")
	}
	if len(notifiedTitles) != 1 {
		t.Fatalf("expected exactly 1 notification call, got %d", len(notifiedTitles))
	}
}
