// Package scoring runs scraped opportunities through an LLM, parses
// its judgment, and layers a small rule-based overlay on top.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	openai "github.com/sashabaranov/go-openai"

	"github.com/learnbot/opportunity-hunter/internal/model"
	"github.com/learnbot/opportunity-hunter/internal/retry"
	"github.com/learnbot/opportunity-hunter/internal/scoring/llm"
)

const (
	defaultConcurrency    = 3
	defaultScoreThreshold = 70
	defaultRetryAttempts  = 6
	defaultRetryBackoff   = 2 * time.Second
)

// Result is a scored opportunity ready to merge into an Opportunity
// record.
type Result struct {
	Opportunity    *model.ScrapedOpportunity
	Score          int
	Reason         string
	Details        model.ScoreDetails
	SuggestedBid   int
	EstimatedHours int
}

// Scorer evaluates opportunities against a skill profile and budget
// floor using an LLM, bounded to a fixed number of concurrent calls.
type Scorer struct {
	client         llm.Client
	model          string
	skills         []string
	minBudget      int
	concurrency    int
	scoreThreshold int
	retryAttempts  int
	retryBackoff   time.Duration
	logger         *log.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithConcurrency overrides the default bounded fan-out width.
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithModel overrides the chat completion model name.
func WithModel(name string) Option {
	return func(s *Scorer) { s.model = name }
}

// WithScoreThreshold overrides the score at or above which a record is
// marked recommended.
func WithScoreThreshold(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.scoreThreshold = n
		}
	}
}

// WithRetry overrides how many times a transient LLM transport failure
// is attempted and the base backoff between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Scorer) {
		if attempts > 0 {
			s.retryAttempts = attempts
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// New builds a Scorer.
func New(client llm.Client, skills []string, minBudget int, logger *log.Logger, opts ...Option) *Scorer {
	if logger == nil {
		logger = log.Default()
	}
	s := &Scorer{
		client:         client,
		model:          openai.GPT4oMini,
		skills:         skills,
		minBudget:      minBudget,
		concurrency:    defaultConcurrency,
		scoreThreshold: defaultScoreThreshold,
		retryAttempts:  defaultRetryAttempts,
		retryBackoff:   defaultRetryBackoff,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreAll evaluates every opportunity concurrently, bounded by the
// scorer's configured concurrency. A single opportunity's failure
// never aborts the rest: it is recorded with the deterministic
// fallback analysis instead.
func (s *Scorer) ScoreAll(ctx context.Context, opps []*model.ScrapedOpportunity) ([]Result, error) {
	results := make([]Result, len(opps))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, opp := range opps {
		i, opp := i, opp
		g.Go(func() error {
			results[i] = s.scoreOne(gctx, opp)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	return results, nil
}

func (s *Scorer) scoreOne(ctx context.Context, opp *model.ScrapedOpportunity) Result {
	// A cancelled batch must not start new LLM calls; in-flight and
	// queued records degrade to the fallback analysis instead.
	if ctx.Err() != nil {
		return s.buildResult(opp, fallbackAnalysis())
	}

	prompt := buildPrompt(opp, s.skills, s.minBudget)

	var response string
	err := retry.Do(ctx, s.retryAttempts, s.retryBackoff, isRetryableTransportErr, func(ctx context.Context) error {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.3,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("scoring: empty completion")
		}
		response = resp.Choices[0].Message.Content
		return nil
	})

	var analysis rawAnalysis
	if err != nil {
		s.logger.Printf("scoring: %s: llm call failed after retries: %v", opp.Title, err)
		analysis = fallbackAnalysis()
	} else {
		analysis = parseResponse(response)
	}

	return s.buildResult(opp, analysis)
}

// buildResult applies the rule overlay to a raw analysis and packages
// it as a Result for the pipeline.
func (s *Scorer) buildResult(opp *model.ScrapedOpportunity, analysis rawAnalysis) Result {
	budget := 0
	if opp.BudgetMin != nil {
		budget = *opp.BudgetMin
	}
	analysis = applyRuleOverlay(analysis, budget, s.minBudget, opp.Description, len(opp.SkillsRequired) > 0)

	details := model.ScoreDetails{
		MatchScore:       analysis.MatchScore,
		BudgetReasonable: analysis.BudgetReasonable,
		RequirementClear: analysis.RequirementClear,
		Recommended:      !analysis.notRecommended && analysis.Score >= s.scoreThreshold,
		Risks:            analysis.Risks,
		Strengths:        analysis.Strengths,
	}

	return Result{
		Opportunity:    opp,
		Score:          analysis.Score,
		Reason:         analysis.Reason,
		Details:        details,
		SuggestedBid:   analysis.SuggestedBid,
		EstimatedHours: analysis.EstimatedHours,
	}
}

func isRetryableTransportErr(err error) bool {
	if err == nil {
		return false
	}
	// Transport/network errors are retried; a bad request or content
	// problem from the API is not treated as transient.
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return true
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}

// MarshalDetails serializes ScoreDetails for storage in the
// opportunity record's score_details column.
func MarshalDetails(d model.ScoreDetails) []byte {
	data, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	return data
}
