// Package notify formats batches of opportunities as Markdown and
// dispatches them to a chat webhook, with all-or-nothing batch
// semantics so a failed send never marks records as delivered.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
)

const (
	defaultMaxPerMessage = 10
	defaultBaseURL       = "https://api.telegram.org"
)

// Dispatcher sends batches of opportunities to a Telegram chat.
type Dispatcher struct {
	client        *httpclient.Client
	botToken      string
	chatID        string
	baseURL       string
	maxPerMessage int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBaseURL overrides the Telegram API base URL, used in tests to
// point the dispatcher at a local httptest server.
func WithBaseURL(url string) Option {
	return func(d *Dispatcher) { d.baseURL = url }
}

// WithMaxPerMessage overrides how many opportunities are rendered into
// a single chat message before overflowing into another.
func WithMaxPerMessage(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPerMessage = n
		}
	}
}

// New builds a Dispatcher using the shared rate-limited HTTP client.
func New(client *httpclient.Client, botToken, chatID string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:        client,
		botToken:      botToken,
		chatID:        chatID,
		baseURL:       defaultBaseURL,
		maxPerMessage: defaultMaxPerMessage,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Batches splits opportunities into dispatcher-sized chunks.
func (d *Dispatcher) Batches(opps []*model.Opportunity) [][]*model.Opportunity {
	max := d.maxPerMessage
	if max <= 0 {
		max = defaultMaxPerMessage
	}
	var out [][]*model.Opportunity
	for i := 0; i < len(opps); i += max {
		end := i + max
		if end > len(opps) {
			end = len(opps)
		}
		out = append(out, opps[i:end])
	}
	return out
}

// FormatBatch renders one batch of opportunities as a Markdown message.
func FormatBatch(opps []*model.Opportunity) string {
	if len(opps) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("*New opportunities found*\n\n")
	for _, opp := range opps {
		title := escape(opp.Title)
		sb.WriteString(fmt.Sprintf("📍 *%s*\n", title))
		sb.WriteString(fmt.Sprintf("📦 Platform: %s\n", escape(string(opp.Platform))))
		if opp.ClientCountry.Valid && opp.ClientCountry.String != "" {
			sb.WriteString(fmt.Sprintf("🌍 Location: %s\n", escape(opp.ClientCountry.String)))
		}
		if opp.PostedAt.Valid {
			sb.WriteString(fmt.Sprintf("🗓 Posted: %s\n", opp.PostedAt.Time.Format("2006-01-02")))
		}
		if budget := formatBudget(opp); budget != "" {
			sb.WriteString(fmt.Sprintf("💰 Budget: %s\n", escape(budget)))
		}
		if opp.Score.Valid {
			sb.WriteString(fmt.Sprintf("⭐ Score: %d\n", opp.Score.Int64))
		}
		sb.WriteString(fmt.Sprintf("🔗 [View](%s)\n\n", opp.SourceURL))
	}
	return sb.String()
}

func formatBudget(opp *model.Opportunity) string {
	switch {
	case opp.BudgetMin.Valid && opp.BudgetMax.Valid:
		return fmt.Sprintf("$%d-$%d", opp.BudgetMin.Int64, opp.BudgetMax.Int64)
	case opp.BudgetMin.Valid:
		return fmt.Sprintf("$%d", opp.BudgetMin.Int64)
	default:
		return ""
	}
}

// escape neutralizes Markdown special characters so a title or
// location can't corrupt the surrounding message formatting.
func escape(s string) string {
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"[", "\\[",
		"]", "\\]",
		"$", "\\$",
	)
	return replacer.Replace(s)
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// Send delivers one batch as a single chat message. All-or-nothing: a
// non-2xx response or transport error leaves the caller free to retry
// without risking a duplicate send of a different batch.
func (d *Dispatcher) Send(ctx context.Context, opps []*model.Opportunity) error {
	message := FormatBatch(opps)
	if message == "" {
		return nil
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    d.chatID,
		Text:      message,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", d.baseURL, d.botToken)
	resp, err := d.client.Post(ctx, url, strings.NewReader(string(payload)), map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("notify: telegram responded %s", resp.Status)
	}
	return nil
}

// SendAll dispatches every batch, stopping at the first failure so the
// caller knows exactly which batches were (and weren't) delivered —
// only the successfully sent batches should be marked as notified.
func (d *Dispatcher) SendAll(ctx context.Context, opps []*model.Opportunity) (sent []*model.Opportunity, err error) {
	for _, batch := range d.Batches(opps) {
		if sendErr := d.Send(ctx, batch); sendErr != nil {
			return sent, fmt.Errorf("notify: batch of %d: %w", len(batch), sendErr)
		}
		sent = append(sent, batch...)
	}
	return sent, nil
}
