// Package normalize turns raw scraped text into the structured fields
// an Opportunity needs: parsed budgets, extracted skills, and the
// keyword filter that decides whether a record is worth scoring.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/learnbot/opportunity-hunter/internal/model"
)

var (
	budgetRangeRe = regexp.MustCompile(
		`(?i)\$?\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*[kK]?\s*[-–—to]+\s*\$?\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*[kK]?`)
	budgetSingleRe = regexp.MustCompile(
		`(?i)\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)\s*[kK]?`)
	hourlyRe     = regexp.MustCompile(`(?i)hourly|/\s*hr|/\s*hour|per hour`)
	bareNumberRe = regexp.MustCompile(`^\d+(?:,\d{3})*(?:\.\d+)?$`)
)

// ParseBudget extracts a min/max budget and classifies it as fixed or
// hourly from a raw budget string, e.g. "$500-$1500", "Hourly: $25-$45",
// "$30/hr", "Fixed: $2000".
func ParseBudget(raw string) (min, max *int, kind model.BudgetType) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil, model.BudgetUnknown
	}

	kind = model.BudgetFixed
	if hourlyRe.MatchString(raw) {
		kind = model.BudgetHourly
	}

	if m := budgetRangeRe.FindStringSubmatch(raw); len(m) >= 3 {
		lo := parseBudgetValue(m[1], raw)
		hi := parseBudgetValue(m[2], raw)
		return &lo, &hi, kind
	}

	if m := budgetSingleRe.FindStringSubmatch(raw); len(m) >= 2 {
		val := parseBudgetValue(m[1], raw)
		return &val, nil, kind
	}

	// A bare number with no currency marker still counts as a budget.
	if trimmed := strings.TrimSpace(raw); bareNumberRe.MatchString(trimmed) {
		val := parseBudgetValue(trimmed, raw)
		return &val, nil, kind
	}

	return nil, nil, model.BudgetUnknown
}

func parseBudgetValue(s, context string) int {
	s = strings.ReplaceAll(s, ",", "")
	val, _ := strconv.ParseFloat(s, 64)

	if strings.Contains(strings.ToLower(context), "k") && val < 1000 {
		val *= 1000
	}
	return int(val)
}

// DefaultSkillVocabulary is the fallback skill list used when the
// scoring configuration doesn't supply one.
var DefaultSkillVocabulary = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "rust",
	"c++", "c#", "ruby", "php", "swift", "kotlin", "scala",
	"react", "angular", "vue", "node.js", "django", "flask", "spring",
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch",
	"aws", "azure", "gcp", "docker", "kubernetes", "terraform",
	"git", "ci/cd", "agile", "scrum", "rest", "graphql", "grpc",
	"machine learning", "deep learning", "nlp", "data science",
	"sql", "nosql", "microservices", "kafka", "rabbitmq", "wordpress",
	"shopify", "figma", "webflow",
}

// ExtractSkills scans free text for whole-word occurrences of each
// vocabulary entry, lowercased, deduplicated and in vocabulary order. Matching is
// case-insensitive and requires a non-alphanumeric boundary (or string
// start/end) on both sides of the match, so "go" does not match inside
// "django", "mongodb", "google", or "algorithm".
func ExtractSkills(vocabulary []string, text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]bool{}
	var out []string
	for _, skill := range vocabulary {
		skill := strings.ToLower(strings.TrimSpace(skill))
		if skill == "" || seen[skill] {
			continue
		}
		if containsWholeWord(lower, skill) {
			seen[skill] = true
			out = append(out, skill)
		}
	}
	return out
}

func containsWholeWord(haystack, needle string) bool {
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)

		before := rune(' ')
		if start > 0 {
			before, _ = utf8.DecodeLastRuneInString(haystack[:start])
		}
		after := rune(' ')
		if end < len(haystack) {
			after, _ = utf8.DecodeRuneInString(haystack[end:])
		}
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		from = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// CleanText strips HTML tags, decodes common entities, and collapses
// whitespace.
func CleanText(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")

	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")

	var sb strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				sb.WriteRune(' ')
				prevSpace = true
			}
		} else {
			prevSpace = false
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// ParseRelativeDate converts relative date strings ("2 days ago",
// "yesterday") to absolute times, relative to now.
func ParseRelativeDate(s string) *time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	now := time.Now()

	switch {
	case s == "today" || s == "just now" || strings.Contains(s, "hour"):
		t := now
		return &t
	case strings.Contains(s, "yesterday") || s == "1 day ago":
		t := now.AddDate(0, 0, -1)
		return &t
	case strings.Contains(s, "day"):
		n := leadingInt(s)
		if n > 0 {
			t := now.AddDate(0, 0, -n)
			return &t
		}
	case strings.Contains(s, "week"):
		n := leadingInt(s)
		if n == 0 {
			n = 1
		}
		t := now.AddDate(0, 0, -n*7)
		return &t
	case strings.Contains(s, "month"):
		n := leadingInt(s)
		if n == 0 {
			n = 1
		}
		t := now.AddDate(0, -n, 0)
		return &t
	}
	return nil
}

// ParseTimestamp tries a handful of absolute timestamp layouts used by
// job board APIs, then falls back to ParseRelativeDate for strings like
// "3 days ago". Returns nil if nothing matches.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		time.RFC1123Z,
		time.RFC1123,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return ParseRelativeDate(s)
}

func leadingInt(s string) int {
	n := 0
	found := false
	for _, c := range s {
		if unicode.IsDigit(c) {
			found = true
			n = n*10 + int(c-'0')
		} else if found {
			break
		}
	}
	return n
}

// Filter reports whether a scraped record passes the keyword filter. A
// record survives iff: no exclude keyword appears in title or
// description; at least one required keyword appears in title or
// description; and at least one level keyword appears in title. All
// matching is case-insensitive substring matching. An empty required
// or level list therefore admits nothing: the filter only passes what
// it was configured to look for.
func Filter(cfg model.FilterConfig, title, description string) bool {
	lowerTitle := strings.ToLower(title)
	lowerAll := lowerTitle + " " + strings.ToLower(description)

	for _, kw := range cfg.ExcludeKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowerAll, strings.ToLower(kw)) {
			return false
		}
	}

	if !anyContains(lowerAll, cfg.RequiredKeywords) {
		return false
	}

	return anyContains(lowerTitle, cfg.LevelKeywords)
}

func anyContains(haystack string, needles []string) bool {
	for _, kw := range needles {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
