package scraper

import (
	"fmt"
	"log"

	"github.com/learnbot/opportunity-hunter/internal/httpclient"
	"github.com/learnbot/opportunity-hunter/internal/model"
)

// ErrUnknownKind is returned when a site configuration names a Kind
// this binary has no scraper for.
type ErrUnknownKind struct {
	Kind string
}

func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("scraper: unknown site kind %q", e.Kind)
}

// constructor builds a concrete Scraper from site config, a shared
// HTTP client configuration, and the configured skill vocabulary.
type constructor func(httpclient.Config, model.SiteConfig, []string, *log.Logger) (Scraper, error)

// registry is the closed set of scraper kinds this binary understands.
// There is no string-keyed dynamic dispatch beyond this map: an unknown
// Kind on an enabled site makes Build fail at startup rather than
// silently no-opping at scrape time.
var registry = map[string]constructor{
	"remotive":  newRemotiveScraper,
	"remoteok":  newRemoteOKScraper,
	"arbeitnow": newArbeitnowScraper,
	"wwr":       newWWRScraper,
	"upwork":    newUpworkScraper,
	"toptal":    newToptalScraper,
}

// Build instantiates every enabled site in sites, failing fast on an
// unrecognized Kind. skills is the configured skill vocabulary passed
// to each scraper for ExtractSkills.
func Build(httpCfg httpclient.Config, sites []model.SiteConfig, skills []string, logger *log.Logger) ([]Scraper, error) {
	var out []Scraper
	for _, site := range sites {
		if !site.Enabled {
			continue
		}
		ctor, ok := registry[site.Kind]
		if !ok {
			return nil, &ErrUnknownKind{Kind: site.Kind}
		}
		s, err := ctor(httpCfg, site, skills, logger)
		if err != nil {
			return nil, fmt.Errorf("build scraper %q: %w", site.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
