// Package jobs holds the periodic jobs run by the engine: the exchange
// rate and weather syncs that feed the shared cache and the news scrape
// that feeds the store.
package jobs

//go:generate mockgen -source=jobs.go -destination=mocks/mock_jobs.go -package=mocks

import (
	"context"
	"regexp"
	"strings"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Job names as registered with the runner and exposed by the API.
const (
	NameCurrency = "currency"
	NameWeather  = "weather"
	NameNews     = "news"
)

// JSONGetter performs one GET and decodes the JSON response into out.
type JSONGetter interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
}

// Reconciler stores an extracted candidate under a category.
type Reconciler interface {
	Reconcile(ctx context.Context, c *types.NewsCandidate, category int) (types.UpsertOutcome, error)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}
