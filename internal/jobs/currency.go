package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/khlemanenka99-ai/news-portal/internal/cache"
	"github.com/khlemanenka99-ai/news-portal/internal/config"
	"github.com/khlemanenka99-ai/news-portal/internal/observability"
	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

type rateResponse struct {
	OfficialRate *float64 `json:"Cur_OfficialRate"`
}

// CurrencySync copies official exchange rates into the shared cache.
type CurrencySync struct {
	client  JSONGetter
	cache   cache.Cache
	cfg     config.CurrencyConfig
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewCurrencySync(client JSONGetter, c cache.Cache, cfg config.CurrencyConfig, metrics *observability.Metrics, logger *slog.Logger) *CurrencySync {
	return &CurrencySync{
		client:  client,
		cache:   c,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("component", "currency_sync", "job", NameCurrency),
	}
}

func (j *CurrencySync) Name() string { return NameCurrency }

// Run fetches every configured rate in order and stops at the first
// failure. Keys already written stay written.
func (j *CurrencySync) Run(ctx context.Context) error {
	for _, rc := range j.cfg.Rates {
		rate, err := j.fetch(ctx, rc.Code)
		if err != nil {
			return fmt.Errorf("currency %d: %w", rc.Code, err)
		}
		if err := cache.PutJSON(ctx, j.cache, rc.Key, rate, j.cfg.TTL); err != nil {
			return fmt.Errorf("cache %s: %w", rc.Key, err)
		}
		j.metrics.ObserveCacheWrite(rc.Key)
		j.logger.Info("rate updated", "code", rc.Code, "key", rc.Key, "rate", rate)
	}
	return nil
}

func (j *CurrencySync) fetch(ctx context.Context, code int) (float64, error) {
	u := fmt.Sprintf("%s/exrates/rates/%d?periodicity=0", strings.TrimRight(j.cfg.BaseURL, "/"), code)

	var resp rateResponse
	if err := j.client.GetJSON(ctx, u, &resp); err != nil {
		return 0, err
	}
	if resp.OfficialRate == nil {
		return 0, &types.FetchError{URL: u, Err: fmt.Errorf("Cur_OfficialRate: %w", types.ErrMissingField)}
	}
	return *resp.OfficialRate, nil
}
