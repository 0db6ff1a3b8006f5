// Package rates supplies exchange-rate tables to display code. It never
// fails: when the remote service is unreachable the last known table is
// served, and with nothing known it returns nil, which conversion treats as
// "leave amounts unconverted".
package rates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/repository"
)

// Fetcher is the remote rate source; api.Client satisfies it.
type Fetcher interface {
	GetExchangeRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error)
}

type Provider struct {
	fetcher    Fetcher
	repo       repository.RateRepository
	base       string
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	table     *entity.ExchangeRateTable
	fetchedAt time.Time
	flights   singleflight.Group
}

type Option func(*Provider)

// WithRepository persists fetched tables and serves them after a restart.
func WithRepository(repo repository.RateRepository) Option {
	return func(p *Provider) {
		p.repo = repo
	}
}

// WithTTL sets how long a fetched table is served without refetching.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithStaleAfter sets the table age past which a warning is logged.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func NewProvider(fetcher Fetcher, base string, logger *slog.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		fetcher:    fetcher,
		base:       strings.ToUpper(strings.TrimSpace(base)),
		ttl:        time.Hour,
		staleAfter: 24 * time.Hour,
		now:        time.Now,
		logger:     logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Base is the currency the provider asks tables for.
func (p *Provider) Base() string {
	return p.base
}

// Table returns the current rate table, fetching when the memoized one is
// older than the TTL. It may return nil.
func (p *Provider) Table(ctx context.Context) *entity.ExchangeRateTable {
	p.mu.Lock()
	if p.table != nil && p.now().Sub(p.fetchedAt) < p.ttl {
		t := p.table
		p.mu.Unlock()
		return t
	}
	p.mu.Unlock()

	if err := p.Refresh(ctx); err != nil {
		return p.lastKnown(ctx)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.table
}

// Refresh fetches a new table now. Concurrent refreshes share one request.
// The error is for callers that log or schedule; Table never surfaces it.
func (p *Provider) Refresh(ctx context.Context) error {
	_, err, _ := p.flights.Do(p.base, func() (any, error) {
		start := p.now()
		t, err := p.fetcher.GetExchangeRates(ctx, p.base)
		if err == nil && t == nil {
			err = fmt.Errorf("rates for %s: %w", p.base, common.ErrNotFound)
		}
		if err != nil {
			p.logger.Warn("rates.fetch.failed", "base", p.base, "error", err)
			return nil, err
		}

		p.mu.Lock()
		p.table = t
		p.fetchedAt = p.now()
		p.mu.Unlock()

		p.logger.Info("rates.fetch.ok", "base", p.base, "currencies", len(t.Rates), "elapsed_ms", p.now().Sub(start).Milliseconds())
		if p.repo != nil {
			if err := p.repo.SaveRates(ctx, t); err != nil {
				p.logger.Warn("rates.persist.failed", "base", p.base, "error", err)
			}
		}
		return t, nil
	})
	return err
}

// lastKnown serves the memoized table, then the persisted one, then nil.
func (p *Provider) lastKnown(ctx context.Context) *entity.ExchangeRateTable {
	p.mu.Lock()
	t := p.table
	p.mu.Unlock()

	if t == nil && p.repo != nil {
		stored, err := p.repo.LatestRates(ctx, p.base)
		if err != nil {
			p.logger.Warn("rates.load.failed", "base", p.base, "error", err)
		}
		if stored != nil {
			t = stored
			p.mu.Lock()
			if p.table == nil {
				// keep the TTL expired so the next read retries the remote
				p.table = stored
			}
			p.mu.Unlock()
		}
	}

	if t == nil {
		p.logger.Warn("rates.unavailable", "base", p.base)
		return nil
	}
	if t.IsStale(p.now(), p.staleAfter) {
		p.logger.Warn("rates.stale", "base", p.base, "as_of", t.Timestamp)
	}
	return t
}
