package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

const rateTablesTable = "rate_tables"

// RateRepository keeps the last known exchange-rate table per base currency.
type RateRepository interface {
	SaveRates(ctx context.Context, table *entity.ExchangeRateTable) error
	LatestRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error)
}

type rateRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRateRepository(db *DB, logger *slog.Logger) RateRepository {
	return &rateRepository{
		db:     db,
		logger: logger,
	}
}

func (r *rateRepository) SaveRates(ctx context.Context, table *entity.ExchangeRateTable) error {
	if table == nil {
		return nil
	}
	body, err := json.Marshal(table.Rates)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}

	query, args := r.db.builder().Insert(rateTablesTable).
		Columns("base", "rates", "as_of", "fetched_at").
		Values(strings.ToUpper(table.Base), string(body), table.Timestamp.UnixMilli(), time.Now().UnixMilli()).
		OnConflict(entsql.ConflictColumns("base"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to save rates", "base", table.Base, "error", err)
		return err
	}
	return nil
}

// LatestRates returns nil and no error when no table was ever saved.
func (r *rateRepository) LatestRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error) {
	b := r.db.builder()
	query, args := b.Select("rates", "as_of").
		From(b.Table(rateTablesTable)).
		Where(entsql.EQ("base", strings.ToUpper(base))).
		Query()

	var (
		body string
		asOf int64
	)
	found, err := r.db.queryRow(ctx, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&body, &asOf)
	})
	if err != nil {
		r.logger.Error("failed to load rates", "base", base, "error", err)
		return nil, err
	}
	if !found {
		return nil, nil
	}

	rates := map[string]decimal.Decimal{}
	if err := json.Unmarshal([]byte(body), &rates); err != nil {
		return nil, fmt.Errorf("decode rates for %s: %w", base, err)
	}
	return &entity.ExchangeRateTable{Base: strings.ToUpper(base), Rates: rates, Timestamp: time.UnixMilli(asOf).UTC()}, nil
}
