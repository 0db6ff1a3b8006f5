package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

func openTestDB(t *testing.T) (*DB, *slog.Logger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "nested", "store.db"), DialTimeout: time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	require.NoError(t, db.Migrate(logger))
	return db, logger
}

func TestDB_MigrateIsIdempotentAndHealthy(t *testing.T) {
	db, logger := openTestDB(t)

	require.NoError(t, db.Migrate(logger))
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second, logger))
	assert.Equal(t, "sqlite3", db.Dialect())
}

func TestAnalysisRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, logger := openTestDB(t)
	repo := NewAnalysisRepository(db, logger)
	id := uuid.New()

	missing, err := repo.LoadAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := entity.Analysis{
		ReceiptID:   id,
		Fingerprint: "fp-1",
		Suggestion:  entity.Suggestion{Adjustments: []entity.Adjustment{{ItemID: uuid.New(), Reason: "duplicate"}}},
		AnalyzedAt:  at,
	}
	require.NoError(t, repo.SaveAnalysis(ctx, first))

	got, err := repo.LoadAnalysis(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first, *got)

	second := first
	second.Fingerprint = "fp-2"
	second.Suggestion = entity.Suggestion{}
	require.NoError(t, repo.SaveAnalysis(ctx, second))
	got, err = repo.LoadAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "fp-2", got.Fingerprint)
	assert.Empty(t, got.Suggestion.Adjustments)

	require.NoError(t, repo.DeleteAnalysis(ctx, id))
	got, err = repo.LoadAnalysis(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRateRepository_KeepsLatestPerBase(t *testing.T) {
	ctx := context.Background()
	db, logger := openTestDB(t)
	repo := NewRateRepository(db, logger)

	none, err := repo.LatestRates(ctx, "USD")
	require.NoError(t, err)
	assert.Nil(t, none)

	asOf := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	for _, eur := range []string{"0.91", "0.92"} {
		require.NoError(t, repo.SaveRates(ctx, &entity.ExchangeRateTable{
			Base:      "usd",
			Rates:     map[string]decimal.Decimal{"EUR": decimal.RequireFromString(eur), "JPY": decimal.NewFromInt(150)},
			Timestamp: asOf,
		}))
	}

	got, err := repo.LatestRates(ctx, "usd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "USD", got.Base)
	assert.True(t, got.Rates["EUR"].Equal(decimal.RequireFromString("0.92")))
	assert.True(t, got.Rates["JPY"].Equal(decimal.NewFromInt(150)))
	assert.True(t, got.Timestamp.Equal(asOf))
}

func TestCategoryRepository_Replace(t *testing.T) {
	ctx := context.Background()
	db, logger := openTestDB(t)
	repo := NewCategoryRepository(db, logger)

	desc := "food and drink"
	require.NoError(t, repo.ReplaceCategories(ctx, []entity.Category{
		{ID: uuid.New(), Name: "Travel"},
		{ID: uuid.New(), Name: "Groceries", Description: &desc},
	}))
	got, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Groceries", got[0].Name)
	require.NotNil(t, got[0].Description)
	assert.Equal(t, desc, *got[0].Description)
	assert.Nil(t, got[1].Description)

	require.NoError(t, repo.ReplaceCategories(ctx, nil))
	got, err = repo.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScannedFileRepository(t *testing.T) {
	ctx := context.Background()
	db, logger := openTestDB(t)
	repo := NewScannedFileRepository(db, logger)

	got, err := repo.GetByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	receiptID := uuid.New()
	require.NoError(t, repo.SaveScannedFile(ctx, ScannedFile{ContentHash: "abc", SourcePath: "/in/a.jpg", ReceiptID: receiptID}))
	require.NoError(t, repo.SaveScannedFile(ctx, ScannedFile{ContentHash: "abc", SourcePath: "/in/copy-of-a.jpg", ReceiptID: receiptID}))

	got, err = repo.GetByHash(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, receiptID, got.ReceiptID)
	assert.Equal(t, "/in/copy-of-a.jpg", got.SourcePath)
	assert.False(t, got.ScannedAt.IsZero())
}
