package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

const analysesTable = "analyses"

// AnalysisRepository persists remembered reconciliation suggestions.
type AnalysisRepository interface {
	LoadAnalysis(ctx context.Context, receiptID uuid.UUID) (*entity.Analysis, error)
	SaveAnalysis(ctx context.Context, a entity.Analysis) error
	DeleteAnalysis(ctx context.Context, receiptID uuid.UUID) error
}

type analysisRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewAnalysisRepository(db *DB, logger *slog.Logger) AnalysisRepository {
	return &analysisRepository{
		db:     db,
		logger: logger,
	}
}

func (r *analysisRepository) LoadAnalysis(ctx context.Context, receiptID uuid.UUID) (*entity.Analysis, error) {
	b := r.db.builder()
	query, args := b.Select("fingerprint", "suggestion", "analyzed_at").
		From(b.Table(analysesTable)).
		Where(entsql.EQ("receipt_id", receiptID.String())).
		Query()

	var (
		fingerprint, body string
		analyzedAt        int64
	)
	found, err := r.db.queryRow(ctx, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&fingerprint, &body, &analyzedAt)
	})
	if err != nil {
		r.logger.Error("failed to load analysis", "receipt_id", receiptID, "error", err)
		return nil, err
	}
	if !found {
		return nil, nil
	}

	a := &entity.Analysis{ReceiptID: receiptID, Fingerprint: fingerprint, AnalyzedAt: time.UnixMilli(analyzedAt).UTC()}
	if err := json.Unmarshal([]byte(body), &a.Suggestion); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", receiptID, err)
	}
	return a, nil
}

func (r *analysisRepository) SaveAnalysis(ctx context.Context, a entity.Analysis) error {
	body, err := json.Marshal(a.Suggestion)
	if err != nil {
		return fmt.Errorf("encode analysis %s: %w", a.ReceiptID, err)
	}

	query, args := r.db.builder().Insert(analysesTable).
		Columns("receipt_id", "fingerprint", "suggestion", "analyzed_at").
		Values(a.ReceiptID.String(), a.Fingerprint, string(body), a.AnalyzedAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("receipt_id"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to save analysis", "receipt_id", a.ReceiptID, "error", err)
		return err
	}
	return nil
}

func (r *analysisRepository) DeleteAnalysis(ctx context.Context, receiptID uuid.UUID) error {
	query, args := r.db.builder().Delete(analysesTable).
		Where(entsql.EQ("receipt_id", receiptID.String())).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to delete analysis", "receipt_id", receiptID, "error", err)
		return err
	}
	return nil
}
