package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

const scannedFilesTable = "scanned_files"

// ScannedFile records that an image with a given content hash already produced a receipt.
type ScannedFile struct {
	ContentHash string
	SourcePath  string
	ReceiptID   uuid.UUID
	ScannedAt   time.Time
}

type ScannedFileRepository interface {
	GetByHash(ctx context.Context, hash string) (*ScannedFile, error)
	SaveScannedFile(ctx context.Context, f ScannedFile) error
}

type scannedFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewScannedFileRepository(db *DB, logger *slog.Logger) ScannedFileRepository {
	return &scannedFileRepo{
		db:     db,
		logger: logger,
	}
}

// GetByHash returns nil and no error when the hash was never scanned.
func (r *scannedFileRepo) GetByHash(ctx context.Context, hash string) (*ScannedFile, error) {
	b := r.db.builder()
	query, args := b.Select("source_path", "receipt_id", "scanned_at").
		From(b.Table(scannedFilesTable)).
		Where(entsql.EQ("content_hash", hash)).
		Query()

	var (
		path, receiptID string
		scannedAt       int64
	)
	found, err := r.db.queryRow(ctx, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&path, &receiptID, &scannedAt)
	})
	if err != nil {
		r.logger.Error("failed to get scanned file by hash", "hash", hash, "error", err)
		return nil, err
	}
	if !found {
		return nil, nil
	}
	id, err := uuid.Parse(receiptID)
	if err != nil {
		return nil, fmt.Errorf("scanned file %s: bad receipt id: %w", hash, err)
	}
	return &ScannedFile{ContentHash: hash, SourcePath: path, ReceiptID: id, ScannedAt: time.UnixMilli(scannedAt).UTC()}, nil
}

func (r *scannedFileRepo) SaveScannedFile(ctx context.Context, f ScannedFile) error {
	if f.ScannedAt.IsZero() {
		f.ScannedAt = time.Now()
	}
	query, args := r.db.builder().Insert(scannedFilesTable).
		Columns("content_hash", "source_path", "receipt_id", "scanned_at").
		Values(f.ContentHash, f.SourcePath, f.ReceiptID.String(), f.ScannedAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("content_hash"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to save scanned file", "hash", f.ContentHash, "source_path", f.SourcePath, "error", err)
		return err
	}
	return nil
}
