// Package ingest turns image files on local disk into scanned receipts. Files are
// identified by content hash so the same image is never scanned twice.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Scanner uploads one image and returns the receipt the server extracted.
type Scanner interface {
	Scan(ctx context.Context, req api.ScanRequest) (*entity.Receipt, error)
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	ReceiptID    uuid.UUID
	Deduplicated bool
	HashHex      string
	FileExt      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}
