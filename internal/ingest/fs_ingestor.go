package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/repository"
)

// FSIngestor reads images from the local filesystem and scans each new one.
type FSIngestor struct {
	scanner Scanner
	files   repository.ScannedFileRepository
	logger  *slog.Logger
}

// NewFSIngestor builds an ingestor. A nil files repository disables dedup.
func NewFSIngestor(scanner Scanner, files repository.ScannedFileRepository, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		scanner: scanner,
		files:   files,
		logger:  logger,
	}
}

// IngestPath scans a single image unless its content was already scanned.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension %q: %w", ext, common.ErrInvalidInput)
	}
	out.FileExt = ext

	f, err := os.Open(abs)
	if err != nil {
		return out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close", "path", abs, "error", err)
		}
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, fmt.Errorf("hash %s: %w", abs, err)
	}
	out.HashHex = hex.EncodeToString(h.Sum(nil))

	if i.files != nil {
		existing, err := i.files.GetByHash(ctx, out.HashHex)
		if err != nil {
			return out, err
		}
		if existing != nil {
			out.ReceiptID = existing.ReceiptID
			out.Deduplicated = true
			i.logger.Debug("ingest.dedup", "path", abs, "receipt_id", existing.ReceiptID)
			return out, nil
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return out, err
	}
	start := time.Now()
	r, err := i.scanner.Scan(ctx, api.ScanRequest{Filename: filepath.Base(abs), Image: f})
	if err != nil {
		i.logger.Error("ingest.scan.failed", "path", abs, "error", err)
		return out, err
	}
	out.ReceiptID = r.ID

	if i.files != nil {
		// the receipt already exists remotely; a lost record only costs a rescan
		if err := i.files.SaveScannedFile(ctx, repository.ScannedFile{
			ContentHash: out.HashHex,
			SourcePath:  abs,
			ReceiptID:   r.ID,
		}); err != nil {
			i.logger.Warn("ingest.record.failed", "path", abs, "error", err)
		}
	}
	i.logger.Info("ingest.scan.ok", "path", abs, "receipt_id", r.ID, "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// IngestDirectory walks root, skips hidden entries if requested,
// and calls IngestPath for each image. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("root path is required: %w", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			return nil
		}
		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
