package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/repository"
)

type fakeScanner struct {
	mu    sync.Mutex
	names []string
	fail  bool
}

func (f *fakeScanner) Scan(_ context.Context, req api.ScanRequest) (*entity.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := io.ReadAll(req.Image); err != nil {
		return nil, err
	}
	if f.fail {
		return nil, &api.Error{Op: "scan", Status: 503}
	}
	f.names = append(f.names, req.Filename)
	return &entity.Receipt{ID: uuid.New(), StoreName: "Target", Currency: "USD"}, nil
}

func (f *fakeScanner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}

func newIngestor(t *testing.T, scanner Scanner) *FSIngestor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), repository.Config{DSN: filepath.Join(t.TempDir(), "store.db"), DialTimeout: time.Second}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })
	require.NoError(t, db.Migrate(logger))
	return NewFSIngestor(scanner, repository.NewScannedFileRepository(db, logger), logger)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestPath_DeduplicatesByContent(t *testing.T) {
	ctx := context.Background()
	scanner := &fakeScanner{}
	ing := newIngestor(t, scanner)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "same bytes")
	writeFile(t, filepath.Join(dir, "b.JPG"), "same bytes")

	first, err := ing.IngestPath(ctx, filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.False(t, first.Deduplicated)
	assert.Equal(t, "jpg", first.FileExt)

	second, err := ing.IngestPath(ctx, filepath.Join(dir, "b.JPG"))
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.ReceiptID, second.ReceiptID)
	assert.Equal(t, first.HashHex, second.HashHex)
	assert.Equal(t, []string{"a.jpg"}, scanner.names)
}

func TestIngestPath_RejectsUnsupportedExtension(t *testing.T) {
	scanner := &fakeScanner{}
	ing := newIngestor(t, scanner)
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, "hello")

	_, err := ing.IngestPath(context.Background(), path)
	require.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Zero(t, scanner.count())
}

func TestIngestPath_ScanFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	scanner := &fakeScanner{fail: true}
	ing := newIngestor(t, scanner)
	path := filepath.Join(t.TempDir(), "a.png")
	writeFile(t, path, "png bytes")

	_, err := ing.IngestPath(ctx, path)
	require.ErrorIs(t, err, common.ErrNetwork)

	scanner.fail = false
	res, err := ing.IngestPath(ctx, path)
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.Equal(t, 1, scanner.count())
}

func TestIngestDirectory_Stats(t *testing.T) {
	scanner := &fakeScanner{}
	ing := newIngestor(t, scanner)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.jpg"), "one")
	writeFile(t, filepath.Join(root, "nested", "b.png"), "two")
	writeFile(t, filepath.Join(root, "nested", "dup.jpeg"), "one")
	writeFile(t, filepath.Join(root, "readme.md"), "skip")
	writeFile(t, filepath.Join(root, ".cache", "c.jpg"), "hidden")

	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Succeeded)
	assert.EqualValues(t, 1, stats.Deduplicated)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, scanner.count())
}

func TestStartWatcher_EmitsExistingAndNewImages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.jpg"), "x")

	paths, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, SkipHidden: true}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-paths:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watcher event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.jpg"), next())

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, "new.png"), "y")
	assert.Equal(t, filepath.Join(root, "new.png"), next())

	cancel()
	for range paths {
	}
}
