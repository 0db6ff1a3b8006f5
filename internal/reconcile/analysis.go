package reconcile

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// SuggestionState is either NotAnalyzed or Analyzed.
type SuggestionState interface {
	isSuggestionState()
}

// NotAnalyzed means no suggestion is valid for the receipt's current state.
type NotAnalyzed struct{}

// Analyzed holds a suggestion computed for one fingerprint.
type Analyzed struct {
	Fingerprint string
	Suggestion  entity.Suggestion
}

func (NotAnalyzed) isSuggestionState() {}
func (Analyzed) isSuggestionState()    {}

// AnalysisStore persists analyses across restarts. LoadAnalysis returns nil
// and no error when nothing is stored.
type AnalysisStore interface {
	LoadAnalysis(ctx context.Context, receiptID uuid.UUID) (*entity.Analysis, error)
	SaveAnalysis(ctx context.Context, a entity.Analysis) error
	DeleteAnalysis(ctx context.Context, receiptID uuid.UUID) error
}

// Memo remembers one analysis per receipt, in memory and optionally in an
// AnalysisStore. Persistence failures are logged and never fail a lookup.
type Memo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]entity.Analysis
	store   AnalysisStore
	logger  *slog.Logger
}

func NewMemo(store AnalysisStore, logger *slog.Logger) *Memo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memo{entries: make(map[uuid.UUID]entity.Analysis), store: store, logger: logger}
}

// State returns Analyzed only when the remembered fingerprint equals the
// receipt's current one. A mismatch demotes the receipt to NotAnalyzed and
// forgets the stale analysis everywhere.
func (m *Memo) State(ctx context.Context, r *entity.Receipt) SuggestionState {
	fp := Fingerprint(r)

	a, ok := m.lookup(ctx, r.ID)
	if !ok {
		return NotAnalyzed{}
	}
	if a.Fingerprint != fp {
		m.logger.Info("reconcile.memo.invalidated", "receipt_id", r.ID, "was", short(a.Fingerprint), "now", short(fp))
		m.Forget(ctx, r.ID)
		return NotAnalyzed{}
	}
	return Analyzed{Fingerprint: a.Fingerprint, Suggestion: a.Suggestion}
}

// Remember stores a suggestion for the given fingerprint.
func (m *Memo) Remember(ctx context.Context, a entity.Analysis) {
	m.mu.Lock()
	m.entries[a.ReceiptID] = a
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.SaveAnalysis(ctx, a); err != nil {
		m.logger.Warn("reconcile.memo.save_failed", "receipt_id", a.ReceiptID, "error", err)
	}
}

// Forget drops the analysis for a receipt.
func (m *Memo) Forget(ctx context.Context, receiptID uuid.UUID) {
	m.mu.Lock()
	delete(m.entries, receiptID)
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	if err := m.store.DeleteAnalysis(ctx, receiptID); err != nil {
		m.logger.Warn("reconcile.memo.delete_failed", "receipt_id", receiptID, "error", err)
	}
}

func (m *Memo) lookup(ctx context.Context, receiptID uuid.UUID) (entity.Analysis, bool) {
	m.mu.Lock()
	a, ok := m.entries[receiptID]
	m.mu.Unlock()
	if ok || m.store == nil {
		return a, ok
	}

	stored, err := m.store.LoadAnalysis(ctx, receiptID)
	if err != nil {
		m.logger.Warn("reconcile.memo.load_failed", "receipt_id", receiptID, "error", err)
		return entity.Analysis{}, false
	}
	if stored == nil {
		return entity.Analysis{}, false
	}

	m.mu.Lock()
	m.entries[receiptID] = *stored
	m.mu.Unlock()
	return *stored, true
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
