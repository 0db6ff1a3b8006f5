package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/constants"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Receipts is the read and write path the engine goes through. *cache.Store
// satisfies it, so every change lands in the cache views.
type Receipts interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	UpdateReceipt(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error)
	CreateItem(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error)
	DeleteItem(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error)
}

// Suggester is the remote AI-assisted repair service.
type Suggester interface {
	GetReconciliationSuggestion(ctx context.Context, receiptID uuid.UUID) (*entity.Suggestion, error)
}

// StepResult records one adjustment of an applied suggestion.
type StepResult struct {
	ItemID uuid.UUID
	Reason string
	Status constants.StepStatus
	Err    error
}

// BatchResult is the outcome of a sequential batch. Receipt and Fingerprint
// describe the state after the last committed step.
type BatchResult struct {
	Steps       []StepResult
	Receipt     *entity.Receipt
	Fingerprint string
	Summary     Summary
}

// Succeeded counts committed steps.
func (b *BatchResult) Succeeded() int {
	n := 0
	for _, s := range b.Steps {
		if s.Status == constants.StepStatusOK {
			n++
		}
	}
	return n
}

// ItemResult records one restored auto-removed item.
type ItemResult struct {
	Name   string
	Status constants.StepStatus
	Err    error
}

// RestoreResult is the outcome of restoring auto-removed items. Each item is
// independent; failures do not stop the loop.
type RestoreResult struct {
	Items   []ItemResult
	Receipt *entity.Receipt
}

type Engine struct {
	receipts  Receipts
	suggester Suggester
	memo      *Memo
	logger    *slog.Logger
}

type Option func(*Engine)

// WithAnalysisStore persists remembered suggestions.
func WithAnalysisStore(store AnalysisStore) Option {
	return func(e *Engine) {
		e.memo = NewMemo(store, e.logger)
	}
}

func NewEngine(receipts Receipts, suggester Suggester, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{receipts: receipts, suggester: suggester, logger: logger}
	e.memo = NewMemo(nil, logger)
	for _, o := range opts {
		o(e)
	}
	return e
}

// State returns the suggestion state for the receipt as it is now.
func (e *Engine) State(ctx context.Context, r *entity.Receipt) SuggestionState {
	return e.memo.State(ctx, r)
}

// Status places a receipt in the Clean, Mismatched, Suggested cycle.
func (e *Engine) Status(ctx context.Context, r *entity.Receipt) constants.ReceiptStatus {
	if !Summarize(r).HasMismatch {
		return constants.ReceiptStatusClean
	}
	if _, ok := e.memo.State(ctx, r).(Analyzed); ok {
		return constants.ReceiptStatusSuggested
	}
	return constants.ReceiptStatusMismatched
}

// Analyze returns a suggestion for the receipt's current state. The remote
// service is called only when no suggestion is remembered for the current
// fingerprint; cached reports whether the call was skipped.
func (e *Engine) Analyze(ctx context.Context, receiptID uuid.UUID) (s entity.Suggestion, cached bool, err error) {
	r, err := e.receipts.Get(ctx, receiptID)
	if err != nil {
		return entity.Suggestion{}, false, fmt.Errorf("load receipt %s: %w", receiptID, err)
	}

	if a, ok := e.memo.State(ctx, r).(Analyzed); ok {
		e.logger.Info("reconcile.analyze.cached", "receipt_id", receiptID, "fingerprint", short(a.Fingerprint))
		return a.Suggestion, true, nil
	}

	fp := Fingerprint(r)
	start := time.Now()
	got, err := e.suggester.GetReconciliationSuggestion(ctx, receiptID)
	if err != nil {
		e.logger.Error("reconcile.analyze.failed", "receipt_id", receiptID, "error", err)
		return entity.Suggestion{}, false, fmt.Errorf("analyze receipt %s: %w", receiptID, err)
	}
	suggestion := entity.Suggestion{}
	if got != nil {
		suggestion = *got
	}

	e.memo.Remember(ctx, entity.Analysis{
		ReceiptID:   receiptID,
		Fingerprint: fp,
		Suggestion:  suggestion,
		AnalyzedAt:  time.Now().UTC(),
	})
	e.logger.Info("reconcile.analyze.ok",
		"receipt_id", receiptID,
		"fingerprint", short(fp),
		"adjustments", len(suggestion.Adjustments),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return suggestion, false, nil
}

// ApplySuggestion removes each suggested item in order, one request at a
// time. It requires a suggestion valid for the receipt's current fingerprint.
// Adjustments naming an item that is no longer present are skipped. The
// first failed removal stops the batch; earlier removals are not rolled back
// and the returned error wraps ErrPartialBatch.
func (e *Engine) ApplySuggestion(ctx context.Context, receiptID uuid.UUID) (*BatchResult, error) {
	r, err := e.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", receiptID, err)
	}
	a, ok := e.memo.State(ctx, r).(Analyzed)
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", receiptID, common.ErrNoSuggestion)
	}

	steps := make([]StepResult, len(a.Suggestion.Adjustments))
	for i, adj := range a.Suggestion.Adjustments {
		steps[i] = StepResult{ItemID: adj.ItemID, Reason: adj.Reason, Status: constants.StepStatusSkipped}
	}

	var failure error
	for i := range steps {
		step := &steps[i]
		if r.ItemIndex(step.ItemID) < 0 {
			continue
		}
		next, err := e.receipts.DeleteItem(ctx, receiptID, step.ItemID)
		if err != nil {
			step.Status = constants.StepStatusFailed
			step.Err = err
			failure = fmt.Errorf("%w: step %d of %d: %w", common.ErrPartialBatch, i+1, len(steps), err)
			break
		}
		step.Status = constants.StepStatusOK
		r = next
		e.logger.Info("reconcile.apply.step",
			"receipt_id", receiptID,
			"item_id", step.ItemID,
			"delta", Summarize(r).Delta.String(),
		)
	}

	result := &BatchResult{Steps: steps, Receipt: r, Fingerprint: Fingerprint(r), Summary: Summarize(r)}
	if result.Fingerprint != a.Fingerprint {
		e.memo.Forget(ctx, receiptID)
	}
	if failure != nil {
		e.logger.Warn("reconcile.apply.partial", "receipt_id", receiptID, "succeeded", result.Succeeded(), "steps", len(steps), "error", failure)
		return result, failure
	}
	e.logger.Info("reconcile.apply.ok", "receipt_id", receiptID, "succeeded", result.Succeeded(), "mismatch", result.Summary.HasMismatch)
	return result, nil
}

// AcceptItemsAsTruth sets the stated total to the current item sum in one
// update. It is available in every state.
func (e *Engine) AcceptItemsAsTruth(ctx context.Context, receiptID uuid.UUID) (*entity.Receipt, error) {
	r, err := e.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", receiptID, err)
	}
	total := currency.Round(ItemsSum(r))
	updated, err := e.receipts.UpdateReceipt(ctx, receiptID, entity.ReceiptPatch{TotalAmount: &total})
	if err != nil {
		return nil, fmt.Errorf("accept items for %s: %w", receiptID, err)
	}
	e.logger.Info("reconcile.accept_items.ok", "receipt_id", receiptID, "total", total.String())
	return updated, nil
}

// RestoreAutoRemoved recreates auto-removed items, all of them when indexes
// is empty. Each create is independent; the error wraps ErrPartialBatch when
// any item failed.
func (e *Engine) RestoreAutoRemoved(ctx context.Context, receiptID uuid.UUID, indexes ...int) (*RestoreResult, error) {
	r, err := e.receipts.Get(ctx, receiptID)
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", receiptID, err)
	}

	selected := r.AutoRemovedItems
	if len(indexes) > 0 {
		selected = make([]entity.AutoRemovedItem, 0, len(indexes))
		for _, i := range indexes {
			if i < 0 || i >= len(r.AutoRemovedItems) {
				return nil, fmt.Errorf("auto-removed item %d: %w", i, common.ErrInvalidInput)
			}
			selected = append(selected, r.AutoRemovedItems[i])
		}
	}

	result := &RestoreResult{Items: make([]ItemResult, len(selected)), Receipt: r}
	failed := 0
	for i, removed := range selected {
		in := entity.ItemInputFromAutoRemoved(removed)
		if in.Currency == "" {
			in.Currency = r.Currency
		}
		res := ItemResult{Name: removed.Name}
		next, err := e.receipts.CreateItem(ctx, receiptID, in)
		if err != nil {
			res.Status, res.Err = constants.StepStatusFailed, err
			failed++
			e.logger.Warn("reconcile.restore.item_failed", "receipt_id", receiptID, "name", removed.Name, "error", err)
		} else {
			res.Status = constants.StepStatusOK
			result.Receipt = next
		}
		result.Items[i] = res
	}

	if failed > 0 {
		return result, fmt.Errorf("%w: %d of %d items not restored", common.ErrPartialBatch, failed, len(selected))
	}
	return result, nil
}
