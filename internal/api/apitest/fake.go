// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// Fake routes each call to the matching func field. Unset fields return
// ErrNotFound. Calls are counted per method name.
type Fake struct {
	ScanReceiptFn                 func(ctx context.Context, req api.ScanRequest) (*entity.Receipt, error)
	GetReceiptsFn                 func(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error)
	GetReceiptFn                  func(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	UpdateReceiptFn               func(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error)
	DeleteReceiptFn               func(ctx context.Context, id uuid.UUID) error
	CreateReceiptItemFn           func(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error)
	UpdateReceiptItemFn           func(ctx context.Context, receiptID, itemID uuid.UUID, patch entity.ItemPatch) (*entity.Receipt, error)
	DeleteReceiptItemFn           func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error)
	GetReconciliationSuggestionFn func(ctx context.Context, receiptID uuid.UUID) (*entity.Suggestion, error)
	GetExchangeRatesFn            func(ctx context.Context, base string) (*entity.ExchangeRateTable, error)
	ListCategoriesFn              func(ctx context.Context) ([]entity.Category, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ api.Client = (*Fake)(nil)

// Calls returns how many times a method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func unset(method string) error {
	return fmt.Errorf("%s: %w", method, common.ErrNotFound)
}

func (f *Fake) ScanReceipt(ctx context.Context, req api.ScanRequest) (*entity.Receipt, error) {
	f.record("ScanReceipt")
	if f.ScanReceiptFn == nil {
		return nil, unset("ScanReceipt")
	}
	return f.ScanReceiptFn(ctx, req)
}

func (f *Fake) GetReceipts(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error) {
	f.record("GetReceipts")
	if f.GetReceiptsFn == nil {
		return nil, unset("GetReceipts")
	}
	return f.GetReceiptsFn(ctx, filters)
}

func (f *Fake) GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	f.record("GetReceipt")
	if f.GetReceiptFn == nil {
		return nil, unset("GetReceipt")
	}
	return f.GetReceiptFn(ctx, id)
}

func (f *Fake) UpdateReceipt(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error) {
	f.record("UpdateReceipt")
	if f.UpdateReceiptFn == nil {
		return nil, unset("UpdateReceipt")
	}
	return f.UpdateReceiptFn(ctx, id, patch)
}

func (f *Fake) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	f.record("DeleteReceipt")
	if f.DeleteReceiptFn == nil {
		return unset("DeleteReceipt")
	}
	return f.DeleteReceiptFn(ctx, id)
}

func (f *Fake) CreateReceiptItem(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error) {
	f.record("CreateReceiptItem")
	if f.CreateReceiptItemFn == nil {
		return nil, unset("CreateReceiptItem")
	}
	return f.CreateReceiptItemFn(ctx, receiptID, in)
}

func (f *Fake) UpdateReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID, patch entity.ItemPatch) (*entity.Receipt, error) {
	f.record("UpdateReceiptItem")
	if f.UpdateReceiptItemFn == nil {
		return nil, unset("UpdateReceiptItem")
	}
	return f.UpdateReceiptItemFn(ctx, receiptID, itemID, patch)
}

func (f *Fake) DeleteReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
	f.record("DeleteReceiptItem")
	if f.DeleteReceiptItemFn == nil {
		return nil, unset("DeleteReceiptItem")
	}
	return f.DeleteReceiptItemFn(ctx, receiptID, itemID)
}

func (f *Fake) GetReconciliationSuggestion(ctx context.Context, receiptID uuid.UUID) (*entity.Suggestion, error) {
	f.record("GetReconciliationSuggestion")
	if f.GetReconciliationSuggestionFn == nil {
		return nil, unset("GetReconciliationSuggestion")
	}
	return f.GetReconciliationSuggestionFn(ctx, receiptID)
}

func (f *Fake) GetExchangeRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error) {
	f.record("GetExchangeRates")
	if f.GetExchangeRatesFn == nil {
		return nil, unset("GetExchangeRates")
	}
	return f.GetExchangeRatesFn(ctx, base)
}

func (f *Fake) ListCategories(ctx context.Context) ([]entity.Category, error) {
	f.record("ListCategories")
	if f.ListCategoriesFn == nil {
		return nil, unset("ListCategories")
	}
	return f.ListCategoriesFn(ctx)
}
