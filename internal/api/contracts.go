package api

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// ScanRequest is an image handed to the remote extraction pipeline.
type ScanRequest struct {
	Filename string
	Image    io.Reader
}

// Client is the remote API the core depends on. Implementations must not
// retry and must not hold state between calls.
type Client interface {
	ScanReceipt(ctx context.Context, req ScanRequest) (*entity.Receipt, error)
	GetReceipts(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	UpdateReceipt(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error)
	DeleteReceipt(ctx context.Context, id uuid.UUID) error

	CreateReceiptItem(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error)
	UpdateReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID, patch entity.ItemPatch) (*entity.Receipt, error)
	DeleteReceiptItem(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error)

	GetReconciliationSuggestion(ctx context.Context, receiptID uuid.UUID) (*entity.Suggestion, error)
	GetExchangeRates(ctx context.Context, base string) (*entity.ExchangeRateTable, error)
	ListCategories(ctx context.Context) ([]entity.Category, error)
}
