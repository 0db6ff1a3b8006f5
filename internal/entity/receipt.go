package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt is the aggregate root. TotalAmount is authoritative unless it is
// explicitly reconciled against the item sum.
type Receipt struct {
	ID               uuid.UUID         `json:"id"`
	StoreName        string            `json:"store_name"`
	PurchaseDate     time.Time         `json:"purchase_date"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	Currency         string            `json:"currency"`
	Items            []ReceiptItem     `json:"items"`
	Notes            string            `json:"notes"`
	Tags             []string          `json:"tags"`
	PaymentMethod    *string           `json:"payment_method,omitempty"`
	TaxAmount        *decimal.Decimal  `json:"tax_amount,omitempty"`
	ImageURL         *string           `json:"image_url,omitempty"`
	AutoRemovedItems []AutoRemovedItem `json:"auto_removed_items,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ReceiptItem is owned by exactly one Receipt. TotalPrice is expected to equal
// Quantity*UnitPrice but that is not enforced.
type ReceiptItem struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
}

// AutoRemovedItem is a snapshot of an item the extraction pipeline dropped
// before the receipt was created. It is not part of Items.
type AutoRemovedItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency,omitempty"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Clone returns a deep copy so cached bodies never share slices with callers.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	out := *r
	if r.Items != nil {
		out.Items = make([]ReceiptItem, len(r.Items))
		for i, it := range r.Items {
			out.Items[i] = it
			if it.CategoryID != nil {
				id := *it.CategoryID
				out.Items[i].CategoryID = &id
			}
		}
	}
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.AutoRemovedItems != nil {
		out.AutoRemovedItems = append([]AutoRemovedItem(nil), r.AutoRemovedItems...)
	}
	if r.PaymentMethod != nil {
		pm := *r.PaymentMethod
		out.PaymentMethod = &pm
	}
	if r.TaxAmount != nil {
		tax := *r.TaxAmount
		out.TaxAmount = &tax
	}
	if r.ImageURL != nil {
		u := *r.ImageURL
		out.ImageURL = &u
	}
	return &out
}

// ItemIndex returns the position of an item in Items, or -1.
func (r *Receipt) ItemIndex(itemID uuid.UUID) int {
	for i := range r.Items {
		if r.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// ReceiptPatch carries a partial receipt update. Nil fields are left unchanged.
type ReceiptPatch struct {
	StoreName     *string          `json:"store_name,omitempty"`
	PurchaseDate  *time.Time       `json:"purchase_date,omitempty"`
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	Currency      *string          `json:"currency,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	TaxAmount     *decimal.Decimal `json:"tax_amount,omitempty"`
}

// ItemInput is the body of an item create call.
type ItemInput struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency,omitempty"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
}

// ItemInputFromAutoRemoved turns a dropped-item snapshot back into a create body.
func ItemInputFromAutoRemoved(a AutoRemovedItem) ItemInput {
	return ItemInput{
		Name:       a.Name,
		Quantity:   a.Quantity,
		UnitPrice:  a.UnitPrice,
		TotalPrice: a.TotalPrice,
		Currency:   a.Currency,
		CategoryID: a.CategoryID,
	}
}

// ItemPatch carries a partial item update.
type ItemPatch struct {
	Name       *string          `json:"name,omitempty"`
	Quantity   *int             `json:"quantity,omitempty"`
	UnitPrice  *decimal.Decimal `json:"unit_price,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
	CategoryID *uuid.UUID       `json:"category_id,omitempty"`
}
