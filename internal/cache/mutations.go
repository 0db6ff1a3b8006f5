package cache

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/currency"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/events"
)

// Scan creates a receipt from an image. The new receipt is prepended to the
// unfiltered list; filtered lists and the store-name index go stale because
// only the server can evaluate their predicates.
func (s *Store) Scan(ctx context.Context, req api.ScanRequest) (*entity.Receipt, error) {
	r, err := run(ctx, s, mutation[*entity.Receipt]{
		name:  "scan",
		attrs: []any{"filename", req.Filename},
		send: func(ctx context.Context) (*entity.Receipt, error) {
			return s.api.ScanReceipt(ctx, req)
		},
		settle: func(r *entity.Receipt, _ uint64) {
			s.putLocked(r)
			if v := s.unfilteredLocked(); v != nil {
				v.ids = append([]uuid.UUID{r.ID}, slices.DeleteFunc(v.ids, func(id uuid.UUID) bool { return id == r.ID })...)
				v.version = s.tick()
			}
			s.invalidateFilteredLocked(nil)
			s.invalidateStoreNamesLocked()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	s.publish(ctx, events.KindReceiptCreated, r.ID)
	return r.Clone(), nil
}

// UpdateReceipt patches receipt metadata or its stated total. The response
// replaces the body every view reads; filtered lists go stale.
func (s *Store) UpdateReceipt(ctx context.Context, id uuid.UUID, patch entity.ReceiptPatch) (*entity.Receipt, error) {
	r, err := run(ctx, s, mutation[*entity.Receipt]{
		name:  "update_receipt",
		attrs: []any{"receipt_id", id},
		send: func(ctx context.Context) (*entity.Receipt, error) {
			return s.api.UpdateReceipt(ctx, id, patch)
		},
		settle: func(r *entity.Receipt, start uint64) {
			s.putCommittedLocked(r, start)
			s.invalidateFilteredLocked(nil)
			if patch.StoreName != nil {
				s.invalidateStoreNamesLocked()
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("update receipt %s: %w", id, err)
	}
	s.publish(ctx, events.KindReceiptUpdated, id)
	return r.Clone(), nil
}

// DeleteReceipt removes a receipt optimistically. The single-receipt view is
// evicted and tombstoned before the request is sent so a concurrent read
// cannot bring it back; the unfiltered list drops it at the same time. On
// failure both are restored exactly, unless another write touched the receipt
// meanwhile; then the affected views are marked stale instead.
func (s *Store) DeleteReceipt(ctx context.Context, id uuid.UUID) error {
	_, err := run(ctx, s, mutation[struct{}]{
		name:  "delete_receipt",
		attrs: []any{"receipt_id", id},
		speculate: func() *speculation {
			rec, hadRecord := s.records[id]
			prevTombstone, hadTombstone := s.tombstones[id]
			listIdx := -1
			if v := s.unfilteredLocked(); v != nil {
				listIdx = slices.Index(v.ids, id)
				if listIdx >= 0 {
					v.ids = slices.Delete(slices.Clone(v.ids), listIdx, listIdx+1)
					v.version = s.tick()
				}
			}
			s.removeLocked(id)

			return &speculation{
				id:      id,
				version: s.tombstones[id],
				restore: func() {
					if hadTombstone {
						s.tombstones[id] = prevTombstone
					} else {
						delete(s.tombstones, id)
					}
					if hadRecord {
						s.records[id] = &record{receipt: rec.receipt, version: s.tick(), stale: rec.stale}
					}
					if v := s.unfilteredLocked(); v != nil && listIdx >= 0 && !slices.Contains(v.ids, id) {
						v.ids = slices.Insert(slices.Clone(v.ids), min(listIdx, len(v.ids)), id)
						v.version = s.tick()
					}
				},
				conflict: func() {
					if v := s.unfilteredLocked(); v != nil && listIdx >= 0 {
						v.stale = true
						v.version = s.tick()
					}
				},
			}
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.api.DeleteReceipt(ctx, id)
		},
		settle: func(struct{}, uint64) {
			s.invalidateFilteredLocked(nil)
			s.invalidateStoreNamesLocked()
		},
	})
	if err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	s.publish(ctx, events.KindReceiptDeleted, id)
	return nil
}

// CreateItem adds an item. The server's receipt replaces the cached body;
// nothing is recomputed locally.
func (s *Store) CreateItem(ctx context.Context, receiptID uuid.UUID, in entity.ItemInput) (*entity.Receipt, error) {
	r, err := run(ctx, s, mutation[*entity.Receipt]{
		name:  "create_item",
		attrs: []any{"receipt_id", receiptID},
		send: func(ctx context.Context) (*entity.Receipt, error) {
			return s.api.CreateReceiptItem(ctx, receiptID, in)
		},
		settle: s.settleItemChangeLocked,
	})
	if err != nil {
		return nil, fmt.Errorf("create item on %s: %w", receiptID, err)
	}
	s.publish(ctx, events.KindItemsChanged, receiptID)
	return r.Clone(), nil
}

// UpdateItem edits an item. The server's receipt replaces the cached body.
func (s *Store) UpdateItem(ctx context.Context, receiptID, itemID uuid.UUID, patch entity.ItemPatch) (*entity.Receipt, error) {
	r, err := run(ctx, s, mutation[*entity.Receipt]{
		name:  "update_item",
		attrs: []any{"receipt_id", receiptID, "item_id", itemID},
		send: func(ctx context.Context) (*entity.Receipt, error) {
			return s.api.UpdateReceiptItem(ctx, receiptID, itemID, patch)
		},
		settle: s.settleItemChangeLocked,
	})
	if err != nil {
		return nil, fmt.Errorf("update item %s on %s: %w", itemID, receiptID, err)
	}
	s.publish(ctx, events.KindItemsChanged, receiptID)
	return r.Clone(), nil
}

// DeleteItem removes an item optimistically: the cached receipt immediately
// loses the item and its total drops by the item's total price rounded to two
// places. On failure the pre-delete receipt is restored unless the receipt was
// written or deleted meanwhile; on success the server's receipt replaces the
// guess and filtered lists go stale.
func (s *Store) DeleteItem(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
	r, err := run(ctx, s, mutation[*entity.Receipt]{
		name:  "delete_item",
		attrs: []any{"receipt_id", receiptID, "item_id", itemID},
		speculate: func() *speculation {
			rec, ok := s.records[receiptID]
			if !ok {
				return nil
			}
			snapshot := rec.receipt.Clone()
			idx := snapshot.ItemIndex(itemID)
			if idx < 0 {
				return nil
			}

			guess := snapshot.Clone()
			guess.TotalAmount = guess.TotalAmount.Sub(currency.Round(guess.Items[idx].TotalPrice))
			guess.Items = slices.Delete(guess.Items, idx, idx+1)
			version := s.tick()
			s.records[receiptID] = &record{receipt: guess, version: version, stale: rec.stale}

			return &speculation{
				id:      receiptID,
				version: version,
				restore: func() {
					s.records[receiptID] = &record{receipt: snapshot, version: s.tick(), stale: rec.stale}
				},
			}
		},
		send: func(ctx context.Context) (*entity.Receipt, error) {
			return s.api.DeleteReceiptItem(ctx, receiptID, itemID)
		},
		settle: func(r *entity.Receipt, start uint64) {
			s.putCommittedLocked(r, start)
			s.invalidateFilteredLocked(nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("delete item %s on %s: %w", itemID, receiptID, err)
	}
	s.publish(ctx, events.KindItemsChanged, receiptID)
	return r.Clone(), nil
}

// settleItemChangeLocked replaces the owning receipt and stales only the
// filtered lists whose predicate looks at items.
func (s *Store) settleItemChangeLocked(r *entity.Receipt, start uint64) {
	s.putCommittedLocked(r, start)
	s.invalidateFilteredLocked(func(f entity.ReceiptFilters) bool {
		return f.CategoryID != nil
	})
}
