package cache

import (
	"sort"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

// ViewKind distinguishes list views from single-receipt views.
type ViewKind int

const (
	ViewList ViewKind = iota
	ViewReceipt
)

// ViewKey names one cached view.
type ViewKey struct {
	Kind      ViewKind
	Filters   entity.ReceiptFilters
	ReceiptID uuid.UUID
}

// ListKey is the key of a list view; zero filters select the unfiltered list.
func ListKey(f entity.ReceiptFilters) ViewKey {
	return ViewKey{Kind: ViewList, Filters: f}
}

// ReceiptKey is the key of a single-receipt view.
func ReceiptKey(id uuid.UUID) ViewKey {
	return ViewKey{Kind: ViewReceipt, ReceiptID: id}
}

func (k ViewKey) String() string {
	if k.Kind == ViewReceipt {
		return "receipt:" + k.ReceiptID.String()
	}
	return "list:" + k.Filters.Key()
}

// View is a read-only copy of one cached view.
type View struct {
	Receipts []*entity.Receipt
	Stale    bool
}

// Peek returns the cached contents of a view without fetching. Ids whose body
// was evicted (an optimistic delete) are skipped.
func (s *Store) Peek(key ViewKey) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.Kind == ViewReceipt {
		rec, ok := s.records[key.ReceiptID]
		if !ok {
			return View{}, false
		}
		return View{Receipts: []*entity.Receipt{rec.receipt.Clone()}, Stale: rec.stale}, true
	}

	v, ok := s.lists[key.Filters.Key()]
	if !ok {
		return View{}, false
	}
	return View{Receipts: s.bodiesLocked(v.ids), Stale: v.stale}, true
}

// Stale lists every view currently marked stale, lists first.
func (s *Store) Stale() []ViewKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lists []ViewKey
	for _, v := range s.lists {
		if v.stale {
			lists = append(lists, ListKey(v.filters))
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Filters.Key() < lists[j].Filters.Key() })

	var singles []ViewKey
	for id, rec := range s.records {
		if rec.stale {
			singles = append(singles, ReceiptKey(id))
		}
	}
	sort.Slice(singles, func(i, j int) bool { return singles[i].ReceiptID.String() < singles[j].ReceiptID.String() })

	return append(lists, singles...)
}

// bodiesLocked resolves ids against the arena. Callers hold s.mu.
func (s *Store) bodiesLocked(ids []uuid.UUID) []*entity.Receipt {
	out := make([]*entity.Receipt, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			out = append(out, rec.receipt.Clone())
		}
	}
	return out
}
