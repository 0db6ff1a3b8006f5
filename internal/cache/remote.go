package cache

import (
	"github.com/joseph-ayodele/receipts-sync/internal/events"
)

// ApplyRemote folds a mutation made by another client into the cache. Remote
// events never carry bodies: affected views are marked stale and refetched on
// their next read, except deletions, which evict the receipt at once. Events
// stamped with this store's origin are ignored.
func (s *Store) ApplyRemote(e events.Event) {
	if e.Origin == s.origin {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case events.KindReceiptDeleted:
		s.removeLocked(e.ReceiptID)
	case events.KindReceiptCreated:
		// only lists can change
	default:
		if rec, ok := s.records[e.ReceiptID]; ok {
			rec.stale = true
			rec.version = s.tick()
		}
	}

	for _, v := range s.lists {
		v.stale = true
		v.version = s.tick()
	}
	s.invalidateStoreNamesLocked()
	s.logger.Info("cache.remote.applied", "kind", e.Kind, "receipt_id", e.ReceiptID, "origin", e.Origin)
}
