// Package cache keeps a normalized client-side cache of receipts behind
// several views: the unfiltered list, any number of filtered lists, and one
// view per receipt id.
//
// Receipt bodies live in a single arena keyed by id. List views hold ids and
// a staleness flag only, so every view of one receipt reads the same body and
// the views can never disagree on live data: a view is either current or
// marked stale and refetched on its next read.
//
// Every write advances a logical clock. Fetches record the clock when they
// start and are discarded (for views) or skipped (per entity) when a newer
// write landed while they were in flight. Deletions leave a tombstone so an
// older in-flight read cannot resurrect the receipt.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/events"
)

type record struct {
	receipt *entity.Receipt
	version uint64
	stale   bool
}

type listView struct {
	filters entity.ReceiptFilters
	ids     []uuid.UUID
	version uint64
	stale   bool
}

type storeNameIndex struct {
	names []string
	stale bool
}

// Store is the cache synchronization layer. It is safe for concurrent use;
// remote calls never run under the lock.
type Store struct {
	api       api.Client
	publisher events.Publisher
	logger    *slog.Logger
	origin    string

	mu         sync.Mutex
	clock      uint64
	records    map[uuid.UUID]*record
	lists      map[string]*listView
	tombstones map[uuid.UUID]uint64
	inflight   map[uint64]int // remote calls in flight, by start clock
	storeNames *storeNameIndex

	flights singleflight.Group
	loader  *dataloader.Loader[uuid.UUID, *entity.Receipt]
}

type Option func(*Store)

// WithPublisher fans committed mutations out to other clients.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithOrigin sets the id stamped on published events; events carrying this
// origin are ignored by ApplyRemote.
func WithOrigin(origin string) Option {
	return func(s *Store) {
		if origin != "" {
			s.origin = origin
		}
	}
}

// WithBatchWait sets how long single-receipt loads wait to coalesce.
func WithBatchWait(d time.Duration) Option {
	return func(s *Store) {
		s.loader = newLoader(s, d)
	}
}

func NewStore(client api.Client, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		api:        client,
		publisher:  events.NopPublisher{},
		logger:     logger,
		origin:     uuid.NewString(),
		records:    make(map[uuid.UUID]*record),
		lists:      make(map[string]*listView),
		tombstones: make(map[uuid.UUID]uint64),
		inflight:   make(map[uint64]int),
	}
	s.loader = newLoader(s, 2*time.Millisecond)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Origin identifies this store on published events.
func (s *Store) Origin() string {
	return s.origin
}

// tick advances the logical clock. Callers hold s.mu.
func (s *Store) tick() uint64 {
	s.clock++
	return s.clock
}

// putLocked writes a body into the arena. Callers hold s.mu.
func (s *Store) putLocked(r *entity.Receipt) {
	s.records[r.ID] = &record{receipt: r.Clone(), version: s.tick()}
}

// putCommittedLocked stores a body returned by a committed write unless the
// receipt was deleted after the write started. Callers hold s.mu.
func (s *Store) putCommittedLocked(r *entity.Receipt, start uint64) bool {
	if at, ok := s.tombstones[r.ID]; ok && at > start {
		s.logger.Info("cache.receipt.settle_discarded", "receipt_id", r.ID, "reason", "deleted")
		return false
	}
	s.putLocked(r)
	return true
}

// beginLocked registers a remote call and returns the clock it started at.
// Callers hold s.mu.
func (s *Store) beginLocked() uint64 {
	start := s.clock
	s.inflight[start]++
	return start
}

// endLocked retires a call registered by beginLocked and drops tombstones
// that no call still in flight can race with. A tombstone only blocks calls
// that started before it. Callers hold s.mu.
func (s *Store) endLocked(start uint64) {
	s.inflight[start]--
	if s.inflight[start] <= 0 {
		delete(s.inflight, start)
	}

	floor := s.clock
	for at := range s.inflight {
		floor = min(floor, at)
	}
	for id, at := range s.tombstones {
		if at <= floor {
			delete(s.tombstones, id)
		}
	}
}

// removeLocked evicts a body and tombstones its id. Callers hold s.mu.
func (s *Store) removeLocked(id uuid.UUID) {
	delete(s.records, id)
	s.tombstones[id] = s.tick()
}

// unfilteredLocked returns the unfiltered list view, or nil. Callers hold s.mu.
func (s *Store) unfilteredLocked() *listView {
	return s.lists[entity.ReceiptFilters{}.Key()]
}

// invalidateFilteredLocked marks filtered list views stale. A nil match
// selects all of them. Callers hold s.mu.
func (s *Store) invalidateFilteredLocked(match func(entity.ReceiptFilters) bool) {
	for key, v := range s.lists {
		if key == "" {
			continue
		}
		if match != nil && !match(v.filters) {
			continue
		}
		v.stale = true
		v.version = s.tick()
	}
}

func (s *Store) invalidateStoreNamesLocked() {
	if s.storeNames != nil {
		s.storeNames.stale = true
	}
}

func (s *Store) publish(ctx context.Context, kind events.Kind, id uuid.UUID) {
	if err := s.publisher.Publish(ctx, events.NewEvent(kind, id, s.origin)); err != nil {
		s.logger.Warn("cache.publish.failed", "kind", kind, "receipt_id", id, "error", err)
	}
}
