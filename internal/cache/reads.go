package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
)

const maxParallelLoads = 8

// List returns the receipts matching filters, fetching when the view is
// missing or stale. Concurrent fetches of one view share a single request.
// The shared request is detached from any one caller's cancellation and is
// bounded by the API client's timeout; a cancelled caller returns ctx.Err()
// while the others keep waiting.
func (s *Store) List(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error) {
	key := filters.Key()

	s.mu.Lock()
	if v, ok := s.lists[key]; ok && !v.stale {
		out := s.bodiesLocked(v.ids)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	ch := s.flights.DoChan("list:"+key, func() (any, error) {
		return s.fetchList(context.WithoutCancel(ctx), filters)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneAll(res.Val.([]*entity.Receipt)), nil
	}
}

func (s *Store) fetchList(ctx context.Context, filters entity.ReceiptFilters) ([]*entity.Receipt, error) {
	key := filters.Key()

	s.mu.Lock()
	start := s.beginLocked()
	s.mu.Unlock()

	fetched, err := s.api.GetReceipts(ctx, filters)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endLocked(start)

	if err != nil {
		s.logger.Error("cache.list.fetch_failed", "view", "list:"+key, "error", err)
		return nil, fmt.Errorf("get receipts: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(fetched))
	out := make([]*entity.Receipt, 0, len(fetched))
	for _, r := range fetched {
		if r == nil {
			continue
		}
		body, ok := s.mergeLocked(r, start)
		if !ok {
			continue
		}
		ids = append(ids, r.ID)
		out = append(out, body)
	}

	v, exists := s.lists[key]
	if exists && v.version > start {
		// a newer write reached this view while the request was in flight
		s.logger.Info("cache.list.response_discarded", "view", "list:"+key, "started_at", start, "view_version", v.version)
		return out, nil
	}
	if !exists {
		v = &listView{filters: filters}
		s.lists[key] = v
	}
	v.ids = ids
	v.stale = false
	v.version = s.tick()
	if key == "" {
		s.invalidateStoreNamesLocked()
	}
	return out, nil
}

// mergeLocked folds a fetched body into the arena unless a newer write or a
// deletion happened after start. It returns the body readers should see and
// false when the receipt was deleted. Callers hold s.mu.
func (s *Store) mergeLocked(r *entity.Receipt, start uint64) (*entity.Receipt, bool) {
	if at, ok := s.tombstones[r.ID]; ok && at > start {
		return nil, false
	}
	if rec, ok := s.records[r.ID]; ok && rec.version > start {
		return rec.receipt.Clone(), true
	}
	s.putLocked(r)
	return r.Clone(), true
}

// Get returns one receipt, fetching when it is not cached or is stale.
// Concurrent Gets are coalesced into one batch of remote calls.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	s.mu.Lock()
	if rec, ok := s.records[id]; ok && !rec.stale {
		out := rec.receipt.Clone()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	r, err := s.loader.Load(ctx, id)()
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

func newLoader(s *Store, wait time.Duration) *dataloader.Loader[uuid.UUID, *entity.Receipt] {
	return dataloader.NewBatchedLoader(s.batchGet,
		dataloader.WithCache[uuid.UUID, *entity.Receipt](&dataloader.NoCache[uuid.UUID, *entity.Receipt]{}),
		dataloader.WithWait[uuid.UUID, *entity.Receipt](wait),
		dataloader.WithBatchCapacity[uuid.UUID, *entity.Receipt](64),
	)
}

// batchGet fetches each distinct id once; results follow the order of keys.
func (s *Store) batchGet(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[*entity.Receipt] {
	unique := make(map[uuid.UUID]*dataloader.Result[*entity.Receipt], len(keys))
	for _, id := range keys {
		unique[id] = &dataloader.Result[*entity.Receipt]{}
	}

	var g errgroup.Group
	g.SetLimit(maxParallelLoads)
	for id, res := range unique {
		g.Go(func() error {
			res.Data, res.Error = s.fetchOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*dataloader.Result[*entity.Receipt], len(keys))
	for i, id := range keys {
		out[i] = unique[id]
	}
	return out
}

func (s *Store) fetchOne(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	s.mu.Lock()
	start := s.beginLocked()
	s.mu.Unlock()

	r, err := s.api.GetReceipt(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endLocked(start)

	if err != nil {
		s.logger.Error("cache.receipt.fetch_failed", "receipt_id", id, "error", err)
		return nil, fmt.Errorf("get receipt %s: %w", id, err)
	}
	body, ok := s.mergeLocked(r, start)
	if !ok {
		s.logger.Info("cache.receipt.response_discarded", "receipt_id", id, "reason", "deleted")
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	return body, nil
}

// StoreNames returns the distinct store names of the unfiltered list. The
// index is rebuilt after it was invalidated by a create, update, or delete.
func (s *Store) StoreNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.storeNames != nil && !s.storeNames.stale {
		out := append([]string(nil), s.storeNames.names...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	all, err := s.List(ctx, entity.ReceiptFilters{})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.unfilteredLocked()
	if v == nil || v.stale {
		// invalidated again meanwhile; answer from the fetch without caching
		return distinctStoreNames(all), nil
	}
	names := distinctStoreNames(s.bodiesLocked(v.ids))
	s.storeNames = &storeNameIndex{names: names}
	return append([]string(nil), names...), nil
}

func distinctStoreNames(receipts []*entity.Receipt) []string {
	seen := make(map[string]struct{}, len(receipts))
	names := make([]string, 0, len(receipts))
	for _, r := range receipts {
		name := strings.TrimSpace(r.StoreName)
		if name == "" {
			continue
		}
		folded := strings.ToLower(name)
		if _, ok := seen[folded]; ok {
			continue
		}
		seen[folded] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refresh refetches one view through the normal read path.
func (s *Store) Refresh(ctx context.Context, key ViewKey) error {
	if key.Kind == ViewReceipt {
		_, err := s.Get(ctx, key.ReceiptID)
		return err
	}
	_, err := s.List(ctx, key.Filters)
	return err
}

func cloneAll(in []*entity.Receipt) []*entity.Receipt {
	out := make([]*entity.Receipt, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
