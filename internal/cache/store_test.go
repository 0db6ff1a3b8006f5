package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-sync/internal/api"
	"github.com/joseph-ayodele/receipts-sync/internal/api/apitest"
	"github.com/joseph-ayodele/receipts-sync/internal/common"
	"github.com/joseph-ayodele/receipts-sync/internal/entity"
	"github.com/joseph-ayodele/receipts-sync/internal/events"
)

var errOffline = &api.Error{Op: "test", Status: 503}

func newTestStore(client api.Client, opts ...Option) *Store {
	return NewStore(client, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(name, total string) entity.ReceiptItem {
	return entity.ReceiptItem{ID: uuid.New(), Name: name, Quantity: 1, UnitPrice: dec(total), TotalPrice: dec(total), Currency: "USD"}
}

func receipt(store, total string, items ...entity.ReceiptItem) *entity.Receipt {
	return &entity.Receipt{ID: uuid.New(), StoreName: store, TotalAmount: dec(total), Currency: "USD", Items: items}
}

// server is a tiny stateful remote used by the cache tests.
type server struct {
	mu       sync.Mutex
	receipts []*entity.Receipt
}

func (s *server) all() []*entity.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Receipt, len(s.receipts))
	for i, r := range s.receipts {
		out[i] = r.Clone()
	}
	return out
}

func (s *server) find(id uuid.UUID) *entity.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *server) fake() *apitest.Fake {
	return &apitest.Fake{
		GetReceiptsFn: func(ctx context.Context, f entity.ReceiptFilters) ([]*entity.Receipt, error) {
			var out []*entity.Receipt
			for _, r := range s.all() {
				if f.StoreName == "" || f.StoreName == r.StoreName {
					out = append(out, r)
				}
			}
			return out, nil
		},
		GetReceiptFn: func(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
			if r := s.find(id); r != nil {
				return r.Clone(), nil
			}
			return nil, common.ErrNotFound
		},
		UpdateReceiptFn: func(ctx context.Context, id uuid.UUID, p entity.ReceiptPatch) (*entity.Receipt, error) {
			r := s.find(id)
			if r == nil {
				return nil, common.ErrNotFound
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if p.Notes != nil {
				r.Notes = *p.Notes
			}
			if p.StoreName != nil {
				r.StoreName = *p.StoreName
			}
			if p.TotalAmount != nil {
				r.TotalAmount = *p.TotalAmount
			}
			return r.Clone(), nil
		},
	}
}

func TestStore_UpdateReplacesEverywhereAndStalesFilteredViews(t *testing.T) {
	ctx := context.Background()
	r7 := receipt("Corner Shop", "12.00", item("Milk", "12.00"))
	srv := &server{receipts: []*entity.Receipt{receipt("Other", "3.00"), r7}}
	store := newTestStore(srv.fake())

	filtered := entity.ReceiptFilters{StoreName: "Corner Shop"}
	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	_, err = store.List(ctx, filtered)
	require.NoError(t, err)
	_, err = store.Get(ctx, r7.ID)
	require.NoError(t, err)

	notes := "reimbursable"
	updated, err := store.UpdateReceipt(ctx, r7.ID, entity.ReceiptPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "reimbursable", updated.Notes)

	single, ok := store.Peek(ReceiptKey(r7.ID))
	require.True(t, ok)
	require.Len(t, single.Receipts, 1)
	assert.False(t, single.Stale)

	list, ok := store.Peek(ListKey(entity.ReceiptFilters{}))
	require.True(t, ok)
	assert.False(t, list.Stale)
	require.Len(t, list.Receipts, 2)
	assert.Equal(t, single.Receipts[0], list.Receipts[1])
	assert.Equal(t, "reimbursable", list.Receipts[1].Notes)

	view, ok := store.Peek(ListKey(filtered))
	require.True(t, ok)
	assert.True(t, view.Stale)
	assert.Equal(t, []ViewKey{ListKey(filtered)}, store.Stale())
}

func TestStore_DeleteItemIsOptimisticAndRollsBack(t *testing.T) {
	ctx := context.Background()
	doomed := item("Gum", "5.00")
	r := receipt("Kiosk", "25.00", item("Coffee", "20.00"), doomed)
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()

	var during struct {
		single, list View
	}
	store := newTestStore(fake)
	fake.DeleteReceiptItemFn = func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
		during.single, _ = store.Peek(ReceiptKey(receiptID))
		during.list, _ = store.Peek(ListKey(entity.ReceiptFilters{}))
		return nil, errOffline
	}

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	before, ok := store.Peek(ReceiptKey(r.ID))
	require.True(t, ok)

	_, err = store.DeleteItem(ctx, r.ID, doomed.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNetwork)
	assert.True(t, common.IsNetworkFailure(err))

	require.Len(t, during.single.Receipts, 1)
	guess := during.single.Receipts[0]
	assert.True(t, guess.TotalAmount.Equal(dec("20.00")), "optimistic total %s", guess.TotalAmount)
	assert.Equal(t, -1, guess.ItemIndex(doomed.ID))
	assert.Len(t, guess.Items, 1)
	require.Len(t, during.list.Receipts, 1)
	assert.Equal(t, guess, during.list.Receipts[0])

	after, ok := store.Peek(ReceiptKey(r.ID))
	require.True(t, ok)
	assert.Equal(t, before.Receipts, after.Receipts)
	list, _ := store.Peek(ListKey(entity.ReceiptFilters{}))
	assert.Equal(t, before.Receipts, list.Receipts)
}

func TestStore_DeleteItemSettlesWithServerBody(t *testing.T) {
	ctx := context.Background()
	doomed := item("Gum", "4.995")
	r := receipt("Kiosk", "25.00", item("Coffee", "20.00"), doomed)
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	fake.DeleteReceiptItemFn = func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
		out := r.Clone()
		out.Items = out.Items[:1]
		out.TotalAmount = dec("20.01")
		return out, nil
	}
	store := newTestStore(fake)

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	_, err = store.List(ctx, entity.ReceiptFilters{StoreName: "Kiosk"})
	require.NoError(t, err)

	got, err := store.DeleteItem(ctx, r.ID, doomed.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(dec("20.01")))

	single, _ := store.Peek(ReceiptKey(r.ID))
	assert.True(t, single.Receipts[0].TotalAmount.Equal(dec("20.01")))
	filtered, _ := store.Peek(ListKey(entity.ReceiptFilters{StoreName: "Kiosk"}))
	assert.True(t, filtered.Stale)
}

func TestStore_DeleteReceiptEvictsBeforeSendAndRestoresOnFailure(t *testing.T) {
	ctx := context.Background()
	a, b, c := receipt("A", "1.00"), receipt("B", "2.00"), receipt("C", "3.00")
	srv := &server{receipts: []*entity.Receipt{a, b, c}}
	fake := srv.fake()
	store := newTestStore(fake)

	var cachedDuring bool
	var listDuring View
	fake.DeleteReceiptFn = func(ctx context.Context, id uuid.UUID) error {
		_, cachedDuring = store.Peek(ReceiptKey(id))
		listDuring, _ = store.Peek(ListKey(entity.ReceiptFilters{}))
		return errOffline
	}

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)

	err = store.DeleteReceipt(ctx, b.ID)
	require.ErrorIs(t, err, common.ErrNetwork)

	assert.False(t, cachedDuring)
	require.Len(t, listDuring.Receipts, 2)
	assert.Equal(t, []uuid.UUID{a.ID, c.ID}, []uuid.UUID{listDuring.Receipts[0].ID, listDuring.Receipts[1].ID})

	list, _ := store.Peek(ListKey(entity.ReceiptFilters{}))
	require.Len(t, list.Receipts, 3)
	assert.Equal(t, b.ID, list.Receipts[1].ID)
	got, err := store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.StoreName)
	assert.Equal(t, 0, fake.Calls("GetReceipt"))
}

func TestStore_DeletedReceiptIsNotResurrectedByInFlightRead(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()

	entered := make(chan struct{})
	release := make(chan struct{})
	fake.GetReceiptFn = func(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
		close(entered)
		<-release
		return r.Clone(), nil
	}
	fake.DeleteReceiptFn = func(ctx context.Context, id uuid.UUID) error { return nil }
	store := newTestStore(fake, WithBatchWait(time.Millisecond))

	errc := make(chan error, 1)
	go func() {
		_, err := store.Get(ctx, r.ID)
		errc <- err
	}()
	<-entered
	require.NoError(t, store.DeleteReceipt(ctx, r.ID))
	close(release)

	err := <-errc
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, ok := store.Peek(ReceiptKey(r.ID))
	assert.False(t, ok)
	assert.Zero(t, tombstoneCount(store), "tombstone outlived the read it was guarding against")
}

func TestStore_StaleListResponseIsDiscarded(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	store := newTestStore(fake)

	filtered := entity.ReceiptFilters{StoreName: "Deli"}
	_, err := store.List(ctx, filtered)
	require.NoError(t, err)

	notes := "late"
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.GetReceiptsFn = func(ctx context.Context, f entity.ReceiptFilters) ([]*entity.Receipt, error) {
		old := r.Clone()
		close(entered)
		<-release
		return []*entity.Receipt{old}, nil
	}

	// force a refetch of the filtered view
	store.ApplyRemote(events.NewEvent(events.KindReceiptUpdated, r.ID, "elsewhere"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.List(ctx, filtered)
	}()
	<-entered
	_, err = store.UpdateReceipt(ctx, r.ID, entity.ReceiptPatch{Notes: &notes})
	require.NoError(t, err)
	close(release)
	<-done

	view, ok := store.Peek(ListKey(filtered))
	require.True(t, ok)
	assert.True(t, view.Stale, "response older than the update must not clear staleness")
	single, _ := store.Peek(ReceiptKey(r.ID))
	assert.Equal(t, "late", single.Receipts[0].Notes)
}

func TestStore_ScanPrependsAndInvalidates(t *testing.T) {
	ctx := context.Background()
	srv := &server{receipts: []*entity.Receipt{receipt("Bakery", "4.00")}}
	fake := srv.fake()
	scanned := receipt("Arcade", "6.00")
	fake.ScanReceiptFn = func(ctx context.Context, req api.ScanRequest) (*entity.Receipt, error) {
		srv.mu.Lock()
		srv.receipts = append(srv.receipts, scanned.Clone())
		srv.mu.Unlock()
		return scanned.Clone(), nil
	}
	store := newTestStore(fake)

	names, err := store.StoreNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bakery"}, names)
	_, err = store.List(ctx, entity.ReceiptFilters{StoreName: "Arcade"})
	require.NoError(t, err)

	_, err = store.Scan(ctx, api.ScanRequest{Filename: "r.jpg"})
	require.NoError(t, err)

	list, _ := store.Peek(ListKey(entity.ReceiptFilters{}))
	assert.False(t, list.Stale)
	require.Len(t, list.Receipts, 2)
	assert.Equal(t, scanned.ID, list.Receipts[0].ID)

	filtered, _ := store.Peek(ListKey(entity.ReceiptFilters{StoreName: "Arcade"}))
	assert.True(t, filtered.Stale)

	names, err = store.StoreNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Arcade", "Bakery"}, names)
}

func TestStore_ConcurrentGetsShareOneFetch(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	store := newTestStore(fake, WithBatchWait(50*time.Millisecond))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.Get(ctx, r.ID)
			assert.NoError(t, err)
			assert.Equal(t, r.ID, got.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fake.Calls("GetReceipt"))
}

func TestStore_ItemChangeStalesOnlyCategoryViews(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00", item("Soup", "8.00"))
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	fake.CreateReceiptItemFn = func(ctx context.Context, id uuid.UUID, in entity.ItemInput) (*entity.Receipt, error) {
		out := r.Clone()
		out.Items = append(out.Items, entity.ReceiptItem{ID: uuid.New(), Name: in.Name, Quantity: in.Quantity, UnitPrice: in.UnitPrice, TotalPrice: in.TotalPrice})
		return out, nil
	}
	store := newTestStore(fake)

	category := uuid.New()
	byStore := entity.ReceiptFilters{StoreName: "Deli"}
	byCategory := entity.ReceiptFilters{CategoryID: &category}
	for _, f := range []entity.ReceiptFilters{{}, byStore, byCategory} {
		_, err := store.List(ctx, f)
		require.NoError(t, err)
	}

	_, err := store.CreateItem(ctx, r.ID, entity.ItemInput{Name: "Bread", Quantity: 1, UnitPrice: dec("2.00"), TotalPrice: dec("2.00")})
	require.NoError(t, err)

	assert.Equal(t, []ViewKey{ListKey(byCategory)}, store.Stale())
	single, _ := store.Peek(ReceiptKey(r.ID))
	assert.Len(t, single.Receipts[0].Items, 2)
	// server total is not recomputed client-side
	assert.True(t, single.Receipts[0].TotalAmount.Equal(dec("8.00")))
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func TestStore_PublishesAndAppliesRemoteEvents(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	pub := &capturePublisher{}
	store := newTestStore(srv.fake(), WithPublisher(pub), WithOrigin("laptop"))

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	notes := "x"
	_, err = store.UpdateReceipt(ctx, r.ID, entity.ReceiptPatch{Notes: &notes})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.KindReceiptUpdated, pub.events[0].Kind)
	assert.Equal(t, "laptop", pub.events[0].Origin)

	store.ApplyRemote(pub.events[0])
	assert.Empty(t, store.Stale(), "own events are ignored")

	store.ApplyRemote(events.NewEvent(events.KindReceiptUpdated, r.ID, "phone"))
	assert.ElementsMatch(t, []ViewKey{ListKey(entity.ReceiptFilters{}), ReceiptKey(r.ID)}, store.Stale())

	store.ApplyRemote(events.NewEvent(events.KindReceiptDeleted, r.ID, "phone"))
	_, ok := store.Peek(ReceiptKey(r.ID))
	assert.False(t, ok)
}

func TestStore_ListFailureSurfacesNetworkError(t *testing.T) {
	fake := &apitest.Fake{GetReceiptsFn: func(context.Context, entity.ReceiptFilters) ([]*entity.Receipt, error) {
		return nil, errOffline
	}}
	store := newTestStore(fake)

	_, err := store.List(context.Background(), entity.ReceiptFilters{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNetwork))
	_, ok := store.Peek(ListKey(entity.ReceiptFilters{}))
	assert.False(t, ok)
}

func tombstoneCount(s *Store) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tombstones)
}

func TestStore_FailedItemDeleteDoesNotRestoreReceiptDeletedMeanwhile(t *testing.T) {
	ctx := context.Background()
	doomed := item("Gum", "5.00")
	r := receipt("Kiosk", "25.00", item("Coffee", "20.00"), doomed)
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	fake.DeleteReceiptFn = func(ctx context.Context, id uuid.UUID) error {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		srv.receipts = nil
		return nil
	}
	store := newTestStore(fake)
	fake.DeleteReceiptItemFn = func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
		require.NoError(t, store.DeleteReceipt(ctx, receiptID))
		return nil, &api.Error{Op: "test", Status: 404}
	}

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)

	_, err = store.DeleteItem(ctx, r.ID, doomed.ID)
	require.Error(t, err)

	_, ok := store.Peek(ReceiptKey(r.ID))
	assert.False(t, ok)
	list, _ := store.Peek(ListKey(entity.ReceiptFilters{}))
	assert.Empty(t, list.Receipts)

	_, err = store.Get(ctx, r.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 1, fake.Calls("GetReceipt"))
}

func TestStore_FailedItemDeleteDoesNotRestoreReceiptDeletedRemotely(t *testing.T) {
	ctx := context.Background()
	doomed := item("Gum", "5.00")
	r := receipt("Kiosk", "25.00", item("Coffee", "20.00"), doomed)
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	store := newTestStore(fake)
	fake.DeleteReceiptItemFn = func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
		store.ApplyRemote(events.NewEvent(events.KindReceiptDeleted, receiptID, "phone"))
		return nil, errOffline
	}

	_, err := store.Get(ctx, r.ID)
	require.NoError(t, err)

	_, err = store.DeleteItem(ctx, r.ID, doomed.ID)
	require.ErrorIs(t, err, common.ErrNetwork)

	_, ok := store.Peek(ReceiptKey(r.ID))
	assert.False(t, ok)
}

func TestStore_FailedItemDeleteKeepsNewerCommittedWrite(t *testing.T) {
	ctx := context.Background()
	doomed := item("Gum", "5.00")
	r := receipt("Kiosk", "25.00", item("Coffee", "20.00"), doomed)
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	store := newTestStore(fake)
	notes := "server-confirmed"
	fake.DeleteReceiptItemFn = func(ctx context.Context, receiptID, itemID uuid.UUID) (*entity.Receipt, error) {
		_, err := store.UpdateReceipt(ctx, receiptID, entity.ReceiptPatch{Notes: &notes})
		require.NoError(t, err)
		return nil, errOffline
	}

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)

	_, err = store.DeleteItem(ctx, r.ID, doomed.ID)
	require.ErrorIs(t, err, common.ErrNetwork)

	single, ok := store.Peek(ReceiptKey(r.ID))
	require.True(t, ok)
	assert.Equal(t, "server-confirmed", single.Receipts[0].Notes)
	assert.True(t, single.Stale)
	assert.Contains(t, store.Stale(), ReceiptKey(r.ID))
}

func TestStore_CommittedUpdateDoesNotRestoreReceiptDeletedMeanwhile(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()
	fake.DeleteReceiptFn = func(ctx context.Context, id uuid.UUID) error { return nil }
	store := newTestStore(fake)
	fake.UpdateReceiptFn = func(ctx context.Context, id uuid.UUID, p entity.ReceiptPatch) (*entity.Receipt, error) {
		out := r.Clone()
		out.Notes = *p.Notes
		require.NoError(t, store.DeleteReceipt(ctx, id))
		return out, nil
	}

	_, err := store.Get(ctx, r.ID)
	require.NoError(t, err)

	notes := "late"
	_, err = store.UpdateReceipt(ctx, r.ID, entity.ReceiptPatch{Notes: &notes})
	require.NoError(t, err)

	_, ok := store.Peek(ReceiptKey(r.ID))
	assert.False(t, ok)
}

func TestStore_TombstonesArePrunedWhenNothingIsInFlight(t *testing.T) {
	ctx := context.Background()
	receipts := []*entity.Receipt{receipt("A", "1.00"), receipt("B", "2.00"), receipt("C", "3.00")}
	srv := &server{receipts: receipts}
	fake := srv.fake()
	fake.DeleteReceiptFn = func(ctx context.Context, id uuid.UUID) error { return nil }
	store := newTestStore(fake)

	_, err := store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	for _, r := range receipts {
		require.NoError(t, store.DeleteReceipt(ctx, r.ID))
	}
	assert.Zero(t, tombstoneCount(store))

	store.ApplyRemote(events.NewEvent(events.KindReceiptDeleted, uuid.New(), "phone"))
	assert.Equal(t, 1, tombstoneCount(store))
	_, err = store.List(ctx, entity.ReceiptFilters{})
	require.NoError(t, err)
	assert.Zero(t, tombstoneCount(store))
}

func TestStore_CancelledListCallerDoesNotFailSharedFetch(t *testing.T) {
	ctx := context.Background()
	r := receipt("Deli", "8.00")
	srv := &server{receipts: []*entity.Receipt{r}}
	fake := srv.fake()

	entered := make(chan struct{})
	release := make(chan struct{})
	var fetchCtxErr error
	fake.GetReceiptsFn = func(ctx context.Context, f entity.ReceiptFilters) ([]*entity.Receipt, error) {
		close(entered)
		<-release
		fetchCtxErr = ctx.Err()
		return srv.all(), nil
	}
	store := newTestStore(fake)

	firstCtx, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.List(firstCtx, entity.ReceiptFilters{})
		firstErr <- err
	}()
	<-entered

	type result struct {
		receipts []*entity.Receipt
		err      error
	}
	second := make(chan result, 1)
	go func() {
		got, err := store.List(ctx, entity.ReceiptFilters{})
		second <- result{got, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.Len(t, res.receipts, 1)
	assert.NoError(t, fetchCtxErr)
	assert.Equal(t, 1, fake.Calls("GetReceipts"))
}
