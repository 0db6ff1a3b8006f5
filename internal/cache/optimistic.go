package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// speculation is a local guess written before the remote call. version is
// the clock value of that write; restore undoes it. conflict runs when a
// later write to the same receipt makes the undo unsafe.
type speculation struct {
	id       uuid.UUID
	version  uint64
	restore  func()
	conflict func()
}

// mutation describes one write in four steps: speculate applies a local guess,
// send performs the remote call, settle folds the authoritative response in.
// settle receives the clock value the mutation started at. speculate and
// settle run under s.mu; either may be nil for non-optimistic writes.
type mutation[T any] struct {
	name      string
	attrs     []any
	speculate func() *speculation
	send      func(ctx context.Context) (T, error)
	settle    func(res T, start uint64)
}

// run executes m: speculate, send, then settle on success or roll back on
// failure. The remote error is returned unchanged.
func run[T any](ctx context.Context, s *Store, m mutation[T]) (T, error) {
	begin := time.Now()

	s.mu.Lock()
	start := s.beginLocked()
	var sp *speculation
	if m.speculate != nil {
		sp = m.speculate()
	}
	s.mu.Unlock()

	res, err := m.send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endLocked(start)

	elapsed := func() int64 { return time.Since(begin).Milliseconds() }
	if err != nil {
		switch {
		case sp == nil:
			s.logger.Warn("cache."+m.name+".failed", append(m.attrs, "error", err, "elapsed_ms", elapsed())...)
		case s.rollbackLocked(sp):
			s.logger.Warn("cache."+m.name+".rollback", append(m.attrs, "error", err, "elapsed_ms", elapsed())...)
		default:
			s.logger.Warn("cache."+m.name+".rollback_superseded", append(m.attrs, "error", err, "elapsed_ms", elapsed())...)
		}
		var zero T
		return zero, err
	}
	if m.settle != nil {
		m.settle(res, start)
	}
	s.logger.Info("cache."+m.name+".ok", append(m.attrs, "elapsed_ms", elapsed())...)
	return res, nil
}

// rollbackLocked undoes sp unless the receipt was written again after it. A
// later deletion wins and its tombstone is re-stamped so a rollback of that
// deletion cannot restore a body that still carries this guess. Any other
// later write is kept and the record is marked stale. Callers hold s.mu.
func (s *Store) rollbackLocked(sp *speculation) bool {
	if at, ok := s.tombstones[sp.id]; ok && at > sp.version {
		s.tombstones[sp.id] = s.tick()
		if sp.conflict != nil {
			sp.conflict()
		}
		return false
	}
	if rec, ok := s.records[sp.id]; ok && rec.version > sp.version {
		rec.stale = true
		rec.version = s.tick()
		if sp.conflict != nil {
			sp.conflict()
		}
		return false
	}
	sp.restore()
	return true
}
