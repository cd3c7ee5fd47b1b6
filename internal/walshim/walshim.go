// Package walshim adapts the frame-checksummed write-ahead log
// (pkg/wal) into the durability fence the rollback applier needs:
// fsync_up_to(lsn), idempotent once that lsn is already flushed.
package walshim

import (
	"sync"
	"sync/atomic"

	"txengine/pkg/ids"
	"txengine/pkg/wal"
)

// Shim keeps a monotonic flushed-Lsn watermark and turns a durability-fence
// request into a real fsync through the underlying WAL's commit-frame sync
// path. The watermark advances only when FsyncUpTo forces such a sync, and
// is then set to the requested lsn.
type Shim struct {
	w *wal.WAL

	mu       sync.Mutex
	flushed  atomic.Uint64
	pageSize int
}

// New wraps an already-open WAL. flushedFrom seeds the flushed watermark,
// e.g. from the WAL's existing frame count on reopen.
func New(w *wal.WAL, flushedFrom ids.Lsn) *Shim {
	s := &Shim{w: w, pageSize: w.PageSize()}
	s.flushed.Store(uint64(flushedFrom))
	return s
}

// FlushedUpTo returns the highest Lsn known durable.
func (s *Shim) FlushedUpTo() ids.Lsn {
	return ids.Lsn(s.flushed.Load())
}

// FsyncUpTo flushes the WAL if lsn has not already been made durable.
// Idempotent: a repeated call with an already-flushed lsn costs one
// atomic load and returns.
func (s *Shim) FsyncUpTo(lsn ids.Lsn) error {
	if ids.Lsn(s.flushed.Load()) >= lsn {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ids.Lsn(s.flushed.Load()) >= lsn {
		return nil
	}

	// A zero-filled marker frame forces the WAL's commit-frame sync path;
	// its page content carries no data of its own.
	marker := make([]byte, s.pageSize)
	if err := s.w.WriteFrame(0, marker, true); err != nil {
		return err
	}

	s.flushed.Store(uint64(lsn))
	return nil
}
