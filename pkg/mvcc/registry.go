package mvcc

import (
	"container/list"
	"sync"
	"sync/atomic"

	"txengine/internal/txlog"
	"txengine/pkg/cache"
	"txengine/pkg/ids"
)

// viewsComponent is the cache.MemoryBudget component name under which a
// registry tracks the approximate memory its live view list holds.
const viewsComponent = "mvcc.views"

// viewBaseBytes estimates a ReadView's fixed overhead, excluding its
// active-id vector, which is tracked per its actual length.
const viewBaseBytes = 64

// Txn is the minimal view a transaction must present to the registry.
// The full transaction type lives in pkg/txn; this interface keeps mvcc
// decoupled from it so the registry never reaches into transaction state
// it does not itself own.
type Txn interface {
	Xid() ids.Xid
	View() *ReadView
	AutocommitNonLockingReader() bool
}

// serialEntry is one writer's position in the serialization order: the
// order transactions were assigned a commit sequence number ("no"), used
// to compute a view's purge horizon (LowLimitNo).
type serialEntry struct {
	xid ids.Xid
	no  uint64
}

// Registry is the snapshot isolation registry: the active read-write xid
// set, the max-xid counter, the serialization list, and the registry's
// own list of live views (m_views). A single mutex protects all of these
// together so that Prepare's reads of them are always consistent.
type Registry struct {
	mu sync.Mutex

	readOnly bool

	rwXids      ids.SortedIDs
	maxXid      atomic.Uint64
	serial      *list.List // of *serialEntry, oldest (smallest no) at front
	serialByXid map[ids.Xid]*list.Element

	views    *list.List // of *ReadView, youngest at front
	viewElem map[*ReadView]*list.Element

	budget *cache.MemoryBudget // nil if this registry isn't tracked
}

// NewRegistry creates an empty registry. readOnly mirrors the engine-wide
// read-only flag: when set, ViewOpen never opens a view.
func NewRegistry(readOnly bool) *Registry {
	return NewRegistryWithBudget(readOnly, nil)
}

// NewRegistryWithBudget creates a registry whose view list is tracked
// against budget, so a long-running snapshot and the rest of the engine's
// caches compete for the same memory ceiling. budget may be nil to opt
// out of tracking entirely.
func NewRegistryWithBudget(readOnly bool, budget *cache.MemoryBudget) *Registry {
	if budget != nil {
		budget.RegisterComponent(viewsComponent)
	}
	return &Registry{
		readOnly:    readOnly,
		serial:      list.New(),
		serialByXid: make(map[ids.Xid]*list.Element),
		views:       list.New(),
		viewElem:    make(map[*ReadView]*list.Element),
		budget:      budget,
	}
}

func (r *Registry) viewSizeLocked(v *ReadView) int64 {
	return int64(viewBaseBytes + 8*len(v.IDs()))
}

// AssignXid hands out the next transaction id and advances the max-xid
// counter watermark used by Prepare past it, so the watermark is always
// greater than every id handed out (the first id is 1). Driven by the
// out-of-scope transaction manager; SIR only ever reads the watermark it
// produces.
func (r *Registry) AssignXid() ids.Xid {
	r.maxXid.CompareAndSwap(0, 1)
	return ids.Xid(r.maxXid.Add(1) - 1)
}

// MaxXid returns the current max-xid watermark without taking the mutex;
// safe because it is only ever advanced, never rolled back.
func (r *Registry) MaxXid() ids.Xid {
	return ids.Xid(r.maxXid.Load())
}

// TrackWriter adds xid to the active read-write set (trx_sys.rw_xids).
// Must be called by the transaction manager when a txn becomes a writer,
// before any concurrent Prepare can observe it.
func (r *Registry) TrackWriter(xid ids.Xid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rwXids.Insert(xid)
}

// UntrackWriter removes xid from the active read-write set once the
// transaction has committed or aborted.
func (r *Registry) UntrackWriter(xid ids.Xid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := r.rwXids.Data()
	for i, v := range data {
		if v == xid {
			rest := append([]ids.Xid{}, data[:i]...)
			rest = append(rest, data[i+1:]...)
			r.rwXids.Assign(rest)
			return
		}
	}
}

// BeginSerialization records xid's commit sequence number no as the newest
// entry in the serialization list, used to compute LowLimitNo.
func (r *Registry) BeginSerialization(xid ids.Xid, no uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.serial.PushBack(&serialEntry{xid: xid, no: no})
	r.serialByXid[xid] = e
}

// EndSerialization removes xid's entry from the serialization list.
func (r *Registry) EndSerialization(xid ids.Xid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.serialByXid[xid]; ok {
		r.serial.Remove(e)
		delete(r.serialByXid, xid)
	}
}

// ViewOpen assigns and opens txn's read view if it does not already have
// one open. Three paths:
//
//   - the engine-read-only short circuit (never opens),
//   - the fast-reuse path, which deliberately reads MaxXid and sets the
//     view's open bit without taking the registry mutex, and
//   - the slow path, which prepares a fresh view under the mutex.
func (r *Registry) ViewOpen(txn Txn) {
	if r.readOnly {
		return
	}

	v := txn.View()
	if v.IsOpen() {
		return
	}

	// Fast reuse path: deliberately racy. Every reordering this permits
	// is sound: either purge clones a slightly younger view with
	// identical values, or a new writer starts concurrently and is, by
	// construction, invisible to this view regardless of exactly when
	// `open` flips true.
	if v.IsRegistered() && txn.AutocommitNonLockingReader() && v.Empty() && v.LowLimitID() == r.MaxXid() {
		txlog.FastPathReuse(uint64(txn.Xid()))
		v.SetOpen(true)
		return
	}

	r.mu.Lock()
	// Detach before re-preparing so the budget release matches the size
	// tracked when the view was attached.
	if v.IsRegistered() {
		r.detachLocked(v)
	} else {
		v.SetRegistered(true)
	}
	minNo, haveMinNo := r.oldestSerialNoLocked()
	v.Prepare(txn.Xid(), ids.Xid(r.maxXid.Load()), r.rwXids.Data(), minNo, haveMinNo)
	v.SetOpen(true)
	r.attachFrontLocked(v)
	r.mu.Unlock()
}

// ViewClose clears the open bit but leaves the view registered so a later
// ViewOpen by the same txn can reuse it via the fast path.
func (r *Registry) ViewClose(v *ReadView) {
	v.SetOpen(false)
}

// ViewUnregister removes v from the registry's view list entirely. Call
// when the owning txn is closing for good.
func (r *Registry) ViewUnregister(v *ReadView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(v)
	v.SetRegistered(false)
	v.SetOpen(false)
}

// CloneOldestView fills dst with a snapshot that sees at least everything
// the oldest open view sees: scan from the tail (oldest) toward the head
// for the first open view and clone it; if none are open, prepare dst
// fresh as of "now". dst is owned entirely by the caller (the purge
// subsystem); it is never inserted into the registry.
func (r *Registry) CloneOldestView(dst *ReadView) {
	r.mu.Lock()
	for e := r.views.Back(); e != nil; e = e.Prev() {
		v := e.Value.(*ReadView)
		if v.IsOpen() {
			dst.CopyPrepare(v)
			r.mu.Unlock()
			dst.CopyComplete()
			return
		}
	}

	minNo, haveMinNo := r.oldestSerialNoLocked()
	dst.Prepare(0, ids.Xid(r.maxXid.Load()), r.rwXids.Data(), minNo, haveMinNo)
	r.mu.Unlock()
}

// Size returns the number of currently open views.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for e := r.views.Front(); e != nil; e = e.Next() {
		if e.Value.(*ReadView).IsOpen() {
			n++
		}
	}
	return n
}

// Validate is the debug view-list checker from read0read.cc's ViewCheck:
// every listed view must be registered, and walking head (youngest) to
// tail (oldest) each open view's purge horizon (LowLimitNo) must be no
// newer than that of the view listed just before it.
// Intended for use in tests, not production call sites.
func (r *Registry) Validate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prev *ReadView
	for e := r.views.Front(); e != nil; e = e.Next() {
		v := e.Value.(*ReadView)
		if !v.IsRegistered() {
			return false
		}
		if prev != nil && v.IsOpen() && !v.Le(prev) {
			return false
		}
		prev = v
	}
	return true
}

func (r *Registry) oldestSerialNoLocked() (uint64, bool) {
	if r.serial.Len() == 0 {
		return 0, false
	}
	return r.serial.Front().Value.(*serialEntry).no, true
}

func (r *Registry) attachFrontLocked(v *ReadView) {
	e := r.views.PushFront(v)
	r.viewElem[v] = e
	if r.budget != nil {
		r.budget.Track(viewsComponent, r.viewSizeLocked(v))
	}
}

func (r *Registry) detachLocked(v *ReadView) {
	if e, ok := r.viewElem[v]; ok {
		r.views.Remove(e)
		delete(r.viewElem, v)
		if r.budget != nil {
			r.budget.Release(viewsComponent, r.viewSizeLocked(v))
		}
	}
}
