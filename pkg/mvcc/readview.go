// Package mvcc implements the Snapshot Isolation Registry: the read-view
// machinery that tells a reader which transaction ids it may see, and the
// registry of live views that the purge subsystem consults for the oldest
// active snapshot.
//
// This is a direct port of InnoDB's read0read.cc ReadView/MVCC design:
// views are prepared under a single registry mutex, reused across
// autocommit non-locking readers along a deliberately racy fast path, and
// cloned (never borrowed) by the purge thread.
package mvcc

import (
	"sync/atomic"

	"txengine/pkg/ids"
)

// ReadView is an immutable-after-prepare visibility snapshot. Zero value is
// a valid unregistered, unopened view.
type ReadView struct {
	creatorXid ids.Xid // 0 once committed into the view list (see CopyComplete)
	lowLimitID ids.Xid // upper bound on visible xids at prepare time (exclusive)
	lowLimitNo uint64  // purge horizon: min serialization number among in-flight writers
	upLimitID  ids.Xid // smallest concurrently-active xid at prepare time (exclusive lower bound)
	activeIDs  ids.SortedIDs

	registered atomic.Bool
	open       atomic.Bool
}

// CreatorXid returns the transaction id that prepared this view, or 0 if
// the view has completed a clone (CopyComplete) or was never assigned one.
func (v *ReadView) CreatorXid() ids.Xid { return v.creatorXid }

// LowLimitID is the exclusive upper bound on visible xids at prepare time.
func (v *ReadView) LowLimitID() ids.Xid { return v.lowLimitID }

// LowLimitNo is the purge horizon: no version created or deleted by a
// transaction with a smaller serialization number may be purged while this
// view is open.
func (v *ReadView) LowLimitNo() uint64 { return v.lowLimitNo }

// UpLimitID is the exclusive lower bound of the "maybe invisible" xid range.
func (v *ReadView) UpLimitID() ids.Xid { return v.upLimitID }

// IDs returns the ascending vector of concurrently-active xids at prepare
// time, excluding the creator. The slice must not be mutated by the caller.
func (v *ReadView) IDs() []ids.Xid { return v.activeIDs.Data() }

// IsOpen reports the open bit. Read and written without the registry mutex
// on the ViewOpen fast-reuse path; see Registry.ViewOpen.
func (v *ReadView) IsOpen() bool { return v.open.Load() }

// IsRegistered reports whether this view is currently linked into a
// registry's view list.
func (v *ReadView) IsRegistered() bool { return v.registered.Load() }

// SetOpen sets the open bit.
func (v *ReadView) SetOpen(open bool) { v.open.Store(open) }

// SetRegistered sets the registered bit.
func (v *ReadView) SetRegistered(registered bool) { v.registered.Store(registered) }

// Empty reports whether the view carries no visibility information at all:
// no active ids and no pending creator to fold in.
func (v *ReadView) Empty() bool {
	return v.activeIDs.Empty() && v.creatorXid == 0
}

// Le defines the total order views are kept in within a registry's list:
// v.Le(other) holds when v's purge horizon is no newer than other's, i.e.
// v belongs at or below other walking from the registry's head (youngest)
// toward its tail (oldest). Used only by the debug validator.
func (v *ReadView) Le(other *ReadView) bool {
	return v.lowLimitNo <= other.lowLimitNo
}

// CopyTrxIds copies every entry of src into the view's active-id set except
// the view's own creator xid, and sets UpLimitID to the smallest remaining
// id. If creatorXid > 0, src must contain it exactly once; a single shift
// copies the run before and the run after that slot. Caller must hold
// whatever mutex guards src (the registry's rw-xid set).
func (v *ReadView) CopyTrxIds(src []ids.Xid) {
	n := len(src)
	if v.creatorXid > 0 {
		n--
	}

	if n <= 0 {
		v.activeIDs.Clear()
		return
	}

	v.activeIDs.Reserve(n)
	v.activeIDs.Clear()

	if v.creatorXid > 0 {
		idx := -1
		for i, x := range src {
			if x == v.creatorXid {
				idx = i
				break
			}
		}
		if idx < 0 {
			panic("mvcc: CopyTrxIds: creator xid not present in source exactly once")
		}
		for i, x := range src {
			if i == idx {
				continue
			}
			v.activeIDs.PushBack(x)
		}
	} else {
		for _, x := range src {
			v.activeIDs.PushBack(x)
		}
	}

	v.upLimitID = v.activeIDs.Front()
}

// Prepare opens a read view where exactly the transactions serialized
// before this point in time are visible. id is the creating transaction's
// xid, or 0 for a view with no creator (e.g. the purge "now" snapshot).
// Caller must hold the registry mutex: maxXid, rwXids and
// minActiveSerialNo must all be read from the same critical section, so
// that no xid greater than or equal to lowLimitID appears in rwXids.
func (v *ReadView) Prepare(id, maxXid ids.Xid, rwXids []ids.Xid, minActiveSerialNo uint64, haveActiveSerialNo bool) {
	v.creatorXid = id

	v.lowLimitNo = uint64(maxXid)
	v.lowLimitID = maxXid
	v.upLimitID = maxXid

	if len(rwXids) > 0 {
		v.CopyTrxIds(rwXids)
	} else {
		v.activeIDs.Clear()
	}

	if haveActiveSerialNo && minActiveSerialNo < v.lowLimitNo {
		v.lowLimitNo = minActiveSerialNo
	}
}

// CopyPrepare field-wise copies other's visibility state into v, including
// a deep copy of the active-id vector. Callable without the registry
// mutex once the caller already holds a consistent snapshot of other
// (i.e. while still holding the mutex that protects other's membership).
func (v *ReadView) CopyPrepare(other *ReadView) {
	if other == v {
		panic("mvcc: CopyPrepare: self-copy")
	}

	if !other.activeIDs.Empty() {
		v.activeIDs.Assign(other.activeIDs.Data())
	} else {
		v.activeIDs.Clear()
	}

	v.upLimitID = other.upLimitID
	v.lowLimitNo = other.lowLimitNo
	v.lowLimitID = other.lowLimitID
	v.creatorXid = other.creatorXid
}

// CopyComplete finishes a CopyPrepare clone: the original creator xid (if
// any) is folded into the active-id set, since a clone must treat its
// source view's creator as still-active from the clone's perspective, and
// UpLimitID is adjusted down to match. Must be called without the registry
// mutex held.
func (v *ReadView) CopyComplete() {
	if v.creatorXid > 0 {
		v.activeIDs.Insert(v.creatorXid)
	}

	if !v.activeIDs.Empty() {
		if front := v.activeIDs.Front(); front < v.upLimitID {
			v.upLimitID = front
		}
	}

	v.creatorXid = 0
}

// Sees reports whether xid's effects are visible to this view.
func (v *ReadView) Sees(xid ids.Xid) bool {
	if xid < v.upLimitID {
		return true
	}
	if xid >= v.lowLimitID {
		return false
	}
	return !v.activeIDs.Contains(xid)
}
