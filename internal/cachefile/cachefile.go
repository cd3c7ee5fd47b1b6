// Package cachefile adapts the pin-counted page abstraction in pkg/pager
// into the cachefile/cachetable collaborator: a table of
// open files keyed by FileId and by on-disk name, each with a pin count
// and a deferred-unlink bit.
package cachefile

import (
	"os"
	"sync"

	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// File is one open cachefile: a pin-counted handle with a deferred-unlink
// bit, mirroring pkg/pager.Page's Pin/Unpin discipline.
type File struct {
	mu            sync.Mutex
	id            ids.FileId
	path          string
	pinned        int
	unlinkOnClose bool
	unlinked      bool
}

func (f *File) FileID() ids.FileId { return f.id }

// Pin increments the reference count. Call before any operation that
// must not race with this file disappearing.
func (f *File) Pin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned++
}

// Unpin decrements the reference count, running the deferred unlink if
// it was the last pin and the file is marked.
func (f *File) Unpin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinned > 0 {
		f.pinned--
	}
	f.maybeUnlinkLocked()
}

func (f *File) MarkUnlinkOnClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlinkOnClose = true
	f.maybeUnlinkLocked()
}

func (f *File) IsUnlinkOnClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlinkOnClose
}

func (f *File) maybeUnlinkLocked() {
	if !f.unlinkOnClose || f.unlinked || f.pinned > 0 {
		return
	}
	if f.path != "" {
		_ = os.Remove(f.path)
	}
	f.unlinked = true
}

// Table is the cachetable: every currently open file, indexed both by
// FileId and by on-disk name.
type Table struct {
	mu      sync.Mutex
	byID    map[ids.FileId]*File
	byIname map[string]*File
}

func NewTable() *Table {
	return &Table{
		byID:    make(map[ids.FileId]*File),
		byIname: make(map[string]*File),
	}
}

// Open registers a newly opened file under both its FileId and its
// on-disk path. Replaces any existing entry for the same FileId.
func (t *Table) Open(id ids.FileId, path string) *File {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := &File{id: id, path: path}
	t.byID[id] = f
	if path != "" {
		t.byIname[path] = f
	}
	return f
}

func (t *Table) OpenByFileID(id ids.FileId) (txn.CacheFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byID[id]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return f, nil
}

func (t *Table) OpenByIname(iname string) (txn.CacheFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.byIname[iname]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return f, nil
}

// UnlinkPath best-effort removes a file that was never opened as a
// cachefile at all. ENOENT is returned to the caller, not swallowed
// here: the recovery-tolerance decision belongs to the dispatch layer.
func (t *Table) UnlinkPath(path string) error {
	return os.Remove(path)
}
