// Package txn holds the transaction handle shared by the snapshot
// isolation registry and the rollback application core, and the
// collaborator interfaces those cores consume: the write-ahead log, the
// cachefile/cachetable layer, the fractal-tree message-application path,
// the rollback log storage, and the transaction manager. None of those
// collaborators are implemented here — this package only states the
// shape the two cores require of them.
package txn

import (
	"sort"
	"sync"

	"txengine/pkg/ids"
	"txengine/pkg/mvcc"
)

// XidPair is a (possibly nested) transaction's owning identity: the
// outermost transaction id and, when the owner is a child txn spliced
// into its parent via rollinclude, the child's own id.
type XidPair struct {
	Outer ids.Xid
	Inner ids.Xid
}

// OpenFTEntry binds a FileId to its open fractal-tree handle. Txn keeps
// these sorted by FileId so lookup is a binary search.
type OpenFTEntry struct {
	FileID ids.FileId
	Tree   Messenger
}

// Txn is the owner of everything a commit or abort walk needs: the open
// fractal-tree handles this transaction has touched, its nested-xid
// stack, its rollback chain position, and a back-reference to the logger
// that owns the cachetable and the WAL.
type Txn struct {
	mu sync.RWMutex

	id          ids.Xid
	forRecovery bool
	doFsyncLsn  ids.Lsn

	openFTs []OpenFTEntry // ordered by FileID

	xidStack ids.XidStack

	// Rollback chain position. NewestBlock is where the walker starts;
	// SpilledHead/SpilledTail are non-NoBlock only while this txn is the
	// parent-side target of an in-progress rollinclude splice, and are
	// rewritten by the walker as it drains spliced nodes so that a
	// subsequent close does not double-free.
	NewestBlock ids.BlockNo
	SpilledHead ids.BlockNo
	SpilledTail ids.BlockNo

	Logger Logger

	autocommitNonLockingReader bool
	view                       mvcc.ReadView
}

// New creates a transaction handle. id and forRecovery are immutable for
// the life of the txn.
func New(id ids.Xid, forRecovery bool, logger Logger) *Txn {
	return &Txn{
		id:          id,
		forRecovery: forRecovery,
		xidStack:    ids.XidStack{id},
		NewestBlock: ids.NoBlock,
		SpilledHead: ids.NoBlock,
		SpilledTail: ids.NoBlock,
		Logger:      logger,
	}
}

// Xid returns the transaction's own id. Satisfies mvcc.Txn.
func (t *Txn) Xid() ids.Xid { return t.id }

// ID is a friendlier alias for Xid, used outside the mvcc boundary.
func (t *Txn) ID() ids.Xid { return t.id }

// ForRecovery reports whether this txn handle represents replay of a
// crash-recovered transaction. Immutable after New.
func (t *Txn) ForRecovery() bool { return t.forRecovery }

// DoFsyncLsn is the LSN that must be durable before this txn's
// unlink-on-commit side effects (fdelete, load) may proceed.
func (t *Txn) DoFsyncLsn() ids.Lsn { return t.doFsyncLsn }

// SetDoFsyncLsn records the LSN the fsync/cachefile adapter must flush to
// before marking a file for deferred unlink.
func (t *Txn) SetDoFsyncLsn(lsn ids.Lsn) { t.doFsyncLsn = lsn }

// XidStack returns the current nested-xid stack, outermost first.
func (t *Txn) XidStack() ids.XidStack { return t.xidStack }

// PushNested starts a nested transaction with child xid on top of the
// stack.
func (t *Txn) PushNested(child ids.Xid) { t.xidStack = append(t.xidStack, child) }

// PopNested removes the innermost xid, returning to the enclosing txn.
func (t *Txn) PopNested() {
	if len(t.xidStack) > 1 {
		t.xidStack = t.xidStack[:len(t.xidStack)-1]
	}
}

// WAL is a shortcut for t.Logger.WAL().
func (t *Txn) WAL() WAL { return t.Logger.WAL() }

// CacheTable is a shortcut for t.Logger.CacheTable().
func (t *Txn) CacheTable() CacheTable { return t.Logger.CacheTable() }

// TxnManager is a shortcut for t.Logger.TxnManager().
func (t *Txn) TxnManager() TxnManager { return t.Logger.TxnManager() }

// RollbackLogStore is a shortcut for t.Logger.RollbackLogStore().
func (t *Txn) RollbackLogStore() RollbackLogStore { return t.Logger.RollbackLogStore() }

// View returns the transaction's read view. Satisfies mvcc.Txn.
func (t *Txn) View() *mvcc.ReadView { return &t.view }

// AutocommitNonLockingReader reports whether this txn is eligible for the
// registry's fast view-reuse path. Satisfies mvcc.Txn.
func (t *Txn) AutocommitNonLockingReader() bool { return t.autocommitNonLockingReader }

// SetAutocommitNonLockingReader configures fast-path eligibility.
func (t *Txn) SetAutocommitNonLockingReader(v bool) { t.autocommitNonLockingReader = v }

// OpenFT looks up the fractal-tree handle for fileID via binary search
// over the ordered open_fts table. ok is false if this txn never opened
// that file.
func (t *Txn) OpenFT(fileID ids.FileId) (Messenger, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.openFTs), func(i int) bool { return t.openFTs[i].FileID >= fileID })
	if i < len(t.openFTs) && t.openFTs[i].FileID == fileID {
		return t.openFTs[i].Tree, true
	}
	return nil, false
}

// AddOpenFT records that this txn has fileID open, keeping the table
// sorted by FileId. A txn never holds two entries for the same FileId;
// AddOpenFT panics if asked to violate that.
func (t *Txn) AddOpenFT(fileID ids.FileId, tree Messenger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.openFTs), func(i int) bool { return t.openFTs[i].FileID >= fileID })
	if i < len(t.openFTs) && t.openFTs[i].FileID == fileID {
		panic("txn: AddOpenFT: fileID already open in this txn")
	}
	t.openFTs = append(t.openFTs, OpenFTEntry{})
	copy(t.openFTs[i+1:], t.openFTs[i:])
	t.openFTs[i] = OpenFTEntry{FileID: fileID, Tree: tree}
}
