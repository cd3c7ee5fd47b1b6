package txn

import (
	"errors"

	"txengine/pkg/ids"
)

// ErrNotFound is the sentinel a CacheTable implementation returns from
// OpenByFileID/OpenByIname when no matching file is open. Callers decide
// whether that is tolerable.
var ErrNotFound = errors.New("txn: no such open file")

// Logger is the back-reference every Txn holds to the component that owns
// the write-ahead log, the cachetable, and the transaction manager.
type Logger interface {
	WAL() WAL
	CacheTable() CacheTable
	TxnManager() TxnManager
	RollbackLogStore() RollbackLogStore
}

// WAL is the write-ahead log collaborator: the only operation the
// rollback applier needs from it is the durability fence.
type WAL interface {
	// FsyncUpTo flushes the log up to lsn if it has not already done so.
	// Idempotent: a repeated call with an lsn already flushed is a no-op.
	FsyncUpTo(lsn ids.Lsn) error
}

// CacheFile is a single open file handle in the cachetable.
type CacheFile interface {
	FileID() ids.FileId
	MarkUnlinkOnClose()
	IsUnlinkOnClose() bool
}

// CacheTable is the page-cache / cachefile layer collaborator: maps file
// ids (and, for the Load rollback path, on-disk names) to open files, and
// exposes best-effort unlink for files that were never opened as
// cachefiles at all.
type CacheTable interface {
	// OpenByFileID returns the cachefile for fileID. Returns ErrNotFound
	// if no such file is open; the caller decides whether that is
	// tolerable (recovery) or fatal (normal operation).
	OpenByFileID(fileID ids.FileId) (CacheFile, error)

	// OpenByIname returns the cachefile already open under the given
	// on-disk name, or ErrNotFound if none is open under that name.
	OpenByIname(iname string) (CacheFile, error)

	// UnlinkPath best-effort removes a file by path when no cachefile was
	// ever opened for it. ENOENT is tolerated by the caller, not here.
	UnlinkPath(path string) error
}

// MessageKind tags a message addressed to the fractal tree's root.
type MessageKind int

const (
	CommitAny MessageKind = iota
	AbortAny
	CommitBroadcastAll
	CommitBroadcastTxn
	AbortBroadcastTxn
)

func (k MessageKind) String() string {
	switch k {
	case CommitAny:
		return "COMMIT_ANY"
	case AbortAny:
		return "ABORT_ANY"
	case CommitBroadcastAll:
		return "COMMIT_BROADCAST_ALL"
	case CommitBroadcastTxn:
		return "COMMIT_BROADCAST_TXN"
	case AbortBroadcastTxn:
		return "ABORT_BROADCAST_TXN"
	default:
		return "UNKNOWN"
	}
}

// Message carries a key, an optional value, and the txn's current xid
// stack.
type Message struct {
	Kind     MessageKind
	Key      []byte
	Value    []byte // nil for broadcast / delete-style messages
	XidStack ids.XidStack
	Sequence uint64 // always zero; reserved by the tree's own MSN space
}

// GCInfo is the garbage-collection context passed alongside a message,
// built from the transaction manager's oldest-referenced-xid estimate.
type GCInfo struct {
	OldestReferencedXidEstimate ids.Xid
	// MayPromote is true when the caller is not replaying recovery: the
	// tree may implicitly promote update-records based on the oldest
	// referenced xid estimate only outside recovery.
	MayPromote bool
}

// Messenger is a single open fractal-tree handle: the message-application
// path collaborator.
type Messenger interface {
	FileID() ids.FileId
	PutMessageAtRoot(msg Message, gc GCInfo) error
	CheckpointLSN() ids.Lsn
	ResetRootXidThatCreated(xid ids.Xid)
	UpdateDescriptor(descriptor []byte)

	// RedirectAbort undoes a dictionary-redirect: new is the tree that was
	// about to take over this tree's identity; aborting tells this tree to
	// resume being the dictionary of record.
	RedirectAbort(new Messenger) error
}

// RollEntry is one logged operation, identified by its wire tag and
// carrying the commit-side and abort-side application functions under a
// uniform (txn, oplsn) -> error signature.
type RollEntry interface {
	Tag() string
	Commit(t *Txn, oplsn ids.Lsn) error
	Abort(t *Txn, oplsn ids.Lsn) error
}

// RollbackLogNode is one persisted node of a transaction's rollback log
// chain. NewestEntry is the head of a singly linked, most-recent-first
// list of RollEntry nodes via RollEntryNode.
type RollbackLogNode struct {
	BlockNo     ids.BlockNo
	Sequence    uint64
	OwnerXid    XidPair
	Previous    ids.BlockNo
	NewestEntry *RollEntryNode
}

// RollEntryNode is one link in a RollbackLogNode's LIFO entry list.
type RollEntryNode struct {
	Entry RollEntry
	Prev  *RollEntryNode
}

// RollbackLogStore is the rollback log storage collaborator: a persistent
// linked list of per-txn log nodes, exposing pin, unpin-and-remove, and a
// prefetch hint for the previous node.
type RollbackLogStore interface {
	// Pin loads and pins the node at block, blocking on disk I/O if
	// necessary.
	Pin(block ids.BlockNo) (*RollbackLogNode, error)

	// PrefetchPrevious issues a non-blocking prefetch hint for node's
	// previous block, if any.
	PrefetchPrevious(node *RollbackLogNode)

	// UnpinAndRemove releases node's pin and deletes it from the store.
	// Must be called on every exit path once a node has been drained,
	// including error paths.
	UnpinAndRemove(node *RollbackLogNode) error
}

// TxnManager is the transaction manager collaborator: issues transaction
// ids, tracks the read-write set, and estimates the oldest referenced xid
// for garbage-collection purposes. The rollback applier consumes only the
// estimate; everything else about transaction lifecycle lives elsewhere.
type TxnManager interface {
	OldestReferencedXidEstimate() ids.Xid
}
