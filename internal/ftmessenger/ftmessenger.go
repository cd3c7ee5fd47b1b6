// Package ftmessenger adapts the B-tree implementation in pkg/btree into
// the fractal-tree message-application collaborator the rollback applier
// talks to. Interpreting a message is this package's job, not the
// applier's: the applier only ever resolves a fileID to a Messenger and
// hands it a message plus garbage-collection context.
package ftmessenger

import (
	"sync"
	"sync/atomic"

	"txengine/pkg/btree"
	"txengine/pkg/ids"
	"txengine/pkg/tree"
	"txengine/pkg/txn"
)

// Tree is a tree.Tree-backed Messenger: it depends on the interface, not
// on btree.BTree directly, so swapping in another tree.Tree implementation
// later needs no change here. A real fractal tree defers message
// interpretation until the buffer flushes down to a leaf; this adapter
// applies every message to the root tree immediately, since the
// underlying tree has no buffer layer of its own. The externally
// observable effect on the dictionary is the same.
type Tree struct {
	mu sync.Mutex

	fileID ids.FileId
	bt     tree.Tree

	checkpointLsn atomic.Uint64
	rootXid       atomic.Uint64
	descriptor    []byte
}

func New(fileID ids.FileId, bt tree.Tree) *Tree {
	return &Tree{fileID: fileID, bt: bt}
}

func (t *Tree) FileID() ids.FileId { return t.fileID }

func (t *Tree) CheckpointLSN() ids.Lsn { return ids.Lsn(t.checkpointLsn.Load()) }

// AdvanceCheckpoint records that everything up to lsn is now durable in
// the underlying pager. Called by whatever drives checkpointing, not by
// the rollback applier.
func (t *Tree) AdvanceCheckpoint(lsn ids.Lsn) {
	for {
		cur := t.checkpointLsn.Load()
		if uint64(lsn) <= cur {
			return
		}
		if t.checkpointLsn.CompareAndSwap(cur, uint64(lsn)) {
			return
		}
	}
}

func (t *Tree) ResetRootXidThatCreated(xid ids.Xid) { t.rootXid.Store(uint64(xid)) }

func (t *Tree) RootXidThatCreated() ids.Xid { return ids.Xid(t.rootXid.Load()) }

func (t *Tree) UpdateDescriptor(descriptor []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.descriptor = append([]byte(nil), descriptor...)
}

func (t *Tree) Descriptor() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.descriptor
}

// PutMessageAtRoot applies msg's effect against the underlying B-tree.
// COMMIT_ANY leaves the dictionary as the logged operation already left
// it. ABORT_ANY deletes the key the logged operation touched. The
// broadcast kinds have no per-key effect at this layer; a real fractal
// tree would push them down to every leaf on the next flush, but a
// single B-tree root already is every leaf.
func (t *Tree) PutMessageAtRoot(msg txn.Message, gc txn.GCInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch msg.Kind {
	case txn.CommitAny:
		return nil
	case txn.AbortAny:
		if err := t.bt.Delete(msg.Key); err != nil && err != btree.ErrKeyNotFound {
			return err
		}
		return nil
	case txn.CommitBroadcastAll, txn.CommitBroadcastTxn, txn.AbortBroadcastTxn:
		return nil
	default:
		return nil
	}
}

// RedirectAbort aborts a dictionary-redirect as a no-op: it leaves this
// tree, newTree and the underlying B-tree untouched and returns nil.
func (t *Tree) RedirectAbort(newTree txn.Messenger) error {
	return nil
}

// Get, Put, and Delete expose the underlying B-tree for seeding test
// fixtures and for whatever logs the forward operation before rollback
// ever sees it.
func (t *Tree) Get(key []byte) ([]byte, error) { return t.bt.Get(key) }

func (t *Tree) Put(key, value []byte) error { return t.bt.Insert(key, value) }

func (t *Tree) Delete(key []byte) error { return t.bt.Delete(key) }
