package tra

import (
	"txengine/internal/txlog"
	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// entryFn applies a single logged entry, dispatching to its commit-side
// or abort-side function.
type entryFn func(t *txn.Txn, e txn.RollEntry, oplsn ids.Lsn) error

func commitEntryFn(t *txn.Txn, e txn.RollEntry, oplsn ids.Lsn) error { return e.Commit(t, oplsn) }
func abortEntryFn(t *txn.Txn, e txn.RollEntry, oplsn ids.Lsn) error  { return e.Abort(t, oplsn) }

// walk drives apply over one rollback log chain (or spliced subchain),
// starting at startBlock and following Previous pointers until NoBlock.
// owner is the (outer, inner) xid pair every node in this chain must
// carry. onDrained is called after each node is unpinned and removed,
// with the block number that was just drained and the next block to
// visit; callers use it to keep the walker's resumption point durable in
// the txn handle (and, for a spliced subchain, to retire spilled_head).
//
// wantSeq, haveWantSeq seed the expected sequence of the first node
// visited. A top-level chain walk has no external expectation and
// passes haveWantSeq false, trusting the first node's own Sequence. A
// spliced rollinclude subchain passes haveWantSeq true with wantSeq set
// to num_nodes-1, so a subchain whose first node's Sequence doesn't
// match the node count it was spliced in with is caught instead of
// silently accepted as internally self-consistent.
func walk(t *txn.Txn, startBlock ids.BlockNo, owner txn.XidPair, oplsn ids.Lsn, apply entryFn, onDrained func(drained, next ids.BlockNo), wantSeq uint64, haveWantSeq bool) error {
	store := t.RollbackLogStore()

	current := startBlock
	expectSeq := wantSeq
	haveExpectSeq := haveWantSeq

	for current != ids.NoBlock {
		node, err := store.Pin(current)
		if err != nil {
			// The walker only pins the chain's start block or a block it
			// reached by following a Previous pointer from a node already
			// in the chain; a store that can't produce one is treated as
			// having lost part of the chain, not as a plain lookup miss.
			txlog.FatalInvariant("walker: rollback log store could not pin block %d: %v", int64(current), err)
			return wrapFatal(ErrAllocationFailure, "pin rollback log node")
		}

		if !haveExpectSeq {
			expectSeq = node.Sequence
			haveExpectSeq = true
		}
		if node.OwnerXid != owner || node.Sequence != expectSeq {
			txlog.WalkerMismatch(int64(node.BlockNo), expectSeq, node.Sequence)
			_ = store.UnpinAndRemove(node)
			return wrapFatal(ErrWalkerMismatch, "check rollback log node owner/sequence")
		}

		store.PrefetchPrevious(node)

		for e := node.NewestEntry; e != nil; e = e.Prev {
			if err := apply(t, e.Entry, oplsn); err != nil {
				_ = store.UnpinAndRemove(node)
				return wrapFatal(err, "apply rollback entry")
			}
		}

		next := node.Previous
		drained := node.BlockNo
		if err := store.UnpinAndRemove(node); err != nil {
			return wrapFatal(err, "unpin rollback log node")
		}
		if onDrained != nil {
			onDrained(drained, next)
		}

		current = next
		if current != ids.NoBlock {
			if expectSeq == 0 {
				return wrapFatal(ErrWalkerMismatch, "rollback log chain continues past sequence 0")
			}
			expectSeq--
		}
	}

	return nil
}

// selfOwner is the owner pair every node of a txn's own (non-spliced)
// chain carries: a node spliced in via rollinclude instead carries the
// child's xid as Inner.
func selfOwner(t *txn.Txn) txn.XidPair {
	return txn.XidPair{Outer: t.ID(), Inner: 0}
}

// apply is the shared body of Commit and Abort: walk the txn's own
// chain, with entry dispatch resolving rollinclude entries into a
// recursive walk of their spliced subchain.
func apply(t *txn.Txn, oplsn ids.Lsn, dispatch entryFn) error {
	err := walk(t, t.NewestBlock, selfOwner(t), oplsn, dispatch, func(_, next ids.BlockNo) {
		t.NewestBlock = next
	}, 0, false)
	if err != nil {
		return err
	}
	return nil
}
