package tra

import (
	"txengine/internal/policy"
	"txengine/internal/txlog"
	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// Policy holds the commit-side no-op toggles this build is running under.
// Swap it (e.g. from internal/policy.Load) before wiring a Logger; the
// walker never mutates it.
var Policy = policy.Default

// lookupTree resolves fileID against txn's open fractal trees. A nil,nil
// return means "absent, tolerated" (recovery replay only); callers must
// treat that as a no-op, not as success with an empty tree.
func lookupTree(t *txn.Txn, fileID ids.FileId) (txn.Messenger, error) {
	tree, ok := t.OpenFT(fileID)
	if ok {
		return tree, nil
	}
	if t.ForRecovery() {
		txlog.FileAbsentTolerated(uint32(fileID))
		return nil, nil
	}
	return nil, ErrFileAbsent
}

// alreadyApplied reports whether oplsn has already been durably reflected
// in tree, per the recovery idempotence guard.
func alreadyApplied(tree txn.Messenger, oplsn ids.Lsn) bool {
	if oplsn == 0 {
		return false
	}
	ckpt := tree.CheckpointLSN()
	if ckpt >= oplsn {
		txlog.RecoveryGuardSkip(uint32(tree.FileID()), uint64(oplsn), uint64(ckpt))
		return true
	}
	return false
}

// doInsertion is the shared emission protocol for every dictionary-
// mutating message: resolve the tree, apply the recovery guard, build the
// message from the txn's current xid stack, fetch garbage-collection
// context, and put the message at the tree's root.
func doInsertion(t *txn.Txn, fileID ids.FileId, kind txn.MessageKind, key, value []byte, oplsn ids.Lsn) error {
	tree, err := lookupTree(t, fileID)
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	if alreadyApplied(tree, oplsn) {
		return nil
	}

	msg := txn.Message{
		Kind:     kind,
		Key:      key,
		Value:    value,
		XidStack: t.XidStack(),
	}

	var estimate ids.Xid
	if mgr := t.TxnManager(); mgr != nil {
		estimate = mgr.OldestReferencedXidEstimate()
	}
	gc := txn.GCInfo{
		OldestReferencedXidEstimate: estimate,
		MayPromote:                  !t.ForRecovery(),
	}

	return tree.PutMessageAtRoot(msg, gc)
}

// CommitCmdInsert is a no-op unless Policy.CommitCmdInsert is set, in
// which case it emits COMMIT_ANY like an enabled delete or update would.
func CommitCmdInsert(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	if !Policy.CommitCmdInsert {
		return nil
	}
	return doInsertion(t, fileID, txn.CommitAny, key, nil, oplsn)
}

// AbortCmdInsert undoes a logged insert by emitting ABORT_ANY.
func AbortCmdInsert(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	return doInsertion(t, fileID, txn.AbortAny, key, nil, oplsn)
}

// CommitCmdDelete is a no-op unless Policy.CommitCmdDelete is set.
func CommitCmdDelete(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	if !Policy.CommitCmdDelete {
		return nil
	}
	return doInsertion(t, fileID, txn.CommitAny, key, nil, oplsn)
}

// AbortCmdDelete undoes a logged delete by emitting ABORT_ANY.
func AbortCmdDelete(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	return doInsertion(t, fileID, txn.AbortAny, key, nil, oplsn)
}

// CommitCmdUpdate is a no-op unless Policy.CommitCmdUpdate is set.
func CommitCmdUpdate(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	if !Policy.CommitCmdUpdate {
		return nil
	}
	return doInsertion(t, fileID, txn.CommitAny, key, nil, oplsn)
}

// AbortCmdUpdate undoes a logged update by emitting ABORT_ANY.
func AbortCmdUpdate(t *txn.Txn, fileID ids.FileId, key []byte, oplsn ids.Lsn) error {
	return doInsertion(t, fileID, txn.AbortAny, key, nil, oplsn)
}

// CommitCmdUpdateBroadcast emits COMMIT_BROADCAST_ALL when the op is
// resetting (and resets the tree's root-xid-that-created to the txn's
// outermost xid), or COMMIT_BROADCAST_TXN when it isn't.
func CommitCmdUpdateBroadcast(t *txn.Txn, fileID ids.FileId, isResetting bool, oplsn ids.Lsn) error {
	kind := txn.CommitBroadcastTxn
	if isResetting {
		kind = txn.CommitBroadcastAll
	}

	tree, err := lookupTree(t, fileID)
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	if alreadyApplied(tree, oplsn) {
		return nil
	}

	msg := txn.Message{Kind: kind, XidStack: t.XidStack()}
	var estimate ids.Xid
	if mgr := t.TxnManager(); mgr != nil {
		estimate = mgr.OldestReferencedXidEstimate()
	}
	gc := txn.GCInfo{OldestReferencedXidEstimate: estimate, MayPromote: !t.ForRecovery()}

	if err := tree.PutMessageAtRoot(msg, gc); err != nil {
		return err
	}

	if isResetting {
		tree.ResetRootXidThatCreated(t.XidStack().Outermost())
	}
	return nil
}

// AbortCmdUpdateBroadcast always emits ABORT_BROADCAST_TXN.
func AbortCmdUpdateBroadcast(t *txn.Txn, fileID ids.FileId, oplsn ids.Lsn) error {
	return doInsertion(t, fileID, txn.AbortBroadcastTxn, nil, nil, oplsn)
}

// CommitChangeFDescriptor is a no-op: the descriptor change already took
// effect when it was logged.
func CommitChangeFDescriptor(t *txn.Txn, fileID ids.FileId, oldDescriptor []byte, oplsn ids.Lsn) error {
	return nil
}

// AbortChangeFDescriptor restores the descriptor that was in effect
// before the logged change.
func AbortChangeFDescriptor(t *txn.Txn, fileID ids.FileId, oldDescriptor []byte, oplsn ids.Lsn) error {
	tree, err := lookupTree(t, fileID)
	if err != nil {
		return err
	}
	if tree == nil {
		return nil
	}
	if alreadyApplied(tree, oplsn) {
		return nil
	}
	tree.UpdateDescriptor(oldDescriptor)
	return nil
}
