package tra

import (
	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// CmdInsert is the logged record for an insertion into a dictionary.
type CmdInsert struct {
	FileID ids.FileId
	Key    []byte
}

func (e CmdInsert) Tag() string { return "CmdInsert" }
func (e CmdInsert) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitCmdInsert(t, e.FileID, e.Key, oplsn) }
func (e CmdInsert) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortCmdInsert(t, e.FileID, e.Key, oplsn) }

// CmdDelete is the logged record for a deletion from a dictionary.
type CmdDelete struct {
	FileID ids.FileId
	Key    []byte
}

func (e CmdDelete) Tag() string { return "CmdDelete" }
func (e CmdDelete) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitCmdDelete(t, e.FileID, e.Key, oplsn) }
func (e CmdDelete) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortCmdDelete(t, e.FileID, e.Key, oplsn) }

// CmdUpdate is the logged record for an in-place update of a dictionary
// entry.
type CmdUpdate struct {
	FileID ids.FileId
	Key    []byte
}

func (e CmdUpdate) Tag() string { return "CmdUpdate" }
func (e CmdUpdate) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitCmdUpdate(t, e.FileID, e.Key, oplsn) }
func (e CmdUpdate) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortCmdUpdate(t, e.FileID, e.Key, oplsn) }

// CmdUpdateBroadcast is the logged record for a broadcast update.
// IsResetting distinguishes a broadcast that also resets the tree's
// root-xid-that-created from one that doesn't.
type CmdUpdateBroadcast struct {
	FileID      ids.FileId
	IsResetting bool
}

func (e CmdUpdateBroadcast) Tag() string { return "CmdUpdateBroadcast" }
func (e CmdUpdateBroadcast) Commit(t *txn.Txn, oplsn ids.Lsn) error {
	return CommitCmdUpdateBroadcast(t, e.FileID, e.IsResetting, oplsn)
}
func (e CmdUpdateBroadcast) Abort(t *txn.Txn, oplsn ids.Lsn) error {
	return AbortCmdUpdateBroadcast(t, e.FileID, oplsn)
}

// ChangeFDescriptor is the logged record for a dictionary descriptor
// change, carrying the descriptor that was in effect beforehand.
type ChangeFDescriptor struct {
	FileID        ids.FileId
	OldDescriptor []byte
}

func (e ChangeFDescriptor) Tag() string { return "ChangeFDescriptor" }
func (e ChangeFDescriptor) Commit(t *txn.Txn, oplsn ids.Lsn) error {
	return CommitChangeFDescriptor(t, e.FileID, e.OldDescriptor, oplsn)
}
func (e ChangeFDescriptor) Abort(t *txn.Txn, oplsn ids.Lsn) error {
	return AbortChangeFDescriptor(t, e.FileID, e.OldDescriptor, oplsn)
}

// FCreate is the logged record for a new file/dictionary creation.
type FCreate struct {
	FileID ids.FileId
	Iname  []byte
}

func (e FCreate) Tag() string { return "FCreate" }
func (e FCreate) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitFCreate(t, e.FileID, e.Iname, oplsn) }
func (e FCreate) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortFCreate(t, e.FileID, e.Iname, oplsn) }

// FDelete is the logged record for a file/dictionary deletion.
type FDelete struct {
	FileID ids.FileId
}

func (e FDelete) Tag() string { return "FDelete" }
func (e FDelete) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitFDelete(t, e.FileID, oplsn) }
func (e FDelete) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortFDelete(t, e.FileID, oplsn) }

// Load is the logged record for a bulk load that replaces one dictionary
// file with another.
type Load struct {
	OldFileID ids.FileId
	NewIname  []byte
}

func (e Load) Tag() string { return "Load" }
func (e Load) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitLoad(t, e.OldFileID, e.NewIname, oplsn) }
func (e Load) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortLoad(t, e.OldFileID, e.NewIname, oplsn) }

// HotIndex is the logged record for an online index build touching
// several files at once.
type HotIndex struct {
	FileIDs []ids.FileId
}

func (e HotIndex) Tag() string { return "HotIndex" }
func (e HotIndex) Commit(t *txn.Txn, oplsn ids.Lsn) error { return CommitHotIndex(t, e.FileIDs, oplsn) }
func (e HotIndex) Abort(t *txn.Txn, oplsn ids.Lsn) error { return AbortHotIndex(t, e.FileIDs, oplsn) }

// DictionaryRedirect is the logged record for redirecting one file's
// identity onto another.
type DictionaryRedirect struct {
	OldFileID ids.FileId
	NewFileID ids.FileId
}

func (e DictionaryRedirect) Tag() string { return "DictionaryRedirect" }
func (e DictionaryRedirect) Commit(t *txn.Txn, oplsn ids.Lsn) error {
	return CommitDictionaryRedirect(t, e.OldFileID, e.NewFileID, oplsn)
}
func (e DictionaryRedirect) Abort(t *txn.Txn, oplsn ids.Lsn) error {
	return AbortDictionaryRedirect(t, e.OldFileID, e.NewFileID, oplsn)
}

// RollInclude splices a committed child transaction's rollback chain
// into its parent as a single logical entry. Applying it walks the
// spliced subchain and invokes the same commit-side or abort-side
// function that would have run had the child finished independently.
type RollInclude struct {
	Xid         ids.Xid
	NumNodes    uint64
	SpilledHead ids.BlockNo
	SpilledTail ids.BlockNo
}

func (e RollInclude) Tag() string { return "RollInclude" }

func (e RollInclude) Commit(t *txn.Txn, oplsn ids.Lsn) error {
	return e.apply(t, oplsn, commitEntryFn)
}

func (e RollInclude) Abort(t *txn.Txn, oplsn ids.Lsn) error {
	return e.apply(t, oplsn, abortEntryFn)
}

func (e RollInclude) apply(t *txn.Txn, oplsn ids.Lsn, dispatch entryFn) error {
	t.SpilledHead = e.SpilledHead
	t.SpilledTail = e.SpilledTail

	owner := txn.XidPair{Outer: t.ID(), Inner: e.Xid}

	// The spliced subchain's first node must report num_nodes-1: a
	// subchain whose node count drifted from what was recorded at splice
	// time is corrupt even if every node's Sequence decrements
	// consistently from its own (wrong) starting point.
	wantSeq := e.NumNodes - 1

	return walk(t, t.SpilledTail, owner, oplsn, dispatch, func(drained, next ids.BlockNo) {
		if drained == t.SpilledHead {
			t.SpilledHead = ids.NoBlock
		}
		t.SpilledTail = next
	}, wantSeq, true)
}
