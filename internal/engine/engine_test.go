package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txengine/internal/ftmessenger"
	"txengine/pkg/ids"
	"txengine/pkg/pager"
	"txengine/pkg/tra"
	"txengine/pkg/tree"
	"txengine/pkg/txn"
	"txengine/pkg/wal"
)

// TestLoggerDrivesCommitAndAbortAgainstARealTree builds a Logger on top
// of a real on-disk WAL and pager-backed B-tree, logs an insert and a
// delete on two separate transactions, and confirms abort undoes the
// insert while a policy-enabled commit applies the delete.
func TestLoggerDrivesCommitAndAbortAgainstARealTree(t *testing.T) {
	dir := t.TempDir()

	p, err := pager.Open(filepath.Join(dir, "data.db"), pager.Options{})
	require.NoError(t, err)
	defer p.Close()

	w, err := wal.Open(filepath.Join(dir, "data.wal"), wal.Options{})
	require.NoError(t, err)
	defer w.Close()

	bt, err := tree.NewFactory(p, tree.TreeTypeClassic).Create()
	require.NoError(t, err)

	const fileID ids.FileId = 3
	dict := ftmessenger.New(fileID, bt)

	logger := Open(w)
	logger.Cache().Open(fileID, filepath.Join(dir, "dict-3"))

	// Abort an insert: the forward write already landed in the tree, and
	// abort must undo it via ABORT_ANY.
	insertXid := logger.TransactionManager().Begin().ID()
	insertTxn := txn.New(ids.Xid(insertXid), false, logger)
	insertTxn.AddOpenFT(fileID, dict)

	key := []byte("k1")
	require.NoError(t, dict.Put(key, []byte("v1")))
	pushEntry(logger, insertTxn, tra.CmdInsert{FileID: fileID, Key: key})

	require.NoError(t, tra.Abort(insertTxn, 0))

	_, err = dict.Get(key)
	assert.Error(t, err, "abort must have undone the insert")
	assert.Equal(t, 0, logger.Rollback().Len(), "the rollback chain must be fully drained")

	// Commit a delete: the forward delete already removed the key from
	// the tree; under the default policy, delete's commit side re-affirms
	// it with COMMIT_ANY rather than undoing it.
	require.NoError(t, dict.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, dict.Delete([]byte("k2")))

	deleteXid := logger.TransactionManager().Begin().ID()
	deleteTxn := txn.New(ids.Xid(deleteXid), false, logger)
	deleteTxn.AddOpenFT(fileID, dict)

	pushEntry(logger, deleteTxn, tra.CmdDelete{FileID: fileID, Key: []byte("k2")})
	require.NoError(t, tra.Commit(deleteTxn, 0))

	_, err = dict.Get([]byte("k2"))
	assert.Error(t, err, "the committed delete must have removed the key")
}

func pushEntry(logger *Logger, t *txn.Txn, entry txn.RollEntry) {
	logger.Rollback().Put(&txn.RollbackLogNode{
		BlockNo:     0,
		Sequence:    0,
		OwnerXid:    txn.XidPair{Outer: t.ID()},
		Previous:    ids.NoBlock,
		NewestEntry: &txn.RollEntryNode{Entry: entry},
	})
	t.NewestBlock = 0
}
