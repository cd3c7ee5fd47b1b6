// Command txreplay runs a scripted commit/abort scenario against the
// rollback applier and the snapshot isolation registry, using real
// on-disk WAL and pager-backed storage. It exists to exercise the wiring
// end to end outside of the test suite, not as a production server.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"txengine/internal/engine"
	"txengine/internal/ftmessenger"
	"txengine/internal/policy"
	"txengine/internal/txlog"
	"txengine/pkg/ids"
	"txengine/pkg/pager"
	"txengine/pkg/tra"
	"txengine/pkg/tree"
	"txengine/pkg/txn"
	"txengine/pkg/wal"
)

func main() {
	dir := flag.String("dir", "", "directory to create the demo database and WAL in (defaults to a temp dir)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verbose {
		txlog.SetLevel(logrus.DebugLevel)
	}

	if err := run(*dir); err != nil {
		fmt.Fprintln(os.Stderr, "txreplay:", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "txreplay-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	p, err := pager.Open(filepath.Join(dir, "data.db"), pager.Options{})
	if err != nil {
		return err
	}
	defer p.Close()

	w, err := wal.Open(filepath.Join(dir, "data.wal"), wal.Options{})
	if err != nil {
		return err
	}
	defer w.Close()

	bt, err := tree.NewFactory(p, tree.TreeTypeClassic).Create()
	if err != nil {
		return err
	}

	const fileID ids.FileId = 1
	dict := ftmessenger.New(fileID, bt)

	logger := engine.Open(w)
	logger.Cache().Open(fileID, filepath.Join(dir, "dict-1"))

	fmt.Println("policy: commit_cmd_insert =", policy.Default.CommitCmdInsert,
		"commit_cmd_delete =", policy.Default.CommitCmdDelete,
		"commit_cmd_update =", policy.Default.CommitCmdUpdate)

	if err := abortedInsertScenario(logger, dict, fileID); err != nil {
		return fmt.Errorf("aborted insert scenario: %w", err)
	}
	if err := committedDeleteScenario(logger, dict, fileID); err != nil {
		return fmt.Errorf("committed delete scenario: %w", err)
	}

	fmt.Println("ok")
	return nil
}

// abortedInsertScenario inserts a key, logs the insert, then aborts: the
// rollback applier must undo the insert by emitting ABORT_ANY.
func abortedInsertScenario(logger *engine.Logger, dict *ftmessenger.Tree, fileID ids.FileId) error {
	txid := logger.TransactionManager().Begin().ID()
	t := txn.New(ids.Xid(txid), false, logger)
	t.AddOpenFT(fileID, dict)

	key, value := []byte("user:1"), []byte("alice")
	if err := dict.Put(key, value); err != nil {
		return err
	}
	logBlock(logger, t, 0, txn.XidPair{Outer: t.ID()}, tra.CmdInsert{FileID: fileID, Key: key})

	if err := tra.Abort(t, 0); err != nil {
		return err
	}

	if _, err := dict.Get(key); err == nil {
		return fmt.Errorf("abort did not undo the insert of %q", key)
	}
	fmt.Printf("abort undid insert of %q\n", key)
	return nil
}

// committedDeleteScenario logs a delete and commits it: under the
// default policy, a committed delete emits COMMIT_ANY.
func committedDeleteScenario(logger *engine.Logger, dict *ftmessenger.Tree, fileID ids.FileId) error {
	key := []byte("user:2")
	if err := dict.Put(key, []byte("bob")); err != nil {
		return err
	}
	if err := dict.Delete(key); err != nil {
		return err
	}

	txid := logger.TransactionManager().Begin().ID()
	t := txn.New(ids.Xid(txid), false, logger)
	t.AddOpenFT(fileID, dict)

	logBlock(logger, t, 0, txn.XidPair{Outer: t.ID()}, tra.CmdDelete{FileID: fileID, Key: key})

	if err := tra.Commit(t, 0); err != nil {
		return err
	}
	fmt.Printf("commit applied delete of %q (commit_cmd_delete policy is on)\n", key)
	return nil
}

// logBlock is a minimal stand-in for whatever forward execution path
// would normally append rollback log entries as operations run; it logs
// a single block holding entries, newest first, and points t at it.
func logBlock(logger *engine.Logger, t *txn.Txn, block ids.BlockNo, owner txn.XidPair, entries ...txn.RollEntry) {
	var head *txn.RollEntryNode
	for _, e := range entries {
		head = &txn.RollEntryNode{Entry: e, Prev: head}
	}
	logger.Rollback().Put(&txn.RollbackLogNode{
		BlockNo:     block,
		Sequence:    0,
		OwnerXid:    owner,
		Previous:    ids.NoBlock,
		NewestEntry: head,
	})
	t.NewestBlock = block
}
