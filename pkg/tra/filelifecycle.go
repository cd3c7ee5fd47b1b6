package tra

import (
	"errors"
	"os"

	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// lookupCachefile resolves fileID against the cachetable, applying the
// same recovery tolerance as lookupTree.
func lookupCachefile(t *txn.Txn, fileID ids.FileId) (txn.CacheFile, error) {
	cf, err := t.CacheTable().OpenByFileID(fileID)
	if err == nil {
		return cf, nil
	}
	if errors.Is(err, txn.ErrNotFound) {
		if t.ForRecovery() {
			return nil, nil
		}
		return nil, ErrFileAbsent
	}
	return nil, err
}

func markUnlinkOnce(cf txn.CacheFile) {
	if !cf.IsUnlinkOnClose() {
		cf.MarkUnlinkOnClose()
	}
}

// CommitFCreate is a no-op: a committed file create needs no further
// action.
func CommitFCreate(t *txn.Txn, fileID ids.FileId, iname []byte, oplsn ids.Lsn) error {
	return nil
}

// AbortFCreate marks the newly created file for deferred unlink; the
// actual unlink runs once the last pin on it drops.
func AbortFCreate(t *txn.Txn, fileID ids.FileId, iname []byte, oplsn ids.Lsn) error {
	cf, err := lookupCachefile(t, fileID)
	if err != nil {
		return err
	}
	if cf == nil {
		return nil
	}
	markUnlinkOnce(cf)
	return nil
}

// CommitFDelete guarantees the commit record is durable before the file
// can disappear: fsync first, only then mark the cachefile unlink-on-close.
func CommitFDelete(t *txn.Txn, fileID ids.FileId, oplsn ids.Lsn) error {
	if err := t.WAL().FsyncUpTo(t.DoFsyncLsn()); err != nil {
		return err
	}

	cf, err := lookupCachefile(t, fileID)
	if err != nil {
		return err
	}
	if cf == nil {
		return nil
	}
	markUnlinkOnce(cf)
	return nil
}

// AbortFDelete is a no-op: the file was never logically deleted.
func AbortFDelete(t *txn.Txn, fileID ids.FileId, oplsn ids.Lsn) error {
	return nil
}

// CommitLoad fsyncs durability and marks the old file (the one the load
// replaced) for unlink, unless it was already marked.
func CommitLoad(t *txn.Txn, oldFileID ids.FileId, newIname []byte, oplsn ids.Lsn) error {
	if err := t.WAL().FsyncUpTo(t.DoFsyncLsn()); err != nil {
		return err
	}

	cf, err := lookupCachefile(t, oldFileID)
	if err != nil {
		return err
	}
	if cf == nil {
		return nil
	}
	markUnlinkOnce(cf)
	return nil
}

// AbortLoad deletes the new file the load introduced: if its cachefile is
// open, mark it for unlink; otherwise best-effort unlink the on-disk path,
// tolerating ENOENT.
func AbortLoad(t *txn.Txn, oldFileID ids.FileId, newIname []byte, oplsn ids.Lsn) error {
	cf, err := t.CacheTable().OpenByIname(string(newIname))
	if err == nil {
		markUnlinkOnce(cf)
		return nil
	}
	if !errors.Is(err, txn.ErrNotFound) {
		return err
	}

	err = t.CacheTable().UnlinkPath(string(newIname))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CommitHotIndex is a no-op: the index build already committed its own
// effects when it was logged.
func CommitHotIndex(t *txn.Txn, fileIDs []ids.FileId, oplsn ids.Lsn) error {
	return nil
}

// AbortHotIndex is a no-op: nothing in the logged record needs undoing
// beyond the cmd entries the hot index build itself logged.
func AbortHotIndex(t *txn.Txn, fileIDs []ids.FileId, oplsn ids.Lsn) error {
	return nil
}

// CommitDictionaryRedirect is a no-op: the redirect already took effect.
func CommitDictionaryRedirect(t *txn.Txn, oldFileID, newFileID ids.FileId, oplsn ids.Lsn) error {
	return nil
}

// AbortDictionaryRedirect reverses a dictionary redirect outside
// recovery; during recovery replay reconstructs the mapping on its own,
// so this is a no-op.
func AbortDictionaryRedirect(t *txn.Txn, oldFileID, newFileID ids.FileId, oplsn ids.Lsn) error {
	if t.ForRecovery() {
		return nil
	}

	oldTree, err := lookupTree(t, oldFileID)
	if err != nil {
		return err
	}
	newTree, err := lookupTree(t, newFileID)
	if err != nil {
		return err
	}
	if oldTree == nil || newTree == nil {
		return nil
	}

	return oldTree.RedirectAbort(newTree)
}
