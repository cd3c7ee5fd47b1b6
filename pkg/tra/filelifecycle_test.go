package tra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// orderRecorder is a tiny ordering probe: both the WAL and the cachefile
// below append to the same slice, so a test can assert fsync happened
// strictly before the unlink mark regardless of which collaborator a
// production WAL/cachetable pairing would actually be.
type orderRecorder struct {
	events []string
}

type recordingWAL struct {
	rec *orderRecorder
}

func (w *recordingWAL) FsyncUpTo(lsn ids.Lsn) error {
	w.rec.events = append(w.rec.events, "fsync")
	return nil
}

type recordingFile struct {
	rec           *orderRecorder
	id            ids.FileId
	unlinkOnClose bool
}

func (f *recordingFile) FileID() ids.FileId { return f.id }
func (f *recordingFile) MarkUnlinkOnClose() {
	f.rec.events = append(f.rec.events, "unlink")
	f.unlinkOnClose = true
}
func (f *recordingFile) IsUnlinkOnClose() bool { return f.unlinkOnClose }

type recordingCacheTable struct {
	files map[ids.FileId]*recordingFile
}

func (c *recordingCacheTable) OpenByFileID(fileID ids.FileId) (txn.CacheFile, error) {
	f, ok := c.files[fileID]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return f, nil
}
func (c *recordingCacheTable) OpenByIname(iname string) (txn.CacheFile, error) {
	return nil, txn.ErrNotFound
}
func (c *recordingCacheTable) UnlinkPath(path string) error { return nil }

type orderedLogger struct {
	wal   *recordingWAL
	cache *recordingCacheTable
}

func (l *orderedLogger) WAL() txn.WAL                           { return l.wal }
func (l *orderedLogger) CacheTable() txn.CacheTable             { return l.cache }
func (l *orderedLogger) TxnManager() txn.TxnManager             { return nil }
func (l *orderedLogger) RollbackLogStore() txn.RollbackLogStore { return nil }

func TestCommitFDeleteFsyncsBeforeMarkingUnlinkOnClose(t *testing.T) {
	rec := &orderRecorder{}
	cf := &recordingFile{rec: rec, id: 9}
	logger := &orderedLogger{
		wal:   &recordingWAL{rec: rec},
		cache: &recordingCacheTable{files: map[ids.FileId]*recordingFile{9: cf}},
	}

	tr := txn.New(1, false, logger)
	tr.SetDoFsyncLsn(42)

	err := CommitFDelete(tr, 9, 0)
	require.NoError(t, err)

	require.Equal(t, []string{"fsync", "unlink"}, rec.events,
		"fsync must happen before the cachefile is marked unlink-on-close")
	assert.True(t, cf.IsUnlinkOnClose())
}
