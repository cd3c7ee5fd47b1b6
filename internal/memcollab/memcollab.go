// Package memcollab provides in-memory reference implementations of
// every out-of-scope collaborator the rollback applier and the snapshot
// isolation registry consume. They exist for tests; the production
// path and the demo binary back the same interfaces with
// internal/walshim, internal/cachefile, and internal/ftmessenger.
package memcollab

import (
	"sync"

	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// Messenger is an in-memory fractal-tree stand-in. It keeps the record
// of every message it received, so tests can assert on exactly what was
// emitted, plus a tiny key/value map so ABORT_ANY's undo is observable.
type Messenger struct {
	mu sync.Mutex

	fileID        ids.FileId
	checkpointLsn ids.Lsn
	rootXid       ids.Xid
	descriptor    []byte

	data     map[string][]byte
	Messages []txn.Message
}

func NewMessenger(fileID ids.FileId) *Messenger {
	return &Messenger{fileID: fileID, data: make(map[string][]byte)}
}

func (m *Messenger) FileID() ids.FileId { return m.fileID }

func (m *Messenger) CheckpointLSN() ids.Lsn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpointLsn
}

// SetCheckpointLSN lets tests simulate "this much is already durable".
func (m *Messenger) SetCheckpointLSN(lsn ids.Lsn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpointLsn = lsn
}

func (m *Messenger) ResetRootXidThatCreated(xid ids.Xid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rootXid = xid
}

func (m *Messenger) RootXidThatCreated() ids.Xid {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rootXid
}

func (m *Messenger) UpdateDescriptor(descriptor []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptor = append([]byte(nil), descriptor...)
}

func (m *Messenger) Descriptor() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.descriptor
}

func (m *Messenger) PutMessageAtRoot(msg txn.Message, gc txn.GCInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, msg)

	switch msg.Kind {
	case txn.CommitAny:
		// the value is already in place from the logged operation itself
	case txn.AbortAny:
		delete(m.data, string(msg.Key))
	case txn.CommitBroadcastAll, txn.CommitBroadcastTxn, txn.AbortBroadcastTxn:
		// broadcast interpretation belongs to the real tree; recorded only
	}
	return nil
}

func (m *Messenger) RedirectAbort(newTree txn.Messenger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, txn.Message{Kind: txn.AbortAny})
	return nil
}

// Put seeds the dictionary, simulating the effect of the operation that
// was logged before this Messenger ever saw a rollback message.
func (m *Messenger) Put(key, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
}

func (m *Messenger) Get(key []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	return v, ok
}

// TxnManager is a fixed-estimate stand-in for the transaction manager.
type TxnManager struct {
	estimate ids.Xid
}

func NewTxnManager(estimate ids.Xid) *TxnManager { return &TxnManager{estimate: estimate} }

func (m *TxnManager) OldestReferencedXidEstimate() ids.Xid { return m.estimate }

// WAL is an in-memory durability fence: FsyncUpTo just advances a
// watermark, with no actual I/O.
type WAL struct {
	mu      sync.Mutex
	flushed ids.Lsn
}

func (w *WAL) FsyncUpTo(lsn ids.Lsn) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if lsn > w.flushed {
		w.flushed = lsn
	}
	return nil
}

func (w *WAL) FlushedUpTo() ids.Lsn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushed
}

// File is the in-memory CacheFile.
type File struct {
	mu            sync.Mutex
	id            ids.FileId
	path          string
	unlinkOnClose bool
}

func (f *File) FileID() ids.FileId { return f.id }

func (f *File) MarkUnlinkOnClose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlinkOnClose = true
}

func (f *File) IsUnlinkOnClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unlinkOnClose
}

// CacheTable is the in-memory cachetable.
type CacheTable struct {
	mu      sync.Mutex
	byID    map[ids.FileId]*File
	byIname map[string]*File
	removed map[string]bool
}

func NewCacheTable() *CacheTable {
	return &CacheTable{
		byID:    make(map[ids.FileId]*File),
		byIname: make(map[string]*File),
		removed: make(map[string]bool),
	}
}

func (t *CacheTable) Open(id ids.FileId, path string) *File {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := &File{id: id, path: path}
	t.byID[id] = f
	if path != "" {
		t.byIname[path] = f
	}
	return f
}

func (t *CacheTable) OpenByFileID(id ids.FileId) (txn.CacheFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.byID[id]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return f, nil
}

func (t *CacheTable) OpenByIname(iname string) (txn.CacheFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.byIname[iname]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return f, nil
}

func (t *CacheTable) UnlinkPath(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removed[path] = true
	return nil
}

func (t *CacheTable) WasUnlinked(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removed[path]
}

// RollbackLog is the in-memory rollback log store.
type RollbackLog struct {
	mu    sync.Mutex
	nodes map[ids.BlockNo]*txn.RollbackLogNode
}

func NewRollbackLog() *RollbackLog {
	return &RollbackLog{nodes: make(map[ids.BlockNo]*txn.RollbackLogNode)}
}

func (l *RollbackLog) Put(node *txn.RollbackLogNode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[node.BlockNo] = node
}

func (l *RollbackLog) Pin(block ids.BlockNo) (*txn.RollbackLogNode, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.nodes[block]
	if !ok {
		return nil, txn.ErrNotFound
	}
	return n, nil
}

func (l *RollbackLog) PrefetchPrevious(node *txn.RollbackLogNode) {}

func (l *RollbackLog) UnpinAndRemove(node *txn.RollbackLogNode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nodes, node.BlockNo)
	return nil
}

func (l *RollbackLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}

// Logger ties the four collaborators together behind the txn.Logger
// interface.
type Logger struct {
	wal      *WAL
	cache    *CacheTable
	txnMgr   *TxnManager
	rollback *RollbackLog
}

func NewLogger(txnMgr *TxnManager) *Logger {
	return &Logger{
		wal:      &WAL{},
		cache:    NewCacheTable(),
		txnMgr:   txnMgr,
		rollback: NewRollbackLog(),
	}
}

func (l *Logger) WAL() txn.WAL                          { return l.wal }
func (l *Logger) CacheTable() txn.CacheTable            { return l.cache }
func (l *Logger) TxnManager() txn.TxnManager            { return l.txnMgr }
func (l *Logger) RollbackLogStore() txn.RollbackLogStore { return l.rollback }

// Cache exposes the concrete cachetable for test setup.
func (l *Logger) Cache() *CacheTable { return l.cache }

// Rollback exposes the concrete rollback log store for test setup.
func (l *Logger) Rollback() *RollbackLog { return l.rollback }

// WALImpl exposes the concrete WAL for test assertions.
func (l *Logger) WALImpl() *WAL { return l.wal }
