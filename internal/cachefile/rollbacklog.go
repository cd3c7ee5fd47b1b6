package cachefile

import (
	"sync"

	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// RollbackLog is the rollback log storage collaborator: a table of
// per-txn log nodes keyed by block number, pinned on load and removed
// once drained. No on-disk encoding is defined here — a node's entries
// are held as already-structured Go values, matching how the engine logs
// them in the first place.
type RollbackLog struct {
	mu    sync.Mutex
	nodes map[ids.BlockNo]*txn.RollbackLogNode
}

func NewRollbackLog() *RollbackLog {
	return &RollbackLog{nodes: make(map[ids.BlockNo]*txn.RollbackLogNode)}
}

// Put inserts or replaces a node. Used by callers building up a chain;
// the walker only ever reads through Pin.
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

// PrefetchPrevious is a no-op here: there is no disk to read ahead of.
func (l *RollbackLog) PrefetchPrevious(node *txn.RollbackLogNode) {}

func (l *RollbackLog) UnpinAndRemove(node *txn.RollbackLogNode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.nodes, node.BlockNo)
	return nil
}

// Len reports the number of nodes still stored, for tests asserting a
// chain fully drained.
func (l *RollbackLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}
