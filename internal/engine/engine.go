// Package engine wires the production collaborators together behind the
// txn.Logger interface: a real WAL-backed durability fence, a pin-counted
// cachetable, the transaction manager's garbage-collection estimate, and
// an in-memory rollback log store.
package engine

import (
	"txengine/internal/cachefile"
	"txengine/internal/walshim"
	"txengine/pkg/mvcc"
	"txengine/pkg/txn"
	"txengine/pkg/wal"
)

// Logger is the production txn.Logger: every transaction started through
// the same Logger shares one WAL, one cachetable, and one transaction
// manager.
type Logger struct {
	wal      *walshim.Shim
	cache    *cachefile.Table
	txnMgr   *mvcc.TransactionManager
	rollback *cachefile.RollbackLog
}

// Open wires a Logger against an already-open WAL. The caller owns w's
// lifetime (close it after every Logger built from it is done).
func Open(w *wal.WAL) *Logger {
	return &Logger{
		wal:      walshim.New(w, 0),
		cache:    cachefile.NewTable(),
		txnMgr:   mvcc.NewTransactionManager(),
		rollback: cachefile.NewRollbackLog(),
	}
}

func (l *Logger) WAL() txn.WAL                           { return l.wal }
func (l *Logger) CacheTable() txn.CacheTable             { return l.cache }
func (l *Logger) TxnManager() txn.TxnManager             { return l.txnMgr }
func (l *Logger) RollbackLogStore() txn.RollbackLogStore { return l.rollback }

// Cache exposes the concrete cachetable so callers can register newly
// created files before logging operations against them.
func (l *Logger) Cache() *cachefile.Table { return l.cache }

// Rollback exposes the concrete rollback log store so callers can build
// up a transaction's chain before calling tra.Commit or tra.Abort.
func (l *Logger) Rollback() *cachefile.RollbackLog { return l.rollback }

// TransactionManager exposes the concrete manager for Begin/Commit/
// Rollback bookkeeping independent of the rollback applier.
func (l *Logger) TransactionManager() *mvcc.TransactionManager { return l.txnMgr }
