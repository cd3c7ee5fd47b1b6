// Package tra implements the transactional rollback applier: given a
// transaction that is committing or aborting, it walks the transaction's
// persistent rollback log chain and issues the commit-side or abort-side
// effect of every logged operation against the affected dictionaries.
package tra

import (
	"txengine/pkg/ids"
	"txengine/pkg/txn"
)

// Commit applies every logged entry's commit-side function to txn, in
// reverse insertion order, then drains the chain. oplsn is 0 for a
// normal runtime commit, or the log record's LSN when replaying recovery.
func Commit(t *txn.Txn, oplsn ids.Lsn) error {
	return apply(t, oplsn, commitEntryFn)
}

// Abort applies every logged entry's abort-side function to txn, in
// reverse insertion order, then drains the chain.
func Abort(t *txn.Txn, oplsn ids.Lsn) error {
	return apply(t, oplsn, abortEntryFn)
}
