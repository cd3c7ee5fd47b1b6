package tra

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel error kinds. Each is wrapped with call-site context via
// pkgerrors.Wrap before crossing out of the walker; errors.Is still
// matches the sentinel underneath.
var (
	// ErrFileAbsent means a cachefile/file lookup found nothing. Tolerated
	// when the owning txn is replaying recovery; fatal otherwise.
	ErrFileAbsent = errors.New("tra: file absent")

	// ErrWalkerMismatch means a rollback log node's owner xid or sequence
	// did not match the walker's expected state. Always fatal.
	ErrWalkerMismatch = errors.New("tra: walker owner/sequence mismatch")

	// ErrAllocationFailure means a RollbackLogStore could not produce a
	// block of the chain being walked: its start block or one reached by
	// following a Previous pointer from a node already in the chain.
	// Always fatal.
	ErrAllocationFailure = errors.New("tra: allocation failure")
)

// wrapFatal attaches call-site context to a fatal error on its way out of
// the walker. Tolerated errors (ErrFileAbsent during recovery, the
// recovery guard itself) never reach this.
func wrapFatal(err error, context string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, context)
}
