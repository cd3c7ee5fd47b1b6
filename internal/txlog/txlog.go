// Package txlog is the structured-logging sink shared by the rollback
// applier and the snapshot isolation registry. Neither package branches
// on logging; every call here is diagnostic only.
package txlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel adjusts verbosity at runtime; cmd/txreplay wires this to a flag.
func SetLevel(level logrus.Level) { std.SetLevel(level) }

// SetOutput redirects log output, mainly for tests that want to capture it.
func SetOutput(w interface{ Write([]byte) (int, error) }) { std.SetOutput(w) }

// FastPathReuse logs a view-open fast-reuse decision at debug level.
func FastPathReuse(xid uint64) {
	std.WithField("xid", xid).Debug("view_open: fast-reuse path taken")
}

// RecoveryGuardSkip logs that a dispatch function no-op'd under the
// recovery idempotence guard.
func RecoveryGuardSkip(fileID uint32, oplsn, checkpointLsn uint64) {
	std.WithFields(logrus.Fields{
		"file_id":        fileID,
		"oplsn":          oplsn,
		"checkpoint_lsn": checkpointLsn,
	}).Debug("dispatch: recovery guard skip, already applied")
}

// WalkerMismatch logs a fatal chain-consistency violation before the
// caller converts it to a returned error.
func WalkerMismatch(block int64, wantSeq, gotSeq uint64) {
	std.WithFields(logrus.Fields{
		"block":    block,
		"want_seq": wantSeq,
		"got_seq":  gotSeq,
	}).Error("walker: owner/sequence mismatch")
}

// FileAbsentTolerated logs that a missing cachefile lookup was tolerated
// because the owning txn is replaying recovery.
func FileAbsentTolerated(fileID uint32) {
	std.WithField("file_id", fileID).Warn("dispatch: file absent, tolerated under recovery")
}

// FatalInvariant logs an invariant violation that the caller is about to
// surface as a fatal error.
func FatalInvariant(msg string, args ...interface{}) {
	std.Errorf(msg, args...)
}
