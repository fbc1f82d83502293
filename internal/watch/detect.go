package watch

import (
	"github.com/JakeFAU/page-watcher/internal/hash/sha256"
)

// Classify compares the fingerprint of signal against the previous fingerprint
// and returns the run outcome together with the fingerprint to store.
//
// A nil previous fingerprint means no successful run has completed yet, so the
// current fingerprint becomes the baseline. An unchanged page keeps the
// previous fingerprint; a changed page replaces it.
func Classify(previous *string, signal string) (Outcome, string) {
	current := sha256.Fingerprint(signal)
	switch {
	case previous == nil:
		return OutcomeBaseline, current
	case *previous == current:
		return OutcomeUnchanged, *previous
	default:
		return OutcomeChanged, current
	}
}

// Notifies reports whether the outcome should trigger notification delivery.
func (o Outcome) Notifies() bool {
	return o == OutcomeChanged || o == OutcomeForcedTest
}
