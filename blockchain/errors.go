package blockchain

import "github.com/pkg/errors"

// Sentinel errors for the node's error taxonomy. Each is local to the
// activity that produced it; none of these cross a goroutine boundary
// as anything other than a log line or a discarded message.
var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrInvalidBlock       = errors.New("invalid block")
	ErrMissingPredecessor = errors.New("missing predecessor")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInsufficientFunds  = errors.New("insufficient funds")
)

// fatalInvariantViolation panics with a FatalInvariantViolation
// marker. It fires when the move-head LCA walk steps past genesis, or
// when applying or reverting a transaction finds the arena missing an
// entry verification should have guaranteed; each is a programmer
// error, not a recoverable condition.
func fatalInvariantViolation(msg string) {
	panic("FatalInvariantViolation: " + msg)
}
