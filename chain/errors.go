package chain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel conditions for registry write failures. Callers match with
// errors.Is; everything else is a generic chain error.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserRejected      = errors.New("transaction rejected by signer")
	ErrConfirmTimeout    = errors.New("confirmation timed out")
)

// ChainError wraps a failed registry operation with its classification.
type ChainError struct {
	Op   string
	Kind error // one of the sentinels above, or nil for generic
	Err  error
}

func (e *ChainError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }

func (e *ChainError) Is(target error) bool { return e.Kind != nil && target == e.Kind }

// classify maps node/signer errors onto the sentinel taxonomy. Nodes report
// these as strings, so matching is on the canonical substrings geth emits.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &ChainError{Op: op, Kind: ErrInsufficientFunds, Err: err}
	case strings.Contains(msg, "user denied"), strings.Contains(msg, "user rejected"):
		return &ChainError{Op: op, Kind: ErrUserRejected, Err: err}
	case errors.Is(err, ErrConfirmTimeout):
		return &ChainError{Op: op, Kind: ErrConfirmTimeout, Err: err}
	default:
		return &ChainError{Op: op, Err: err}
	}
}
