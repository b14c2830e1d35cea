package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConflict          = errors.New("a round is already active")
	ErrInactiveRound     = errors.New("no round is open for bidding")
	ErrStaleBid          = errors.New("bid does not beat the current leader")
	ErrUnauthorizedParty = errors.New("party is not approved to bid")
	ErrInsufficientFunds = errors.New("bid exceeds remaining budget")
	ErrInvalidAmount     = errors.New("bid must be a positive whole amount")
	ErrInvalidTransition = errors.New("round cannot be finalized in its current state")
	ErrCommitFailed      = errors.New("ledger commit failed")
	ErrNotFound          = errors.New("not found")
	ErrItemUnavailable   = errors.New("item is not available for auction")
	ErrNotLeader         = errors.New("instance does not hold auction leadership")
)

// CommitError is returned to the operator when finalizing could not be persisted.
// The round is back in the open phase and the same command can be retried.
type CommitError struct {
	Op   string
	Item string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s %s: %v (round reopened, retry the command)", e.Op, e.Item, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommitFailed, e.Err}
}

// IsExpectedRejection reports errors that are part of normal bidding traffic
// and are dropped without telling anyone.
func IsExpectedRejection(err error) bool {
	return errors.Is(err, ErrInactiveRound) || errors.Is(err, ErrStaleBid)
}

// IsBidRejection reports errors for which the bidding party has been told why
// its bid was refused.
func IsBidRejection(err error) bool {
	return errors.Is(err, ErrUnauthorizedParty) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount)
}

// RejectionReason maps a bid error to the short code sent to the bidder.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorizedParty):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrStaleBid):
		return "stale_bid"
	case errors.Is(err, ErrInactiveRound):
		return "round_not_open"
	default:
		return "error"
	}
}
