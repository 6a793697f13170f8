package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidState      = errors.New("market in wrong resolution phase")
	ErrDivisionByZero    = errors.New("winning side has zero stake")
	ErrOutcomeConflict   = errors.New("ledger and bookkeeping outcomes disagree")
	ErrClaimRejected     = errors.New("claim transaction rejected")
	ErrSourceUnavailable = errors.New("truth source unavailable")
	ErrInvalidTransition = errors.New("invalid claim state transition")
	ErrAmountOverflow    = errors.New("amount exceeds fixed-point range")
	ErrLockHeld          = errors.New("lock already held")
)
