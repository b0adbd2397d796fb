package domain

import "errors"

var (
	// ErrStaleStatus is returned by conditional status updates when the row
	// is no longer in the status the caller read.
	ErrStaleStatus = errors.New("row is no longer in the expected status")

	// ErrNoTransaction is returned when a ledger or wallet mutation is
	// attempted without an active transaction handle.
	ErrNoTransaction = errors.New("mutation requires an active transaction")
)
