package domain

import "errors"

var (
	// ErrInvalidPassword is returned when the given password does not match
	// the stored hash. Never retried automatically.
	ErrInvalidPassword = errors.New("password is not valid")
	// ErrTxAlreadyFinal is thrown when trying to change the status of a
	// transaction that already reached a terminal state.
	ErrTxAlreadyFinal = errors.New("transaction status is already final")
	// ErrTxAlreadyPersisted signals the header row for this hash exists.
	// This is what upgrades at-least-once queue delivery to effectively-once
	// storage.
	ErrTxAlreadyPersisted = errors.New("transaction is already persisted")
	// ErrPersistenceTimeout means the bounded-timeout write was rolled back.
	ErrPersistenceTimeout = errors.New("persistence transaction timed out")
	// ErrFeeCountMismatch is thrown when the number of inserted fee rows
	// does not equal the number of parsed fee entries.
	ErrFeeCountMismatch = errors.New("fee row count does not match parsed fee entries")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
)
