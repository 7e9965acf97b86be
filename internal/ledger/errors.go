package ledger

import "errors"

var (
	// ErrFutureDate is returned when recording or freezing a day after today.
	ErrFutureDate = errors.New("date is in the future")

	// ErrInvalidAmount is returned for a cash-out amount that is not positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrEmptyName is returned for a cash-out without a name.
	ErrEmptyName = errors.New("reward name is empty")

	// ErrInsufficientBalance is returned when the spendable balance cannot
	// cover a cash-out or a freeze.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoFreezes is returned when using a freeze with none available.
	ErrNoFreezes = errors.New("no streak freezes available")

	// ErrMaxFreezes is returned when buying a freeze at the limit.
	ErrMaxFreezes = errors.New("already holding the maximum number of freezes")

	// ErrAlreadyFrozen is returned when freezing a day twice.
	ErrAlreadyFrozen = errors.New("date is already frozen")
)
