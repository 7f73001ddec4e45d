package assembler

import "errors"

var (
	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrTurnsRequired is returned when a turn source is not provided.
	ErrTurnsRequired = errors.New("turn source required")

	// ErrInvalidBudget is returned when a budget value is not positive.
	ErrInvalidBudget = errors.New("invalid budget")

	// ErrIdentityTooLarge is returned when the identity layer alone exceeds the ceiling.
	ErrIdentityTooLarge = errors.New("identity exceeds context ceiling")
)
