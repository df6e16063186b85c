package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrInvalidUserID is returned when a repository call is made without a user ID
	ErrInvalidUserID = errors.New("user id is required")

	// ErrInvalidAccount is returned when a linked account is missing its external identity
	ErrInvalidAccount = errors.New("linked account is missing external id")

	// ErrInvalidStateHash is returned when a link state is recorded without a hash
	ErrInvalidStateHash = errors.New("state hash is required")
)
