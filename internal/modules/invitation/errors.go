package invitation

import "errors"

var (
	// ErrUnauthorized covers unknown, voided and expired invitation tokens.
	ErrUnauthorized = errors.New("invitation token not valid")

	// ErrInvalidCode means no unexpired (token, code) pair matched.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrAlreadyRegistered guards against double-submit of registration.
	ErrAlreadyRegistered = errors.New("user already registered for this email")

	// ErrAlreadyAccepted: the invitation reached its terminal state.
	ErrAlreadyAccepted = errors.New("invitation already accepted")

	// ErrNotVerified: registration attempted before code verification.
	ErrNotVerified = errors.New("invitation code not verified")
)
