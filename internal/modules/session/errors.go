package session

import "errors"

var (
	// ErrInvalidCredentials is deliberately undifferentiated: it never
	// reveals whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired means no live refresh record exists for the user.
	ErrSessionExpired = errors.New("session expired")

	// ErrStaleRefreshToken means the presented refresh token does not match
	// the live record: treated as theft/replay, the session is force-closed.
	ErrStaleRefreshToken = errors.New("stale or invalid refresh token")
)
