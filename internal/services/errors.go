package services

import "errors"

// Security failures of the EDS flow. At the HTTP boundary all three collapse
// into one 401 so that account existence/state is never revealed.
var (
	ErrVerificationFailed = errors.New("eds signature verification failed")
	ErrIdentityMissing    = errors.New("no IIN in signed document")
	ErrAccountInactive    = errors.New("account is inactive")
)

var (
	ErrBadRequest         = errors.New("bad request")
	ErrPersistence        = errors.New("persistence error")
	ErrTokenInvalid       = errors.New("invalid or expired token")
	ErrTokenIssue         = errors.New("token issuance failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotPending         = errors.New("only users in pending status can complete registration")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidStatus      = errors.New("invalid user status")
	ErrInvalidRole        = errors.New("invalid user role")
	ErrSelfModeration     = errors.New("cannot change own status or role")
)

// IsAuthFailure reports whether err is one of the flattened EDS login failures.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrIdentityMissing) ||
		errors.Is(err, ErrAccountInactive)
}
