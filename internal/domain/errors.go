package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Credential lifecycle failure kinds. Each is a stable machine-readable
// sentinel; handlers pair it with a human message and never expose more.
var (
	// ErrRateLimited means the issuance window for the key is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoActiveCredential means no unused OTP exists for the subject.
	ErrNoActiveCredential = errors.New("no active credential")
	// ErrCredentialExpired means the OTP outlived its 10-minute window.
	ErrCredentialExpired = errors.New("credential expired")
	// ErrLockedOut means the failed-attempt threshold was reached. The
	// credential is dead; only a fresh issuance recovers.
	ErrLockedOut = errors.New("locked out")
	// ErrInvalidCode means the presented OTP did not match.
	ErrInvalidCode = errors.New("invalid code")
	// ErrMalformedCode means the presented OTP is not a 6-digit number.
	ErrMalformedCode = errors.New("malformed code")

	// ErrTokenInvalid covers both "never existed" and "deleted after
	// expiry" — the two are deliberately indistinguishable.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenUsed means the reset token was already consumed.
	ErrTokenUsed = errors.New("token already used")
	// ErrTokenExpired means the reset token outlived its 1-hour window.
	ErrTokenExpired = errors.New("token expired")
	// ErrMalformedToken means the token is not a canonical UUID.
	ErrMalformedToken = errors.New("malformed token")
	// ErrWeakPassword means the new password fails the strength policy.
	ErrWeakPassword = errors.New("weak password")
)

// InvalidCodeError carries the attempts the caller has left before lockout.
// errors.Is(err, ErrInvalidCode) holds for every InvalidCodeError.
type InvalidCodeError struct {
	RemainingAttempts int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code, %d attempts remaining", e.RemainingAttempts)
}

func (e *InvalidCodeError) Unwrap() error { return ErrInvalidCode }

// RateLimitedError carries the retry-after estimate derived from the
// window's reset time. errors.Is(err, ErrRateLimited) holds.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.RetryAfterSeconds)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
