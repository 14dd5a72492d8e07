// Package otp orchestrates issuance and verification of email-verification
// codes: one live credential per subject, hashed at rest, five attempts,
// ten-minute expiry.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-verify-api/internal/domain"
	"github.com/go-verify-api/internal/pkg/audit"
	"github.com/go-verify-api/internal/pkg/id"
	"github.com/go-verify-api/internal/pkg/secret"
)

// ChannelSMS requests code delivery to the account's phone number instead
// of its email address.
const ChannelSMS = "sms"

// IssueResult is the caller-facing outcome of an issuance. The code itself
// is never returned.
type IssueResult struct {
	// AlreadyVerified is set when the account needs no verification;
	// nothing was issued or sent.
	AlreadyVerified bool
	ExpiresIn       time.Duration
}

type Service interface {
	// Issue generates a fresh code for the subject, superseding any prior
	// unused one, and dispatches it over the requested channel.
	Issue(ctx context.Context, subjectID, channel, originIP string) (*IssueResult, error)
	// Verify checks a presented code against the subject's current
	// credential and, on success, activates the account.
	Verify(ctx context.Context, subjectID, code, originIP string) error
}

type credentialStore interface {
	InsertAndSupersede(ctx context.Context, cred *domain.VerificationCredential) error
	FindLatestUnused(ctx context.Context, subjectID string) (*domain.VerificationCredential, error)
	IncrementAttempts(ctx context.Context, credentialID string) (int, error)
	MarkUsed(ctx context.Context, credentialID string) error
}

type accountStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateStatus(ctx context.Context, userID, status string) error
}

type issueLimiter interface {
	Allow(key string) (ok bool, retryAfter time.Duration)
}

type notifier interface {
	SendCode(destination, code, displayName string)
}

type service struct {
	credentials credentialStore
	accounts    accountStore
	limiter     issueLimiter
	notifier    notifier
	auditLog    *audit.Logger
}

type ServiceDeps struct {
	CredentialRepo credentialStore
	AccountRepo    accountStore
	IssueLimiter   issueLimiter
	Notifier       notifier
	AuditLog       *audit.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		credentials: deps.CredentialRepo,
		accounts:    deps.AccountRepo,
		limiter:     deps.IssueLimiter,
		notifier:    deps.Notifier,
		auditLog:    deps.AuditLog,
	}
}

func (s *service) Issue(ctx context.Context, subjectID, channel, originIP string) (*IssueResult, error) {
	if ok, retryAfter := s.limiter.Allow(subjectID); !ok {
		s.auditLog.Event(audit.ActionOTPIssued, subjectID, originIP, "rate limited")
		return nil, &domain.RateLimitedError{RetryAfterSeconds: int(retryAfter.Seconds()) + 1}
	}

	u, err := s.accounts.Get(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("subject lookup: %w", err)
	}
	if u.Verified() {
		// Idempotent no-op: nothing issued, nothing sent.
		return &IssueResult{AlreadyVerified: true}, nil
	}

	code, err := secret.NumericCode(domain.OTPLength)
	if err != nil {
		return nil, err
	}
	hash, err := secret.Hash(code)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cred := &domain.VerificationCredential{
		CredentialID: id.New(),
		SubjectID:    subjectID,
		SecretHash:   hash,
		Attempts:     0,
		IsUsed:       false,
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.OTPLifetime).Unix(),
		TTL:          now.Add(domain.StaleAfter).Unix(),
	}
	if err := s.credentials.InsertAndSupersede(ctx, cred); err != nil {
		return nil, err
	}

	destination := u.Email
	if channel == ChannelSMS && u.Phone != nil {
		destination = *u.Phone
	}
	// Fire-and-forget: the credential is already persisted, so a delivery
	// failure only means the subject asks for a resend.
	s.notifier.SendCode(destination, code, u.DisplayName)

	s.auditLog.Event(audit.ActionOTPIssued, subjectID, originIP, "ok")
	return &IssueResult{ExpiresIn: domain.OTPLifetime}, nil
}

func (s *service) Verify(ctx context.Context, subjectID, code, originIP string) error {
	if !wellFormedCode(code) {
		return fmt.Errorf("code must be %d digits: %w", domain.OTPLength, domain.ErrMalformedCode)
	}

	cred, err := s.credentials.FindLatestUnused(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.auditLog.Event(audit.ActionOTPRejected, subjectID, originIP, "no active credential")
			return fmt.Errorf("no verification code outstanding: %w", domain.ErrNoActiveCredential)
		}
		// A store failure is not an absent credential; surface it as-is so
		// the caller does not tell the user to request a new code.
		return fmt.Errorf("credential lookup: %w", err)
	}
	if cred.Expired(time.Now()) {
		s.auditLog.Event(audit.ActionOTPRejected, subjectID, originIP, "expired")
		return fmt.Errorf("verification code expired: %w", domain.ErrCredentialExpired)
	}
	if cred.Locked() {
		s.auditLog.Event(audit.ActionOTPRejected, subjectID, originIP, "locked out")
		return fmt.Errorf("maximum attempts exceeded: %w", domain.ErrLockedOut)
	}

	if !secret.Verify(code, cred.SecretHash) {
		attempts, err := s.credentials.IncrementAttempts(ctx, cred.CredentialID)
		if err != nil {
			return err
		}
		remaining := domain.MaxOTPAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		if remaining == 0 {
			s.auditLog.Event(audit.ActionOTPLockout, subjectID, originIP, "threshold reached")
		} else {
			s.auditLog.Event(audit.ActionOTPRejected, subjectID, originIP, "wrong code")
		}
		return &domain.InvalidCodeError{RemainingAttempts: remaining}
	}

	// Conditional flip: under concurrent verifications only one caller wins
	// the mark; everyone else sees the credential as already gone.
	if err := s.credentials.MarkUsed(ctx, cred.CredentialID); err != nil {
		s.auditLog.Event(audit.ActionOTPRejected, subjectID, originIP, "consumed concurrently")
		return fmt.Errorf("no verification code outstanding: %w", domain.ErrNoActiveCredential)
	}
	if err := s.accounts.UpdateStatus(ctx, subjectID, domain.StatusActive); err != nil {
		return err
	}

	s.auditLog.Event(audit.ActionOTPVerified, subjectID, originIP, "ok")
	return nil
}

func wellFormedCode(code string) bool {
	if len(code) != domain.OTPLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
