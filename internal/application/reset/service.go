// Package reset orchestrates password-reset tokens: enumeration-safe
// issuance keyed by client IP, single-use consumption, and atomic
// password-change plus session revocation.
package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-verify-api/internal/domain"
	"github.com/go-verify-api/internal/pkg/audit"
	"github.com/go-verify-api/internal/pkg/password"
	"github.com/go-verify-api/internal/pkg/secret"
)

type Service interface {
	// Request issues a reset token for the account behind email, if one
	// exists. The caller must return the same generic response whether or
	// not it does; only a rate-limit failure is surfaced.
	Request(ctx context.Context, email, clientIP string) error
	// Consume spends the token: sets the new password, marks the token
	// used, and revokes every active session — atomically.
	Consume(ctx context.Context, token, newPassword, originIP string) error
}

type resetStore interface {
	Put(ctx context.Context, cred *domain.ResetCredential) error
	GetByToken(ctx context.Context, token string) (*domain.ResetCredential, error)
}

type accountStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type sessionStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]string, error)
}

type consumeTxn interface {
	Consume(ctx context.Context, token, userID, passwordHash string, sessionIDs []string, usedAt time.Time) error
}

type requestLimiter interface {
	Allow(key string) (ok bool, retryAfter time.Duration)
}

type notifier interface {
	SendResetLink(destination, token, displayName string)
	SendResetConfirmation(destination, displayName string)
}

type service struct {
	resets   resetStore
	accounts accountStore
	sessions sessionStore
	txn      consumeTxn
	limiter  requestLimiter
	notifier notifier
	auditLog *audit.Logger
}

type ServiceDeps struct {
	ResetRepo      resetStore
	AccountRepo    accountStore
	SessionRepo    sessionStore
	ConsumeTxn     consumeTxn
	RequestLimiter requestLimiter
	Notifier       notifier
	AuditLog       *audit.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		resets:   deps.ResetRepo,
		accounts: deps.AccountRepo,
		sessions: deps.SessionRepo,
		txn:      deps.ConsumeTxn,
		limiter:  deps.RequestLimiter,
		notifier: deps.Notifier,
		auditLog: deps.AuditLog,
	}
}

func (s *service) Request(ctx context.Context, email, clientIP string) error {
	// Keyed by IP, not account: the email may not belong to one, and the
	// limiter must not reveal that.
	if ok, retryAfter := s.limiter.Allow(clientIP); !ok {
		s.auditLog.Event(audit.ActionResetRequested, "", clientIP, "rate limited")
		return &domain.RateLimitedError{RetryAfterSeconds: int(retryAfter.Seconds()) + 1}
	}

	// Generate before the lookup so the known/unknown paths do the same
	// work; the response must not hint whether the account exists.
	token, err := secret.OpaqueToken()
	if err != nil {
		return err
	}

	u, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		s.auditLog.Event(audit.ActionResetRequested, "", clientIP, "unknown email")
		return nil
	}

	now := time.Now().UTC()
	cred := &domain.ResetCredential{
		Token:     token,
		UserID:    u.UserID,
		OriginIP:  clientIP,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.ResetLifetime).Unix(),
		TTL:       now.Add(domain.StaleAfter).Unix(),
	}
	if err := s.resets.Put(ctx, cred); err != nil {
		return err
	}

	s.notifier.SendResetLink(u.Email, token, u.DisplayName)
	s.auditLog.Event(audit.ActionResetRequested, u.UserID, clientIP, "ok")
	return nil
}

func (s *service) Consume(ctx context.Context, token, newPassword, originIP string) error {
	// Lexical checks first — no store round-trip for garbage input.
	if !secret.ValidTokenShape(token) {
		return fmt.Errorf("token is not a valid reset token: %w", domain.ErrMalformedToken)
	}
	if !password.StrongEnough(newPassword) {
		return fmt.Errorf("password must be at least %d characters with upper, lower, digit and symbol: %w",
			password.MinLength, domain.ErrWeakPassword)
	}

	cred, err := s.resets.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.auditLog.Event(audit.ActionResetRejected, "", originIP, "unknown token")
			return fmt.Errorf("reset token rejected: %w", domain.ErrTokenInvalid)
		}
		// A store failure is not an unknown token; surface it as-is.
		return fmt.Errorf("reset token lookup: %w", err)
	}
	if cred.Consumed() {
		s.auditLog.Event(audit.ActionResetRejected, cred.UserID, originIP, "token reuse")
		return fmt.Errorf("reset token rejected: %w", domain.ErrTokenUsed)
	}
	if cred.Expired(time.Now()) {
		s.auditLog.Event(audit.ActionResetRejected, cred.UserID, originIP, "token expired")
		return fmt.Errorf("reset token rejected: %w", domain.ErrTokenExpired)
	}

	hash, err := secret.Hash(newPassword)
	if err != nil {
		return err
	}
	sessionIDs, err := s.sessions.ListActiveByUser(ctx, cred.UserID)
	if err != nil {
		return err
	}

	// Password change, token consumption, and session revocation commit
	// together or not at all. A concurrent consumption of the same token
	// cancels here as ErrTokenUsed with nothing applied.
	if err := s.txn.Consume(ctx, token, cred.UserID, hash, sessionIDs, time.Now().UTC()); err != nil {
		if errors.Is(err, domain.ErrTokenUsed) {
			s.auditLog.Event(audit.ActionResetRejected, cred.UserID, originIP, "token reuse")
		}
		return err
	}

	if u, err := s.accounts.Get(ctx, cred.UserID); err == nil {
		s.notifier.SendResetConfirmation(u.Email, u.DisplayName)
	} else {
		slog.Warn("could not load account for reset confirmation", "user_id", cred.UserID, "err", err)
	}

	s.auditLog.Event(audit.ActionResetConsumed, cred.UserID, originIP, "ok")
	return nil
}
