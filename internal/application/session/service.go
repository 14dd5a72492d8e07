// Package session handles single-session revocation. Sessions are created
// by the token issuer; this service only ends them, either one at a time
// here or all at once inside a password-reset consumption.
package session

import (
	"context"

	"github.com/go-verify-api/internal/pkg/audit"
)

type Service interface {
	// Logout revokes the caller's current session.
	Logout(ctx context.Context, userID, sessionID, originIP string) error
}

type sessionStore interface {
	Revoke(ctx context.Context, sessionID string) error
}

type service struct {
	sessions sessionStore
	auditLog *audit.Logger
}

type ServiceDeps struct {
	SessionRepo sessionStore
	AuditLog    *audit.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{sessions: deps.SessionRepo, auditLog: deps.AuditLog}
}

func (s *service) Logout(ctx context.Context, userID, sessionID, originIP string) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.auditLog.Event(audit.ActionSessionRevoked, userID, originIP, "logout")
	return nil
}
