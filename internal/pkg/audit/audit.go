// Package audit records every sensitive credential operation for intrusion
// investigation. Entries are structured slog records keyed by subject and
// origin IP, written to a dedicated "audit" logger group.
package audit

import "log/slog"

// Actions recorded by the engine.
const (
	ActionOTPIssued      = "otp_issued"
	ActionOTPVerified    = "otp_verified"
	ActionOTPRejected    = "otp_rejected"
	ActionOTPLockout     = "otp_lockout"
	ActionResetRequested = "reset_requested"
	ActionResetConsumed  = "reset_consumed"
	ActionResetRejected  = "reset_rejected"
	ActionNotifyFailed   = "notify_failed"
	ActionSessionRevoked = "session_revoked"
)

// Logger writes audit events. The zero value is unusable; use New.
type Logger struct {
	log *slog.Logger
}

// New wraps base with the audit group. Pass slog.Default() in production.
func New(base *slog.Logger) *Logger {
	return &Logger{log: base.WithGroup("audit")}
}

// Event records one sensitive operation. outcome is "ok" or the failure
// kind; subjectID may be empty when the subject is unknown (e.g. a reset
// request for a non-existent email).
func (l *Logger) Event(action, subjectID, originIP, outcome string) {
	l.log.Info(action, "subject_id", subjectID, "origin_ip", originIP, "outcome", outcome)
}
