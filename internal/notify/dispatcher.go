// Package notify delivers credential notifications off the request path.
// The lifecycle engine enqueues and returns immediately; a background
// worker handles delivery with retries, and failures end up in the audit
// log only — a credential is already durably stored by the time its
// notification is dispatched, so delivery problems never fail the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-verify-api/internal/infrastructure/smtp"
	"github.com/go-verify-api/internal/infrastructure/sns"
	"github.com/go-verify-api/internal/pkg/audit"
)

// Notifier is what the lifecycle engine sees: enqueue and forget.
type Notifier interface {
	SendCode(destination, code, displayName string)
	SendResetLink(destination, token, displayName string)
	SendResetConfirmation(destination, displayName string)
}

type kind int

const (
	kindCode kind = iota
	kindResetLink
	kindResetConfirmation
)

type message struct {
	kind        kind
	destination string
	payload     string // code or token, empty for confirmations
	displayName string
}

// Dispatcher is a bounded single-worker queue in front of the mail and SMS
// channels. When the queue is full the message is dropped (and audited)
// rather than blocking a request handler.
type Dispatcher struct {
	mailer        smtp.Mailer
	smsSender     sns.SMSSender // nil when SNS is unavailable
	auditLog      *audit.Logger
	resetLinkBase string

	ch   chan message
	done chan struct{}
	wg   sync.WaitGroup
}

func NewDispatcher(mailer smtp.Mailer, smsSender sns.SMSSender, auditLog *audit.Logger, resetLinkBase string, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	d := &Dispatcher{
		mailer:        mailer,
		smsSender:     smsSender,
		auditLog:      auditLog,
		resetLinkBase: resetLinkBase,
		ch:            make(chan message, queueSize),
		done:          make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) SendCode(destination, code, displayName string) {
	d.enqueue(message{kind: kindCode, destination: destination, payload: code, displayName: displayName})
}

func (d *Dispatcher) SendResetLink(destination, token, displayName string) {
	d.enqueue(message{kind: kindResetLink, destination: destination, payload: token, displayName: displayName})
}

func (d *Dispatcher) SendResetConfirmation(destination, displayName string) {
	d.enqueue(message{kind: kindResetConfirmation, destination: destination, displayName: displayName})
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	close(d.done)
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(m message) {
	select {
	case d.ch <- m:
	default:
		d.auditLog.Event(audit.ActionNotifyFailed, "", m.destination, "queue full")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case m := <-d.ch:
			d.deliver(m)
		case <-d.done:
			for {
				select {
				case m := <-d.ch:
					d.deliver(m)
				default:
					return
				}
			}
		}
	}
}

// deliver tries each message up to three times with a growing pause.
func (d *Dispatcher) deliver(m message) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		if err = d.send(m); err == nil {
			return
		}
	}
	slog.Warn("notification delivery failed", "destination", m.destination, "err", err)
	d.auditLog.Event(audit.ActionNotifyFailed, "", m.destination, err.Error())
}

func (d *Dispatcher) send(m message) error {
	switch m.kind {
	case kindCode:
		if isPhone(m.destination) {
			if d.smsSender == nil {
				return fmt.Errorf("no SMS channel configured")
			}
			return d.smsSender.SendSMS(context.Background(), m.destination, "Your verification code: "+m.payload)
		}
		body := fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.", m.displayName, m.payload)
		return d.mailer.SendEmail(m.destination, "Your verification code", body)
	case kindResetLink:
		body := fmt.Sprintf("Hi %s,\n\nReset your password here: %s?token=%s\n\nThe link expires in 1 hour. If you didn't request this, ignore this email.",
			m.displayName, d.resetLinkBase, m.payload)
		return d.mailer.SendEmail(m.destination, "Password reset", body)
	case kindResetConfirmation:
		body := fmt.Sprintf("Hi %s,\n\nYour password was just changed. If this wasn't you, contact support immediately.", m.displayName)
		return d.mailer.SendEmail(m.destination, "Password changed", body)
	}
	return fmt.Errorf("unknown message kind %d", m.kind)
}

// isPhone treats E.164-looking destinations as SMS targets.
func isPhone(destination string) bool {
	return strings.HasPrefix(destination, "+")
}
