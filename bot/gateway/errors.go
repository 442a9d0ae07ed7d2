package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"teobot/core/telegram/netutil"
)

// Kind classifies a gateway failure for the reconciliation logic.
type Kind string

const (
	// KindNotModified means an edit carried byte-identical content; treated as success.
	KindNotModified Kind = "not_modified"
	// KindNotFound means the target message no longer exists or aged out of editability.
	KindNotFound Kind = "not_found"
	// KindForbidden means the operation is not permitted on the target message.
	KindForbidden Kind = "forbidden"
	// KindRateLimited means the transport asked to slow down; retryable after backoff.
	KindRateLimited Kind = "rate_limited"
	// KindTransient covers network-level failures worth a bounded retry.
	KindTransient Kind = "transient"
	// KindUnreachable means the chat itself is gone (user blocked the bot,
	// account deactivated, chat deleted); no retry will help.
	KindUnreachable Kind = "unreachable"
	// KindPermanent covers all other non-retryable API failures.
	KindPermanent Kind = "permanent"
)

// Error is a classified gateway failure.
type Error struct {
	Kind Kind
	// RetryAfter is the transport-suggested wait for rate-limited failures.
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gateway: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("gateway: %s", e.Kind)
}

// Unwrap exposes the transport-level cause.
func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the classified kind of err, or KindPermanent for
// unclassified errors. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindPermanent
}

// Retryable reports whether a failure of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// Classify converts a raw transport error into a *Error.
// Telegram does not expose structured error codes beyond HTTP status, so
// description matching follows the documented API error strings.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &Error{
			Kind:       KindRateLimited,
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Cause:      err,
		}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Description)
		switch {
		case strings.Contains(desc, "message is not modified"):
			return &Error{Kind: KindNotModified, Cause: err}
		case strings.Contains(desc, "message to edit not found"),
			strings.Contains(desc, "message to delete not found"),
			strings.Contains(desc, "message can't be edited"),
			strings.Contains(desc, "message_id_invalid"):
			return &Error{Kind: KindNotFound, Cause: err}
		case strings.Contains(desc, "bot was blocked"),
			strings.Contains(desc, "user is deactivated"),
			strings.Contains(desc, "chat not found"),
			strings.Contains(desc, "bot was kicked"):
			return &Error{Kind: KindUnreachable, Cause: err}
		case apiErr.Code == 403:
			return &Error{Kind: KindForbidden, Cause: err}
		case apiErr.Code == 429:
			return &Error{Kind: KindRateLimited, Cause: err}
		case apiErr.Code >= 500:
			return &Error{Kind: KindTransient, Cause: err}
		default:
			return &Error{Kind: KindPermanent, Cause: err}
		}
	}

	if netutil.ShouldRetry(err) {
		return &Error{Kind: KindTransient, Cause: err}
	}
	return &Error{Kind: KindPermanent, Cause: err}
}
