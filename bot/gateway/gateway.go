// Package gateway wraps the chat transport behind a narrow send/edit/delete
// contract with a classified error taxonomy, so the transcript core can react
// to gateway failures without knowing transport details.
package gateway

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// Content is the renderable payload of a single bot message.
type Content struct {
	Text      string
	ParseMode string
	Markup    *tele.ReplyMarkup
	// PhotoURL optionally attaches a photo; the text becomes its caption.
	PhotoURL string
}

// Gateway exposes the primitive chat operations consumed by the transcript
// core. Implementations return *Error values classified by Kind.
type Gateway interface {
	// Send posts a new message and returns its transport message id.
	Send(ctx context.Context, chatID int64, content Content) (int, error)
	// Edit replaces the content of an existing message in place.
	Edit(ctx context.Context, chatID int64, messageID int, content Content) error
	// Delete removes a message. Deleting user-authored messages may be
	// refused by the transport; callers treat that as best-effort.
	Delete(ctx context.Context, chatID int64, messageID int) error
}
