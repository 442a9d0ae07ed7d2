// Package helpers bridges telebot's per-update Context and the
// context.Context the session, guard and store layers expect.
package helpers

import (
	"context"

	"teobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// The derived context is cached on the update so every hop of one update
// shares the same rid and metadata.
const ctxCacheKey = "update_ctx"

// StoreContext caches ctx on the update for later hops.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxCacheKey, ctx)
}

// ContextFrom returns the cached context for this update, if any hop built
// one already.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxCacheKey).(context.Context)
	return ctx, ok
}

// BuildContext derives a context.Context for this update, carrying the rid
// and the update, user and chat IDs every downstream log line needs.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	userID, chatID := senderIDs(c)
	upd := c.Update()

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the update's context with the handler about to run.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

func senderIDs(c tele.Context) (userID, chatID int64) {
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	return userID, chatID
}
