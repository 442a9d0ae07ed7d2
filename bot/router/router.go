// Package router turns inbound bot updates into state transitions and exactly
// one presentation of the live message per event.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"teobot/bot/fsm"
	"teobot/bot/guard"
	"teobot/bot/provider"
	"teobot/bot/session"
	"teobot/core/logger"
	"teobot/core/telegram"
	"teobot/core/telegram/helpers"
)

const component = "router"

// Presenter is the guard surface the router needs.
type Presenter interface {
	Acquire(userID int64) func()
	PresentHeld(ctx context.Context, userID, chatID int64, req guard.Request) error
	SweepHeld(ctx context.Context, userID, chatID int64, messageID int)
}

// ContentProvider renders screens, validates input and performs action callbacks.
type ContentProvider interface {
	provider.Provider
	Act(ctx context.Context, userID int64, key, payload string) (fsm.Event, bool, error)
}

// Router owns the inbound routes of the bot.
type Router struct {
	store    session.Store
	guard    Presenter
	provider ContentProvider
	// timeout bounds provider work per event.
	timeout time.Duration
}

// New builds a router.
func New(store session.Store, g Presenter, p ContentProvider, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Router{store: store, guard: g, provider: p, timeout: timeout}
}

// Commands is the command menu published to the transport.
func (r *Router) Commands() []tele.Command {
	return []tele.Command{
		{Text: "start", Description: "Open the assistant"},
		{Text: "menu", Description: "Main menu"},
		{Text: "habits", Description: "Habit tracker"},
		{Text: "settings", Description: "Preferences"},
		{Text: "help", Description: "How this bot works"},
		{Text: "cancel", Description: "Abort the current input"},
	}
}

// Routes binds every endpoint the bot serves.
func (r *Router) Routes() []telegram.Route {
	routes := []telegram.Route{
		{Endpoint: tele.OnText, Handler: r.onText},
		{Endpoint: tele.OnCallback, Handler: r.onCallback},
	}
	for _, cmd := range r.Commands() {
		name := cmd.Text
		routes = append(routes, telegram.Route{
			Endpoint: "/" + name,
			Handler:  r.commandHandler(name),
		})
	}
	return routes
}

func (r *Router) commandHandler(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.WithHandler(c, "cmd:"+name)
		return r.handleEvent(ctx, c, fsm.Event{Type: fsm.EventCommand, Value: name}, true)
	}
}

func (r *Router) onText(c tele.Context) error {
	ctx := helpers.WithHandler(c, "text")
	return r.handleEvent(ctx, c, fsm.Event{Type: fsm.EventText, Value: c.Text()}, true)
}

func (r *Router) onCallback(c tele.Context) error {
	key, payload := parseCallback(c.Callback())
	ctx := helpers.WithHandler(c, "cb:"+key)
	err := r.handleEvent(ctx, c, fsm.Event{Type: fsm.EventCallback, Value: key, Payload: payload}, false)
	if rerr := c.Respond(&tele.CallbackResponse{}); rerr != nil {
		logger.Debug(ctx, component, "callback.respond", slog.Any("err", rerr))
	}
	return err
}

// parseCallback splits telebot's "\f<unique>|<payload>" callback encoding.
func parseCallback(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	data := strings.TrimPrefix(cb.Data, "\f")
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(data, "|")
	return key, payload
}

func (r *Router) handleEvent(ctx context.Context, c tele.Context, ev fsm.Event, userAuthored bool) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	inboundID := 0
	if userAuthored && c.Message() != nil {
		inboundID = c.Message().ID
	}
	return r.process(ctx, sender.ID, chat.ID, inboundID, ev)
}

// process is the single funnel for inbound events. It holds the user's
// serialization unit across observation, transition and presentation, and
// performs exactly one presentation. inboundID, when nonzero, is a
// user-authored message to sweep.
func (r *Router) process(ctx context.Context, userID, chatID int64, inboundID int, ev fsm.Event) error {
	release := r.guard.Acquire(userID)
	defer release()

	// The inbound message is noise in the transcript either way; schedule its
	// removal before any early return below.
	if inboundID != 0 {
		r.guard.SweepHeld(ctx, userID, chatID, inboundID)
	}

	sess, err := r.store.Get(ctx, userID, chatID)
	if err != nil {
		logger.Error(ctx, component, "session.load", slog.Any("err", err))
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Action callbacks perform their side effect first and then navigate.
	if ev.Type == fsm.EventCallback {
		if sub, ok, aerr := r.provider.Act(pctx, userID, ev.Value, ev.Payload); ok {
			if aerr != nil {
				logger.Warn(ctx, component, "action",
					slog.String("cb_key", ev.Value), slog.Any("err", aerr))
			}
			ev = sub
		}
	}

	res := r.transition(pctx, sess, ev)
	content, err := r.provider.RenderState(pctx, userID, res.State, res.Data)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && res.State == fsm.StateProcessing {
			if tres, terr := fsm.Apply(res.State, res.Data, fsm.Event{Type: fsm.EventTimeout}, nil); terr == nil {
				res = tres
			}
		} else {
			logger.Error(ctx, component, "render", slog.String("state", string(res.State)), slog.Any("err", err))
			data := res.Data.Clone()
			data[fsm.DataError] = "could not build this screen"
			res = fsm.Result{State: fsm.StateError, Data: data}
		}
		content, err = r.provider.RenderState(ctx, userID, res.State, res.Data)
		if err != nil {
			logger.Error(ctx, component, "render.fallback", slog.Any("err", err))
			return err
		}
	}

	if err := r.guard.PresentHeld(ctx, userID, chatID, guard.Request{
		State:   res.State,
		Data:    res.Data,
		Content: content,
	}); err != nil {
		logger.Warn(ctx, component, "present",
			slog.String("state", string(res.State)), slog.Any("err", err))
		// The transport already saw our answer or refused it; surfacing the
		// error to telebot would only produce a second reply.
		return nil
	}
	return nil
}

// transition runs the state machine. Rejected events re-render the current
// state; provider infrastructure failures degrade to a user-facing note.
func (r *Router) transition(ctx context.Context, sess *session.Session, ev fsm.Event) fsm.Result {
	var infraErr error
	validate := func(sub fsm.Subtype, text string) (fsm.State, fsm.Data, error) {
		next, data, err := r.provider.ValidateInput(ctx, sess.UserID, sub, text, sess.Data)
		if err != nil {
			var ve *provider.ValidationError
			if errors.As(err, &ve) {
				return "", nil, ve
			}
			infraErr = err
			return "", nil, &provider.ValidationError{Msg: "something went wrong, try again"}
		}
		return next, data, nil
	}

	res, err := fsm.Apply(sess.State, sess.Data, ev, validate)
	if err != nil {
		logger.Debug(ctx, component, "event.rejected",
			slog.String("status", "rejected"),
			slog.String("state", string(sess.State)),
			slog.String("payload", string(ev.Type)))
		return fsm.Result{State: sess.State, Data: sess.Data.Clone()}
	}
	if infraErr != nil {
		logger.Error(ctx, component, "validate", slog.Any("err", infraErr))
	}
	return res
}
