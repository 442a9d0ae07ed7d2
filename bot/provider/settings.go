package provider

import (
	"context"
	"strings"
	"time"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

func (r *Registry) renderSettings(ctx context.Context, userID int64) (gateway.Content, error) {
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return gateway.Content{}, err
	}
	orUnset := func(v string) string {
		if v == "" {
			return "not set"
		}
		return format.EscapeMarkdown(v)
	}
	text := format.Bold("Settings") +
		"\nCity: " + orUnset(st.City) +
		"\nDaily reminder: " + orUnset(st.NotifyTime)

	rows := [][]keyboard.InlineBtn{
		{{Text: "📍 City", Unique: "ask_city"}, {Text: "⏰ Reminder time", Unique: "ask_time"}},
	}
	if st.NotifyTime != "" {
		rows = append(rows, []keyboard.InlineBtn{{Text: "🔕 Reminder off", Unique: "notify_off"}})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "⬅️ Back", Unique: "back"}})
	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtonsRows(rows...),
	}, nil
}

func (r *Registry) validateTime(ctx context.Context, userID int64, text string) (fsm.State, fsm.Data, error) {
	raw := strings.TrimSpace(text)
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return "", nil, validationf("use 24h HH:MM form, for example 08:30")
	}
	hhmm := parsed.Format("15:04")
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	st.NotifyTime = hhmm
	if err := r.settings.Save(ctx, st); err != nil {
		return "", nil, err
	}
	return fsm.StateMenu, fsm.Data{fsm.DataTime: hhmm}, nil
}

func (r *Registry) clearNotifyTime(ctx context.Context, userID int64) error {
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return err
	}
	st.NotifyTime = ""
	return r.settings.Save(ctx, st)
}
