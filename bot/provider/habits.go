package provider

import (
	"context"
	"strings"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/bot/habits"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const maxHabitNameLen = 64

func (r *Registry) renderHabits(ctx context.Context, userID int64) (gateway.Content, error) {
	list, err := r.habits.List(ctx, userID)
	if err != nil {
		return gateway.Content{}, err
	}
	done, err := r.habits.DoneToday(ctx, userID, r.now())
	if err != nil {
		return gateway.Content{}, err
	}

	var b strings.Builder
	b.WriteString(format.Bold("Habits"))
	if len(list) == 0 {
		b.WriteString("\nNothing tracked yet. Add your first habit.")
	}
	var rows [][]keyboard.InlineBtn
	for _, h := range list {
		mark := "⬜"
		if done[h.ID] {
			mark = "✅"
		}
		b.WriteString("\n" + mark + " " + format.EscapeMarkdown(h.Name))
		if h.Description != "" {
			b.WriteString(" — " + format.EscapeMarkdown(h.Description))
		}
		rows = append(rows, []keyboard.InlineBtn{
			{Text: mark + " " + h.Name, Unique: "habit_done", Data: h.ID},
			{Text: "🗑", Unique: "habit_del", Data: h.ID},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{
		{Text: "➕ New habit", Unique: "ask_habit_name"},
		{Text: "⬅️ Back", Unique: "back"},
	})
	return gateway.Content{
		Text:      b.String(),
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtonsRows(rows...),
	}, nil
}

func validateHabitName(text string) (fsm.State, fsm.Data, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return "", nil, validationf("habit name cannot be empty")
	}
	if len(name) > maxHabitNameLen {
		return "", nil, validationf("habit name is too long, %d characters max", maxHabitNameLen)
	}
	return fsm.Awaiting(fsm.SubtypeHabitDescription), fsm.Data{fsm.DataHabitName: name}, nil
}

func (r *Registry) validateHabitDescription(ctx context.Context, userID int64, text string, data fsm.Data) (fsm.State, fsm.Data, error) {
	name := data[fsm.DataHabitName]
	if name == "" {
		// The name step was skipped, likely a stale session. Restart the flow.
		return fsm.Awaiting(fsm.SubtypeHabitName), fsm.Data{}, nil
	}
	desc := strings.TrimSpace(text)
	if desc == "-" {
		desc = ""
	}
	h := &habits.Habit{UserID: userID, Name: name, Description: desc}
	if err := r.habits.Create(ctx, h); err != nil {
		return "", nil, err
	}
	return fsm.StateMenu, fsm.Data{fsm.DataFeature: "habits", fsm.DataHabitName: ""}, nil
}
