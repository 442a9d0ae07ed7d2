package provider

import (
	"context"
	"net/url"
	"strings"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

func (r *Registry) renderFinance(ctx context.Context, userID int64) (gateway.Content, error) {
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return gateway.Content{}, err
	}
	var text string
	buttons := []keyboard.InlineBtn{
		{Text: "🔗 Change sheet", Unique: "ask_sheet_url"},
		{Text: "⬅️ Back", Unique: "back"},
	}
	if st.SheetURL == "" {
		text = format.Bold("Finance") + "\nNo budget sheet linked yet."
		buttons[0].Text = "🔗 Link sheet"
	} else {
		text = format.Bold("Finance") + "\nBudget sheet: " + format.Code(st.SheetURL)
	}
	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtonsNPerRow(buttons, 2),
	}, nil
}

func (r *Registry) validateSheetURL(ctx context.Context, userID int64, text string) (fsm.State, fsm.Data, error) {
	raw := strings.TrimSpace(text)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return "", nil, validationf("send a full https:// link")
	}
	if u.Host != "docs.google.com" || !strings.HasPrefix(u.Path, "/spreadsheets/") {
		return "", nil, validationf("the link must point to a Google Sheets document")
	}
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	st.SheetURL = raw
	if err := r.settings.Save(ctx, st); err != nil {
		return "", nil, err
	}
	return fsm.StateMenu, fsm.Data{fsm.DataSheetURL: raw}, nil
}
