package provider

import (
	"context"
	"strings"
	"unicode"

	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const maxCityLen = 64

func (r *Registry) renderWeather(ctx context.Context, userID int64) (gateway.Content, error) {
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return gateway.Content{}, err
	}
	var text string
	buttons := []keyboard.InlineBtn{
		{Text: "📍 Change city", Unique: "ask_city"},
		{Text: "⬅️ Back", Unique: "back"},
	}
	if st.City == "" {
		text = format.Bold("Weather") + "\nNo city set yet."
		buttons[0].Text = "📍 Set city"
	} else {
		text = format.Bold("Weather") + "\nCity: " + format.EscapeMarkdown(st.City) +
			"\nForecast will appear here once the weather source is connected."
	}
	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtonsNPerRow(buttons, 2),
	}, nil
}

func (r *Registry) validateCity(ctx context.Context, userID int64, text string) (fsm.State, fsm.Data, error) {
	city := strings.TrimSpace(text)
	if city == "" {
		return "", nil, validationf("city name cannot be empty")
	}
	if len(city) > maxCityLen {
		return "", nil, validationf("city name is too long, %d characters max", maxCityLen)
	}
	for _, ru := range city {
		if !unicode.IsLetter(ru) && !unicode.IsSpace(ru) && ru != '-' && ru != '.' && ru != '\'' {
			return "", nil, validationf("%q does not look like a city name", city)
		}
	}
	st, err := r.settings.Get(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	st.City = city
	if err := r.settings.Save(ctx, st); err != nil {
		return "", nil, err
	}
	return fsm.StateMenu, fsm.Data{fsm.DataCity: city}, nil
}
