package provider

import (
	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// newsCategories mirrors the digest sections the assistant offers. Order is
// the keyboard order.
var newsCategories = []struct {
	key   string
	label string
}{
	{"latest", "🕒 Latest"},
	{"popular", "🔥 Top stories"},
	{"sports", "⚽ Sports"},
	{"economy", "💼 Economy"},
	{"technology", "🔬 Technology"},
}

func newsCategoryLabel(key string) string {
	for _, c := range newsCategories {
		if c.key == key {
			return c.label
		}
	}
	return ""
}

func renderNews(data fsm.Data) gateway.Content {
	text := format.Bold("News")
	if label := newsCategoryLabel(data[fsm.DataSelection]); label != "" {
		text += "\nCategory: " + label +
			"\nHeadlines will appear here once the news source is connected."
	} else {
		text += "\nPick a category."
	}

	buttons := make([]keyboard.InlineBtn, 0, len(newsCategories))
	for _, c := range newsCategories {
		buttons = append(buttons, keyboard.InlineBtn{Text: c.label, Unique: "news", Data: c.key})
	}
	markup := keyboard.InlineButtonsNPerRow(buttons, 2)
	markup.InlineKeyboard = append(markup.InlineKeyboard,
		keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "⬅️ Back", Unique: "back"}}).InlineKeyboard...)

	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    markup,
	}
}
