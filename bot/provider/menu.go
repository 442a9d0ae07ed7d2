package provider

import (
	"teobot/bot/fsm"
	"teobot/bot/gateway"
	"teobot/core/telegram/format"
	"teobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

func mainMenuMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsNPerRow([]keyboard.InlineBtn{
		{Text: "🌤 Weather", Unique: "weather"},
		{Text: "📰 News", Unique: "news"},
		{Text: "💰 Finance", Unique: "finance"},
		{Text: "✅ Habits", Unique: "habits"},
		{Text: "⚙️ Settings", Unique: "settings"},
		{Text: "❓ Help", Unique: "help"},
	}, 2)
}

func renderWelcome() gateway.Content {
	return gateway.Content{
		Text:      format.Bold("Hi!") + "\nI am your personal assistant. Pick a section below.",
		ParseMode: tele.ModeMarkdown,
		Markup:    mainMenuMarkup(),
	}
}

func renderMenu() gateway.Content {
	return gateway.Content{
		Text:      format.Bold("Main menu"),
		ParseMode: tele.ModeMarkdown,
		Markup:    mainMenuMarkup(),
	}
}

func renderHelp() gateway.Content {
	text := format.Bold("Help") + "\n\n" +
		"I keep exactly one message per chat and update it in place.\n\n" +
		"/menu — main menu\n" +
		"/habits — habit tracker\n" +
		"/settings — preferences\n" +
		"/cancel — abort the current input"
	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "⬅️ Back", Unique: "back"}}),
	}
}

func renderProcessing() gateway.Content {
	return gateway.Content{
		Text:      "⏳ Working on it...",
		ParseMode: tele.ModeMarkdown,
	}
}

func renderError(data fsm.Data) gateway.Content {
	reason := data[fsm.DataError]
	if reason == "" {
		reason = "something went wrong"
	}
	return gateway.Content{
		Text:      format.Bold("Error") + "\n" + format.EscapeMarkdown(reason),
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "⬅️ Back to menu", Unique: "back"}}),
	}
}

var promptTexts = map[fsm.Subtype]string{
	fsm.SubtypeCity:             "Which city? Send the name as text.",
	fsm.SubtypeTime:             "When should I remind you? Send a time like 08:30.",
	fsm.SubtypeHabitName:        "What is the habit called? Send a short name.",
	fsm.SubtypeHabitDescription: "Add a description, or send a dash to skip.",
	fsm.SubtypeSheetURL:         "Send the link to your Google Sheets budget.",
}

func renderPrompt(sub fsm.Subtype, data fsm.Data) gateway.Content {
	text := promptTexts[sub]
	if msg := data[fsm.DataError]; msg != "" {
		text = "⚠️ " + format.EscapeMarkdown(msg) + "\n\n" + text
	}
	return gateway.Content{
		Text:      text,
		ParseMode: tele.ModeMarkdown,
		Markup:    keyboard.CancelRow(nil, "cancel"),
	}
}
