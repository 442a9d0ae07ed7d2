package gateway

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// TelebotGateway implements Gateway on top of a telebot instance.
type TelebotGateway struct {
	bot *tele.Bot
}

// NewTelebotGateway wraps a telebot bot into the Gateway contract.
func NewTelebotGateway(bot *tele.Bot) *TelebotGateway {
	return &TelebotGateway{bot: bot}
}

// Send posts a new message and returns its transport message id.
func (g *TelebotGateway) Send(ctx context.Context, chatID int64, content Content) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, Classify(err)
	}
	msg, err := g.bot.Send(tele.ChatID(chatID), payload(content), sendOptions(content))
	if err != nil {
		return 0, Classify(err)
	}
	return msg.ID, nil
}

// Edit replaces the content of an existing message in place.
func (g *TelebotGateway) Edit(ctx context.Context, chatID int64, messageID int, content Content) error {
	if err := ctx.Err(); err != nil {
		return Classify(err)
	}
	ref := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	_, err := g.bot.Edit(ref, payload(content), sendOptions(content))
	if err != nil {
		return Classify(err)
	}
	return nil
}

// Delete removes a message; failures are returned classified for the caller to judge.
func (g *TelebotGateway) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return Classify(err)
	}
	ref := &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if err := g.bot.Delete(ref); err != nil {
		return Classify(err)
	}
	return nil
}

func payload(content Content) interface{} {
	if content.PhotoURL != "" {
		return &tele.Photo{File: tele.FromURL(content.PhotoURL), Caption: content.Text}
	}
	return content.Text
}

func sendOptions(content Content) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:   content.ParseMode,
		ReplyMarkup: content.Markup,
	}
}
