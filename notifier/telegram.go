package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"medibot/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrDelivery wraps every failed Telegram call
var ErrDelivery = errors.New("delivery failed")

// Telegram sends HTML messages to one chat
type Telegram struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
	chat config.ChatID
}

// NewTelegram builds the bot client without calling getMe, so a Telegram
// outage never blocks the availability checks themselves.
func NewTelegram(cfg *config.Config) (*Telegram, error) {
	chat, err := config.ParseChatID(cfg.Telegram.ChatID)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	hc := &http.Client{Timeout: cfg.Timeout()}
	bot := &tgbotapi.BotAPI{
		Token:  cfg.Telegram.BotToken,
		Client: hc,
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)

	return &Telegram{bot: bot, http: hc, chat: chat}, nil
}

// Send delivers text with HTML markup and link previews disabled
func (t *Telegram) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chat.ID, text)
	msg.ChannelUsername = t.chat.Channel
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	// per-call copy so the request carries ctx
	bot := *t.bot
	bot.Client = ctxClient{ctx: ctx, client: t.http}

	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return nil
}

type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}
