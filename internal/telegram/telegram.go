// Package telegram adapts the core to the Telegram Bot API.
//
// It decodes inbound updates into events exactly once (the payload kind is
// decided here, never re-sniffed downstream) and renders declarative
// intents into Bot API calls. The underlying client sits behind a small
// interface so tests can substitute a recorder.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/BTreeMap/StreakBot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Opts holds configuration options for the Telegram adapter.
type Opts struct {
	// Token is the bot token issued by BotFather. Required.
	Token string
	// Proxy is an optional HTTP proxy URL for reaching the Bot API.
	Proxy string
	// Endpoint overrides the Bot API endpoint (defaults to the public API).
	Endpoint string
}

// Option defines a functional option for configuring the adapter.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithProxy sets an HTTP proxy URL.
func WithProxy(proxy string) Option {
	return func(o *Opts) { o.Proxy = proxy }
}

// WithEndpoint overrides the Bot API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// API is the subset of the Bot API client the adapter uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BotFactory creates API instances; tests install a fake.
type BotFactory func(token, endpoint string, client *http.Client) (API, error)

// defaultBotFactory creates a real Bot API client.
var defaultBotFactory BotFactory = func(token, endpoint string, client *http.Client) (API, error) {
	return tgbotapi.NewBotAPIWithClient(token, endpoint, client)
}

// Bot renders intents into Telegram calls. It implements dispatch.Sender.
type Bot struct {
	api API
}

// NewBot creates a Telegram adapter from options.
func NewBot(opts ...Option) (*Bot, error) {
	return NewBotWithFactory(defaultBotFactory, opts...)
}

// NewBotWithFactory creates a Telegram adapter with a custom client factory.
func NewBotWithFactory(factory BotFactory, opts ...Option) (*Bot, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	client := http.DefaultClient
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
	}

	api, err := factory(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	slog.Debug("Telegram bot client created")
	return &Bot{api: api}, nil
}

// DecodeUpdate converts a raw update into an inbound event. The second
// return value is false when the update carries nothing routable.
func DecodeUpdate(u tgbotapi.Update) (models.Event, bool) {
	ev := models.Event{ID: strconv.Itoa(u.UpdateID)}

	if cq := u.CallbackQuery; cq != nil && cq.From != nil {
		ev.ActorID = strconv.FormatInt(cq.From.ID, 10)
		ev.FirstName = cq.From.FirstName
		ev.ChatID = cq.From.ID
		cb := &models.Callback{ID: cq.ID, Data: cq.Data}
		if cq.Message != nil {
			cb.MessageID = cq.Message.MessageID
			if cq.Message.Chat != nil {
				ev.ChatID = cq.Message.Chat.ID
			}
		}
		ev.Callback = cb
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return models.Event{}, false
	}
	ev.ActorID = strconv.FormatInt(m.From.ID, 10)
	ev.FirstName = m.From.FirstName
	ev.ChatID = m.Chat.ID
	ev.Payload = decodePayload(m)
	return ev, true
}

// decodePayload picks exactly one payload kind from the message.
func decodePayload(m *tgbotapi.Message) models.Payload {
	switch {
	case m.Voice != nil:
		return models.Payload{Kind: models.PayloadAudio, FileID: m.Voice.FileID, Caption: m.Caption}
	case len(m.Photo) > 0:
		// Telegram sends every thumbnail size; the last entry is the largest.
		return models.Payload{Kind: models.PayloadImage, FileID: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Video != nil:
		return models.Payload{Kind: models.PayloadVideo, FileID: m.Video.FileID, Caption: m.Caption}
	case m.Text != "":
		return models.Payload{Kind: models.PayloadText, Text: m.Text}
	default:
		return models.Payload{Kind: models.PayloadNone}
	}
}

// Send renders one intent into the corresponding Bot API call. The
// context is checked cooperatively before issuing the call; the Bot API
// client itself has no context support.
func (b *Bot) Send(ctx context.Context, chatID int64, intent models.Intent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("telegram send aborted: %w", err)
	}

	switch intent.Kind {
	case models.IntentText:
		msg := tgbotapi.NewMessage(chatID, intent.Text)
		if intent.Markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		if len(intent.Keyboard) > 0 {
			msg.ReplyMarkup = replyKeyboard(intent.Keyboard)
		} else if len(intent.Inline) > 0 {
			msg.ReplyMarkup = inlineKeyboard(intent.Inline)
		}
		_, err := b.api.Send(msg)
		return wrapSendErr("message", err)

	case models.IntentMedia:
		return b.sendMedia(chatID, intent)

	case models.IntentEditText:
		if len(intent.Inline) > 0 {
			edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, intent.MessageID, intent.Text, inlineKeyboard(intent.Inline))
			if intent.Markdown {
				edit.ParseMode = tgbotapi.ModeMarkdown
			}
			_, err := b.api.Send(edit)
			return wrapSendErr("edit", err)
		}
		edit := tgbotapi.NewEditMessageText(chatID, intent.MessageID, intent.Text)
		if intent.Markdown {
			edit.ParseMode = tgbotapi.ModeMarkdown
		}
		_, err := b.api.Send(edit)
		return wrapSendErr("edit", err)

	case models.IntentDelete:
		_, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, intent.MessageID))
		return wrapSendErr("delete", err)

	case models.IntentCallbackAck:
		_, err := b.api.Request(tgbotapi.NewCallback(intent.CallbackID, intent.Text))
		return wrapSendErr("callback ack", err)

	default:
		return fmt.Errorf("unsupported intent kind %q", intent.Kind)
	}
}

func (b *Bot) sendMedia(chatID int64, intent models.Intent) error {
	if intent.Media == nil {
		return fmt.Errorf("media intent without payload")
	}
	file := tgbotapi.FileID(intent.Media.FileID)
	switch intent.Media.Kind {
	case models.PayloadImage:
		cfg := tgbotapi.NewPhoto(chatID, file)
		cfg.Caption = intent.Media.Caption
		_, err := b.api.Send(cfg)
		return wrapSendErr("photo", err)
	case models.PayloadVideo:
		cfg := tgbotapi.NewVideo(chatID, file)
		cfg.Caption = intent.Media.Caption
		_, err := b.api.Send(cfg)
		return wrapSendErr("video", err)
	case models.PayloadAudio:
		cfg := tgbotapi.NewVoice(chatID, file)
		cfg.Caption = intent.Media.Caption
		_, err := b.api.Send(cfg)
		return wrapSendErr("voice", err)
	default:
		return fmt.Errorf("unsupported media kind %q", intent.Media.Kind)
	}
}

func wrapSendErr(what string, err error) error {
	if err != nil {
		return fmt.Errorf("telegram %s send failed: %w", what, err)
	}
	return nil
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(keyboardRows...)
	markup.ResizeKeyboard = true
	return markup
}

func inlineKeyboard(rows [][]models.Button) tgbotapi.InlineKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Label, btn.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
		}
		keyboardRows = append(keyboardRows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
}
