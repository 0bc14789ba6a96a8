// Package dispatch implements the inbound event dispatcher.
//
// Every event is deduplicated against the ledger, routed to the admin
// wizard, the streak engine, or a content lookup, and answered through
// declarative intents handed to a Sender. Failures never propagate to the
// transport: the webhook acknowledgment is decoupled from the business
// outcome so the platform does not redeliver.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
	"github.com/BTreeMap/StreakBot/internal/streak"
	"github.com/BTreeMap/StreakBot/internal/wizard"
)

// Sender delivers a rendered intent to a chat. Implemented by the
// Telegram adapter; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, chatID int64, intent models.Intent) error
}

// MotivationGenerator produces a fallback encouragement when the
// admin-curated pool is empty. Optional.
type MotivationGenerator interface {
	Motivation(ctx context.Context) (string, error)
}

// Recognized fixed triggers. The three menu labels are defaults only;
// admins can rename them via configuration entries.
const (
	StartCommand        = "/start"
	AdminPanelLabel     = "🔐 Admin Panel"
	DefaultUrgeLabel    = "🆘 Help Me"
	DefaultStreakLabel  = "📅 My Streak"
	DefaultChannelLabel = "📢 Channels"
)

// Dispatcher routes inbound events. Safe for concurrent use.
type Dispatcher struct {
	store  store.Store
	sender Sender
	wizard *wizard.Wizard
	engine *streak.Engine
	genai  MotivationGenerator
	admins map[string]struct{}
	now    func() time.Time
}

// New creates a dispatcher. adminIDs is the static administrator
// allow-list, immutable for the process lifetime.
func New(st store.Store, snd Sender, adminIDs []string) *Dispatcher {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			admins[id] = struct{}{}
		}
	}
	return &Dispatcher{
		store:  st,
		sender: snd,
		wizard: wizard.New(st),
		engine: streak.NewEngine(st),
		admins: admins,
		now:    time.Now,
	}
}

// SetMotivationGenerator installs the optional fallback generator.
func (d *Dispatcher) SetMotivationGenerator(g MotivationGenerator) {
	d.genai = g
}

// IsAdmin reports whether the actor is on the allow-list.
func (d *Dispatcher) IsAdmin(actorID string) bool {
	_, ok := d.admins[actorID]
	return ok
}

// Handle processes one inbound event within the deadline carried by ctx.
// It never returns an error: duplicates are skipped silently, inner
// failures are logged and swallowed, and if the deadline fires first the
// in-flight pipeline is abandoned (already-committed writes stand).
func (d *Dispatcher) Handle(ctx context.Context, ev models.Event) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Dispatcher.Handle recovered from panic", "event_id", ev.ID, "panic", r)
			}
		}()
		d.process(ctx, ev)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Dispatcher.Handle deadline fired, abandoning pipeline", "event_id", ev.ID, "reason", ctx.Err())
	}
}

func (d *Dispatcher) process(ctx context.Context, ev models.Event) {
	fresh, err := d.store.RecordEvent(ctx, ev.ID)
	if err != nil {
		slog.Error("Dispatcher.process dedup insert failed", "error", err, "event_id", ev.ID)
		return
	}
	if !fresh {
		slog.Debug("Dispatcher.process skipping duplicate event", "event_id", ev.ID)
		return
	}

	if ev.Callback != nil {
		d.handleCallback(ctx, ev)
		return
	}
	d.handleMessage(ctx, ev)
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev models.Event) {
	text := strings.TrimSpace(ev.Text())

	if text == StartCommand {
		d.handleStart(ctx, ev)
		return
	}

	if d.IsAdmin(ev.ActorID) {
		actor, err := d.store.GetActor(ctx, ev.ActorID)
		if err != nil {
			slog.Error("Dispatcher.handleMessage actor load failed", "error", err, "actor_id", ev.ActorID)
			return
		}
		if actor != nil && actor.Wizard.Active() {
			intent, err := d.wizard.Advance(ctx, actor, ev)
			if err != nil {
				slog.Error("Dispatcher.handleMessage wizard advance failed", "error", err, "actor_id", ev.ActorID)
				return
			}
			d.send(ctx, ev.ChatID, intent)
			return
		}
		if text == AdminPanelLabel {
			d.sendAdminMenu(ctx, ev)
			return
		}
	}

	if text == "" {
		// Media outside an admin wizard flow has no route.
		slog.Debug("Dispatcher.handleMessage ignoring non-text event", "event_id", ev.ID)
		return
	}

	urgeLabel, err := d.store.GetConfig(ctx, models.ConfigKeyUrgeLabel, DefaultUrgeLabel)
	if err != nil {
		slog.Error("Dispatcher.handleMessage config load failed", "error", err)
		return
	}
	if text == urgeLabel {
		d.handleUrge(ctx, ev)
		return
	}

	streakLabel, err := d.store.GetConfig(ctx, models.ConfigKeyStreakLabel, DefaultStreakLabel)
	if err != nil {
		slog.Error("Dispatcher.handleMessage config load failed", "error", err)
		return
	}
	if text == streakLabel {
		d.sendStreakStatus(ctx, ev)
		return
	}

	channelLabel, err := d.store.GetConfig(ctx, models.ConfigKeyChannelLabel, DefaultChannelLabel)
	if err != nil {
		slog.Error("Dispatcher.handleMessage config load failed", "error", err)
		return
	}
	if text == channelLabel {
		d.sendChannelList(ctx, ev)
		return
	}

	reply, err := d.store.GetCustomReply(ctx, text)
	if err != nil {
		slog.Error("Dispatcher.handleMessage custom reply lookup failed", "error", err, "label", text)
		return
	}
	if reply != nil {
		d.sendCustomReply(ctx, ev, reply)
		return
	}

	slog.Debug("Dispatcher.handleMessage no trigger matched", "event_id", ev.ID)
}

func (d *Dispatcher) handleStart(ctx context.Context, ev models.Event) {
	actor, err := d.store.UpsertActor(ctx, ev.ActorID, ev.FirstName)
	if err != nil {
		slog.Error("Dispatcher.handleStart upsert failed", "error", err, "actor_id", ev.ActorID)
		return
	}
	// A fresh session aborts any half-finished wizard flow.
	if d.IsAdmin(ev.ActorID) && actor.Wizard.Active() {
		if err := d.wizard.Cancel(ctx, ev.ActorID); err != nil {
			slog.Error("Dispatcher.handleStart wizard reset failed", "error", err, "actor_id", ev.ActorID)
			return
		}
	}

	keyboard, err := d.composeKeyboard(ctx, ev.ActorID)
	if err != nil {
		slog.Error("Dispatcher.handleStart keyboard composition failed", "error", err)
		return
	}
	welcome, err := d.store.GetConfig(ctx, models.ConfigKeyWelcome, "")
	if err != nil {
		slog.Error("Dispatcher.handleStart welcome load failed", "error", err)
		return
	}
	if welcome == "" {
		welcome = "Hi " + displayName(actor.FirstName) + "! Welcome 👋"
	}
	d.send(ctx, ev.ChatID, models.KeyboardIntent(welcome, keyboard))
}

func (d *Dispatcher) handleUrge(ctx context.Context, ev models.Event) {
	m, err := d.store.RandomMotivation(ctx)
	if err != nil {
		slog.Error("Dispatcher.handleUrge motivation lookup failed", "error", err)
		return
	}
	if m != nil {
		d.send(ctx, ev.ChatID, models.MarkdownIntent("💪 *Stay strong!*\n\n"+m.Text))
		return
	}
	if d.genai != nil {
		text, err := d.genai.Motivation(ctx)
		if err == nil && text != "" {
			d.send(ctx, ev.ChatID, models.MarkdownIntent("💪 *Stay strong!*\n\n"+text))
			return
		}
		if err != nil {
			slog.Error("Dispatcher.handleUrge generator failed", "error", err)
		}
	}
	d.send(ctx, ev.ChatID, models.TextIntent("No motivations yet."))
}

func (d *Dispatcher) sendStreakStatus(ctx context.Context, ev models.Event) {
	actor, days, err := d.engine.Status(ctx, ev.ActorID, ev.FirstName, d.now())
	if err != nil {
		slog.Error("Dispatcher.sendStreakStatus failed", "error", err, "actor_id", ev.ActorID)
		return
	}
	d.send(ctx, ev.ChatID, streakStatusIntent(actor, days))
}

func (d *Dispatcher) sendChannelList(ctx context.Context, ev models.Event) {
	channels, err := d.store.ListChannels(ctx)
	if err != nil {
		slog.Error("Dispatcher.sendChannelList failed", "error", err)
		return
	}
	if len(channels) == 0 {
		d.send(ctx, ev.ChatID, models.TextIntent("No channels yet."))
		return
	}
	rows := make([][]models.Button, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []models.Button{{Label: ch.Name, URL: ch.Link}})
	}
	d.send(ctx, ev.ChatID, models.InlineIntent("📢 Channels:", rows))
}

func (d *Dispatcher) sendCustomReply(ctx context.Context, ev models.Event, reply *models.CustomReply) {
	if reply.Type == models.ReplyTypeText {
		d.send(ctx, ev.ChatID, models.TextIntent(reply.Content))
		return
	}
	payload := models.Payload{FileID: reply.Content, Caption: reply.Caption}
	switch reply.Type {
	case models.ReplyTypePhoto:
		payload.Kind = models.PayloadImage
	case models.ReplyTypeVideo:
		payload.Kind = models.PayloadVideo
	case models.ReplyTypeVoice:
		payload.Kind = models.PayloadAudio
	default:
		slog.Error("Dispatcher.sendCustomReply unknown reply type", "type", reply.Type, "label", reply.Label)
		return
	}
	d.send(ctx, ev.ChatID, models.MediaIntent(payload))
}

// send delivers intents in order, logging failures without aborting.
func (d *Dispatcher) send(ctx context.Context, chatID int64, intents ...models.Intent) {
	for _, intent := range intents {
		if intent.Kind == models.IntentNone {
			continue
		}
		if err := d.sender.Send(ctx, chatID, intent); err != nil {
			slog.Error("Dispatcher.send delivery failed", "error", err, "chat_id", chatID, "kind", intent.Kind)
		}
	}
}

func displayName(firstName string) string {
	if firstName == "" {
		return "Friend"
	}
	return firstName
}
