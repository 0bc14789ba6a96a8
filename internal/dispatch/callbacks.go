// Package dispatch: callback-query routing.
//
// Callback data is a flat grammar carried in inline buttons. Streak
// actions embed the owning actor id so a shared group message cannot be
// operated by another user; admin actions are gated by the allow-list.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/StreakBot/internal/models"
)

// Callback data prefixes.
const (
	cbRelapse     = "rel_"     // rel_<ownerID>: ask for a relapse reason
	cbReason      = "rsn_"     // rsn_<tag>_<ownerID>: record the relapse
	cbRefresh     = "ref_"     // ref_<ownerID>: redraw the streak status
	cbLeaderboard = "led_"     // led_<ownerID>: show the leaderboard
	cbCancelMenu  = "can_"     // can_<ownerID>: dismiss the reason menu
	cbDelChannel  = "del_ch_"  // del_ch_<id>: admin delete channel
	cbDelReply    = "del_cus_" // del_cus_<id>: admin delete custom reply
)

// Admin menu callback actions (exact match).
const (
	cbAdminMotivation = "adm_mot"
	cbAdminLayout     = "adm_lay"
	cbAdminWelcome    = "adm_wel"
	cbAdminRename     = "adm_ren"
	cbAdminChannels   = "adm_chan"
	cbAdminReplies    = "adm_cus"
	cbRenameUrge      = "ren_urg"
	cbRenameStreak    = "ren_str"
	cbAddChannel      = "add_ch"
	cbAddReply        = "add_cus"
)

// Relapse reason tags offered on the reason menu.
var relapseReasons = []struct {
	Tag   string
	Label string
}{
	{"bored", "🥱 Bored"},
	{"stress", "😰 Stress"},
	{"urge", "🔥 Urge"},
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev models.Event) {
	data := ev.Callback.Data
	slog.Debug("Dispatcher.handleCallback", "data", data, "actor_id", ev.ActorID)

	switch {
	case strings.HasPrefix(data, cbReason):
		d.callbackReason(ctx, ev, strings.TrimPrefix(data, cbReason))
	case strings.HasPrefix(data, cbRelapse):
		d.callbackRelapse(ctx, ev, strings.TrimPrefix(data, cbRelapse))
	case strings.HasPrefix(data, cbRefresh):
		d.callbackRefresh(ctx, ev, strings.TrimPrefix(data, cbRefresh))
	case strings.HasPrefix(data, cbLeaderboard):
		d.callbackLeaderboard(ctx, ev)
	case strings.HasPrefix(data, cbCancelMenu):
		d.callbackCancelMenu(ctx, ev, strings.TrimPrefix(data, cbCancelMenu))
	default:
		d.handleAdminCallback(ctx, ev, data)
	}
}

// ownedBy verifies the callback was pressed by the actor the button was
// issued for, acking a rejection otherwise.
func (d *Dispatcher) ownedBy(ctx context.Context, ev models.Event, ownerID string) bool {
	if ev.ActorID == ownerID {
		return true
	}
	d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, "Not yours!"))
	return false
}

func (d *Dispatcher) callbackRelapse(ctx context.Context, ev models.Event, ownerID string) {
	if !d.ownedBy(ctx, ev, ownerID) {
		return
	}
	rows := make([][]models.Button, 0, len(relapseReasons)+1)
	for _, r := range relapseReasons {
		rows = append(rows, []models.Button{{Label: r.Label, Data: cbReason + r.Tag + "_" + ownerID}})
	}
	rows = append(rows, []models.Button{{Label: "❌ Cancel", Data: cbCancelMenu + ownerID}})
	d.send(ctx, ev.ChatID,
		models.EditIntent(ev.Callback.MessageID, "Why did the streak break?", rows),
		models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) callbackReason(ctx context.Context, ev models.Event, rest string) {
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		slog.Warn("Dispatcher.callbackReason malformed data", "data", rest)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	reason, ownerID := parts[0], parts[1]
	if !d.ownedBy(ctx, ev, ownerID) {
		return
	}
	if _, _, err := d.engine.Relapse(ctx, ownerID, reason, d.now()); err != nil {
		slog.Error("Dispatcher.callbackReason relapse failed", "error", err, "actor_id", ownerID)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	d.send(ctx, ev.ChatID,
		models.DeleteIntent(ev.Callback.MessageID),
		models.TextIntent("✅ Streak reset to 0. Stay strong!"),
		models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) callbackRefresh(ctx context.Context, ev models.Event, ownerID string) {
	if !d.ownedBy(ctx, ev, ownerID) {
		return
	}
	d.send(ctx, ev.ChatID, models.DeleteIntent(ev.Callback.MessageID))
	d.sendStreakStatus(ctx, ev)
	d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) callbackLeaderboard(ctx context.Context, ev models.Event) {
	standings, err := d.engine.Leaderboard(ctx, 10, d.now())
	if err != nil {
		slog.Error("Dispatcher.callbackLeaderboard failed", "error", err)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	var b strings.Builder
	b.WriteString("🏆 *Top 10*\n")
	for i, s := range standings {
		fmt.Fprintf(&b, "%d. %s - %d d\n", i+1, displayName(s.Actor.FirstName), s.Days)
	}
	back := [][]models.Button{{{Label: "🔙 Back", Data: cbRefresh + ev.ActorID}}}
	edit := models.EditIntent(ev.Callback.MessageID, b.String(), back)
	edit.Markdown = true
	d.send(ctx, ev.ChatID, edit, models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) callbackCancelMenu(ctx context.Context, ev models.Event, ownerID string) {
	if !d.ownedBy(ctx, ev, ownerID) {
		return
	}
	d.send(ctx, ev.ChatID,
		models.DeleteIntent(ev.Callback.MessageID),
		models.AckIntent(ev.Callback.ID, "Cancelled"))
}

// streakStatusIntent renders the actor's standing with its action buttons.
func streakStatusIntent(actor *models.Actor, days int) models.Intent {
	text := fmt.Sprintf("🔥 *%s*\nCurrent streak: *%d days*\nBest: %d days",
		displayName(actor.FirstName), days, actor.BestStreak)
	rows := [][]models.Button{
		{{Label: "💔 Relapse", Data: cbRelapse + actor.ID}},
		{{Label: "🏆 Leaderboard", Data: cbLeaderboard + actor.ID}},
		{{Label: "🔄 Refresh", Data: cbRefresh + actor.ID}},
	}
	intent := models.InlineIntent(text, rows)
	intent.Markdown = true
	return intent
}

// handleAdminCallback routes the admin-only actions. Non-admin presses
// are acknowledged and dropped without mutating anything.
func (d *Dispatcher) handleAdminCallback(ctx context.Context, ev models.Event, data string) {
	if !d.IsAdmin(ev.ActorID) {
		slog.Warn("Dispatcher.handleAdminCallback unauthorized", "actor_id", ev.ActorID, "data", data)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}

	beginSteps := map[string]models.WizardStep{
		cbAdminMotivation: models.StepAwaitingMotivate,
		cbAdminLayout:     models.StepAwaitingLayout,
		cbAdminWelcome:    models.StepAwaitingWelcome,
		cbRenameUrge:      models.StepAwaitingUrgeName,
		cbRenameStreak:    models.StepAwaitingStrkName,
		cbAddChannel:      models.StepAwaitingChanName,
		cbAddReply:        models.StepAwaitingBtnLabel,
	}
	if step, ok := beginSteps[data]; ok {
		intent, err := d.wizard.Begin(ctx, ev.ActorID, step)
		if err != nil {
			slog.Error("Dispatcher.handleAdminCallback wizard begin failed", "error", err, "step", step)
			d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
			return
		}
		d.send(ctx, ev.ChatID, intent, models.AckIntent(ev.Callback.ID, ""))
		return
	}

	switch {
	case data == cbAdminRename:
		rows := [][]models.Button{{
			{Label: "Urge button", Data: cbRenameUrge},
			{Label: "Streak button", Data: cbRenameStreak},
		}}
		d.send(ctx, ev.ChatID,
			models.InlineIntent("Which button should be renamed?", rows),
			models.AckIntent(ev.Callback.ID, ""))
	case data == cbAdminChannels:
		d.sendChannelAdmin(ctx, ev)
	case data == cbAdminReplies:
		d.sendReplyAdmin(ctx, ev)
	case strings.HasPrefix(data, cbDelChannel):
		d.callbackDeleteChannel(ctx, ev, strings.TrimPrefix(data, cbDelChannel))
	case strings.HasPrefix(data, cbDelReply):
		d.callbackDeleteReply(ctx, ev, strings.TrimPrefix(data, cbDelReply))
	default:
		slog.Warn("Dispatcher.handleAdminCallback unknown action", "data", data)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
	}
}

// sendAdminMenu replies with the admin panel and a user count.
func (d *Dispatcher) sendAdminMenu(ctx context.Context, ev models.Event) {
	count, err := d.store.CountActors(ctx)
	if err != nil {
		slog.Error("Dispatcher.sendAdminMenu count failed", "error", err)
		return
	}
	rows := [][]models.Button{
		{{Label: "➕ Motivation", Data: cbAdminMotivation}, {Label: "🔲 Layout", Data: cbAdminLayout}},
		{{Label: "📝 Start Msg", Data: cbAdminWelcome}, {Label: "🏷️ Rename", Data: cbAdminRename}},
		{{Label: "📢 Channels", Data: cbAdminChannels}, {Label: "🔘 Custom Btn", Data: cbAdminReplies}},
	}
	d.send(ctx, ev.ChatID, models.InlineIntent(fmt.Sprintf("⚙️ Admin panel (users: %d)", count), rows))
}

func (d *Dispatcher) sendChannelAdmin(ctx context.Context, ev models.Event) {
	channels, err := d.store.ListChannels(ctx)
	if err != nil {
		slog.Error("Dispatcher.sendChannelAdmin list failed", "error", err)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	rows := [][]models.Button{{{Label: "➕ Add", Data: cbAddChannel}}}
	for _, ch := range channels {
		rows = append(rows, []models.Button{{
			Label: "🗑️ " + ch.Name,
			Data:  cbDelChannel + strconv.FormatInt(ch.ID, 10),
		}})
	}
	d.send(ctx, ev.ChatID,
		models.EditIntent(ev.Callback.MessageID, "Channels:", rows),
		models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) sendReplyAdmin(ctx context.Context, ev models.Event) {
	replies, err := d.store.ListCustomReplies(ctx)
	if err != nil {
		slog.Error("Dispatcher.sendReplyAdmin list failed", "error", err)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	rows := [][]models.Button{{{Label: "➕ Add", Data: cbAddReply}}}
	for _, r := range replies {
		rows = append(rows, []models.Button{{
			Label: "🗑️ " + r.Label,
			Data:  cbDelReply + strconv.FormatInt(r.ID, 10),
		}})
	}
	d.send(ctx, ev.ChatID,
		models.EditIntent(ev.Callback.MessageID, "Custom buttons:", rows),
		models.AckIntent(ev.Callback.ID, ""))
}

func (d *Dispatcher) callbackDeleteChannel(ctx context.Context, ev models.Event, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		slog.Warn("Dispatcher.callbackDeleteChannel malformed id", "raw", rawID)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	err = d.store.DeleteChannel(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, "Already removed"))
	case err != nil:
		slog.Error("Dispatcher.callbackDeleteChannel failed", "error", err, "id", id)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
	default:
		d.send(ctx, ev.ChatID,
			models.TextIntent("🗑️ Channel deleted."),
			models.AckIntent(ev.Callback.ID, ""))
	}
}

func (d *Dispatcher) callbackDeleteReply(ctx context.Context, ev models.Event, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		slog.Warn("Dispatcher.callbackDeleteReply malformed id", "raw", rawID)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
		return
	}
	err = d.store.DeleteCustomReply(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, "Already removed"))
	case err != nil:
		slog.Error("Dispatcher.callbackDeleteReply failed", "error", err, "id", id)
		d.send(ctx, ev.ChatID, models.AckIntent(ev.Callback.ID, ""))
	default:
		d.send(ctx, ev.ChatID,
			models.TextIntent("🗑️ Button deleted."),
			models.AckIntent(ev.Callback.ID, ""))
	}
}
