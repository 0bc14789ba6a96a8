// Package wizard implements the per-actor admin configuration state machine.
//
// Each inbound message from an admin with an active wizard step is
// interpreted as the answer to the pending question. Transitions are
// driven by an explicit table keyed by the closed step enumeration, so
// adding a step means adding exactly one table entry.
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
)

// CancelCommand aborts any in-progress wizard flow.
const CancelCommand = "/cancel"

// Reply texts emitted by wizard transitions.
const (
	msgCancelled     = "❌ Cancelled."
	msgSaved         = "✅ Saved!"
	msgSavedRestart  = "✅ Saved! Send /start to refresh your keyboard."
	msgLayoutSaved   = "✅ Layout saved! Send /start to see it."
	msgChannelAdded  = "✅ Channel added!"
	msgReplyCreated  = "✅ Button created!"
	msgMotivAdded    = "✅ Motivation added!"
	msgAskLink       = "🔗 Send the channel link:"
	msgAskContent    = "📥 Send the button content (text, photo, video or voice):"
	msgNeedText      = "Please send plain text."
	msgNeedPayload   = "That message has no usable content. Send text, a photo, a video or a voice message."
	msgLabelTaken    = "A button with that label already exists. Send a different label:"
	msgLayoutInvalid = "The layout is empty. Send rows of comma-separated labels, one row per line."
)

// prompts shown when a wizard step is entered via Begin.
var prompts = map[models.WizardStep]string{
	models.StepAwaitingWelcome:  "📝 Send the new welcome message:",
	models.StepAwaitingLayout:   "🔲 Send the keyboard layout (labels separated by commas, rows by new lines):",
	models.StepAwaitingUrgeName: "🏷️ Send the new name for the urge button:",
	models.StepAwaitingStrkName: "🏷️ Send the new name for the streak button:",
	models.StepAwaitingChanName: "📢 Send the channel name:",
	models.StepAwaitingBtnLabel: "🔘 Send the new button label:",
	models.StepAwaitingMotivate: "➕ Send the motivation text:",
}

// stepHandler consumes the incoming event for one step and returns the
// reply intent plus the next wizard state.
type stepHandler func(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error)

// transitions maps each non-terminal step to its handler. Steps missing
// from the table cannot be reached via Begin or produced by a handler.
var transitions = map[models.WizardStep]stepHandler{
	models.StepAwaitingWelcome:  configUpsertStep(models.ConfigKeyWelcome, msgSaved),
	models.StepAwaitingUrgeName: configUpsertStep(models.ConfigKeyUrgeLabel, msgSavedRestart),
	models.StepAwaitingStrkName: configUpsertStep(models.ConfigKeyStreakLabel, msgSavedRestart),
	models.StepAwaitingLayout:   layoutStep,
	models.StepAwaitingChanName: channelNameStep,
	models.StepAwaitingChanLink: channelLinkStep,
	models.StepAwaitingBtnLabel: buttonLabelStep,
	models.StepAwaitingBtnBody:  buttonContentStep,
	models.StepAwaitingMotivate: motivationStep,
}

// Wizard advances admin configuration flows against a Store.
type Wizard struct {
	store store.Store
}

// New creates a wizard backed by the given store.
func New(st store.Store) *Wizard {
	return &Wizard{store: st}
}

// Begin puts the actor into the given step and returns the question
// prompt. Authorization is the caller's responsibility.
func (w *Wizard) Begin(ctx context.Context, actorID string, step models.WizardStep) (models.Intent, error) {
	prompt, ok := prompts[step]
	if !ok {
		return models.Intent{}, fmt.Errorf("wizard step %q cannot be entered directly", step)
	}
	if err := w.store.SetWizardState(ctx, actorID, models.WizardState{Step: step}); err != nil {
		return models.Intent{}, err
	}
	slog.Debug("Wizard.Begin", "actor_id", actorID, "step", step)
	return models.TextIntent(prompt), nil
}

// Cancel clears the actor's wizard state unconditionally.
func (w *Wizard) Cancel(ctx context.Context, actorID string) error {
	return w.store.SetWizardState(ctx, actorID, models.ClearedWizardState())
}

// Advance interprets the event as the answer to the actor's pending step.
// The cancellation command is honored from any active step before any
// step-specific logic runs. Validation failures re-prompt without
// advancing the state.
func (w *Wizard) Advance(ctx context.Context, actor *models.Actor, ev models.Event) (models.Intent, error) {
	step := actor.Wizard.Step
	if step == models.StepNone {
		return models.Intent{}, errors.New("wizard advance called with no active step")
	}
	if strings.TrimSpace(ev.Text()) == CancelCommand {
		if err := w.Cancel(ctx, actor.ID); err != nil {
			return models.Intent{}, err
		}
		slog.Debug("Wizard.Advance cancelled", "actor_id", actor.ID, "step", step)
		return models.TextIntent(msgCancelled), nil
	}

	handler, ok := transitions[step]
	if !ok {
		// Unknown persisted step, e.g. after a rollout removed one. Reset
		// rather than trapping the admin in an unanswerable question.
		if err := w.Cancel(ctx, actor.ID); err != nil {
			return models.Intent{}, err
		}
		return models.Intent{}, fmt.Errorf("unknown wizard step %q for actor %s", step, actor.ID)
	}

	intent, next, err := handler(ctx, w, actor, ev)
	if err != nil {
		return models.Intent{}, err
	}
	if err := w.store.SetWizardState(ctx, actor.ID, next); err != nil {
		return models.Intent{}, err
	}
	slog.Debug("Wizard.Advance", "actor_id", actor.ID, "from", step, "to", next.Step)
	return intent, nil
}

// configUpsertStep builds a handler that stores the message text under a
// single configuration key and completes immediately.
func configUpsertStep(key, done string) stepHandler {
	return func(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
		text := strings.TrimSpace(ev.Text())
		if text == "" {
			return models.TextIntent(msgNeedText), actor.Wizard, nil
		}
		if err := w.store.SetConfig(ctx, key, text); err != nil {
			return models.Intent{}, actor.Wizard, err
		}
		return models.TextIntent(done), models.ClearedWizardState(), nil
	}
}

func layoutStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	layout := ParseLayout(ev.Text())
	if len(layout) == 0 {
		return models.TextIntent(msgLayoutInvalid), actor.Wizard, nil
	}
	encoded, err := json.Marshal(layout)
	if err != nil {
		return models.Intent{}, actor.Wizard, fmt.Errorf("failed to marshal layout: %w", err)
	}
	if err := w.store.SetConfig(ctx, models.ConfigKeyLayout, string(encoded)); err != nil {
		return models.Intent{}, actor.Wizard, err
	}
	return models.TextIntent(msgLayoutSaved), models.ClearedWizardState(), nil
}

func channelNameStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	name := strings.TrimSpace(ev.Text())
	if name == "" {
		return models.TextIntent(msgNeedText), actor.Wizard, nil
	}
	next := models.WizardState{
		Step:     models.StepAwaitingChanLink,
		TempData: map[string]string{models.TempKeyChannelName: name},
	}
	return models.TextIntent(msgAskLink), next, nil
}

func channelLinkStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	link := strings.TrimSpace(ev.Text())
	if link == "" {
		return models.TextIntent(msgNeedText), actor.Wizard, nil
	}
	name := actor.Wizard.TempData[models.TempKeyChannelName]
	if err := w.store.AddChannel(ctx, models.Channel{Name: name, Link: link}); err != nil {
		return models.Intent{}, actor.Wizard, err
	}
	return models.TextIntent(msgChannelAdded), models.ClearedWizardState(), nil
}

func buttonLabelStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	label := strings.TrimSpace(ev.Text())
	if label == "" {
		return models.TextIntent(msgNeedText), actor.Wizard, nil
	}
	if len(label) > models.MaxLabelLength {
		return models.TextIntent(msgNeedText), actor.Wizard, nil
	}
	next := models.WizardState{
		Step:     models.StepAwaitingBtnBody,
		TempData: map[string]string{models.TempKeyButtonLabel: label},
	}
	return models.TextIntent(msgAskContent), next, nil
}

func buttonContentStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	reply, ok := replyFromPayload(actor.Wizard.TempData[models.TempKeyButtonLabel], ev.Payload)
	if !ok {
		return models.TextIntent(msgNeedPayload), actor.Wizard, nil
	}
	err := w.store.AddCustomReply(ctx, reply)
	if errors.Is(err, models.ErrDuplicateLabel) {
		// Distinct label required: restart the capture at the label step.
		next := models.WizardState{Step: models.StepAwaitingBtnLabel}
		return models.TextIntent(msgLabelTaken), next, nil
	}
	if err != nil {
		return models.Intent{}, actor.Wizard, err
	}
	return models.TextIntent(msgReplyCreated), models.ClearedWizardState(), nil
}

func motivationStep(ctx context.Context, w *Wizard, actor *models.Actor, ev models.Event) (models.Intent, models.WizardState, error) {
	text := strings.TrimSpace(ev.Text())
	if text == "" {
		return models.TextIntent(msgNeedText), actor.Wizard, nil
	}
	if err := w.store.AddMotivation(ctx, text); err != nil {
		return models.Intent{}, actor.Wizard, err
	}
	return models.TextIntent(msgMotivAdded), models.ClearedWizardState(), nil
}

// replyFromPayload maps the inbound payload sum onto a stored custom
// reply. The payload kind decides the content type exactly once.
func replyFromPayload(label string, p models.Payload) (models.CustomReply, bool) {
	reply := models.CustomReply{Label: label, Caption: p.Caption}
	switch p.Kind {
	case models.PayloadText:
		if strings.TrimSpace(p.Text) == "" {
			return models.CustomReply{}, false
		}
		reply.Type = models.ReplyTypeText
		reply.Content = p.Text
	case models.PayloadImage:
		reply.Type = models.ReplyTypePhoto
		reply.Content = p.FileID
	case models.PayloadVideo:
		reply.Type = models.ReplyTypeVideo
		reply.Content = p.FileID
	case models.PayloadAudio:
		reply.Type = models.ReplyTypeVoice
		reply.Content = p.FileID
	default:
		return models.CustomReply{}, false
	}
	return reply, true
}

// ParseLayout parses free text into keyboard rows: lines become rows,
// commas separate cells, cells are trimmed, empty cells and empty rows
// are dropped.
func ParseLayout(text string) [][]string {
	var layout [][]string
	for _, line := range strings.Split(text, "\n") {
		var row []string
		for _, cell := range strings.Split(line, ",") {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				row = append(row, cell)
			}
		}
		if len(row) > 0 {
			layout = append(layout, row)
		}
	}
	return layout
}
