package wizard

import (
	"context"
	"reflect"
	"testing"

	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
)

func textEvent(actorID, text string) models.Event {
	return models.Event{
		ID:      "evt-" + actorID + "-" + text,
		ActorID: actorID,
		Payload: models.Payload{Kind: models.PayloadText, Text: text},
	}
}

func mustActor(t *testing.T, st store.Store, id string) *models.Actor {
	t.Helper()
	a, err := st.GetActor(context.Background(), id)
	if err != nil {
		t.Fatalf("GetActor failed: %v", err)
	}
	if a == nil {
		t.Fatalf("actor %s missing", id)
	}
	return a
}

func TestParseLayout(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want [][]string
	}{
		{"two rows", "A,B\nC", [][]string{{"A", "B"}, {"C"}}},
		{"trims and drops empties", "A, ,B\n\n", [][]string{{"A", "B"}}},
		{"whitespace only", "   \n , ,\n", nil},
		{"single cell", "Solo", [][]string{{"Solo"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ParseLayout(c.in); !reflect.DeepEqual(got, c.want) {
				t.Errorf("ParseLayout(%q) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestBeginSetsStepAndPrompts(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	intent, err := w.Begin(ctx, "9", models.StepAwaitingWelcome)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if intent.Kind != models.IntentText || intent.Text == "" {
		t.Errorf("expected a text prompt, got %+v", intent)
	}
	if mustActor(t, st, "9").Wizard.Step != models.StepAwaitingWelcome {
		t.Error("expected wizard step persisted")
	}
}

func TestBeginRejectsUnenterableStep(t *testing.T) {
	w := New(store.NewInMemoryStore())
	if _, err := w.Begin(context.Background(), "9", models.StepAwaitingChanLink); err == nil {
		t.Error("expected error entering a mid-flow step directly")
	}
}

func TestCancelFromAnyStep(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	for step := range transitions {
		if err := st.SetWizardState(ctx, "9", models.WizardState{Step: step}); err != nil {
			t.Fatalf("SetWizardState failed: %v", err)
		}
		intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "/cancel"))
		if err != nil {
			t.Fatalf("Advance(/cancel) from %s failed: %v", step, err)
		}
		if intent.Text != msgCancelled {
			t.Errorf("step %s: expected cancellation reply, got %q", step, intent.Text)
		}
		if mustActor(t, st, "9").Wizard.Active() {
			t.Errorf("step %s: expected wizard cleared after cancel", step)
		}
	}
}

func TestWelcomeStepSavesConfig(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingWelcome); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "Welcome aboard!"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgSaved {
		t.Errorf("expected %q, got %q", msgSaved, intent.Text)
	}
	v, err := st.GetConfig(ctx, models.ConfigKeyWelcome, "")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if v != "Welcome aboard!" {
		t.Errorf("expected welcome saved, got %q", v)
	}
	if mustActor(t, st, "9").Wizard.Active() {
		t.Error("expected wizard cleared after completion")
	}
}

func TestEmptyTextRepromptsWithoutAdvancing(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingWelcome); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), models.Event{
		ActorID: "9",
		Payload: models.Payload{Kind: models.PayloadImage, FileID: "f1"},
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgNeedText {
		t.Errorf("expected re-prompt %q, got %q", msgNeedText, intent.Text)
	}
	if mustActor(t, st, "9").Wizard.Step != models.StepAwaitingWelcome {
		t.Error("expected step unchanged on validation failure")
	}
}

func TestLayoutStepStoresParsedRows(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingLayout); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "A,B\nC"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgLayoutSaved {
		t.Errorf("expected %q, got %q", msgLayoutSaved, intent.Text)
	}
	v, err := st.GetConfig(ctx, models.ConfigKeyLayout, "")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if v != `[["A","B"],["C"]]` {
		t.Errorf("expected encoded layout, got %q", v)
	}
}

func TestLayoutStepRejectsEmptyLayout(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingLayout); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", " , ,\n"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgLayoutInvalid {
		t.Errorf("expected %q, got %q", msgLayoutInvalid, intent.Text)
	}
	if mustActor(t, st, "9").Wizard.Step != models.StepAwaitingLayout {
		t.Error("expected step unchanged on empty layout")
	}
}

func TestChannelFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingChanName); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "Updates"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgAskLink {
		t.Errorf("expected link prompt, got %q", intent.Text)
	}
	// No channel is created until the link arrives.
	channels, err := st.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 0 {
		t.Fatalf("expected no channels mid-flow, got %d", len(channels))
	}

	intent, err = w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "https://example.test/updates"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgChannelAdded {
		t.Errorf("expected %q, got %q", msgChannelAdded, intent.Text)
	}
	channels, err = st.ListChannels(ctx)
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected exactly one channel, got %d", len(channels))
	}
	if channels[0].Name != "Updates" || channels[0].Link != "https://example.test/updates" {
		t.Errorf("unexpected channel %+v", channels[0])
	}
	if mustActor(t, st, "9").Wizard.Active() {
		t.Error("expected wizard cleared after channel flow")
	}
}

func TestButtonFlowTextContent(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingBtnLabel); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "FAQ")); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "All the answers."))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgReplyCreated {
		t.Errorf("expected %q, got %q", msgReplyCreated, intent.Text)
	}
	r, err := st.GetCustomReply(ctx, "FAQ")
	if err != nil {
		t.Fatalf("GetCustomReply failed: %v", err)
	}
	if r == nil || r.Type != models.ReplyTypeText || r.Content != "All the answers." {
		t.Errorf("unexpected stored reply %+v", r)
	}
}

func TestButtonFlowMediaContent(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingBtnLabel); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "Guide")); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), models.Event{
		ActorID: "9",
		Payload: models.Payload{Kind: models.PayloadImage, FileID: "file-123", Caption: "see chart"},
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgReplyCreated {
		t.Errorf("expected %q, got %q", msgReplyCreated, intent.Text)
	}
	r, err := st.GetCustomReply(ctx, "Guide")
	if err != nil {
		t.Fatalf("GetCustomReply failed: %v", err)
	}
	if r == nil || r.Type != models.ReplyTypePhoto || r.Content != "file-123" || r.Caption != "see chart" {
		t.Errorf("unexpected stored reply %+v", r)
	}
}

func TestButtonFlowDuplicateLabelRestartsAtLabel(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if err := st.AddCustomReply(ctx, models.CustomReply{Label: "FAQ", Type: models.ReplyTypeText, Content: "old"}); err != nil {
		t.Fatalf("AddCustomReply failed: %v", err)
	}
	if _, err := w.Begin(ctx, "9", models.StepAwaitingBtnLabel); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "FAQ")); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "new content"))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgLabelTaken {
		t.Errorf("expected %q, got %q", msgLabelTaken, intent.Text)
	}
	if mustActor(t, st, "9").Wizard.Step != models.StepAwaitingBtnLabel {
		t.Error("expected flow to restart at the label step")
	}
	// The stored reply must be untouched.
	r, err := st.GetCustomReply(ctx, "FAQ")
	if err != nil {
		t.Fatalf("GetCustomReply failed: %v", err)
	}
	if r.Content != "old" {
		t.Errorf("expected existing reply untouched, got %+v", r)
	}
}

func TestButtonContentRejectsEmptyPayload(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingBtnLabel); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "FAQ")); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), models.Event{
		ActorID: "9",
		Payload: models.Payload{Kind: models.PayloadNone},
	})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgNeedPayload {
		t.Errorf("expected %q, got %q", msgNeedPayload, intent.Text)
	}
	if mustActor(t, st, "9").Wizard.Step != models.StepAwaitingBtnBody {
		t.Error("expected step unchanged on empty payload")
	}
}

func TestMotivationStep(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if _, err := w.Begin(ctx, "9", models.StepAwaitingMotivate); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	intent, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "One day at a time."))
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if intent.Text != msgMotivAdded {
		t.Errorf("expected %q, got %q", msgMotivAdded, intent.Text)
	}
	n, err := st.CountMotivations(ctx)
	if err != nil {
		t.Fatalf("CountMotivations failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one motivation, got %d", n)
	}
}

func TestAdvanceUnknownStepResets(t *testing.T) {
	st := store.NewInMemoryStore()
	w := New(st)
	ctx := context.Background()

	if err := st.SetWizardState(ctx, "9", models.WizardState{Step: "retired_step"}); err != nil {
		t.Fatalf("SetWizardState failed: %v", err)
	}
	if _, err := w.Advance(ctx, mustActor(t, st, "9"), textEvent("9", "anything")); err == nil {
		t.Error("expected error for unknown step")
	}
	if mustActor(t, st, "9").Wizard.Active() {
		t.Error("expected unknown step to be reset")
	}
}
