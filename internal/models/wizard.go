// Package models defines wizard state structures for StreakBot admin flows.
package models

// WizardStep represents a specific state within the admin wizard.
type WizardStep string

// Closed set of wizard steps. StepNone means no flow is in progress.
const (
	StepNone             WizardStep = ""
	StepAwaitingWelcome  WizardStep = "awaiting_welcome"
	StepAwaitingLayout   WizardStep = "awaiting_layout"
	StepAwaitingUrgeName WizardStep = "awaiting_urge_name"
	StepAwaitingStrkName WizardStep = "awaiting_streak_name"
	StepAwaitingChanName WizardStep = "awaiting_channel_name"
	StepAwaitingChanLink WizardStep = "awaiting_channel_link"
	StepAwaitingBtnLabel WizardStep = "awaiting_btn_label"
	StepAwaitingBtnBody  WizardStep = "awaiting_btn_content"
	StepAwaitingMotivate WizardStep = "awaiting_motivation"
)

// IsValidWizardStep checks if the given step belongs to the closed set.
func IsValidWizardStep(s WizardStep) bool {
	switch s {
	case StepNone, StepAwaitingWelcome, StepAwaitingLayout,
		StepAwaitingUrgeName, StepAwaitingStrkName,
		StepAwaitingChanName, StepAwaitingChanLink,
		StepAwaitingBtnLabel, StepAwaitingBtnBody,
		StepAwaitingMotivate:
		return true
	}
	return false
}

// Temp data keys used by two-step wizard captures.
const (
	TempKeyChannelName = "channel_name"
	TempKeyButtonLabel = "button_label"
)

// WizardState is the per-actor admin wizard state embedded in Actor.
// TempData carries values collected across multi-message flows and must
// be empty whenever Step is StepNone.
type WizardState struct {
	Step     WizardStep        `json:"step"`
	TempData map[string]string `json:"temp_data,omitempty"`
}

// Active reports whether a wizard flow is in progress.
func (w WizardState) Active() bool {
	return w.Step != StepNone
}

// ClearedWizardState returns the terminal wizard state with no temporaries.
func ClearedWizardState() WizardState {
	return WizardState{Step: StepNone}
}
