package lesson

import (
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/resolution"
)

// Action is the guard's verdict on a save attempt
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionBlock Action = "BLOCK"
)

// Condition names the decision-table row that matched
type Condition string

const (
	ConditionNoVideo            Condition = "NO_VIDEO"
	ConditionMissingTranscript  Condition = "MISSING_TRANSCRIPT"
	ConditionGenerationInFlight Condition = "GENERATION_IN_FLIGHT"
	ConditionReferenceChanged   Condition = "REFERENCE_CHANGED"
	ConditionUnchanged          Condition = "UNCHANGED"
)

// Choice is a way out of a blocked save
type Choice string

const (
	ChoiceNone          Choice = ""
	ChoiceEnterManually Choice = "enter_manually"
	ChoiceGenerateNow   Choice = "generate_now"
	ChoiceKeepExisting  Choice = "keep_existing"
	ChoiceRegenerate    Choice = "regenerate"
	ChoiceEditManually  Choice = "edit_manually"
)

// Decision is the outcome of evaluating a save attempt
type Decision struct {
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
	Choices   []Choice  `json:"choices,omitempty"`
}

// Allows reports whether choice resolves a blocked decision
func (d Decision) Allows(choice Choice) bool {
	for _, c := range d.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// GuardInput is the state a save is checked against
type GuardInput struct {
	CurrentReference       string
	SavedReference         string
	GeneratedFromReference string
	Effective              model.EffectiveTranscript
	GenerationInFlight     bool
	MinLength              int
}

// Evaluate applies the save-time decision table.
// A first save (no saved reference) is never treated as a reference change.
func Evaluate(in GuardInput) Decision {
	current := strings.TrimSpace(in.CurrentReference)
	if current == "" {
		return Decision{Action: ActionAllow, Condition: ConditionNoVideo}
	}

	if !resolution.IsValid(in.Effective.Content, in.MinLength) {
		if in.GenerationInFlight {
			return Decision{Action: ActionAllow, Condition: ConditionGenerationInFlight}
		}
		return Decision{
			Action:    ActionBlock,
			Condition: ConditionMissingTranscript,
			Choices:   []Choice{ChoiceEnterManually, ChoiceGenerateNow},
		}
	}

	saved := strings.TrimSpace(in.SavedReference)
	changed := saved != "" && saved != current
	if changed && isMachineSource(in.Effective.Source) && strings.TrimSpace(in.GeneratedFromReference) == current {
		// machine transcript already matches the new video
		changed = false
	}
	if !changed {
		return Decision{Action: ActionAllow, Condition: ConditionUnchanged}
	}
	if in.GenerationInFlight {
		return Decision{Action: ActionAllow, Condition: ConditionGenerationInFlight}
	}
	return Decision{
		Action:    ActionBlock,
		Condition: ConditionReferenceChanged,
		Choices:   []Choice{ChoiceKeepExisting, ChoiceRegenerate, ChoiceEditManually},
	}
}

func isMachineSource(origin model.TranscriptOrigin) bool {
	switch origin {
	case model.OriginUser, model.OriginLegacy, model.OriginNone, "":
		return false
	}
	return true
}
