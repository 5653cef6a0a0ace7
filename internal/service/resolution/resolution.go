// Package resolution decides which transcript a lesson shows.
//
// Display, persistence and the save guard all call Resolve; there is no other place that
// computes transcript precedence.
package resolution

import (
	"strings"
	"unicode/utf8"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// DefaultMinLength is the shortest transcript considered meaningful
const DefaultMinLength = 10

// Input is everything the precedence rules look at
type Input struct {
	UserText   *string
	AIText     *string
	LegacyText *string
	Origin     model.TranscriptOrigin // provenance of AIText
	Status     model.TranscriptStatus // recorded generation status
}

// Resolve picks the effective transcript: user text, then machine text, then legacy text.
// A machine transcript whose generation never completed (status PENDING) resolves to nothing,
// not to the legacy text, until the generation finishes.
func Resolve(in Input) model.EffectiveTranscript {
	status := in.Status
	if status == "" {
		status = model.TranscriptPending
	}

	if nonBlank(in.UserText) {
		return model.EffectiveTranscript{Content: in.UserText, Source: model.OriginUser, DisplayStatus: model.TranscriptReady}
	}

	if nonBlank(in.AIText) && status == model.TranscriptPending {
		return model.EffectiveTranscript{Content: nil, Source: model.OriginNone, DisplayStatus: status}
	}

	if nonBlank(in.AIText) {
		origin := in.Origin
		if origin == "" || origin == model.OriginNone || origin == model.OriginUser || origin == model.OriginLegacy {
			origin = model.OriginAIModel
		}
		return model.EffectiveTranscript{Content: in.AIText, Source: origin, DisplayStatus: status}
	}

	if nonBlank(in.LegacyText) {
		return model.EffectiveTranscript{Content: in.LegacyText, Source: model.OriginLegacy, DisplayStatus: model.TranscriptReady}
	}

	return model.EffectiveTranscript{Content: nil, Source: model.OriginNone, DisplayStatus: status}
}

// ResolveRecord resolves a stored transcript record; a nil record resolves to nothing
func ResolveRecord(rec *model.TranscriptRecord) model.EffectiveTranscript {
	if rec == nil {
		return Resolve(Input{})
	}
	return Resolve(Input{
		UserText:   rec.UserText,
		AIText:     rec.AIText,
		LegacyText: rec.LegacyText,
		Origin:     rec.Origin,
		Status:     rec.Status,
	})
}

// IsValid reports whether content is long enough to count as a transcript.
// Length is measured in characters after trimming; minLength <= 0 uses DefaultMinLength.
func IsValid(content *string, minLength int) bool {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if content == nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(*content)) >= minLength
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
