package model

import "time"

// TranscriptOrigin is the method or provider that produced a transcript
type TranscriptOrigin string

const (
	OriginNone              TranscriptOrigin = "NONE"
	OriginAIModel           TranscriptOrigin = "AI_MODEL"
	OriginUser              TranscriptOrigin = "USER"
	OriginCaptionExtraction TranscriptOrigin = "CAPTION_EXTRACTION"
	OriginSpeechModel       TranscriptOrigin = "SPEECH_MODEL"
	OriginExternalCaptions  TranscriptOrigin = "EXTERNAL_CAPTIONS"
	OriginLegacy            TranscriptOrigin = "LEGACY"
)

// TranscriptStatus is the generation status of a lesson's machine transcript
type TranscriptStatus string

const (
	TranscriptPending    TranscriptStatus = "PENDING"
	TranscriptGenerating TranscriptStatus = "GENERATING"
	TranscriptReady      TranscriptStatus = "READY"
	TranscriptFailed     TranscriptStatus = "FAILED"
)

// TranscriptRecord holds a lesson's machine and human transcripts.
// Origin describes AIText; the effective source is computed by the resolution policy.
type TranscriptRecord struct {
	LessonID               string           `json:"lesson_id" db:"lesson_id"`
	AIText                 *string          `json:"ai_transcript,omitempty" db:"ai_transcript"`
	UserText               *string          `json:"user_transcript,omitempty" db:"user_transcript"`
	LegacyText             *string          `json:"legacy_text,omitempty" db:"content"`
	Origin                 TranscriptOrigin `json:"transcript_source" db:"transcript_source"`
	Status                 TranscriptStatus `json:"transcript_status" db:"transcript_status"`
	GeneratedFromReference *string          `json:"generated_from_reference,omitempty" db:"generated_from_reference"`
	ErrorMessage           *string          `json:"error_message,omitempty" db:"error_message"`
	UpdatedAt              time.Time        `json:"updated_at" db:"updated_at"`
}

// GenerationActive reports whether a GENERATING claim is still inside its lease
func (r *TranscriptRecord) GenerationActive(now time.Time, lease time.Duration) bool {
	return r.Status == TranscriptGenerating && now.Sub(r.UpdatedAt) < lease
}

// EffectiveTranscript is the single transcript chosen for display, persistence and indexing
type EffectiveTranscript struct {
	Content       *string          `json:"content"`
	Source        TranscriptOrigin `json:"source"`
	DisplayStatus TranscriptStatus `json:"display_status"`
}

// Text returns the effective content or "" when there is none
func (e EffectiveTranscript) Text() string {
	if e.Content == nil {
		return ""
	}
	return *e.Content
}
