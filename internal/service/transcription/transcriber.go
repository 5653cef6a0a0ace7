package transcription

import (
	"context"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// Source is the media a transcript is generated from
type Source struct {
	Reference string         `json:"reference"`
	Platform  model.Platform `json:"platform"`
}

// Result is a machine transcript and the method that produced it
type Result struct {
	Text   string                 `json:"text"`
	Origin model.TranscriptOrigin `json:"origin"`
}

// Transcriber turns a media source into transcript text
type Transcriber interface {
	Transcribe(ctx context.Context, source Source) (*Result, error)
}
