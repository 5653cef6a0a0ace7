package transcription

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// audioObjectExtensions are uploaded objects Cloud Speech can read directly
var audioObjectExtensions = map[string]bool{
	".wav": true, ".flac": true, ".mp3": true, ".ogg": true, ".opus": true, ".m4a": true,
}

// Router picks transcribers for a source and falls through them in order
type Router struct {
	Captions Transcriber
	Whisper  Transcriber
	Speech   Transcriber
	Video    Transcriber
	log      *logger.Logger
}

// NewRouter creates a Router; any transcriber may be nil when not configured
func NewRouter(captions, whisper, speech, video Transcriber, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{
		Captions: captions,
		Whisper:  whisper,
		Speech:   speech,
		Video:    video,
		log:      log.With("component", "TranscriptionRouter"),
	}
}

// chain returns the transcribers to try for source, most preferred first
func (r *Router) chain(source Source) []Transcriber {
	var candidates []Transcriber
	switch {
	case source.Platform.IsExternalPlatform():
		candidates = []Transcriber{r.Captions, r.Whisper}
	case strings.HasPrefix(source.Reference, "gs://"):
		if audioObjectExtensions[strings.ToLower(filepath.Ext(source.Reference))] {
			candidates = []Transcriber{r.Speech}
		} else {
			candidates = []Transcriber{r.Video}
		}
	case source.Platform == model.PlatformGenericURL, isWebReference(source.Reference):
		candidates = []Transcriber{r.Whisper}
	}

	var out []Transcriber
	for _, t := range candidates {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// Transcribe runs the first transcriber that succeeds
func (r *Router) Transcribe(ctx context.Context, source Source) (*Result, error) {
	chain := r.chain(source)
	if len(chain) == 0 {
		return nil, errors.New(errors.CodeGenerationFailure, "no transcription provider supports this video source")
	}

	var lastErr error
	for i, t := range chain {
		result, err := t.Transcribe(ctx, source)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(chain)-1 {
			r.log.Warn("transcriber failed, trying next", "platform", source.Platform, "error", err)
		}
	}
	return nil, lastErr
}

func isWebReference(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
