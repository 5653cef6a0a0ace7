// Package lesson saves lessons through the transcript consistency guard.
package lesson

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	lessonrepo "github.com/Taichi-iskw/lesson-media/internal/repository/lesson"
	mediarepo "github.com/Taichi-iskw/lesson-media/internal/repository/media"
	transcriptrepo "github.com/Taichi-iskw/lesson-media/internal/repository/transcript"
	"github.com/Taichi-iskw/lesson-media/internal/service/resolution"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
)

// SaveRequest is a lesson edit. A nil UserTranscript leaves the stored one untouched.
type SaveRequest struct {
	LessonID       string  `json:"lesson_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	UserTranscript *string `json:"user_transcript,omitempty"`
	Choice         Choice  `json:"choice,omitempty"`
}

// SaveResult is the persisted lesson and the transcript it resolved to
type SaveResult struct {
	Lesson            *model.Lesson             `json:"lesson"`
	Effective         model.EffectiveTranscript `json:"effective_transcript"`
	Decision          Decision                  `json:"decision"`
	GenerationStarted bool                      `json:"generation_started"`
}

// GenerateOptions controls an explicit transcript request
type GenerateOptions struct {
	// Force regenerates even when a READY transcript exists for the current video
	Force bool
	// Background returns once the generation is claimed
	Background bool
}

// GenerateOutcome describes what an explicit transcript request did
type GenerateOutcome struct {
	Started bool                  `json:"started"`
	Skipped bool                  `json:"skipped"`
	Result  *transcription.Result `json:"result,omitempty"`
}

// Service defines lesson save and transcript operations
type Service interface {
	Save(ctx context.Context, req SaveRequest) (*SaveResult, error)
	// ClearUserTranscript is the only way user text is removed
	ClearUserTranscript(ctx context.Context, lessonID string) (*model.EffectiveTranscript, error)
	Effective(ctx context.Context, lessonID string) (*model.EffectiveTranscript, error)
	GenerateTranscript(ctx context.Context, lessonID string, opts GenerateOptions) (*GenerateOutcome, error)
}

type service struct {
	lessonRepo     lessonrepo.Repository
	mediaRepo      mediarepo.Repository
	transcriptRepo transcriptrepo.Repository
	generator      transcription.Service
	minLength      int
	log            *logger.Logger
}

// NewService creates a new lesson Service
func NewService(
	lessonRepo lessonrepo.Repository,
	mediaRepo mediarepo.Repository,
	transcriptRepo transcriptrepo.Repository,
	generator transcription.Service,
	minLength int,
	log *logger.Logger,
) Service {
	if log == nil {
		log = logger.NewNop()
	}
	if minLength <= 0 {
		minLength = resolution.DefaultMinLength
	}
	return &service{
		lessonRepo:     lessonRepo,
		mediaRepo:      mediaRepo,
		transcriptRepo: transcriptRepo,
		generator:      generator,
		minLength:      minLength,
		log:            log.With("service", "LessonService"),
	}
}

// Save evaluates the guard and persists the lesson when allowed
func (s *service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.LessonID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "lesson ID is required")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "title is required")
	}

	if err := s.lessonRepo.EnsureExists(ctx, req.LessonID, title); err != nil {
		return nil, err
	}
	lesson, err := s.lessonRepo.GetByID(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	media, err := s.currentMedia(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}
	record, err := s.transcriptRepo.GetByLessonID(ctx, req.LessonID)
	if err != nil {
		return nil, err
	}

	userEdit := req.UserTranscript != nil && strings.TrimSpace(*req.UserTranscript) != ""
	if userEdit {
		record.UserText = req.UserTranscript
	}

	current := media.PlayableReference()
	effective := resolution.ResolveRecord(record)
	decision := Evaluate(GuardInput{
		CurrentReference:       current,
		SavedReference:         model.StringValue(lesson.SavedReference),
		GeneratedFromReference: model.StringValue(record.GeneratedFromReference),
		Effective:              effective,
		GenerationInFlight:     record.GenerationActive(time.Now(), s.generator.Lease()),
		MinLength:              s.minLength,
	})

	generate := false
	if decision.Action == ActionBlock {
		if req.Choice == ChoiceNone || !decision.Allows(req.Choice) {
			return nil, newValidationBlocked(decision, "save needs a decision about the transcript")
		}
		switch req.Choice {
		case ChoiceEnterManually, ChoiceEditManually:
			if !userEdit || !resolution.IsValid(req.UserTranscript, s.minLength) {
				return nil, newValidationBlocked(decision, "the manual transcript is too short")
			}
		case ChoiceGenerateNow, ChoiceRegenerate:
			if s.generator == nil {
				return nil, apperrors.New(apperrors.CodeGenerationFailure, "transcript generation is not configured")
			}
			generate = true
		case ChoiceKeepExisting:
			// saved as is; generated_from_reference keeps pointing at the old video
		}
	}

	// Claim before persisting; a lost claim leaves the saved reference untouched.
	if generate {
		source := transcription.Source{Reference: current, Platform: media.Platform}
		if err := s.generator.StartGeneration(ctx, req.LessonID, source); err != nil {
			return nil, err
		}
	}

	lesson.Title = title
	lesson.Description = req.Description
	lesson.VideoURL = model.StringPtr(current)
	lesson.SavedReference = model.StringPtr(current)
	lesson.Duration = nil
	if media != nil && current != "" {
		lesson.Duration = media.DurationSeconds
	}
	lesson.UpdatedAt = time.Now()
	if err := s.lessonRepo.Save(ctx, lesson); err != nil {
		return nil, err
	}
	if userEdit {
		if err := s.transcriptRepo.SetUserText(ctx, req.LessonID, req.UserTranscript); err != nil {
			return nil, err
		}
	}

	result := &SaveResult{Lesson: lesson, Effective: effective, Decision: decision}
	if generate {
		result.GenerationStarted = true
		result.Effective.DisplayStatus = model.TranscriptGenerating
	}

	s.log.Info("lesson saved",
		"lesson_id", req.LessonID,
		"condition", decision.Condition,
		"choice", req.Choice,
		"transcript_source", effective.Source,
		"generation_started", result.GenerationStarted,
	)
	return result, nil
}

// currentMedia returns the lesson's resource or nil when it has none
func (s *service) currentMedia(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	media, err := s.mediaRepo.GetByLessonID(ctx, lessonID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return media, nil
}

func (s *service) ClearUserTranscript(ctx context.Context, lessonID string) (*model.EffectiveTranscript, error) {
	if lessonID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "lesson ID is required")
	}
	if err := s.transcriptRepo.SetUserText(ctx, lessonID, nil); err != nil {
		return nil, err
	}
	s.log.Info("user transcript cleared", "lesson_id", lessonID)
	return s.Effective(ctx, lessonID)
}

func (s *service) Effective(ctx context.Context, lessonID string) (*model.EffectiveTranscript, error) {
	record, err := s.transcriptRepo.GetByLessonID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	effective := resolution.ResolveRecord(record)
	return &effective, nil
}

// GenerateTranscript runs an explicit, user-requested generation against the lesson's playable video
func (s *service) GenerateTranscript(ctx context.Context, lessonID string, opts GenerateOptions) (*GenerateOutcome, error) {
	if s.generator == nil {
		return nil, apperrors.New(apperrors.CodeGenerationFailure, "transcript generation is not configured")
	}
	media, err := s.currentMedia(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	reference := media.PlayableReference()
	if reference == "" {
		return nil, apperrors.New(apperrors.CodeGenerationFailure, "lesson has no playable video to transcribe")
	}
	source := transcription.Source{Reference: reference, Platform: media.Platform}

	switch {
	case opts.Background:
		if err := s.generator.StartGeneration(ctx, lessonID, source); err != nil {
			return nil, err
		}
		return &GenerateOutcome{Started: true}, nil
	case opts.Force:
		result, err := s.generator.Generate(ctx, lessonID, source)
		if err != nil {
			return nil, err
		}
		return &GenerateOutcome{Started: true, Result: result}, nil
	default:
		ran, err := s.generator.GenerateIfNeeded(ctx, lessonID, source)
		if err != nil {
			return nil, err
		}
		return &GenerateOutcome{Started: ran, Skipped: !ran}, nil
	}
}
