// Package transcription generates machine transcripts for lesson videos.
package transcription

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	transcriptrepo "github.com/Taichi-iskw/lesson-media/internal/repository/transcript"
)

// Service defines operations for transcript generation
type Service interface {
	// Generate runs a generation for the lesson and waits for it
	Generate(ctx context.Context, lessonID string, source Source) (*Result, error)

	// StartGeneration claims the lesson and generates in the background
	StartGeneration(ctx context.Context, lessonID string, source Source) error

	// GenerateIfNeeded generates unless a READY machine transcript already exists for the same reference
	GenerateIfNeeded(ctx context.Context, lessonID string, source Source) (bool, error)

	IsGenerating(ctx context.Context, lessonID string) (bool, error)

	// Lease is how long a GENERATING claim holds before it counts as abandoned
	Lease() time.Duration

	Get(ctx context.Context, lessonID string) (*model.TranscriptRecord, error)

	// Wait blocks until background generations have finished
	Wait()
}

// Options tunes the transcription service
type Options struct {
	Timeout time.Duration
	// Lease defaults to Timeout plus a minute and never drops below Timeout
	Lease time.Duration
}

type service struct {
	repo        transcriptrepo.Repository
	transcriber Transcriber
	opts        Options
	log         *logger.Logger
	wg          sync.WaitGroup
}

// NewService creates a new transcription Service
func NewService(repo transcriptrepo.Repository, transcriber Transcriber, opts Options, log *logger.Logger) Service {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if opts.Lease < opts.Timeout {
		opts.Lease = opts.Timeout + time.Minute
	}
	return &service{
		repo:        repo,
		transcriber: transcriber,
		opts:        opts,
		log:         log.With("service", "TranscriptionService"),
	}
}

func validateRequest(lessonID string, source Source) error {
	if lessonID == "" {
		return errors.New(errors.CodeInvalidArg, "lesson ID is required")
	}
	if strings.TrimSpace(source.Reference) == "" {
		return errors.New(errors.CodeGenerationFailure, "lesson has no video to transcribe")
	}
	return nil
}

func (s *service) claim(ctx context.Context, lessonID string) error {
	claimed, err := s.repo.BeginGeneration(ctx, lessonID, time.Now().Add(-s.opts.Lease))
	if err != nil {
		return err
	}
	if !claimed {
		return errors.New(errors.CodeAlreadyInProgress, "a transcript is already being generated for this lesson")
	}
	return nil
}

// Generate runs a generation for the lesson and waits for it
func (s *service) Generate(ctx context.Context, lessonID string, source Source) (*Result, error) {
	if err := validateRequest(lessonID, source); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, lessonID); err != nil {
		return nil, err
	}
	return s.run(ctx, lessonID, source)
}

// StartGeneration claims the lesson and generates in the background
func (s *service) StartGeneration(ctx context.Context, lessonID string, source Source) error {
	if err := validateRequest(lessonID, source); err != nil {
		return err
	}
	if err := s.claim(ctx, lessonID); err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(bg, lessonID, source)
	}()
	return nil
}

// GenerateIfNeeded generates unless a READY machine transcript already exists for the same reference
func (s *service) GenerateIfNeeded(ctx context.Context, lessonID string, source Source) (bool, error) {
	if err := validateRequest(lessonID, source); err != nil {
		return false, err
	}

	record, err := s.repo.GetByLessonID(ctx, lessonID)
	if err != nil {
		return false, err
	}
	if record.Status == model.TranscriptReady &&
		strings.TrimSpace(model.StringValue(record.AIText)) != "" &&
		model.StringValue(record.GeneratedFromReference) == source.Reference {
		return false, nil
	}

	if _, err := s.Generate(ctx, lessonID, source); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) IsGenerating(ctx context.Context, lessonID string) (bool, error) {
	record, err := s.repo.GetByLessonID(ctx, lessonID)
	if err != nil {
		return false, err
	}
	return record.GenerationActive(time.Now(), s.opts.Lease), nil
}

func (s *service) Lease() time.Duration {
	return s.opts.Lease
}

func (s *service) Get(ctx context.Context, lessonID string) (*model.TranscriptRecord, error) {
	return s.repo.GetByLessonID(ctx, lessonID)
}

func (s *service) Wait() {
	s.wg.Wait()
}

// run executes a claimed generation; the claim is always released with a terminal status
func (s *service) run(ctx context.Context, lessonID string, source Source) (*Result, error) {
	log := s.log.With("lesson_id", lessonID, "platform", source.Platform)
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	result, err := s.transcriber.Transcribe(runCtx, source)
	timedOut := stderrors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err == nil && (result == nil || strings.TrimSpace(result.Text) == "") {
		err = errors.New(errors.CodeGenerationFailure, "provider returned an empty transcript")
	}

	// The caller may have gone away; the terminal status must still be written.
	writeCtx := context.WithoutCancel(ctx)

	if err != nil {
		message := failureMessage(err)
		if timedOut {
			message = "transcription timed out"
		}
		if ferr := s.repo.FailGeneration(writeCtx, lessonID, message); ferr != nil {
			log.Error("failed to record generation failure", "error", ferr)
		}
		log.Warn("transcript generation failed", "error", err, "elapsed", time.Since(started))
		return nil, errors.Wrap(err, errors.CodeGenerationFailure, "transcript generation failed: "+message)
	}

	origin := result.Origin
	if origin == "" || origin == model.OriginNone {
		origin = model.OriginAIModel
	}
	text := strings.TrimSpace(result.Text)
	reference := source.Reference

	if err := s.repo.CompleteGeneration(writeCtx, lessonID, text, origin, &reference); err != nil {
		if ferr := s.repo.FailGeneration(writeCtx, lessonID, "failed to store transcript"); ferr != nil {
			log.Error("failed to record generation failure", "error", ferr)
		}
		return nil, errors.Wrap(err, errors.CodeGenerationFailure, "failed to store transcript")
	}

	log.Info("transcript generated", "origin", origin, "chars", len(text), "elapsed", time.Since(started))
	return &Result{Text: text, Origin: origin}, nil
}

// failureMessage returns the outermost application message of err
func failureMessage(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
