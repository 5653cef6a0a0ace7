package transcript

import (
	"context"
	"time"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// Repository defines operations for TranscriptRecord persistence
type Repository interface {
	// GetByLessonID returns the lesson's record; a lesson without a transcript row yields a PENDING record
	GetByLessonID(ctx context.Context, lessonID string) (*model.TranscriptRecord, error)
	// BeginGeneration marks the record GENERATING unless another generation holds it. A GENERATING
	// row last touched before staleBefore is an abandoned claim and is taken over.
	BeginGeneration(ctx context.Context, lessonID string, staleBefore time.Time) (bool, error)
	CompleteGeneration(ctx context.Context, lessonID, text string, origin model.TranscriptOrigin, generatedFrom *string) error
	// FailGeneration marks the record FAILED and keeps any previous machine transcript
	FailGeneration(ctx context.Context, lessonID, message string) error
	SetUserText(ctx context.Context, lessonID string, text *string) error
}
