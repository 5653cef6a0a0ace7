package media

import (
	"context"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// Repository defines operations for MediaResource persistence
type Repository interface {
	GetByID(ctx context.Context, id string) (*model.MediaResource, error)
	GetByLessonID(ctx context.Context, lessonID string) (*model.MediaResource, error)
	// Upsert writes the full resource row keyed by lesson (a lesson owns exactly one resource)
	Upsert(ctx context.Context, resource *model.MediaResource) error
	// ClaimCompletion moves UPLOADING/ERROR to PROCESSING for the given session.
	// It returns false when another delivery already claimed it or the session does not match.
	ClaimCompletion(ctx context.Context, id, uploadSession string) (*model.MediaResource, bool, error)
	// FinishCompletion writes the outcome of a claimed completion. It returns false when the
	// resource is no longer PROCESSING for that session, and then writes nothing.
	FinishCompletion(ctx context.Context, resource *model.MediaResource, uploadSession string) (bool, error)
	UpdateDuration(ctx context.Context, id string, durationSeconds int) error
}
