package lesson

import (
	"context"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// Repository defines operations for the lesson fields owned by the media engine
type Repository interface {
	// EnsureExists creates a bare lesson row if none exists yet
	EnsureExists(ctx context.Context, id, title string) error
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	// Save persists title, description, video_url, duration and saved_reference; the legacy content is never written
	Save(ctx context.Context, lesson *model.Lesson) error
	Delete(ctx context.Context, id string) error
}
