package lesson

import (
	"context"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/repository/common"
)

// lessonRepository implements Repository using PostgreSQL
type lessonRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &lessonRepository{
		pool: pool,
	}
}

// EnsureExists inserts the lesson row unless it is already present
func (r *lessonRepository) EnsureExists(ctx context.Context, id, title string) error {
	sql := `INSERT INTO lessons (id, title) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, sql, id, title)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to create lesson")
	}
	return nil
}

// GetByID retrieves a lesson by its ID
func (r *lessonRepository) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	sql := `SELECT id, title, description, content, video_url, duration, saved_reference, updated_at
		FROM lessons WHERE id = $1`
	row := r.pool.QueryRow(ctx, sql, id)

	var lesson model.Lesson
	err := row.Scan(
		&lesson.ID,
		&lesson.Title,
		&lesson.Description,
		&lesson.Content,
		&lesson.VideoURL,
		&lesson.Duration,
		&lesson.SavedReference,
		&lesson.UpdatedAt,
	)
	if err != nil {
		if common.IsNoRows(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "lesson not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get lesson")
	}
	return &lesson, nil
}

// Save upserts the media-related lesson fields
func (r *lessonRepository) Save(ctx context.Context, lesson *model.Lesson) error {
	if lesson.UpdatedAt.IsZero() {
		lesson.UpdatedAt = time.Now()
	}

	sql := `INSERT INTO lessons (id, title, description, video_url, duration, saved_reference, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			video_url = EXCLUDED.video_url,
			duration = EXCLUDED.duration,
			saved_reference = EXCLUDED.saved_reference,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, sql,
		lesson.ID,
		lesson.Title,
		lesson.Description,
		lesson.VideoURL,
		lesson.Duration,
		lesson.SavedReference,
		lesson.UpdatedAt,
	)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to save lesson")
	}
	return nil
}

// Delete deletes a lesson; its media resource and transcript go with it
func (r *lessonRepository) Delete(ctx context.Context, id string) error {
	sql := "DELETE FROM lessons WHERE id = $1"
	_, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to delete lesson")
	}
	return nil
}
