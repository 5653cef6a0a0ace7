package transcript

import (
	"context"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/repository/common"
)

// transcriptRepository implements Repository using PostgreSQL
type transcriptRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &transcriptRepository{
		pool: pool,
	}
}

// GetByLessonID reads the transcript row joined with the lesson's legacy content
func (r *transcriptRepository) GetByLessonID(ctx context.Context, lessonID string) (*model.TranscriptRecord, error) {
	sql := `SELECT l.id, t.ai_transcript, t.user_transcript, l.content,
			COALESCE(t.transcript_source, 'NONE'), COALESCE(t.transcript_status, 'PENDING'),
			t.generated_from_reference, t.error_message, COALESCE(t.updated_at, l.updated_at)
		FROM lessons l
		LEFT JOIN transcripts t ON t.lesson_id = l.id
		WHERE l.id = $1`
	row := r.pool.QueryRow(ctx, sql, lessonID)

	var record model.TranscriptRecord
	err := row.Scan(
		&record.LessonID,
		&record.AIText,
		&record.UserText,
		&record.LegacyText,
		&record.Origin,
		&record.Status,
		&record.GeneratedFromReference,
		&record.ErrorMessage,
		&record.UpdatedAt,
	)
	if err != nil {
		if common.IsNoRows(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "lesson not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get transcript")
	}
	return &record, nil
}

// BeginGeneration is the per-lesson compare-and-set guarding transcript generation
func (r *transcriptRepository) BeginGeneration(ctx context.Context, lessonID string, staleBefore time.Time) (bool, error) {
	sql := `INSERT INTO transcripts (lesson_id, transcript_status, updated_at)
		VALUES ($1, 'GENERATING', NOW())
		ON CONFLICT (lesson_id) DO UPDATE SET
			transcript_status = 'GENERATING',
			error_message = NULL,
			updated_at = NOW()
		WHERE transcripts.transcript_status <> 'GENERATING' OR transcripts.updated_at < $2`
	tag, err := r.pool.Exec(ctx, sql, lessonID, staleBefore)
	if err != nil {
		return false, common.HandlePostgreSQLError(err, "failed to begin transcript generation")
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteGeneration stores the machine transcript and the reference it was generated from
func (r *transcriptRepository) CompleteGeneration(ctx context.Context, lessonID, text string, origin model.TranscriptOrigin, generatedFrom *string) error {
	sql := `UPDATE transcripts SET
			ai_transcript = $2,
			transcript_source = $3,
			transcript_status = 'READY',
			generated_from_reference = $4,
			error_message = NULL,
			updated_at = NOW()
		WHERE lesson_id = $1`
	tag, err := r.pool.Exec(ctx, sql, lessonID, text, origin, generatedFrom)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to complete transcript generation")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.CodeNotFound, "transcript not found")
	}
	return nil
}

// FailGeneration records a failed generation
func (r *transcriptRepository) FailGeneration(ctx context.Context, lessonID, message string) error {
	sql := `UPDATE transcripts SET
			transcript_status = 'FAILED',
			error_message = $2,
			updated_at = NOW()
		WHERE lesson_id = $1`
	_, err := r.pool.Exec(ctx, sql, lessonID, message)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to record transcript failure")
	}
	return nil
}

// SetUserText replaces the user transcript; nil clears it
func (r *transcriptRepository) SetUserText(ctx context.Context, lessonID string, text *string) error {
	sql := `INSERT INTO transcripts (lesson_id, user_transcript, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (lesson_id) DO UPDATE SET
			user_transcript = EXCLUDED.user_transcript,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, sql, lessonID, text)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to save user transcript")
	}
	return nil
}
