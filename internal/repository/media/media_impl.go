package media

import (
	"context"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/repository/common"
	"github.com/jackc/pgx/v5"
)

const mediaColumns = `id, lesson_id, source_kind, platform, reference, ready_reference, upload_session, status, duration_seconds, error_message, updated_at`

// mediaRepository implements Repository using PostgreSQL
type mediaRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &mediaRepository{
		pool: pool,
	}
}

func scanMedia(row pgx.Row) (*model.MediaResource, error) {
	var m model.MediaResource
	err := row.Scan(
		&m.ID,
		&m.LessonID,
		&m.SourceKind,
		&m.Platform,
		&m.Reference,
		&m.ReadyReference,
		&m.UploadSession,
		&m.Status,
		&m.DurationSeconds,
		&m.ErrorMessage,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a media resource by its ID
func (r *mediaRepository) GetByID(ctx context.Context, id string) (*model.MediaResource, error) {
	sql := `SELECT ` + mediaColumns + ` FROM media_resources WHERE id = $1`
	m, err := scanMedia(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if common.IsNoRows(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "media resource not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get media resource")
	}
	return m, nil
}

// GetByLessonID retrieves the media resource owned by a lesson
func (r *mediaRepository) GetByLessonID(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	sql := `SELECT ` + mediaColumns + ` FROM media_resources WHERE lesson_id = $1`
	m, err := scanMedia(r.pool.QueryRow(ctx, sql, lessonID))
	if err != nil {
		if common.IsNoRows(err) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "media resource not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get media resource")
	}
	return m, nil
}

// Upsert creates or fully overwrites the lesson's media resource
func (r *mediaRepository) Upsert(ctx context.Context, m *model.MediaResource) error {
	m.UpdatedAt = time.Now()

	sql := `INSERT INTO media_resources (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (lesson_id) DO UPDATE SET
			source_kind = EXCLUDED.source_kind,
			platform = EXCLUDED.platform,
			reference = EXCLUDED.reference,
			ready_reference = EXCLUDED.ready_reference,
			upload_session = EXCLUDED.upload_session,
			status = EXCLUDED.status,
			duration_seconds = EXCLUDED.duration_seconds,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, sql,
		m.ID,
		m.LessonID,
		m.SourceKind,
		m.Platform,
		m.Reference,
		m.ReadyReference,
		m.UploadSession,
		m.Status,
		m.DurationSeconds,
		m.ErrorMessage,
		m.UpdatedAt,
	)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to save media resource")
	}
	return nil
}

// ClaimCompletion is the compare-and-set that makes upload completion safe under at-least-once delivery
func (r *mediaRepository) ClaimCompletion(ctx context.Context, id, uploadSession string) (*model.MediaResource, bool, error) {
	sql := `UPDATE media_resources SET status = 'PROCESSING', error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND upload_session = $2 AND status IN ('UPLOADING', 'ERROR')
		RETURNING ` + mediaColumns
	m, err := scanMedia(r.pool.QueryRow(ctx, sql, id, uploadSession))
	if err != nil {
		if common.IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, common.HandlePostgreSQLError(err, "failed to claim upload completion")
	}
	return m, true, nil
}

// FinishCompletion is the second half of the completion compare-and-set
func (r *mediaRepository) FinishCompletion(ctx context.Context, m *model.MediaResource, uploadSession string) (bool, error) {
	m.UpdatedAt = time.Now()

	sql := `UPDATE media_resources SET
			source_kind = $3,
			platform = $4,
			reference = $5,
			ready_reference = $6,
			status = $7,
			duration_seconds = $8,
			error_message = $9,
			updated_at = $10
		WHERE id = $1 AND upload_session = $2 AND status = 'PROCESSING'`
	tag, err := r.pool.Exec(ctx, sql,
		m.ID,
		uploadSession,
		m.SourceKind,
		m.Platform,
		m.Reference,
		m.ReadyReference,
		m.Status,
		m.DurationSeconds,
		m.ErrorMessage,
		m.UpdatedAt,
	)
	if err != nil {
		return false, common.HandlePostgreSQLError(err, "failed to finish upload completion")
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateDuration stores a duration learned from a metadata fetch
func (r *mediaRepository) UpdateDuration(ctx context.Context, id string, durationSeconds int) error {
	sql := `UPDATE media_resources SET duration_seconds = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, sql, id, durationSeconds)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to update media duration")
	}
	return nil
}
