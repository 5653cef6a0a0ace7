package transcript

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transcriptColumns = []string{"id", "ai_transcript", "user_transcript", "content", "transcript_source", "transcript_status", "generated_from_reference", "error_message", "updated_at"}

func TestTranscriptRepository_GetByLessonID(t *testing.T) {
	updatedAt := time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		setup    func(mock pgxmock.PgxPoolIface)
		want     *model.TranscriptRecord
		wantCode string
	}{
		{
			name: "record with machine transcript",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(transcriptColumns).AddRow(
					"lesson-1", model.StringPtr("machine words"), (*string)(nil), (*string)(nil),
					model.OriginSpeechModel, model.TranscriptReady, model.StringPtr("gs://media/uploads/s1"), (*string)(nil), updatedAt,
				)
				mock.ExpectQuery("FROM lessons l\\s+LEFT JOIN transcripts t ON t.lesson_id = l.id\\s+WHERE l.id = \\$1").
					WithArgs("lesson-1").
					WillReturnRows(rows)
			},
			want: &model.TranscriptRecord{
				LessonID:               "lesson-1",
				AIText:                 model.StringPtr("machine words"),
				Origin:                 model.OriginSpeechModel,
				Status:                 model.TranscriptReady,
				GeneratedFromReference: model.StringPtr("gs://media/uploads/s1"),
				UpdatedAt:              updatedAt,
			},
		},
		{
			name: "lesson without transcript row carries legacy text",
			setup: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(transcriptColumns).AddRow(
					"lesson-1", (*string)(nil), (*string)(nil), model.StringPtr("old notes from the course"),
					model.OriginNone, model.TranscriptPending, (*string)(nil), (*string)(nil), updatedAt,
				)
				mock.ExpectQuery("LEFT JOIN transcripts").
					WithArgs("lesson-1").
					WillReturnRows(rows)
			},
			want: &model.TranscriptRecord{
				LessonID:   "lesson-1",
				LegacyText: model.StringPtr("old notes from the course"),
				Origin:     model.OriginNone,
				Status:     model.TranscriptPending,
				UpdatedAt:  updatedAt,
			},
		},
		{
			name: "lesson not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery("LEFT JOIN transcripts").
					WithArgs("lesson-1").
					WillReturnError(pgx.ErrNoRows)
			},
			wantCode: apperrors.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setup(mock)
			repo := NewRepository(mock)

			got, err := repo.GetByLessonID(context.Background(), "lesson-1")
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.Code(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "pgxmock expectations were not met")
		})
	}
}

func TestTranscriptRepository_BeginGeneration(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		execErr  error
		want     bool
		wantErr  bool
	}{
		{name: "claims idle record", affected: 1, want: true},
		{name: "another generation holds the lesson", affected: 0, want: false},
		{name: "takes over an expired claim", affected: 1, want: true},
		{name: "database error", execErr: assert.AnError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			staleBefore := time.Date(2026, 10, 1, 11, 0, 0, 0, time.UTC)
			exp := mock.ExpectExec("INSERT INTO transcripts .* WHERE transcripts.transcript_status <> 'GENERATING' OR transcripts.updated_at < \\$2").
				WithArgs("lesson-1", staleBefore)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))
			}

			repo := NewRepository(mock)
			got, err := repo.BeginGeneration(context.Background(), "lesson-1", staleBefore)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTranscriptRepository_CompleteGeneration(t *testing.T) {
	ref := model.StringPtr("https://vimeo.com/76979871")

	t.Run("stores transcript", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("UPDATE transcripts SET").
			WithArgs("lesson-1", "hello world", model.OriginCaptionExtraction, ref).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewRepository(mock)
		require.NoError(t, repo.CompleteGeneration(context.Background(), "lesson-1", "hello world", model.OriginCaptionExtraction, ref))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("UPDATE transcripts SET").
			WithArgs("lesson-1", "hello world", model.OriginCaptionExtraction, ref).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewRepository(mock)
		err = repo.CompleteGeneration(context.Background(), "lesson-1", "hello world", model.OriginCaptionExtraction, ref)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.Code(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTranscriptRepository_FailGeneration(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// ai_transcript is not part of the statement so the previous transcript survives
	mock.ExpectExec("UPDATE transcripts SET\\s+transcript_status = 'FAILED',\\s+error_message = \\$2").
		WithArgs("lesson-1", "provider timeout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRepository(mock)
	require.NoError(t, repo.FailGeneration(context.Background(), "lesson-1", "provider timeout"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptRepository_SetUserText(t *testing.T) {
	tests := []struct {
		name string
		text *string
	}{
		{name: "set text", text: model.StringPtr("my own words")},
		{name: "clear text", text: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec("INSERT INTO transcripts \\(lesson_id, user_transcript, updated_at\\)").
				WithArgs("lesson-1", tt.text).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))

			repo := NewRepository(mock)
			require.NoError(t, repo.SetUserText(context.Background(), "lesson-1", tt.text))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
