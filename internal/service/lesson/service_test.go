package lesson

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
)

type memoryLessonRepo struct {
	mu      sync.Mutex
	lessons map[string]model.Lesson
	saves   int
}

func (r *memoryLessonRepo) EnsureExists(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lessons[id]; !ok {
		r.lessons[id] = model.Lesson{ID: id, Title: title}
	}
	return nil
}

func (r *memoryLessonRepo) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return nil, apperrors.New(apperrors.CodeNotFound, "lesson not found")
	}
	return &l, nil
}

func (r *memoryLessonRepo) Save(ctx context.Context, lesson *model.Lesson) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.lessons[lesson.ID] = *lesson
	return nil
}

func (r *memoryLessonRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lessons, id)
	return nil
}

// staticMediaRepo serves a fixed resource per lesson
type staticMediaRepo struct {
	byLesson map[string]*model.MediaResource
}

func (r *staticMediaRepo) GetByID(ctx context.Context, id string) (*model.MediaResource, error) {
	for _, m := range r.byLesson {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "media resource not found")
}

func (r *staticMediaRepo) GetByLessonID(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	if m, ok := r.byLesson[lessonID]; ok {
		out := *m
		return &out, nil
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "media resource not found")
}

func (r *staticMediaRepo) Upsert(ctx context.Context, resource *model.MediaResource) error {
	return nil
}

func (r *staticMediaRepo) ClaimCompletion(ctx context.Context, id, uploadSession string) (*model.MediaResource, bool, error) {
	return nil, false, nil
}

func (r *staticMediaRepo) FinishCompletion(ctx context.Context, resource *model.MediaResource, uploadSession string) (bool, error) {
	return false, nil
}

func (r *staticMediaRepo) UpdateDuration(ctx context.Context, id string, durationSeconds int) error {
	return nil
}

type memoryTranscriptRepo struct {
	mu      sync.Mutex
	records map[string]model.TranscriptRecord
}

func (r *memoryTranscriptRepo) GetByLessonID(ctx context.Context, lessonID string) (*model.TranscriptRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[lessonID]
	if !ok {
		return &model.TranscriptRecord{LessonID: lessonID, Origin: model.OriginNone, Status: model.TranscriptPending}, nil
	}
	return &rec, nil
}

func (r *memoryTranscriptRepo) BeginGeneration(ctx context.Context, lessonID string, staleBefore time.Time) (bool, error) {
	return false, nil
}

func (r *memoryTranscriptRepo) CompleteGeneration(ctx context.Context, lessonID, text string, origin model.TranscriptOrigin, generatedFrom *string) error {
	return nil
}

func (r *memoryTranscriptRepo) FailGeneration(ctx context.Context, lessonID, message string) error {
	return nil
}

func (r *memoryTranscriptRepo) SetUserText(ctx context.Context, lessonID string, text *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[lessonID]
	if !ok {
		rec = model.TranscriptRecord{LessonID: lessonID, Origin: model.OriginNone, Status: model.TranscriptPending}
	}
	rec.UserText = text
	r.records[lessonID] = rec
	return nil
}

// mockGenerator for testing
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, lessonID string, source transcription.Source) (*transcription.Result, error) {
	args := m.Called(ctx, lessonID, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transcription.Result), args.Error(1)
}

func (m *mockGenerator) StartGeneration(ctx context.Context, lessonID string, source transcription.Source) error {
	return m.Called(ctx, lessonID, source).Error(0)
}

func (m *mockGenerator) GenerateIfNeeded(ctx context.Context, lessonID string, source transcription.Source) (bool, error) {
	args := m.Called(ctx, lessonID, source)
	return args.Bool(0), args.Error(1)
}

func (m *mockGenerator) IsGenerating(ctx context.Context, lessonID string) (bool, error) {
	args := m.Called(ctx, lessonID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGenerator) Get(ctx context.Context, lessonID string) (*model.TranscriptRecord, error) {
	args := m.Called(ctx, lessonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TranscriptRecord), args.Error(1)
}

func (m *mockGenerator) Lease() time.Duration { return 31 * time.Minute }

func (m *mockGenerator) Wait() {}

type fixture struct {
	lessons     *memoryLessonRepo
	media       *staticMediaRepo
	transcripts *memoryTranscriptRepo
	generator   *mockGenerator
	svc         Service
}

func newFixture() *fixture {
	f := &fixture{
		lessons:     &memoryLessonRepo{lessons: map[string]model.Lesson{}},
		media:       &staticMediaRepo{byLesson: map[string]*model.MediaResource{}},
		transcripts: &memoryTranscriptRepo{records: map[string]model.TranscriptRecord{}},
		generator:   &mockGenerator{},
	}
	f.svc = NewService(f.lessons, f.media, f.transcripts, f.generator, 10, nil)
	return f
}

func (f *fixture) withVideo(lessonID, reference string, platform model.Platform) {
	f.media.byLesson[lessonID] = &model.MediaResource{
		ID:              "res-" + lessonID,
		LessonID:        lessonID,
		SourceKind:      model.SourceExternalURL,
		Platform:        platform,
		Reference:       reference,
		ReadyReference:  reference,
		Status:          model.MediaReady,
		DurationSeconds: model.IntPtr(62),
	}
}

func (f *fixture) withSavedLesson(lessonID, savedReference string) {
	f.lessons.lessons[lessonID] = model.Lesson{ID: lessonID, Title: "Intro to Go", SavedReference: model.StringPtr(savedReference)}
}

func (f *fixture) withAITranscript(lessonID, text, generatedFrom string) {
	f.transcripts.records[lessonID] = model.TranscriptRecord{
		LessonID:               lessonID,
		AIText:                 &text,
		Origin:                 model.OriginSpeechModel,
		Status:                 model.TranscriptReady,
		GeneratedFromReference: &generatedFrom,
	}
}

func TestService_Save_NoVideo(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: " Intro to Go ", Description: "basics"})
	require.NoError(t, err)
	assert.Equal(t, ConditionNoVideo, result.Decision.Condition)
	assert.Equal(t, "Intro to Go", result.Lesson.Title)
	assert.Nil(t, result.Lesson.VideoURL)
	assert.Equal(t, 1, f.lessons.saves)
}

func TestService_Save_MissingTranscript(t *testing.T) {
	const ref = "https://vimeo.com/76979871"
	manual := "I typed this transcript by hand"

	tests := []struct {
		name          string
		req           SaveRequest
		setup         func(f *fixture)
		wantBlocked   bool
		wantGenerated bool
		wantSource    model.TranscriptOrigin
	}{
		{
			name:        "blocked without a choice",
			req:         SaveRequest{LessonID: "lesson-1", Title: "Intro"},
			wantBlocked: true,
		},
		{
			name: "generate now starts a background generation",
			req:  SaveRequest{LessonID: "lesson-1", Title: "Intro", Choice: ChoiceGenerateNow},
			setup: func(f *fixture) {
				f.generator.On("StartGeneration", mock.Anything, "lesson-1", transcription.Source{Reference: ref, Platform: model.PlatformVimeo}).
					Return(nil).Once()
			},
			wantGenerated: true,
			wantSource:    model.OriginNone,
		},
		{
			name:       "enter manually with a valid transcript",
			req:        SaveRequest{LessonID: "lesson-1", Title: "Intro", UserTranscript: &manual, Choice: ChoiceEnterManually},
			wantSource: model.OriginUser,
		},
		{
			name:        "enter manually with a short transcript",
			req:         SaveRequest{LessonID: "lesson-1", Title: "Intro", UserTranscript: model.StringPtr("short"), Choice: ChoiceEnterManually},
			wantBlocked: true,
		},
		{
			name:        "choice from the other row is refused",
			req:         SaveRequest{LessonID: "lesson-1", Title: "Intro", Choice: ChoiceKeepExisting},
			wantBlocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.withVideo("lesson-1", ref, model.PlatformVimeo)
			if tt.setup != nil {
				tt.setup(f)
			}

			result, err := f.svc.Save(context.Background(), tt.req)
			if tt.wantBlocked {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeValidationBlocked, apperrors.Code(err))
				decision, ok := BlockedDecision(err)
				require.True(t, ok)
				assert.Equal(t, ConditionMissingTranscript, decision.Condition)
				assert.Equal(t, []Choice{ChoiceEnterManually, ChoiceGenerateNow}, decision.Choices)
				assert.Equal(t, 0, f.lessons.saves, "a blocked save persists nothing")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantGenerated, result.GenerationStarted)
			assert.Equal(t, tt.wantSource, result.Effective.Source)
			assert.Equal(t, ref, model.StringValue(result.Lesson.SavedReference))
			assert.Equal(t, model.IntPtr(62), result.Lesson.Duration)
			f.generator.AssertExpectations(t)
		})
	}
}

func TestService_Save_ReferenceChanged(t *testing.T) {
	const ref1, ref2 = "ref1", "https://vimeo.com/2"
	const oldTranscript = "transcript of the first video"

	newFixtureWithChange := func() *fixture {
		f := newFixture()
		f.withSavedLesson("lesson-1", ref1)
		f.withVideo("lesson-1", ref2, model.PlatformVimeo)
		f.withAITranscript("lesson-1", oldTranscript, ref1)
		return f
	}

	t.Run("three-way choice instead of a silent pass-through", func(t *testing.T) {
		f := newFixtureWithChange()

		_, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro"})
		require.Error(t, err)
		decision, ok := BlockedDecision(err)
		require.True(t, ok)
		assert.Equal(t, ActionBlock, decision.Action)
		assert.Equal(t, ConditionReferenceChanged, decision.Condition)
		assert.Equal(t, []Choice{ChoiceKeepExisting, ChoiceRegenerate, ChoiceEditManually}, decision.Choices)
		assert.Equal(t, ref1, model.StringValue(f.lessons.lessons["lesson-1"].SavedReference))
	})

	t.Run("keep existing leaves the stale reference", func(t *testing.T) {
		f := newFixtureWithChange()

		result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro", Choice: ChoiceKeepExisting})
		require.NoError(t, err)
		assert.Equal(t, oldTranscript, result.Effective.Text())
		assert.Equal(t, ref2, model.StringValue(result.Lesson.SavedReference))
		assert.Equal(t, ref1, model.StringValue(f.transcripts.records["lesson-1"].GeneratedFromReference))
		f.generator.AssertNotCalled(t, "StartGeneration", mock.Anything, mock.Anything, mock.Anything)

		// the next save is no longer a change
		result, err = f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro v2"})
		require.NoError(t, err)
		assert.Equal(t, ConditionUnchanged, result.Decision.Condition)
	})

	t.Run("regenerate starts generation against the new video", func(t *testing.T) {
		f := newFixtureWithChange()
		f.generator.On("StartGeneration", mock.Anything, "lesson-1", transcription.Source{Reference: ref2, Platform: model.PlatformVimeo}).
			Return(nil).Once()

		result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro", Choice: ChoiceRegenerate})
		require.NoError(t, err)
		assert.True(t, result.GenerationStarted)
		assert.Equal(t, model.TranscriptGenerating, result.Effective.DisplayStatus)
		f.generator.AssertExpectations(t)
	})

	t.Run("lost generation claim keeps the change pending", func(t *testing.T) {
		f := newFixtureWithChange()
		f.generator.On("StartGeneration", mock.Anything, "lesson-1", transcription.Source{Reference: ref2, Platform: model.PlatformVimeo}).
			Return(apperrors.New(apperrors.CodeAlreadyInProgress, "transcript generation already in progress")).Once()

		_, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro", Choice: ChoiceRegenerate})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeAlreadyInProgress, apperrors.Code(err))
		assert.Equal(t, 0, f.lessons.saves)
		assert.Equal(t, ref1, model.StringValue(f.lessons.lessons["lesson-1"].SavedReference))

		_, err = f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro"})
		require.Error(t, err)
		decision, ok := BlockedDecision(err)
		require.True(t, ok)
		assert.Equal(t, ConditionReferenceChanged, decision.Condition)
		f.generator.AssertExpectations(t)
	})

	t.Run("edit manually stores the user transcript", func(t *testing.T) {
		f := newFixtureWithChange()
		edited := "rewritten transcript for the new video"

		result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro", UserTranscript: &edited, Choice: ChoiceEditManually})
		require.NoError(t, err)
		assert.Equal(t, model.OriginUser, result.Effective.Source)
		assert.Equal(t, edited, model.StringValue(f.transcripts.records["lesson-1"].UserText))
		assert.Equal(t, oldTranscript, model.StringValue(f.transcripts.records["lesson-1"].AIText))
	})

	t.Run("generation in flight lets the save through", func(t *testing.T) {
		f := newFixtureWithChange()
		rec := f.transcripts.records["lesson-1"]
		rec.Status = model.TranscriptGenerating
		rec.UpdatedAt = time.Now().Add(-time.Minute)
		f.transcripts.records["lesson-1"] = rec

		result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro"})
		require.NoError(t, err)
		assert.Equal(t, ConditionGenerationInFlight, result.Decision.Condition)
	})

	t.Run("expired generation claim no longer counts as in flight", func(t *testing.T) {
		f := newFixtureWithChange()
		rec := f.transcripts.records["lesson-1"]
		rec.Status = model.TranscriptGenerating
		rec.UpdatedAt = time.Now().Add(-2 * time.Hour)
		f.transcripts.records["lesson-1"] = rec

		_, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro"})
		require.Error(t, err)
		decision, ok := BlockedDecision(err)
		require.True(t, ok)
		assert.Equal(t, ConditionReferenceChanged, decision.Condition)
	})
}

func TestService_Save_DoesNotClearUserTranscript(t *testing.T) {
	f := newFixture()
	existing := "my own transcript for this lesson"
	f.transcripts.records["lesson-1"] = model.TranscriptRecord{LessonID: "lesson-1", UserText: &existing, Status: model.TranscriptPending}

	result, err := f.svc.Save(context.Background(), SaveRequest{LessonID: "lesson-1", Title: "Intro", UserTranscript: model.StringPtr("  ")})
	require.NoError(t, err)
	assert.Equal(t, existing, result.Effective.Text())
	assert.Equal(t, existing, model.StringValue(f.transcripts.records["lesson-1"].UserText))
}

func TestService_ClearUserTranscript(t *testing.T) {
	f := newFixture()
	user := "my own transcript for this lesson"
	ai := "the generated transcript"
	f.transcripts.records["lesson-1"] = model.TranscriptRecord{LessonID: "lesson-1", UserText: &user, AIText: &ai, Origin: model.OriginCaptionExtraction, Status: model.TranscriptReady}

	effective, err := f.svc.ClearUserTranscript(context.Background(), "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, ai, effective.Text())
	assert.Equal(t, model.OriginCaptionExtraction, effective.Source)
}

func TestService_GenerateTranscript(t *testing.T) {
	const ref = "https://vimeo.com/76979871"
	source := transcription.Source{Reference: ref, Platform: model.PlatformVimeo}

	t.Run("no playable video", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.GenerateTranscript(context.Background(), "lesson-1", GenerateOptions{})
		assert.Equal(t, apperrors.CodeGenerationFailure, apperrors.Code(err))
	})

	t.Run("skips when already generated", func(t *testing.T) {
		f := newFixture()
		f.withVideo("lesson-1", ref, model.PlatformVimeo)
		f.generator.On("GenerateIfNeeded", mock.Anything, "lesson-1", source).Return(false, nil).Once()

		outcome, err := f.svc.GenerateTranscript(context.Background(), "lesson-1", GenerateOptions{})
		require.NoError(t, err)
		assert.True(t, outcome.Skipped)
		f.generator.AssertExpectations(t)
	})

	t.Run("force regenerates", func(t *testing.T) {
		f := newFixture()
		f.withVideo("lesson-1", ref, model.PlatformVimeo)
		f.generator.On("Generate", mock.Anything, "lesson-1", source).
			Return(&transcription.Result{Text: "fresh", Origin: model.OriginExternalCaptions}, nil).Once()

		outcome, err := f.svc.GenerateTranscript(context.Background(), "lesson-1", GenerateOptions{Force: true})
		require.NoError(t, err)
		assert.True(t, outcome.Started)
		assert.Equal(t, model.OriginExternalCaptions, outcome.Result.Origin)
	})

	t.Run("background request already in progress", func(t *testing.T) {
		f := newFixture()
		f.withVideo("lesson-1", ref, model.PlatformVimeo)
		f.generator.On("StartGeneration", mock.Anything, "lesson-1", source).
			Return(apperrors.New(apperrors.CodeAlreadyInProgress, "busy")).Once()

		_, err := f.svc.GenerateTranscript(context.Background(), "lesson-1", GenerateOptions{Background: true})
		assert.Equal(t, apperrors.CodeAlreadyInProgress, apperrors.Code(err))
	})
}
