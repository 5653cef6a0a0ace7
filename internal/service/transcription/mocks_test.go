package transcription

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/stretchr/testify/mock"
)

// mockCmdRunner for testing
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	callArgs := m.Called(ctx, name, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).([]byte), callArgs.Error(1)
}

// argValue returns the value following flag in args
func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// stubTranscriber returns a fixed result, optionally blocking until released
type stubTranscriber struct {
	result  *Result
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (s *stubTranscriber) Transcribe(ctx context.Context, source Source) (*Result, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := *s.result
	return &out, nil
}

// memoryTranscriptRepo mirrors the SQL compare-and-set semantics of the transcript repository
type memoryTranscriptRepo struct {
	mu      sync.Mutex
	records map[string]model.TranscriptRecord
}

func newMemoryTranscriptRepo() *memoryTranscriptRepo {
	return &memoryTranscriptRepo{records: map[string]model.TranscriptRecord{}}
}

func (r *memoryTranscriptRepo) get(lessonID string) model.TranscriptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[lessonID]
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
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[lessonID]
	if !ok {
		rec = model.TranscriptRecord{LessonID: lessonID, Origin: model.OriginNone}
	}
	if rec.Status == model.TranscriptGenerating && !rec.UpdatedAt.Before(staleBefore) {
		return false, nil
	}
	rec.Status = model.TranscriptGenerating
	rec.ErrorMessage = nil
	rec.UpdatedAt = time.Now()
	r.records[lessonID] = rec
	return true, nil
}

func (r *memoryTranscriptRepo) CompleteGeneration(ctx context.Context, lessonID, text string, origin model.TranscriptOrigin, generatedFrom *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[lessonID]
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "transcript not found")
	}
	rec.AIText = &text
	rec.Origin = origin
	rec.Status = model.TranscriptReady
	rec.GeneratedFromReference = generatedFrom
	r.records[lessonID] = rec
	return nil
}

func (r *memoryTranscriptRepo) FailGeneration(ctx context.Context, lessonID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[lessonID]
	rec.Status = model.TranscriptFailed
	rec.ErrorMessage = &message
	r.records[lessonID] = rec
	return nil
}

func (r *memoryTranscriptRepo) SetUserText(ctx context.Context, lessonID string, text *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[lessonID]
	rec.LessonID = lessonID
	rec.UserText = text
	r.records[lessonID] = rec
	return nil
}
