package media

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	mediaSvc "github.com/Taichi-iskw/lesson-media/internal/service/media"
)

// mockMediaService is a function-field fake of the media service
type mockMediaService struct {
	PrepareFunc          func(ctx context.Context, lessonID, title string) (*mediaSvc.PrepareResult, error)
	CompleteUploadFunc   func(ctx context.Context, resourceID, uploadSession string) (*mediaSvc.UploadCompletion, error)
	RegisterExternalFunc func(ctx context.Context, lessonID, rawURL string) (*mediaSvc.Registration, error)
	FetchMetadataFunc    func(ctx context.Context, resourceID string) (*model.VideoMetadata, error)
	GetFunc              func(ctx context.Context, lessonID string) (*model.MediaResource, error)

	fetchCalls int
}

func (m *mockMediaService) Prepare(ctx context.Context, lessonID, title string) (*mediaSvc.PrepareResult, error) {
	return m.PrepareFunc(ctx, lessonID, title)
}

func (m *mockMediaService) CompleteUpload(ctx context.Context, resourceID, uploadSession string) (*mediaSvc.UploadCompletion, error) {
	return m.CompleteUploadFunc(ctx, resourceID, uploadSession)
}

func (m *mockMediaService) RegisterExternal(ctx context.Context, lessonID, rawURL string) (*mediaSvc.Registration, error) {
	return m.RegisterExternalFunc(ctx, lessonID, rawURL)
}

func (m *mockMediaService) FetchMetadata(ctx context.Context, resourceID string) (*model.VideoMetadata, error) {
	m.fetchCalls++
	return m.FetchMetadataFunc(ctx, resourceID)
}

func (m *mockMediaService) Get(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	return m.GetFunc(ctx, lessonID)
}

func run(t *testing.T, svc mediaSvc.Service, args ...string) (string, error) {
	t.Helper()
	cleaned := false
	open := func(ctx context.Context) (mediaSvc.Service, func(), error) {
		return svc, func() { cleaned = true }, nil
	}

	cmd := NewMediaCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		assert.True(t, cleaned, "service cleanup should run")
	}
	return out.String(), err
}

func TestPrepareCommand(t *testing.T) {
	svc := &mockMediaService{
		PrepareFunc: func(ctx context.Context, lessonID, title string) (*mediaSvc.PrepareResult, error) {
			assert.Equal(t, "lesson-1", lessonID)
			assert.Equal(t, "Intro", title)
			return &mediaSvc.PrepareResult{ResourceID: "res-1", UploadSession: "s1", UploadURL: "https://storage.example/signed"}, nil
		},
	}

	out, err := run(t, svc, "prepare", "lesson-1", "--title", "Intro")
	require.NoError(t, err)
	assert.Contains(t, out, "Resource ID: res-1")
	assert.Contains(t, out, "Upload URL: https://storage.example/signed")
}

func TestCompleteCommand(t *testing.T) {
	tests := []struct {
		name       string
		completion *mediaSvc.UploadCompletion
		err        error
		wantOutput string
		wantErr    bool
	}{
		{
			name:       "ready with duration",
			completion: &mediaSvc.UploadCompletion{ResourceID: "res-1", Status: model.MediaReady, PlaybackHandle: "gs://media/uploads/s1", DurationSeconds: model.IntPtr(3725)},
			wantOutput: "Duration: 1:02:05",
		},
		{
			name:       "still processing",
			completion: &mediaSvc.UploadCompletion{ResourceID: "res-1", Status: model.MediaProcessing},
			wantOutput: "Status: PROCESSING",
		},
		{
			name:    "upload failure",
			err:     apperrors.New(apperrors.CodeUploadFailure, "asset not found in storage"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMediaService{
				CompleteUploadFunc: func(ctx context.Context, resourceID, uploadSession string) (*mediaSvc.UploadCompletion, error) {
					assert.Equal(t, "res-1", resourceID)
					assert.Equal(t, "s1", uploadSession)
					return tt.completion, tt.err
				},
			}

			out, err := run(t, svc, "complete", "res-1", "s1")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "asset not found in storage")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantOutput)
		})
	}
}

func TestRegisterCommand(t *testing.T) {
	tests := []struct {
		name          string
		autoFetch     bool
		args          []string
		wantFetches   int
		wantOutput    string
		notWantOutput string
	}{
		{
			name:        "auto fetch platform",
			autoFetch:   true,
			args:        []string{"register", "lesson-1", "https://vimeo.com/76979871"},
			wantFetches: 1,
			wantOutput:  "Title: Sample",
		},
		{
			name:          "auto fetch skipped by flag",
			autoFetch:     true,
			args:          []string{"register", "lesson-1", "https://vimeo.com/76979871", "--no-fetch"},
			wantFetches:   0,
			notWantOutput: "Title:",
		},
		{
			name:          "platform without auto fetch",
			autoFetch:     false,
			args:          []string{"register", "lesson-1", "https://youtu.be/dQw4w9WgXcQ"},
			wantFetches:   0,
			notWantOutput: "Title:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockMediaService{
				RegisterExternalFunc: func(ctx context.Context, lessonID, rawURL string) (*mediaSvc.Registration, error) {
					return &mediaSvc.Registration{ResourceID: "res-1", Platform: model.PlatformVimeo, SupportsAutoMetadataFetch: tt.autoFetch}, nil
				},
				FetchMetadataFunc: func(ctx context.Context, resourceID string) (*model.VideoMetadata, error) {
					return &model.VideoMetadata{Title: "Sample", DurationSeconds: model.IntPtr(62), Available: true}, nil
				},
			}

			out, err := run(t, svc, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFetches, svc.fetchCalls)
			assert.Contains(t, out, "Platform: VIMEO")
			if tt.wantOutput != "" {
				assert.Contains(t, out, tt.wantOutput)
			}
			if tt.notWantOutput != "" {
				assert.NotContains(t, out, tt.notWantOutput)
			}
		})
	}
}

func TestMetadataCommand_Unavailable(t *testing.T) {
	svc := &mockMediaService{
		FetchMetadataFunc: func(ctx context.Context, resourceID string) (*model.VideoMetadata, error) {
			return &model.VideoMetadata{Available: false}, nil
		},
	}

	out, err := run(t, svc, "metadata", "res-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Metadata: unavailable")
}

func TestShowCommand_JSON(t *testing.T) {
	svc := &mockMediaService{
		GetFunc: func(ctx context.Context, lessonID string) (*model.MediaResource, error) {
			return &model.MediaResource{ID: "res-1", LessonID: lessonID, Status: model.MediaReady, Reference: "gs://media/uploads/s1"}, nil
		},
	}

	out, err := run(t, svc, "show", "lesson-1", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "res-1"`)
	assert.Contains(t, out, `"status": "READY"`)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "-", formatDuration(nil))
	assert.Equal(t, "0:01:02", formatDuration(model.IntPtr(62)))
	assert.Equal(t, "2:00:00", formatDuration(model.IntPtr(7200)))
}
