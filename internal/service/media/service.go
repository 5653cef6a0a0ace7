// Package media drives a lesson's video through ingestion: upload, external registration and metadata.
package media

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/platform"
	lessonrepo "github.com/Taichi-iskw/lesson-media/internal/repository/lesson"
	mediarepo "github.com/Taichi-iskw/lesson-media/internal/repository/media"
	"github.com/Taichi-iskw/lesson-media/internal/service/upload"
)

// PrepareResult is returned to the caller that performs the byte transfer
type PrepareResult struct {
	ResourceID    string `json:"resource_id"`
	UploadSession string `json:"upload_session"`
	UploadURL     string `json:"upload_url"`
}

// UploadCompletion describes the resource after an upload-finished signal
type UploadCompletion struct {
	ResourceID      string            `json:"resource_id"`
	PlaybackHandle  string            `json:"playback_handle,omitempty"`
	Status          model.MediaStatus `json:"status"`
	DurationSeconds *int              `json:"duration_seconds,omitempty"`
}

// Registration is the result of attaching an external video URL
type Registration struct {
	ResourceID                string         `json:"resource_id"`
	Platform                  model.Platform `json:"platform"`
	SupportsAutoMetadataFetch bool           `json:"supports_auto_metadata_fetch"`
	ExternalID                string         `json:"external_id,omitempty"`
}

// Service defines the media ingestion operations
type Service interface {
	Prepare(ctx context.Context, lessonID, title string) (*PrepareResult, error)
	CompleteUpload(ctx context.Context, resourceID, uploadSession string) (*UploadCompletion, error)
	RegisterExternal(ctx context.Context, lessonID, rawURL string) (*Registration, error)
	// FetchMetadata is best effort: provider failures come back as Available=false, never as an error
	FetchMetadata(ctx context.Context, resourceID string) (*model.VideoMetadata, error)
	Get(ctx context.Context, lessonID string) (*model.MediaResource, error)
}

// Options tunes the media service
type Options struct {
	MetadataTimeout time.Duration
}

type service struct {
	mediaRepo  mediarepo.Repository
	lessonRepo lessonrepo.Repository
	provider   upload.Provider
	registry   *platform.Registry
	fetcher    platform.MetadataFetcher
	opts       Options
	newID      func() string
	log        *logger.Logger
}

// NewService creates a new media Service. provider may be nil when uploads are not configured.
func NewService(
	mediaRepo mediarepo.Repository,
	lessonRepo lessonrepo.Repository,
	provider upload.Provider,
	registry *platform.Registry,
	fetcher platform.MetadataFetcher,
	opts Options,
	log *logger.Logger,
) Service {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.MetadataTimeout <= 0 {
		opts.MetadataTimeout = 10 * time.Second
	}
	return &service{
		mediaRepo:  mediaRepo,
		lessonRepo: lessonRepo,
		provider:   provider,
		registry:   registry,
		fetcher:    fetcher,
		opts:       opts,
		newID:      uuid.NewString,
		log:        log.With("service", "MediaService"),
	}
}

// Prepare allocates (or reuses) the lesson's resource and an upload target
func (s *service) Prepare(ctx context.Context, lessonID, title string) (*PrepareResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.New(apperrors.CodePreparation, "a title is required before a video can be uploaded")
	}
	if lessonID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "lesson ID is required")
	}
	if s.provider == nil {
		return nil, apperrors.New(apperrors.CodePreparation, "upload provider is not configured")
	}

	if err := s.lessonRepo.EnsureExists(ctx, lessonID, title); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "failed to allocate lesson")
	}

	res, err := s.loadOrNew(ctx, lessonID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "failed to load media resource")
	}
	if !model.CanTransition(res.Status, model.MediaPreparing) {
		return nil, apperrors.New(apperrors.CodeConflict, "media resource is "+string(res.Status)+" and cannot accept a new upload")
	}

	if res.Status == model.MediaReady {
		res.ReadyReference = res.Reference
	}
	res.Status = model.MediaPreparing
	res.ErrorMessage = nil
	if err := s.mediaRepo.Upsert(ctx, res); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "failed to save media resource")
	}

	session, err := s.provider.CreateUploadSession(ctx, lessonID)
	if err != nil {
		res.UploadSession = ""
		s.fail(ctx, res, err)
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "upload provider is unreachable")
	}

	res.SourceKind = model.SourceUploaded
	res.Platform = model.PlatformUpload
	res.Status = model.MediaUploading
	res.Reference = session.SessionID
	res.UploadSession = session.SessionID
	if err := s.mediaRepo.Upsert(ctx, res); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePreparation, "failed to save upload session")
	}

	s.log.Info("upload prepared", "lesson_id", lessonID, "resource_id", res.ID, "session", session.SessionID)
	return &PrepareResult{
		ResourceID:    res.ID,
		UploadSession: session.SessionID,
		UploadURL:     session.UploadURL,
	}, nil
}

// CompleteUpload handles the upload-finished signal; repeated signals for one session are safe
func (s *service) CompleteUpload(ctx context.Context, resourceID, uploadSession string) (*UploadCompletion, error) {
	if resourceID == "" || uploadSession == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "resource ID and upload session are required")
	}

	res, claimed, err := s.mediaRepo.ClaimCompletion(ctx, resourceID, uploadSession)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return s.completionState(ctx, resourceID, uploadSession)
	}
	if s.provider == nil {
		s.failCompletion(ctx, res, uploadSession, apperrors.New(apperrors.CodeUploadFailure, "upload provider is not configured"))
		return nil, apperrors.New(apperrors.CodeUploadFailure, "upload provider is not configured")
	}

	asset, err := s.provider.ConfirmAsset(ctx, uploadSession)
	if err != nil {
		s.failCompletion(ctx, res, uploadSession, err)
		return nil, apperrors.Wrap(err, apperrors.CodeUploadFailure, "upload could not be processed")
	}

	res.Status = model.MediaReady
	res.SourceKind = model.SourceUploaded
	res.Platform = model.PlatformUpload
	res.Reference = asset.PlaybackHandle
	res.ReadyReference = asset.PlaybackHandle
	res.DurationSeconds = asset.DurationSeconds
	res.ErrorMessage = nil
	finished, err := s.mediaRepo.FinishCompletion(ctx, res, uploadSession)
	if err != nil {
		return nil, err
	}
	if !finished {
		s.log.Warn("media resource replaced during upload processing", "resource_id", res.ID, "session", uploadSession)
		return nil, apperrors.New(apperrors.CodeConflict, "media resource changed while the upload was processing")
	}

	s.log.Info("upload ready", "resource_id", res.ID, "session", uploadSession, "playback_handle", asset.PlaybackHandle)
	return &UploadCompletion{
		ResourceID:      res.ID,
		PlaybackHandle:  res.Reference,
		Status:          res.Status,
		DurationSeconds: res.DurationSeconds,
	}, nil
}

// completionState answers a completion signal that lost the claim
func (s *service) completionState(ctx context.Context, resourceID, uploadSession string) (*UploadCompletion, error) {
	res, err := s.mediaRepo.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if res.UploadSession != uploadSession {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "upload session does not belong to this resource")
	}

	switch res.Status {
	case model.MediaReady:
		s.log.Debug("duplicate upload completion", "resource_id", resourceID, "session", uploadSession)
		return &UploadCompletion{
			ResourceID:      res.ID,
			PlaybackHandle:  res.Reference,
			Status:          res.Status,
			DurationSeconds: res.DurationSeconds,
		}, nil
	case model.MediaProcessing:
		return &UploadCompletion{ResourceID: res.ID, Status: res.Status}, nil
	default:
		return nil, apperrors.New(apperrors.CodeConflict, "upload for this session is not in progress")
	}
}

// RegisterExternal attaches an external URL; the resource is READY immediately
func (s *service) RegisterExternal(ctx context.Context, lessonID, rawURL string) (*Registration, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !platform.IsWebURL(rawURL) {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video URL must be an absolute http or https URL")
	}
	if _, err := s.lessonRepo.GetByID(ctx, lessonID); err != nil {
		return nil, err
	}

	res, err := s.loadOrNew(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(res.Status, model.MediaReady) {
		return nil, apperrors.New(apperrors.CodeConflict, "media resource is "+string(res.Status)+" and cannot switch to an external URL")
	}

	cls := s.registry.Classify(rawURL)
	sameURL := res.SourceKind == model.SourceExternalURL && res.Reference == rawURL
	if !sameURL {
		res.DurationSeconds = nil
	}

	res.SourceKind = model.SourceExternalURL
	res.Platform = cls.Platform
	res.Reference = rawURL
	res.ReadyReference = rawURL
	res.UploadSession = ""
	res.Status = model.MediaReady
	res.ErrorMessage = nil
	if err := s.mediaRepo.Upsert(ctx, res); err != nil {
		return nil, err
	}

	s.log.Info("external video registered", "lesson_id", lessonID, "resource_id", res.ID, "platform", cls.Platform)
	return &Registration{
		ResourceID:                res.ID,
		Platform:                  cls.Platform,
		SupportsAutoMetadataFetch: cls.SupportsAutoMetadataFetch,
		ExternalID:                cls.ExternalID,
	}, nil
}

// FetchMetadata resolves duration, title and thumbnail for an external video
func (s *service) FetchMetadata(ctx context.Context, resourceID string) (*model.VideoMetadata, error) {
	res, err := s.mediaRepo.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	known := &model.VideoMetadata{DurationSeconds: res.DurationSeconds, Available: res.DurationSeconds != nil}
	ref := res.PlayableReference()
	if res.SourceKind != model.SourceExternalURL || ref == "" || s.fetcher == nil {
		return known, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.MetadataTimeout)
	defer cancel()

	meta, err := s.fetcher.FetchMetadata(fetchCtx, ref)
	if err != nil {
		s.log.Warn("metadata unavailable", "resource_id", resourceID, "url", ref, "error", err)
		known.Available = false
		return known, nil
	}

	if meta.DurationSeconds != nil {
		if err := s.mediaRepo.UpdateDuration(ctx, res.ID, *meta.DurationSeconds); err != nil {
			s.log.Warn("failed to store video duration", "resource_id", resourceID, "error", err)
		}
	}
	return meta, nil
}

// Get returns the lesson's media resource
func (s *service) Get(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	return s.mediaRepo.GetByLessonID(ctx, lessonID)
}

func (s *service) loadOrNew(ctx context.Context, lessonID string) (*model.MediaResource, error) {
	res, err := s.mediaRepo.GetByLessonID(ctx, lessonID)
	if err == nil {
		return res, nil
	}
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, err
	}
	return &model.MediaResource{
		ID:         s.newID(),
		LessonID:   lessonID,
		SourceKind: model.SourceNone,
		Platform:   model.PlatformUpload,
		Status:     model.MediaIdle,
	}, nil
}

// fail moves the resource to ERROR and puts the last playable reference back in place
func (s *service) fail(ctx context.Context, res *model.MediaResource, cause error) {
	s.markFailed(res, cause)
	if err := s.mediaRepo.Upsert(ctx, res); err != nil {
		s.log.Error("failed to record media error", "resource_id", res.ID, "error", err)
		return
	}
	s.log.Warn("media ingestion failed", "resource_id", res.ID, "ready_reference", res.ReadyReference, "error", cause)
}

// failCompletion records a failed completion unless the resource moved on while it was processing
func (s *service) failCompletion(ctx context.Context, res *model.MediaResource, uploadSession string, cause error) {
	s.markFailed(res, cause)
	finished, err := s.mediaRepo.FinishCompletion(ctx, res, uploadSession)
	if err != nil {
		s.log.Error("failed to record media error", "resource_id", res.ID, "error", err)
		return
	}
	if !finished {
		s.log.Info("upload failed after the resource was replaced", "resource_id", res.ID, "session", uploadSession, "error", cause)
		return
	}
	s.log.Warn("media ingestion failed", "resource_id", res.ID, "ready_reference", res.ReadyReference, "error", cause)
}

// markFailed moves res to ERROR and points it back at the last playable reference
func (s *service) markFailed(res *model.MediaResource, cause error) {
	msg := cause.Error()
	res.Status = model.MediaError
	res.ErrorMessage = &msg
	res.Reference = res.ReadyReference

	switch {
	case res.ReadyReference == "":
	case platform.IsWebURL(res.ReadyReference):
		res.SourceKind = model.SourceExternalURL
		res.Platform = s.registry.Classify(res.ReadyReference).Platform
	default:
		res.SourceKind = model.SourceUploaded
		res.Platform = model.PlatformUpload
	}
}
