package model

import "time"

// SourceKind tells how a lesson's video reference was obtained
type SourceKind string

const (
	SourceNone        SourceKind = "NONE"
	SourceUploaded    SourceKind = "UPLOADED"
	SourceExternalURL SourceKind = "EXTERNAL_URL"
)

// Platform is the video platform a reference was classified as (informational only)
type Platform string

const (
	PlatformUpload     Platform = "UPLOAD"
	PlatformGenericURL Platform = "GENERIC_URL"
	PlatformYouTube    Platform = "YOUTUBE"
	PlatformVimeo      Platform = "VIMEO"
	PlatformLoom       Platform = "LOOM"
	PlatformWistia     Platform = "WISTIA"
)

// IsExternalPlatform reports whether p is one of the named external video platforms
func (p Platform) IsExternalPlatform() bool {
	switch p {
	case PlatformYouTube, PlatformVimeo, PlatformLoom, PlatformWistia:
		return true
	}
	return false
}

// MediaStatus is the ingestion state of a MediaResource
type MediaStatus string

const (
	MediaIdle       MediaStatus = "IDLE"
	MediaPreparing  MediaStatus = "PREPARING"
	MediaUploading  MediaStatus = "UPLOADING"
	MediaProcessing MediaStatus = "PROCESSING"
	MediaReady      MediaStatus = "READY"
	MediaError      MediaStatus = "ERROR"
)

// mediaTransitions lists the allowed next states for each ingestion state
var mediaTransitions = map[MediaStatus][]MediaStatus{
	MediaIdle:       {MediaPreparing, MediaReady},
	MediaPreparing:  {MediaUploading, MediaError, MediaPreparing},
	MediaUploading:  {MediaProcessing, MediaError, MediaPreparing, MediaReady},
	MediaProcessing: {MediaReady, MediaError},
	MediaReady:      {MediaPreparing, MediaReady},
	MediaError:      {MediaPreparing, MediaProcessing, MediaReady},
}

// CanTransition reports whether the ingestion state machine allows moving from one state to another
func CanTransition(from, to MediaStatus) bool {
	for _, next := range mediaTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MediaResource tracks a lesson's video asset through ingestion (one per lesson-video slot)
type MediaResource struct {
	ID         string      `json:"id" db:"id"`
	LessonID   string      `json:"lesson_id" db:"lesson_id"`
	SourceKind SourceKind  `json:"source_kind" db:"source_kind"`
	Platform   Platform    `json:"platform" db:"platform"`
	Reference  string      `json:"reference" db:"reference"` // upload session, playback handle or external URL
	Status     MediaStatus `json:"status" db:"status"`

	ReadyReference  string    `json:"ready_reference,omitempty" db:"ready_reference"` // last known-good playable reference
	UploadSession   string    `json:"upload_session,omitempty" db:"upload_session"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	ErrorMessage    *string   `json:"error_message,omitempty" db:"error_message"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// PlayableReference returns the reference a viewer can play right now, or "" if none exists
func (m *MediaResource) PlayableReference() string {
	if m == nil {
		return ""
	}
	if m.Status == MediaReady {
		return m.Reference
	}
	return m.ReadyReference
}

// VideoMetadata is the best-effort metadata for a video reference
type VideoMetadata struct {
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	Title           string `json:"title,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	Available       bool   `json:"available"`
}
