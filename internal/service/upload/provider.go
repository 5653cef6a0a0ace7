// Package upload talks to the storage provider that receives lesson video bytes.
package upload

import "context"

// Session is an upload target handed to the caller for the byte transfer
type Session struct {
	SessionID string `json:"session_id"`
	UploadURL string `json:"upload_url"`
}

// Asset is the provider's confirmation that an uploaded video is playable
type Asset struct {
	PlaybackHandle  string `json:"playback_handle"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
}

// Provider is the upload/storage provider consumed by the media state machine
type Provider interface {
	// CreateUploadSession allocates an upload target for the given owner (lesson ID)
	CreateUploadSession(ctx context.Context, owner string) (*Session, error)
	// ConfirmAsset reports whether the session's asset finished ingesting
	ConfirmAsset(ctx context.Context, sessionID string) (*Asset, error)
}
