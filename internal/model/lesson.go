package model

import "time"

// Lesson represents the lesson row fields owned by the media engine
type Lesson struct {
	ID             string    `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	Content        *string   `json:"content,omitempty" db:"content"`     // legacy free-text transcript
	VideoURL       *string   `json:"video_url,omitempty" db:"video_url"` // playable reference at last save
	Duration       *int      `json:"duration,omitempty" db:"duration"`   // duration in seconds
	SavedReference *string   `json:"saved_reference,omitempty" db:"saved_reference"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// StringPtr returns a pointer to s, or nil for the empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
