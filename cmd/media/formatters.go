package media

import (
	"fmt"
	"io"
	"time"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// formatDuration renders seconds as H:MM:SS, or "-" when unknown
func formatDuration(seconds *int) string {
	if seconds == nil {
		return "-"
	}
	s := *seconds
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func writeMetadata(w io.Writer, meta *model.VideoMetadata) {
	if !meta.Available {
		fmt.Fprintln(w, "Metadata: unavailable")
		return
	}
	fmt.Fprintf(w, "Title: %s\n", app.OrNone(meta.Title))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(meta.DurationSeconds))
	fmt.Fprintf(w, "Thumbnail: %s\n", app.OrNone(meta.Thumbnail))
}

func writeResource(w io.Writer, m *model.MediaResource) {
	fmt.Fprintf(w, "Resource ID: %s\n", m.ID)
	fmt.Fprintf(w, "Lesson ID: %s\n", m.LessonID)
	fmt.Fprintf(w, "Source: %s\n", m.SourceKind)
	fmt.Fprintf(w, "Platform: %s\n", m.Platform)
	fmt.Fprintf(w, "Status: %s\n", m.Status)
	fmt.Fprintf(w, "Reference: %s\n", m.Reference)
	fmt.Fprintf(w, "Playable: %s\n", app.OrNone(m.PlayableReference()))
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(m.DurationSeconds))
	if m.ErrorMessage != nil {
		fmt.Fprintf(w, "Error: %s\n", *m.ErrorMessage)
	}
	fmt.Fprintf(w, "Updated: %s\n", m.UpdatedAt.Format(time.RFC3339))
}
