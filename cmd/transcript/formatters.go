package transcript

import (
	"fmt"
	"io"
	"strings"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

func writeEffective(w io.Writer, effective *model.EffectiveTranscript) {
	fmt.Fprintf(w, "Source: %s\n", effective.Source)
	fmt.Fprintf(w, "Status: %s\n", effective.DisplayStatus)
	if effective.Content == nil {
		fmt.Fprintln(w, "\n(no transcript)")
		return
	}
	fmt.Fprintf(w, "\n%s\n", *effective.Content)
}

// formatGenerationError provides user-friendly error messages for generation failures
func formatGenerationError(err error, target string) error {
	if err == nil {
		return nil
	}

	if apperrors.HasCode(err, apperrors.CodeAlreadyInProgress) {
		return fmt.Errorf("a transcript is already being generated for %s, try again once it finishes", target)
	}

	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "yt-dlp is not installed"):
		return fmt.Errorf("yt-dlp is required but not installed.\n   • Install: pip install yt-dlp\n   • Or visit: https://github.com/yt-dlp/yt-dlp")
	case strings.Contains(errMsg, "Whisper is not installed"):
		return fmt.Errorf("whisper is required but not installed.\n   • Install: pip install openai-whisper\n   • Or visit: https://github.com/openai/whisper")
	case strings.Contains(errMsg, "insufficient memory"):
		return fmt.Errorf("not enough memory for transcription.\n   • Set a smaller whisper_model such as tiny or base\n   • Close other applications to free memory")
	case strings.Contains(errMsg, "rate limited"):
		return fmt.Errorf("the video platform rate limited the request.\n   • Wait a few minutes and try again")
	case strings.Contains(errMsg, "credentials"):
		return fmt.Errorf("the cloud provider rejected the credentials.\n   • Check GOOGLE_APPLICATION_CREDENTIALS")
	case strings.Contains(errMsg, "no playable video"), strings.Contains(errMsg, "has no video"):
		return fmt.Errorf("lesson %s has no playable video to transcribe", target)
	default:
		return fmt.Errorf("transcription failed for %s:\n   %s", target, errMsg)
	}
}
