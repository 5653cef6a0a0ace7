package transcript

import (
	"context"
	"fmt"
	"io"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/internal/platform"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
)

// runDryRunMode transcribes rawURL through the provider chain and prints the result (no database save)
func runDryRunMode(ctx context.Context, w io.Writer, open TranscriberOpener, rawURL, format string) error {
	if open == nil {
		return fmt.Errorf("dry-run is not available")
	}

	transcriber, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	classification := platform.NewRegistry().Classify(rawURL)
	source := transcription.Source{Reference: rawURL, Platform: classification.Platform}

	if format != "json" {
		fmt.Fprintf(w, "Testing transcription for %s (dry-run mode)...\n", rawURL)
		fmt.Fprintf(w, "Platform: %s\n\n", source.Platform)
	}

	result, err := transcriber.Transcribe(ctx, source)
	if err != nil {
		return formatGenerationError(err, rawURL)
	}

	return app.Render(w, format, result, func(w io.Writer) {
		fmt.Fprintln(w, "✅ Transcription completed!")
		fmt.Fprintf(w, "Source: %s\n", result.Origin)
		fmt.Fprintln(w, "Results not saved to database (dry-run mode)")
		fmt.Fprintf(w, "\nFull Text:\n%s\n", result.Text)
	})
}
