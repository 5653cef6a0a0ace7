package transcript

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	lessonSvc "github.com/Taichi-iskw/lesson-media/internal/service/lesson"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
)

// ServiceOpener returns the lesson service and the func that releases it
type ServiceOpener func(ctx context.Context) (lessonSvc.Service, func(), error)

// TranscriberOpener returns a transcriber that needs no database, for dry runs
type TranscriberOpener func(ctx context.Context) (transcription.Transcriber, func(), error)

// NewTranscriptCmd creates and returns the transcript command
func NewTranscriptCmd(open ServiceOpener, openTranscriber TranscriberOpener) *cobra.Command {
	transcriptCmd := &cobra.Command{
		Use:   "transcript",
		Short: "Lesson transcript operations",
		Long:  `Generate machine transcripts and inspect or clear the transcript a lesson resolves to.`,
	}

	transcriptCmd.PersistentFlags().String("format", "text", "Output format: text, json")

	transcriptCmd.AddCommand(newGenerateCmd(open, openTranscriber))
	transcriptCmd.AddCommand(newShowCmd(open))
	transcriptCmd.AddCommand(newClearCmd(open))

	return transcriptCmd
}

func newGenerateCmd(open ServiceOpener, openTranscriber TranscriberOpener) *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate [LESSON_ID]",
		Short: "Generate a machine transcript for a lesson",
		Long: `Generate a transcript from the lesson's playable video. A READY transcript for the
same video is kept unless --force is given. With --dry-run the argument is a video
URL and the result is printed without touching the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			background, _ := cmd.Flags().GetBool("background")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			format, _ := cmd.Flags().GetString("format")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			if dryRun {
				return runDryRunMode(ctx, cmd.OutOrStdout(), openTranscriber, args[0], format)
			}

			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			outcome, err := svc.GenerateTranscript(ctx, args[0], lessonSvc.GenerateOptions{Force: force, Background: background})
			if err != nil {
				return formatGenerationError(err, args[0])
			}

			return app.Render(cmd.OutOrStdout(), format, outcome, func(w io.Writer) {
				switch {
				case outcome.Skipped:
					fmt.Fprintln(w, "Transcript is already up to date for the current video (use --force to regenerate)")
				case outcome.Result == nil:
					fmt.Fprintln(w, "Transcript generation started")
				default:
					fmt.Fprintln(w, "✅ Transcript generated successfully!")
					fmt.Fprintf(w, "Source: %s\n", outcome.Result.Origin)
					fmt.Fprintf(w, "\n%s\n", outcome.Result.Text)
				}
			})
		},
	}

	generateCmd.Flags().Bool("force", false, "Regenerate even when a transcript exists for the current video")
	generateCmd.Flags().Bool("background", false, "Return once the generation has been claimed")
	generateCmd.Flags().Bool("dry-run", false, "Transcribe a video URL without saving anything")

	return generateCmd
}

func newShowCmd(open ServiceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "show [LESSON_ID]",
		Short: "Show the effective transcript of a lesson",
		Long:  `Print the single transcript the lesson resolves to, with its source and display status.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			effective, err := svc.Effective(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to get transcript: %w", err)
			}

			return app.Render(cmd.OutOrStdout(), format, effective, func(w io.Writer) {
				writeEffective(w, effective)
			})
		},
	}
}

func newClearCmd(open ServiceOpener) *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear [LESSON_ID]",
		Short: "Clear the user-entered transcript",
		Long:  `Remove the human transcript so the lesson falls back to the machine transcript.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				fmt.Fprintf(cmd.OutOrStdout(), "Are you sure you want to clear the transcript of lesson %s? Use --confirm flag to proceed.\n", args[0])
				return nil
			}

			format, _ := cmd.Flags().GetString("format")

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			effective, err := svc.ClearUserTranscript(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to clear transcript: %w", err)
			}

			return app.Render(cmd.OutOrStdout(), format, effective, func(w io.Writer) {
				fmt.Fprintf(w, "✅ User transcript cleared for lesson %s\n", args[0])
				writeEffective(w, effective)
			})
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Confirm without prompt")

	return clearCmd
}
