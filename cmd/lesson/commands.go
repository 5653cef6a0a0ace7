package lesson

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	lessonSvc "github.com/Taichi-iskw/lesson-media/internal/service/lesson"
)

// ServiceOpener returns the lesson service and the func that releases it
type ServiceOpener func(ctx context.Context) (lessonSvc.Service, func(), error)

// NewLessonCmd creates and returns the lesson command
func NewLessonCmd(open ServiceOpener) *cobra.Command {
	lessonCmd := &cobra.Command{
		Use:   "lesson",
		Short: "Lesson operations",
	}

	lessonCmd.AddCommand(newSaveCmd(open))

	return lessonCmd
}

func newSaveCmd(open ServiceOpener) *cobra.Command {
	saveCmd := &cobra.Command{
		Use:   "save [LESSON_ID]",
		Short: "Save a lesson through the transcript check",
		Long: `Save the lesson's fields against its current video. When the transcript does not
match the video the save is blocked and the available choices are printed; rerun
with --choice to pick one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			choice, _ := cmd.Flags().GetString("choice")
			format, _ := cmd.Flags().GetString("format")

			req := lessonSvc.SaveRequest{
				LessonID:    args[0],
				Title:       title,
				Description: description,
				Choice:      lessonSvc.Choice(choice),
			}

			transcript, err := readTranscript(cmd)
			if err != nil {
				return err
			}
			req.UserTranscript = transcript

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			svc, cleanup, err := open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.Save(ctx, req)
			if err != nil {
				if decision, ok := lessonSvc.BlockedDecision(err); ok {
					writeBlocked(cmd.OutOrStdout(), decision)
					return fmt.Errorf("save blocked: %s", decision.Condition)
				}
				return fmt.Errorf("failed to save lesson: %w", err)
			}

			return app.Render(cmd.OutOrStdout(), format, result, func(w io.Writer) {
				fmt.Fprintf(w, "✅ Lesson %s saved (%s)\n", result.Lesson.ID, result.Decision.Condition)
				fmt.Fprintf(w, "Transcript Source: %s\n", result.Effective.Source)
				fmt.Fprintf(w, "Transcript Status: %s\n", result.Effective.DisplayStatus)
				if result.GenerationStarted {
					fmt.Fprintln(w, "Transcript generation started")
				}
			})
		},
	}

	saveCmd.Flags().String("title", "", "Lesson title")
	saveCmd.Flags().String("description", "", "Lesson description")
	saveCmd.Flags().String("transcript", "", "User transcript text")
	saveCmd.Flags().String("transcript-file", "", "Read the user transcript from a file (- for stdin)")
	saveCmd.Flags().String("choice", "", "Resolution for a blocked save: enter_manually, generate_now, keep_existing, regenerate, edit_manually")
	saveCmd.Flags().String("format", "text", "Output format: text, json")

	return saveCmd
}

// readTranscript returns nil when neither transcript flag was given
func readTranscript(cmd *cobra.Command) (*string, error) {
	if path, _ := cmd.Flags().GetString("transcript-file"); path != "" {
		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript: %w", err)
		}
		text := string(data)
		return &text, nil
	}
	if cmd.Flags().Changed("transcript") {
		text, _ := cmd.Flags().GetString("transcript")
		return &text, nil
	}
	return nil, nil
}

func writeBlocked(w io.Writer, decision lessonSvc.Decision) {
	fmt.Fprintf(w, "Save blocked: %s\n", describeCondition(decision.Condition))
	if len(decision.Choices) == 0 {
		return
	}
	choices := make([]string, 0, len(decision.Choices))
	for _, c := range decision.Choices {
		choices = append(choices, string(c))
	}
	fmt.Fprintf(w, "Rerun with --choice one of: %s\n", strings.Join(choices, ", "))
}

func describeCondition(c lessonSvc.Condition) string {
	switch c {
	case lessonSvc.ConditionMissingTranscript:
		return "the lesson video has no usable transcript"
	case lessonSvc.ConditionReferenceChanged:
		return "the video changed since the transcript was made"
	default:
		return string(c)
	}
}
