package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/cmd/app"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	mediaSvc "github.com/Taichi-iskw/lesson-media/internal/service/media"
)

// ServiceOpener returns a media service and the func that releases it
type ServiceOpener func(ctx context.Context) (mediaSvc.Service, func(), error)

// NewMediaCmd creates and returns the media command
func NewMediaCmd(open ServiceOpener) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Lesson video ingestion",
		Long:  `Prepare uploads, confirm completed uploads, attach external videos and fetch their metadata.`,
	}

	mediaCmd.PersistentFlags().String("format", "text", "Output format: text, json")

	mediaCmd.AddCommand(newPrepareCmd(open))
	mediaCmd.AddCommand(newCompleteCmd(open))
	mediaCmd.AddCommand(newRegisterCmd(open))
	mediaCmd.AddCommand(newMetadataCmd(open))
	mediaCmd.AddCommand(newShowCmd(open))

	return mediaCmd
}

// withService opens the service for the duration of fn
func withService(cmd *cobra.Command, open ServiceOpener, timeout time.Duration, fn func(ctx context.Context, svc mediaSvc.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, cleanup, err := open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, svc)
}

func newPrepareCmd(open ServiceOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare [LESSON_ID]",
		Short: "Create an upload session for a lesson",
		Long:  `Create a direct upload session and print the signed URL the client should send the file to.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			format, _ := cmd.Flags().GetString("format")

			return withService(cmd, open, 30*time.Second, func(ctx context.Context, svc mediaSvc.Service) error {
				result, err := svc.Prepare(ctx, args[0], title)
				if err != nil {
					return fmt.Errorf("failed to prepare upload: %w", err)
				}
				return app.Render(cmd.OutOrStdout(), format, result, func(w io.Writer) {
					fmt.Fprintf(w, "Resource ID: %s\n", result.ResourceID)
					fmt.Fprintf(w, "Upload Session: %s\n", result.UploadSession)
					fmt.Fprintf(w, "Upload URL: %s\n", result.UploadURL)
				})
			})
		},
	}
	cmd.Flags().String("title", "", "Lesson title used when the lesson does not exist yet")
	return cmd
}

func newCompleteCmd(open ServiceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "complete [RESOURCE_ID] [UPLOAD_SESSION]",
		Short: "Confirm an upload finished",
		Long:  `Deliver the upload-finished signal. Repeated deliveries for the same session are safe.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			return withService(cmd, open, time.Minute, func(ctx context.Context, svc mediaSvc.Service) error {
				result, err := svc.CompleteUpload(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("failed to complete upload: %w", err)
				}
				return app.Render(cmd.OutOrStdout(), format, result, func(w io.Writer) {
					fmt.Fprintf(w, "Resource ID: %s\n", result.ResourceID)
					fmt.Fprintf(w, "Status: %s\n", result.Status)
					fmt.Fprintf(w, "Playback Handle: %s\n", app.OrNone(result.PlaybackHandle))
					fmt.Fprintf(w, "Duration: %s\n", formatDuration(result.DurationSeconds))
				})
			})
		},
	}
}

// registration is the register output: the classification plus any auto-fetched metadata
type registration struct {
	*mediaSvc.Registration
	Metadata *model.VideoMetadata `json:"metadata,omitempty"`
}

func newRegisterCmd(open ServiceOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [LESSON_ID] [URL]",
		Short: "Attach an external video URL to a lesson",
		Long: `Classify the URL by platform and attach it to the lesson. Metadata is fetched
right away for platforms that support it unless --no-fetch is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			noFetch, _ := cmd.Flags().GetBool("no-fetch")
			format, _ := cmd.Flags().GetString("format")

			return withService(cmd, open, time.Minute, func(ctx context.Context, svc mediaSvc.Service) error {
				reg, err := svc.RegisterExternal(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("failed to register video: %w", err)
				}

				out := registration{Registration: reg}
				if reg.SupportsAutoMetadataFetch && !noFetch {
					meta, err := svc.FetchMetadata(ctx, reg.ResourceID)
					if err != nil {
						return fmt.Errorf("failed to fetch metadata: %w", err)
					}
					out.Metadata = meta
				}

				return app.Render(cmd.OutOrStdout(), format, out, func(w io.Writer) {
					fmt.Fprintf(w, "Resource ID: %s\n", reg.ResourceID)
					fmt.Fprintf(w, "Platform: %s\n", reg.Platform)
					fmt.Fprintf(w, "External ID: %s\n", app.OrNone(reg.ExternalID))
					fmt.Fprintf(w, "Auto Metadata: %t\n", reg.SupportsAutoMetadataFetch)
					if out.Metadata != nil {
						writeMetadata(w, out.Metadata)
					}
				})
			})
		},
	}
	cmd.Flags().Bool("no-fetch", false, "Skip the automatic metadata fetch")
	return cmd
}

func newMetadataCmd(open ServiceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [RESOURCE_ID]",
		Short: "Fetch metadata for a media resource",
		Long:  `Fetch duration, title and thumbnail. Providers that cannot answer report the metadata as unavailable.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			return withService(cmd, open, time.Minute, func(ctx context.Context, svc mediaSvc.Service) error {
				meta, err := svc.FetchMetadata(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to fetch metadata: %w", err)
				}
				return app.Render(cmd.OutOrStdout(), format, meta, func(w io.Writer) {
					writeMetadata(w, meta)
				})
			})
		},
	}
}

func newShowCmd(open ServiceOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "show [LESSON_ID]",
		Short: "Show the media resource of a lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			return withService(cmd, open, 30*time.Second, func(ctx context.Context, svc mediaSvc.Service) error {
				resource, err := svc.Get(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get media: %w", err)
				}
				return app.Render(cmd.OutOrStdout(), format, resource, func(w io.Writer) {
					writeResource(w, resource)
				})
			})
		},
	}
}
