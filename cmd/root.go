package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lessonmedia",
	Short: "Lesson video ingestion and transcript management",
	Long: `lessonmedia manages the video attached to each lesson: direct uploads,
external platform links, metadata and machine transcripts. It also runs the
HTTP API used by the lesson editor.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
