package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage configuration settings for lessonmedia.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with database connection settings.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}

		if err := config.InitConfig(databaseURL); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Please edit the database_url and upload bucket in this file.")

		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration file path and the effective settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration file: %s\n\n", configPath)
		fmt.Fprintf(out, "DATABASE_URL: %s\n", redactURL(cfg.DatabaseURL))
		fmt.Fprintf(out, "REDIS_URL: %s\n", redactURL(cfg.RedisURL))
		fmt.Fprintf(out, "LOG_MODE: %s\n", cfg.LogMode)
		fmt.Fprintf(out, "HTTP_ADDR: %s\n", cfg.HTTPAddr)
		fmt.Fprintf(out, "ALLOWED_ORIGINS: %s\n", strings.Join(cfg.AllowedOrigins, ","))
		fmt.Fprintf(out, "UPLOAD_BUCKET: %s\n", cfg.Upload.Bucket)
		fmt.Fprintf(out, "WHISPER_MODEL: %s\n", cfg.Transcription.WhisperModel)
		fmt.Fprintf(out, "TRANSCRIPT_LANGUAGE: %s\n", cfg.Transcription.Language)
		fmt.Fprintf(out, "MIN_TRANSCRIPT_LENGTH: %d\n", cfg.Transcription.MinTranscriptLength)

		return nil
	},
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return u.Redacted()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
