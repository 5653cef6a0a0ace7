package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/service/common"
)

// AudioDownloader downloads the audio track of a video URL
type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoURL string, outputDir string) (string, error)
}

// ytDlpAudioDownloader implements AudioDownloader using yt-dlp
type ytDlpAudioDownloader struct {
	cmdRunner common.CmdRunner
}

// NewAudioDownloader creates a new AudioDownloader with default CmdRunner
func NewAudioDownloader() AudioDownloader {
	return &ytDlpAudioDownloader{
		cmdRunner: common.NewCmdRunner(),
	}
}

// NewAudioDownloaderWithCmdRunner creates a new AudioDownloader with custom CmdRunner (for testing)
func NewAudioDownloaderWithCmdRunner(cmdRunner common.CmdRunner) AudioDownloader {
	return &ytDlpAudioDownloader{
		cmdRunner: cmdRunner,
	}
}

// audioExtensions are the containers yt-dlp produces for audio-only downloads
var audioExtensions = []string{".m4a", ".mp3", ".webm", ".ogg", ".wav", ".opus", ".flac"}

// DownloadAudio downloads the best audio track into outputDir and returns its path
func (d *ytDlpAudioDownloader) DownloadAudio(ctx context.Context, videoURL string, outputDir string) (string, error) {
	if videoURL == "" {
		return "", errors.New(errors.CodeInvalidArg, "video URL is required")
	}
	if outputDir == "" {
		return "", errors.New(errors.CodeInvalidArg, "output directory is required")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to create output directory")
	}

	args := []string{
		"-x",
		"--audio-format", "best",
		"--audio-quality", "0",
		"--no-playlist",
		"--output", filepath.Join(outputDir, "audio.%(ext)s"),
		videoURL,
	}

	if _, err := d.cmdRunner.Run(ctx, "yt-dlp", args...); err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailure, formatYtDlpError(err))
	}

	audioPath, err := findAudioFile(outputDir)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailure, "failed to find downloaded audio file")
	}
	return audioPath, nil
}

// findAudioFile returns the first audio file in dir
func findAudioFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, audioExt := range audioExtensions {
			if ext == audioExt {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}

	if len(names) == 0 {
		return "", fmt.Errorf("no files found in output directory")
	}
	return "", fmt.Errorf("no audio files found, downloaded files: %v", names)
}

// formatYtDlpError turns common yt-dlp failures into readable messages
func formatYtDlpError(err error) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "Private video"):
		return "video is private and cannot be downloaded"
	case strings.Contains(errMsg, "Video unavailable"), strings.Contains(errMsg, "This video is not available"):
		return "video is not available (may be private, deleted, or region-blocked)"
	case strings.Contains(errMsg, "Unsupported URL"):
		return "unsupported source URL"
	case strings.Contains(errMsg, "executable file not found"):
		return "yt-dlp is not installed or not found in PATH"
	case strings.Contains(errMsg, "HTTP Error 404"):
		return "video not found"
	case strings.Contains(errMsg, "403"):
		return "access denied - video may be region-blocked or require login"
	case strings.Contains(errMsg, "429"):
		return "rate limited by the video platform - please try again later"
	case strings.Contains(errMsg, "context deadline exceeded"):
		return "download timed out"
	default:
		return fmt.Sprintf("audio download failed - %s", errMsg)
	}
}
