package transcription

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/common"
)

// CaptionTranscriber pulls a platform's existing captions with yt-dlp.
// Uploaded subtitles are preferred over automatic captions.
type CaptionTranscriber struct {
	cmdRunner common.CmdRunner
	language  string
	tempDir   string
}

// NewCaptionTranscriber creates a new CaptionTranscriber with default CmdRunner
func NewCaptionTranscriber(language string) *CaptionTranscriber {
	return NewCaptionTranscriberWithCmdRunner(common.NewCmdRunner(), language)
}

// NewCaptionTranscriberWithCmdRunner creates a new CaptionTranscriber with custom CmdRunner (for testing)
func NewCaptionTranscriberWithCmdRunner(cmdRunner common.CmdRunner, language string) *CaptionTranscriber {
	return &CaptionTranscriber{
		cmdRunner: cmdRunner,
		language:  language,
	}
}

// Transcribe returns the cleaned caption text of the source video
func (c *CaptionTranscriber) Transcribe(ctx context.Context, source Source) (*Result, error) {
	if source.Reference == "" {
		return nil, errors.New(errors.CodeInvalidArg, "source reference is required")
	}

	workDir, err := os.MkdirTemp(c.tempDir, "lessonmedia-captions-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create temp directory")
	}
	defer os.RemoveAll(workDir)

	passes := []struct {
		name   string
		flag   string
		origin model.TranscriptOrigin
	}{
		{"manual", "--write-subs", model.OriginExternalCaptions},
		{"auto", "--write-auto-subs", model.OriginCaptionExtraction},
	}

	var lastErr error
	for _, pass := range passes {
		text, err := c.fetch(ctx, source.Reference, pass.flag, filepath.Join(workDir, pass.name))
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return &Result{Text: text, Origin: pass.origin}, nil
		}
	}

	if lastErr != nil {
		return nil, errors.Wrap(lastErr, errors.CodeGenerationFailure, "captions could not be downloaded")
	}
	return nil, errors.New(errors.CodeGenerationFailure, "video has no captions")
}

func (c *CaptionTranscriber) fetch(ctx context.Context, videoURL, flag, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	args := []string{
		"--skip-download",
		flag,
		"--sub-langs", c.subLangs(),
		"--sub-format", "vtt",
		"--no-playlist",
		"--output", filepath.Join(dir, "captions.%(ext)s"),
		videoURL,
	}
	if _, err := c.cmdRunner.Run(ctx, "yt-dlp", args...); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if err != nil || len(matches) == 0 {
		return "", nil
	}

	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return "", err
	}
	return CleanVTT(string(raw)), nil
}

// subLangs maps the configured language to a yt-dlp subtitle selector
func (c *CaptionTranscriber) subLangs() string {
	lang := strings.TrimSpace(c.language)
	if lang == "" || lang == "auto" {
		lang = "en"
	}
	return lang + ".*"
}
