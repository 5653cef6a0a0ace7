package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/common"
)

// whisperOutput is the subset of whisper's JSON output that is used
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// WhisperTranscriber downloads audio with yt-dlp and transcribes it with the Whisper CLI
type WhisperTranscriber struct {
	downloader AudioDownloader
	cmdRunner  common.CmdRunner
	model      string
	language   string
	tempDir    string
}

// NewWhisperTranscriber creates a new WhisperTranscriber with default CmdRunner
func NewWhisperTranscriber(model, language string) *WhisperTranscriber {
	runner := common.NewCmdRunner()
	return NewWhisperTranscriberWithDependencies(NewAudioDownloaderWithCmdRunner(runner), runner, model, language)
}

// NewWhisperTranscriberWithDependencies creates a new WhisperTranscriber with custom dependencies (for testing)
func NewWhisperTranscriberWithDependencies(downloader AudioDownloader, cmdRunner common.CmdRunner, model, language string) *WhisperTranscriber {
	if model == "" {
		model = "base"
	}
	return &WhisperTranscriber{
		downloader: downloader,
		cmdRunner:  cmdRunner,
		model:      model,
		language:   language,
	}
}

// Transcribe downloads the source audio and runs whisper on it
func (w *WhisperTranscriber) Transcribe(ctx context.Context, source Source) (*Result, error) {
	if source.Reference == "" {
		return nil, errors.New(errors.CodeInvalidArg, "source reference is required")
	}

	workDir, err := os.MkdirTemp(w.tempDir, "lessonmedia-whisper-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create temp directory")
	}
	defer os.RemoveAll(workDir)

	audioPath, err := w.downloader.DownloadAudio(ctx, source.Reference, filepath.Join(workDir, "audio"))
	if err != nil {
		return nil, err
	}

	text, err := w.transcribeFile(ctx, audioPath, filepath.Join(workDir, "out"))
	if err != nil {
		return nil, err
	}
	return &Result{Text: text, Origin: model.OriginSpeechModel}, nil
}

func (w *WhisperTranscriber) transcribeFile(ctx context.Context, audioPath, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "failed to create whisper output directory")
	}

	args := []string{
		audioPath,
		"--model", w.model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--temperature", "0",
	}
	if w.language != "" && w.language != "auto" {
		args = append(args, "--language", w.language)
	}

	if _, err := w.cmdRunner.Run(ctx, "whisper", args...); err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailure, w.formatWhisperError(err, audioPath))
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonData, err := os.ReadFile(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailure, "failed to read whisper output")
	}

	var out whisperOutput
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return "", errors.Wrap(err, errors.CodeGenerationFailure, "failed to parse whisper output")
	}

	text := strings.Join(strings.Fields(out.Text), " ")
	if text == "" {
		return "", errors.New(errors.CodeGenerationFailure, "no speech detected in audio")
	}
	return text, nil
}

// formatWhisperError provides user-friendly error messages for Whisper failures
func (w *WhisperTranscriber) formatWhisperError(err error, audioPath string) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "executable file not found"):
		return "Whisper is not installed. Please install OpenAI Whisper: pip install openai-whisper"
	case strings.Contains(errMsg, "No module named"):
		return "Whisper dependencies missing. Please reinstall: pip install --upgrade openai-whisper"
	case strings.Contains(errMsg, "not enough memory") || strings.Contains(errMsg, "OutOfMemoryError"):
		return fmt.Sprintf("insufficient memory for model '%s'. Try using a smaller model (tiny, base, small)", w.model)
	case strings.Contains(errMsg, "Invalid language"):
		return fmt.Sprintf("unsupported language '%s'. Use language codes like 'en', 'ja', 'es' or 'auto'", w.language)
	case strings.Contains(errMsg, "Invalid model"):
		return fmt.Sprintf("unsupported model '%s'. Available models: tiny, base, small, medium, large", w.model)
	case strings.Contains(errMsg, "context deadline exceeded"):
		return "transcription timed out"
	case strings.Contains(errMsg, "Unsupported format") || strings.Contains(errMsg, "format not supported"):
		return fmt.Sprintf("unsupported audio format: %s", filepath.Ext(audioPath))
	default:
		return fmt.Sprintf("transcription failed with model '%s' - %s", w.model, errMsg)
	}
}
