package platform

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/common"
)

// ytDlpVideoInfo is the subset of yt-dlp --dump-json output used for metadata
type ytDlpVideoInfo struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration"`
	Thumbnail string  `json:"thumbnail"`
}

// YTDLPFetcher reads video metadata with yt-dlp
type YTDLPFetcher struct {
	cmdRunner common.CmdRunner
}

// NewYTDLPFetcher creates a new YTDLPFetcher with default CmdRunner
func NewYTDLPFetcher() *YTDLPFetcher {
	return &YTDLPFetcher{cmdRunner: common.NewCmdRunner()}
}

// NewYTDLPFetcherWithCmdRunner creates a new YTDLPFetcher with custom CmdRunner (for testing)
func NewYTDLPFetcherWithCmdRunner(cmdRunner common.CmdRunner) *YTDLPFetcher {
	return &YTDLPFetcher{cmdRunner: cmdRunner}
}

// FetchMetadata runs yt-dlp without downloading the media
func (f *YTDLPFetcher) FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error) {
	if rawURL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video URL is required")
	}

	args := []string{
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		rawURL,
	}
	output, err := f.cmdRunner.Run(ctx, "yt-dlp", args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "failed to fetch video metadata with yt-dlp")
	}

	// yt-dlp prints one JSON object per line; the first one is the video
	line := strings.TrimSpace(string(output))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	var info ytDlpVideoInfo
	if err := json.Unmarshal([]byte(line), &info); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "failed to parse yt-dlp output")
	}

	meta := &model.VideoMetadata{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Available: true,
	}
	if info.Duration > 0 {
		meta.DurationSeconds = model.IntPtr(int(math.Round(info.Duration)))
	}
	return meta, nil
}
