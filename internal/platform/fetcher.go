package platform

import (
	"context"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// MetadataFetcher resolves best-effort metadata for a video URL
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error)
}

// Dispatcher routes metadata fetches to the fetcher registered for the URL's platform
type Dispatcher struct {
	registry *Registry
	fetchers map[model.Platform]MetadataFetcher
}

// NewDispatcher creates a Dispatcher; platforms without a fetcher report METADATA_UNAVAILABLE
func NewDispatcher(registry *Registry, fetchers map[model.Platform]MetadataFetcher) *Dispatcher {
	return &Dispatcher{registry: registry, fetchers: fetchers}
}

// NewDefaultDispatcher wires yt-dlp for YouTube, oEmbed for Vimeo/Loom/Wistia and OpenGraph for generic pages
func NewDefaultDispatcher(registry *Registry, ytdlp MetadataFetcher, client HTTPClient) *Dispatcher {
	return NewDispatcher(registry, map[model.Platform]MetadataFetcher{
		model.PlatformYouTube:    ytdlp,
		model.PlatformVimeo:      NewOEmbedFetcher(VimeoOEmbedEndpoint, client),
		model.PlatformLoom:       NewOEmbedFetcher(LoomOEmbedEndpoint, client),
		model.PlatformWistia:     NewOEmbedFetcher(WistiaOEmbedEndpoint, client),
		model.PlatformGenericURL: NewOpenGraphFetcher(client),
	})
}

// FetchMetadata classifies rawURL and delegates to the platform's fetcher
func (d *Dispatcher) FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error) {
	fetcher, ok := d.fetchers[d.registry.Classify(rawURL).Platform]
	if !ok || fetcher == nil {
		return nil, apperrors.New(apperrors.CodeMetadataUnavailable, "platform has no metadata source")
	}
	return fetcher.FetchMetadata(ctx, rawURL)
}
