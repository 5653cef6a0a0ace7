package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// oEmbed endpoints for the platforms whose duration resolves synchronously
const (
	VimeoOEmbedEndpoint  = "https://vimeo.com/api/oembed.json"
	LoomOEmbedEndpoint   = "https://www.loom.com/v1/oembed"
	WistiaOEmbedEndpoint = "https://fast.wistia.com/oembed"
)

const maxOEmbedBody = 1 << 20

// HTTPClient is the subset of *http.Client used by the HTTP based fetchers
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type oEmbedResponse struct {
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
}

// OEmbedFetcher reads metadata from an oEmbed provider endpoint
type OEmbedFetcher struct {
	endpoint string
	client   HTTPClient
}

// NewOEmbedFetcher creates a new OEmbedFetcher for the given endpoint
func NewOEmbedFetcher(endpoint string, client HTTPClient) *OEmbedFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &OEmbedFetcher{endpoint: endpoint, client: client}
}

// FetchMetadata queries the oEmbed endpoint for rawURL
func (f *OEmbedFetcher) FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error) {
	endpoint, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "invalid oEmbed endpoint")
	}
	q := endpoint.Query()
	q.Set("url", rawURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build oEmbed request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "oEmbed request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeMetadataUnavailable, fmt.Sprintf("oEmbed provider returned status %d", resp.StatusCode))
	}

	var body oEmbedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOEmbedBody)).Decode(&body); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "failed to decode oEmbed response")
	}

	meta := &model.VideoMetadata{
		Title:     body.Title,
		Thumbnail: body.ThumbnailURL,
		Available: true,
	}
	if body.Duration > 0 {
		meta.DurationSeconds = model.IntPtr(int(math.Round(body.Duration)))
	}
	return meta, nil
}
