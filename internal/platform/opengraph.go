package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/model"
)

const maxPageBody = 2 << 20

// OpenGraphFetcher scrapes OpenGraph and schema.org tags from a generic video page
type OpenGraphFetcher struct {
	client HTTPClient
}

// NewOpenGraphFetcher creates a new OpenGraphFetcher
func NewOpenGraphFetcher(client HTTPClient) *OpenGraphFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenGraphFetcher{client: client}
}

// FetchMetadata downloads the page and reads og:title, og:image and the video duration tags
func (f *OpenGraphFetcher) FetchMetadata(ctx context.Context, rawURL string) (*model.VideoMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "invalid page URL")
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "page request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeMetadataUnavailable, fmt.Sprintf("page returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBody))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMetadataUnavailable, "failed to parse page")
	}

	meta := &model.VideoMetadata{
		Title:     firstContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`),
		Thumbnail: firstContent(doc, `meta[property="og:image"]`, `meta[name="twitter:image"]`),
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if raw := firstContent(doc, `meta[property="og:video:duration"]`, `meta[property="video:duration"]`); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			meta.DurationSeconds = model.IntPtr(n)
		}
	}
	if meta.DurationSeconds == nil {
		if raw := firstContent(doc, `meta[itemprop="duration"]`); raw != "" {
			if n, ok := parseISODuration(raw); ok && n > 0 {
				meta.DurationSeconds = model.IntPtr(n)
			}
		}
	}

	meta.Available = meta.Title != "" || meta.Thumbnail != "" || meta.DurationSeconds != nil
	return meta, nil
}

func firstContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?$`)

// parseISODuration parses the PT#H#M#S form used by schema.org VideoObject
func parseISODuration(s string) (int, bool) {
	m := isoDurationRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "PT" {
		return 0, false
	}
	total := 0
	for i, mult := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		total += n * mult
	}
	return total, true
}
