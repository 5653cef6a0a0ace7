// Package platform classifies lesson video references and fetches their metadata.
package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Taichi-iskw/lesson-media/internal/model"
)

// Classification is the result of classifying a raw video reference
type Classification struct {
	Platform                  model.Platform `json:"platform"`
	SupportsAutoMetadataFetch bool           `json:"supports_auto_metadata_fetch"`
	// ExternalID is the platform's video ID when the URL shape exposes one
	ExternalID string `json:"external_id,omitempty"`
}

// pattern matches "host + path" of a URL; the first submatch is the video ID
type pattern struct {
	re *regexp.Regexp
}

// Adapter describes one named external video platform
type Adapter struct {
	Platform                  model.Platform
	SupportsAutoMetadataFetch bool
	patterns                  []pattern
}

func newAdapter(platform model.Platform, autoFetch bool, exprs ...string) Adapter {
	a := Adapter{Platform: platform, SupportsAutoMetadataFetch: autoFetch}
	for _, expr := range exprs {
		a.patterns = append(a.patterns, pattern{re: regexp.MustCompile(expr)})
	}
	return a
}

// match returns the length of the longest matching pattern and the captured ID
func (a Adapter) match(hostPath string) (int, string) {
	best, id := 0, ""
	for _, p := range a.patterns {
		loc := p.re.FindStringSubmatchIndex(hostPath)
		if loc == nil || loc[0] != 0 {
			continue
		}
		if n := loc[1] - loc[0]; n > best {
			best = n
			id = ""
			if len(loc) >= 4 && loc[2] >= 0 {
				id = hostPath[loc[2]:loc[3]]
			}
		}
	}
	return best, id
}

// Registry classifies URLs against the known platform adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a Registry with the built-in platform adapters.
// YouTube metadata is quota and consent gated, so it is only fetched on explicit request.
func NewRegistry() *Registry {
	return NewRegistryWithAdapters(
		newAdapter(model.PlatformYouTube, false,
			`^(?:www\.|m\.)?youtube\.com/watch\?(?:.*&)?v=([\w-]{11})`,
			`^(?:www\.|m\.)?youtube\.com/shorts/([\w-]{11})`,
			`^(?:www\.)?youtube(?:-nocookie)?\.com/embed/([\w-]{11})`,
			`^youtu\.be/([\w-]{11})`,
		),
		newAdapter(model.PlatformVimeo, true,
			`^(?:www\.)?vimeo\.com/(\d+)`,
			`^player\.vimeo\.com/video/(\d+)`,
		),
		newAdapter(model.PlatformLoom, true,
			`^(?:www\.)?loom\.com/share/([0-9a-f]{32})`,
			`^(?:www\.)?loom\.com/embed/([0-9a-f]{32})`,
		),
		newAdapter(model.PlatformWistia, true,
			`^[\w-]+\.wistia\.com/medias/(\w+)`,
			`^fast\.wistia\.(?:net|com)/embed/(?:medias|iframe)/(\w+)`,
		),
	)
}

// NewRegistryWithAdapters creates a Registry with custom adapters (for testing)
func NewRegistryWithAdapters(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Classify maps a raw reference to a platform. It never fails:
// unknown http(s) URLs are GENERIC_URL, opaque tokens and gs:// objects are UPLOAD,
// and anything malformed is GENERIC_URL with metadata fetch disabled.
func (r *Registry) Classify(raw string) Classification {
	raw = strings.TrimSpace(raw)
	malformed := Classification{Platform: model.PlatformGenericURL}

	if raw == "" {
		return malformed
	}
	if IsOpaqueToken(raw) || strings.HasPrefix(raw, "gs://") {
		return Classification{Platform: model.PlatformUpload}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return malformed
	}

	hostPath := strings.ToLower(u.Host) + u.EscapedPath()
	if u.RawQuery != "" {
		hostPath += "?" + u.RawQuery
	}

	var (
		best    int
		matched *Adapter
		id      string
	)
	for i := range r.adapters {
		n, matchedID := r.adapters[i].match(hostPath)
		if n > best {
			best, matched, id = n, &r.adapters[i], matchedID
		}
	}
	if matched == nil {
		return Classification{Platform: model.PlatformGenericURL, SupportsAutoMetadataFetch: true}
	}
	return Classification{
		Platform:                  matched.Platform,
		SupportsAutoMetadataFetch: matched.SupportsAutoMetadataFetch,
		ExternalID:                id,
	}
}

var opaqueTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsOpaqueToken reports whether ref is an upload handle rather than a URL
func IsOpaqueToken(ref string) bool {
	return opaqueTokenRe.MatchString(ref)
}

// IsWebURL reports whether raw is an absolute http(s) URL with a host
func IsWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
