// Package video holds helpers shared by the acquisition backends: recognised
// container extensions, run-scoped file discovery and backend routing.
package video

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"clipscribe/internal/core/ports"
)

// Extensions lists the containers the pipeline accepts, in preference order.
var Extensions = []string{".mp4", ".webm", ".mkv", ".mov"}

// HasVideoExt reports whether name ends in a recognised container extension.
func HasVideoExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// FindFirst returns the first video file in dir. Only dir is scanned, never
// its parents, so concurrent runs with distinct dirs cannot see each other's
// downloads. Partial downloads are ignored.
func FindFirst(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, ext := range Extensions {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}
	return "", ports.ErrNoVideo
}

// IsDirectMediaURL reports whether the URL points straight at a media file
// rather than at a social-media page.
func IsDirectMediaURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return HasVideoExt(path.Base(u.Path))
}

// Router sends direct media links to one fetcher and everything else to
// another.
type Router struct {
	direct ports.VideoFetcher
	page   ports.VideoFetcher
}

// NewRouter creates a Router. direct may be nil, in which case every URL goes
// to page.
func NewRouter(direct, page ports.VideoFetcher) *Router {
	return &Router{direct: direct, page: page}
}

func (r *Router) Name() string { return "router" }

// Fetch delegates to the backend chosen for req.URL.
func (r *Router) Fetch(ctx context.Context, req ports.FetchRequest) (string, error) {
	return r.Pick(req.URL).Fetch(ctx, req)
}

// Pick returns the backend that would handle rawURL.
func (r *Router) Pick(rawURL string) ports.VideoFetcher {
	if r.direct != nil && IsDirectMediaURL(rawURL) {
		return r.direct
	}
	return r.page
}
