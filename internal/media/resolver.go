// Package media resolves media ids to playable URLs.
package media

import (
	"context"
	"net/url"
	"strings"

	apperrors "github.com/mystira/storyplay/internal/platform/errors"
	"github.com/mystira/storyplay/internal/story/session"
)

var _ session.MediaResolver = (*Resolver)(nil)

// Resolver joins a CDN base URL with media ids. Ids that already look like
// absolute URLs pass through untouched.
type Resolver struct {
	baseURL string
}

// NewResolver creates a Resolver for baseURL.
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimRight(baseURL, "/")}
}

// ResolveMediaURL maps a media id to its URL. An empty id resolves to an
// empty URL.
func (r *Resolver) ResolveMediaURL(ctx context.Context, mediaID string) (string, error) {
	mediaID = strings.TrimSpace(mediaID)
	if mediaID == "" {
		return "", nil
	}
	if strings.HasPrefix(mediaID, "http://") || strings.HasPrefix(mediaID, "https://") {
		return mediaID, nil
	}
	if r.baseURL == "" {
		return "", apperrors.New(apperrors.CodeUnknown, "media base URL is not configured")
	}
	return r.baseURL + "/" + url.PathEscape(mediaID), nil
}
