package s3

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/s3fuse/corefs/internal/transport"
)

// GCSSigner implements transport.Hook for Google Cloud Storage's XML API
// using an OAuth2 bearer token. The token lifecycle is kept under a
// mutex: refreshed once at construction, refreshed again whenever the
// previous attempt in the same Run failed authorization (401/403), and
// refreshed whenever the cached token has expired.
type GCSSigner struct {
	BucketURL string

	cfg          oauth2.Config
	refreshToken string

	mu           sync.Mutex
	token        *oauth2.Token
	lastAttempt  int
	lastAuthFail bool
}

// NewGCSSigner builds a GCSSigner from a persisted refresh token, doing
// the initial token exchange immediately (construction-time refresh).
// A fresh oauth2.TokenSource is constructed for every exchange rather
// than reused, since oauth2's reuse-wrapped source caches the access
// token until it is near expiry and gives callers no way to force an
// early refresh — which the hook-driven refresh-on-auth-failure trigger
// needs to do.
func NewGCSSigner(ctx context.Context, cfg oauth2.Config, refreshToken, bucketURL string) (*GCSSigner, error) {
	s := &GCSSigner{BucketURL: bucketURL, cfg: cfg, refreshToken: refreshToken}
	tok, err := s.exchange(ctx)
	if err != nil {
		return nil, err
	}
	s.token = tok
	return s, nil
}

func (s *GCSSigner) exchange(ctx context.Context) (*oauth2.Token, error) {
	source := s.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken})
	return source.Token()
}

// AdjustURL resolves a relative key path against the bucket's base URL.
func (s *GCSSigner) AdjustURL(relative string, query map[string]string) string {
	url := strings.TrimRight(s.BucketURL, "/") + relative
	if len(query) == 0 {
		return url
	}
	var b strings.Builder
	b.WriteString(url)
	b.WriteByte('?')
	first := true
	for k, v := range query {
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}

// PreRun refreshes the token if needed and sets the Authorization header.
func (s *GCSSigner) PreRun(req *transport.Request, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	needsRefresh := s.token == nil || !s.token.Valid() || (s.lastAuthFail && attempt > s.lastAttempt)
	if needsRefresh {
		tok, err := s.exchange(context.Background())
		if err != nil {
			return err
		}
		s.token = tok
		s.lastAuthFail = false
	}
	s.lastAttempt = attempt

	req.SetHeader("Authorization", "Bearer "+s.token.AccessToken)
	return nil
}

// ShouldRetry records whether this attempt failed authorization so the
// next PreRun forces a refresh; the transport retry loop itself decides
// whether a 401 is retried (GCS gets exactly one retry after refresh).
func (s *GCSSigner) ShouldRetry(req *transport.Request, attempt int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuthFail = req.ResponseCode() == 401 || req.ResponseCode() == 403
	return false
}

// markAuthFailed is called by the retry loop's 401 handling path via
// ShouldRetry above in the normal flow; exposed separately so tests can
// simulate a failed attempt without a live server round trip.
func (s *GCSSigner) markAuthFailed(attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAuthFail = true
	s.lastAttempt = attempt
}
