package importer

import (
	"errors"
	"time"

	"github.com/rpattn/courtdata/internal/clock"
	"github.com/rpattn/courtdata/internal/domain"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrPreviewExpired is returned when a preview token is unknown or past its
// expiry.
var ErrPreviewExpired = errors.New("validation preview expired")

const previewCacheSize = 128

// PreviewCache holds validation previews for their bounded lifetime.
// Previews never touch the store; once expired they are gone even if an
// entry physically lingers in the cache.
type PreviewCache struct {
	cache *expirable.LRU[string, domain.ValidationPreview]
	clk   clock.Clock
	ttl   time.Duration
}

// NewPreviewCache creates a TTL-bounded preview cache.
func NewPreviewCache(clk clock.Clock, ttl time.Duration) *PreviewCache {
	return &PreviewCache{
		cache: expirable.NewLRU[string, domain.ValidationPreview](previewCacheSize, nil, ttl),
		clk:   clk,
		ttl:   ttl,
	}
}

// Put stores a preview under its token.
func (c *PreviewCache) Put(preview domain.ValidationPreview) {
	c.cache.Add(preview.Token, preview)
}

// Get returns the preview for a token, or ErrPreviewExpired when the token
// is unknown or the preview outlived its deadline.
func (c *PreviewCache) Get(token string) (domain.ValidationPreview, error) {
	preview, ok := c.cache.Get(token)
	if !ok {
		return domain.ValidationPreview{}, ErrPreviewExpired
	}
	if c.clk.Now().After(preview.ExpiresAt) {
		c.cache.Remove(token)
		return domain.ValidationPreview{}, ErrPreviewExpired
	}
	return preview, nil
}

// TTL returns the configured preview lifetime.
func (c *PreviewCache) TTL() time.Duration {
	return c.ttl
}
