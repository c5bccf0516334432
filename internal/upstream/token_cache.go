package upstream

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew is how much remaining lifetime a cached token needs to be
// reused without a refresh.
const refreshSkew = time.Minute

// CachedTokenProvider wraps a TokenProvider with a process-wide cache. A
// token is reused while more than refreshSkew remains before expiry;
// concurrent refreshes for the same scope are collapsed into one call.
type CachedTokenProvider struct {
	inner TokenProvider
	group singleflight.Group
	now   func() time.Time

	mu     sync.RWMutex
	cached map[string]Token
}

func NewCachedTokenProvider(inner TokenProvider) *CachedTokenProvider {
	return &CachedTokenProvider{
		inner:  inner,
		now:    time.Now,
		cached: map[string]Token{},
	}
}

func (p *CachedTokenProvider) Acquire(ctx context.Context, scope string) (Token, error) {
	p.mu.RLock()
	token, ok := p.cached[scope]
	p.mu.RUnlock()

	if ok && token.ExpiresAt.Sub(p.now()) > refreshSkew {
		return token, nil
	}

	fresh, err, _ := p.group.Do(scope, func() (any, error) {
		token, err := p.inner.Acquire(ctx, scope)
		if err != nil {
			return Token{}, err
		}

		p.mu.Lock()
		p.cached[scope] = token
		p.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return Token{}, err
	}

	return fresh.(Token), nil
}
