package httpinterface

import (
	"fmt"
	"strings"
	"sync"
)

// CSPBuilder renders the Content-Security-Policy header value that lets a
// browser-facing frontend reach every registered node. Origins keep their
// registration order and are never listed twice.
type CSPBuilder struct {
	mtx     sync.RWMutex
	origins []string
	seen    map[string]struct{}
}

// NewCSPBuilder returns a builder with an empty connect-src allow list.
func NewCSPBuilder() *CSPBuilder {
	return &CSPBuilder{
		seen: make(map[string]struct{}),
	}
}

// AllowOrigin adds an origin to the connect-src allow list. Adding an
// origin twice is a no-op.
func (b *CSPBuilder) AllowOrigin(origin string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if _, ok := b.seen[origin]; ok {
		return
	}
	b.seen[origin] = struct{}{}
	b.origins = append(b.origins, origin)
}

// Header returns the policy value with the current allow list.
func (b *CSPBuilder) Header() string {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	if len(b.origins) == 0 {
		return "default-src 'self'"
	}
	return fmt.Sprintf(
		"default-src 'self'; connect-src 'self' %s",
		strings.Join(b.origins, " "),
	)
}
