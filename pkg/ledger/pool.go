package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/transferd-network/transferd/pkg/nodepool"
)

// PooledClient runs ledger queries against a node registry, picking a node
// per call. Nodes removed from the registry stop being used immediately,
// clients are cached per endpoint.
type PooledClient struct {
	nodes    *nodepool.Registry
	selector nodepool.Selector

	mtx     sync.Mutex
	clients map[string]*HTTPClient
}

// NewPooledClient returns a client over the given registry and selector.
func NewPooledClient(
	nodes *nodepool.Registry, selector nodepool.Selector,
) *PooledClient {
	if selector == nil {
		selector = nodepool.NewRandomSelector()
	}
	return &PooledClient{
		nodes:    nodes,
		selector: selector,
		clients:  make(map[string]*HTTPClient),
	}
}

// GetBlockTime returns the timestamp of the block at the given height,
// asked of a freshly picked node.
func (p *PooledClient) GetBlockTime(
	ctx context.Context, height int64,
) (time.Time, error) {
	endpoint, err := p.nodes.Get(p.selector)
	if err != nil {
		return time.Time{}, err
	}
	return p.clientFor(endpoint).GetBlockTime(ctx, height)
}

func (p *PooledClient) clientFor(endpoint string) *HTTPClient {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	client, ok := p.clients[endpoint]
	if !ok {
		client = NewHTTPClient(endpoint)
		p.clients[endpoint] = client
	}
	return client
}
