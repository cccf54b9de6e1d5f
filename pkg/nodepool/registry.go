package nodepool

import (
	"errors"
	"net/url"
	"sync"
)

var (
	// ErrAlreadyRegistered ...
	ErrAlreadyRegistered = errors.New("node is already registered")
	// ErrNotRegistered ...
	ErrNotRegistered = errors.New("node is not registered")
	// ErrMaxReached ...
	ErrMaxReached = errors.New("max number of nodes reached")
	// ErrMinReached ...
	ErrMinReached = errors.New("min number of nodes reached")
	// ErrInvalidURL ...
	ErrInvalidURL = errors.New("node url must be a valid absolute url")
	// ErrNoNodesAvailable ...
	ErrNoNodesAvailable = errors.New("no nodes available")
	// ErrInvalidBounds ...
	ErrInvalidBounds = errors.New("min count must be in range [1, maxCount]")
)

// RegistryOpts is the struct given to the NewRegistry factory.
type RegistryOpts struct {
	MinCount  int
	MaxCount  int
	Endpoints []string
	// OnRegister, if set, is invoked after every successful registration,
	// including the initial seeding. Used to keep the outbound allow-list of
	// the browser-facing security policy in sync with the pool.
	OnRegister func(endpoint string)
}

func (o RegistryOpts) validate() error {
	if o.MinCount < 1 || o.MinCount > o.MaxCount {
		return ErrInvalidBounds
	}
	if len(o.Endpoints) < o.MinCount || len(o.Endpoints) > o.MaxCount {
		return ErrInvalidBounds
	}
	for _, endpoint := range o.Endpoints {
		if !isValidURL(endpoint) {
			return ErrInvalidURL
		}
	}
	return nil
}

// Registry is a bounded set of unique node endpoint urls for one protocol
// family. All mutations are synchronous and fully validated before commit.
type Registry struct {
	mtx        *sync.RWMutex
	endpoints  map[string]struct{}
	order      []string
	minCount   int
	maxCount   int
	onRegister func(endpoint string)
}

// NewRegistry returns a registry seeded with the given endpoints. The
// registry size is guaranteed to stay within [MinCount, MaxCount] for its
// whole lifetime.
func NewRegistry(opts RegistryOpts) (*Registry, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		mtx:        &sync.RWMutex{},
		endpoints:  make(map[string]struct{}),
		order:      make([]string, 0, len(opts.Endpoints)),
		minCount:   opts.MinCount,
		maxCount:   opts.MaxCount,
		onRegister: opts.OnRegister,
	}
	for _, endpoint := range opts.Endpoints {
		if err := r.Register(endpoint); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a new endpoint to the registry.
func (r *Registry) Register(endpoint string) error {
	if !isValidURL(endpoint) {
		return ErrInvalidURL
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.endpoints[endpoint]; ok {
		return ErrAlreadyRegistered
	}
	if len(r.endpoints) >= r.maxCount {
		return ErrMaxReached
	}

	r.endpoints[endpoint] = struct{}{}
	r.order = append(r.order, endpoint)

	if r.onRegister != nil {
		r.onRegister(endpoint)
	}
	return nil
}

// Remove deletes an endpoint from the registry.
func (r *Registry) Remove(endpoint string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.endpoints[endpoint]; !ok {
		return ErrNotRegistered
	}
	if len(r.endpoints) <= r.minCount {
		return ErrMinReached
	}

	delete(r.endpoints, endpoint)
	for i, e := range r.order {
		if e == endpoint {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get asks the given selector to pick one of the registered endpoints.
func (r *Registry) Get(selector Selector) (string, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	if len(r.order) <= 0 {
		return "", ErrNoNodesAvailable
	}
	return selector.Pick(r.order), nil
}

// List returns the registered endpoints in registration order.
func (r *Registry) List() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	endpoints := make([]string, len(r.order))
	copy(endpoints, r.order)
	return endpoints
}

// Count returns the current number of registered endpoints.
func (r *Registry) Count() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	return len(r.endpoints)
}

func isValidURL(endpoint string) bool {
	if len(endpoint) <= 0 {
		return false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
