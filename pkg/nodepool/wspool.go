package nodepool

import (
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// EventHandler is invoked with every raw message received on a pooled
// websocket connection. Handlers are expected to filter the messages they
// care about.
type EventHandler func(message []byte)

type listenerBinding struct {
	Event   string
	Handler EventHandler
}

// DialFunc opens a new websocket connection towards the given endpoint.
type DialFunc func(endpoint string) (*websocket.Conn, error)

func defaultDial(endpoint string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	return conn, err
}

// Conn wraps a live websocket connection together with the list of event
// listeners bound to it. The listener list survives reconnections: when the
// pool replaces a dead connection it copies the bindings onto the new one.
type Conn struct {
	mtx       *sync.Mutex
	endpoint  string
	ws        *websocket.Conn
	closed    bool
	listeners []listenerBinding
}

func newConn(endpoint string, ws *websocket.Conn) *Conn {
	c := &Conn{
		mtx:      &sync.Mutex{},
		endpoint: endpoint,
		ws:       ws,
	}
	go c.readPump()
	return c
}

// Endpoint returns the url this connection was dialed against.
func (c *Conn) Endpoint() string {
	return c.endpoint
}

// On binds a handler to an event name.
func (c *Conn) On(event string, handler EventHandler) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.listeners = append(c.listeners, listenerBinding{event, handler})
}

// Off removes every handler bound to the given event name.
func (c *Conn) Off(event string) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	listeners := make([]listenerBinding, 0, len(c.listeners))
	for _, l := range c.listeners {
		if l.Event != event {
			listeners = append(listeners, l)
		}
	}
	c.listeners = listeners
}

// WriteJSON sends a json message over the connection.
func (c *Conn) WriteJSON(v interface{}) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.ws.WriteJSON(v)
}

// Close closes the underlying websocket connection.
func (c *Conn) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.closed = true
	return c.ws.Close()
}

// IsClosed returns whether the connection has been closed, either explicitly
// or because the read pump detected a broken transport.
func (c *Conn) IsClosed() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.closed
}

func (c *Conn) markClosed() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.closed = true
}

func (c *Conn) bindings() []listenerBinding {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	listeners := make([]listenerBinding, len(c.listeners))
	copy(listeners, c.listeners)
	return listeners
}

func (c *Conn) dispatch(message []byte) {
	for _, l := range c.bindings() {
		l.Handler(message)
	}
}

func (c *Conn) readPump() {
	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.markClosed()
			return
		}
		c.dispatch(message)
	}
}

// WSPoolOpts is the struct given to the NewWSPool factory.
type WSPoolOpts struct {
	MinCount  int
	MaxCount  int
	Endpoints []string
	// Dial defaults to gorilla's default dialer when not set.
	Dial DialFunc
}

// WSPool maintains at most one live websocket connection per registered
// endpoint. Connections are dialed lazily on first Get and transparently
// re-established, listeners included, when found dead.
type WSPool struct {
	mtx      *sync.Mutex
	registry *Registry
	conns    map[string]*Conn
	dial     DialFunc
}

// NewWSPool returns a pool backed by a bounded endpoint registry.
func NewWSPool(opts WSPoolOpts) (*WSPool, error) {
	registry, err := NewRegistry(RegistryOpts{
		MinCount:  opts.MinCount,
		MaxCount:  opts.MaxCount,
		Endpoints: opts.Endpoints,
	})
	if err != nil {
		return nil, err
	}

	dial := opts.Dial
	if dial == nil {
		dial = defaultDial
	}

	return &WSPool{
		mtx:      &sync.Mutex{},
		registry: registry,
		conns:    make(map[string]*Conn),
		dial:     dial,
	}, nil
}

// Register adds a new endpoint to the pool's registry.
func (p *WSPool) Register(endpoint string) error {
	return p.registry.Register(endpoint)
}

// Remove deletes an endpoint from the pool's registry and closes its
// connection if one is open.
func (p *WSPool) Remove(endpoint string) error {
	if err := p.registry.Remove(endpoint); err != nil {
		return err
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if conn, ok := p.conns[endpoint]; ok {
		delete(p.conns, endpoint)
		if err := conn.Close(); err != nil {
			log.WithError(err).Warnf("error while closing connection to %s", endpoint)
		}
	}
	return nil
}

// List returns the registered endpoints.
func (p *WSPool) List() []string {
	return p.registry.List()
}

// Count returns the number of registered endpoints.
func (p *WSPool) Count() int {
	return p.registry.Count()
}

// Get returns a live connection for one of the registered endpoints, picked
// by the given selector. A dead connection is redialed and the listeners of
// the old one are rebound to the new one before it is returned.
func (p *WSPool) Get(selector Selector) (*Conn, error) {
	endpoint, err := p.registry.Get(selector)
	if err != nil {
		return nil, err
	}

	p.mtx.Lock()
	conn, ok := p.conns[endpoint]
	p.mtx.Unlock()
	if ok && !conn.IsClosed() {
		return conn, nil
	}

	// dialing happens outside the pool lock so that one slow endpoint
	// cannot stall Gets towards the others
	ws, err := p.dial(endpoint)
	if err != nil {
		return nil, err
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	// a concurrent Get may have redialed the same endpoint meanwhile
	if current, stillThere := p.conns[endpoint]; stillThere &&
		current != conn && !current.IsClosed() {
		ws.Close()
		return current, nil
	}

	fresh := newConn(endpoint, ws)
	if ok {
		// rebind: the new connection inherits the dead one's listeners.
		fresh.mtx.Lock()
		fresh.listeners = conn.bindings()
		fresh.mtx.Unlock()
	}
	p.conns[endpoint] = fresh
	return fresh, nil
}
