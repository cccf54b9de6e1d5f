package nodepool

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, message); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSPoolGet(t *testing.T) {
	endpoints := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		endpoints = append(endpoints, wsURL(newEchoServer(t)))
	}

	pool, err := NewWSPool(WSPoolOpts{
		MinCount:  1,
		MaxCount:  5,
		Endpoints: endpoints,
	})
	require.NoError(t, err)

	conn, err := pool.Get(NewRandomSelector())
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Contains(t, endpoints, conn.Endpoint())
	assert.False(t, conn.IsClosed())
}

func TestWSPoolReconnectRebindsListeners(t *testing.T) {
	server := newEchoServer(t)

	pool, err := NewWSPool(WSPoolOpts{
		MinCount:  1,
		MaxCount:  5,
		Endpoints: []string{wsURL(server)},
	})
	require.NoError(t, err)

	selector := NewRandomSelector()
	conn, err := pool.Get(selector)
	require.NoError(t, err)

	received := make(chan []byte, 1)
	conn.On("tx", func(message []byte) {
		select {
		case received <- message:
		default:
		}
	})

	require.NoError(t, conn.Close())
	require.True(t, conn.IsClosed())

	fresh, err := pool.Get(selector)
	require.NoError(t, err)
	require.False(t, fresh.IsClosed())
	require.NotSame(t, conn, fresh)

	// prior listeners must survive the reconnection
	require.Len(t, fresh.bindings(), 1)

	require.NoError(t, fresh.WriteJSON(map[string]string{"event": "tx"}))
	select {
	case message := <-received:
		assert.Contains(t, string(message), "tx")
	case <-time.After(2 * time.Second):
		t.Fatal("rebound listener did not receive any message")
	}
}

type pinnedSelector struct {
	endpoint string
}

func (s pinnedSelector) Pick(_ []string) string {
	return s.endpoint
}

func TestWSPoolGetDoesNotBlockOnSlowDial(t *testing.T) {
	serverSlow, serverFast := newEchoServer(t), newEchoServer(t)
	endpointSlow, endpointFast := wsURL(serverSlow), wsURL(serverFast)
	slowDelay := 500 * time.Millisecond

	pool, err := NewWSPool(WSPoolOpts{
		MinCount:  1,
		MaxCount:  5,
		Endpoints: []string{endpointSlow, endpointFast},
		Dial: func(endpoint string) (*websocket.Conn, error) {
			if endpoint == endpointSlow {
				time.Sleep(slowDelay)
			}
			conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
			return conn, err
		},
	})
	require.NoError(t, err)

	slowDone := make(chan error, 1)
	go func() {
		_, err := pool.Get(pinnedSelector{endpointSlow})
		slowDone <- err
	}()
	// give the slow dial time to start before racing it
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	conn, err := pool.Get(pinnedSelector{endpointFast})
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Less(t, time.Since(start), slowDelay/2)

	require.NoError(t, <-slowDone)
}

func TestWSPoolRemoveClosesConnection(t *testing.T) {
	serverA, serverB := newEchoServer(t), newEchoServer(t)
	endpointA, endpointB := wsURL(serverA), wsURL(serverB)

	pool, err := NewWSPool(WSPoolOpts{
		MinCount:  1,
		MaxCount:  5,
		Endpoints: []string{endpointA, endpointB},
	})
	require.NoError(t, err)

	var conn *Conn
	for conn == nil || conn.Endpoint() != endpointB {
		conn, err = pool.Get(NewRandomSelector())
		require.NoError(t, err)
	}

	require.NoError(t, pool.Remove(endpointB))
	assert.Equal(t, []string{endpointA}, pool.List())
	assert.True(t, conn.IsClosed())
}
