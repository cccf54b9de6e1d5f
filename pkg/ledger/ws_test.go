package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd-network/transferd/pkg/nodepool"
)

var upgrader = websocket.Upgrader{}

type fakeEventNodeOpts struct {
	// silent acknowledges subscriptions but never reports an event
	silent bool
	// eventDelay postpones the event notification after the acknowledgment
	eventDelay time.Duration
}

// newFakeEventNode acknowledges every subscribe request with an empty
// result, then reports one matching event notification, like a ledger node
// reporting the tracked transaction.
func newFakeEventNode(t *testing.T, opts fakeEventNodeOpts) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var writeMtx sync.Mutex
		for {
			var msg subscribeMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Method != "subscribe" {
				continue
			}

			ack, _ := json.Marshal(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      msg.ID,
				"result":  map[string]string{},
			})
			writeMtx.Lock()
			err = conn.WriteMessage(websocket.TextMessage, ack)
			writeMtx.Unlock()
			if err != nil {
				return
			}
			if opts.silent {
				continue
			}

			notification, _ := json.Marshal(map[string]interface{}{
				"id": msg.ID,
				"result": map[string]string{
					"query": msg.Params.Query,
				},
			})
			delay := opts.eventDelay
			go func() {
				time.Sleep(delay)
				writeMtx.Lock()
				defer writeMtx.Unlock()
				conn.WriteMessage(websocket.TextMessage, notification)
			}()
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestPoolConn(t *testing.T, endpoint string) *nodepool.Conn {
	t.Helper()
	pool, err := nodepool.NewWSPool(nodepool.WSPoolOpts{
		MinCount:  1,
		MaxCount:  1,
		Endpoints: []string{endpoint},
	})
	require.NoError(t, err)

	conn, err := pool.Get(nodepool.NewRandomSelector())
	require.NoError(t, err)
	return conn
}

func TestTrackLive(t *testing.T) {
	conn := newTestPoolConn(t, newFakeEventNode(t, fakeEventNodeOpts{}))
	client := newFakeNode(t, &fakeNode{txCode: codePtr(0)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := TrackLive(ctx, TrackLiveOpts{
		Conn:      conn,
		Client:    client,
		TxHash:    testTxHash,
		Recipient: "tn1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, testTxHash, res.Hash)
}

func TestTrackLiveFailedTx(t *testing.T) {
	conn := newTestPoolConn(t, newFakeEventNode(t, fakeEventNodeOpts{}))
	client := newFakeNode(t, &fakeNode{txCode: codePtr(5)})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := TrackLive(ctx, TrackLiveOpts{
		Conn:      conn,
		Client:    client,
		TxHash:    testTxHash,
		Recipient: "tn1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
}

func TestTrackLiveTimesOut(t *testing.T) {
	conn := newTestPoolConn(t, newFakeEventNode(t, fakeEventNodeOpts{silent: true}))
	client := newFakeNode(t, &fakeNode{txCode: codePtr(0)})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := TrackLive(ctx, TrackLiveOpts{
		Conn:      conn,
		Client:    client,
		TxHash:    testTxHash,
		Recipient: "tn1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	})
	assert.ErrorIs(t, err, ErrRequestTimedOut)
}

// A conforming node acknowledges the subscription before the transaction is
// even on chain. The tracker must wait for the actual event notification and
// tolerate the tx index lagging behind it.
func TestTrackLiveWaitsForEventNotAck(t *testing.T) {
	conn := newTestPoolConn(t, newFakeEventNode(t, fakeEventNodeOpts{
		eventDelay: 150 * time.Millisecond,
	}))

	// the tx becomes queryable only after the event has fired
	node := &fakeNode{}
	client := newFakeNode(t, node)
	go func() {
		time.Sleep(250 * time.Millisecond)
		node.setCode(codePtr(0))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	res, err := TrackLive(ctx, TrackLiveOpts{
		Conn:      conn,
		Client:    client,
		TxHash:    testTxHash,
		Recipient: "tn1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq",
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, testTxHash, res.Hash)
}

func TestTxEventQuery(t *testing.T) {
	recipient := "tn1recipient"
	query := TxEventQuery(recipient)
	assert.Equal(
		t,
		fmt.Sprintf("tm.event='Tx' AND transfer.recipient='%s'", recipient),
		query,
	)
}
