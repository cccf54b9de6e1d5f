package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/transferd-network/transferd/pkg/nodepool"
)

// eventLookupInterval paces the by-hash lookups after the event fired, in
// case the node's tx index lags its event stream.
const eventLookupInterval = 250 * time.Millisecond

// TxEventQuery builds the subscription query matching the transfer events
// addressed to the given recipient.
func TxEventQuery(recipient string) string {
	return fmt.Sprintf("tm.event='Tx' AND transfer.recipient='%s'", recipient)
}

type subscribeMsg struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	ID      string          `json:"id"`
	Params  subscribeParams `json:"params"`
}

type subscribeParams struct {
	Query string `json:"query"`
}

type eventMsg struct {
	ID     string `json:"id"`
	Result struct {
		Query string `json:"query"`
	} `json:"result"`
}

// TrackLiveOpts is the struct given to the TrackLive function.
type TrackLiveOpts struct {
	Conn      *nodepool.Conn
	Client    *HTTPClient
	TxHash    string
	Recipient string
}

// TrackLive resolves the terminal outcome of a transaction by subscribing to
// the ledger's event stream over an already-open websocket connection. On
// the first event matching the recipient it queries the transaction by hash,
// then unsubscribes and detaches its listener.
//
// One live-tracking call per transaction: subscribing twice for the same
// hash may deliver the event to the wrong waiter.
func TrackLive(ctx context.Context, opts TrackLiveOpts) (*TxResult, error) {
	subID := "tx/" + opts.TxHash
	query := TxEventQuery(opts.Recipient)

	matched := make(chan struct{}, 1)
	opts.Conn.On(subID, func(message []byte) {
		var event eventMsg
		if err := json.Unmarshal(message, &event); err != nil {
			return
		}
		// the subscribe acknowledgment carries the same id but an empty
		// result, only a notification echoes the query back
		if event.Result.Query != query {
			return
		}
		select {
		case matched <- struct{}{}:
		default:
		}
	})
	defer opts.Conn.Off(subID)

	if err := opts.Conn.WriteJSON(subscribeMsg{
		JSONRPC: "2.0",
		Method:  "subscribe",
		ID:      subID,
		Params:  subscribeParams{Query: query},
	}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrRequestTimedOut
		}
		return nil, ctx.Err()
	case <-matched:
	}

	// the subscription delivered its one notification, drop it
	if err := opts.Conn.WriteJSON(subscribeMsg{
		JSONRPC: "2.0",
		Method:  "unsubscribe",
		ID:      subID,
		Params:  subscribeParams{Query: query},
	}); err != nil {
		return nil, err
	}

	// the event may outrun the node's tx index, keep looking the hash up
	// until the deadline instead of failing on the first miss
	limiter := rate.NewLimiter(rate.Every(eventLookupInterval), 1)
	return WaitForTx(ctx, opts.Client, opts.TxHash, limiter)
}
