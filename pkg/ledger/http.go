package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"github.com/transferd-network/transferd/pkg/circuitbreaker"
	"github.com/transferd-network/transferd/pkg/util"
)

// HTTPClient talks to one ledger-query node over its REST interface. Calls
// go through a circuit breaker so a flapping node stops being hammered.
type HTTPClient struct {
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewHTTPClient returns a client bound to the given node endpoint.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		cb:      circuitbreaker.NewCircuitBreaker(),
	}
}

// BaseURL returns the node endpoint this client is bound to.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

type httpResponse struct {
	status int
	body   string
}

func (c *HTTPClient) request(
	ctx context.Context, method, url, body string, headers map[string]string,
) (*httpResponse, error) {
	res, err := c.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(ctx, method, url, body, headers)
		if err != nil {
			return nil, err
		}
		return &httpResponse{status, resp}, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*httpResponse), nil
}

type txResponse struct {
	Hash     string `json:"hash"`
	Height   string `json:"height"`
	TxResult struct {
		Code      uint32  `json:"code"`
		GasWanted string  `json:"gas_wanted"`
		GasUsed   string  `json:"gas_used"`
		Log       string  `json:"log"`
		Events    []Event `json:"events"`
	} `json:"tx_result"`
}

// GetTx fetches a transaction by hash. A hash the ledger does not know yet
// yields ErrTxNotFound.
func (c *HTTPClient) GetTx(ctx context.Context, hash string) (*TxResult, error) {
	url := fmt.Sprintf("%s/txs/%s", c.baseURL, hash)
	res, err := c.request(ctx, "GET", url, "", nil)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if res.status != http.StatusOK {
		return nil, fmt.Errorf("ledger returned status %d: %s", res.status, res.body)
	}

	var tx txResponse
	if err := json.Unmarshal([]byte(res.body), &tx); err != nil {
		return nil, fmt.Errorf("invalid tx response: %w", err)
	}

	height, _ := strconv.ParseInt(tx.Height, 10, 64)
	gasWanted, _ := strconv.ParseInt(tx.TxResult.GasWanted, 10, 64)
	gasUsed, _ := strconv.ParseInt(tx.TxResult.GasUsed, 10, 64)

	return &TxResult{
		Hash:      tx.Hash,
		Height:    height,
		Code:      tx.TxResult.Code,
		GasWanted: gasWanted,
		GasUsed:   gasUsed,
		RawLog:    tx.TxResult.Log,
		Events:    tx.TxResult.Events,
	}, nil
}

type broadcastRequest struct {
	Tx        string `json:"tx"`
	Signature string `json:"signature"`
	PubKey    string `json:"pub_key"`
	Mode      string `json:"mode"`
}

type broadcastResponse struct {
	Hash string `json:"hash"`
	Code uint32 `json:"code"`
	Log  string `json:"log"`
}

// BroadcastTx submits a signed transfer to the node and returns its hash.
func (c *HTTPClient) BroadcastTx(
	ctx context.Context, docBytes, signature, pubKey []byte,
) (string, error) {
	body, _ := json.Marshal(broadcastRequest{
		Tx:        base64.StdEncoding.EncodeToString(docBytes),
		Signature: base64.StdEncoding.EncodeToString(signature),
		PubKey:    base64.StdEncoding.EncodeToString(pubKey),
		Mode:      "sync",
	})
	headers := map[string]string{"Content-Type": "application/json"}

	url := fmt.Sprintf("%s/txs", c.baseURL)
	res, err := c.request(ctx, "POST", url, string(body), headers)
	if err != nil {
		return "", err
	}
	if res.status != http.StatusOK {
		return "", fmt.Errorf("ledger returned status %d: %s", res.status, res.body)
	}

	var out broadcastResponse
	if err := json.Unmarshal([]byte(res.body), &out); err != nil {
		return "", fmt.Errorf("invalid broadcast response: %w", err)
	}
	if out.Code != 0 {
		return "", fmt.Errorf("%w: %s", ErrBroadcastRejected, out.Log)
	}
	return out.Hash, nil
}

type blockResponse struct {
	Block struct {
		Header struct {
			Height string    `json:"height"`
			Time   time.Time `json:"time"`
		} `json:"header"`
	} `json:"block"`
}

// GetBlockTime returns the timestamp of the block at the given height.
func (c *HTTPClient) GetBlockTime(ctx context.Context, height int64) (time.Time, error) {
	url := fmt.Sprintf("%s/blocks/%d", c.baseURL, height)
	res, err := c.request(ctx, "GET", url, "", nil)
	if err != nil {
		return time.Time{}, err
	}
	if res.status != http.StatusOK {
		return time.Time{}, fmt.Errorf("ledger returned status %d: %s", res.status, res.body)
	}

	var out blockResponse
	if err := json.Unmarshal([]byte(res.body), &out); err != nil {
		return time.Time{}, fmt.Errorf("invalid block response: %w", err)
	}
	return out.Block.Header.Time, nil
}
