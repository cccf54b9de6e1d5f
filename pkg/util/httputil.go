package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// NewHTTPRequest performs an http call and returns the response status code
// and body. The request is bound to the given context, so callers control
// cancellation and timeouts.
func NewHTTPRequest(
	ctx context.Context,
	method, url, bodyString string,
	header map[string]string,
) (int, string, error) {
	switch method {
	case "GET", "DELETE":
		return do(ctx, method, url, nil, header)
	case "POST":
		return do(ctx, method, url, strings.NewReader(bodyString), header)
	default:
		return 0, "", fmt.Errorf("verb not supported %s", method)
	}
}

func do(
	ctx context.Context,
	method, url string,
	body io.Reader,
	header map[string]string,
) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}

	return rs.StatusCode, string(bodyBytes), nil
}
