package redisqueue

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/transferd-network/transferd/internal/core/domain"
)

// encodeOutcome serializes an outcome for the stream: JSON, gzip, base64.
// Amounts travel as strings inside the event attributes, so integers of any
// width survive the round trip untouched.
func encodeOutcome(outcome *domain.TransferOutcome) (string, error) {
	buf, err := json.Marshal(outcome)
	if err != nil {
		return "", fmt.Errorf("marshaling outcome: %w", err)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(buf); err != nil {
		return "", fmt.Errorf("compressing outcome: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compressing outcome: %w", err)
	}

	return base64.StdEncoding.EncodeToString(compressed.Bytes()), nil
}

func decodeOutcome(payload string) (*domain.TransferOutcome, error) {
	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding outcome payload: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompressing outcome payload: %w", err)
	}
	defer zr.Close()

	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing outcome payload: %w", err)
	}

	outcome := &domain.TransferOutcome{}
	if err := json.Unmarshal(buf, outcome); err != nil {
		return nil, fmt.Errorf("unmarshaling outcome: %w", err)
	}
	return outcome, nil
}
