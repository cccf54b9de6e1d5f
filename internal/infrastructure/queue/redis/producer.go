package redisqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/transferd-network/transferd/internal/core/domain"
)

const (
	entryIDField   = "id"
	entryDataField = "data"
)

var (
	// ErrNullClient ...
	ErrNullClient = errors.New("redis client must not be null")
	// ErrNullStreamKey ...
	ErrNullStreamKey = errors.New("stream key must not be null")
)

// streamClient is the slice of the redis API the queue relies on. It is
// satisfied by *redis.Client.
type streamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, args *redis.XReadArgs) *redis.XStreamSliceCmd
	XDel(ctx context.Context, stream string, ids ...string) *redis.IntCmd
}

// QueueServiceOpts is the struct given to the NewQueueService factory.
type QueueServiceOpts struct {
	Client    streamClient
	StreamKey string
}

func (o QueueServiceOpts) validate() error {
	if o.Client == nil {
		return ErrNullClient
	}
	if o.StreamKey == "" {
		return ErrNullStreamKey
	}
	return nil
}

// QueueService appends transfer outcomes to a redis stream. The stream is
// the durable buffer between confirmation and persistence: entries survive
// a daemon restart and are delivered to the consumer at least once.
type QueueService struct {
	client    streamClient
	streamKey string
}

// NewQueueService returns the producer side of the outcome stream.
func NewQueueService(opts QueueServiceOpts) (*QueueService, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &QueueService{
		client:    opts.Client,
		streamKey: opts.StreamKey,
	}, nil
}

// PushToStream serializes, compresses and appends the outcome to the stream.
func (q *QueueService) PushToStream(
	ctx context.Context, outcome *domain.TransferOutcome,
) error {
	payload, err := encodeOutcome(outcome)
	if err != nil {
		return err
	}

	entryID := uuid.New().String()
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey,
		Values: map[string]interface{}{
			entryIDField:   entryID,
			entryDataField: payload,
		},
	}).Err(); err != nil {
		return fmt.Errorf("appending outcome to stream: %w", err)
	}

	log.Debugf(
		"queued outcome %s for tx %s", entryID, outcome.Tx.TxHash,
	)
	return nil
}
