package redisqueue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/transferd-network/transferd/internal/core/domain"
)

const (
	defaultBatchSize      = 10
	defaultBlockWait      = 2 * time.Second
	defaultLookupTimeout  = 5 * time.Second
	defaultPersistTimeout = 3 * time.Second
)

var (
	// ErrNullLedgerClient ...
	ErrNullLedgerClient = errors.New("ledger client must not be null")
	// ErrNullTransactionRepository ...
	ErrNullTransactionRepository = errors.New(
		"transaction repository must not be null",
	)
	// ErrConsumerAlreadyStarted ...
	ErrConsumerAlreadyStarted = errors.New("consumer is already started")
)

type consumerCommand int

const (
	consumerStop consumerCommand = iota
)

// BlockTimeGetter resolves the timestamp of the block a transaction was
// included in.
type BlockTimeGetter interface {
	GetBlockTime(ctx context.Context, height int64) (time.Time, error)
}

// ConsumerOpts is the struct given to the NewConsumer factory.
type ConsumerOpts struct {
	Client    streamClient
	StreamKey string
	// BatchSize bounds how many entries one read pulls off the stream.
	BatchSize int
	Ledger    BlockTimeGetter
	Repo      domain.TransactionRepository
	// BlockWait is how long one read blocks waiting for new entries. It is
	// also the upper bound on how long Stop waits for the worker to notice.
	BlockWait time.Duration
	// LookupTimeout bounds the block time fetch per entry.
	LookupTimeout time.Duration
	// PersistTimeout bounds the storage write per entry.
	PersistTimeout time.Duration
}

func (o ConsumerOpts) validate() error {
	if o.Client == nil {
		return ErrNullClient
	}
	if o.StreamKey == "" {
		return ErrNullStreamKey
	}
	if o.Ledger == nil {
		return ErrNullLedgerClient
	}
	if o.Repo == nil {
		return ErrNullTransactionRepository
	}
	return nil
}

// Consumer is the worker that drains the outcome stream into storage. It
// runs isolated in its own goroutine: a crash of the daemon never loses
// entries that were not acknowledged, they are re-read from the cursor on
// the next start. Acknowledgement deletes the entry and advances the
// cursor, so delivery is at least once and storage uniqueness makes the
// write effectively once.
type Consumer struct {
	client    streamClient
	streamKey string
	batchSize int
	ledger    BlockTimeGetter
	repo      domain.TransactionRepository

	blockWait      time.Duration
	lookupTimeout  time.Duration
	persistTimeout time.Duration

	cursor  string
	control chan consumerCommand
	done    chan struct{}
	started bool
}

// NewConsumer returns a stopped consumer reading the stream from its
// beginning.
func NewConsumer(opts ConsumerOpts) (*Consumer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	blockWait := opts.BlockWait
	if blockWait <= 0 {
		blockWait = defaultBlockWait
	}
	lookupTimeout := opts.LookupTimeout
	if lookupTimeout <= 0 {
		lookupTimeout = defaultLookupTimeout
	}
	persistTimeout := opts.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}

	return &Consumer{
		client:         opts.Client,
		streamKey:      opts.StreamKey,
		batchSize:      batchSize,
		ledger:         opts.Ledger,
		repo:           opts.Repo,
		blockWait:      blockWait,
		lookupTimeout:  lookupTimeout,
		persistTimeout: persistTimeout,
		cursor:         "0",
		control:        make(chan consumerCommand, 1),
		done:           make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. It must be called once.
func (c *Consumer) Start() error {
	if c.started {
		return ErrConsumerAlreadyStarted
	}
	c.started = true

	log.Infof("starting outcome consumer on stream %s", c.streamKey)
	go c.run()
	return nil
}

// Stop asks the worker to finish its current batch and waits for it.
func (c *Consumer) Stop() {
	if !c.started {
		return
	}
	c.control <- consumerStop
	<-c.done
	log.Info("outcome consumer stopped")
}

func (c *Consumer) run() {
	defer close(c.done)

	ctx := context.Background()
	for {
		select {
		case cmd := <-c.control:
			if cmd == consumerStop {
				return
			}
		default:
		}

		streams, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.streamKey, c.cursor},
			Count:   int64(c.batchSize),
			Block:   c.blockWait,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.WithError(err).Warn("reading outcome stream failed")
			time.Sleep(c.blockWait)
			continue
		}

		for _, stream := range streams {
			c.processBatch(ctx, stream.Messages)
		}
	}
}

// processBatch persists entries in stream order. A persistence failure
// stops the batch without acknowledging the failed entry, so it is
// re-delivered on the next read. An entry whose hash is already stored is
// acknowledged and skipped.
func (c *Consumer) processBatch(ctx context.Context, msgs []redis.XMessage) {
	for _, msg := range msgs {
		err := c.handleEntry(ctx, msg)
		if err != nil && !errors.Is(err, domain.ErrTxAlreadyPersisted) {
			log.WithError(err).Warnf(
				"persisting stream entry %s failed, will retry", msg.ID,
			)
			return
		}
		if errors.Is(err, domain.ErrTxAlreadyPersisted) {
			log.Debugf("stream entry %s already persisted, skipping", msg.ID)
		}

		if err := c.ack(ctx, msg.ID); err != nil {
			log.WithError(err).Warnf(
				"acknowledging stream entry %s failed", msg.ID,
			)
			return
		}
	}
}

func (c *Consumer) handleEntry(ctx context.Context, msg redis.XMessage) error {
	payload, ok := msg.Values[entryDataField].(string)
	if !ok {
		// unreadable entries are dropped, retrying cannot fix them
		log.Warnf("stream entry %s carries no payload, dropping", msg.ID)
		return nil
	}

	outcome, err := decodeOutcome(payload)
	if err != nil {
		log.WithError(err).Warnf(
			"stream entry %s is not decodable, dropping", msg.ID,
		)
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()
	blockTime, err := c.ledger.GetBlockTime(lookupCtx, outcome.Tx.Height)
	if err != nil {
		return err
	}

	return c.repo.SaveTransaction(ctx, domain.TransactionRecord{
		Tx:              outcome.Tx,
		Timestamp:       blockTime,
		SenderAddress:   outcome.SenderAddress,
		ReceiverAddress: outcome.ReceiverAddress,
		UserID:          outcome.UserID,
	}, c.persistTimeout)
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.client.XDel(ctx, c.streamKey, id).Err(); err != nil {
		return err
	}
	c.cursor = id
	return nil
}
