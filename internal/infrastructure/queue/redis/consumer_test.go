package redisqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transferd-network/transferd/internal/core/domain"
)

type fakeStreamClient struct {
	mtx     sync.Mutex
	added   []redis.XAddArgs
	deleted []string
}

func (f *fakeStreamClient) XAdd(
	_ context.Context, args *redis.XAddArgs,
) *redis.StringCmd {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.added = append(f.added, *args)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeStreamClient) XRead(
	_ context.Context, _ *redis.XReadArgs,
) *redis.XStreamSliceCmd {
	return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
}

func (f *fakeStreamClient) XDel(
	_ context.Context, _ string, ids ...string,
) *redis.IntCmd {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.deleted = append(f.deleted, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeStreamClient) deletedIDs() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.deleted
}

type fakeTransactionRepository struct {
	mtx       sync.Mutex
	persisted map[string]struct{}
	saved     []domain.TransactionRecord
	// failWith maps a tx hash to the error its save attempt returns once
	failWith map[string]error
}

func newFakeTransactionRepository() *fakeTransactionRepository {
	return &fakeTransactionRepository{
		persisted: make(map[string]struct{}),
		failWith:  make(map[string]error),
	}
}

func (f *fakeTransactionRepository) SaveTransaction(
	_ context.Context, record domain.TransactionRecord, _ time.Duration,
) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if err, ok := f.failWith[record.Tx.TxHash]; ok {
		delete(f.failWith, record.Tx.TxHash)
		return err
	}
	if _, ok := f.persisted[record.Tx.TxHash]; ok {
		return domain.ErrTxAlreadyPersisted
	}
	f.persisted[record.Tx.TxHash] = struct{}{}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeTransactionRepository) savedHashes() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	hashes := make([]string, 0, len(f.saved))
	for _, record := range f.saved {
		hashes = append(hashes, record.Tx.TxHash)
	}
	return hashes
}

type fakeBlockTimeGetter struct {
	at  time.Time
	err error
}

func (f fakeBlockTimeGetter) GetBlockTime(
	_ context.Context, _ int64,
) (time.Time, error) {
	return f.at, f.err
}

func outcomeEntry(t *testing.T, id, txHash string) redis.XMessage {
	t.Helper()
	payload, err := encodeOutcome(&domain.TransferOutcome{
		Tx: &domain.Transaction{
			TxHash: txHash,
			Height: 512,
			Status: domain.TxStatusSucceed,
		},
		SenderAddress:   "tn1sender",
		ReceiverAddress: "tn1receiver",
		UserID:          "user-1",
	})
	require.NoError(t, err)
	return redis.XMessage{
		ID:     id,
		Values: map[string]interface{}{entryDataField: payload},
	}
}

func newTestConsumer(
	t *testing.T, client *fakeStreamClient, repo *fakeTransactionRepository,
) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(ConsumerOpts{
		Client:    client,
		StreamKey: "transfer_outcomes",
		Ledger:    fakeBlockTimeGetter{at: time.Unix(1700000000, 0).UTC()},
		Repo:      repo,
		BlockWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return consumer
}

func TestConsumerPersistsBatchInOrder(t *testing.T) {
	client := &fakeStreamClient{}
	repo := newFakeTransactionRepository()
	consumer := newTestConsumer(t, client, repo)

	consumer.processBatch(context.Background(), []redis.XMessage{
		outcomeEntry(t, "1-0", "HASH1"),
		outcomeEntry(t, "2-0", "HASH2"),
		outcomeEntry(t, "3-0", "HASH3"),
	})

	assert.Equal(t, []string{"HASH1", "HASH2", "HASH3"}, repo.savedHashes())
	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, client.deletedIDs())
	assert.Equal(t, "3-0", consumer.cursor)
	require.Len(t, repo.saved, 3)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), repo.saved[0].Timestamp)
	assert.Equal(t, "user-1", repo.saved[0].UserID)
}

// A redelivered batch whose first entry was already stored is the restart
// case: the duplicate is skipped, the rest is persisted exactly once.
func TestConsumerSkipsAlreadyPersistedEntry(t *testing.T) {
	client := &fakeStreamClient{}
	repo := newFakeTransactionRepository()
	repo.persisted["HASH1"] = struct{}{}
	consumer := newTestConsumer(t, client, repo)

	consumer.processBatch(context.Background(), []redis.XMessage{
		outcomeEntry(t, "1-0", "HASH1"),
		outcomeEntry(t, "2-0", "HASH2"),
		outcomeEntry(t, "3-0", "HASH3"),
	})

	assert.Equal(t, []string{"HASH2", "HASH3"}, repo.savedHashes())
	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, client.deletedIDs())
	assert.Equal(t, "3-0", consumer.cursor)
}

func TestConsumerStopsBatchOnPersistenceFailure(t *testing.T) {
	client := &fakeStreamClient{}
	repo := newFakeTransactionRepository()
	repo.failWith["HASH2"] = errors.New("storage is down")
	consumer := newTestConsumer(t, client, repo)

	batch := []redis.XMessage{
		outcomeEntry(t, "1-0", "HASH1"),
		outcomeEntry(t, "2-0", "HASH2"),
		outcomeEntry(t, "3-0", "HASH3"),
	}
	consumer.processBatch(context.Background(), batch)

	// the failed entry and everything after it stay unacknowledged
	assert.Equal(t, []string{"HASH1"}, repo.savedHashes())
	assert.Equal(t, []string{"1-0"}, client.deletedIDs())
	assert.Equal(t, "1-0", consumer.cursor)

	// redelivery from the cursor completes the batch without duplicates
	consumer.processBatch(context.Background(), batch[1:])
	assert.Equal(t, []string{"HASH1", "HASH2", "HASH3"}, repo.savedHashes())
	assert.Equal(t, "3-0", consumer.cursor)
}

func TestConsumerDropsUndecodableEntry(t *testing.T) {
	client := &fakeStreamClient{}
	repo := newFakeTransactionRepository()
	consumer := newTestConsumer(t, client, repo)

	consumer.processBatch(context.Background(), []redis.XMessage{
		{ID: "1-0", Values: map[string]interface{}{entryDataField: "garbage"}},
		outcomeEntry(t, "2-0", "HASH2"),
	})

	assert.Equal(t, []string{"HASH2"}, repo.savedHashes())
	assert.Equal(t, []string{"1-0", "2-0"}, client.deletedIDs())
}

func TestConsumerStartStop(t *testing.T) {
	client := &fakeStreamClient{}
	repo := newFakeTransactionRepository()
	consumer := newTestConsumer(t, client, repo)

	require.NoError(t, consumer.Start())
	assert.Equal(t, ErrConsumerAlreadyStarted, consumer.Start())

	stopped := make(chan struct{})
	go func() {
		consumer.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop in time")
	}
}

func TestProducerAppendsEncodedOutcome(t *testing.T) {
	client := &fakeStreamClient{}
	queue, err := NewQueueService(QueueServiceOpts{
		Client:    client,
		StreamKey: "transfer_outcomes",
	})
	require.NoError(t, err)

	outcome := &domain.TransferOutcome{
		Tx:              &domain.Transaction{TxHash: "HASH1", Status: domain.TxStatusSucceed},
		SenderAddress:   "tn1sender",
		ReceiverAddress: "tn1receiver",
		UserID:          "user-1",
	}
	require.NoError(t, queue.PushToStream(context.Background(), outcome))

	require.Len(t, client.added, 1)
	assert.Equal(t, "transfer_outcomes", client.added[0].Stream)
	values := client.added[0].Values.(map[string]interface{})
	assert.NotEmpty(t, values[entryIDField])

	decoded, err := decodeOutcome(values[entryDataField].(string))
	require.NoError(t, err)
	assert.Equal(t, outcome, decoded)
}

func TestNewConsumerValidation(t *testing.T) {
	repo := newFakeTransactionRepository()
	tests := []struct {
		name string
		opts ConsumerOpts
		err  error
	}{
		{"missing client", ConsumerOpts{StreamKey: "s", Ledger: fakeBlockTimeGetter{}, Repo: repo}, ErrNullClient},
		{"missing stream", ConsumerOpts{Client: &fakeStreamClient{}, Ledger: fakeBlockTimeGetter{}, Repo: repo}, ErrNullStreamKey},
		{"missing ledger", ConsumerOpts{Client: &fakeStreamClient{}, StreamKey: "s", Repo: repo}, ErrNullLedgerClient},
		{"missing repo", ConsumerOpts{Client: &fakeStreamClient{}, StreamKey: "s", Ledger: fakeBlockTimeGetter{}}, ErrNullTransactionRepository},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConsumer(tt.opts)
			assert.Equal(t, tt.err, err)
		})
	}
}
